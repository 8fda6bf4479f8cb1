package fields

import (
	"sort"
	"strconv"
	"sync"
)

// Standard header and trailer fields.
var (
	BeginString      = NewStringField(8, "BeginString")
	BodyLength       = NewIntField(9, "BodyLength")
	CheckSum         = NewStringField(10, "CheckSum")
	MsgSeqNum        = NewIntField(34, "MsgSeqNum")
	MsgType          = NewStringField(35, "MsgType")
	SenderCompID     = NewStringField(49, "SenderCompID")
	SenderSubID      = NewStringField(50, "SenderSubID")
	SendingTime      = NewTimestampField(52, "SendingTime")
	TargetCompID     = NewStringField(56, "TargetCompID")
	TargetSubID      = NewStringField(57, "TargetSubID")
	SenderLocationID = NewStringField(142, "SenderLocationID")
	TargetLocationID = NewStringField(143, "TargetLocationID")
	PossDupFlag      = NewBoolField(43, "PossDupFlag")
)

// Dictionary indexes descriptors by tag. When several descriptors share a tag the
// first registered one wins.
type Dictionary struct {
	mu    sync.RWMutex
	byTag map[Tag]Descriptor
}

// NewDictionary creates a dictionary holding the given descriptors.
func NewDictionary(descs ...Descriptor) *Dictionary {
	d := &Dictionary{byTag: make(map[Tag]Descriptor, len(descs))}
	for _, desc := range descs {
		d.Register(desc)
	}
	return d
}

// StandardDictionary returns a dictionary with the standard header fields.
func StandardDictionary() *Dictionary {
	return NewDictionary(
		BeginString, BodyLength, CheckSum, MsgSeqNum, MsgType,
		SenderCompID, SenderSubID, SendingTime, TargetCompID, TargetSubID,
		SenderLocationID, TargetLocationID, PossDupFlag,
	)
}

// Register adds desc and reports whether its tag was previously unknown.
func (d *Dictionary) Register(desc Descriptor) bool {
	if desc == nil {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.byTag[desc.Tag()]; ok {
		return false
	}
	d.byTag[desc.Tag()] = desc
	return true
}

// Lookup returns the descriptor registered for tag. A nil dictionary knows no tags.
func (d *Dictionary) Lookup(tag Tag) (Descriptor, bool) {
	if d == nil {
		return nil, false
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	desc, ok := d.byTag[tag]
	return desc, ok
}

// NameOf returns the registered name or the decimal tag for unknown tags.
func (d *Dictionary) NameOf(tag Tag) string {
	if desc, ok := d.Lookup(tag); ok {
		return desc.Name()
	}
	return strconv.FormatUint(uint64(tag), 10)
}

// Tags lists registered tags in ascending order.
func (d *Dictionary) Tags() []Tag {
	d.mu.RLock()
	defer d.mu.RUnlock()
	tags := make([]Tag, 0, len(d.byTag))
	for tag := range d.byTag {
		tags = append(tags, tag)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })
	return tags
}
