package message

import "github.com/drblury/fixflow/internal/runtime/fields"

// Builder accumulates field occurrences in wire order. A Builder is owned by a
// single goroutine, typically the codec decoding one frame.
type Builder struct {
	values  []fields.Value
	tags    []fields.Tag
	indices map[fields.Tag][]int
	order   []fields.Tag
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{indices: make(map[fields.Tag][]int)}
}

// Add appends each tag/value pair. Insertion always succeeds.
func (b *Builder) Add(tvs ...fields.TagValue) *Builder {
	for _, tv := range tvs {
		b.AddTagValue(tv.Tag, tv.Value)
	}
	return b
}

// AddTagValue appends v under tag without a descriptor, which is how custom and
// vendor-specific tags are kept.
func (b *Builder) AddTagValue(tag fields.Tag, v fields.Value) *Builder {
	if b.indices == nil {
		b.indices = make(map[fields.Tag][]int)
	}
	positions, seen := b.indices[tag]
	if !seen {
		b.order = append(b.order, tag)
	}
	b.indices[tag] = append(positions, len(b.values))
	b.values = append(b.values, v)
	b.tags = append(b.tags, tag)
	return b
}

// AddValue appends v under f's tag.
func AddValue[T any](b *Builder, f fields.Field[T], v T) *Builder {
	return b.AddTagValue(f.Tag(), f.Value(v))
}

// Len returns the number of occurrences accumulated so far.
func (b *Builder) Len() int {
	return len(b.values)
}

// Freeze hands the accumulated values to a new Message. The builder is left
// empty and may be reused; it keeps no reference to the frozen data.
func (b *Builder) Freeze() *Message {
	m := &Message{
		values:  b.values,
		tags:    b.tags,
		indices: b.indices,
		order:   b.order,
	}
	if m.indices == nil {
		m.indices = map[fields.Tag][]int{}
	}
	*b = Builder{indices: make(map[fields.Tag][]int)}
	return m
}
