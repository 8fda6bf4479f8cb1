// Package session defines the identity of a FIX session: the protocol version
// plus the sender and target parties.
package session

import (
	"errors"
	"fmt"
	"strings"

	errspkg "github.com/drblury/fixflow/internal/runtime/errors"
	"github.com/drblury/fixflow/internal/runtime/fields"
	"github.com/drblury/fixflow/internal/runtime/message"
	metadatapkg "github.com/drblury/fixflow/internal/runtime/metadata"
)

// Metadata keys carrying a session identity in bus message headers.
const (
	MetadataKeyBeginString      = "fix_begin_string"
	MetadataKeySenderCompID     = "fix_sender_comp_id"
	MetadataKeySenderSubID      = "fix_sender_sub_id"
	MetadataKeySenderLocationID = "fix_sender_location_id"
	MetadataKeyTargetCompID     = "fix_target_comp_id"
	MetadataKeyTargetSubID      = "fix_target_sub_id"
	MetadataKeyTargetLocationID = "fix_target_location_id"
)

// Communicator identifies one side of a session. SubID and LocationID are
// optional; the empty string means absent.
type Communicator struct {
	CompID     string
	SubID      string
	LocationID string
}

func (c Communicator) String() string {
	var b strings.Builder
	b.WriteString(c.CompID)
	if c.SubID != "" || c.LocationID != "" {
		b.WriteByte('/')
		b.WriteString(c.SubID)
	}
	if c.LocationID != "" {
		b.WriteByte('/')
		b.WriteString(c.LocationID)
	}
	return b.String()
}

// ID is a comparable value and may be used as a map key.
type ID struct {
	BeginString string
	Sender      Communicator
	Target      Communicator
}

// New validates the required parts of a session identity.
func New(beginString string, sender, target Communicator) (ID, error) {
	id := ID{BeginString: beginString, Sender: sender, Target: target}
	if err := id.Validate(); err != nil {
		return ID{}, err
	}
	return id, nil
}

// Validate reports every missing required part.
func (id ID) Validate() error {
	var errs []error
	if id.BeginString == "" {
		errs = append(errs, errspkg.ErrBeginStringRequired)
	}
	if id.Sender.CompID == "" {
		errs = append(errs, fmt.Errorf("sender: %w", errspkg.ErrCompIDRequired))
	}
	if id.Target.CompID == "" {
		errs = append(errs, fmt.Errorf("target: %w", errspkg.ErrCompIDRequired))
	}
	return errors.Join(errs...)
}

// String renders e.g. "FIX.4.4:BUYSIDE/DESK1->SELLSIDE".
func (id ID) String() string {
	return id.BeginString + ":" + id.Sender.String() + "->" + id.Target.String()
}

// Reverse returns the identity as seen by the counterparty.
func (id ID) Reverse() ID {
	return ID{BeginString: id.BeginString, Sender: id.Target, Target: id.Sender}
}

// FromMessage reads the identity from a message's standard header.
func FromMessage(m *message.Message) (ID, error) {
	if m == nil {
		return ID{}, errspkg.ErrMessageRequired
	}
	var (
		id   ID
		errs []error
	)
	required := func(f fields.Field[string], dst *string) {
		v, err := message.Get(m, f)
		if err != nil {
			errs = append(errs, err)
			return
		}
		*dst = v
	}
	optional := func(f fields.Field[string], dst *string) {
		v, _, err := message.Find(m, f)
		if err != nil {
			errs = append(errs, err)
			return
		}
		*dst = v
	}

	required(fields.BeginString, &id.BeginString)
	required(fields.SenderCompID, &id.Sender.CompID)
	required(fields.TargetCompID, &id.Target.CompID)
	optional(fields.SenderSubID, &id.Sender.SubID)
	optional(fields.SenderLocationID, &id.Sender.LocationID)
	optional(fields.TargetSubID, &id.Target.SubID)
	optional(fields.TargetLocationID, &id.Target.LocationID)

	if err := errors.Join(errs...); err != nil {
		return ID{}, err
	}
	return id, nil
}

// ToMetadata encodes the identity as bus headers, omitting absent qualifiers.
func (id ID) ToMetadata() metadatapkg.Metadata {
	md := metadatapkg.New(
		MetadataKeyBeginString, id.BeginString,
		MetadataKeySenderCompID, id.Sender.CompID,
		MetadataKeyTargetCompID, id.Target.CompID,
	)
	setIfPresent(md, MetadataKeySenderSubID, id.Sender.SubID)
	setIfPresent(md, MetadataKeySenderLocationID, id.Sender.LocationID)
	setIfPresent(md, MetadataKeyTargetSubID, id.Target.SubID)
	setIfPresent(md, MetadataKeyTargetLocationID, id.Target.LocationID)
	return md
}

// FromMetadata decodes headers written by ToMetadata.
func FromMetadata(md metadatapkg.Metadata) (ID, error) {
	return New(
		md[MetadataKeyBeginString],
		Communicator{
			CompID:     md[MetadataKeySenderCompID],
			SubID:      md[MetadataKeySenderSubID],
			LocationID: md[MetadataKeySenderLocationID],
		},
		Communicator{
			CompID:     md[MetadataKeyTargetCompID],
			SubID:      md[MetadataKeyTargetSubID],
			LocationID: md[MetadataKeyTargetLocationID],
		},
	)
}

func setIfPresent(md metadatapkg.Metadata, key, value string) {
	if value != "" {
		md[key] = value
	}
}
