// Package codec serialises frozen messages for transport over the bus. It is
// not the FIX tag=value codec: envelopes carry already-decoded, typed values.
package codec

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/drblury/fixflow/internal/runtime/fields"
	"github.com/drblury/fixflow/internal/runtime/message"
)

// Codec converts messages to and from bus payloads.
type Codec interface {
	Name() string
	ContentType() string
	Marshal(m *message.Message) ([]byte, error)
	Unmarshal(data []byte) (*message.Message, error)
}

// ErrInvalidValue is returned by Marshal for an occurrence without a kind,
// which no Unmarshal could restore.
var ErrInvalidValue = errors.New("value has no kind")

const (
	NameJSON  = "json"
	NameProto = "proto"
)

// ByName returns the codec registered under name; the empty name selects JSON.
// dict supplies field names for the JSON envelope and may be nil.
func ByName(name string, dict *fields.Dictionary) (Codec, error) {
	switch strings.ToLower(name) {
	case "", NameJSON:
		return NewJSON(dict), nil
	case NameProto, "protobuf":
		return Proto{}, nil
	default:
		return nil, fmt.Errorf("unknown codec: %q", name)
	}
}

// formatText renders v for the JSON envelope. Timestamps keep nanoseconds and
// bytes are base64 encoded, so the text form round-trips exactly.
func formatText(v fields.Value) string {
	switch v.Kind() {
	case fields.KindTimestamp:
		ts, _ := v.AsTimestamp()
		return ts.Format(time.RFC3339Nano)
	case fields.KindBytes:
		b, _ := v.AsBytes()
		return base64.StdEncoding.EncodeToString(b)
	default:
		return v.String()
	}
}

func parseText(kind fields.Kind, s string) (fields.Value, error) {
	switch kind {
	case fields.KindString:
		return fields.StringValue(s), nil
	case fields.KindInt:
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return fields.Value{}, err
		}
		return fields.IntValue(i), nil
	case fields.KindDecimal:
		d, err := fields.ParseDecimal(s)
		if err != nil {
			return fields.Value{}, err
		}
		return fields.DecimalValue(d), nil
	case fields.KindTimestamp:
		ts, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return fields.Value{}, err
		}
		return fields.TimestampValue(ts), nil
	case fields.KindChar:
		if len(s) != 1 {
			return fields.Value{}, fmt.Errorf("char value %q must be one byte", s)
		}
		return fields.CharValue(s[0]), nil
	case fields.KindBool:
		switch s {
		case "Y":
			return fields.BoolValue(true), nil
		case "N":
			return fields.BoolValue(false), nil
		}
		return fields.Value{}, fmt.Errorf("bool value %q must be Y or N", s)
	case fields.KindBytes:
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return fields.Value{}, err
		}
		return fields.BytesValue(b), nil
	default:
		return fields.Value{}, fmt.Errorf("unsupported kind %d", kind)
	}
}
