package codec

import (
	"errors"
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/drblury/fixflow/internal/runtime/fields"
	"github.com/drblury/fixflow/internal/runtime/message"
)

// Proto encodes messages in protobuf wire format, equivalent to
//
//	message Envelope { repeated Entry fields = 1; }
//	message Entry {
//	  uint32 tag = 1;
//	  uint32 kind = 2;
//	  bytes  text = 3;   // string, bytes
//	  sint64 num = 4;    // int, char, bool, decimal unscaled, timestamp seconds
//	  uint32 scale = 5;  // decimal scale
//	  uint32 nanos = 6;  // timestamp nanoseconds
//	}
type Proto struct{}

const (
	envelopeFieldsNum protowire.Number = 1

	entryTagNum   protowire.Number = 1
	entryKindNum  protowire.Number = 2
	entryTextNum  protowire.Number = 3
	entryNumNum   protowire.Number = 4
	entryScaleNum protowire.Number = 5
	entryNanosNum protowire.Number = 6
)

var errTruncated = errors.New("truncated entry")

func (Proto) Name() string        { return NameProto }
func (Proto) ContentType() string { return "application/x-protobuf" }

// Marshal writes one length-delimited entry per occurrence.
func (Proto) Marshal(m *message.Message) ([]byte, error) {
	if m == nil {
		return nil, fmt.Errorf("codec proto: nil message")
	}
	var out, entry []byte
	i := 0
	for tag, v := range m.All() {
		if !v.IsValid() {
			return nil, fmt.Errorf("codec proto: field %d (tag %d): %w", i, tag, ErrInvalidValue)
		}
		i++
		entry = appendEntry(entry[:0], tag, v)
		out = protowire.AppendTag(out, envelopeFieldsNum, protowire.BytesType)
		out = protowire.AppendBytes(out, entry)
	}
	return out, nil
}

func appendEntry(b []byte, tag fields.Tag, v fields.Value) []byte {
	b = appendVarintField(b, entryTagNum, uint64(tag))
	b = appendVarintField(b, entryKindNum, uint64(v.Kind()))
	switch v.Kind() {
	case fields.KindString:
		s, _ := v.AsString()
		b = protowire.AppendTag(b, entryTextNum, protowire.BytesType)
		b = protowire.AppendString(b, s)
	case fields.KindBytes:
		raw, _ := v.AsBytes()
		b = protowire.AppendTag(b, entryTextNum, protowire.BytesType)
		b = protowire.AppendBytes(b, raw)
	case fields.KindInt:
		i, _ := v.AsInt()
		b = appendVarintField(b, entryNumNum, protowire.EncodeZigZag(i))
	case fields.KindChar:
		c, _ := v.AsChar()
		b = appendVarintField(b, entryNumNum, protowire.EncodeZigZag(int64(c)))
	case fields.KindBool:
		flag, _ := v.AsBool()
		var n int64
		if flag {
			n = 1
		}
		b = appendVarintField(b, entryNumNum, protowire.EncodeZigZag(n))
	case fields.KindDecimal:
		d, _ := v.AsDecimal()
		b = appendVarintField(b, entryNumNum, protowire.EncodeZigZag(d.Unscaled))
		b = appendVarintField(b, entryScaleNum, uint64(d.Scale))
	case fields.KindTimestamp:
		ts, _ := v.AsTimestamp()
		b = appendVarintField(b, entryNumNum, protowire.EncodeZigZag(ts.Unix()))
		b = appendVarintField(b, entryNanosNum, uint64(ts.Nanosecond()))
	}
	return b
}

func appendVarintField(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

// Unmarshal rebuilds a frozen message; unknown entry fields are skipped.
func (Proto) Unmarshal(data []byte) (*message.Message, error) {
	b := message.NewBuilder()
	for i := 0; len(data) > 0; i++ {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("codec proto: %w", protowire.ParseError(n))
		}
		data = data[n:]
		if num != envelopeFieldsNum || typ != protowire.BytesType {
			n = protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, fmt.Errorf("codec proto: %w", protowire.ParseError(n))
			}
			data = data[n:]
			continue
		}
		raw, n := protowire.ConsumeBytes(data)
		if n < 0 {
			return nil, fmt.Errorf("codec proto: %w", protowire.ParseError(n))
		}
		data = data[n:]

		tag, v, err := consumeEntry(raw)
		if err != nil {
			return nil, fmt.Errorf("codec proto: entry %d: %w", i, err)
		}
		b.AddTagValue(tag, v)
	}
	return b.Freeze(), nil
}

func consumeEntry(b []byte) (fields.Tag, fields.Value, error) {
	var (
		tag, kind, scale, nanos uint64
		num                     int64
		text                    []byte
		hasTag                  bool
	)
	for len(b) > 0 {
		fnum, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return 0, fields.Value{}, protowire.ParseError(n)
		}
		b = b[n:]
		switch {
		case fnum == entryTextNum && typ == protowire.BytesType:
			text, n = protowire.ConsumeBytes(b)
		case typ == protowire.VarintType:
			var v uint64
			v, n = protowire.ConsumeVarint(b)
			switch fnum {
			case entryTagNum:
				tag, hasTag = v, true
			case entryKindNum:
				kind = v
			case entryNumNum:
				num = protowire.DecodeZigZag(v)
			case entryScaleNum:
				scale = v
			case entryNanosNum:
				nanos = v
			}
		default:
			n = protowire.ConsumeFieldValue(fnum, typ, b)
		}
		if n < 0 {
			return 0, fields.Value{}, protowire.ParseError(n)
		}
		b = b[n:]
	}
	if !hasTag {
		return 0, fields.Value{}, errTruncated
	}

	var v fields.Value
	switch fields.Kind(kind) {
	case fields.KindString:
		v = fields.StringValue(string(text))
	case fields.KindBytes:
		v = fields.BytesValue(text)
	case fields.KindInt:
		v = fields.IntValue(num)
	case fields.KindChar:
		v = fields.CharValue(byte(num))
	case fields.KindBool:
		v = fields.BoolValue(num != 0)
	case fields.KindDecimal:
		v = fields.DecimalValue(fields.Decimal{Unscaled: num, Scale: uint8(scale)})
	case fields.KindTimestamp:
		v = fields.TimestampValue(time.Unix(num, int64(nanos)))
	default:
		return 0, fields.Value{}, fmt.Errorf("unknown kind %d", kind)
	}
	return fields.Tag(tag), v, nil
}
