package fields

import (
	"errors"
	"strconv"
	"time"

	errspkg "github.com/drblury/fixflow/internal/runtime/errors"
)

// Tag is the numeric wire identity of a field.
type Tag uint32

// TimestampLayout is the FIX UTCTimestamp format with millisecond precision.
// Parsing also accepts the variants without fraction or with micro/nano digits.
const TimestampLayout = "20060102-15:04:05.000"

const timestampParseLayout = "20060102-15:04:05"

// Descriptor is the type-erased view of a Field, for listing heterogeneous
// descriptors together.
type Descriptor interface {
	Tag() Tag
	Name() string
	Kind() Kind
}

// TagValue pairs a tag with a decoded value, ready to be added to a builder.
type TagValue struct {
	Tag   Tag
	Value Value
}

// Field binds a tag number, a symbolic name and the Go type T its values decode to.
// Fields are immutable and meant to be declared once as package-level variables.
// Several fields may share a tag. Only the New*Field constructors build usable
// fields; a zero Field matches no value and decodes nothing.
type Field[T any] struct {
	tag  Tag
	name string
	kind Kind

	wrap    func(T) Value
	extract func(Value) (T, bool)
	parse   func([]byte) (T, error)
	format  func(T) []byte
}

// Tag returns the bound tag number.
func (f Field[T]) Tag() Tag { return f.tag }

// Name returns the symbolic name, for diagnostics.
func (f Field[T]) Name() string { return f.name }

// Kind returns the Value kind this field stores.
func (f Field[T]) Kind() Kind { return f.kind }

func (f Field[T]) String() string {
	return f.name + "(" + strconv.FormatUint(uint64(f.tag), 10) + ")"
}

// Value wraps v in the union member matching the field's kind.
func (f Field[T]) Value(v T) Value {
	if f.wrap == nil {
		return Value{}
	}
	return f.wrap(v)
}

// Extract unwraps a stored value. It reports false when the value holds another kind.
func (f Field[T]) Extract(v Value) (T, bool) {
	if f.extract == nil {
		var zero T
		return zero, false
	}
	return f.extract(v)
}

// With pairs v with the field's tag.
func (f Field[T]) With(v T) TagValue {
	return TagValue{Tag: f.tag, Value: f.Value(v)}
}

// Decode converts raw wire bytes into T. FIX forbids empty values, so empty input
// is rejected for every kind.
func (f Field[T]) Decode(raw []byte) (T, error) {
	var zero T
	if len(raw) == 0 {
		return zero, f.decodeError(raw, errors.New("empty value"))
	}
	if f.parse == nil {
		return zero, f.decodeError(raw, errors.New("field has no decoder"))
	}
	v, err := f.parse(raw)
	if err != nil {
		return zero, f.decodeError(raw, err)
	}
	return v, nil
}

// DecodeValue is Decode followed by Value.
func (f Field[T]) DecodeValue(raw []byte) (Value, error) {
	v, err := f.Decode(raw)
	if err != nil {
		return Value{}, err
	}
	return f.Value(v), nil
}

// Encode renders v in its wire form.
func (f Field[T]) Encode(v T) []byte {
	if f.format == nil {
		return nil
	}
	return f.format(v)
}

func (f Field[T]) decodeError(raw []byte, err error) error {
	return &errspkg.DecodeError{Tag: uint32(f.tag), Kind: f.kind.String(), Raw: string(raw), Err: err}
}

// NewStringField declares a text field; raw bytes are taken as is.
func NewStringField(tag Tag, name string) Field[string] {
	return Field[string]{
		tag: tag, name: name, kind: KindString,
		wrap:    StringValue,
		extract: Value.AsString,
		parse:   func(raw []byte) (string, error) { return string(raw), nil },
		format:  func(s string) []byte { return []byte(s) },
	}
}

// NewIntField declares a signed integer field.
func NewIntField(tag Tag, name string) Field[int64] {
	return Field[int64]{
		tag: tag, name: name, kind: KindInt,
		wrap:    IntValue,
		extract: Value.AsInt,
		parse: func(raw []byte) (int64, error) {
			return strconv.ParseInt(string(raw), 10, 64)
		},
		format: formatInt,
	}
}

// NewDecimalField declares a Price/Qty style field parsed without float rounding.
func NewDecimalField(tag Tag, name string) Field[Decimal] {
	return Field[Decimal]{
		tag: tag, name: name, kind: KindDecimal,
		wrap:    DecimalValue,
		extract: Value.AsDecimal,
		parse:   func(raw []byte) (Decimal, error) { return ParseDecimal(string(raw)) },
		format:  func(d Decimal) []byte { return []byte(d.String()) },
	}
}

// NewTimestampField declares a UTCTimestamp field.
func NewTimestampField(tag Tag, name string) Field[time.Time] {
	return Field[time.Time]{
		tag: tag, name: name, kind: KindTimestamp,
		wrap:    TimestampValue,
		extract: Value.AsTimestamp,
		parse: func(raw []byte) (time.Time, error) {
			return time.ParseInLocation(timestampParseLayout, string(raw), time.UTC)
		},
		format: func(t time.Time) []byte { return []byte(t.UTC().Format(TimestampLayout)) },
	}
}

// NewCharField declares a single-character field such as Side(54).
func NewCharField(tag Tag, name string) Field[byte] {
	return Field[byte]{
		tag: tag, name: name, kind: KindChar,
		wrap:    CharValue,
		extract: Value.AsChar,
		parse: func(raw []byte) (byte, error) {
			if len(raw) != 1 {
				return 0, errors.New("char must be a single byte")
			}
			return raw[0], nil
		},
		format: func(c byte) []byte { return []byte{c} },
	}
}

// NewBoolField declares a Boolean field, carried as Y or N.
func NewBoolField(tag Tag, name string) Field[bool] {
	return Field[bool]{
		tag: tag, name: name, kind: KindBool,
		wrap:    BoolValue,
		extract: Value.AsBool,
		parse: func(raw []byte) (bool, error) {
			switch string(raw) {
			case "Y":
				return true, nil
			case "N":
				return false, nil
			}
			return false, errors.New("boolean must be Y or N")
		},
		format: func(b bool) []byte {
			if b {
				return []byte{'Y'}
			}
			return []byte{'N'}
		},
	}
}

// NewBytesField declares a data field whose payload is opaque.
func NewBytesField(tag Tag, name string) Field[[]byte] {
	return Field[[]byte]{
		tag: tag, name: name, kind: KindBytes,
		wrap:    BytesValue,
		extract: Value.AsBytes,
		parse: func(raw []byte) ([]byte, error) {
			return append([]byte(nil), raw...), nil
		},
		format: func(b []byte) []byte { return append([]byte(nil), b...) },
	}
}

func formatInt(i int64) []byte {
	return strconv.AppendInt(nil, i, 10)
}
