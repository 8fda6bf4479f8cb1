package fields

import "time"

// Value is one decoded field occurrence. Exactly one member is meaningful,
// selected by Kind; the zero Value has KindInvalid.
//
// Values are immutable: byte payloads are copied in and out, so a Value can be
// shared between goroutines once constructed.
type Value struct {
	kind Kind
	// num holds Int, Char, Bool (0/1) and the unscaled Decimal.
	num   int64
	scale uint8
	// str holds String and Bytes payloads.
	str string
	ts  time.Time
}

// StringValue wraps a FIX String (or any text type such as MultipleValueString).
func StringValue(s string) Value { return Value{kind: KindString, str: s} }

// IntValue wraps a FIX int, SeqNum, Length or NumInGroup.
func IntValue(i int64) Value { return Value{kind: KindInt, num: i} }

// DecimalValue wraps a FIX float, Price, Qty or Amt.
func DecimalValue(d Decimal) Value {
	return Value{kind: KindDecimal, num: d.Unscaled, scale: d.Scale}
}

// TimestampValue stores t in UTC; FIX timestamps carry no zone.
func TimestampValue(t time.Time) Value { return Value{kind: KindTimestamp, ts: t.UTC()} }

// CharValue wraps a single-character FIX char.
func CharValue(c byte) Value { return Value{kind: KindChar, num: int64(c)} }

// BoolValue wraps a FIX Boolean (Y/N on the wire).
func BoolValue(b bool) Value {
	v := Value{kind: KindBool}
	if b {
		v.num = 1
	}
	return v
}

// BytesValue copies b; later changes to b are not observed.
func BytesValue(b []byte) Value { return Value{kind: KindBytes, str: string(b)} }

// Kind reports which member of the union v holds.
func (v Value) Kind() Kind { return v.kind }

// IsValid reports whether v holds a value at all.
func (v Value) IsValid() bool { return v.kind != KindInvalid }

// AsString returns the text of a String value.
func (v Value) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.str, true
}

// AsInt returns the integer of an Int value.
func (v Value) AsInt() (int64, bool) {
	if v.kind != KindInt {
		return 0, false
	}
	return v.num, true
}

// AsDecimal returns the fixed-point number of a Decimal value.
func (v Value) AsDecimal() (Decimal, bool) {
	if v.kind != KindDecimal {
		return Decimal{}, false
	}
	return Decimal{Unscaled: v.num, Scale: v.scale}, true
}

// AsTimestamp returns the UTC time of a Timestamp value.
func (v Value) AsTimestamp() (time.Time, bool) {
	if v.kind != KindTimestamp {
		return time.Time{}, false
	}
	return v.ts, true
}

// AsChar returns the character of a Char value.
func (v Value) AsChar() (byte, bool) {
	if v.kind != KindChar {
		return 0, false
	}
	return byte(v.num), true
}

// AsBool returns the flag of a Bool value.
func (v Value) AsBool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.num != 0, true
}

// AsBytes returns a fresh copy of the payload.
func (v Value) AsBytes() ([]byte, bool) {
	if v.kind != KindBytes {
		return nil, false
	}
	return []byte(v.str), true
}

// Interface returns the payload as a plain Go value, for logging and envelopes.
func (v Value) Interface() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindInt:
		return v.num
	case KindDecimal:
		return Decimal{Unscaled: v.num, Scale: v.scale}
	case KindTimestamp:
		return v.ts
	case KindChar:
		return byte(v.num)
	case KindBool:
		return v.num != 0
	case KindBytes:
		return []byte(v.str)
	default:
		return nil
	}
}

// Equal reports whether both values have the same kind and payload.
// Decimals compare numerically, timestamps by instant.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindString, KindBytes:
		return v.str == other.str
	case KindInt, KindChar, KindBool:
		return v.num == other.num
	case KindDecimal:
		a, _ := v.AsDecimal()
		b, _ := other.AsDecimal()
		return a.Equal(b)
	case KindTimestamp:
		return v.ts.Equal(other.ts)
	default:
		return true
	}
}

// String renders the value in its FIX wire form.
func (v Value) String() string {
	switch v.kind {
	case KindString, KindBytes:
		return v.str
	case KindInt:
		return string(formatInt(v.num))
	case KindDecimal:
		d, _ := v.AsDecimal()
		return d.String()
	case KindTimestamp:
		return v.ts.Format(TimestampLayout)
	case KindChar:
		return string([]byte{byte(v.num)})
	case KindBool:
		if v.num != 0 {
			return "Y"
		}
		return "N"
	default:
		return "<invalid>"
	}
}
