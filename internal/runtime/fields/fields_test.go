package fields

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errspkg "github.com/drblury/fixflow/internal/runtime/errors"
)

func TestFieldIdentity(t *testing.T) {
	f := NewStringField(1, "Account")
	assert.Equal(t, Tag(1), f.Tag())
	assert.Equal(t, "Account", f.Name())
	assert.Equal(t, KindString, f.Kind())
	assert.Equal(t, "Account(1)", f.String())

	tv := f.With("ACC-1")
	assert.Equal(t, Tag(1), tv.Tag)
	s, ok := tv.Value.AsString()
	require.True(t, ok)
	assert.Equal(t, "ACC-1", s)
}

func TestZeroFieldIsInert(t *testing.T) {
	var zero Field[int64]

	_, ok := zero.Extract(IntValue(7))
	assert.False(t, ok)
	assert.False(t, zero.Value(7).IsValid())
	assert.False(t, zero.With(7).Value.IsValid())
	assert.Nil(t, zero.Encode(7))

	_, err := zero.Decode([]byte("7"))
	var decodeErr *errspkg.DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.ErrorContains(t, err, "no decoder")
}

func TestDecode(t *testing.T) {
	ts := time.Date(2024, 3, 5, 14, 30, 15, 123000000, time.UTC)

	t.Run("int", func(t *testing.T) {
		v, err := MsgSeqNum.Decode([]byte("42"))
		require.NoError(t, err)
		assert.Equal(t, int64(42), v)
		assert.Equal(t, "42", string(MsgSeqNum.Encode(v)))
	})

	t.Run("decimal", func(t *testing.T) {
		f := NewDecimalField(44, "Price")
		v, err := f.Decode([]byte("-101.250"))
		require.NoError(t, err)
		assert.Equal(t, Decimal{Unscaled: -101250, Scale: 3}, v)
		assert.Equal(t, "-101.250", string(f.Encode(v)))
	})

	t.Run("timestamp", func(t *testing.T) {
		for _, raw := range []string{"20240305-14:30:15.123", "20240305-14:30:15.123000"} {
			v, err := SendingTime.Decode([]byte(raw))
			require.NoError(t, err, raw)
			assert.True(t, ts.Equal(v), raw)
		}
		v, err := SendingTime.Decode([]byte("20240305-14:30:15"))
		require.NoError(t, err)
		assert.Equal(t, ts.Truncate(time.Second), v)
		assert.Equal(t, "20240305-14:30:15.123", string(SendingTime.Encode(ts)))
	})

	t.Run("char", func(t *testing.T) {
		f := NewCharField(54, "Side")
		v, err := f.Decode([]byte("1"))
		require.NoError(t, err)
		assert.Equal(t, byte('1'), v)
		_, err = f.Decode([]byte("12"))
		assert.ErrorIs(t, err, errspkg.ErrMalformedValue)
	})

	t.Run("bool", func(t *testing.T) {
		v, err := PossDupFlag.Decode([]byte("Y"))
		require.NoError(t, err)
		assert.True(t, v)
		_, err = PossDupFlag.Decode([]byte("yes"))
		assert.ErrorIs(t, err, errspkg.ErrMalformedValue)
	})

	t.Run("bytes are copied", func(t *testing.T) {
		f := NewBytesField(96, "RawData")
		raw := []byte{0x01, 0x02}
		v, err := f.Decode(raw)
		require.NoError(t, err)
		raw[0] = 0xff
		assert.Equal(t, []byte{0x01, 0x02}, v)
	})

	t.Run("malformed int", func(t *testing.T) {
		_, err := MsgSeqNum.Decode([]byte("4x2"))
		var decErr *errspkg.DecodeError
		require.True(t, errors.As(err, &decErr))
		assert.Equal(t, uint32(34), decErr.Tag)
		assert.Equal(t, "int", decErr.Kind)
	})

	t.Run("empty rejected", func(t *testing.T) {
		_, err := MsgType.Decode(nil)
		assert.ErrorIs(t, err, errspkg.ErrMalformedValue)
	})
}

func TestDecodeValue(t *testing.T) {
	v, err := MsgSeqNum.DecodeValue([]byte("7"))
	require.NoError(t, err)
	assert.Equal(t, KindInt, v.Kind())

	_, err = MsgSeqNum.DecodeValue([]byte("seven"))
	assert.Error(t, err)
}

func TestValueAccessorsAreExclusive(t *testing.T) {
	values := []Value{
		StringValue("abc"),
		IntValue(7),
		DecimalValue(MustDecimal("1.5")),
		TimestampValue(time.Unix(0, 0)),
		CharValue('A'),
		BoolValue(true),
		BytesValue([]byte("raw")),
	}
	for _, v := range values {
		hits := 0
		if _, ok := v.AsString(); ok {
			hits++
		}
		if _, ok := v.AsInt(); ok {
			hits++
		}
		if _, ok := v.AsDecimal(); ok {
			hits++
		}
		if _, ok := v.AsTimestamp(); ok {
			hits++
		}
		if _, ok := v.AsChar(); ok {
			hits++
		}
		if _, ok := v.AsBool(); ok {
			hits++
		}
		if _, ok := v.AsBytes(); ok {
			hits++
		}
		assert.Equal(t, 1, hits, "kind %s", v.Kind())
	}
	assert.False(t, Value{}.IsValid())
	assert.Nil(t, Value{}.Interface())
}

func TestValueBytesNotAliased(t *testing.T) {
	src := []byte("abc")
	v := BytesValue(src)
	src[0] = 'x'

	out, ok := v.AsBytes()
	require.True(t, ok)
	assert.Equal(t, "abc", string(out))

	out[1] = 'y'
	again, _ := v.AsBytes()
	assert.Equal(t, "abc", string(again))
}

func TestValueEqualAndString(t *testing.T) {
	assert.True(t, DecimalValue(MustDecimal("1.50")).Equal(DecimalValue(MustDecimal("1.5"))))
	assert.False(t, IntValue(1).Equal(StringValue("1")))
	assert.Equal(t, "Y", BoolValue(true).String())
	assert.Equal(t, "-3", IntValue(-3).String())
	assert.Equal(t, "2", CharValue('2').String())
	assert.Equal(t, "19700101-00:00:00.000", TimestampValue(time.Unix(0, 0)).String())
}

func TestKindNames(t *testing.T) {
	for k := KindString; k <= KindBytes; k++ {
		back, ok := KindOf(k.String())
		require.True(t, ok)
		assert.Equal(t, k, back)
	}
	_, ok := KindOf("invalid")
	assert.False(t, ok)
	assert.Equal(t, "invalid", Kind(200).String())
}

func TestParseDecimal(t *testing.T) {
	tests := []struct {
		in   string
		want Decimal
		str  string
	}{
		{"0", Decimal{0, 0}, "0"},
		{"12", Decimal{12, 0}, "12"},
		{"12.5", Decimal{125, 1}, "12.5"},
		{"+0.005", Decimal{5, 3}, "0.005"},
		{"-0.25", Decimal{-25, 2}, "-0.25"},
		{".5", Decimal{5, 1}, "0.5"},
		{"7.", Decimal{7, 0}, "7"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDecimal(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.str, got.String())
		})
	}

	for _, bad := range []string{"", "-", "1.2.3", "1e5", "abc", ".", "99999999999999999999"} {
		_, err := ParseDecimal(bad)
		assert.Error(t, err, bad)
	}

	assert.InDelta(t, 12.5, MustDecimal("12.5").Float64(), 1e-9)
	assert.Panics(t, func() { MustDecimal("x") })
}

func TestDictionary(t *testing.T) {
	d := StandardDictionary()

	desc, ok := d.Lookup(35)
	require.True(t, ok)
	assert.Equal(t, "MsgType", desc.Name())
	assert.Equal(t, "SenderCompID", d.NameOf(49))
	assert.Equal(t, "9999", d.NameOf(9999))

	assert.True(t, d.Register(NewIntField(9999, "Custom")))
	assert.False(t, d.Register(NewStringField(9999, "Shadow")))
	assert.Equal(t, "Custom", d.NameOf(9999))

	tags := d.Tags()
	assert.Equal(t, Tag(8), tags[0])
	assert.Equal(t, Tag(9999), tags[len(tags)-1])

	var nilDict *Dictionary
	_, ok = nilDict.Lookup(8)
	assert.False(t, ok)
}
