package fields

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

// Decimal is a fixed-point number: Unscaled * 10^-Scale.
// FIX prices and quantities are carried this way so no precision is lost to float64.
type Decimal struct {
	Unscaled int64
	Scale    uint8
}

var (
	errEmptyDecimal    = errors.New("empty decimal")
	errDecimalSyntax   = errors.New("invalid decimal syntax")
	errDecimalOverflow = errors.New("decimal overflows int64")
)

// ParseDecimal parses the FIX float representation: optional sign, digits and at
// most one decimal point. Exponents are not part of the wire format.
func ParseDecimal(s string) (Decimal, error) {
	if s == "" {
		return Decimal{}, errEmptyDecimal
	}
	neg := false
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}
	if s == "" {
		return Decimal{}, errDecimalSyntax
	}

	var (
		unscaled uint64
		scale    int
		seenDot  bool
		digits   int
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '.' {
			if seenDot {
				return Decimal{}, errDecimalSyntax
			}
			seenDot = true
			continue
		}
		if c < '0' || c > '9' {
			return Decimal{}, errDecimalSyntax
		}
		digits++
		if unscaled > (math.MaxInt64-uint64(c-'0'))/10 {
			return Decimal{}, errDecimalOverflow
		}
		unscaled = unscaled*10 + uint64(c-'0')
		if seenDot {
			scale++
		}
	}
	if digits == 0 || scale > math.MaxUint8 {
		return Decimal{}, errDecimalSyntax
	}

	d := Decimal{Unscaled: int64(unscaled), Scale: uint8(scale)}
	if neg {
		d.Unscaled = -d.Unscaled
	}
	return d, nil
}

// MustDecimal is ParseDecimal for literals; it panics on malformed input.
func MustDecimal(s string) Decimal {
	d, err := ParseDecimal(s)
	if err != nil {
		panic("fixflow: invalid decimal literal " + strconv.Quote(s))
	}
	return d
}

func (d Decimal) String() string {
	neg := d.Unscaled < 0
	u := uint64(d.Unscaled)
	if neg {
		u = uint64(-d.Unscaled)
	}
	digits := strconv.FormatUint(u, 10)

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	scale := int(d.Scale)
	if scale == 0 {
		b.WriteString(digits)
		return b.String()
	}
	if len(digits) <= scale {
		b.WriteString("0.")
		b.WriteString(strings.Repeat("0", scale-len(digits)))
		b.WriteString(digits)
		return b.String()
	}
	b.WriteString(digits[:len(digits)-scale])
	b.WriteByte('.')
	b.WriteString(digits[len(digits)-scale:])
	return b.String()
}

// Float64 converts to the nearest float64.
func (d Decimal) Float64() float64 {
	return float64(d.Unscaled) / math.Pow10(int(d.Scale))
}

// Normalize strips trailing fractional zeros, so 1.50 and 1.5 normalise identically.
func (d Decimal) Normalize() Decimal {
	for d.Scale > 0 && d.Unscaled%10 == 0 {
		d.Unscaled /= 10
		d.Scale--
	}
	return d
}

// Equal compares numeric value regardless of scale.
func (d Decimal) Equal(other Decimal) bool {
	return d.Normalize() == other.Normalize()
}
