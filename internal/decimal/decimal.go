// Package decimal provides the fixed-point primitive used throughout
// fasttrade for prices, quantities, and money. It wraps
// github.com/shopspring/decimal rather than hand-rolling fixed-point
// arithmetic: the teacher's own domain packages (see
// wyfcoding-pkg/algorithm/finance) reach for shopspring/decimal for the
// same reason, and the original fasttrade C++ primitive only needs to be
// matched behaviorally, not reimplemented from scratch.
package decimal

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Digits is the fixed number of fractional decimal digits carried by
// every Decimal value.
const Digits = 18

func init() {
	// Division needs at least Digits of working precision before we
	// truncate toward zero; shopspring's default (16) is two digits short.
	decimal.DivisionPrecision = Digits + 4
}

// Decimal is a signed fixed-point number with exactly Digits fractional
// decimal digits. Addition and subtraction are exact. Multiplication and
// division round toward zero at the 18th fractional digit.
type Decimal struct {
	d decimal.Decimal
}

// Zero is the canonical zero value.
var Zero = Decimal{d: decimal.Zero}

// New parses s, accepting an optional leading sign, an integer part, and
// up to Digits fractional digits; excess fractional digits are truncated
// (not rounded). An empty string parses as Zero, matching the original
// primitive's str-construction contract.
func New(s string) (Decimal, error) {
	if s == "" {
		return Zero, nil
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return Zero, err
	}
	return Decimal{d: v.Truncate(Digits)}, nil
}

// MustNew is New but panics on a parse error; intended for literals in
// tests and constant-ish initialization, never for untrusted input.
func MustNew(s string) Decimal {
	v, err := New(s)
	if err != nil {
		panic(err)
	}
	return v
}

// FromInt64 constructs a Decimal representing an integer value.
func FromInt64(v int64) Decimal {
	return Decimal{d: decimal.NewFromInt(v)}
}

// Add returns d+other, exactly.
func (d Decimal) Add(other Decimal) Decimal {
	return Decimal{d: d.d.Add(other.d)}
}

// Sub returns d-other, exactly.
func (d Decimal) Sub(other Decimal) Decimal {
	return Decimal{d: d.d.Sub(other.d)}
}

// Mul returns d*other, rounded toward zero at the 18th fractional digit.
func (d Decimal) Mul(other Decimal) Decimal {
	return Decimal{d: d.d.Mul(other.d).Truncate(Digits)}
}

// Div returns d/other, rounded toward zero at the 18th fractional digit.
// Div panics if other is zero, matching integer division semantics; callers
// in this codebase always guard with IsZero first.
func (d Decimal) Div(other Decimal) Decimal {
	return Decimal{d: d.d.Div(other.d).Truncate(Digits)}
}

// Neg returns -d.
func (d Decimal) Neg() Decimal {
	return Decimal{d: d.d.Neg()}
}

// Abs returns |d|.
func (d Decimal) Abs() Decimal {
	return Decimal{d: d.d.Abs()}
}

func (d Decimal) Cmp(other Decimal) int  { return d.d.Cmp(other.d) }
func (d Decimal) Equal(o Decimal) bool   { return d.d.Equal(o.d) }
func (d Decimal) LessThan(o Decimal) bool        { return d.d.LessThan(o.d) }
func (d Decimal) LessThanOrEqual(o Decimal) bool { return d.d.LessThanOrEqual(o.d) }
func (d Decimal) GreaterThan(o Decimal) bool        { return d.d.GreaterThan(o.d) }
func (d Decimal) GreaterThanOrEqual(o Decimal) bool { return d.d.GreaterThanOrEqual(o.d) }

func (d Decimal) IsZero() bool     { return d.d.IsZero() }
func (d Decimal) IsPositive() bool { return d.d.IsPositive() }
func (d Decimal) IsNegative() bool { return d.d.IsNegative() }

// Min returns the lesser of a and b.
func Min(a, b Decimal) Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// Max returns the greater of a and b.
func Max(a, b Decimal) Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// Float64 returns an inexact float64 approximation, for logging and
// metrics only — never for a value that flows back into arithmetic.
func (d Decimal) Float64() float64 {
	f, _ := d.d.Float64()
	return f
}

// String renders the canonical form: no trailing fractional zeros, no
// decimal point when the value is a whole number, no leading '+', and a
// single "0" for zero.
func (d Decimal) String() string {
	s := d.d.Truncate(Digits).StringFixed(Digits)
	if idx := strings.IndexByte(s, '.'); idx >= 0 {
		s = strings.TrimRight(s, "0")
		s = strings.TrimRight(s, ".")
	}
	if s == "" || s == "-" || s == "-0" {
		s = "0"
	}
	return s
}

// MarshalJSON renders the Decimal as a canonical JSON string, so that the
// wire serialization round-trips bit-exactly (spec invariant: Decimal
// never travels as a JSON number, to avoid float64 re-encoding loss).
func (d Decimal) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON accepts either a JSON string or a bare JSON number, since
// some upstream venue feeds emit unquoted numeric ticks.
func (d *Decimal) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	v, err := New(s)
	if err != nil {
		return err
	}
	*d = v
	return nil
}
