// Package units provides the exact decimal quantity used for meter counters,
// consumption deltas, purchased units and costs.
//
// Meter values are subtracted from each other many times during aggregation,
// so they are kept as arbitrary-precision decimals instead of float64.
//
// Example usage:
//
//	v, err := units.Parse("1523.75")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	used := units.MustParse("1530").Sub(v) // 6.25
package units

import (
	"bytes"
	"fmt"

	"github.com/cockroachdb/apd/v3"
)

// precision is the number of significant digits kept by arithmetic.
const precision = 34

// DivScale is the number of decimal places kept by Div and DivInt.
const DivScale = 12

// Value is an immutable decimal quantity. The zero value is 0.
type Value struct {
	d apd.Decimal
}

// Zero returns the zero quantity.
func Zero() Value {
	return Value{}
}

// Parse parses a decimal string such as "12", "12.5" or "-3.25".
func Parse(s string) (Value, error) {
	var d apd.Decimal
	if _, _, err := d.SetString(s); err != nil {
		return Value{}, fmt.Errorf("%w: %q", ErrInvalidNumber, s)
	}
	if d.Form != apd.Finite {
		return Value{}, fmt.Errorf("%w: %q", ErrInvalidNumber, s)
	}
	return Value{d: d}, nil
}

// MustParse is like Parse but panics on error. Intended for constants and tests.
func MustParse(s string) Value {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// FromInt returns the quantity i.
func FromInt(i int64) Value {
	var d apd.Decimal
	d.SetInt64(i)
	return Value{d: d}
}

// FromFloat converts f. Use only at boundaries that deliver float64 (flags, spreadsheets).
func FromFloat(f float64) (Value, error) {
	var d apd.Decimal
	if _, err := d.SetFloat64(f); err != nil {
		return Value{}, fmt.Errorf("%w: %v", ErrInvalidNumber, f)
	}
	return Value{d: d}, nil
}

func newContext() *apd.Context {
	ctx := apd.BaseContext.WithPrecision(precision)
	ctx.Rounding = apd.RoundHalfUp
	return ctx
}

// Add returns v + other.
func (v Value) Add(other Value) Value {
	var result apd.Decimal
	_, _ = newContext().Add(&result, &v.d, &other.d)
	return Value{d: result}
}

// Sub returns v - other.
func (v Value) Sub(other Value) Value {
	var result apd.Decimal
	_, _ = newContext().Sub(&result, &v.d, &other.d)
	return Value{d: result}
}

// Div returns v / other, or 0 when other is 0.
//
// The quotient is rounded half-up to DivScale decimal places and trailing
// zeros are dropped, so 100/2 is "50" and 50/3 is "16.666666666667".
func (v Value) Div(other Value) Value {
	if other.IsZero() {
		return Zero()
	}
	ctx := newContext()
	var result apd.Decimal
	_, _ = ctx.Quo(&result, &v.d, &other.d)
	if result.Exponent < -DivScale {
		var rounded apd.Decimal
		if _, err := ctx.Quantize(&rounded, &result, -DivScale); err == nil {
			result.Set(&rounded)
		}
	}
	result.Reduce(&result)
	return Value{d: result}
}

// DivInt returns v / n, or 0 when n is 0.
func (v Value) DivInt(n int) Value {
	return v.Div(FromInt(int64(n)))
}

// Round rounds half-up to the given number of decimal places.
func (v Value) Round(places int32) Value {
	var result apd.Decimal
	if _, err := newContext().Quantize(&result, &v.d, -places); err != nil {
		return v
	}
	return Value{d: result}
}

// Cmp compares v and other and returns -1, 0 or +1.
func (v Value) Cmp(other Value) int {
	return v.d.Cmp(&other.d)
}

// Sign returns -1, 0 or +1 depending on the sign of v.
func (v Value) Sign() int {
	return v.d.Sign()
}

// IsZero reports whether v is 0.
func (v Value) IsZero() bool {
	return v.d.IsZero()
}

// String formats v without exponent notation.
func (v Value) String() string {
	return v.d.Text('f')
}

// StringFixed formats v rounded to the given number of decimal places.
func (v Value) StringFixed(places int32) string {
	return v.Round(places).String()
}

// Float64 converts v for sinks that only accept floats (InfluxDB fields, spreadsheet cells).
func (v Value) Float64() float64 {
	f, err := v.d.Float64()
	if err != nil {
		return 0
	}
	return f
}

// MarshalJSON encodes v as a JSON number.
func (v Value) MarshalJSON() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalJSON decodes a JSON number. Quoted numerals are rejected rather than coerced.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) == 0 || data[0] == '"' {
		return fmt.Errorf("%w: got %s", ErrNotNumber, truncate(data))
	}

	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// Sum adds up values.
func Sum(values ...Value) Value {
	total := Zero()
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

func truncate(data []byte) string {
	const maxLen = 32
	if len(data) > maxLen {
		return string(data[:maxLen]) + "..."
	}
	return string(data)
}
