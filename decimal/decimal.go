// Package decimal provides the unsigned fixed-point type the vault math is
// specified in: values scaled by 10^18 and bounded at 192 bits. Every
// operation is checked; nothing silently wraps.
package decimal

import (
	"errors"
	"fmt"
	"math/big"
)

// ErrMathOverflow reports a checked operation exceeding 192 bits or dividing
// by zero.
var ErrMathOverflow = errors.New("math overflow")

const (
	// Wad is the number of fractional decimal digits.
	Wad = 18

	maxBits = 192
)

var (
	wadScale = new(big.Int).Exp(big.NewInt(10), big.NewInt(Wad), nil)
	halfWad  = new(big.Int).Div(wadScale, big.NewInt(2))
)

// Decimal is an unsigned fixed-point number scaled by 10^18.
type Decimal struct {
	value *big.Int
}

// Zero returns the zero value.
func Zero() Decimal {
	return Decimal{value: new(big.Int)}
}

// FromU64 scales an integer amount up into a Decimal.
func FromU64(amount uint64) Decimal {
	out := new(big.Int).SetUint64(amount)
	out.Mul(out, wadScale)
	return Decimal{value: out}
}

// FromScaled wraps an already-scaled raw value.
func FromScaled(scaled *big.Int) (Decimal, error) {
	if scaled.Sign() < 0 || scaled.BitLen() > maxBits {
		return Decimal{}, ErrMathOverflow
	}
	return Decimal{value: new(big.Int).Set(scaled)}, nil
}

func (d Decimal) raw() *big.Int {
	if d.value == nil {
		return new(big.Int)
	}
	return d.value
}

// Add returns d + other.
func (d Decimal) Add(other Decimal) (Decimal, error) {
	return checked(new(big.Int).Add(d.raw(), other.raw()))
}

// Sub returns d - other, failing when other exceeds d.
func (d Decimal) Sub(other Decimal) (Decimal, error) {
	out := new(big.Int).Sub(d.raw(), other.raw())
	if out.Sign() < 0 {
		return Decimal{}, ErrMathOverflow
	}
	return checked(out)
}

// Mul returns d * other.
func (d Decimal) Mul(other Decimal) (Decimal, error) {
	out := new(big.Int).Mul(d.raw(), other.raw())
	out.Div(out, wadScale)
	return checked(out)
}

// Div returns d / other.
func (d Decimal) Div(other Decimal) (Decimal, error) {
	if other.raw().Sign() == 0 {
		return Decimal{}, ErrMathOverflow
	}
	out := new(big.Int).Mul(d.raw(), wadScale)
	out.Div(out, other.raw())
	return checked(out)
}

// TryFloorU64 truncates the fractional part and returns the integer amount.
func (d Decimal) TryFloorU64() (uint64, error) {
	out := new(big.Int).Div(d.raw(), wadScale)
	if !out.IsUint64() {
		return 0, ErrMathOverflow
	}
	return out.Uint64(), nil
}

// TryRoundU64 rounds half up and returns the integer amount.
func (d Decimal) TryRoundU64() (uint64, error) {
	out := new(big.Int).Add(d.raw(), halfWad)
	out.Div(out, wadScale)
	if !out.IsUint64() {
		return 0, ErrMathOverflow
	}
	return out.Uint64(), nil
}

// Cmp compares d and other, returning -1, 0 or 1.
func (d Decimal) Cmp(other Decimal) int {
	return d.raw().Cmp(other.raw())
}

// IsZero reports whether d is zero.
func (d Decimal) IsZero() bool {
	return d.raw().Sign() == 0
}

// String renders the value with full fractional precision.
func (d Decimal) String() string {
	quo, rem := new(big.Int).QuoRem(d.raw(), wadScale, new(big.Int))
	return fmt.Sprintf("%s.%018s", quo.String(), rem.String())
}

func checked(raw *big.Int) (Decimal, error) {
	if raw.Sign() < 0 || raw.BitLen() > maxBits {
		return Decimal{}, ErrMathOverflow
	}
	return Decimal{value: raw}, nil
}
