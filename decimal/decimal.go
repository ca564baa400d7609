// Package decimal implements exact fixed-point decimals over an unsigned
// 128-bit magnitude. A Decimal represents value / 10^scale. Arithmetic never
// rescales implicitly: mixing scales is only possible through the operations
// that name the resulting scale, and every rounding direction is explicit.
package decimal

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"
)

var (
	ErrScaleMismatch  = errors.New("decimal: scale mismatch")
	ErrOverflow       = errors.New("decimal: overflow")
	ErrUnderflow      = errors.New("decimal: underflow")
	ErrDivisionByZero = errors.New("decimal: division by zero")
	ErrInvalidScale   = errors.New("decimal: scale out of range")
	ErrPrecision      = errors.New("decimal: value exceeds scale precision")
)

const (
	// MaxScale is the largest scale whose unit (10^scale) fits the 128-bit
	// magnitude.
	MaxScale = 38

	// magnitudeBits bounds every stored value.
	magnitudeBits = 128
)

// Common scales used across the exchange.
const (
	USDScale          uint8 = 6
	PriceScale        uint8 = 8
	PercentScale      uint8 = 5
	InterestRateScale uint8 = 18
)

var powersOfTen = func() [78]uint256.Int {
	var table [78]uint256.Int
	table[0].SetOne()
	ten := uint256.NewInt(10)
	for i := 1; i < len(table); i++ {
		table[i].Mul(&table[i-1], ten)
	}
	return table
}()

func pow10(exp int) (*uint256.Int, error) {
	if exp < 0 || exp >= len(powersOfTen) {
		return nil, ErrOverflow
	}
	return &powersOfTen[exp], nil
}

// Decimal is a fixed-point number. The zero value is 0 at scale 0.
type Decimal struct {
	value uint256.Int
	scale uint8
}

// New returns value / 10^scale.
func New(value uint64, scale uint8) Decimal {
	d := Decimal{scale: scale}
	d.value.SetUint64(value)
	return d
}

// Zero returns 0 at the supplied scale.
func Zero(scale uint8) Decimal {
	return Decimal{scale: scale}
}

// One returns 1 expressed at the supplied scale.
func One(scale uint8) Decimal {
	d := Decimal{scale: scale}
	if unit, err := pow10(int(scale)); err == nil {
		d.value.Set(unit)
	}
	return d
}

// FromUint256 builds a Decimal from a raw magnitude, rejecting values wider
// than 128 bits.
func FromUint256(value *uint256.Int, scale uint8) (Decimal, error) {
	if value == nil {
		return Zero(scale), nil
	}
	if value.BitLen() > magnitudeBits {
		return Decimal{}, ErrOverflow
	}
	if scale > MaxScale {
		return Decimal{}, ErrInvalidScale
	}
	d := Decimal{scale: scale}
	d.value.Set(value)
	return d, nil
}

// FromBig builds a Decimal from a raw big.Int magnitude.
func FromBig(value *big.Int, scale uint8) (Decimal, error) {
	if value == nil {
		return Zero(scale), nil
	}
	if value.Sign() < 0 {
		return Decimal{}, ErrUnderflow
	}
	converted, overflow := uint256.FromBig(value)
	if overflow {
		return Decimal{}, ErrOverflow
	}
	return FromUint256(converted, scale)
}

// FromInteger returns the whole number n at scale 0.
func FromInteger(n uint64) Decimal {
	return New(n, 0)
}

// FromUSD wraps a raw micro-dollar amount.
func FromUSD(value uint64) Decimal {
	return New(value, USDScale)
}

// FromPrice wraps a raw oracle price.
func FromPrice(value uint64) Decimal {
	return New(value, PriceScale)
}

// FromPercent returns percent/100 at the percent scale, e.g. FromPercent(15)
// is 0.15.
func FromPercent(percent uint64) Decimal {
	return New(percent*1_000, PercentScale)
}

// Scale reports the decimal exponent.
func (d Decimal) Scale() uint8 { return d.scale }

// Value returns a copy of the raw magnitude.
func (d Decimal) Value() *uint256.Int {
	return new(uint256.Int).Set(&d.value)
}

// Uint64 returns the raw magnitude and whether it fits into 64 bits.
func (d Decimal) Uint64() (uint64, bool) {
	return d.value.Uint64(), d.value.IsUint64()
}

// Big returns the raw magnitude as a big.Int.
func (d Decimal) Big() *big.Int {
	return d.value.ToBig()
}

// IsZero reports whether the magnitude is zero.
func (d Decimal) IsZero() bool {
	return d.value.IsZero()
}

// WithScale reinterprets the raw magnitude at another scale without touching
// the digits. It is used when a raw token amount is given the scale of its
// mint.
func (d Decimal) WithScale(scale uint8) Decimal {
	d.scale = scale
	return d
}

func bounded(value *uint256.Int, scale uint8) (Decimal, error) {
	if value.BitLen() > magnitudeBits {
		return Decimal{}, ErrOverflow
	}
	d := Decimal{scale: scale}
	d.value.Set(value)
	return d, nil
}
