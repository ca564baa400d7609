package decimal

import "github.com/holiman/uint256"

// MulDiv computes x*y/d with a 512-bit intermediate, rounding toward zero or
// away from it. The result must fit the 128-bit magnitude.
func MulDiv(x, y, d *uint256.Int, up bool) (*uint256.Int, error) {
	if d.IsZero() {
		return nil, ErrDivisionByZero
	}
	quotient, overflow := new(uint256.Int).MulDivOverflow(x, y, d)
	if overflow {
		return nil, ErrOverflow
	}
	if up && !new(uint256.Int).MulMod(x, y, d).IsZero() {
		if _, carry := quotient.AddOverflow(quotient, uint256.NewInt(1)); carry {
			return nil, ErrOverflow
		}
	}
	if quotient.BitLen() > magnitudeBits {
		return nil, ErrOverflow
	}
	return quotient, nil
}

// Add returns d + other. Both operands must share a scale.
func (d Decimal) Add(other Decimal) (Decimal, error) {
	if d.scale != other.scale {
		return Decimal{}, ErrScaleMismatch
	}
	sum, carry := new(uint256.Int).AddOverflow(&d.value, &other.value)
	if carry {
		return Decimal{}, ErrOverflow
	}
	return bounded(sum, d.scale)
}

// Sub returns d - other. Both operands must share a scale and the result may
// not be negative.
func (d Decimal) Sub(other Decimal) (Decimal, error) {
	if d.scale != other.scale {
		return Decimal{}, ErrScaleMismatch
	}
	if d.value.Lt(&other.value) {
		return Decimal{}, ErrUnderflow
	}
	diff := new(uint256.Int).Sub(&d.value, &other.value)
	return bounded(diff, d.scale)
}

// SaturatingSub returns d - other or zero when other exceeds d.
func (d Decimal) SaturatingSub(other Decimal) (Decimal, error) {
	if d.scale != other.scale {
		return Decimal{}, ErrScaleMismatch
	}
	if d.value.Lt(&other.value) {
		return Zero(d.scale), nil
	}
	return d.Sub(other)
}

func (d Decimal) mul(other Decimal, up bool) (Decimal, error) {
	unit, err := pow10(int(other.scale))
	if err != nil {
		return Decimal{}, err
	}
	product, err := MulDiv(&d.value, &other.value, unit, up)
	if err != nil {
		return Decimal{}, err
	}
	return bounded(product, d.scale)
}

// Mul returns d * other at d's scale, rounded down.
func (d Decimal) Mul(other Decimal) (Decimal, error) {
	return d.mul(other, false)
}

// MulUp returns d * other at d's scale, rounded up.
func (d Decimal) MulUp(other Decimal) (Decimal, error) {
	return d.mul(other, true)
}

func (d Decimal) div(other Decimal, up bool) (Decimal, error) {
	if other.IsZero() {
		return Decimal{}, ErrDivisionByZero
	}
	unit, err := pow10(int(other.scale))
	if err != nil {
		return Decimal{}, err
	}
	quotient, err := MulDiv(&d.value, unit, &other.value, up)
	if err != nil {
		return Decimal{}, err
	}
	return bounded(quotient, d.scale)
}

// Div returns d / other at d's scale, rounded down.
func (d Decimal) Div(other Decimal) (Decimal, error) {
	return d.div(other, false)
}

// DivUp returns d / other at d's scale, rounded up.
func (d Decimal) DivUp(other Decimal) (Decimal, error) {
	return d.div(other, true)
}

func (d Decimal) divToScale(other Decimal, target uint8, up bool) (Decimal, error) {
	if other.IsZero() {
		return Decimal{}, ErrDivisionByZero
	}
	// value(d) / value(other) expressed at target:
	//   d.value * 10^(other.scale + target - d.scale) / other.value
	shift := int(other.scale) + int(target) - int(d.scale)
	var (
		quotient *uint256.Int
		err      error
	)
	if shift >= 0 {
		unit, perr := pow10(shift)
		if perr != nil {
			return Decimal{}, perr
		}
		quotient, err = MulDiv(&d.value, unit, &other.value, up)
	} else {
		unit, perr := pow10(-shift)
		if perr != nil {
			return Decimal{}, perr
		}
		quotient, err = MulDiv(&d.value, uint256.NewInt(1), new(uint256.Int).Mul(&other.value, unit), up)
	}
	if err != nil {
		return Decimal{}, err
	}
	return bounded(quotient, target)
}

// DivToScale returns d / other expressed at target, rounded down.
func (d Decimal) DivToScale(other Decimal, target uint8) (Decimal, error) {
	return d.divToScale(other, target, false)
}

// DivToScaleUp returns d / other expressed at target, rounded up.
func (d Decimal) DivToScaleUp(other Decimal, target uint8) (Decimal, error) {
	return d.divToScale(other, target, true)
}

// MulInverse returns d.value * 10^d.scale / other.value at d's scale. With
// operands of equal scale this is d / other.
func (d Decimal) MulInverse(other Decimal) (Decimal, error) {
	if other.IsZero() {
		return Decimal{}, ErrDivisionByZero
	}
	unit, err := pow10(int(d.scale))
	if err != nil {
		return Decimal{}, err
	}
	quotient, err := MulDiv(&d.value, unit, &other.value, false)
	if err != nil {
		return Decimal{}, err
	}
	return bounded(quotient, d.scale)
}

func (d Decimal) toScale(target uint8, up bool) (Decimal, error) {
	if target == d.scale {
		return d, nil
	}
	if target > d.scale {
		unit, err := pow10(int(target - d.scale))
		if err != nil {
			return Decimal{}, err
		}
		scaled, overflow := new(uint256.Int).MulOverflow(&d.value, unit)
		if overflow {
			return Decimal{}, ErrOverflow
		}
		return bounded(scaled, target)
	}
	unit, err := pow10(int(d.scale - target))
	if err != nil {
		return Decimal{}, err
	}
	scaled, err := MulDiv(&d.value, uint256.NewInt(1), unit, up)
	if err != nil {
		return Decimal{}, err
	}
	return bounded(scaled, target)
}

// ToScale rescales d, rounding down when digits are dropped.
func (d Decimal) ToScale(target uint8) (Decimal, error) {
	return d.toScale(target, false)
}

// ToScaleUp rescales d, rounding up when digits are dropped.
func (d Decimal) ToScaleUp(target uint8) (Decimal, error) {
	return d.toScale(target, true)
}

// ToUSD rescales d to the USD scale, rounding down.
func (d Decimal) ToUSD() (Decimal, error) {
	return d.ToScale(USDScale)
}

// ToUSDUp rescales d to the USD scale, rounding up.
func (d Decimal) ToUSDUp() (Decimal, error) {
	return d.ToScaleUp(USDScale)
}

// PowWithAccuracy raises d to exp by square-and-multiply, every intermediate
// product being truncated to d's scale. The final squaring is skipped so an
// otherwise representable result does not overflow on an unused square.
func (d Decimal) PowWithAccuracy(exp uint64) (Decimal, error) {
	result := One(d.scale)
	if exp == 0 {
		return result, nil
	}
	base := d
	var err error
	for {
		if exp&1 == 1 {
			if result, err = result.Mul(base); err != nil {
				return Decimal{}, err
			}
		}
		exp >>= 1
		if exp == 0 {
			return result, nil
		}
		if base, err = base.Mul(base); err != nil {
			return Decimal{}, err
		}
	}
}
