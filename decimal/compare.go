package decimal

// Cmp compares two decimals of equal scale, returning -1, 0 or 1.
func (d Decimal) Cmp(other Decimal) (int, error) {
	if d.scale != other.scale {
		return 0, ErrScaleMismatch
	}
	return d.value.Cmp(&other.value), nil
}

// Eq reports d == other.
func (d Decimal) Eq(other Decimal) (bool, error) {
	c, err := d.Cmp(other)
	return c == 0, err
}

// Lt reports d < other.
func (d Decimal) Lt(other Decimal) (bool, error) {
	c, err := d.Cmp(other)
	return c < 0, err
}

// Lte reports d <= other.
func (d Decimal) Lte(other Decimal) (bool, error) {
	c, err := d.Cmp(other)
	return c <= 0, err
}

// Gt reports d > other.
func (d Decimal) Gt(other Decimal) (bool, error) {
	c, err := d.Cmp(other)
	return c > 0, err
}

// Gte reports d >= other.
func (d Decimal) Gte(other Decimal) (bool, error) {
	c, err := d.Cmp(other)
	return c >= 0, err
}

// Min returns the smaller of two decimals of equal scale.
func Min(a, b Decimal) (Decimal, error) {
	lt, err := a.Lt(b)
	if err != nil {
		return Decimal{}, err
	}
	if lt {
		return a, nil
	}
	return b, nil
}

// Max returns the larger of two decimals of equal scale.
func Max(a, b Decimal) (Decimal, error) {
	gt, err := a.Gt(b)
	if err != nil {
		return Decimal{}, err
	}
	if gt {
		return a, nil
	}
	return b, nil
}
