package decimal

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func raw(t *testing.T, d Decimal) uint64 {
	t.Helper()
	v, ok := d.Uint64()
	require.True(t, ok, "value %s does not fit uint64", d)
	return v
}

func maxMagnitude() *uint256.Int {
	one := uint256.NewInt(1)
	return new(uint256.Int).Sub(new(uint256.Int).Lsh(one, 128), one)
}

func TestAddSubRequireMatchingScale(t *testing.T) {
	a := New(1_000_000, 6)
	b := New(100_000_000, 8)
	if _, err := a.Add(b); !errors.Is(err, ErrScaleMismatch) {
		t.Fatalf("expected scale mismatch, got %v", err)
	}
	if _, err := a.Sub(b); !errors.Is(err, ErrScaleMismatch) {
		t.Fatalf("expected scale mismatch, got %v", err)
	}
	if _, err := a.Lt(b); !errors.Is(err, ErrScaleMismatch) {
		t.Fatalf("expected scale mismatch on compare, got %v", err)
	}

	sum, err := a.Add(New(500_000, 6))
	require.NoError(t, err)
	require.Equal(t, uint64(1_500_000), raw(t, sum))
	require.Equal(t, uint8(6), sum.Scale())
}

func TestSubUnderflow(t *testing.T) {
	_, err := New(1, 6).Sub(New(2, 6))
	require.ErrorIs(t, err, ErrUnderflow)

	sat, err := New(1, 6).SaturatingSub(New(2, 6))
	require.NoError(t, err)
	require.True(t, sat.IsZero())
}

func TestAddOverflowBeyond128Bits(t *testing.T) {
	top, err := FromUint256(maxMagnitude(), 0)
	require.NoError(t, err)
	_, err = top.Add(New(1, 0))
	require.ErrorIs(t, err, ErrOverflow)

	wide := new(uint256.Int).Lsh(uint256.NewInt(1), 128)
	_, err = FromUint256(wide, 0)
	require.ErrorIs(t, err, ErrOverflow)
}

func TestMulRounding(t *testing.T) {
	usd := New(1_000_000, 6)
	price := New(150_000_000, 8)
	product, err := usd.Mul(price)
	require.NoError(t, err)
	require.Equal(t, uint64(1_500_000), raw(t, product))
	require.Equal(t, uint8(6), product.Scale())

	half := New(50_000_000, 8)
	down, err := New(1, 6).Mul(half)
	require.NoError(t, err)
	require.Equal(t, uint64(0), raw(t, down))
	up, err := New(1, 6).MulUp(half)
	require.NoError(t, err)
	require.Equal(t, uint64(1), raw(t, up))

	exact, err := New(4, 6).MulUp(half)
	require.NoError(t, err)
	require.Equal(t, uint64(2), raw(t, exact))
}

func TestDivRounding(t *testing.T) {
	three := New(3, 0)
	down, err := New(1_000_000, 6).Div(three)
	require.NoError(t, err)
	require.Equal(t, uint64(333_333), raw(t, down))

	up, err := New(1_000_000, 6).DivUp(three)
	require.NoError(t, err)
	require.Equal(t, uint64(333_334), raw(t, up))

	exact, err := New(900_000, 6).DivUp(three)
	require.NoError(t, err)
	require.Equal(t, uint64(300_000), raw(t, exact))

	one, err := New(7, 6).DivUp(New(1, 0))
	require.NoError(t, err)
	require.Equal(t, uint64(7), raw(t, one))

	_, err = New(1, 6).Div(Zero(6))
	require.ErrorIs(t, err, ErrDivisionByZero)
}

func TestDivToScale(t *testing.T) {
	value := New(100_000_000, 6) // 100 USD
	price := New(200_000_000, 8) // 2.0

	cases := []struct {
		target uint8
		want   uint64
	}{
		{target: 6, want: 50_000_000},
		{target: 9, want: 50_000_000_000},
		{target: 3, want: 50_000},
	}
	for _, tc := range cases {
		got, err := value.DivToScale(price, tc.target)
		require.NoError(t, err)
		require.Equal(t, tc.want, raw(t, got), "target %d", tc.target)
		require.Equal(t, tc.target, got.Scale())
	}

	// negative shift: 2.5 / 2 at scale 0
	twoAndHalf := New(25_000_000_000, 10)
	floor, err := twoAndHalf.DivToScale(New(2, 0), 0)
	require.NoError(t, err)
	require.Equal(t, uint64(1), raw(t, floor))
	ceil, err := twoAndHalf.DivToScaleUp(New(2, 0), 0)
	require.NoError(t, err)
	require.Equal(t, uint64(2), raw(t, ceil))
}

func TestMulInverse(t *testing.T) {
	got, err := New(2_000_000, 6).MulInverse(New(4_000_000, 6))
	require.NoError(t, err)
	require.Equal(t, uint64(500_000), raw(t, got))
	require.Equal(t, uint8(6), got.Scale())
}

func TestToScale(t *testing.T) {
	d := New(1_234_567, 6)

	down, err := d.ToScale(3)
	require.NoError(t, err)
	require.Equal(t, uint64(1_234), raw(t, down))

	up, err := d.ToScaleUp(3)
	require.NoError(t, err)
	require.Equal(t, uint64(1_235), raw(t, up))

	wider, err := d.ToScale(8)
	require.NoError(t, err)
	require.Equal(t, uint64(123_456_700), raw(t, wider))

	same, err := d.ToScaleUp(6)
	require.NoError(t, err)
	require.Equal(t, raw(t, d), raw(t, same))
}

func TestPowWithAccuracy(t *testing.T) {
	r, err := New(1_100_000, 6).PowWithAccuracy(2)
	require.NoError(t, err)
	require.Equal(t, uint64(1_210_000), raw(t, r))

	r, err = New(1_100_000, 6).PowWithAccuracy(0)
	require.NoError(t, err)
	require.Equal(t, uint64(1_000_000), raw(t, r))

	// intermediate products truncate at the base scale
	r, err = New(15, 1).PowWithAccuracy(2)
	require.NoError(t, err)
	require.Equal(t, uint64(22), raw(t, r))

	// one plus a per-minute rate at scale 18
	base, err := One(InterestRateScale).Add(New(15_000_000_000, InterestRateScale))
	require.NoError(t, err)
	r, err = base.PowWithAccuracy(1)
	require.NoError(t, err)
	require.Equal(t, raw(t, base), raw(t, r))
}

func TestPowSkipsFinalSquare(t *testing.T) {
	// 2^64 at scale 0 fits, but squaring the base once more would not.
	two := New(2, 0)
	r, err := two.PowWithAccuracy(64)
	require.NoError(t, err)
	want := new(uint256.Int).Lsh(uint256.NewInt(1), 64)
	require.True(t, r.Value().Eq(want))
}

func TestMulDiv(t *testing.T) {
	q, err := MulDiv(uint256.NewInt(10), uint256.NewInt(10), uint256.NewInt(3), false)
	require.NoError(t, err)
	require.Equal(t, uint64(33), q.Uint64())
	q, err = MulDiv(uint256.NewInt(10), uint256.NewInt(10), uint256.NewInt(3), true)
	require.NoError(t, err)
	require.Equal(t, uint64(34), q.Uint64())

	// exact quotients are not bumped
	q, err = MulDiv(uint256.NewInt(9), uint256.NewInt(10), uint256.NewInt(3), true)
	require.NoError(t, err)
	require.Equal(t, uint64(30), q.Uint64())

	_, err = MulDiv(uint256.NewInt(1), uint256.NewInt(1), new(uint256.Int), false)
	require.ErrorIs(t, err, ErrDivisionByZero)

	// the intermediate may be wide, the result must fit 128 bits
	q, err = MulDiv(maxMagnitude(), maxMagnitude(), maxMagnitude(), false)
	require.NoError(t, err)
	require.True(t, q.Eq(maxMagnitude()))
	_, err = MulDiv(maxMagnitude(), uint256.NewInt(2), uint256.NewInt(1), false)
	require.ErrorIs(t, err, ErrOverflow)
}

func TestParseAndString(t *testing.T) {
	d, err := Parse("12.5", 6)
	require.NoError(t, err)
	require.Equal(t, uint64(12_500_000), raw(t, d))
	require.Equal(t, "12.500000", d.String())

	_, err = Parse("1.0000001", 6)
	require.ErrorIs(t, err, ErrPrecision)

	_, err = Parse("-1", 6)
	require.ErrorIs(t, err, ErrUnderflow)

	_, err = Parse("abc", 6)
	require.Error(t, err)

	require.Equal(t, "0.15000", FromPercent(15).String())
}

func TestJSONInfersScale(t *testing.T) {
	payload, err := json.Marshal(New(12_500_000, 6))
	require.NoError(t, err)
	require.JSONEq(t, `"12.500000"`, string(payload))

	var decoded Decimal
	require.NoError(t, json.Unmarshal(payload, &decoded))
	require.Equal(t, uint8(6), decoded.Scale())
	require.Equal(t, uint64(12_500_000), raw(t, decoded))

	require.NoError(t, json.Unmarshal([]byte(`3`), &decoded))
	require.Equal(t, uint8(0), decoded.Scale())
}

func TestRLPRoundTrip(t *testing.T) {
	original := New(987_654_321, 8)
	encoded, err := rlp.EncodeToBytes(original)
	require.NoError(t, err)

	var decoded Decimal
	require.NoError(t, rlp.DecodeBytes(encoded, &decoded))
	eq, err := decoded.Eq(original)
	require.NoError(t, err)
	require.True(t, eq)
}
