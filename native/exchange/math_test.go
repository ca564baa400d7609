package exchange

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"synthex/decimal"
)

func pricedList(t *testing.T, snyPrice, btcPrice uint64) *AssetsList {
	t.Helper()
	_, list, err := BuildGenesis(testGenesis())
	require.NoError(t, err)
	list.Assets[1].Price = decimal.FromPrice(snyPrice)
	list.Assets[2].Price = decimal.FromPrice(btcPrice)
	return list
}

func TestIsStale(t *testing.T) {
	require.False(t, isStale(990, 1_000, 10))
	require.True(t, isStale(989, 1_000, 10))
	require.False(t, isStale(0, 10, 10), "slots inside the first delay window are never stale")
}

func TestTotalDebtRoundsEachSyntheticUp(t *testing.T) {
	list := pricedList(t, 200_000_000, 100_000_000)
	list.Synthetics[0].Supply = decimal.FromUSD(100 * oneUSD)
	// 3e-8 BTC at $1 is worth less than one raw USD unit
	list.Synthetics[1].Supply = decimal.New(3, 8)

	total, err := TotalDebt(list, 5, 10)
	require.NoError(t, err)
	require.Equal(t, uint64(100*oneUSD+1), rawOf(t, total))

	list.Synthetics[1].BorrowedSupply = decimal.New(3, 8)
	total, err = TotalDebt(list, 5, 10)
	require.NoError(t, err)
	require.Equal(t, uint64(100*oneUSD), rawOf(t, total), "borrowed supply is not debt")

	// borrowed supply swapped away leaves no negative debt behind
	list.Synthetics[1].BorrowedSupply = decimal.New(5, 8)
	total, err = TotalDebt(list, 5, 10)
	require.NoError(t, err)
	require.Equal(t, uint64(100*oneUSD), rawOf(t, total))
}

func TestTotalDebtRejectsStalePrice(t *testing.T) {
	list := pricedList(t, 200_000_000, 100_000_000)
	list.Synthetics[1].Supply = decimal.New(1, 8)
	_, err := TotalDebt(list, genesisSlot+100, 10)
	require.True(t, errors.Is(err, ErrOutdatedOracle), "got %v", err)

	// the USD synthetic alone never goes stale
	list.Synthetics = list.Synthetics[:1]
	_, err = TotalDebt(list, genesisSlot+100, 10)
	require.NoError(t, err)
}

func TestMaxDebtAddsFloor(t *testing.T) {
	list := pricedList(t, 200_000_000, 5_000_000_000_000)
	acc := NewExchangeAccount(userAddr, genesisSlot)
	maxDebt, err := MaxDebt(acc, list, 5, 10)
	require.NoError(t, err)
	require.Equal(t, uint64(1), rawOf(t, maxDebt))

	require.NoError(t, acc.AppendCollateral(CollateralEntry{Amount: 1_000 * oneSNY, CollateralAddress: snyToken, Index: 0}))
	maxDebt, err = MaxDebt(acc, list, 5, 10)
	require.NoError(t, err)
	require.Equal(t, uint64(1_000*oneUSD+1), rawOf(t, maxDebt))
}

func TestUserDebtRoundsUp(t *testing.T) {
	debt, err := UserDebt(1, 3, decimal.FromUSD(100))
	require.NoError(t, err)
	require.Equal(t, uint64(34), rawOf(t, debt))

	debt, err = UserDebt(5, 0, decimal.FromUSD(100))
	require.NoError(t, err)
	require.True(t, debt.IsZero())
}

func TestMaxWithdrawableUSD(t *testing.T) {
	half := decimal.FromPercent(50)
	usd, err := MaxWithdrawableUSD(decimal.FromUSD(500*oneUSD), decimal.FromUSD(250*oneUSD), half, half)
	require.NoError(t, err)
	require.Equal(t, uint64(1_000*oneUSD), rawOf(t, usd))

	usd, err = MaxWithdrawableUSD(decimal.FromUSD(100), decimal.FromUSD(101), half, half)
	require.NoError(t, err)
	require.True(t, usd.IsZero())
}

func TestShareConversions(t *testing.T) {
	shares, err := NewSharesRoundingUp(0, decimal.Zero(decimal.USDScale), decimal.FromUSD(500*oneUSD))
	require.NoError(t, err)
	require.Equal(t, 500*oneUSD, shares, "empty pool bootstraps 1:1")

	up, err := NewSharesRoundingUp(1_000, decimal.FromUSD(3_000), decimal.FromUSD(1))
	require.NoError(t, err)
	down, err := NewSharesRoundingDown(1_000, decimal.FromUSD(3_000), decimal.FromUSD(1))
	require.NoError(t, err)
	require.Equal(t, uint64(1), up)
	require.Equal(t, uint64(0), down)

	burned, err := AmountToSharesRoundingDown(0, decimal.FromUSD(10), decimal.FromUSD(5))
	require.NoError(t, err)
	require.Zero(t, burned)
	burned, err = AmountToSharesRoundingUp(300, decimal.Zero(decimal.USDScale), decimal.FromUSD(5))
	require.NoError(t, err)
	require.Zero(t, burned)
	burned, err = AmountToSharesRoundingUp(300, decimal.FromUSD(7), decimal.FromUSD(5))
	require.NoError(t, err)
	require.Equal(t, uint64(215), burned)

	_, err = NewSharesRoundingUp(1, decimal.FromUSD(1), decimal.New(1, 8))
	require.True(t, errors.Is(err, ErrScaleMismatch), "got %v", err)
}

func TestSharesOfLargePool(t *testing.T) {
	allShares := uint64(10_001 * oneUSD)
	pool := decimal.FromUSD(988_409 * oneUSD)
	amount := decimal.FromUSD(579_112)

	down, err := AmountToSharesRoundingDown(allShares, pool, amount)
	require.NoError(t, err)
	require.Equal(t, uint64(5_859), down)
	up, err := AmountToSharesRoundingUp(allShares, pool, amount)
	require.NoError(t, err)
	require.Equal(t, uint64(5_860), up)

	minted, err := NewSharesRoundingDown(allShares, pool, amount)
	require.NoError(t, err)
	require.Equal(t, uint64(5_859), minted)
	minted, err = NewSharesRoundingUp(allShares, pool, amount)
	require.NoError(t, err)
	require.Equal(t, uint64(5_860), minted)
}

func TestCompoundedInterestSinglePeriod(t *testing.T) {
	rate := decimal.New(15_000_000_000, decimal.InterestRateScale)
	interest, err := CompoundedInterest(decimal.FromUSD(100_000*oneUSD), rate, 1)
	require.NoError(t, err)
	require.Equal(t, uint8(decimal.USDScale), interest.Scale())
	require.Equal(t, uint64(1_500), rawOf(t, interest))
	require.Equal(t, "0.001500", interest.String())
}

func TestUserDebtNeverUnderstatesShareValue(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		global := uint64(rng.Int63n(1_000_000_000_000)) + 1
		shares := uint64(rng.Int63n(int64(global))) + 1
		total := decimal.FromUSD(uint64(rng.Int63n(1_000_000_000_000_000)))

		debt, err := UserDebt(shares, global, total)
		require.NoError(t, err)

		// shares/global of total, rounded up by less than one raw unit
		lhs := new(uint256.Int).Mul(debt.Value(), uint256.NewInt(global))
		rhs := new(uint256.Int).Mul(total.Value(), uint256.NewInt(shares))
		require.False(t, lhs.Lt(rhs), "debt %s understates %d/%d of %s", debt, shares, global, total)
		slack := new(uint256.Int).Sub(lhs, rhs)
		require.True(t, slack.Lt(uint256.NewInt(global)), "debt %s rounded up by a full unit", debt)
	}
}

func TestMaxWithdrawableNeverExceedsExactValue(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	percentUnit := uint256.NewInt(100_000)
	for i := 0; i < 500; i++ {
		userDebt := uint64(rng.Int63n(1_000_000_000_000))
		maxDebt := userDebt + uint64(rng.Int63n(1_000_000_000_000))
		ratio := uint64(rng.Int63n(100_000)) + 1
		health := uint64(rng.Int63n(100_000)) + 1

		usd, err := MaxWithdrawableUSD(decimal.FromUSD(maxDebt), decimal.FromUSD(userDebt),
			decimal.New(ratio, decimal.PercentScale), decimal.New(health, decimal.PercentScale))
		require.NoError(t, err)

		// usd * ratio * health <= (maxDebt - userDebt) * 100000^2
		got := new(uint256.Int).Mul(usd.Value(), uint256.NewInt(ratio))
		got.Mul(got, uint256.NewInt(health))
		exact := new(uint256.Int).Mul(uint256.NewInt(maxDebt-userDebt), percentUnit)
		exact.Mul(exact, percentUnit)
		require.False(t, exact.Lt(got), "withdrawable %s exceeds (%d-%d)/%d/%d", usd, maxDebt, userDebt, ratio, health)
	}
}

func TestMinuteRateAndCompounding(t *testing.T) {
	rate, err := MinuteRate(decimal.FromPercent(1))
	require.NoError(t, err)
	require.Equal(t, uint8(decimal.InterestRateScale), rate.Scale())
	require.Equal(t, uint64(19_025_875_191), rawOf(t, rate))

	interest, err := CompoundedInterest(decimal.FromUSD(100_000*oneUSD), rate, 1)
	require.NoError(t, err)
	require.Equal(t, uint64(1_903), rawOf(t, interest))

	none, err := CompoundedInterest(decimal.FromUSD(100_000*oneUSD), rate, 0)
	require.NoError(t, err)
	require.True(t, none.IsZero())
}

func TestDiscountPercent(t *testing.T) {
	cases := []struct {
		tokens uint64
		want   uint64
	}{
		{0, 0},
		{99, 0},
		{100, 1},
		{999, 3},
		{1_000, 4},
		{100_000, 10},
		{5_000_000, 15},
		{10_000_000, 15},
	}
	for _, tc := range cases {
		got := DiscountPercent(decimal.New(tc.tokens*oneSNY, 6))
		require.Equal(t, tc.want, got, "balance %d", tc.tokens)
	}
	require.Equal(t, uint64(0), DiscountPercent(decimal.New(99_999_999, 6)), "fractions round down")
}

func TestEffectiveFee(t *testing.T) {
	fee, err := EffectiveFee(decimal.New(300, decimal.PercentScale), 4)
	require.NoError(t, err)
	require.Equal(t, uint64(288), rawOf(t, fee))

	fee, err = EffectiveFee(decimal.New(300, decimal.PercentScale), 0)
	require.NoError(t, err)
	require.Equal(t, uint64(300), rawOf(t, fee))
}

func TestQuoteSwap(t *testing.T) {
	quote, err := QuoteSwap(
		decimal.FromPrice(100_000_000),
		decimal.FromPrice(5_000_000_000_000),
		decimal.FromUSD(100*oneUSD),
		8,
		decimal.New(288, decimal.PercentScale),
	)
	require.NoError(t, err)
	require.Equal(t, uint64(100*oneUSD), rawOf(t, quote.ValueIn))
	require.Equal(t, uint64(288_000), rawOf(t, quote.Fee))
	require.Equal(t, uint64(99_712_000), rawOf(t, quote.ValueOut))
	require.Equal(t, uint64(199_424), rawOf(t, quote.AmountOut))
	require.Equal(t, uint8(8), quote.AmountOut.Scale())
}

func TestQuoteLiquidation(t *testing.T) {
	quote, err := QuoteLiquidation(
		decimal.FromUSD(500*oneUSD),
		decimal.FromUSD(1_000*oneUSD),
		decimal.FromPercent(20),
		decimal.FromPercent(5),
		decimal.FromPercent(5),
		decimal.FromPrice(80_000_000),
		6,
	)
	require.NoError(t, err)
	require.Equal(t, uint64(100*oneUSD), rawOf(t, quote.Repaid))
	require.Equal(t, uint64(110*oneUSD), rawOf(t, quote.SeizedUSD))
	require.Equal(t, uint64(137_500_000), rawOf(t, quote.Seized))
	require.Equal(t, uint64(6_250_000), rawOf(t, quote.ToExchange))
	require.Equal(t, uint64(131_250_000), rawOf(t, quote.ToLiquidator))

	small, err := QuoteLiquidation(
		decimal.FromUSD(500*oneUSD),
		decimal.FromUSD(10*oneUSD),
		decimal.FromPercent(20),
		decimal.FromPercent(5),
		decimal.FromPercent(5),
		decimal.FromPrice(80_000_000),
		6,
	)
	require.NoError(t, err)
	require.Equal(t, uint64(10*oneUSD), rawOf(t, small.Repaid), "requests under the cap are honoured")
}

func TestProportional(t *testing.T) {
	reward, err := proportional(decimal.New(100, 6), 100, 400)
	require.NoError(t, err)
	require.Equal(t, uint64(25), rawOf(t, reward))

	reward, err = proportional(decimal.New(100, 6), 1, 3)
	require.NoError(t, err)
	require.Equal(t, uint64(33), rawOf(t, reward))

	reward, err = proportional(decimal.New(100, 6), 1, 0)
	require.NoError(t, err)
	require.True(t, reward.IsZero())
}
