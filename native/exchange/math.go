package exchange

import (
	"github.com/holiman/uint256"

	"synthex/decimal"
)

var discountThresholds = [...]uint64{
	0, 100, 200, 500, 1_000, 2_000, 5_000, 10_000, 25_000, 50_000,
	100_000, 250_000, 500_000, 1_000_000, 2_000_000, 5_000_000, 10_000_000,
}

const maxDiscountPercent = 15

func isStale(lastUpdate, slot, maxDelay uint64) bool {
	return slot > maxDelay && lastUpdate < slot-maxDelay
}

// assetPrice returns the price of the asset at index. The static USD asset
// never goes stale.
func assetPrice(list *AssetsList, index uint8, slot, maxDelay uint64, checkStale bool) (decimal.Decimal, error) {
	if int(index) >= len(list.Assets) {
		return decimal.Decimal{}, ErrUnknownAsset.with("asset index %d", index)
	}
	asset := &list.Assets[index]
	if index != usdAssetIndex && checkStale && isStale(asset.LastUpdate, slot, maxDelay) {
		return decimal.Decimal{}, ErrOutdatedOracle.with("asset %s updated at slot %d, now %d", asset.FeedAddress.Hex(), asset.LastUpdate, slot)
	}
	return asset.Price, nil
}

// TotalDebt values the supply of every synthetic minus its borrowed supply
// in USD, rounding each term up.
func TotalDebt(list *AssetsList, slot, maxDelay uint64) (decimal.Decimal, error) {
	return totalDebt(list, slot, maxDelay, true)
}

func totalDebt(list *AssetsList, slot, maxDelay uint64, checkStale bool) (decimal.Decimal, error) {
	total := decimal.Zero(decimal.USDScale)
	for i := range list.Synthetics {
		synthetic := &list.Synthetics[i]
		price, err := assetPrice(list, synthetic.AssetIndex, slot, maxDelay, checkStale)
		if err != nil {
			return decimal.Decimal{}, err
		}
		circulating, err := synthetic.Supply.SaturatingSub(synthetic.BorrowedSupply)
		if err != nil {
			return decimal.Decimal{}, arith(err)
		}
		value, err := price.MulUp(circulating)
		if err != nil {
			return decimal.Decimal{}, arith(err)
		}
		usd, err := value.ToUSDUp()
		if err != nil {
			return decimal.Decimal{}, arith(err)
		}
		if total, err = total.Add(usd); err != nil {
			return decimal.Decimal{}, arith(err)
		}
	}
	return total, nil
}

// CollateralValue returns the USD value of amount raw units of collateral,
// before the collateral ratio is applied.
func CollateralValue(list *AssetsList, collateral *Collateral, amount uint64, slot, maxDelay uint64) (decimal.Decimal, error) {
	price, err := assetPrice(list, collateral.AssetIndex, slot, maxDelay, true)
	if err != nil {
		return decimal.Decimal{}, err
	}
	value, err := price.Mul(decimal.New(amount, collateral.ReserveBalance.Scale()))
	if err != nil {
		return decimal.Decimal{}, arith(err)
	}
	usd, err := value.ToUSD()
	if err != nil {
		return decimal.Decimal{}, arith(err)
	}
	return usd, nil
}

// MaxDebt returns the borrowing capacity of the account: one raw USD unit
// plus the ratio weighted value of every collateral entry.
func MaxDebt(account *ExchangeAccount, list *AssetsList, slot, maxDelay uint64) (decimal.Decimal, error) {
	maxDebt := decimal.FromUSD(1)
	for _, entry := range account.Collaterals {
		if int(entry.Index) >= len(list.Collaterals) {
			return decimal.Decimal{}, ErrUnknownCollateral.with("collateral index %d", entry.Index)
		}
		collateral := &list.Collaterals[entry.Index]
		value, err := CollateralValue(list, collateral, entry.Amount, slot, maxDelay)
		if err != nil {
			return decimal.Decimal{}, err
		}
		weighted, err := value.Mul(collateral.CollateralRatio)
		if err != nil {
			return decimal.Decimal{}, arith(err)
		}
		if maxDebt, err = maxDebt.Add(weighted); err != nil {
			return decimal.Decimal{}, arith(err)
		}
	}
	return maxDebt, nil
}

// UserDebt converts debt shares into USD, rounding up.
func UserDebt(accountShares, globalShares uint64, total decimal.Decimal) (decimal.Decimal, error) {
	if globalShares == 0 {
		return decimal.Zero(total.Scale()), nil
	}
	raw, err := decimal.MulDiv(new(uint256.Int).SetUint64(accountShares), total.Value(), new(uint256.Int).SetUint64(globalShares), true)
	if err != nil {
		return decimal.Decimal{}, arith(err)
	}
	debt, err := decimal.FromUint256(raw, total.Scale())
	return debt, arith(err)
}

// MaxWithdrawableUSD is the USD value of collateral that can leave the
// account: (maxDebt - userDebt) / ratio / health, rounded down.
func MaxWithdrawableUSD(maxDebt, userDebt, collateralRatio, healthFactor decimal.Decimal) (decimal.Decimal, error) {
	under, err := maxDebt.Lt(userDebt)
	if err != nil {
		return decimal.Decimal{}, arith(err)
	}
	if under {
		return decimal.Zero(maxDebt.Scale()), nil
	}
	headroom, err := maxDebt.Sub(userDebt)
	if err != nil {
		return decimal.Decimal{}, arith(err)
	}
	byRatio, err := headroom.Div(collateralRatio)
	if err != nil {
		return decimal.Decimal{}, arith(err)
	}
	result, err := byRatio.Div(healthFactor)
	return result, arith(err)
}

// TokenAmount converts a USD value into raw units of a token at scale,
// rounding down.
func TokenAmount(usd, price decimal.Decimal, scale uint8) (decimal.Decimal, error) {
	amount, err := usd.DivToScale(price, scale)
	return amount, arith(err)
}

// NewSharesRoundingUp returns the shares minted for amount added to a pool.
// An empty pool mints shares 1:1 with the raw amount.
func NewSharesRoundingUp(allShares uint64, pool, amount decimal.Decimal) (uint64, error) {
	return newShares(allShares, pool, amount, true)
}

// NewSharesRoundingDown is NewSharesRoundingUp with the result rounded down.
func NewSharesRoundingDown(allShares uint64, pool, amount decimal.Decimal) (uint64, error) {
	return newShares(allShares, pool, amount, false)
}

func newShares(allShares uint64, pool, amount decimal.Decimal, up bool) (uint64, error) {
	if pool.Scale() != amount.Scale() {
		return 0, arith(decimal.ErrScaleMismatch)
	}
	if allShares == 0 {
		raw, ok := amount.Uint64()
		if !ok {
			return 0, ErrOverflow.with("share amount exceeds 64 bits")
		}
		return raw, nil
	}
	return sharesOf(allShares, pool, amount, up)
}

// AmountToSharesRoundingDown returns the shares represented by amount of a
// pool, zero when the pool is empty.
func AmountToSharesRoundingDown(allShares uint64, pool, amount decimal.Decimal) (uint64, error) {
	return amountToShares(allShares, pool, amount, false)
}

// AmountToSharesRoundingUp is AmountToSharesRoundingDown rounded up.
func AmountToSharesRoundingUp(allShares uint64, pool, amount decimal.Decimal) (uint64, error) {
	return amountToShares(allShares, pool, amount, true)
}

func amountToShares(allShares uint64, pool, amount decimal.Decimal, up bool) (uint64, error) {
	if pool.Scale() != amount.Scale() {
		return 0, arith(decimal.ErrScaleMismatch)
	}
	if allShares == 0 || pool.IsZero() {
		return 0, nil
	}
	return sharesOf(allShares, pool, amount, up)
}

func sharesOf(allShares uint64, pool, amount decimal.Decimal, up bool) (uint64, error) {
	raw, err := decimal.MulDiv(new(uint256.Int).SetUint64(allShares), amount.Value(), pool.Value(), up)
	if err != nil {
		return 0, arith(err)
	}
	if !raw.IsUint64() {
		return 0, ErrOverflow.with("shares exceed 64 bits")
	}
	return raw.Uint64(), nil
}

// MinuteRate converts an annual rate into the per-minute compounding rate at
// interest-rate precision, rounding up.
func MinuteRate(annual decimal.Decimal) (decimal.Decimal, error) {
	scaled, err := annual.ToScale(decimal.InterestRateScale)
	if err != nil {
		return decimal.Decimal{}, arith(err)
	}
	rate, err := scaled.DivUp(decimal.FromInteger(MinutesInYear))
	return rate, arith(err)
}

// CompoundedInterest returns base*((1+rate)^periods - 1) rounded up at the
// base's scale.
func CompoundedInterest(base, periodRate decimal.Decimal, periods uint64) (decimal.Decimal, error) {
	growth, err := decimal.One(periodRate.Scale()).Add(periodRate)
	if err != nil {
		return decimal.Decimal{}, arith(err)
	}
	factor, err := growth.PowWithAccuracy(periods)
	if err != nil {
		return decimal.Decimal{}, arith(err)
	}
	compounded, err := base.MulUp(factor)
	if err != nil {
		return decimal.Decimal{}, arith(err)
	}
	interest, err := compounded.Sub(base)
	return interest, arith(err)
}

// DiscountPercent maps a discount-token balance to the swap fee discount in
// whole percent.
func DiscountPercent(balance decimal.Decimal) uint64 {
	whole, err := balance.ToScale(0)
	if err != nil {
		return 0
	}
	tokens, ok := whole.Uint64()
	if !ok {
		return maxDiscountPercent
	}
	tier := 0
	for i, threshold := range discountThresholds {
		if tokens >= threshold {
			tier = i
		}
	}
	if tier > maxDiscountPercent {
		return maxDiscountPercent
	}
	return uint64(tier)
}

// EffectiveFee reduces fee by discount percent. The discounted part rounds
// down so the charged fee never drops below its exact value.
func EffectiveFee(fee decimal.Decimal, discount uint64) (decimal.Decimal, error) {
	cut, err := fee.Mul(decimal.FromPercent(discount))
	if err != nil {
		return decimal.Decimal{}, arith(err)
	}
	effective, err := fee.Sub(cut)
	return effective, arith(err)
}

// SwapQuote is the outcome of pricing a swap.
type SwapQuote struct {
	ValueIn   decimal.Decimal
	Fee       decimal.Decimal
	ValueOut  decimal.Decimal
	AmountOut decimal.Decimal
}

// QuoteSwap prices amountIn of one synthetic into another: the input value
// rounds down, the fee rounds up and the output amount rounds down.
func QuoteSwap(priceIn, priceOut, amountIn decimal.Decimal, outScale uint8, fee decimal.Decimal) (SwapQuote, error) {
	value, err := priceIn.Mul(amountIn)
	if err != nil {
		return SwapQuote{}, arith(err)
	}
	valueIn, err := value.ToUSD()
	if err != nil {
		return SwapQuote{}, arith(err)
	}
	feeUSD, err := valueIn.MulUp(fee)
	if err != nil {
		return SwapQuote{}, arith(err)
	}
	valueOut, err := valueIn.Sub(feeUSD)
	if err != nil {
		return SwapQuote{}, arith(err)
	}
	amountOut, err := TokenAmount(valueOut, priceOut, outScale)
	if err != nil {
		return SwapQuote{}, err
	}
	return SwapQuote{ValueIn: valueIn, Fee: feeUSD, ValueOut: valueOut, AmountOut: amountOut}, nil
}

// LiquidationQuote is the outcome of pricing a liquidation.
type LiquidationQuote struct {
	Repaid       decimal.Decimal
	SeizedUSD    decimal.Decimal
	Seized       decimal.Decimal
	ToExchange   decimal.Decimal
	ToLiquidator decimal.Decimal
}

// QuoteLiquidation caps the repayment at liquidationRate of the debt and
// sizes the seized collateral including both penalties. The exchange share
// rounds up.
func QuoteLiquidation(userDebt, requested, liquidationRate, penaltyToLiquidator, penaltyToExchange, price decimal.Decimal, collateralScale uint8) (LiquidationQuote, error) {
	maxRepay, err := userDebt.Mul(liquidationRate)
	if err != nil {
		return LiquidationQuote{}, arith(err)
	}
	repaid, err := decimal.Min(requested, maxRepay)
	if err != nil {
		return LiquidationQuote{}, arith(err)
	}
	penalties, err := penaltyToLiquidator.Add(penaltyToExchange)
	if err != nil {
		return LiquidationQuote{}, arith(err)
	}
	multiplier, err := decimal.One(penalties.Scale()).Add(penalties)
	if err != nil {
		return LiquidationQuote{}, arith(err)
	}
	seizedUSD, err := repaid.MulUp(multiplier)
	if err != nil {
		return LiquidationQuote{}, arith(err)
	}
	seized, err := seizedUSD.DivToScaleUp(price, collateralScale)
	if err != nil {
		return LiquidationQuote{}, arith(err)
	}
	exchangePart, err := seized.MulUp(penaltyToExchange)
	if err != nil {
		return LiquidationQuote{}, arith(err)
	}
	toExchange, err := exchangePart.DivUp(multiplier)
	if err != nil {
		return LiquidationQuote{}, arith(err)
	}
	toLiquidator, err := seized.Sub(toExchange)
	if err != nil {
		return LiquidationQuote{}, arith(err)
	}
	return LiquidationQuote{
		Repaid:       repaid,
		SeizedUSD:    seizedUSD,
		Seized:       seized,
		ToExchange:   toExchange,
		ToLiquidator: toLiquidator,
	}, nil
}

// proportional returns amount*num/den rounded down, zero when den is zero.
func proportional(amount decimal.Decimal, num, den uint64) (decimal.Decimal, error) {
	if den == 0 {
		return decimal.Zero(amount.Scale()), nil
	}
	raw, err := decimal.MulDiv(amount.Value(), new(uint256.Int).SetUint64(num), new(uint256.Int).SetUint64(den), false)
	if err != nil {
		return decimal.Decimal{}, arith(err)
	}
	result, err := decimal.FromUint256(raw, amount.Scale())
	return result, arith(err)
}
