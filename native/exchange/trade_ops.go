package exchange

import (
	"github.com/ethereum/go-ethereum/common"

	"synthex/decimal"
)

// Swap exchanges amount raw units of the synthetic tokenIn for tokenOut at
// oracle prices, net of the fee. A share of the fee is minted as USD
// synthetic into the swap tax reserve.
func (e *Engine) Swap(owner, tokenIn, tokenOut common.Address, amount uint64) (*Receipt, error) {
	if err := requireSigner(owner); err != nil {
		return nil, err
	}
	if tokenIn == tokenOut {
		return nil, ErrWashTrade.with("token %s", tokenIn.Hex())
	}
	if amount == 0 {
		return nil, ErrInvalidAmount.with("swap amount is zero")
	}
	t, err := e.begin(OpSwap, owner, true)
	if err != nil {
		return nil, err
	}
	if err := t.refresh(); err != nil {
		return nil, err
	}
	acc, err := t.optionalAccount(owner)
	if err != nil {
		return nil, err
	}

	inIndex, err := t.list.SyntheticByAddress(tokenIn)
	if err != nil {
		return nil, err
	}
	outIndex, err := t.list.SyntheticByAddress(tokenOut)
	if err != nil {
		return nil, err
	}
	in := &t.list.Synthetics[inIndex]
	out := &t.list.Synthetics[outIndex]
	priceIn, err := t.tradingPrice(in.AssetIndex)
	if err != nil {
		return nil, err
	}
	priceOut, err := t.tradingPrice(out.AssetIndex)
	if err != nil {
		return nil, err
	}

	fee, err := EffectiveFee(t.state.Fee, t.discount(acc))
	if err != nil {
		return nil, err
	}
	amountIn := decimal.New(amount, in.Decimals())
	quote, err := QuoteSwap(priceIn, priceOut, amountIn, out.Decimals(), fee)
	if err != nil {
		return nil, err
	}
	below, err := quote.ValueIn.Lt(t.state.MinSwapValue)
	if err != nil {
		return nil, arith(err)
	}
	if below || quote.AmountOut.IsZero() {
		return nil, ErrInsufficientValueTrade.with("trade value %s below minimum %s", quote.ValueIn, t.state.MinSwapValue)
	}

	tax, err := quote.Fee.Mul(t.state.SwapTaxRatio)
	if err != nil {
		return nil, arith(err)
	}
	if in.Supply, err = in.Supply.Sub(amountIn); err != nil {
		return nil, arith(err)
	}
	supplyOut, err := out.Supply.Add(quote.AmountOut)
	if err != nil {
		return nil, arith(err)
	}
	if err := withinMax(supplyOut, out.MaxSupply, ErrMaxSupply, "supply"); err != nil {
		return nil, err
	}
	out.Supply = supplyOut
	if !tax.IsZero() {
		usd, err := t.list.USD()
		if err != nil {
			return nil, err
		}
		if t.state.SwapTaxReserve, err = t.state.SwapTaxReserve.Add(tax); err != nil {
			return nil, arith(err)
		}
		if usd.Supply, err = usd.Supply.Add(tax); err != nil {
			return nil, arith(err)
		}
	}

	t.receipt.Amount = quote.AmountOut
	t.receipt.burn(tokenIn, owner, amountIn)
	t.receipt.mint(tokenOut, owner, quote.AmountOut)
	return t.commit()
}

// tradingPrice returns a fresh price of an asset open for trading.
func (t *txn) tradingPrice(index uint8) (decimal.Decimal, error) {
	price, err := assetPrice(t.list, index, t.clock.Slot, t.state.MaxDelay, true)
	if err != nil {
		return decimal.Decimal{}, err
	}
	asset := &t.list.Assets[index]
	if index != usdAssetIndex && asset.Status != AssetStatusTrading {
		return decimal.Decimal{}, ErrAssetNotTrading.with("asset %s is %s", asset.FeedAddress.Hex(), asset.Status)
	}
	return price, nil
}

// discount returns the fee discount earned by the account's holding of the
// designated discount collateral.
func (t *txn) discount(acc *ExchangeAccount) uint64 {
	if acc == nil || t.state.DiscountCollateral == (common.Address{}) {
		return 0
	}
	pos := acc.FindCollateral(t.state.DiscountCollateral)
	if pos < 0 {
		return 0
	}
	index, err := t.list.CollateralByAddress(t.state.DiscountCollateral)
	if err != nil {
		return 0
	}
	scale := t.list.Collaterals[index].ReserveBalance.Scale()
	return DiscountPercent(decimal.New(acc.Collaterals[pos].Amount, scale))
}

// Liquidate repays up to the liquidation rate of an undercollateralised
// account's debt on its behalf and seizes collateral plus penalties.
func (e *Engine) Liquidate(liquidator, owner, token common.Address, amount uint64) (*Receipt, error) {
	if err := requireSigner(liquidator); err != nil {
		return nil, err
	}
	if amount == 0 {
		return nil, ErrInvalidAmount.with("liquidation amount is zero")
	}
	t, err := e.begin(OpLiquidate, liquidator, true)
	if err != nil {
		return nil, err
	}
	acc, err := t.account(owner)
	if err != nil {
		return nil, err
	}
	if err := t.refresh(); err != nil {
		return nil, err
	}
	t.sync(acc)

	if t.clock.Slot <= acc.LiquidationDeadline {
		return nil, ErrLiquidationDeadline.with("deadline %d, slot %d", acc.LiquidationDeadline, t.clock.Slot)
	}
	total, userDebt, err := t.debt(acc)
	if err != nil {
		return nil, err
	}
	maxDebt, err := t.maxDebt(acc)
	if err != nil {
		return nil, err
	}
	under, err := maxDebt.Lt(userDebt)
	if err != nil {
		return nil, arith(err)
	}
	if !under {
		return nil, ErrInvalidLiquidation.with("max debt %s covers debt %s", maxDebt, userDebt)
	}

	index, err := t.list.CollateralByAddress(token)
	if err != nil {
		return nil, err
	}
	pos := acc.FindCollateral(token)
	if pos < 0 {
		return nil, ErrCollateralNotFound.with("owner holds no %s", token.Hex())
	}
	collateral := &t.list.Collaterals[index]
	entry := &acc.Collaterals[pos]
	scale := collateral.ReserveBalance.Scale()
	price, err := assetPrice(t.list, collateral.AssetIndex, t.clock.Slot, t.state.MaxDelay, true)
	if err != nil {
		return nil, err
	}
	usd, err := t.list.USD()
	if err != nil {
		return nil, err
	}
	quote, err := QuoteLiquidation(userDebt, decimal.New(amount, usd.Decimals()), t.state.LiquidationRate,
		t.state.PenaltyToLiquidator, t.state.PenaltyToExchange, price, scale)
	if err != nil {
		return nil, err
	}
	if quote.Repaid.IsZero() {
		return nil, ErrInvalidLiquidation.with("nothing to repay")
	}
	if err := withinMax(quote.Seized, decimal.New(entry.Amount, scale), ErrInvalidLiquidation, "seized collateral"); err != nil {
		return nil, err
	}

	burnedShares, err := AmountToSharesRoundingDown(t.state.DebtShares, total, quote.Repaid)
	if err != nil {
		return nil, err
	}
	if burnedShares > acc.DebtShares {
		burnedShares = acc.DebtShares
	}
	acc.DebtShares -= burnedShares
	t.state.DebtShares = subPoints(t.state.DebtShares, burnedShares)

	staking := &t.state.Staking
	points := &acc.UserStaking
	staking.FinishedRound.AllPoints = subPoints(staking.FinishedRound.AllPoints, points.FinishedRoundPoints)
	staking.CurrentRound.AllPoints = subPoints(staking.CurrentRound.AllPoints, points.CurrentRoundPoints)
	points.FinishedRoundPoints = 0
	points.CurrentRoundPoints = 0
	points.NextRoundPoints = acc.DebtShares
	staking.NextRound.AllPoints = t.state.DebtShares

	if usd.Supply, err = usd.Supply.Sub(quote.Repaid); err != nil {
		return nil, arith(err)
	}
	seized, _ := quote.Seized.Uint64()
	entry.Amount -= seized
	if entry.Amount == 0 {
		acc.RemoveCollateral(pos)
	}
	if collateral.ReserveBalance, err = collateral.ReserveBalance.Sub(quote.Seized); err != nil {
		return nil, arith(err)
	}

	t.receipt.Amount = quote.Repaid
	t.receipt.burn(usd.AssetAddress, liquidator, quote.Repaid)
	t.receipt.transfer(token, collateral.ReserveAddress, liquidator, quote.ToLiquidator)
	t.receipt.transfer(token, collateral.ReserveAddress, collateral.LiquidationFund, quote.ToExchange)
	return t.commit()
}

// CheckAccountCollateralization schedules or clears the liquidation deadline
// of owner's account. A deadline, once scheduled, is kept until the account
// is healthy again.
func (e *Engine) CheckAccountCollateralization(owner common.Address) (*Receipt, error) {
	t, err := e.begin(OpCheckCollateralization, owner, true)
	if err != nil {
		return nil, err
	}
	acc, err := t.account(owner)
	if err != nil {
		return nil, err
	}
	if err := t.refresh(); err != nil {
		return nil, err
	}
	t.sync(acc)

	_, userDebt, err := t.debt(acc)
	if err != nil {
		return nil, err
	}
	maxDebt, err := t.maxDebt(acc)
	if err != nil {
		return nil, err
	}
	healthy, err := maxDebt.Gte(userDebt)
	if err != nil {
		return nil, arith(err)
	}
	switch {
	case healthy:
		acc.LiquidationDeadline = LiquidationDeadlineNone
	case !acc.HasDeadline():
		deadline := t.clock.Slot + t.state.LiquidationBuffer
		if deadline < t.clock.Slot || deadline == LiquidationDeadlineNone {
			deadline = LiquidationDeadlineNone - 1
		}
		acc.LiquidationDeadline = deadline
	}
	t.receipt.Amount = userDebt
	return t.commit()
}
