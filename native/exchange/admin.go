package exchange

import (
	"github.com/ethereum/go-ethereum/common"

	"synthex/decimal"
)

var hundredPercent = decimal.New(100_000, decimal.PercentScale)

// adminTxn opens a transaction for an admin entry point. Admin calls are
// accepted while the exchange is halted so it can be resumed.
func (e *Engine) adminTxn(op Operation, signer common.Address) (*txn, error) {
	if err := requireSigner(signer); err != nil {
		return nil, err
	}
	t, err := e.begin(op, signer, false)
	if err != nil {
		return nil, err
	}
	if signer != t.state.Admin {
		return nil, ErrUnauthorized.with("signer %s is not admin", signer.Hex())
	}
	return t, nil
}

// updateState runs mutate against the global state under admin
// authorisation and commits it.
func (e *Engine) updateState(signer common.Address, mutate func(t *txn) error) (*Receipt, error) {
	t, err := e.adminTxn(OpAdmin, signer)
	if err != nil {
		return nil, err
	}
	if err := t.refresh(); err != nil {
		return nil, err
	}
	if err := mutate(t); err != nil {
		return nil, err
	}
	return t.commit()
}

func requirePercent(value decimal.Decimal, what string) error {
	if value.Scale() != decimal.PercentScale {
		return ErrParameterRange.with("%s must have scale %d", what, decimal.PercentScale)
	}
	if over, _ := value.Gt(hundredPercent); over {
		return ErrParameterRange.with("%s %s above 100%%", what, value)
	}
	return nil
}

func requireRoundLength(slots uint64) error {
	if slots == 0 || slots > MaxRoundLength {
		return ErrParameterRange.with("round length %d outside [1, %d]", slots, MaxRoundLength)
	}
	return nil
}

func requirePositivePercent(value decimal.Decimal, what string) error {
	if err := requirePercent(value, what); err != nil {
		return err
	}
	if value.IsZero() {
		return ErrParameterRange.with("%s must be positive", what)
	}
	return nil
}

// SetHalted stops or resumes every user facing operation.
func (e *Engine) SetHalted(signer common.Address, halted bool) (*Receipt, error) {
	return e.updateState(signer, func(t *txn) error {
		t.state.Halted = halted
		return nil
	})
}

// SetHealthFactor sets the share of max debt an account may borrow against.
func (e *Engine) SetHealthFactor(signer common.Address, factor decimal.Decimal) (*Receipt, error) {
	return e.updateState(signer, func(t *txn) error {
		if err := requirePositivePercent(factor, "health factor"); err != nil {
			return err
		}
		t.state.HealthFactor = factor
		return nil
	})
}

// SetFee sets the swap fee before discounts.
func (e *Engine) SetFee(signer common.Address, fee decimal.Decimal) (*Receipt, error) {
	return e.updateState(signer, func(t *txn) error {
		if err := requirePercent(fee, "fee"); err != nil {
			return err
		}
		t.state.Fee = fee
		return nil
	})
}

// SetSwapTaxRatio sets the part of each swap fee kept as swap tax.
func (e *Engine) SetSwapTaxRatio(signer common.Address, ratio decimal.Decimal) (*Receipt, error) {
	return e.updateState(signer, func(t *txn) error {
		if err := requirePercent(ratio, "swap tax ratio"); err != nil {
			return err
		}
		t.state.SwapTaxRatio = ratio
		return nil
	})
}

// SetLiquidationRate caps the share of an account's debt repaid by one
// liquidation.
func (e *Engine) SetLiquidationRate(signer common.Address, rate decimal.Decimal) (*Receipt, error) {
	return e.updateState(signer, func(t *txn) error {
		if err := requirePositivePercent(rate, "liquidation rate"); err != nil {
			return err
		}
		t.state.LiquidationRate = rate
		return nil
	})
}

// SetLiquidationPenalties sets the shares of seized collateral paid to the
// liquidator and to the exchange.
func (e *Engine) SetLiquidationPenalties(signer common.Address, toLiquidator, toExchange decimal.Decimal) (*Receipt, error) {
	return e.updateState(signer, func(t *txn) error {
		if err := requirePercent(toLiquidator, "liquidator penalty"); err != nil {
			return err
		}
		if err := requirePercent(toExchange, "exchange penalty"); err != nil {
			return err
		}
		t.state.PenaltyToLiquidator = toLiquidator
		t.state.PenaltyToExchange = toExchange
		return nil
	})
}

// SetLiquidationBuffer sets the grace period, in slots, before an
// undercollateralised account becomes liquidatable.
func (e *Engine) SetLiquidationBuffer(signer common.Address, slots uint64) (*Receipt, error) {
	return e.updateState(signer, func(t *txn) error {
		t.state.LiquidationBuffer = slots
		return nil
	})
}

// SetDebtInterestRate changes the annual debt interest rate. Interest owed
// under the previous rate is accrued first.
func (e *Engine) SetDebtInterestRate(signer common.Address, rate decimal.Decimal) (*Receipt, error) {
	return e.updateState(signer, func(t *txn) error {
		if err := requirePercent(rate, "debt interest rate"); err != nil {
			return err
		}
		t.state.DebtInterestRate = rate
		return nil
	})
}

// SetMaxDelay sets the oracle staleness tolerance in slots.
func (e *Engine) SetMaxDelay(signer common.Address, slots uint64) (*Receipt, error) {
	return e.updateState(signer, func(t *txn) error {
		t.state.MaxDelay = slots
		return nil
	})
}

// SetMinSwapValue sets the smallest swap accepted, in USD.
func (e *Engine) SetMinSwapValue(signer common.Address, value decimal.Decimal) (*Receipt, error) {
	return e.updateState(signer, func(t *txn) error {
		if value.Scale() != decimal.USDScale {
			return ErrParameterRange.with("min swap value must have scale %d", decimal.USDScale)
		}
		t.state.MinSwapValue = value
		return nil
	})
}

// SetStakingAmountPerRound sets the reward paid out by rounds scheduled from
// now on. The amount keeps the reward token scale.
func (e *Engine) SetStakingAmountPerRound(signer common.Address, amount decimal.Decimal) (*Receipt, error) {
	return e.updateState(signer, func(t *txn) error {
		if amount.Scale() != t.state.Staking.AmountPerRound.Scale() {
			return ErrParameterRange.with("round amount must have scale %d", t.state.Staking.AmountPerRound.Scale())
		}
		t.state.Staking.AmountPerRound = amount
		return nil
	})
}

// SetStakingRoundLength changes the length of rounds scheduled from now on.
func (e *Engine) SetStakingRoundLength(signer common.Address, slots uint64) (*Receipt, error) {
	return e.updateState(signer, func(t *txn) error {
		if err := requireRoundLength(slots); err != nil {
			return err
		}
		t.state.Staking.RoundLength = slots
		return nil
	})
}

// SetCollateralRatio sets the weight of a collateral in max debt.
func (e *Engine) SetCollateralRatio(signer, token common.Address, ratio decimal.Decimal) (*Receipt, error) {
	return e.updateState(signer, func(t *txn) error {
		if err := requirePercent(ratio, "collateral ratio"); err != nil {
			return err
		}
		index, err := t.list.CollateralByAddress(token)
		if err != nil {
			return err
		}
		t.list.Collaterals[index].CollateralRatio = ratio
		return nil
	})
}

// SetMaxCollateral caps the reserve of a collateral. Lowering it below the
// current reserve only blocks further deposits.
func (e *Engine) SetMaxCollateral(signer, token common.Address, max decimal.Decimal) (*Receipt, error) {
	return e.updateState(signer, func(t *txn) error {
		index, err := t.list.CollateralByAddress(token)
		if err != nil {
			return err
		}
		collateral := &t.list.Collaterals[index]
		if max.Scale() != collateral.ReserveBalance.Scale() {
			return ErrParameterRange.with("max collateral must have scale %d", collateral.ReserveBalance.Scale())
		}
		collateral.MaxCollateral = max
		return nil
	})
}

// SetMaxSupply caps the supply of a synthetic, at the synthetic's scale.
func (e *Engine) SetMaxSupply(signer, token common.Address, max decimal.Decimal) (*Receipt, error) {
	return e.updateState(signer, func(t *txn) error {
		index, err := t.list.SyntheticByAddress(token)
		if err != nil {
			return err
		}
		synthetic := &t.list.Synthetics[index]
		if max.Scale() != synthetic.Decimals() {
			return ErrParameterRange.with("max supply must have scale %d", synthetic.Decimals())
		}
		synthetic.MaxSupply = max
		return nil
	})
}

// AddAsset registers a new price feed. The asset stays uninitialized until
// its first price update.
func (e *Engine) AddAsset(signer, feed common.Address) (*Receipt, error) {
	return e.updateState(signer, func(t *txn) error {
		return registerAsset(t.list, feed)
	})
}

func registerAsset(list *AssetsList, feed common.Address) error {
	if _, err := list.AssetByFeed(feed); err == nil {
		return ErrParameterRange.with("feed %s already registered", feed.Hex())
	}
	_, err := list.AppendAsset(Asset{
		FeedAddress: feed,
		Price:       decimal.Zero(decimal.PriceScale),
		Confidence:  decimal.Zero(decimal.PriceScale),
		Twap:        decimal.Zero(decimal.PriceScale),
		Status:      AssetStatusUninitialized,
	})
	return err
}

// CollateralParams describes a collateral type being registered.
type CollateralParams struct {
	Feed            common.Address
	Token           common.Address
	Reserve         common.Address
	LiquidationFund common.Address
	Decimals        uint8
	CollateralRatio decimal.Decimal
	MaxCollateral   decimal.Decimal
}

// AddCollateral registers a collateral for an existing asset. Its reserve
// starts empty.
func (e *Engine) AddCollateral(signer common.Address, params CollateralParams) (*Receipt, error) {
	return e.updateState(signer, func(t *txn) error {
		return registerCollateral(t.list, params)
	})
}

func registerCollateral(list *AssetsList, params CollateralParams) error {
	if err := requirePercent(params.CollateralRatio, "collateral ratio"); err != nil {
		return err
	}
	if params.MaxCollateral.Scale() != params.Decimals {
		return ErrParameterRange.with("max collateral must have scale %d", params.Decimals)
	}
	if _, err := list.CollateralByAddress(params.Token); err == nil {
		return ErrParameterRange.with("collateral %s already registered", params.Token.Hex())
	}
	assetIndex, err := list.AssetByFeed(params.Feed)
	if err != nil {
		return err
	}
	_, err = list.AppendCollateral(Collateral{
		AssetIndex:        uint8(assetIndex),
		CollateralAddress: params.Token,
		ReserveAddress:    params.Reserve,
		LiquidationFund:   params.LiquidationFund,
		ReserveBalance:    decimal.Zero(params.Decimals),
		CollateralRatio:   params.CollateralRatio,
		MaxCollateral:     params.MaxCollateral,
	})
	return err
}

// SyntheticParams describes a synthetic being registered.
type SyntheticParams struct {
	Feed      common.Address
	Token     common.Address
	Decimals  uint8
	MaxSupply decimal.Decimal
}

// AddSynthetic registers a synthetic for an existing asset.
func (e *Engine) AddSynthetic(signer common.Address, params SyntheticParams) (*Receipt, error) {
	return e.updateState(signer, func(t *txn) error {
		return registerSynthetic(t.list, params)
	})
}

func registerSynthetic(list *AssetsList, params SyntheticParams) error {
	if params.MaxSupply.Scale() != params.Decimals {
		return ErrParameterRange.with("max supply must have scale %d", params.Decimals)
	}
	if _, err := list.SyntheticByAddress(params.Token); err == nil {
		return ErrParameterRange.with("synthetic %s already registered", params.Token.Hex())
	}
	assetIndex, err := list.AssetByFeed(params.Feed)
	if err != nil {
		return err
	}
	_, err = list.AppendSynthetic(Synthetic{
		AssetIndex:     uint8(assetIndex),
		AssetAddress:   params.Token,
		Supply:         decimal.Zero(params.Decimals),
		MaxSupply:      params.MaxSupply,
		BorrowedSupply: decimal.Zero(params.Decimals),
	})
	return err
}

// RemoveSynthetic deregisters a synthetic without circulating supply. The
// USD synthetic cannot be removed.
func (e *Engine) RemoveSynthetic(signer, token common.Address) (*Receipt, error) {
	return e.updateState(signer, func(t *txn) error {
		index, err := t.list.SyntheticByAddress(token)
		if err != nil {
			return err
		}
		if index == usdSyntheticIndex {
			return ErrParameterRange.with("usd synthetic cannot be removed")
		}
		if !t.list.Synthetics[index].Supply.IsZero() {
			return ErrParameterRange.with("synthetic %s has supply %s", token.Hex(), t.list.Synthetics[index].Supply)
		}
		return t.list.RemoveSynthetic(index)
	})
}

// BorrowSynthetic mints amount of a synthetic to recipient outside the debt
// pool. The minted amount counts against MaxSupply but not against stakers.
func (e *Engine) BorrowSynthetic(signer, token, recipient common.Address, amount decimal.Decimal) (*Receipt, error) {
	t, synthetic, err := e.borrowedSupplyTxn(OpBorrowSynthetic, signer, token, amount)
	if err != nil {
		return nil, err
	}
	supply, err := synthetic.Supply.Add(amount)
	if err != nil {
		return nil, arith(err)
	}
	if err := withinMax(supply, synthetic.MaxSupply, ErrMaxSupply, "supply"); err != nil {
		return nil, err
	}
	borrowed, err := synthetic.BorrowedSupply.Add(amount)
	if err != nil {
		return nil, arith(err)
	}
	synthetic.Supply, synthetic.BorrowedSupply = supply, borrowed
	t.receipt.Amount = amount
	t.receipt.mint(token, recipient, amount)
	return t.commit()
}

// RepaySynthetic burns amount of borrowed supply held by payer.
func (e *Engine) RepaySynthetic(signer, token, payer common.Address, amount decimal.Decimal) (*Receipt, error) {
	t, synthetic, err := e.borrowedSupplyTxn(OpRepaySynthetic, signer, token, amount)
	if err != nil {
		return nil, err
	}
	if err := withinMax(amount, synthetic.BorrowedSupply, ErrInsufficientReserve, "repayment"); err != nil {
		return nil, err
	}
	borrowed, err := synthetic.BorrowedSupply.Sub(amount)
	if err != nil {
		return nil, arith(err)
	}
	supply, err := synthetic.Supply.Sub(amount)
	if err != nil {
		return nil, arith(err)
	}
	synthetic.Supply, synthetic.BorrowedSupply = supply, borrowed
	t.receipt.Amount = amount
	t.receipt.burn(token, payer, amount)
	return t.commit()
}

func (e *Engine) borrowedSupplyTxn(op Operation, signer, token common.Address, amount decimal.Decimal) (*txn, *Synthetic, error) {
	if amount.IsZero() {
		return nil, nil, ErrInvalidAmount.with("amount is zero")
	}
	t, err := e.adminTxn(op, signer)
	if err != nil {
		return nil, nil, err
	}
	if err := t.refresh(); err != nil {
		return nil, nil, err
	}
	index, err := t.list.SyntheticByAddress(token)
	if err != nil {
		return nil, nil, err
	}
	synthetic := &t.list.Synthetics[index]
	if amount.Scale() != synthetic.Decimals() {
		return nil, nil, arith(decimal.ErrScaleMismatch)
	}
	return t, synthetic, nil
}

// WithdrawSwapTax mints amount of the accrued swap tax to recipient.
func (e *Engine) WithdrawSwapTax(signer, recipient common.Address, amount decimal.Decimal) (*Receipt, error) {
	t, err := e.adminTxn(OpWithdrawSwapTax, signer)
	if err != nil {
		return nil, err
	}
	if err := t.refresh(); err != nil {
		return nil, err
	}
	if t.state.SwapTaxReserve, err = t.drawReserve(t.state.SwapTaxReserve, amount); err != nil {
		return nil, err
	}
	usd, err := t.list.USD()
	if err != nil {
		return nil, err
	}
	t.receipt.Amount = amount
	t.receipt.mint(usd.AssetAddress, recipient, amount)
	return t.commit()
}

// WithdrawAccumulatedDebtInterest mints amount of the accrued debt interest
// to recipient.
func (e *Engine) WithdrawAccumulatedDebtInterest(signer, recipient common.Address, amount decimal.Decimal) (*Receipt, error) {
	t, err := e.adminTxn(OpWithdrawDebtInterest, signer)
	if err != nil {
		return nil, err
	}
	if err := t.refresh(); err != nil {
		return nil, err
	}
	if t.state.AccumulatedDebtInterest, err = t.drawReserve(t.state.AccumulatedDebtInterest, amount); err != nil {
		return nil, err
	}
	usd, err := t.list.USD()
	if err != nil {
		return nil, err
	}
	t.receipt.Amount = amount
	t.receipt.mint(usd.AssetAddress, recipient, amount)
	return t.commit()
}

func (t *txn) drawReserve(reserve, amount decimal.Decimal) (decimal.Decimal, error) {
	if amount.IsZero() {
		return decimal.Decimal{}, ErrInvalidAmount.with("withdraw amount is zero")
	}
	if amount.Scale() != reserve.Scale() {
		return decimal.Decimal{}, arith(decimal.ErrScaleMismatch)
	}
	if err := withinMax(amount, reserve, ErrInsufficientReserve, "withdrawal"); err != nil {
		return decimal.Decimal{}, err
	}
	remaining, err := reserve.Sub(amount)
	return remaining, arith(err)
}

// WithdrawLiquidationPenalty moves penalty collateral out of a collateral's
// liquidation fund. The fund balance is held by the ledger, which rejects
// overdrafts.
func (e *Engine) WithdrawLiquidationPenalty(signer, token, recipient common.Address, amount uint64) (*Receipt, error) {
	if amount == 0 {
		return nil, ErrInvalidAmount.with("withdraw amount is zero")
	}
	t, err := e.adminTxn(OpWithdrawLiquidationFund, signer)
	if err != nil {
		return nil, err
	}
	index, err := t.list.CollateralByAddress(token)
	if err != nil {
		return nil, err
	}
	collateral := &t.list.Collaterals[index]
	value := decimal.New(amount, collateral.ReserveBalance.Scale())
	t.receipt.Amount = value
	t.receipt.transfer(token, collateral.LiquidationFund, recipient, value)
	return t.commit()
}
