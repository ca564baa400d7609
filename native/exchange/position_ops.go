package exchange

import (
	"github.com/ethereum/go-ethereum/common"

	"synthex/decimal"
)

// CreateExchangeAccount opens an empty position for owner.
func (e *Engine) CreateExchangeAccount(owner common.Address) (*Receipt, error) {
	if err := requireSigner(owner); err != nil {
		return nil, err
	}
	t, err := e.begin(OpCreateAccount, owner, true)
	if err != nil {
		return nil, err
	}
	existing, err := t.load(owner)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrAccountExists.with("owner %s", owner.Hex())
	}
	acc := NewExchangeAccount(owner, t.clock.Slot)
	acc.UserStaking.AmountToClaim = decimal.Zero(t.state.Staking.AmountPerRound.Scale())
	t.accounts[owner] = acc
	t.touched = append(t.touched, owner)
	return t.commit()
}

// Deposit pledges amount raw units of the collateral token to the owner's
// position.
func (e *Engine) Deposit(owner, token common.Address, amount uint64) (*Receipt, error) {
	if err := requireSigner(owner); err != nil {
		return nil, err
	}
	if amount == 0 {
		return nil, ErrInvalidAmount.with("deposit amount is zero")
	}
	t, err := e.begin(OpDeposit, owner, true)
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

	index, err := t.list.CollateralByAddress(token)
	if err != nil {
		return nil, err
	}
	collateral := &t.list.Collaterals[index]
	deposit := decimal.New(amount, collateral.ReserveBalance.Scale())
	reserve, err := collateral.ReserveBalance.Add(deposit)
	if err != nil {
		return nil, arith(err)
	}
	if err := withinMax(reserve, collateral.MaxCollateral, ErrCollateralLimit, "reserve"); err != nil {
		return nil, err
	}

	if pos := acc.FindCollateral(token); pos >= 0 {
		entry := &acc.Collaterals[pos]
		if entry.Amount+amount < entry.Amount {
			return nil, ErrOverflow.with("collateral entry overflow")
		}
		entry.Amount += amount
	} else if err := acc.AppendCollateral(CollateralEntry{Amount: amount, CollateralAddress: token, Index: uint8(index)}); err != nil {
		return nil, err
	}
	collateral.ReserveBalance = reserve

	t.receipt.Amount = deposit
	t.receipt.transfer(token, owner, collateral.ReserveAddress, deposit)
	return t.commit()
}

// Withdraw releases collateral while keeping the position within its
// borrowing limit. WithdrawAll withdraws as much as the limit allows.
func (e *Engine) Withdraw(owner, token common.Address, amount uint64) (*Receipt, error) {
	if err := requireSigner(owner); err != nil {
		return nil, err
	}
	if amount == 0 {
		return nil, ErrInvalidAmount.with("withdraw amount is zero")
	}
	t, err := e.begin(OpWithdraw, owner, true)
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

	_, userDebt, err := t.debt(acc)
	if err != nil {
		return nil, err
	}
	maxDebt, err := t.maxDebt(acc)
	if err != nil {
		return nil, err
	}
	maxBorrow, err := maxDebt.Mul(t.state.HealthFactor)
	if err != nil {
		return nil, arith(err)
	}
	maxTokens, err := t.maxWithdrawable(collateral, entry, maxBorrow, userDebt)
	if err != nil {
		return nil, err
	}

	held := decimal.New(entry.Amount, scale)
	var withdrawn decimal.Decimal
	if amount == WithdrawAll {
		if withdrawn, err = decimal.Min(maxTokens, held); err != nil {
			return nil, arith(err)
		}
	} else {
		withdrawn = decimal.New(amount, scale)
		if err := withinMax(withdrawn, maxTokens, ErrWithdrawLimit, "withdrawal"); err != nil {
			return nil, err
		}
		if err := withinMax(withdrawn, held, ErrWithdrawLimit, "withdrawal"); err != nil {
			return nil, err
		}
	}
	if withdrawn.IsZero() {
		return nil, ErrWithdrawLimit.with("nothing withdrawable")
	}
	raw, _ := withdrawn.Uint64()
	entry.Amount -= raw
	if entry.Amount == 0 {
		acc.RemoveCollateral(pos)
	}
	if collateral.ReserveBalance, err = collateral.ReserveBalance.Sub(withdrawn); err != nil {
		return nil, arith(err)
	}

	t.receipt.Amount = withdrawn
	t.receipt.transfer(token, collateral.ReserveAddress, owner, withdrawn)
	return t.commit()
}

// maxWithdrawable returns the most tokens of collateral that can leave the
// position while its debt stays within maxBorrow. A collateral with no ratio
// backs no debt, so all of it may leave a healthy position.
func (t *txn) maxWithdrawable(collateral *Collateral, entry *CollateralEntry, maxBorrow, userDebt decimal.Decimal) (decimal.Decimal, error) {
	scale := collateral.ReserveBalance.Scale()
	if collateral.CollateralRatio.IsZero() {
		under, err := maxBorrow.Lt(userDebt)
		if err != nil {
			return decimal.Decimal{}, arith(err)
		}
		if under {
			return decimal.Zero(scale), nil
		}
		return decimal.New(entry.Amount, scale), nil
	}
	usd, err := MaxWithdrawableUSD(maxBorrow, userDebt, collateral.CollateralRatio, t.state.HealthFactor)
	if err != nil {
		return decimal.Decimal{}, err
	}
	price, err := assetPrice(t.list, collateral.AssetIndex, t.clock.Slot, t.state.MaxDelay, true)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return TokenAmount(usd, price, scale)
}

// Mint issues amount raw units of the USD synthetic against the owner's
// collateral and records the new debt shares.
func (e *Engine) Mint(owner common.Address, amount uint64) (*Receipt, error) {
	if err := requireSigner(owner); err != nil {
		return nil, err
	}
	if amount == 0 {
		return nil, ErrInvalidAmount.with("mint amount is zero")
	}
	t, err := e.begin(OpMint, owner, true)
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

	usd, err := t.list.USD()
	if err != nil {
		return nil, err
	}
	minted := decimal.New(amount, usd.Decimals())
	total, userDebt, err := t.debt(acc)
	if err != nil {
		return nil, err
	}
	maxDebt, err := t.maxDebt(acc)
	if err != nil {
		return nil, err
	}
	limit, err := maxDebt.Mul(t.state.HealthFactor)
	if err != nil {
		return nil, arith(err)
	}
	wanted, err := userDebt.Add(minted)
	if err != nil {
		return nil, arith(err)
	}
	if err := withinMax(wanted, limit, ErrMintLimit, "debt"); err != nil {
		return nil, err
	}

	shares, err := NewSharesRoundingUp(t.state.DebtShares, total, minted)
	if err != nil {
		return nil, err
	}
	if t.state.DebtShares, err = addShares(t.state.DebtShares, shares); err != nil {
		return nil, err
	}
	if acc.DebtShares, err = addShares(acc.DebtShares, shares); err != nil {
		return nil, err
	}
	t.state.Staking.NextRound.AllPoints = t.state.DebtShares
	acc.UserStaking.NextRoundPoints = acc.DebtShares

	supply, err := usd.Supply.Add(minted)
	if err != nil {
		return nil, arith(err)
	}
	if err := withinMax(supply, usd.MaxSupply, ErrMaxSupply, "supply"); err != nil {
		return nil, err
	}
	usd.Supply = supply

	t.receipt.Amount = minted
	t.receipt.mint(usd.AssetAddress, owner, minted)
	return t.commit()
}

// Burn repays debt with amount raw units of the USD synthetic. Repaying more
// than the outstanding debt settles it exactly.
func (e *Engine) Burn(owner common.Address, amount uint64) (*Receipt, error) {
	if err := requireSigner(owner); err != nil {
		return nil, err
	}
	if amount == 0 {
		return nil, ErrInvalidAmount.with("burn amount is zero")
	}
	t, err := e.begin(OpBurn, owner, true)
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

	usd, err := t.list.USD()
	if err != nil {
		return nil, err
	}
	requested := decimal.New(amount, usd.Decimals())
	total, userDebt, err := t.debt(acc)
	if err != nil {
		return nil, err
	}
	burnedShares, err := AmountToSharesRoundingDown(t.state.DebtShares, total, requested)
	if err != nil {
		return nil, err
	}

	staking := &t.state.Staking
	points := &acc.UserStaking
	var burned decimal.Decimal
	if burnedShares >= acc.DebtShares {
		burned = userDebt
		staking.CurrentRound.AllPoints = subPoints(staking.CurrentRound.AllPoints, points.CurrentRoundPoints)
		points.FinishedRoundPoints = 0
		points.CurrentRoundPoints = 0
		points.NextRoundPoints = 0
		t.state.DebtShares = subPoints(t.state.DebtShares, acc.DebtShares)
		acc.DebtShares = 0
		staking.NextRound.AllPoints = t.state.DebtShares
	} else {
		burned = requested
		acc.DebtShares -= burnedShares
		t.state.DebtShares = subPoints(t.state.DebtShares, burnedShares)
		staking.NextRound.AllPoints = t.state.DebtShares
		points.NextRoundPoints = acc.DebtShares
		if points.CurrentRoundPoints >= burnedShares {
			points.CurrentRoundPoints -= burnedShares
			staking.CurrentRound.AllPoints = subPoints(staking.CurrentRound.AllPoints, burnedShares)
		} else {
			staking.CurrentRound.AllPoints = subPoints(staking.CurrentRound.AllPoints, points.CurrentRoundPoints)
			points.CurrentRoundPoints = 0
		}
	}
	if usd.Supply, err = usd.Supply.Sub(burned); err != nil {
		return nil, arith(err)
	}

	t.receipt.Amount = burned
	t.receipt.burn(usd.AssetAddress, owner, burned)
	return t.commit()
}
