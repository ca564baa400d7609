package exchange

import (
	"github.com/ethereum/go-ethereum/common"
)

// NewExchangeAccount returns an empty position owned by owner.
func NewExchangeAccount(owner common.Address, slot uint64) *ExchangeAccount {
	return &ExchangeAccount{
		Version:             AccountVersion,
		Owner:               owner,
		LiquidationDeadline: LiquidationDeadlineNone,
		UserStaking:         UserStaking{LastUpdate: slot},
	}
}

// Clone returns a deep copy of the account.
func (a *ExchangeAccount) Clone() *ExchangeAccount {
	if a == nil {
		return nil
	}
	clone := *a
	clone.Collaterals = append([]CollateralEntry(nil), a.Collaterals...)
	return &clone
}

// FindCollateral returns the position of the entry for token, or -1.
func (a *ExchangeAccount) FindCollateral(token common.Address) int {
	for i := range a.Collaterals {
		if a.Collaterals[i].CollateralAddress == token {
			return i
		}
	}
	return -1
}

// AppendCollateral adds a holding entry.
func (a *ExchangeAccount) AppendCollateral(entry CollateralEntry) error {
	if len(a.Collaterals) >= AccountCollateralCapacity {
		return ErrCapacityExceeded.with("account collateral list full")
	}
	a.Collaterals = append(a.Collaterals, entry)
	return nil
}

// RemoveCollateral swap-removes the entry at i.
func (a *ExchangeAccount) RemoveCollateral(i int) {
	if i < 0 || i >= len(a.Collaterals) {
		return
	}
	last := len(a.Collaterals) - 1
	a.Collaterals[i] = a.Collaterals[last]
	a.Collaterals = a.Collaterals[:last]
}

// HasDeadline reports whether a liquidation deadline is scheduled.
func (a *ExchangeAccount) HasDeadline() bool {
	return a.LiquidationDeadline != LiquidationDeadlineNone
}
