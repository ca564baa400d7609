package exchange

import (
	"github.com/ethereum/go-ethereum/common"

	"synthex/decimal"
)

// AccountDebtView summarises a position as of the engine clock, including
// interest that has accrued but not yet been committed.
type AccountDebtView struct {
	Owner               common.Address    `json:"owner"`
	DebtShares          uint64            `json:"debtShares"`
	UserDebt            decimal.Decimal   `json:"userDebt"`
	MaxDebt             decimal.Decimal   `json:"maxDebt"`
	MaxBorrow           decimal.Decimal   `json:"maxBorrow"`
	LiquidationDeadline uint64            `json:"liquidationDeadline"`
	Liquidatable        bool              `json:"liquidatable"`
	Collaterals         []CollateralEntry `json:"collaterals"`
	Staking             UserStaking       `json:"staking"`
}

// AccountDebt evaluates owner's position without committing anything.
func (e *Engine) AccountDebt(owner common.Address) (*AccountDebtView, error) {
	t, err := e.snapshot("account_debt", owner)
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
	maxBorrow, err := maxDebt.Mul(t.state.HealthFactor)
	if err != nil {
		return nil, arith(err)
	}
	under, err := maxDebt.Lt(userDebt)
	if err != nil {
		return nil, arith(err)
	}
	return &AccountDebtView{
		Owner:               owner,
		DebtShares:          acc.DebtShares,
		UserDebt:            userDebt,
		MaxDebt:             maxDebt,
		MaxBorrow:           maxBorrow,
		LiquidationDeadline: acc.LiquidationDeadline,
		Liquidatable:        under && t.clock.Slot > acc.LiquidationDeadline,
		Collaterals:         acc.Collaterals,
		Staking:             acc.UserStaking,
	}, nil
}

// TotalDebt returns the protocol debt as of the engine clock.
func (e *Engine) TotalDebt() (decimal.Decimal, error) {
	t, err := e.snapshot("total_debt", common.Address{})
	if err != nil {
		return decimal.Decimal{}, err
	}
	if err := t.refresh(); err != nil {
		return decimal.Decimal{}, err
	}
	total, _, err := t.debt(nil)
	return total, err
}

// Snapshot returns copies of the committed global state and registry.
func (e *Engine) Snapshot() (*State, *AssetsList, error) {
	t, err := e.snapshot("snapshot", common.Address{})
	if err != nil {
		return nil, nil, err
	}
	return t.state, t.list, nil
}
