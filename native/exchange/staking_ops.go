package exchange

import (
	"github.com/ethereum/go-ethereum/common"

	"synthex/decimal"
)

// ClaimRewards credits the owner's share of the finished staking round to
// their claimable balance. Claiming with no points succeeds with a zero
// amount.
func (e *Engine) ClaimRewards(owner common.Address) (*Receipt, error) {
	if err := requireSigner(owner); err != nil {
		return nil, err
	}
	t, err := e.begin(OpClaimRewards, owner, true)
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

	reward, err := t.state.Staking.Claim(acc)
	if err != nil {
		return nil, err
	}
	t.receipt.Amount = reward
	return t.commit()
}

// WithdrawRewards pays out the owner's claimable balance from the staking
// fund.
func (e *Engine) WithdrawRewards(owner common.Address) (*Receipt, error) {
	if err := requireSigner(owner); err != nil {
		return nil, err
	}
	t, err := e.begin(OpWithdrawRewards, owner, true)
	if err != nil {
		return nil, err
	}
	acc, err := t.account(owner)
	if err != nil {
		return nil, err
	}
	claimable := acc.UserStaking.AmountToClaim
	if claimable.IsZero() {
		return nil, ErrNoRewards.with("nothing to withdraw")
	}
	acc.UserStaking.AmountToClaim = decimal.Zero(claimable.Scale())
	staking := &t.state.Staking
	t.receipt.Amount = claimable
	t.receipt.transfer(staking.RewardToken, staking.FundAccount, owner, claimable)
	return t.commit()
}
