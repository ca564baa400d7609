package exchange

import (
	"synthex/decimal"
)

// MaxRoundLength bounds the staking round length in slots, so round starts
// never wrap.
const MaxRoundLength uint64 = 1 << 40

// AdvanceRounds rolls the round buffer forward until slot falls inside the
// current round. Every newly scheduled round starts with the global debt
// shares as its point total. Rolling stops if a round start would wrap.
func (s *Staking) AdvanceRounds(slot, globalShares uint64) {
	if s.RoundLength == 0 {
		return
	}
	for {
		end, ok := addSlots(s.CurrentRound.Start, s.RoundLength)
		if !ok || slot < end {
			return
		}
		nextStart, ok := addSlots(s.NextRound.Start, s.RoundLength)
		if !ok {
			return
		}
		s.FinishedRound = s.CurrentRound
		s.CurrentRound = s.NextRound
		s.NextRound = StakingRound{
			Start:     nextStart,
			Amount:    s.AmountPerRound,
			AllPoints: globalShares,
		}
	}
}

func addSlots(a, b uint64) (uint64, bool) {
	sum := a + b
	return sum, sum >= a
}

// SyncAccount moves the account's round points along with the round buffer
// and pins the next round to its live debt shares. The shift count comes
// from the stored round starts: an update inside the finished round shifts
// once, an older one means the shares have not changed for the whole buffer.
// Call it after AdvanceRounds.
func (s *Staking) SyncAccount(account *ExchangeAccount, slot uint64) {
	data := &account.UserStaking
	switch {
	case data.LastUpdate >= s.CurrentRound.Start:
	case data.LastUpdate >= s.FinishedRound.Start:
		data.FinishedRoundPoints = data.CurrentRoundPoints
		data.CurrentRoundPoints = data.NextRoundPoints
	default:
		data.FinishedRoundPoints = account.DebtShares
		data.CurrentRoundPoints = account.DebtShares
	}
	data.NextRoundPoints = account.DebtShares
	if slot > data.LastUpdate {
		data.LastUpdate = slot
	}
}

// Claim moves the account's share of the finished round into its claimable
// balance. A round without points yields nothing.
func (s *Staking) Claim(account *ExchangeAccount) (decimal.Decimal, error) {
	data := &account.UserStaking
	reward := decimal.Zero(s.FinishedRound.Amount.Scale())
	points := data.FinishedRoundPoints
	if s.FinishedRound.Amount.IsZero() || points == 0 || s.FinishedRound.AllPoints == 0 {
		return reward, nil
	}
	if points > s.FinishedRound.AllPoints {
		points = s.FinishedRound.AllPoints
	}
	reward, err := proportional(s.FinishedRound.Amount, points, s.FinishedRound.AllPoints)
	if err != nil {
		return decimal.Decimal{}, err
	}
	claimable := data.AmountToClaim
	if claimable.Scale() != reward.Scale() && claimable.IsZero() {
		claimable = decimal.Zero(reward.Scale())
	}
	if data.AmountToClaim, err = claimable.Add(reward); err != nil {
		return decimal.Decimal{}, arith(err)
	}
	if s.FinishedRound.Amount, err = s.FinishedRound.Amount.Sub(reward); err != nil {
		return decimal.Decimal{}, arith(err)
	}
	s.FinishedRound.AllPoints -= points
	data.FinishedRoundPoints = 0
	return reward, nil
}

func subPoints(total, points uint64) uint64 {
	if points > total {
		return 0
	}
	return total - points
}
