package exchange

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"synthex/decimal"
)

// Operation names an engine entry point.
type Operation string

const (
	OpCreateAccount           Operation = "create_account"
	OpDeposit                 Operation = "deposit"
	OpWithdraw                Operation = "withdraw"
	OpMint                    Operation = "mint"
	OpBurn                    Operation = "burn"
	OpSwap                    Operation = "swap"
	OpLiquidate               Operation = "liquidate"
	OpClaimRewards            Operation = "claim_rewards"
	OpWithdrawRewards         Operation = "withdraw_rewards"
	OpCheckCollateralization  Operation = "check_collateralization"
	OpUpdatePrices            Operation = "update_prices"
	OpAdmin                   Operation = "admin"
	OpWithdrawSwapTax         Operation = "withdraw_swap_tax"
	OpWithdrawDebtInterest    Operation = "withdraw_debt_interest"
	OpWithdrawLiquidationFund Operation = "withdraw_liquidation_penalty"
	OpBorrowSynthetic         Operation = "borrow_synthetic"
	OpRepaySynthetic          Operation = "repay_synthetic"
)

// InstructionKind is the ledger primitive an instruction asks for.
type InstructionKind string

const (
	InstructionTransfer InstructionKind = "transfer"
	InstructionMint     InstructionKind = "mint"
	InstructionBurn     InstructionKind = "burn"
)

// Instruction is a token movement the caller must apply to the balance
// ledger. Mints leave From empty and burns leave To empty.
type Instruction struct {
	Kind   InstructionKind `json:"kind"`
	Token  common.Address  `json:"token"`
	From   common.Address  `json:"from"`
	To     common.Address  `json:"to"`
	Amount decimal.Decimal `json:"amount"`
}

// Receipt reports the outcome of a committed operation.
type Receipt struct {
	ID           uuid.UUID       `json:"id"`
	Operation    Operation       `json:"operation"`
	Slot         uint64          `json:"slot"`
	Timestamp    int64           `json:"timestamp"`
	Owner        common.Address  `json:"owner"`
	Amount       decimal.Decimal `json:"amount"`
	Instructions []Instruction   `json:"instructions"`
}

func (r *Receipt) add(kind InstructionKind, token, from, to common.Address, amount decimal.Decimal) {
	if amount.IsZero() {
		return
	}
	r.Instructions = append(r.Instructions, Instruction{
		Kind:   kind,
		Token:  token,
		From:   from,
		To:     to,
		Amount: amount,
	})
}

func (r *Receipt) transfer(token, from, to common.Address, amount decimal.Decimal) {
	r.add(InstructionTransfer, token, from, to, amount)
}

func (r *Receipt) mint(token, to common.Address, amount decimal.Decimal) {
	r.add(InstructionMint, token, common.Address{}, to, amount)
}

func (r *Receipt) burn(token, from common.Address, amount decimal.Decimal) {
	r.add(InstructionBurn, token, from, common.Address{}, amount)
}
