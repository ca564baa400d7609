package exchange

import (
	"math"

	"github.com/ethereum/go-ethereum/common"

	"synthex/decimal"
)

const (
	// RegistryCapacity bounds each table of the assets list.
	RegistryCapacity = 255
	// AccountCollateralCapacity bounds the collateral entries of an account.
	AccountCollateralCapacity = 32

	// LiquidationDeadlineNone marks an account that is not scheduled for
	// liquidation.
	LiquidationDeadlineNone uint64 = math.MaxUint64
	// WithdrawAll requests the largest withdrawal the position allows.
	WithdrawAll uint64 = math.MaxUint64

	// AccountVersion is the layout version stamped on new exchange accounts.
	AccountVersion uint8 = 1
	// StateVersion is the layout version of the global state record.
	StateVersion uint8 = 1

	// MinutesInYear converts an annual debt interest rate into a per-minute
	// compounding rate.
	MinutesInYear = 525_600
	// InterestPeriodSeconds is the compounding period of debt interest.
	InterestPeriodSeconds = 60

	// usdAssetIndex and usdSyntheticIndex locate the static USD entries.
	usdAssetIndex     = 0
	usdSyntheticIndex = 0
)

// AssetStatus reports whether an asset's price may be used for trading.
type AssetStatus uint8

const (
	AssetStatusUninitialized AssetStatus = iota
	AssetStatusTrading
	AssetStatusHalted
)

func (s AssetStatus) String() string {
	switch s {
	case AssetStatusTrading:
		return "trading"
	case AssetStatusHalted:
		return "halted"
	default:
		return "uninitialized"
	}
}

// Asset is a priced underlying. Prices, confidence and twap are expressed at
// the price scale.
type Asset struct {
	FeedAddress common.Address
	Price       decimal.Decimal
	Confidence  decimal.Decimal
	Twap        decimal.Decimal
	// LastUpdate is the slot of the most recent price ingestion.
	LastUpdate uint64
	Status     AssetStatus
}

// Collateral describes a token accepted as collateral. ReserveBalance and
// MaxCollateral are expressed at the token's own scale; CollateralRatio is a
// percentage.
type Collateral struct {
	AssetIndex        uint8
	CollateralAddress common.Address
	ReserveAddress    common.Address
	LiquidationFund   common.Address
	ReserveBalance    decimal.Decimal
	CollateralRatio   decimal.Decimal
	MaxCollateral     decimal.Decimal
}

// Synthetic is a mintable token tracking an asset price. Supply figures are
// expressed at the token's scale. BorrowedSupply is the part of Supply minted
// by the admin outside the debt pool; stakers owe only the remainder.
type Synthetic struct {
	AssetIndex     uint8
	AssetAddress   common.Address
	Supply         decimal.Decimal
	MaxSupply      decimal.Decimal
	BorrowedSupply decimal.Decimal
}

// Decimals returns the token scale of the synthetic.
func (s *Synthetic) Decimals() uint8 { return s.Supply.Scale() }

// AssetsList is the registry of assets, collaterals and synthetics.
type AssetsList struct {
	ID          common.Hash
	Assets      []Asset
	Collaterals []Collateral
	Synthetics  []Synthetic
}

// CollateralEntry is one collateral holding of an account. Amount is a raw
// token amount at the collateral's scale.
type CollateralEntry struct {
	Amount            uint64
	CollateralAddress common.Address
	Index             uint8
}

// UserStaking mirrors the global staking rounds for one account.
type UserStaking struct {
	AmountToClaim       decimal.Decimal
	FinishedRoundPoints uint64
	CurrentRoundPoints  uint64
	NextRoundPoints     uint64
	LastUpdate          uint64
}

// ExchangeAccount is a user position.
type ExchangeAccount struct {
	Version             uint8
	Owner               common.Address
	DebtShares          uint64
	LiquidationDeadline uint64
	UserStaking         UserStaking
	Collaterals         []CollateralEntry
}

// StakingRound is one reward round. Amount is expressed in the reward token.
type StakingRound struct {
	Start     uint64
	Amount    decimal.Decimal
	AllPoints uint64
}

// Staking holds the global reward schedule. Rounds are measured in slots.
type Staking struct {
	FundAccount    common.Address
	RewardToken    common.Address
	RoundLength    uint64
	AmountPerRound decimal.Decimal
	FinishedRound  StakingRound
	CurrentRound   StakingRound
	NextRound      StakingRound
}

// State is the global exchange configuration and accumulators.
type State struct {
	Version    uint8
	Admin      common.Address
	Oracle     common.Address
	Halted     bool
	AssetsList common.Hash
	// DebtShares is the denominator of every account's share of total debt.
	DebtShares   uint64
	HealthFactor decimal.Decimal
	// MaxDelay is the oracle staleness tolerance in slots.
	MaxDelay            uint64
	Fee                 decimal.Decimal
	SwapTaxRatio        decimal.Decimal
	SwapTaxReserve      decimal.Decimal
	LiquidationRate     decimal.Decimal
	PenaltyToLiquidator decimal.Decimal
	PenaltyToExchange   decimal.Decimal
	// LiquidationBuffer is the grace period in slots between a failed
	// collateralization check and liquidation eligibility.
	LiquidationBuffer       uint64
	DebtInterestRate        decimal.Decimal
	AccumulatedDebtInterest decimal.Decimal
	// LastDebtAdjustment is a unix timestamp; it is persisted outside the
	// rlp body since rlp has no signed integers.
	LastDebtAdjustment int64 `rlp:"-"`
	MinSwapValue       decimal.Decimal
	DiscountCollateral common.Address
	Staking            Staking
}

// Clock is the caller supplied time of an operation.
type Clock struct {
	Slot      uint64
	Timestamp int64
}
