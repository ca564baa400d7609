package exchange

import (
	"crypto/sha256"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"

	"synthex/decimal"
)

// StakingGenesis configures the reward schedule.
type StakingGenesis struct {
	FundAccount    common.Address
	RewardToken    common.Address
	RoundLength    uint64
	AmountPerRound decimal.Decimal
}

// Genesis is the initial configuration of an exchange.
type Genesis struct {
	Admin     common.Address
	Oracle    common.Address
	Slot      uint64
	Timestamp int64

	HealthFactor        decimal.Decimal
	Fee                 decimal.Decimal
	SwapTaxRatio        decimal.Decimal
	LiquidationRate     decimal.Decimal
	PenaltyToLiquidator decimal.Decimal
	PenaltyToExchange   decimal.Decimal
	DebtInterestRate    decimal.Decimal
	LiquidationBuffer   uint64
	MaxDelay            uint64
	MinSwapValue        decimal.Decimal
	DiscountCollateral  common.Address

	// USDToken is the address of the USD synthetic; USDMaxSupply its cap.
	USDToken     common.Address
	USDMaxSupply decimal.Decimal

	Staking     StakingGenesis
	Feeds       []common.Address
	Collaterals []CollateralParams
	Synthetics  []SyntheticParams
}

// BuildGenesis validates g and produces the initial records. The static USD
// asset and synthetic always occupy index 0.
func BuildGenesis(g Genesis) (*State, *AssetsList, error) {
	if err := requireSigner(g.Admin); err != nil {
		return nil, nil, err
	}
	for name, value := range map[string]decimal.Decimal{
		"fee":                g.Fee,
		"swap tax ratio":     g.SwapTaxRatio,
		"liquidator penalty": g.PenaltyToLiquidator,
		"exchange penalty":   g.PenaltyToExchange,
		"debt interest rate": g.DebtInterestRate,
	} {
		if err := requirePercent(value, name); err != nil {
			return nil, nil, err
		}
	}
	if err := requirePositivePercent(g.HealthFactor, "health factor"); err != nil {
		return nil, nil, err
	}
	if err := requirePositivePercent(g.LiquidationRate, "liquidation rate"); err != nil {
		return nil, nil, err
	}
	if g.USDMaxSupply.Scale() != decimal.USDScale {
		return nil, nil, ErrParameterRange.with("usd max supply must have scale %d", decimal.USDScale)
	}
	if g.MinSwapValue.Scale() != decimal.USDScale {
		return nil, nil, ErrParameterRange.with("min swap value must have scale %d", decimal.USDScale)
	}
	if err := requireRoundLength(g.Staking.RoundLength); err != nil {
		return nil, nil, err
	}
	if _, ok := addSlots(g.Slot, 2*g.Staking.RoundLength); !ok {
		return nil, nil, ErrParameterRange.with("genesis slot %d too close to the slot limit", g.Slot)
	}

	list := &AssetsList{}
	if _, err := list.AppendAsset(Asset{
		Price:      decimal.One(decimal.PriceScale),
		Confidence: decimal.Zero(decimal.PriceScale),
		Twap:       decimal.One(decimal.PriceScale),
		LastUpdate: g.Slot,
		Status:     AssetStatusTrading,
	}); err != nil {
		return nil, nil, err
	}
	if _, err := list.AppendSynthetic(Synthetic{
		AssetIndex:     usdAssetIndex,
		AssetAddress:   g.USDToken,
		Supply:         decimal.Zero(decimal.USDScale),
		MaxSupply:      g.USDMaxSupply,
		BorrowedSupply: decimal.Zero(decimal.USDScale),
	}); err != nil {
		return nil, nil, err
	}
	for _, feed := range g.Feeds {
		if feed == (common.Address{}) {
			return nil, nil, ErrParameterRange.with("feed address is empty")
		}
		if err := registerAsset(list, feed); err != nil {
			return nil, nil, err
		}
	}
	for _, params := range g.Collaterals {
		if err := registerCollateral(list, params); err != nil {
			return nil, nil, err
		}
	}
	for _, params := range g.Synthetics {
		if err := registerSynthetic(list, params); err != nil {
			return nil, nil, err
		}
	}
	if g.DiscountCollateral != (common.Address{}) {
		if _, err := list.CollateralByAddress(g.DiscountCollateral); err != nil {
			return nil, nil, err
		}
	}

	id, err := registryID(list, g)
	if err != nil {
		return nil, nil, err
	}
	list.ID = id

	reward := g.Staking.AmountPerRound
	state := &State{
		Version:                 StateVersion,
		Admin:                   g.Admin,
		Oracle:                  g.Oracle,
		AssetsList:              id,
		HealthFactor:            g.HealthFactor,
		MaxDelay:                g.MaxDelay,
		Fee:                     g.Fee,
		SwapTaxRatio:            g.SwapTaxRatio,
		SwapTaxReserve:          decimal.Zero(decimal.USDScale),
		LiquidationRate:         g.LiquidationRate,
		PenaltyToLiquidator:     g.PenaltyToLiquidator,
		PenaltyToExchange:       g.PenaltyToExchange,
		LiquidationBuffer:       g.LiquidationBuffer,
		DebtInterestRate:        g.DebtInterestRate,
		AccumulatedDebtInterest: decimal.Zero(decimal.USDScale),
		LastDebtAdjustment:      g.Timestamp,
		MinSwapValue:            g.MinSwapValue,
		DiscountCollateral:      g.DiscountCollateral,
		Staking: Staking{
			FundAccount:    g.Staking.FundAccount,
			RewardToken:    g.Staking.RewardToken,
			RoundLength:    g.Staking.RoundLength,
			AmountPerRound: reward,
			FinishedRound:  StakingRound{Amount: decimal.Zero(reward.Scale())},
			CurrentRound:   StakingRound{Start: g.Slot, Amount: reward},
			NextRound:      StakingRound{Start: g.Slot + g.Staking.RoundLength, Amount: reward},
		},
	}
	return state, list, nil
}

// registryID derives the registry identity from its initial contents so a
// state can only ever be paired with the registry it was created with.
func registryID(list *AssetsList, g Genesis) (common.Hash, error) {
	encoded, err := rlp.EncodeToBytes(list)
	if err != nil {
		return common.Hash{}, fmt.Errorf("encode registry: %w", err)
	}
	seed := append(encoded, g.Admin.Bytes()...)
	seed = append(seed, []byte(fmt.Sprintf("%d/%d", g.Slot, g.Timestamp))...)
	return common.Hash(sha256.Sum256(seed)), nil
}

// WriteGenesis initialises an empty store.
func (s *Store) WriteGenesis(g Genesis) (*State, *AssetsList, error) {
	initialized, err := s.Initialized()
	if err != nil {
		return nil, nil, err
	}
	if initialized {
		return nil, nil, fmt.Errorf("exchange store already initialised")
	}
	state, list, err := BuildGenesis(g)
	if err != nil {
		return nil, nil, err
	}
	if err := s.Commit(&Changeset{State: state, AssetsList: list}); err != nil {
		return nil, nil, err
	}
	return state, list, nil
}
