package config

// Staking configures the reward schedule. AmountPerRound is written in whole
// reward tokens, e.g. "100" or "12.5".
type Staking struct {
	FundAccount    string `toml:"FundAccount"`
	RewardToken    string `toml:"RewardToken"`
	RewardDecimals uint8  `toml:"RewardDecimals"`
	RoundLength    uint64 `toml:"RoundLength"`
	AmountPerRound string `toml:"AmountPerRound"`
}

// Collateral registers a collateral token. CollateralRatio is a percentage
// and MaxCollateral is in whole tokens.
type Collateral struct {
	Feed            string `toml:"Feed"`
	Token           string `toml:"Token"`
	Reserve         string `toml:"Reserve"`
	LiquidationFund string `toml:"LiquidationFund"`
	Decimals        uint8  `toml:"Decimals"`
	CollateralRatio string `toml:"CollateralRatio"`
	MaxCollateral   string `toml:"MaxCollateral"`
}

// Synthetic registers a synthetic token. MaxSupply is in whole tokens.
type Synthetic struct {
	Feed      string `toml:"Feed"`
	Token     string `toml:"Token"`
	Decimals  uint8  `toml:"Decimals"`
	MaxSupply string `toml:"MaxSupply"`
}

// Pauses disables the whole exchange module or individual operations by
// name, e.g. "swap" or "liquidate".
type Pauses struct {
	Exchange   bool     `toml:"Exchange"`
	Operations []string `toml:"Operations"`
}

// Protocol is the on-disk genesis and parameter file of an exchange.
// Percentages are written as human percents ("0.3" is 0.3%) and USD amounts
// in whole dollars.
type Protocol struct {
	Admin     string `toml:"Admin"`
	Oracle    string `toml:"Oracle"`
	Slot      uint64 `toml:"Slot"`
	Timestamp int64  `toml:"Timestamp"`

	HealthFactor        string `toml:"HealthFactor"`
	Fee                 string `toml:"Fee"`
	SwapTaxRatio        string `toml:"SwapTaxRatio"`
	LiquidationRate     string `toml:"LiquidationRate"`
	PenaltyToLiquidator string `toml:"PenaltyToLiquidator"`
	PenaltyToExchange   string `toml:"PenaltyToExchange"`
	DebtInterestRate    string `toml:"DebtInterestRate"`
	LiquidationBuffer   uint64 `toml:"LiquidationBuffer"`
	MaxDelay            uint64 `toml:"MaxDelay"`
	MinSwapValue        string `toml:"MinSwapValue"`
	DiscountCollateral  string `toml:"DiscountCollateral,omitempty"`

	USDToken     string `toml:"USDToken"`
	USDMaxSupply string `toml:"USDMaxSupply"`

	Feeds       []string     `toml:"Feeds"`
	Staking     Staking      `toml:"Staking"`
	Collaterals []Collateral `toml:"Collaterals"`
	Synthetics  []Synthetic  `toml:"Synthetics"`
	Pauses      Pauses       `toml:"Pauses"`
}
