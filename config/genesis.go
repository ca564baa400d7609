package config

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	shopspring "github.com/shopspring/decimal"

	"synthex/decimal"
	nativecommon "synthex/native/common"
	"synthex/native/exchange"
)

// ToGenesis converts the file representation into exchange genesis
// parameters at their fixed-point scales.
func (p *Protocol) ToGenesis() (exchange.Genesis, error) {
	var (
		g   exchange.Genesis
		err error
	)
	if g.Admin, err = parseAddress("Admin", p.Admin); err != nil {
		return g, err
	}
	if g.Oracle, err = parseOptionalAddress("Oracle", p.Oracle); err != nil {
		return g, err
	}
	g.Slot = p.Slot
	g.Timestamp = p.Timestamp
	g.LiquidationBuffer = p.LiquidationBuffer
	g.MaxDelay = p.MaxDelay

	percents := []struct {
		field string
		raw   string
		out   *decimal.Decimal
	}{
		{"HealthFactor", p.HealthFactor, &g.HealthFactor},
		{"Fee", p.Fee, &g.Fee},
		{"SwapTaxRatio", p.SwapTaxRatio, &g.SwapTaxRatio},
		{"LiquidationRate", p.LiquidationRate, &g.LiquidationRate},
		{"PenaltyToLiquidator", p.PenaltyToLiquidator, &g.PenaltyToLiquidator},
		{"PenaltyToExchange", p.PenaltyToExchange, &g.PenaltyToExchange},
		{"DebtInterestRate", p.DebtInterestRate, &g.DebtInterestRate},
	}
	for _, pc := range percents {
		if *pc.out, err = ParsePercent(pc.field, pc.raw); err != nil {
			return g, err
		}
	}
	if g.MinSwapValue, err = parseAmount("MinSwapValue", p.MinSwapValue, decimal.USDScale); err != nil {
		return g, err
	}
	if g.DiscountCollateral, err = parseOptionalAddress("DiscountCollateral", p.DiscountCollateral); err != nil {
		return g, err
	}
	if g.USDToken, err = parseAddress("USDToken", p.USDToken); err != nil {
		return g, err
	}
	if g.USDMaxSupply, err = parseAmount("USDMaxSupply", p.USDMaxSupply, decimal.USDScale); err != nil {
		return g, err
	}

	if g.Staking, err = p.Staking.toGenesis(); err != nil {
		return g, err
	}
	for i, raw := range p.Feeds {
		feed, err := parseAddress(fmt.Sprintf("Feeds[%d]", i), raw)
		if err != nil {
			return g, err
		}
		g.Feeds = append(g.Feeds, feed)
	}
	for i, c := range p.Collaterals {
		params, err := c.toParams(i)
		if err != nil {
			return g, err
		}
		g.Collaterals = append(g.Collaterals, params)
	}
	for i, s := range p.Synthetics {
		params, err := s.toParams(i)
		if err != nil {
			return g, err
		}
		g.Synthetics = append(g.Synthetics, params)
	}
	return g, nil
}

func (s Staking) toGenesis() (exchange.StakingGenesis, error) {
	var (
		out exchange.StakingGenesis
		err error
	)
	if out.FundAccount, err = parseAddress("Staking.FundAccount", s.FundAccount); err != nil {
		return out, err
	}
	if out.RewardToken, err = parseAddress("Staking.RewardToken", s.RewardToken); err != nil {
		return out, err
	}
	out.RoundLength = s.RoundLength
	out.AmountPerRound, err = parseAmount("Staking.AmountPerRound", s.AmountPerRound, s.RewardDecimals)
	return out, err
}

func (c Collateral) toParams(i int) (exchange.CollateralParams, error) {
	var (
		out exchange.CollateralParams
		err error
	)
	field := func(name string) string { return fmt.Sprintf("Collaterals[%d].%s", i, name) }
	if out.Feed, err = parseAddress(field("Feed"), c.Feed); err != nil {
		return out, err
	}
	if out.Token, err = parseAddress(field("Token"), c.Token); err != nil {
		return out, err
	}
	if out.Reserve, err = parseAddress(field("Reserve"), c.Reserve); err != nil {
		return out, err
	}
	if out.LiquidationFund, err = parseAddress(field("LiquidationFund"), c.LiquidationFund); err != nil {
		return out, err
	}
	out.Decimals = c.Decimals
	if out.CollateralRatio, err = ParsePercent(field("CollateralRatio"), c.CollateralRatio); err != nil {
		return out, err
	}
	out.MaxCollateral, err = parseAmount(field("MaxCollateral"), c.MaxCollateral, c.Decimals)
	return out, err
}

func (s Synthetic) toParams(i int) (exchange.SyntheticParams, error) {
	var (
		out exchange.SyntheticParams
		err error
	)
	field := func(name string) string { return fmt.Sprintf("Synthetics[%d].%s", i, name) }
	if out.Feed, err = parseAddress(field("Feed"), s.Feed); err != nil {
		return out, err
	}
	if out.Token, err = parseAddress(field("Token"), s.Token); err != nil {
		return out, err
	}
	out.Decimals = s.Decimals
	out.MaxSupply, err = parseAmount(field("MaxSupply"), s.MaxSupply, s.Decimals)
	return out, err
}

// PauseSet returns the configured pauses keyed the way the exchange guard
// looks them up.
func (p Pauses) PauseSet() nativecommon.PauseSet {
	set := nativecommon.PauseSet{}
	if p.Exchange {
		set["exchange"] = true
	}
	for _, op := range p.Operations {
		if op = strings.TrimSpace(op); op != "" {
			set["exchange."+op] = true
		}
	}
	return set
}

// ParsePercent reads a human percentage such as "0.3" into a ratio at the
// percent scale (0.3% is 300).
func ParsePercent(field, raw string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return decimal.Zero(decimal.PercentScale), nil
	}
	parsed, err := shopspring.NewFromString(trimmed)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid %s: %w", field, err)
	}
	ratio, err := decimal.Parse(parsed.Shift(-2).String(), decimal.PercentScale)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid %s: %w", field, err)
	}
	return ratio, nil
}

func parseAmount(field, raw string, scale uint8) (decimal.Decimal, error) {
	amount, err := decimal.Parse(raw, scale)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid %s: %w", field, err)
	}
	return amount, nil
}

func parseAddress(field, raw string) (common.Address, error) {
	trimmed := strings.TrimSpace(raw)
	if !common.IsHexAddress(trimmed) {
		return common.Address{}, fmt.Errorf("invalid %s: %q is not a hex address", field, raw)
	}
	addr := common.HexToAddress(trimmed)
	if addr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("invalid %s: zero address", field)
	}
	return addr, nil
}

func parseOptionalAddress(field, raw string) (common.Address, error) {
	if strings.TrimSpace(raw) == "" {
		return common.Address{}, nil
	}
	return parseAddress(field, raw)
}
