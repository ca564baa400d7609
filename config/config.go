package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Load reads the protocol file at path. A missing file is replaced by a
// local development default, which is written to disk and returned.
func Load(path string) (*Protocol, error) {
	cfg := &Protocol{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return nil, fmt.Errorf("config file %s has unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if cfg.Pauses.Operations == nil {
		cfg.Pauses.Operations = []string{}
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// Default returns a single-collateral development setup.
func Default() *Protocol {
	return &Protocol{
		Admin:               "0x00000000000000000000000000000000000000a1",
		Oracle:              "0x00000000000000000000000000000000000000a2",
		HealthFactor:        "50",
		Fee:                 "0.3",
		SwapTaxRatio:        "20",
		LiquidationRate:     "20",
		PenaltyToLiquidator: "5",
		PenaltyToExchange:   "5",
		DebtInterestRate:    "1",
		LiquidationBuffer:   172_800,
		MaxDelay:            10,
		MinSwapValue:        "1",
		DiscountCollateral:  "0x00000000000000000000000000000000000000c3",
		USDToken:            "0x00000000000000000000000000000000000000c1",
		USDMaxSupply:        "1000000000",
		Feeds:               []string{"0x00000000000000000000000000000000000000d1"},
		Staking: Staking{
			FundAccount:    "0x00000000000000000000000000000000000000e3",
			RewardToken:    "0x00000000000000000000000000000000000000c3",
			RewardDecimals: 6,
			RoundLength:    86_400,
			AmountPerRound: "100",
		},
		Collaterals: []Collateral{{
			Feed:            "0x00000000000000000000000000000000000000d1",
			Token:           "0x00000000000000000000000000000000000000c3",
			Reserve:         "0x00000000000000000000000000000000000000e1",
			LiquidationFund: "0x00000000000000000000000000000000000000e2",
			Decimals:        6,
			CollateralRatio: "50",
			MaxCollateral:   "10000000",
		}},
		Synthetics: []Synthetic{},
		Pauses:     Pauses{Operations: []string{}},
	}
}

func createDefault(path string) (*Protocol, error) {
	cfg := Default()
	if err := Persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Persist writes cfg to path as TOML, creating parent directories.
func Persist(path string, cfg *Protocol) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
