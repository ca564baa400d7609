package exchange

import (
	"github.com/ethereum/go-ethereum/common"
)

// Clone returns a deep copy of the registry.
func (l *AssetsList) Clone() *AssetsList {
	if l == nil {
		return nil
	}
	clone := &AssetsList{ID: l.ID}
	clone.Assets = append([]Asset(nil), l.Assets...)
	clone.Collaterals = append([]Collateral(nil), l.Collaterals...)
	clone.Synthetics = append([]Synthetic(nil), l.Synthetics...)
	return clone
}

// AppendAsset adds an asset and returns its index.
func (l *AssetsList) AppendAsset(asset Asset) (uint8, error) {
	if len(l.Assets) >= RegistryCapacity {
		return 0, ErrCapacityExceeded.with("assets table full")
	}
	l.Assets = append(l.Assets, asset)
	return uint8(len(l.Assets) - 1), nil
}

// AppendCollateral adds a collateral type.
func (l *AssetsList) AppendCollateral(collateral Collateral) (uint8, error) {
	if len(l.Collaterals) >= RegistryCapacity {
		return 0, ErrCapacityExceeded.with("collaterals table full")
	}
	if int(collateral.AssetIndex) >= len(l.Assets) {
		return 0, ErrUnknownAsset.with("asset index %d", collateral.AssetIndex)
	}
	l.Collaterals = append(l.Collaterals, collateral)
	return uint8(len(l.Collaterals) - 1), nil
}

// AppendSynthetic adds a synthetic token.
func (l *AssetsList) AppendSynthetic(synthetic Synthetic) (uint8, error) {
	if len(l.Synthetics) >= RegistryCapacity {
		return 0, ErrCapacityExceeded.with("synthetics table full")
	}
	if int(synthetic.AssetIndex) >= len(l.Assets) {
		return 0, ErrUnknownAsset.with("asset index %d", synthetic.AssetIndex)
	}
	l.Synthetics = append(l.Synthetics, synthetic)
	return uint8(len(l.Synthetics) - 1), nil
}

// RemoveSynthetic moves the last synthetic into slot index and shrinks the
// table. Indices held elsewhere must be resolved again afterwards.
func (l *AssetsList) RemoveSynthetic(index int) error {
	if index < 0 || index >= len(l.Synthetics) {
		return ErrUnknownSynthetic.with("index %d", index)
	}
	last := len(l.Synthetics) - 1
	l.Synthetics[index] = l.Synthetics[last]
	l.Synthetics = l.Synthetics[:last]
	return nil
}

// AssetByFeed returns the index of the asset priced by feed.
func (l *AssetsList) AssetByFeed(feed common.Address) (int, error) {
	for i := range l.Assets {
		if l.Assets[i].FeedAddress == feed {
			return i, nil
		}
	}
	return -1, ErrUnknownAsset.with("feed %s", feed.Hex())
}

// CollateralByAddress returns the index of the collateral for token.
func (l *AssetsList) CollateralByAddress(token common.Address) (int, error) {
	for i := range l.Collaterals {
		if l.Collaterals[i].CollateralAddress == token {
			return i, nil
		}
	}
	return -1, ErrUnknownCollateral.with("token %s", token.Hex())
}

// SyntheticByAddress returns the index of the synthetic for token.
func (l *AssetsList) SyntheticByAddress(token common.Address) (int, error) {
	for i := range l.Synthetics {
		if l.Synthetics[i].AssetAddress == token {
			return i, nil
		}
	}
	return -1, ErrUnknownSynthetic.with("token %s", token.Hex())
}

// USD returns the USD synthetic.
func (l *AssetsList) USD() (*Synthetic, error) {
	if len(l.Synthetics) == 0 {
		return nil, ErrNotConfigured.with("usd synthetic missing")
	}
	return &l.Synthetics[usdSyntheticIndex], nil
}
