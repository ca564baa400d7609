package exchange

import (
	"github.com/ethereum/go-ethereum/common"

	"synthex/decimal"
)

// PriceUpdate is one oracle observation. All values use the price scale.
type PriceUpdate struct {
	Feed       common.Address
	Price      decimal.Decimal
	Confidence decimal.Decimal
	Twap       decimal.Decimal
	// Halted marks the feed as not tradable, e.g. outside market hours.
	Halted bool
}

// UpdatePrices records oracle observations at the current slot. Only the
// admin or the configured oracle may submit prices; the static USD asset is
// never repriced.
func (e *Engine) UpdatePrices(signer common.Address, updates []PriceUpdate) (*Receipt, error) {
	if err := requireSigner(signer); err != nil {
		return nil, err
	}
	if len(updates) == 0 {
		return nil, ErrInvalidAmount.with("no price updates")
	}
	t, err := e.begin(OpUpdatePrices, signer, false)
	if err != nil {
		return nil, err
	}
	if signer != t.state.Admin && signer != t.state.Oracle {
		return nil, ErrUnauthorized.with("signer %s may not update prices", signer.Hex())
	}
	for _, update := range updates {
		if err := validatePriceUpdate(update); err != nil {
			return nil, err
		}
		index, err := t.list.AssetByFeed(update.Feed)
		if err != nil {
			return nil, err
		}
		if index == usdAssetIndex {
			return nil, ErrParameterRange.with("usd asset price is fixed")
		}
		asset := &t.list.Assets[index]
		asset.Price = update.Price
		asset.Confidence = update.Confidence
		asset.Twap = update.Twap
		asset.LastUpdate = t.clock.Slot
		if update.Halted {
			asset.Status = AssetStatusHalted
		} else {
			asset.Status = AssetStatusTrading
		}
	}
	t.receipt.Amount = decimal.FromInteger(uint64(len(updates)))
	return t.commit()
}

func validatePriceUpdate(update PriceUpdate) error {
	for _, value := range []decimal.Decimal{update.Price, update.Confidence, update.Twap} {
		if value.Scale() != decimal.PriceScale {
			return ErrParameterRange.with("feed %s: prices must have scale %d", update.Feed.Hex(), decimal.PriceScale)
		}
	}
	if update.Price.IsZero() {
		return ErrParameterRange.with("feed %s: price must be positive", update.Feed.Hex())
	}
	return nil
}
