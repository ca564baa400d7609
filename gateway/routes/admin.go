package routes

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"synthex/decimal"
	"synthex/native/exchange"
)

type haltRequest struct {
	Halted bool `json:"halted"`
}

// paramRequest carries a new parameter value. Percentages are human
// percents, amounts are whole tokens and slot counts are integers.
type paramRequest struct {
	Token        string `json:"token,omitempty"`
	Value        string `json:"value"`
	ToLiquidator string `json:"toLiquidator,omitempty"`
	ToExchange   string `json:"toExchange,omitempty"`
}

type feedRequest struct {
	Feed string `json:"feed"`
}

type collateralParamsRequest struct {
	Feed            string `json:"feed"`
	Token           string `json:"token"`
	Reserve         string `json:"reserve"`
	LiquidationFund string `json:"liquidationFund"`
	Decimals        uint8  `json:"decimals"`
	CollateralRatio string `json:"collateralRatio"`
	MaxCollateral   string `json:"maxCollateral"`
}

type syntheticParamsRequest struct {
	Feed      string `json:"feed"`
	Token     string `json:"token"`
	Decimals  uint8  `json:"decimals"`
	MaxSupply string `json:"maxSupply"`
}

type tokenRequest struct {
	Token string `json:"token"`
}

type reserveWithdrawalRequest struct {
	Token     string `json:"token,omitempty"`
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
}

func (er *exchangeRoutes) setHalted(w http.ResponseWriter, r *http.Request) {
	req := &haltRequest{}
	er.run(w, r, exchange.OpAdmin, req, func(eng *exchange.Engine, signer common.Address) (*exchange.Receipt, error) {
		return eng.SetHalted(signer, req.Halted)
	})
}

func (er *exchangeRoutes) setParam(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	req := &paramRequest{}
	er.run(w, r, exchange.OpAdmin, req, func(eng *exchange.Engine, signer common.Address) (*exchange.Receipt, error) {
		return applyParam(eng, signer, name, req)
	})
}

func applyParam(eng *exchange.Engine, signer common.Address, name string, req *paramRequest) (*exchange.Receipt, error) {
	switch name {
	case "health-factor", "fee", "swap-tax-ratio", "liquidation-rate", "debt-interest-rate":
		value, err := parsePercent("value", req.Value)
		if err != nil {
			return nil, err
		}
		switch name {
		case "health-factor":
			return eng.SetHealthFactor(signer, value)
		case "fee":
			return eng.SetFee(signer, value)
		case "swap-tax-ratio":
			return eng.SetSwapTaxRatio(signer, value)
		case "liquidation-rate":
			return eng.SetLiquidationRate(signer, value)
		default:
			return eng.SetDebtInterestRate(signer, value)
		}
	case "liquidation-penalties":
		toLiquidator, err := parsePercent("toLiquidator", req.ToLiquidator)
		if err != nil {
			return nil, err
		}
		toExchange, err := parsePercent("toExchange", req.ToExchange)
		if err != nil {
			return nil, err
		}
		return eng.SetLiquidationPenalties(signer, toLiquidator, toExchange)
	case "liquidation-buffer", "max-delay", "staking-round-length":
		slots, err := strconv.ParseUint(req.Value, 10, 64)
		if err != nil {
			return nil, &requestError{field: "value", err: err}
		}
		switch name {
		case "liquidation-buffer":
			return eng.SetLiquidationBuffer(signer, slots)
		case "max-delay":
			return eng.SetMaxDelay(signer, slots)
		default:
			return eng.SetStakingRoundLength(signer, slots)
		}
	case "min-swap-value":
		value, err := parseValue("value", req.Value, decimal.USDScale)
		if err != nil {
			return nil, err
		}
		return eng.SetMinSwapValue(signer, value)
	case "staking-amount-per-round":
		state, _, err := eng.Snapshot()
		if err != nil {
			return nil, err
		}
		value, err := parseValue("value", req.Value, state.Staking.AmountPerRound.Scale())
		if err != nil {
			return nil, err
		}
		return eng.SetStakingAmountPerRound(signer, value)
	case "collateral-ratio":
		token, err := parseAddress("token", req.Token)
		if err != nil {
			return nil, err
		}
		ratio, err := parsePercent("value", req.Value)
		if err != nil {
			return nil, err
		}
		return eng.SetCollateralRatio(signer, token, ratio)
	case "max-collateral", "max-supply":
		token, err := parseAddress("token", req.Token)
		if err != nil {
			return nil, err
		}
		_, list, err := eng.Snapshot()
		if err != nil {
			return nil, err
		}
		if name == "max-collateral" {
			index, err := list.CollateralByAddress(token)
			if err != nil {
				return nil, err
			}
			value, err := parseValue("value", req.Value, list.Collaterals[index].ReserveBalance.Scale())
			if err != nil {
				return nil, err
			}
			return eng.SetMaxCollateral(signer, token, value)
		}
		index, err := list.SyntheticByAddress(token)
		if err != nil {
			return nil, err
		}
		value, err := parseValue("value", req.Value, list.Synthetics[index].Decimals())
		if err != nil {
			return nil, err
		}
		return eng.SetMaxSupply(signer, token, value)
	default:
		return nil, &requestError{field: "name", err: fmt.Errorf("unknown parameter %q", name)}
	}
}

func (er *exchangeRoutes) addAsset(w http.ResponseWriter, r *http.Request) {
	req := &feedRequest{}
	er.run(w, r, exchange.OpAdmin, req, func(eng *exchange.Engine, signer common.Address) (*exchange.Receipt, error) {
		feed, err := parseAddress("feed", req.Feed)
		if err != nil {
			return nil, err
		}
		return eng.AddAsset(signer, feed)
	})
}

func (er *exchangeRoutes) addCollateral(w http.ResponseWriter, r *http.Request) {
	req := &collateralParamsRequest{}
	er.run(w, r, exchange.OpAdmin, req, func(eng *exchange.Engine, signer common.Address) (*exchange.Receipt, error) {
		params := exchange.CollateralParams{Decimals: req.Decimals}
		var err error
		addresses := []struct {
			field string
			raw   string
			out   *common.Address
		}{
			{"feed", req.Feed, &params.Feed},
			{"token", req.Token, &params.Token},
			{"reserve", req.Reserve, &params.Reserve},
			{"liquidationFund", req.LiquidationFund, &params.LiquidationFund},
		}
		for _, a := range addresses {
			if *a.out, err = parseAddress(a.field, a.raw); err != nil {
				return nil, err
			}
		}
		if params.CollateralRatio, err = parsePercent("collateralRatio", req.CollateralRatio); err != nil {
			return nil, err
		}
		if params.MaxCollateral, err = parseValue("maxCollateral", req.MaxCollateral, req.Decimals); err != nil {
			return nil, err
		}
		return eng.AddCollateral(signer, params)
	})
}

func (er *exchangeRoutes) addSynthetic(w http.ResponseWriter, r *http.Request) {
	req := &syntheticParamsRequest{}
	er.run(w, r, exchange.OpAdmin, req, func(eng *exchange.Engine, signer common.Address) (*exchange.Receipt, error) {
		params := exchange.SyntheticParams{Decimals: req.Decimals}
		var err error
		if params.Feed, err = parseAddress("feed", req.Feed); err != nil {
			return nil, err
		}
		if params.Token, err = parseAddress("token", req.Token); err != nil {
			return nil, err
		}
		if params.MaxSupply, err = parseValue("maxSupply", req.MaxSupply, req.Decimals); err != nil {
			return nil, err
		}
		return eng.AddSynthetic(signer, params)
	})
}

func (er *exchangeRoutes) removeSynthetic(w http.ResponseWriter, r *http.Request) {
	req := &tokenRequest{}
	er.run(w, r, exchange.OpAdmin, req, func(eng *exchange.Engine, signer common.Address) (*exchange.Receipt, error) {
		token, err := parseAddress("token", req.Token)
		if err != nil {
			return nil, err
		}
		return eng.RemoveSynthetic(signer, token)
	})
}

// borrowedSupplyRequest moves supply outside the debt pool. Account is the
// recipient of a borrow or the payer of a repayment; amount is in whole
// tokens.
type borrowedSupplyRequest struct {
	Token   string `json:"token"`
	Account string `json:"account"`
	Amount  string `json:"amount"`
}

func (er *exchangeRoutes) borrowSynthetic(w http.ResponseWriter, r *http.Request) {
	req := &borrowedSupplyRequest{}
	er.run(w, r, exchange.OpBorrowSynthetic, req, func(eng *exchange.Engine, signer common.Address) (*exchange.Receipt, error) {
		token, account, amount, err := req.parse(eng)
		if err != nil {
			return nil, err
		}
		return eng.BorrowSynthetic(signer, token, account, amount)
	})
}

func (er *exchangeRoutes) repaySynthetic(w http.ResponseWriter, r *http.Request) {
	req := &borrowedSupplyRequest{}
	er.run(w, r, exchange.OpRepaySynthetic, req, func(eng *exchange.Engine, signer common.Address) (*exchange.Receipt, error) {
		token, account, amount, err := req.parse(eng)
		if err != nil {
			return nil, err
		}
		return eng.RepaySynthetic(signer, token, account, amount)
	})
}

func (req *borrowedSupplyRequest) parse(eng *exchange.Engine) (common.Address, common.Address, decimal.Decimal, error) {
	token, err := parseAddress("token", req.Token)
	if err != nil {
		return common.Address{}, common.Address{}, decimal.Decimal{}, err
	}
	account, err := parseAddress("account", req.Account)
	if err != nil {
		return common.Address{}, common.Address{}, decimal.Decimal{}, err
	}
	_, list, err := eng.Snapshot()
	if err != nil {
		return common.Address{}, common.Address{}, decimal.Decimal{}, err
	}
	index, err := list.SyntheticByAddress(token)
	if err != nil {
		return common.Address{}, common.Address{}, decimal.Decimal{}, err
	}
	amount, err := parseValue("amount", req.Amount, list.Synthetics[index].Decimals())
	if err != nil {
		return common.Address{}, common.Address{}, decimal.Decimal{}, err
	}
	return token, account, amount, nil
}

func (er *exchangeRoutes) withdrawSwapTax(w http.ResponseWriter, r *http.Request) {
	req := &reserveWithdrawalRequest{}
	er.run(w, r, exchange.OpWithdrawSwapTax, req, func(eng *exchange.Engine, signer common.Address) (*exchange.Receipt, error) {
		recipient, amount, err := req.usd()
		if err != nil {
			return nil, err
		}
		return eng.WithdrawSwapTax(signer, recipient, amount)
	})
}

func (er *exchangeRoutes) withdrawDebtInterest(w http.ResponseWriter, r *http.Request) {
	req := &reserveWithdrawalRequest{}
	er.run(w, r, exchange.OpWithdrawDebtInterest, req, func(eng *exchange.Engine, signer common.Address) (*exchange.Receipt, error) {
		recipient, amount, err := req.usd()
		if err != nil {
			return nil, err
		}
		return eng.WithdrawAccumulatedDebtInterest(signer, recipient, amount)
	})
}

func (er *exchangeRoutes) withdrawLiquidationPenalty(w http.ResponseWriter, r *http.Request) {
	req := &reserveWithdrawalRequest{}
	er.run(w, r, exchange.OpWithdrawLiquidationFund, req, func(eng *exchange.Engine, signer common.Address) (*exchange.Receipt, error) {
		token, err := parseAddress("token", req.Token)
		if err != nil {
			return nil, err
		}
		recipient, err := parseAddress("recipient", req.Recipient)
		if err != nil {
			return nil, err
		}
		// raw token units, like deposits
		amount, err := strconv.ParseUint(req.Amount, 10, 64)
		if err != nil {
			return nil, &requestError{field: "amount", err: errors.New("expected raw token units")}
		}
		return eng.WithdrawLiquidationPenalty(signer, token, recipient, amount)
	})
}

func (req *reserveWithdrawalRequest) usd() (common.Address, decimal.Decimal, error) {
	recipient, err := parseAddress("recipient", req.Recipient)
	if err != nil {
		return common.Address{}, decimal.Decimal{}, err
	}
	amount, err := parseValue("amount", req.Amount, decimal.USDScale)
	if err != nil {
		return common.Address{}, decimal.Decimal{}, err
	}
	return recipient, amount, nil
}
