package routes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"synthex/config"
	"synthex/decimal"
	"synthex/gateway/middleware"
	"synthex/native/exchange"
)

const exchangeRequestLimit = 1 << 20 // 1 MiB

// Service serialises access to the exchange engine. Execute runs a state
// changing operation on behalf of signer; Query runs a read-only callback.
type Service interface {
	Execute(ctx context.Context, op exchange.Operation, fn func(*exchange.Engine) (*exchange.Receipt, error)) (*exchange.Receipt, error)
	Query(ctx context.Context, fn func(*exchange.Engine) error) error
}

type exchangeRoutes struct {
	svc     Service
	timeout time.Duration
}

func newExchangeRoutes(svc Service) (*exchangeRoutes, error) {
	if svc == nil {
		return nil, fmt.Errorf("nil exchange service")
	}
	return &exchangeRoutes{svc: svc, timeout: 10 * time.Second}, nil
}

// mount functions register under prefix on a shared router so groups with
// the same prefix can carry different middleware.
func (er *exchangeRoutes) mountQueries(r chi.Router, prefix string) {
	r.Get(prefix+"/state", er.getState)
	r.Get(prefix+"/debt", er.getTotalDebt)
	r.Get(prefix+"/accounts/{owner}", er.getAccount)
}

func (er *exchangeRoutes) mountTrading(r chi.Router, prefix string) {
	r.Post(prefix+"/accounts", er.createAccount)
	r.Post(prefix+"/deposit", er.deposit)
	r.Post(prefix+"/withdraw", er.withdraw)
	r.Post(prefix+"/mint", er.mint)
	r.Post(prefix+"/burn", er.burn)
	r.Post(prefix+"/swap", er.swap)
	r.Post(prefix+"/liquidate", er.liquidate)
	r.Post(prefix+"/collateralization", er.checkCollateralization)
	r.Post(prefix+"/rewards/claim", er.claimRewards)
	r.Post(prefix+"/rewards/withdraw", er.withdrawRewards)
}

func (er *exchangeRoutes) mountOracle(r chi.Router, prefix string) {
	r.Post(prefix+"/prices", er.updatePrices)
}

func (er *exchangeRoutes) mountAdmin(r chi.Router, prefix string) {
	r.Post(prefix+"/halt", er.setHalted)
	r.Post(prefix+"/params/{name}", er.setParam)
	r.Post(prefix+"/assets", er.addAsset)
	r.Post(prefix+"/collaterals", er.addCollateral)
	r.Post(prefix+"/synthetics", er.addSynthetic)
	r.Post(prefix+"/synthetics/remove", er.removeSynthetic)
	r.Post(prefix+"/synthetics/borrow", er.borrowSynthetic)
	r.Post(prefix+"/synthetics/repay", er.repaySynthetic)
	r.Post(prefix+"/withdraw/swap-tax", er.withdrawSwapTax)
	r.Post(prefix+"/withdraw/debt-interest", er.withdrawDebtInterest)
	r.Post(prefix+"/withdraw/liquidation-penalty", er.withdrawLiquidationPenalty)
}

func (er *exchangeRoutes) context(parent context.Context) (context.Context, context.CancelFunc) {
	timeout := er.timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return context.WithTimeout(parent, timeout)
}

type stateResponse struct {
	State      *exchange.State      `json:"state"`
	AssetsList *exchange.AssetsList `json:"assetsList"`
	Clock      exchange.Clock       `json:"clock"`
}

func (er *exchangeRoutes) getState(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := er.context(r.Context())
	defer cancel()

	var resp stateResponse
	err := er.svc.Query(ctx, func(eng *exchange.Engine) error {
		state, list, err := eng.Snapshot()
		if err != nil {
			return err
		}
		resp = stateResponse{State: state, AssetsList: list, Clock: eng.Clock()}
		return nil
	})
	if err != nil {
		writeExchangeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (er *exchangeRoutes) getTotalDebt(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := er.context(r.Context())
	defer cancel()

	var total decimal.Decimal
	err := er.svc.Query(ctx, func(eng *exchange.Engine) error {
		var err error
		total, err = eng.TotalDebt()
		return err
	})
	if err != nil {
		writeExchangeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]decimal.Decimal{"totalDebt": total})
}

func (er *exchangeRoutes) getAccount(w http.ResponseWriter, r *http.Request) {
	owner, err := parseAddress("owner", chi.URLParam(r, "owner"))
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	ctx, cancel := er.context(r.Context())
	defer cancel()

	var view *exchange.AccountDebtView
	err = er.svc.Query(ctx, func(eng *exchange.Engine) error {
		var err error
		view, err = eng.AccountDebt(owner)
		return err
	})
	if err != nil {
		writeExchangeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type amountRequest struct {
	Amount uint64 `json:"amount"`
}

type collateralRequest struct {
	Token  string `json:"token"`
	Amount uint64 `json:"amount"`
	All    bool   `json:"all,omitempty"`
}

type swapRequest struct {
	TokenIn  string `json:"tokenIn"`
	TokenOut string `json:"tokenOut"`
	Amount   uint64 `json:"amount"`
}

type liquidateRequest struct {
	Owner  string `json:"owner"`
	Token  string `json:"token"`
	Amount uint64 `json:"amount"`
}

type ownerRequest struct {
	Owner string `json:"owner"`
}

func (er *exchangeRoutes) createAccount(w http.ResponseWriter, r *http.Request) {
	er.run(w, r, exchange.OpCreateAccount, nil, func(eng *exchange.Engine, signer common.Address) (*exchange.Receipt, error) {
		return eng.CreateExchangeAccount(signer)
	})
}

func (er *exchangeRoutes) deposit(w http.ResponseWriter, r *http.Request) {
	req := &collateralRequest{}
	er.run(w, r, exchange.OpDeposit, req, func(eng *exchange.Engine, signer common.Address) (*exchange.Receipt, error) {
		token, err := parseAddress("token", req.Token)
		if err != nil {
			return nil, err
		}
		return eng.Deposit(signer, token, req.Amount)
	})
}

func (er *exchangeRoutes) withdraw(w http.ResponseWriter, r *http.Request) {
	req := &collateralRequest{}
	er.run(w, r, exchange.OpWithdraw, req, func(eng *exchange.Engine, signer common.Address) (*exchange.Receipt, error) {
		token, err := parseAddress("token", req.Token)
		if err != nil {
			return nil, err
		}
		amount := req.Amount
		if req.All {
			amount = exchange.WithdrawAll
		}
		return eng.Withdraw(signer, token, amount)
	})
}

func (er *exchangeRoutes) mint(w http.ResponseWriter, r *http.Request) {
	req := &amountRequest{}
	er.run(w, r, exchange.OpMint, req, func(eng *exchange.Engine, signer common.Address) (*exchange.Receipt, error) {
		return eng.Mint(signer, req.Amount)
	})
}

func (er *exchangeRoutes) burn(w http.ResponseWriter, r *http.Request) {
	req := &amountRequest{}
	er.run(w, r, exchange.OpBurn, req, func(eng *exchange.Engine, signer common.Address) (*exchange.Receipt, error) {
		return eng.Burn(signer, req.Amount)
	})
}

func (er *exchangeRoutes) swap(w http.ResponseWriter, r *http.Request) {
	req := &swapRequest{}
	er.run(w, r, exchange.OpSwap, req, func(eng *exchange.Engine, signer common.Address) (*exchange.Receipt, error) {
		in, err := parseAddress("tokenIn", req.TokenIn)
		if err != nil {
			return nil, err
		}
		out, err := parseAddress("tokenOut", req.TokenOut)
		if err != nil {
			return nil, err
		}
		return eng.Swap(signer, in, out, req.Amount)
	})
}

func (er *exchangeRoutes) liquidate(w http.ResponseWriter, r *http.Request) {
	req := &liquidateRequest{}
	er.run(w, r, exchange.OpLiquidate, req, func(eng *exchange.Engine, signer common.Address) (*exchange.Receipt, error) {
		owner, err := parseAddress("owner", req.Owner)
		if err != nil {
			return nil, err
		}
		token, err := parseAddress("token", req.Token)
		if err != nil {
			return nil, err
		}
		return eng.Liquidate(signer, owner, token, req.Amount)
	})
}

func (er *exchangeRoutes) checkCollateralization(w http.ResponseWriter, r *http.Request) {
	req := &ownerRequest{}
	er.run(w, r, exchange.OpCheckCollateralization, req, func(eng *exchange.Engine, _ common.Address) (*exchange.Receipt, error) {
		owner, err := parseAddress("owner", req.Owner)
		if err != nil {
			return nil, err
		}
		return eng.CheckAccountCollateralization(owner)
	})
}

func (er *exchangeRoutes) claimRewards(w http.ResponseWriter, r *http.Request) {
	er.run(w, r, exchange.OpClaimRewards, nil, func(eng *exchange.Engine, signer common.Address) (*exchange.Receipt, error) {
		return eng.ClaimRewards(signer)
	})
}

func (er *exchangeRoutes) withdrawRewards(w http.ResponseWriter, r *http.Request) {
	er.run(w, r, exchange.OpWithdrawRewards, nil, func(eng *exchange.Engine, signer common.Address) (*exchange.Receipt, error) {
		return eng.WithdrawRewards(signer)
	})
}

type priceRequest struct {
	Feed       string `json:"feed"`
	Price      string `json:"price"`
	Confidence string `json:"confidence"`
	Twap       string `json:"twap"`
	Halted     bool   `json:"halted,omitempty"`
}

type pricesRequest struct {
	Prices []priceRequest `json:"prices"`
}

func (er *exchangeRoutes) updatePrices(w http.ResponseWriter, r *http.Request) {
	req := &pricesRequest{}
	er.run(w, r, exchange.OpUpdatePrices, req, func(eng *exchange.Engine, signer common.Address) (*exchange.Receipt, error) {
		updates := make([]exchange.PriceUpdate, 0, len(req.Prices))
		for i, p := range req.Prices {
			update, err := p.toUpdate()
			if err != nil {
				return nil, fmt.Errorf("prices[%d]: %w", i, err)
			}
			updates = append(updates, update)
		}
		return eng.UpdatePrices(signer, updates)
	})
}

func (p priceRequest) toUpdate() (exchange.PriceUpdate, error) {
	feed, err := parseAddress("feed", p.Feed)
	if err != nil {
		return exchange.PriceUpdate{}, err
	}
	update := exchange.PriceUpdate{Feed: feed, Halted: p.Halted}
	if update.Price, err = parseValue("price", p.Price, decimal.PriceScale); err != nil {
		return exchange.PriceUpdate{}, err
	}
	// confidence and twap default to zero
	if update.Confidence, err = parseOptionalValue("confidence", p.Confidence, decimal.PriceScale); err != nil {
		return exchange.PriceUpdate{}, err
	}
	if update.Twap, err = parseOptionalValue("twap", p.Twap, decimal.PriceScale); err != nil {
		return exchange.PriceUpdate{}, err
	}
	return update, nil
}

// run decodes the request body into req, when present, and executes fn on
// behalf of the authenticated signer.
func (er *exchangeRoutes) run(w http.ResponseWriter, r *http.Request, op exchange.Operation, req interface{}, fn func(*exchange.Engine, common.Address) (*exchange.Receipt, error)) {
	signer, ok := middleware.SignerFromContext(r.Context())
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, errors.New("signer required"))
		return
	}
	if req != nil {
		if err := decodeRequest(r, req); err != nil {
			writeBadRequest(w, err)
			return
		}
	}
	ctx, cancel := er.context(r.Context())
	defer cancel()

	receipt, err := er.svc.Execute(ctx, op, func(eng *exchange.Engine) (*exchange.Receipt, error) {
		return fn(eng, signer)
	})
	if err != nil {
		writeExchangeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

// requestError marks failures in the request payload itself.
type requestError struct {
	field string
	err   error
}

func (e *requestError) Error() string { return e.field + ": " + e.err.Error() }
func (e *requestError) Unwrap() error { return e.err }

func parseAddress(field, raw string) (common.Address, error) {
	raw = strings.TrimSpace(raw)
	if !common.IsHexAddress(raw) {
		return common.Address{}, &requestError{field: field, err: errors.New("invalid address")}
	}
	return common.HexToAddress(raw), nil
}

func parseValue(field, raw string, scale uint8) (decimal.Decimal, error) {
	value, err := decimal.Parse(strings.TrimSpace(raw), scale)
	if err != nil {
		return decimal.Decimal{}, &requestError{field: field, err: err}
	}
	return value, nil
}

func parseOptionalValue(field, raw string, scale uint8) (decimal.Decimal, error) {
	if strings.TrimSpace(raw) == "" {
		return decimal.Zero(scale), nil
	}
	return parseValue(field, raw, scale)
}

func parsePercent(field, raw string) (decimal.Decimal, error) {
	value, err := config.ParsePercent(field, raw)
	if err != nil {
		return decimal.Decimal{}, &requestError{field: field, err: err}
	}
	return value, nil
}

func decodeRequest(r *http.Request, dst interface{}) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, exchangeRequestLimit))
	if err != nil {
		return err
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return errors.New("request body required")
	}
	dec := json.NewDecoder(strings.NewReader(string(body)))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeBadRequest(w http.ResponseWriter, err error) {
	writeJSONError(w, http.StatusBadRequest, err)
}

func writeJSONError(w http.ResponseWriter, status int, err error) {
	message := strings.TrimSpace(err.Error())
	if message == "" {
		message = http.StatusText(status)
	}
	writeJSON(w, status, map[string]string{"error": message})
}

type exchangeErrorResponse struct {
	Error    string            `json:"error"`
	Code     exchange.Code     `json:"code"`
	Category exchange.Category `json:"category,omitempty"`
}

func writeExchangeError(w http.ResponseWriter, err error) {
	var reqErr *requestError
	if errors.As(err, &reqErr) {
		writeBadRequest(w, err)
		return
	}
	if errors.Is(err, context.DeadlineExceeded) {
		writeJSONError(w, http.StatusGatewayTimeout, err)
		return
	}
	writeJSON(w, mapExchangeError(err), exchangeErrorResponse{
		Error:    err.Error(),
		Code:     exchange.CodeOf(err),
		Category: exchange.CategoryOf(err),
	})
}

func mapExchangeError(err error) int {
	switch {
	case errors.Is(err, exchange.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, exchange.ErrAccountNotFound):
		return http.StatusNotFound
	case errors.Is(err, exchange.ErrHalted), errors.Is(err, exchange.ErrNotConfigured):
		return http.StatusServiceUnavailable
	}
	switch exchange.CategoryOf(err) {
	case exchange.CategoryPrecondition:
		return http.StatusBadRequest
	case exchange.CategoryStaleness, exchange.CategoryCapacity:
		return http.StatusConflict
	case exchange.CategoryEconomic, exchange.CategoryArithmetic:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
