package exchange

import (
	"errors"
	"fmt"

	"synthex/decimal"
)

// Category groups failure codes by how a caller should react to them.
type Category string

const (
	CategoryPrecondition Category = "precondition"
	CategoryStaleness    Category = "staleness"
	CategoryEconomic     Category = "economic"
	CategoryArithmetic   Category = "arithmetic"
	CategoryCapacity     Category = "capacity"
)

// Code identifies a failure and is stable across releases; it is used as a
// metrics label and in API responses.
type Code string

// Error is the typed failure returned by every engine entry point.
type Error struct {
	Code     Code
	Category Category
	Detail   string
	Err      error
}

func (e *Error) Error() string {
	msg := "exchange: " + string(e.Code)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error carrying the same code, so wrapped failures with
// detail still satisfy errors.Is against the exported sentinels.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return other.Code == e.Code
}

func (e *Error) with(format string, args ...any) *Error {
	clone := *e
	clone.Detail = fmt.Sprintf(format, args...)
	return &clone
}

func newError(code Code, category Category) *Error {
	return &Error{Code: code, Category: category}
}

var (
	ErrUnauthorized       = newError("unauthorized", CategoryPrecondition)
	ErrHalted             = newError("halted", CategoryPrecondition)
	ErrInvalidSigner      = newError("invalid_signer", CategoryPrecondition)
	ErrWashTrade          = newError("wash_trade", CategoryPrecondition)
	ErrAccountVersion     = newError("account_version", CategoryPrecondition)
	ErrInvalidAssetsList  = newError("invalid_assets_list", CategoryPrecondition)
	ErrAccountExists      = newError("account_exists", CategoryPrecondition)
	ErrAccountNotFound    = newError("account_not_found", CategoryPrecondition)
	ErrUnknownCollateral  = newError("unknown_collateral", CategoryPrecondition)
	ErrUnknownSynthetic   = newError("unknown_synthetic", CategoryPrecondition)
	ErrUnknownAsset       = newError("unknown_asset", CategoryPrecondition)
	ErrCollateralNotFound = newError("collateral_not_found", CategoryPrecondition)
	ErrInvalidAmount      = newError("invalid_amount", CategoryPrecondition)
	ErrParameterRange     = newError("parameter_out_of_range", CategoryPrecondition)
	ErrClockRegression    = newError("clock_regression", CategoryPrecondition)
	ErrAssetNotTrading    = newError("asset_not_trading", CategoryPrecondition)
	ErrNotConfigured      = newError("not_configured", CategoryPrecondition)

	ErrOutdatedOracle = newError("outdated_oracle", CategoryStaleness)

	ErrMintLimit              = newError("mint_limit", CategoryEconomic)
	ErrWithdrawLimit          = newError("withdraw_limit", CategoryEconomic)
	ErrInvalidLiquidation     = newError("invalid_liquidation", CategoryEconomic)
	ErrInsufficientValueTrade = newError("insufficient_value_trade", CategoryEconomic)
	ErrMaxSupply              = newError("max_supply", CategoryEconomic)
	ErrCollateralLimit        = newError("collateral_limit", CategoryEconomic)
	ErrLiquidationDeadline    = newError("liquidation_deadline", CategoryEconomic)
	ErrNoRewards              = newError("no_rewards", CategoryEconomic)
	ErrInsufficientReserve    = newError("insufficient_reserve", CategoryEconomic)

	ErrOverflow       = newError("overflow", CategoryArithmetic)
	ErrUnderflow      = newError("underflow", CategoryArithmetic)
	ErrScaleMismatch  = newError("scale_mismatch", CategoryArithmetic)
	ErrDivisionByZero = newError("division_by_zero", CategoryArithmetic)

	ErrCapacityExceeded = newError("capacity_exceeded", CategoryCapacity)
)

// arith lifts decimal failures into the arithmetic category while keeping
// the decimal sentinel reachable through errors.Is.
func arith(err error) error {
	if err == nil {
		return nil
	}
	var typed *Error
	if errors.As(err, &typed) {
		return err
	}
	var base *Error
	switch {
	case errors.Is(err, decimal.ErrOverflow):
		base = ErrOverflow
	case errors.Is(err, decimal.ErrUnderflow):
		base = ErrUnderflow
	case errors.Is(err, decimal.ErrScaleMismatch):
		base = ErrScaleMismatch
	case errors.Is(err, decimal.ErrDivisionByZero):
		base = ErrDivisionByZero
	default:
		return err
	}
	clone := *base
	clone.Err = err
	return &clone
}

// CodeOf returns the failure code of err or "internal" for untyped errors.
func CodeOf(err error) Code {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Code
	}
	return "internal"
}

// CategoryOf returns the failure category of err, empty for untyped errors.
func CategoryOf(err error) Category {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Category
	}
	return ""
}
