// Package exchanged serialises access to the exchange engine for the HTTP
// daemon and publishes its metrics.
package exchanged

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"synthex/native/exchange"
	"synthex/observability"
)

// Service is the single writer in front of an exchange engine. Every call
// advances the engine clock to the slot clock first.
type Service struct {
	mu      sync.Mutex
	engine  *exchange.Engine
	clock   *SlotClock
	logger  *slog.Logger
	metrics *observability.ExchangeMetrics
	tracer  trace.Tracer
}

func New(engine *exchange.Engine, clock *SlotClock, logger *slog.Logger) (*Service, error) {
	if engine == nil {
		return nil, errors.New("exchanged: engine required")
	}
	if clock == nil {
		return nil, errors.New("exchanged: slot clock required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		engine:  engine,
		clock:   clock,
		logger:  logger.With("component", "exchange"),
		metrics: observability.Exchange(),
		tracer:  otel.Tracer("synthex/exchanged"),
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.tick(); err != nil {
		return nil, err
	}
	s.refreshSolvency()
	return s, nil
}

func (s *Service) tick() error {
	return s.engine.SetClock(monotonic(s.engine.Clock(), s.clock.Now()))
}

func (s *Service) Execute(ctx context.Context, op exchange.Operation, fn func(*exchange.Engine) (*exchange.Receipt, error)) (*exchange.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	_, span := s.tracer.Start(ctx, "exchange."+string(op), trace.WithAttributes(
		attribute.String("exchange.operation", string(op)),
	))
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.tick(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int64("exchange.slot", int64(s.engine.Clock().Slot)))

	start := time.Now()
	receipt, err := fn(s.engine)
	duration := time.Since(start)
	if err != nil {
		code := string(exchange.CodeOf(err))
		span.SetAttributes(attribute.String("exchange.code", code))
		span.SetStatus(codes.Error, err.Error())
		s.metrics.ObserveOperation(string(op), code, duration)
		s.logger.Warn("operation rejected",
			"operation", string(op),
			"code", code,
			"category", string(exchange.CategoryOf(err)),
			"error", err)
		return nil, err
	}
	s.metrics.ObserveOperation(string(op), "", duration)
	span.SetAttributes(attribute.String("exchange.receipt", receipt.ID.String()))
	s.logger.Info("operation committed",
		"operation", string(receipt.Operation),
		"receipt", receipt.ID.String(),
		"owner", receipt.Owner.Hex(),
		"slot", receipt.Slot)
	events := observability.Events()
	for _, instr := range receipt.Instructions {
		events.RecordInstruction(string(instr.Kind), instr.Token.Hex())
	}
	s.refreshSolvency()
	return receipt, nil
}

// Query runs fn under the writer lock. fn must not call state changing
// engine methods.
func (s *Service) Query(ctx context.Context, fn func(*exchange.Engine) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.tick(); err != nil {
		return err
	}
	return fn(s.engine)
}

// refreshSolvency publishes the committed accumulators. The debt gauge keeps
// its previous value while an oracle is stale.
func (s *Service) refreshSolvency() {
	state, _, err := s.engine.Snapshot()
	if err != nil {
		s.logger.Warn("solvency snapshot failed", "error", err)
		return
	}
	snapshot := observability.SolvencySnapshot{
		DebtShares:        state.DebtShares,
		AccruedInterest:   state.AccumulatedDebtInterest.Float64(),
		SwapTaxReserveUSD: state.SwapTaxReserve.Float64(),
		Slot:              s.engine.Clock().Slot,
	}
	if total, err := s.engine.TotalDebt(); err == nil {
		snapshot.TotalDebtUSD = total.Float64()
	} else {
		snapshot.DebtUnknown = true
	}
	s.metrics.SetSolvency(snapshot)
}
