package exchanged

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"synthex/config"
	"synthex/native/exchange"
	"synthex/storage"
)

var userAddr = common.HexToAddress("0x00000000000000000000000000000000000000b1")

func TestSlotClock(t *testing.T) {
	clock := NewSlotClock(100, 1_700_000_000, 500*time.Millisecond)
	now := time.Unix(1_700_000_010, 0)
	clock.now = func() time.Time { return now }
	require.Equal(t, exchange.Clock{Slot: 120, Timestamp: 1_700_000_010}, clock.Now())

	now = time.Unix(1_600_000_000, 0)
	require.Equal(t, uint64(100), clock.Now().Slot, "pre-genesis wall time stays at the genesis slot")
}

func TestMonotonic(t *testing.T) {
	prev := exchange.Clock{Slot: 10, Timestamp: 500}
	require.Equal(t, exchange.Clock{Slot: 10, Timestamp: 600}, monotonic(prev, exchange.Clock{Slot: 9, Timestamp: 600}))
	require.Equal(t, exchange.Clock{Slot: 11, Timestamp: 500}, monotonic(prev, exchange.Clock{Slot: 11, Timestamp: 400}))
}

func newService(t *testing.T) (*Service, *SlotClock, *time.Time) {
	t.Helper()
	genesis, err := config.Default().ToGenesis()
	require.NoError(t, err)
	genesis.Timestamp = 1_700_000_000
	store := exchange.NewStore(storage.NewMemDB())
	_, _, err = store.WriteGenesis(genesis)
	require.NoError(t, err)

	engine := exchange.NewEngine()
	engine.SetState(store)
	clock := NewSlotClock(genesis.Slot, genesis.Timestamp, time.Second)
	now := time.Unix(genesis.Timestamp, 0)
	clock.now = func() time.Time { return now }
	svc, err := New(engine, clock, nil)
	require.NoError(t, err)
	return svc, clock, &now
}

func TestServiceAdvancesClock(t *testing.T) {
	svc, _, now := newService(t)
	*now = now.Add(30 * time.Second)

	receipt, err := svc.Execute(context.Background(), exchange.OpCreateAccount, func(eng *exchange.Engine) (*exchange.Receipt, error) {
		return eng.CreateExchangeAccount(userAddr)
	})
	require.NoError(t, err)
	require.Equal(t, uint64(30), receipt.Slot)
	require.Equal(t, now.Unix(), receipt.Timestamp)

	// a wall clock step backwards never regresses the engine
	*now = now.Add(-10 * time.Second)
	err = svc.Query(context.Background(), func(eng *exchange.Engine) error {
		require.Equal(t, uint64(30), eng.Clock().Slot)
		_, err := eng.AccountDebt(userAddr)
		return err
	})
	require.NoError(t, err)
}

func TestServiceReturnsEngineErrors(t *testing.T) {
	svc, _, _ := newService(t)
	_, err := svc.Execute(context.Background(), exchange.OpMint, func(eng *exchange.Engine) (*exchange.Receipt, error) {
		return eng.Mint(userAddr, 1)
	})
	require.True(t, errors.Is(err, exchange.ErrAccountNotFound), "got %v", err)
}

func TestServiceHonoursCancelledContext(t *testing.T) {
	svc, _, _ := newService(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	_, err := svc.Execute(ctx, exchange.OpCreateAccount, func(eng *exchange.Engine) (*exchange.Receipt, error) {
		called = true
		return nil, nil
	})
	require.ErrorIs(t, err, context.Canceled)
	require.False(t, called)
}

func TestServiceTracesOperations(t *testing.T) {
	svc, _, _ := newService(t)
	spans := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	defer provider.Shutdown(context.Background())
	svc.tracer = provider.Tracer("test")

	_, err := svc.Execute(context.Background(), exchange.OpCreateAccount, func(eng *exchange.Engine) (*exchange.Receipt, error) {
		return eng.CreateExchangeAccount(userAddr)
	})
	require.NoError(t, err)
	_, err = svc.Execute(context.Background(), exchange.OpMint, func(eng *exchange.Engine) (*exchange.Receipt, error) {
		return eng.Mint(userAddr, 1)
	})
	require.Error(t, err)

	ended := spans.Ended()
	require.Len(t, ended, 2)
	require.Equal(t, "exchange.create_account", ended[0].Name())
	require.NotEqual(t, codes.Error, ended[0].Status().Code)

	require.Equal(t, "exchange.mint", ended[1].Name())
	require.Equal(t, codes.Error, ended[1].Status().Code)
	var code string
	for _, kv := range ended[1].Attributes() {
		if kv.Key == attribute.Key("exchange.code") {
			code = kv.Value.AsString()
		}
	}
	require.Equal(t, string(exchange.CodeOf(err)), code)
}
