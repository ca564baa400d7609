package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimiterBlocksAfterBurst(t *testing.T) {
	limiter := NewRateLimiter(map[string]RateLimit{
		"swap": {RatePerSecond: 1, Burst: 1},
	})
	handler := limiter.Middleware("swap")(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/v1/swap", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected first request to succeed, got %d", res.Code)
	}

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusTooManyRequests {
		t.Fatalf("expected second request to be rate limited, got %d", res.Code)
	}
}

func TestRateLimiterSeparatesRoutesAndSigners(t *testing.T) {
	limiter := NewRateLimiter(map[string]RateLimit{
		"mint": {RatePerSecond: 1, Burst: 1},
		"swap": {RatePerSecond: 1, Burst: 1},
	})
	mint := limiter.Middleware("mint")(okHandler())
	swap := limiter.Middleware("swap")(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/v1/mint", nil)
	for _, h := range []http.Handler{mint, swap} {
		res := httptest.NewRecorder()
		h.ServeHTTP(res, req)
		if res.Code != http.StatusOK {
			t.Fatalf("expected independent route budgets, got %d", res.Code)
		}
	}

	signer := common.HexToAddress("0x00000000000000000000000000000000000000b1")
	signed := req.WithContext(context.WithValue(req.Context(), ContextKeySigner, signer))
	res := httptest.NewRecorder()
	mint.ServeHTTP(res, signed)
	if res.Code != http.StatusOK {
		t.Fatalf("expected signer to have its own budget, got %d", res.Code)
	}
}

func TestRateLimiterPassesUnknownRoutes(t *testing.T) {
	limiter := NewRateLimiter(nil)
	handler := limiter.Middleware("state")(okHandler())
	for i := 0; i < 5; i++ {
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/state", nil))
		if res.Code != http.StatusOK {
			t.Fatalf("request %d throttled without a configured limit", i)
		}
	}
}

func TestRateLimiterSweepsIdleVisitors(t *testing.T) {
	limiter := NewRateLimiter(map[string]RateLimit{"swap": {RatePerSecond: 1, Burst: 1}})
	now := time.Unix(1_700_000_000, 0)
	limiter.clockNow = func() time.Time { return now }

	limiter.obtainLimiter("swap|a", RateLimit{RatePerSecond: 1, Burst: 1})
	now = now.Add(10 * time.Minute)
	limiter.obtainLimiter("swap|b", RateLimit{RatePerSecond: 1, Burst: 1})
	if _, ok := limiter.visitors["swap|a"]; ok {
		t.Fatalf("idle visitor not swept")
	}
	if len(limiter.visitors) != 1 {
		t.Fatalf("expected one visitor, got %d", len(limiter.visitors))
	}
}

func TestClientIDPrefersForwardedAddress(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	if got := clientID(req); got != "10.0.0.1" {
		t.Fatalf("unexpected remote id %q", got)
	}
	req.Header.Set("X-Forwarded-For", "192.0.2.7, 10.0.0.1")
	if got := clientID(req); got != "192.0.2.7" {
		t.Fatalf("unexpected forwarded id %q", got)
	}
}
