package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	jwt "github.com/golang-jwt/jwt/v5"
)

const testSecret = "unit-test-secret"

var testSigner = common.HexToAddress("0x00000000000000000000000000000000000000b1")

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func signerEcho(t *testing.T) (http.Handler, *common.Address) {
	t.Helper()
	var seen common.Address
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		signer, ok := SignerFromContext(r.Context())
		if !ok {
			w.WriteHeader(http.StatusTeapot)
			return
		}
		seen = signer
		w.WriteHeader(http.StatusOK)
	}), &seen
}

func TestAuthenticatorAcceptsScopedToken(t *testing.T) {
	auth := NewAuthenticator(AuthConfig{Enabled: true, HMACSecret: testSecret, Issuer: "synthex"}, nil)
	next, seen := signerEcho(t)
	handler := auth.Middleware(ScopeTrade)(next)

	token := signToken(t, jwt.MapClaims{
		"sub":   testSigner.Hex(),
		"iss":   "synthex",
		"scope": ScopeTrade + " " + ScopeOracle,
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/mint", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if *seen != testSigner {
		t.Fatalf("unexpected signer %s", seen.Hex())
	}
}

func TestAuthenticatorRejections(t *testing.T) {
	auth := NewAuthenticator(AuthConfig{Enabled: true, HMACSecret: testSecret, Audience: "exchange"}, nil)
	next, _ := signerEcho(t)
	handler := auth.Middleware(ScopeAdmin)(next)

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"garbage", "Bearer not-a-token", http.StatusUnauthorized},
		{"expired", "Bearer " + signToken(t, jwt.MapClaims{
			"sub": testSigner.Hex(), "aud": "exchange", "scope": ScopeAdmin,
			"exp": time.Now().Add(-time.Hour).Unix(),
		}), http.StatusUnauthorized},
		{"audience", "Bearer " + signToken(t, jwt.MapClaims{
			"sub": testSigner.Hex(), "aud": "other", "scope": ScopeAdmin,
		}), http.StatusUnauthorized},
		{"subject", "Bearer " + signToken(t, jwt.MapClaims{
			"sub": "alice", "aud": "exchange", "scope": ScopeAdmin,
		}), http.StatusUnauthorized},
		{"scope", "Bearer " + signToken(t, jwt.MapClaims{
			"sub": testSigner.Hex(), "aud": []interface{}{"exchange"}, "scope": []interface{}{ScopeTrade},
		}), http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/admin/halt", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			res := httptest.NewRecorder()
			handler.ServeHTTP(res, req)
			if res.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, res.Code)
			}
		})
	}
}

func TestAuthenticatorDisabledUsesSignerHeader(t *testing.T) {
	auth := NewAuthenticator(AuthConfig{}, nil)
	next, seen := signerEcho(t)
	handler := auth.Middleware(ScopeTrade)(next)

	req := httptest.NewRequest(http.MethodPost, "/v1/mint", nil)
	req.Header.Set(SignerHeader, testSigner.Hex())
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK || *seen != testSigner {
		t.Fatalf("expected header signer, got %d %s", res.Code, seen.Hex())
	}

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/v1/mint", nil))
	if res.Code != http.StatusTeapot {
		t.Fatalf("expected no signer without header, got %d", res.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	handler := CORS(CORSConfig{AllowedOrigins: []string{"https://app.example"}})(okHandler())

	req := httptest.NewRequest(http.MethodOptions, "/v1/swap", nil)
	req.Header.Set("Origin", "https://app.example")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusNoContent {
		t.Fatalf("expected preflight 204, got %d", res.Code)
	}
	if got := res.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example" {
		t.Fatalf("unexpected origin header %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/state", nil)
	req.Header.Set("Origin", "https://evil.example")
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatalf("disallowed origin echoed")
	}
}
