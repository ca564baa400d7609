package routes

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"synthex/gateway/middleware"
)

// RouteGroup names one mounted set of exchange handlers together with its
// access policy.
type RouteGroup struct {
	Name           string
	Prefix         string
	RequireAuth    bool
	RequiredScopes []string
	RateLimitKey   string
}

// DefaultGroups is the standard exchange surface. Queries are public, user
// operations need the trade scope and oracle and admin calls their own.
func DefaultGroups() []RouteGroup {
	return []RouteGroup{
		{Name: "query", Prefix: "/v1", RateLimitKey: "query"},
		{Name: "trade", Prefix: "/v1", RequireAuth: true, RequiredScopes: []string{middleware.ScopeTrade}, RateLimitKey: "trade"},
		{Name: "oracle", Prefix: "/v1/oracle", RequireAuth: true, RequiredScopes: []string{middleware.ScopeOracle}, RateLimitKey: "oracle"},
		{Name: "admin", Prefix: "/v1/admin", RequireAuth: true, RequiredScopes: []string{middleware.ScopeAdmin}, RateLimitKey: "admin"},
	}
}

type Config struct {
	Service       Service
	Groups        []RouteGroup
	HealthHandler http.Handler
	Authenticator *middleware.Authenticator
	RateLimiter   *middleware.RateLimiter
	Observability *middleware.Observability
	CORS          middleware.CORSConfig
}

func New(cfg Config) (http.Handler, error) {
	routes, err := newExchangeRoutes(cfg.Service)
	if err != nil {
		return nil, fmt.Errorf("configure exchange routes: %w", err)
	}
	groups := cfg.Groups
	if len(groups) == 0 {
		groups = DefaultGroups()
	}

	r := chi.NewRouter()
	r.Use(middleware.CORS(cfg.CORS))

	obs := cfg.Observability
	if obs != nil {
		r.Use(obs.Middleware("root"))
	}

	health := cfg.HealthHandler
	if health == nil {
		health = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
	}
	r.Method(http.MethodGet, "/healthz", health)

	for _, group := range groups {
		mount, err := routes.mounter(group.Name)
		if err != nil {
			return nil, err
		}
		group := group
		r.Group(func(gr chi.Router) {
			// authenticate first so throttling keys on the signer
			if cfg.Authenticator != nil && group.RequireAuth {
				gr.Use(cfg.Authenticator.Middleware(group.RequiredScopes...))
			}
			if cfg.RateLimiter != nil && group.RateLimitKey != "" {
				gr.Use(cfg.RateLimiter.Middleware(group.RateLimitKey))
			}
			if obs != nil {
				gr.Use(obs.Middleware(group.Name))
			}
			mount(gr, strings.TrimSuffix(group.Prefix, "/"))
		})
	}

	if obs != nil {
		r.Handle("/metrics", obs.MetricsHandler())
	}

	return r, nil
}

func (er *exchangeRoutes) mounter(name string) (func(chi.Router, string), error) {
	switch name {
	case "query":
		return er.mountQueries, nil
	case "trade":
		return er.mountTrading, nil
	case "oracle":
		return er.mountOracle, nil
	case "admin":
		return er.mountAdmin, nil
	default:
		return nil, fmt.Errorf("unknown route group %q", name)
	}
}
