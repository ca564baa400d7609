package main

import (
	"context"
	"crypto/tls"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	protocol "synthex/config"
	"synthex/gateway/config"
	"synthex/gateway/middleware"
	"synthex/gateway/routes"
	"synthex/native/exchange"
	"synthex/observability/logging"
	telemetry "synthex/observability/otel"
	"synthex/services/exchanged"
	"synthex/storage"
)

func main() {
	var cfgPath string
	var allowInsecureFlag bool
	flag.StringVar(&cfgPath, "config", "", "path to exchanged configuration")
	flag.BoolVar(&allowInsecureFlag, "allow-insecure", false, "DEV ONLY: permit plaintext listeners on loopback interfaces")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	env := strings.TrimSpace(os.Getenv("SYNTHEX_ENV"))
	if env == "" {
		env = cfg.Logging.Env
	}
	logger, closer := logging.SetupWithFile(cfg.Observability.ServiceName, env, logging.FileOptions{
		Path:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})
	defer closer.Close()

	if err := run(cfg, cfgPath, env, allowInsecureFlag, logger); err != nil {
		logger.Error("exchanged stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, cfgPath, env string, allowInsecure bool, logger *slog.Logger) error {
	configDir := ""
	if strings.TrimSpace(cfgPath) != "" {
		configDir = filepath.Dir(cfgPath)
	}

	params, err := protocol.Load(resolvePath(configDir, cfg.ProtocolFile))
	if err != nil {
		return fmt.Errorf("load protocol: %w", err)
	}
	genesis, err := params.ToGenesis()
	if err != nil {
		return fmt.Errorf("protocol genesis: %w", err)
	}

	db, err := storage.NewLevelDB(resolvePath(configDir, cfg.DataDir))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	store := exchange.NewStore(db)
	initialized, err := store.Initialized()
	if err != nil {
		return fmt.Errorf("inspect store: %w", err)
	}
	if !initialized {
		state, _, err := store.WriteGenesis(genesis)
		if err != nil {
			return fmt.Errorf("write genesis: %w", err)
		}
		logger.Info("exchange genesis written", "slot", genesis.Slot, "registry", state.AssetsList.Hex())
	}

	engine := exchange.NewEngine()
	engine.SetState(store)
	engine.SetPauses(params.Pauses.PauseSet())
	svc, err := exchanged.New(engine, exchanged.NewSlotClock(genesis.Slot, genesis.Timestamp, cfg.SlotDuration), logger)
	if err != nil {
		return fmt.Errorf("start exchange service: %w", err)
	}

	rateLimits := make(map[string]middleware.RateLimit)
	for _, entry := range cfg.RateLimits {
		rateLimits[entry.ID] = middleware.RateLimit{
			RatePerSecond: entry.PerSecond(),
			Burst:         entry.Burst,
		}
	}
	if len(rateLimits) == 0 {
		rateLimits["query"] = middleware.RateLimit{RatePerSecond: 20, Burst: 40}
		rateLimits["trade"] = middleware.RateLimit{RatePerSecond: 2, Burst: 10}
		rateLimits["oracle"] = middleware.RateLimit{RatePerSecond: 10, Burst: 20}
		rateLimits["admin"] = middleware.RateLimit{RatePerSecond: 1, Burst: 5}
	}

	router, err := routes.New(routes.Config{
		Service: svc,
		Authenticator: middleware.NewAuthenticator(middleware.AuthConfig{
			Enabled:    cfg.Auth.Enabled,
			HMACSecret: cfg.Auth.HMACSecret,
			Issuer:     cfg.Auth.Issuer,
			Audience:   cfg.Auth.Audience,
			ScopeClaim: cfg.Auth.ScopeClaim,
			ClockSkew:  cfg.Auth.ClockSkew,
		}, logger),
		RateLimiter: middleware.NewRateLimiter(rateLimits),
		Observability: middleware.NewObservability(middleware.ObservabilityConfig{
			ServiceName: cfg.Observability.ServiceName,
			Enabled:     cfg.Observability.Metrics,
			LogRequests: cfg.Observability.LogRequests,
		}, logger),
		CORS: middleware.CORSConfig{AllowedOrigins: cfg.CORS.AllowedOrigins},
	})
	if err != nil {
		return fmt.Errorf("configure routes: %w", err)
	}

	handler := http.Handler(router)
	if tracing := cfg.Observability.Tracing; tracing.Enabled {
		shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.Config{
			ServiceName: cfg.Observability.ServiceName,
			Environment: env,
			Endpoint:    tracing.Endpoint,
			Insecure:    tracing.Insecure,
			Headers:     telemetry.ParseHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS")),
			SampleRatio: tracing.SampleRatio,
		})
		if err != nil {
			return fmt.Errorf("initialise telemetry: %w", err)
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTelemetry(flushCtx); err != nil {
				logger.Warn("telemetry shutdown", "error", err)
			}
		}()
		handler = otelhttp.NewHandler(router, cfg.Observability.ServiceName)
	}

	tlsConfig, err := buildTLSConfig(configDir, cfg.Security)
	if err != nil {
		return fmt.Errorf("configure TLS: %w", err)
	}
	if tlsConfig == nil {
		if !allowInsecure {
			return errors.New("TLS certificate and key are required; provide security.tlsCertFile/tlsKeyFile or start with --allow-insecure in dev")
		}
		if !strings.EqualFold(env, "dev") && !isLoopbackAddress(cfg.ListenAddress) {
			return errors.New("plaintext mode is restricted to loopback listeners or dev environment")
		}
	}

	server := &http.Server{
		Addr:         cfg.ListenAddress,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
		TLSConfig:    tlsConfig,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	listener, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	serveErr := make(chan error, 1)
	go func() {
		scheme := "http"
		if tlsConfig != nil {
			scheme = "https"
			listener = tls.NewListener(listener, tlsConfig)
		}
		logger.Info("exchanged listening", "address", scheme+"://"+listener.Addr().String())
		serveErr <- server.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}

func buildTLSConfig(baseDir string, sec config.SecurityConfig) (*tls.Config, error) {
	certPath := resolvePath(baseDir, sec.TLSCertFile)
	keyPath := resolvePath(baseDir, sec.TLSKeyFile)
	if certPath == "" && keyPath == "" {
		return nil, nil
	}
	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, fmt.Errorf("load TLS key pair: %w", err)
	}
	return &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12}, nil
}

func resolvePath(baseDir, path string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return ""
	}
	if baseDir == "" || filepath.IsAbs(trimmed) {
		return trimmed
	}
	return filepath.Join(baseDir, trimmed)
}

func isLoopbackAddress(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	host = strings.TrimSpace(host)
	if host == "" {
		return false
	}
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	return ip.IsLoopback()
}
