package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	envHMACSecret = "SYNTHEX_AUTH_HMAC_SECRET"
	envListen     = "SYNTHEX_LISTEN"
	envDataDir    = "SYNTHEX_DATA_DIR"
	envOTLP       = "OTEL_EXPORTER_OTLP_ENDPOINT"
)

type RateLimitConfig struct {
	ID                string  `yaml:"id"`
	RequestsPerMinute float64 `yaml:"requestsPerMinute"`
	RatePerSecond     float64 `yaml:"ratePerSecond"`
	Burst             int     `yaml:"burst"`
}

// PerSecond resolves the configured rate, preferring the per-second form.
func (r RateLimitConfig) PerSecond() float64 {
	if r.RatePerSecond > 0 {
		return r.RatePerSecond
	}
	return r.RequestsPerMinute / 60
}

type ObservabilityConfig struct {
	ServiceName string        `yaml:"serviceName"`
	Metrics     bool          `yaml:"metrics"`
	LogRequests bool          `yaml:"logRequests"`
	Tracing     TracingConfig `yaml:"tracing"`
}

// TracingConfig points the daemon at an OTLP/HTTP collector. Exporter
// headers come from OTEL_EXPORTER_OTLP_HEADERS only.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"`
	Insecure    bool    `yaml:"insecure"`
	SampleRatio float64 `yaml:"sampleRatio"`
}

type LoggingConfig struct {
	Env        string `yaml:"env"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"maxSizeMB"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
	Compress   bool   `yaml:"compress"`
}

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowedOrigins"`
}

// Config is the exchange daemon configuration. Protocol parameters live in
// the TOML file named by ProtocolFile.
type Config struct {
	ListenAddress string              `yaml:"listen"`
	ReadTimeout   time.Duration       `yaml:"readTimeout"`
	WriteTimeout  time.Duration       `yaml:"writeTimeout"`
	IdleTimeout   time.Duration       `yaml:"idleTimeout"`
	DataDir       string              `yaml:"dataDir"`
	ProtocolFile  string              `yaml:"protocolFile"`
	SlotDuration  time.Duration       `yaml:"slotDuration"`
	RateLimits    []RateLimitConfig   `yaml:"rateLimits"`
	Observability ObservabilityConfig `yaml:"observability"`
	Logging       LoggingConfig       `yaml:"logging"`
	CORS          CORSConfig          `yaml:"cors"`
	Auth          AuthConfig          `yaml:"auth"`
	Security      SecurityConfig      `yaml:"security"`
}

type AuthConfig struct {
	Enabled    bool          `yaml:"enabled"`
	HMACSecret string        `yaml:"hmacSecret"`
	Issuer     string        `yaml:"issuer"`
	Audience   string        `yaml:"audience"`
	ScopeClaim string        `yaml:"scopeClaim"`
	ClockSkew  time.Duration `yaml:"clockSkew"`
	enabledSet bool          `yaml:"-"`
}

func (a *AuthConfig) UnmarshalYAML(node *yaml.Node) error {
	type rawAuthConfig struct {
		Enabled    *bool         `yaml:"enabled"`
		HMACSecret string        `yaml:"hmacSecret"`
		Issuer     string        `yaml:"issuer"`
		Audience   string        `yaml:"audience"`
		ScopeClaim string        `yaml:"scopeClaim"`
		ClockSkew  time.Duration `yaml:"clockSkew"`
	}
	var raw rawAuthConfig
	if err := node.Decode(&raw); err != nil {
		return err
	}
	if raw.Enabled != nil {
		a.Enabled = *raw.Enabled
		a.enabledSet = true
	} else {
		a.Enabled = false
		a.enabledSet = false
	}
	a.HMACSecret = raw.HMACSecret
	a.Issuer = raw.Issuer
	a.Audience = raw.Audience
	a.ScopeClaim = raw.ScopeClaim
	a.ClockSkew = raw.ClockSkew
	return nil
}

type SecurityConfig struct {
	TLSCertFile string `yaml:"tlsCertFile"`
	TLSKeyFile  string `yaml:"tlsKeyFile"`
}

func Default() Config {
	return Config{
		ListenAddress: ":8080",
		ReadTimeout:   30 * time.Second,
		WriteTimeout:  30 * time.Second,
		IdleTimeout:   120 * time.Second,
		DataDir:       "./data/exchange",
		ProtocolFile:  "./protocol.toml",
		SlotDuration:  400 * time.Millisecond,
		Observability: ObservabilityConfig{
			ServiceName: "synthex-exchanged",
			Metrics:     true,
			LogRequests: true,
		},
		Logging: LoggingConfig{Env: "dev", MaxSizeMB: 100, MaxBackups: 5, MaxAgeDays: 28},
		Auth: AuthConfig{
			Enabled:    true,
			ScopeClaim: "scope",
			ClockSkew:  2 * time.Minute,
			enabledSet: true,
		},
	}
}

// Load reads the YAML file at path over the defaults and applies environment
// overrides. An empty path yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return Config{}, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := yaml.NewDecoder(file)
		decoder.KnownFields(true)
		if err := decoder.Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("decode config: %w", err)
		}
	}
	cfg.applyEnv()
	cfg.applyAuthDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (cfg *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv(envHMACSecret)); v != "" {
		cfg.Auth.HMACSecret = v
	}
	if v := strings.TrimSpace(os.Getenv(envListen)); v != "" {
		cfg.ListenAddress = v
	}
	if v := strings.TrimSpace(os.Getenv(envDataDir)); v != "" {
		cfg.DataDir = v
	}
	if v := strings.TrimSpace(os.Getenv(envOTLP)); v != "" {
		cfg.Observability.Tracing.Endpoint = v
	}
}

func (cfg *Config) applyAuthDefaults() {
	if cfg == nil {
		return
	}
	// an auth section without "enabled" still authenticates; Validate
	// decides whether the omission is acceptable
	if !cfg.Auth.enabledSet {
		cfg.Auth.Enabled = true
	}
	if cfg.Auth.ClockSkew <= 0 {
		cfg.Auth.ClockSkew = 2 * time.Minute
	}
	if cfg.Auth.ScopeClaim == "" {
		cfg.Auth.ScopeClaim = "scope"
	}
}

var ErrAuthEnabledNotConfigured = errors.New("auth.enabled must be explicitly set when TLS is configured")

func (cfg *Config) Validate() error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if cfg.isSensitiveDeployment() && !cfg.Auth.enabledSet {
		return ErrAuthEnabledNotConfigured
	}
	if cfg.Auth.Enabled && strings.TrimSpace(cfg.Auth.HMACSecret) == "" {
		return fmt.Errorf("auth.hmacSecret (or %s) is required when auth is enabled", envHMACSecret)
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		return fmt.Errorf("dataDir is required")
	}
	if strings.TrimSpace(cfg.ProtocolFile) == "" {
		return fmt.Errorf("protocolFile is required")
	}
	if cfg.SlotDuration <= 0 {
		return fmt.Errorf("slotDuration must be positive")
	}
	if r := cfg.Observability.Tracing.SampleRatio; r < 0 || r > 1 {
		return fmt.Errorf("observability.tracing.sampleRatio must be within [0, 1]")
	}
	if (cfg.Security.TLSCertFile == "") != (cfg.Security.TLSKeyFile == "") {
		return fmt.Errorf("security.tlsCertFile and security.tlsKeyFile must be set together")
	}
	seen := make(map[string]struct{}, len(cfg.RateLimits))
	for i, limit := range cfg.RateLimits {
		id := strings.TrimSpace(limit.ID)
		if id == "" {
			return fmt.Errorf("rateLimits[%d].id is required", i)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("rateLimits[%d]: duplicate id %q", i, id)
		}
		seen[id] = struct{}{}
		if limit.PerSecond() <= 0 {
			return fmt.Errorf("rateLimits[%d]: rate must be positive", i)
		}
	}
	return nil
}

func (cfg *Config) isSensitiveDeployment() bool {
	if cfg == nil {
		return false
	}
	return strings.TrimSpace(cfg.Security.TLSCertFile) != "" || strings.TrimSpace(cfg.Security.TLSKeyFile) != ""
}
