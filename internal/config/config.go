// Package config provides configuration loading using koanf.
// Precedence: environment → compiled defaults.
package config

import (
	"context"
	"fmt"
	"strings"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"

	"github.com/aelexs/shmport/internal/domain"
)

// EnvPrefix is stripped from every environment variable before mapping.
// A double underscore separates nesting levels, so
// SHMPORT_SERVICE__MAX_SERVERS sets service.max_servers.
const EnvPrefix = "SHMPORT_"

// Config holds all daemon configuration.
type Config struct {
	// Environment identifier: "local", "dev", "prod"
	Environment string `koanf:"environment"`

	// Logging configuration
	LogLevel  string `koanf:"log_level"`
	LogFormat string `koanf:"log_format"`

	HTTP HTTPConfig `koanf:"http"`
	GRPC GRPCConfig `koanf:"grpc"`

	// Service the daemon hosts servers for
	Service ServiceConfig `koanf:"service"`
	SHM     SHMConfig     `koanf:"shm"`

	// OpenTelemetry configuration
	OTEL OTELConfig `koanf:"otel"`
}

// HTTPConfig holds the admin HTTP listener configuration.
type HTTPConfig struct {
	Port int `koanf:"port"`
}

// GRPCConfig holds the gRPC health listener configuration.
type GRPCConfig struct {
	Port int `koanf:"port"`
}

// ServiceConfig describes the request/response service and the defaults
// its server builders start from. Strategy and locality values are the
// textual names accepted by the domain parsers.
type ServiceConfig struct {
	Name                         string `koanf:"name"`
	Locality                     string `koanf:"locality"` // "ipc" or "local"
	MaxServers                   int    `koanf:"max_servers"`
	MaxLoanedResponsesPerRequest int    `koanf:"max_loaned_responses_per_request"`
	InitialMaxSliceLen           int    `koanf:"initial_max_slice_len"`
	AllocationStrategy           string `koanf:"allocation_strategy"`
	UnableToDeliverStrategy      string `koanf:"unable_to_deliver_strategy"`
}

// SHMConfig holds data segment placement and sizing.
type SHMConfig struct {
	Dir            string `koanf:"dir"` // Required in production for ipc services
	SegmentPrefix  string `koanf:"segment_prefix"`
	ElementSize    int    `koanf:"element_size"`     // Bytes per response element
	MaxSegmentSize int    `koanf:"max_segment_size"` // Largest data segment per server
}

// OTELConfig holds OpenTelemetry configuration.
type OTELConfig struct {
	Endpoint    string `koanf:"endpoint"` // Empty disables OTLP export
	ServiceName string `koanf:"service_name"`
}

// defaults returns a Config with compiled default values.
func defaults() *Config {
	return &Config{
		Environment: "local",
		LogLevel:    "info",
		LogFormat:   "json",

		HTTP: HTTPConfig{Port: 8080},
		GRPC: GRPCConfig{Port: 9090},

		Service: ServiceConfig{
			Name:                         "default",
			Locality:                     domain.LocalityInterProcess.String(),
			MaxServers:                   domain.DefaultMaxServers,
			MaxLoanedResponsesPerRequest: domain.DefaultMaxLoanedResponsesPerRequest,
			InitialMaxSliceLen:           domain.DefaultInitialMaxSliceLen,
			AllocationStrategy:           domain.AllocationStrategyStatic.String(),
			UnableToDeliverStrategy:      domain.UnableToDeliverBlock.String(),
		},
		SHM: SHMConfig{
			Dir:            "/dev/shm",
			SegmentPrefix:  "shmport_",
			ElementSize:    domain.DefaultResponseElementSize,
			MaxSegmentSize: domain.DefaultMaxSegmentSize,
		},
		OTEL: OTELConfig{
			ServiceName: "rrserverd",
		},
	}
}

// Load loads configuration following the precedence:
// 1. Environment variables (highest)
// 2. Compiled defaults (lowest)
//
// Required keys missing or malformed values cause a startup failure.
func Load(ctx context.Context) (*Config, error) {
	k := koanf.New(".")

	cfg := defaults()

	err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil)
	if err != nil {
		return nil, fmt.Errorf("load env vars: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validateRequired(cfg); err != nil {
		return nil, err
	}
	if err := validateValues(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// envKey maps SHMPORT_SHM__SEGMENT_PREFIX to shm.segment_prefix.
func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(s), "__", ".")
}

// validateRequired checks that required configuration is present.
func validateRequired(cfg *Config) error {
	if cfg.Service.Name == "" {
		return fmt.Errorf("%w: service.name", domain.ErrConfigRequired)
	}

	if cfg.IsProd() && cfg.Service.Locality == domain.LocalityInterProcess.String() && cfg.SHM.Dir == "" {
		return fmt.Errorf("%w: shm.dir", domain.ErrConfigRequired)
	}

	return nil
}

// validateValues rejects enum names the domain does not know and limits
// that cannot hold a single server.
func validateValues(cfg *Config) error {
	if _, err := domain.NewServiceName(cfg.Service.Name); err != nil {
		return fmt.Errorf("service.name: %w", err)
	}
	if _, err := domain.ParseLocality(cfg.Service.Locality); err != nil {
		return fmt.Errorf("%w: service.locality: %w", domain.ErrInvalidInput, err)
	}
	if _, err := domain.ParseAllocationStrategy(cfg.Service.AllocationStrategy); err != nil {
		return fmt.Errorf("service.allocation_strategy: %w", err)
	}
	if _, err := domain.ParseUnableToDeliverStrategy(cfg.Service.UnableToDeliverStrategy); err != nil {
		return fmt.Errorf("service.unable_to_deliver_strategy: %w", err)
	}

	limits := []struct {
		key   string
		value int
	}{
		{"service.max_servers", cfg.Service.MaxServers},
		{"service.max_loaned_responses_per_request", cfg.Service.MaxLoanedResponsesPerRequest},
		{"service.initial_max_slice_len", cfg.Service.InitialMaxSliceLen},
		{"shm.element_size", cfg.SHM.ElementSize},
		{"shm.max_segment_size", cfg.SHM.MaxSegmentSize},
	}
	for _, l := range limits {
		if l.value <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %d", domain.ErrInvalidInput, l.key, l.value)
		}
	}

	if cfg.SHM.MaxSegmentSize > domain.MaxSegmentSizeCeiling {
		return fmt.Errorf("%w: shm.max_segment_size must not exceed %d, got %d",
			domain.ErrInvalidInput, domain.MaxSegmentSizeCeiling, cfg.SHM.MaxSegmentSize)
	}

	return nil
}

// IsLocal returns true if running in local development environment.
func (c *Config) IsLocal() bool {
	return c.Environment == "local"
}

// IsProd returns true if running in production environment.
func (c *Config) IsProd() bool {
	return c.Environment == "prod"
}
