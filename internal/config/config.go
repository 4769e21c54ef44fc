// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const (
	ProviderSimulated = "simulated"
	ProviderMidtrans  = "midtrans"
)

// Config holds application configuration.
type Config struct {
	GymAPIURL     string        `validate:"required,url"`
	GymAPITimeout time.Duration `validate:"gt=0"`

	PaymentProvider    string `validate:"oneof=simulated midtrans"`
	MidtransServerKey  string `validate:"required_if=PaymentProvider midtrans"`
	MidtransProduction bool

	SandboxAddr        string `validate:"required"`
	SandboxSessionKey  string
	SandboxDatabaseURL string
	SandboxAdminUser   string
	SandboxAdminPass   string `validate:"required_with=SandboxAdminUser"`
	SandboxSecure      bool
	SandboxFaults      string

	OTLPEndpoint string
	ServiceName  string `validate:"required"`

	LogLevel  string
	LogFormat string `validate:"oneof=json console"`
}

// Load reads an optional .env file followed by the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds and validates a Config from environment variables only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		GymAPIURL:     getEnv("GYM_API_URL", "http://localhost:8090"),
		GymAPITimeout: getEnvDuration("GYM_API_TIMEOUT", 10*time.Second),

		PaymentProvider:    strings.ToLower(getEnv("PAYMENT_PROVIDER", ProviderSimulated)),
		MidtransServerKey:  getEnv("MIDTRANS_SERVER_KEY", ""),
		MidtransProduction: getEnvBool("MIDTRANS_PRODUCTION", false),

		SandboxAddr:        getEnv("SANDBOX_ADDR", ":8090"),
		SandboxSessionKey:  getEnv("SANDBOX_SESSION_KEY", ""),
		SandboxDatabaseURL: getEnv("SANDBOX_DATABASE_URL", ""),
		SandboxAdminUser:   getEnv("SANDBOX_ADMIN_USER", ""),
		SandboxAdminPass:   getEnv("SANDBOX_ADMIN_PASSWORD", ""),
		SandboxSecure:      getEnvBool("SANDBOX_SECURE_COOKIES", false),
		SandboxFaults:      getEnv("SANDBOX_FAULTS", ""),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		ServiceName:  getEnv("OTEL_SERVICE_NAME", "ironcore"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: strings.ToLower(getEnv("LOG_FORMAT", "json")),
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// NewLogger builds the process logger from LOG_LEVEL and LOG_FORMAT.
func (c *Config) NewLogger() (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", c.LogLevel, err)
	}
	zc := zap.NewProductionConfig()
	if c.LogFormat == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = level
	return zc.Build()
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	v, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return v
}

// getEnvDuration accepts Go durations ("15s") or plain seconds ("15").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	raw := strings.TrimSpace(getEnv(key, ""))
	if raw == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
