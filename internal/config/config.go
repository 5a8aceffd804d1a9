package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"go.opentelemetry.io/otel/attribute"
)

const tokenPath = "/security/v1/oauth/token"

// Config holds all configuration for the service.
type Config struct {
	// Server
	Port     int    `envconfig:"PORT" default:"8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// UPS
	UPSEnabled           bool          `envconfig:"UPS_ENABLED" default:"true"`
	UPSUseMock           bool          `envconfig:"UPS_USE_MOCK" default:"false"`
	UPSClientID          string        `envconfig:"UPS_CLIENT_ID"`
	UPSClientSecret      string        `envconfig:"UPS_CLIENT_SECRET"`
	UPSAccountNumber     string        `envconfig:"UPS_ACCOUNT_NUMBER"`
	UPSBaseURL           string        `envconfig:"UPS_BASE_URL" default:"https://onlinetools.ups.com"`
	UPSTokenURL          string        `envconfig:"UPS_TOKEN_URL"`
	UPSScope             string        `envconfig:"UPS_SCOPE"`
	UPSTimeout           time.Duration `envconfig:"UPS_TIMEOUT" default:"10s"`
	UPSTransactionSrc    string        `envconfig:"UPS_TRANSACTION_SRC" default:"ratebridge"`
	UPSRequestsPerSecond float64       `envconfig:"UPS_REQUESTS_PER_SECOND" default:"0"`
	UPSBurst             int           `envconfig:"UPS_BURST" default:"1"`

	// Telemetry
	OTELEnabled  bool   `envconfig:"OTEL_ENABLED" default:"false"`
	OTELEndpoint string `envconfig:"OTEL_ENDPOINT" default:"http://localhost:4318"`
	ServiceName  string `envconfig:"SERVICE_NAME" default:"ratebridge"`
	Version      string `envconfig:"SERVICE_VERSION" default:"0.1.0"`
}

// Load reads configuration from a .env file, when present, and environment variables.
// Variables already set in the environment take precedence over the file.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !isMissingFile(err) {
		return nil, fmt.Errorf("loading env file: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	cfg.UPSBaseURL = strings.TrimRight(cfg.UPSBaseURL, "/")
	if cfg.UPSTokenURL == "" {
		cfg.UPSTokenURL = cfg.UPSBaseURL + tokenPath
	}
	return &cfg, nil
}

// Validate reports settings the enabled carriers cannot run without.
func (c *Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT %d out of range", c.Port))
	}
	if c.UPSEnabled && !c.UPSUseMock {
		if c.UPSClientID == "" {
			errs = append(errs, errors.New("UPS_CLIENT_ID is required"))
		}
		if c.UPSClientSecret == "" {
			errs = append(errs, errors.New("UPS_CLIENT_SECRET is required"))
		}
	}
	if c.UPSRequestsPerSecond < 0 {
		errs = append(errs, errors.New("UPS_REQUESTS_PER_SECOND must not be negative"))
	}
	if c.UPSTimeout <= 0 {
		errs = append(errs, errors.New("UPS_TIMEOUT must be positive"))
	}
	return errors.Join(errs...)
}

// Attributes returns OpenTelemetry attributes for this configuration.
func (c *Config) Attributes() []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("service.name", c.ServiceName),
		attribute.String("service.version", c.Version),
		attribute.Bool("ups.enabled", c.UPSEnabled),
		attribute.Bool("ups.mock", c.UPSUseMock),
	}
}

func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
