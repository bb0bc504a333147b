package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every environment override, e.g. COLDWATCH_BROKER_PASSWORD.
const EnvPrefix = "COLDWATCH"

const (
	defaultBrokerPort      = 1883
	defaultKeepAlive       = 60 * time.Second
	defaultConnectTimeout  = 10 * time.Second
	defaultPollInterval    = time.Second
	defaultRetryInterval   = 5 * time.Second
	defaultSinkTimeout     = 5 * time.Second
	defaultLabel           = "fridge"
	defaultTelegramAPIURL  = "https://api.telegram.org"
	defaultLastReadingPath = "data"
	defaultMemoryCapacity  = 100
	defaultAPIListen       = ":8088"
	defaultLogFormat       = "json"
)

// ConfigErrorType classifies configuration failures
type ConfigErrorType string

const (
	ErrReading    ConfigErrorType = "READ_ERROR"
	ErrParsing    ConfigErrorType = "PARSE_ERROR"
	ErrValidation ConfigErrorType = "VALIDATION_ERROR"
)

// ConfigError is returned by LoadConfig and names the stage that failed.
type ConfigError struct {
	Type    ConfigErrorType
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// LoadConfig reads the YAML file at path, applies COLDWATCH_* environment
// overrides (a .env file in the working directory is honoured), fills in
// defaults and validates the result. An empty path means environment only.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		if err := loadYAML(path, cfg); err != nil {
			return nil, err
		}
	}

	// Missing .env is fine; existing variables win over the file.
	_ = godotenv.Load()

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, &ConfigError{Type: ErrParsing, Message: "processing environment overrides", Err: err}
	}

	applyDefaults(cfg)

	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadYAML loads a YAML file into cfg
func loadYAML(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return &ConfigError{Type: ErrReading, Message: "reading " + path, Err: err}
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return &ConfigError{Type: ErrParsing, Message: "parsing " + path, Err: err}
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Broker.Port == 0 {
		cfg.Broker.Port = defaultBrokerPort
	}
	if cfg.Broker.KeepAlive == 0 {
		cfg.Broker.KeepAlive = defaultKeepAlive
	}
	if cfg.Broker.ConnectTimeout == 0 {
		cfg.Broker.ConnectTimeout = defaultConnectTimeout
	}
	if cfg.Ingest.PollInterval == 0 {
		cfg.Ingest.PollInterval = defaultPollInterval
	}
	if cfg.Ingest.RetryInterval == 0 {
		cfg.Ingest.RetryInterval = defaultRetryInterval
	}
	// Never reconnect more often than once per receive-loop iteration.
	if cfg.Ingest.RetryInterval < cfg.Ingest.PollInterval {
		cfg.Ingest.RetryInterval = cfg.Ingest.PollInterval
	}
	if cfg.Ingest.SinkTimeout == 0 {
		cfg.Ingest.SinkTimeout = defaultSinkTimeout
	}
	if cfg.Alert.Label == "" {
		cfg.Alert.Label = defaultLabel
	}
	if cfg.Telegram.APIURL == "" {
		cfg.Telegram.APIURL = defaultTelegramAPIURL
	}
	cfg.Telegram.APIURL = strings.TrimRight(cfg.Telegram.APIURL, "/")
	if cfg.Storage.LastReadingPath == "" {
		cfg.Storage.LastReadingPath = defaultLastReadingPath
	}
	if cfg.Storage.MemoryCapacity == 0 {
		cfg.Storage.MemoryCapacity = defaultMemoryCapacity
	}
	if cfg.API.Listen == "" {
		cfg.API.Listen = defaultAPIListen
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = defaultLogFormat
	}
}

// ValidateConfig validates the configuration
func ValidateConfig(cfg *Config) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return &ConfigError{
				Type:    ErrValidation,
				Message: "invalid fields: " + strings.Join(fields, ", "),
				Err:     err,
			}
		}
		return &ConfigError{Type: ErrValidation, Message: "validation failed", Err: err}
	}

	if cfg.Ingest.StaleTimeout < 0 {
		return &ConfigError{Type: ErrValidation, Message: "ingest.stale_timeout must not be negative"}
	}
	if cfg.Ingest.StaleTimeout > 0 && cfg.Ingest.StaleTimeout < cfg.Ingest.PollInterval {
		return &ConfigError{Type: ErrValidation, Message: "ingest.stale_timeout must be at least ingest.poll_interval"}
	}
	return nil
}
