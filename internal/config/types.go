package config

import "time"

// Config represents the complete coldwatch configuration
type Config struct {
	Broker   BrokerConfig   `yaml:"broker" envconfig:"BROKER"`
	Ingest   IngestConfig   `yaml:"ingest" envconfig:"INGEST"`
	Alert    AlertConfig    `yaml:"alert" envconfig:"ALERT"`
	Telegram TelegramConfig `yaml:"telegram" envconfig:"TELEGRAM"`
	Storage  StorageConfig  `yaml:"storage" envconfig:"STORAGE"`
	API      APIConfig      `yaml:"api" envconfig:"API"`
	Log      LogConfig      `yaml:"log" envconfig:"LOG"`
}

// BrokerConfig describes the MQTT broker and the sensor topic
type BrokerConfig struct {
	Host           string        `yaml:"host" envconfig:"HOST" validate:"required,hostname_rfc1123|ip"`
	Port           int           `yaml:"port" envconfig:"PORT" validate:"min=1,max=65535"`
	TLS            bool          `yaml:"tls" envconfig:"TLS"`
	Username       string        `yaml:"username" envconfig:"USERNAME"`
	Password       string        `yaml:"password" envconfig:"PASSWORD"`
	Topic          string        `yaml:"topic" envconfig:"TOPIC" validate:"required"`
	KeepAlive      time.Duration `yaml:"keep_alive" envconfig:"KEEP_ALIVE"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" envconfig:"CONNECT_TIMEOUT"`
}

// IngestConfig tunes the receive loop
type IngestConfig struct {
	PollInterval  time.Duration `yaml:"poll_interval" envconfig:"POLL_INTERVAL"`
	RetryInterval time.Duration `yaml:"retry_interval" envconfig:"RETRY_INTERVAL"`
	StaleTimeout  time.Duration `yaml:"stale_timeout" envconfig:"STALE_TIMEOUT"`
	SinkTimeout   time.Duration `yaml:"sink_timeout" envconfig:"SINK_TIMEOUT"`
}

// AlertConfig defines the threshold alert
type AlertConfig struct {
	Threshold *float64 `yaml:"threshold" envconfig:"THRESHOLD" validate:"required"`
	Label     string   `yaml:"label" envconfig:"LABEL"`
}

// TelegramConfig holds the bot credentials used for alerts and the chat front end
type TelegramConfig struct {
	Token  string `yaml:"token" envconfig:"TOKEN"`
	ChatID int64  `yaml:"chat_id" envconfig:"CHAT_ID" validate:"required_with=Token"`
	APIURL string `yaml:"api_url" envconfig:"API_URL" validate:"url"`
}

// StorageConfig selects the persistence backends
type StorageConfig struct {
	DatabaseURL     string `yaml:"database_url" envconfig:"DATABASE_URL"`
	LastReadingPath string `yaml:"last_reading_path" envconfig:"LAST_READING_PATH"`
	MemoryCapacity  int    `yaml:"memory_capacity" envconfig:"MEMORY_CAPACITY" validate:"min=1"`
}

// APIConfig configures the status HTTP server
type APIConfig struct {
	Listen string `yaml:"listen" envconfig:"LISTEN"`
}

// LogConfig configures logging output
type LogConfig struct {
	Level  string `yaml:"level" envconfig:"LEVEL" validate:"omitempty,oneof=debug info warn error"`
	Format string `yaml:"format" envconfig:"FORMAT" validate:"oneof=json pretty"`
	File   string `yaml:"file" envconfig:"FILE"`
}

// ThresholdValue returns the configured alert threshold in °C
func (c *Config) ThresholdValue() float64 {
	if c.Alert.Threshold == nil {
		return 0
	}
	return *c.Alert.Threshold
}
