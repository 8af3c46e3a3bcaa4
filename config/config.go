package config

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/willnx/autobox/errors"
)

// Broker kinds
const (
	BrokerKafka     = "kafka"
	BrokerJetStream = "jetstream"
)

// Config represents the complete application configuration.
// Sections: Broker (upstream stream), Pool (worker supervision), Pipeline
// (record category and decryption), Elastic/Influx (stores), Metrics (ops).
type Config struct {
	Broker   BrokerConfig   `json:"broker"`
	Pool     PoolConfig     `json:"pool"`
	Pipeline PipelineConfig `json:"pipeline"`
	Elastic  ElasticConfig  `json:"elasticsearch,omitempty"`
	Influx   InfluxConfig   `json:"influxdb,omitempty"`
	Metrics  MetricsConfig  `json:"metrics,omitempty"`
}

// Load reads, parses, and validates a JSON configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "Config", "Load", "read config file")
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, errors.WrapInvalid(err, "Config", "Load", "parse config file")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the whole configuration and fills in defaults.
// It must run before any section accessor method is used.
func (c *Config) Validate() error {
	if err := c.Broker.Validate(); err != nil {
		return fmt.Errorf("broker: %w", err)
	}
	if err := c.Pool.Validate(); err != nil {
		return fmt.Errorf("pool: %w", err)
	}
	if err := c.Pipeline.Validate(); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	if err := c.Elastic.Validate(); err != nil {
		return fmt.Errorf("elasticsearch: %w", err)
	}
	if err := c.Influx.Validate(); err != nil {
		return fmt.Errorf("influxdb: %w", err)
	}
	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	return nil
}

// Clone creates a deep copy of the configuration
func (c *Config) Clone() *Config {
	if c == nil {
		return &Config{}
	}

	// Use JSON marshaling/unmarshaling for deep copy
	data, err := json.Marshal(c)
	if err != nil {
		copied := *c
		return &copied
	}

	var clone Config
	if err := json.Unmarshal(data, &clone); err != nil {
		copied := *c
		return &copied
	}

	return &clone
}

// BrokerConfig selects and configures the upstream record source.
type BrokerConfig struct {
	Kind              string          `json:"kind"` // "kafka" or "jetstream"
	Kafka             KafkaConfig     `json:"kafka,omitempty"`
	JetStream         JetStreamConfig `json:"jetstream,omitempty"`
	ReceiveTimeoutStr string          `json:"receive_timeout,omitempty"` // e.g. "30s"

	receiveTimeout time.Duration
}

// KafkaConfig defines Kafka consumer settings.
type KafkaConfig struct {
	Brokers []string `json:"brokers"`
	Topic   string   `json:"topic"`
	Group   string   `json:"group"`
}

// JetStreamConfig defines NATS JetStream consumer settings.
type JetStreamConfig struct {
	URLs    []string `json:"urls"`
	Stream  string   `json:"stream"`
	Subject string   `json:"subject"`
	Durable string   `json:"durable,omitempty"`
}

// Validate checks broker settings and parses duration strings.
func (c *BrokerConfig) Validate() error {
	switch c.Kind {
	case BrokerKafka:
		if len(c.Kafka.Brokers) == 0 {
			return errors.WrapInvalid(errors.ErrMissingConfig, "BrokerConfig", "Validate",
				"kafka.brokers cannot be empty")
		}
		if c.Kafka.Topic == "" {
			return errors.WrapInvalid(errors.ErrMissingConfig, "BrokerConfig", "Validate",
				"kafka.topic cannot be empty")
		}
		if c.Kafka.Group == "" {
			return errors.WrapInvalid(errors.ErrMissingConfig, "BrokerConfig", "Validate",
				"kafka.group cannot be empty")
		}
	case BrokerJetStream:
		if len(c.JetStream.URLs) == 0 {
			return errors.WrapInvalid(errors.ErrMissingConfig, "BrokerConfig", "Validate",
				"jetstream.urls cannot be empty")
		}
		if c.JetStream.Stream == "" {
			return errors.WrapInvalid(errors.ErrMissingConfig, "BrokerConfig", "Validate",
				"jetstream.stream cannot be empty")
		}
		if c.JetStream.Subject == "" {
			return errors.WrapInvalid(errors.ErrMissingConfig, "BrokerConfig", "Validate",
				"jetstream.subject cannot be empty")
		}
	case "":
		return errors.WrapInvalid(errors.ErrMissingConfig, "BrokerConfig", "Validate",
			"kind cannot be empty")
	default:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "BrokerConfig", "Validate",
			fmt.Sprintf("unknown broker kind: %s", c.Kind))
	}

	if c.ReceiveTimeoutStr == "" {
		c.receiveTimeout = 30 * time.Second
	} else {
		parsed, err := time.ParseDuration(c.ReceiveTimeoutStr)
		if err != nil {
			return errors.WrapInvalid(err, "BrokerConfig", "Validate",
				fmt.Sprintf("invalid receive_timeout format: %s", c.ReceiveTimeoutStr))
		}
		if parsed <= 0 {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "BrokerConfig", "Validate",
				"receive_timeout must be positive")
		}
		c.receiveTimeout = parsed
	}
	return nil
}

// ReceiveTimeout returns how long a single receive may wait for a record
// before reporting an idle pass.
func (c *BrokerConfig) ReceiveTimeout() time.Duration {
	return c.receiveTimeout
}

// PoolConfig tunes the adaptive worker pool. Zero values take the
// documented defaults during Validate.
type PoolConfig struct {
	QueueCapacity      int    `json:"queue_capacity,omitempty"`   // pending work channel size
	MaxWorkers         int    `json:"max_workers,omitempty"`      // 0 = 2 x CPU count
	DepthHighWater     int    `json:"depth_high_water,omitempty"` // scale up above this depth
	DepthLowWater      int    `json:"depth_low_water,omitempty"`  // scale down below this depth
	ScaleUpStep        int    `json:"scale_up_step,omitempty"`
	ScaleDownStep      int    `json:"scale_down_step,omitempty"`
	BatchSize          int    `json:"batch_size,omitempty"` // records between scaling checks
	CheckIntervalStr   string `json:"check_interval,omitempty"`
	CooldownStr        string `json:"cooldown,omitempty"` // sleep before exiting on failure
	ShutdownTimeoutStr string `json:"shutdown_timeout,omitempty"`

	checkInterval   time.Duration
	cooldown        time.Duration
	shutdownTimeout time.Duration
}

// Validate checks pool settings, applies defaults, and parses durations.
func (c *PoolConfig) Validate() error {
	if c.QueueCapacity < 0 || c.MaxWorkers < 0 || c.BatchSize < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "PoolConfig", "Validate",
			"sizes cannot be negative")
	}
	if c.QueueCapacity == 0 {
		c.QueueCapacity = 65536
	}
	if c.MaxWorkers == 0 {
		c.MaxWorkers = 2 * runtime.NumCPU()
	}
	if c.DepthHighWater == 0 {
		c.DepthHighWater = 100
	}
	if c.DepthLowWater == 0 {
		c.DepthLowWater = 10
	}
	if c.DepthLowWater >= c.DepthHighWater {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "PoolConfig", "Validate",
			"depth_low_water must be below depth_high_water")
	}
	if c.ScaleUpStep == 0 {
		c.ScaleUpStep = 2
	}
	if c.ScaleDownStep == 0 {
		c.ScaleDownStep = 1
	}
	if c.ScaleUpStep < 0 || c.ScaleDownStep < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "PoolConfig", "Validate",
			"scale steps cannot be negative")
	}
	if c.BatchSize == 0 {
		c.BatchSize = 5000
	}
	if c.DepthHighWater > c.QueueCapacity {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "PoolConfig", "Validate",
			"depth_high_water cannot exceed queue_capacity")
	}

	var err error
	if c.checkInterval, err = parseDuration(c.CheckIntervalStr, 30*time.Second); err != nil {
		return errors.WrapInvalid(err, "PoolConfig", "Validate", "parse check_interval")
	}
	if c.cooldown, err = parseDuration(c.CooldownStr, 300*time.Second); err != nil {
		return errors.WrapInvalid(err, "PoolConfig", "Validate", "parse cooldown")
	}
	if c.shutdownTimeout, err = parseDuration(c.ShutdownTimeoutStr, 30*time.Second); err != nil {
		return errors.WrapInvalid(err, "PoolConfig", "Validate", "parse shutdown_timeout")
	}
	return nil
}

// CheckInterval returns the minimum time between scaling passes.
func (c *PoolConfig) CheckInterval() time.Duration { return c.checkInterval }

// Cooldown returns how long the process lingers before exiting after a
// fatal pipeline failure, giving operators a window to notice.
func (c *PoolConfig) Cooldown() time.Duration { return c.cooldown }

// ShutdownTimeout returns the bound on graceful worker retirement.
func (c *PoolConfig) ShutdownTimeout() time.Duration { return c.shutdownTimeout }

// PipelineConfig selects the record category and its decryption keys.
type PipelineConfig struct {
	Category    string `json:"category"`           // weblog, dnslog, workerlog, firewall
	KeyFile     string `json:"key_file,omitempty"` // fernet keys, one per line
	TokenTTLStr string `json:"token_ttl,omitempty"`

	tokenTTL time.Duration
}

// Validate checks pipeline settings.
func (c *PipelineConfig) Validate() error {
	if c.Category == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "PipelineConfig", "Validate",
			"category cannot be empty")
	}
	if c.TokenTTLStr == "" {
		c.tokenTTL = 0 // no expiry enforcement
	} else {
		parsed, err := time.ParseDuration(c.TokenTTLStr)
		if err != nil {
			return errors.WrapInvalid(err, "PipelineConfig", "Validate",
				fmt.Sprintf("invalid token_ttl format: %s", c.TokenTTLStr))
		}
		if parsed < 0 {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "PipelineConfig", "Validate",
				"token_ttl cannot be negative")
		}
		c.tokenTTL = parsed
	}
	return nil
}

// TokenTTL returns the maximum accepted token age; zero disables the check.
func (c *PipelineConfig) TokenTTL() time.Duration { return c.tokenTTL }

// ElasticConfig defines the search-index writer settings.
type ElasticConfig struct {
	Addresses    []string `json:"addresses,omitempty"`
	Username     string   `json:"username,omitempty"`
	PasswordFile string   `json:"password_file,omitempty"`
	IndexPrefix  string   `json:"index_prefix,omitempty"`
	SkipVerify   bool     `json:"skip_verify,omitempty"` // accept self-signed store certs
}

// Validate checks elasticsearch settings and applies defaults.
func (c *ElasticConfig) Validate() error {
	if c.IndexPrefix == "" {
		c.IndexPrefix = "logs"
	}
	if c.PasswordFile != "" && c.Username == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "ElasticConfig", "Validate",
			"password_file requires username")
	}
	return nil
}

// Password reads the password file, if configured.
func (c *ElasticConfig) Password() (string, error) {
	if c.PasswordFile == "" {
		return "", nil
	}
	return ReadSecret(c.PasswordFile)
}

// InfluxConfig defines the time-series writer settings. Authentication is
// either a token file or username plus password file (v1.8 compatibility,
// sent as "username:password").
type InfluxConfig struct {
	URL          string `json:"url,omitempty"`
	Org          string `json:"org,omitempty"`
	Bucket       string `json:"bucket,omitempty"`
	TokenFile    string `json:"token_file,omitempty"`
	Username     string `json:"username,omitempty"`
	PasswordFile string `json:"password_file,omitempty"`
	MaxStaged    int    `json:"max_staged,omitempty"`
	MaxStageAge  string `json:"max_stage_age,omitempty"`

	maxStageAge time.Duration
}

// Validate checks influxdb settings and applies defaults.
func (c *InfluxConfig) Validate() error {
	if c.MaxStaged < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "InfluxConfig", "Validate",
			"max_staged cannot be negative")
	}
	if c.MaxStaged == 0 {
		c.MaxStaged = 5000
	}
	if c.TokenFile != "" && c.Username != "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "InfluxConfig", "Validate",
			"token_file and username are mutually exclusive")
	}
	if c.PasswordFile != "" && c.Username == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "InfluxConfig", "Validate",
			"password_file requires username")
	}

	var err error
	if c.maxStageAge, err = parseDuration(c.MaxStageAge, 10*time.Second); err != nil {
		return errors.WrapInvalid(err, "InfluxConfig", "Validate", "parse max_stage_age")
	}
	return nil
}

// StageAge returns the maximum time points may sit staged before a write.
func (c *InfluxConfig) StageAge() time.Duration { return c.maxStageAge }

// AuthToken resolves the authentication token from the configured source.
func (c *InfluxConfig) AuthToken() (string, error) {
	if c.TokenFile != "" {
		return ReadSecret(c.TokenFile)
	}
	if c.Username != "" {
		password, err := ReadSecret(c.PasswordFile)
		if err != nil {
			return "", err
		}
		return c.Username + ":" + password, nil
	}
	return "", nil
}

// MetricsConfig defines the operational HTTP endpoint.
type MetricsConfig struct {
	Enabled bool   `json:"enabled,omitempty"`
	Port    int    `json:"port,omitempty"`
	Path    string `json:"path,omitempty"`
}

// Validate checks metrics settings and applies defaults.
func (c *MetricsConfig) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "MetricsConfig", "Validate",
			fmt.Sprintf("invalid port: %d", c.Port))
	}
	if c.Port == 0 {
		c.Port = 9100
	}
	if c.Path == "" {
		c.Path = "/metrics"
	}
	return nil
}

// ReadSecret reads a secret value from a file, trimming surrounding
// whitespace. Secrets live in files so process listings and environment
// dumps never expose them.
func ReadSecret(path string) (string, error) {
	if path == "" {
		return "", errors.WrapInvalid(errors.ErrMissingConfig, "Config", "ReadSecret",
			"empty secret path")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrap(err, "Config", "ReadSecret", "read secret file")
	}
	return strings.TrimSpace(string(data)), nil
}

// ReadSecretLines reads a secret file holding one value per line, skipping
// blank lines. Used for decryption key files that carry rotation history.
func ReadSecretLines(path string) ([]string, error) {
	raw, err := ReadSecret(path)
	if err != nil {
		return nil, err
	}
	var lines []string
	for _, line := range strings.Split(raw, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	if len(lines) == 0 {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Config", "ReadSecretLines",
			"secret file is empty")
	}
	return lines, nil
}

func parseDuration(s string, fallback time.Duration) (time.Duration, error) {
	if s == "" {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("duration must be positive: %s", s)
	}
	return parsed, nil
}
