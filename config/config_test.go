package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Broker: BrokerConfig{
			Kind: BrokerKafka,
			Kafka: KafkaConfig{
				Brokers: []string{"localhost:9092"},
				Topic:   "weblogs",
				Group:   "autobox",
			},
		},
		Pipeline: PipelineConfig{Category: "weblog"},
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	content := `{
		"broker": {
			"kind": "kafka",
			"kafka": {"brokers": ["kafka1:9092", "kafka2:9092"], "topic": "weblogs", "group": "autobox"},
			"receive_timeout": "45s"
		},
		"pool": {"batch_size": 1000, "check_interval": "10s"},
		"pipeline": {"category": "weblog"},
		"elasticsearch": {"addresses": ["https://es:9200"], "index_prefix": "weblogs"}
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, BrokerKafka, cfg.Broker.Kind)
	assert.Equal(t, []string{"kafka1:9092", "kafka2:9092"}, cfg.Broker.Kafka.Brokers)
	assert.Equal(t, 45*time.Second, cfg.Broker.ReceiveTimeout())
	assert.Equal(t, 1000, cfg.Pool.BatchSize)
	assert.Equal(t, 10*time.Second, cfg.Pool.CheckInterval())
	assert.Equal(t, "weblogs", cfg.Elastic.IndexPrefix)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.json")
	assert.Error(t, err)
}

func TestLoad_BadJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate_Defaults(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 30*time.Second, cfg.Broker.ReceiveTimeout())
	assert.Equal(t, 65536, cfg.Pool.QueueCapacity)
	assert.Equal(t, 2*runtime.NumCPU(), cfg.Pool.MaxWorkers)
	assert.Equal(t, 100, cfg.Pool.DepthHighWater)
	assert.Equal(t, 10, cfg.Pool.DepthLowWater)
	assert.Equal(t, 2, cfg.Pool.ScaleUpStep)
	assert.Equal(t, 1, cfg.Pool.ScaleDownStep)
	assert.Equal(t, 5000, cfg.Pool.BatchSize)
	assert.Equal(t, 30*time.Second, cfg.Pool.CheckInterval())
	assert.Equal(t, 300*time.Second, cfg.Pool.Cooldown())
	assert.Equal(t, time.Duration(0), cfg.Pipeline.TokenTTL())
	assert.Equal(t, "logs", cfg.Elastic.IndexPrefix)
	assert.Equal(t, 5000, cfg.Influx.MaxStaged)
	assert.Equal(t, 10*time.Second, cfg.Influx.StageAge())
	assert.Equal(t, 9100, cfg.Metrics.Port)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
}

func TestValidate_BrokerKinds(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			"missing kind",
			func(c *Config) { c.Broker.Kind = "" },
			"kind cannot be empty",
		},
		{
			"unknown kind",
			func(c *Config) { c.Broker.Kind = "rabbitmq" },
			"unknown broker kind",
		},
		{
			"kafka without brokers",
			func(c *Config) { c.Broker.Kafka.Brokers = nil },
			"kafka.brokers cannot be empty",
		},
		{
			"kafka without topic",
			func(c *Config) { c.Broker.Kafka.Topic = "" },
			"kafka.topic cannot be empty",
		},
		{
			"kafka without group",
			func(c *Config) { c.Broker.Kafka.Group = "" },
			"kafka.group cannot be empty",
		},
		{
			"jetstream without urls",
			func(c *Config) {
				c.Broker.Kind = BrokerJetStream
				c.Broker.JetStream = JetStreamConfig{Stream: "LOGS", Subject: "logs.web"}
			},
			"jetstream.urls cannot be empty",
		},
		{
			"jetstream without stream",
			func(c *Config) {
				c.Broker.Kind = BrokerJetStream
				c.Broker.JetStream = JetStreamConfig{URLs: []string{"nats://localhost:4222"}, Subject: "logs.web"}
			},
			"jetstream.stream cannot be empty",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := validConfig()
			test.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), test.wantErr)
		})
	}
}

func TestValidate_JetStream(t *testing.T) {
	cfg := validConfig()
	cfg.Broker.Kind = BrokerJetStream
	cfg.Broker.JetStream = JetStreamConfig{
		URLs:    []string{"nats://localhost:4222"},
		Stream:  "LOGS",
		Subject: "logs.web",
		Durable: "autobox",
	}
	assert.NoError(t, cfg.Validate())
}

func TestValidate_PoolBounds(t *testing.T) {
	cfg := validConfig()
	cfg.Pool.DepthHighWater = 10
	cfg.Pool.DepthLowWater = 10
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "depth_low_water must be below depth_high_water")

	cfg = validConfig()
	cfg.Pool.QueueCapacity = 50
	cfg.Pool.DepthHighWater = 100
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "depth_high_water cannot exceed queue_capacity")

	cfg = validConfig()
	cfg.Pool.MaxWorkers = -1
	assert.Error(t, cfg.Validate())
}

func TestValidate_BadDurations(t *testing.T) {
	cfg := validConfig()
	cfg.Broker.ReceiveTimeoutStr = "thirty seconds"
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Pool.CheckIntervalStr = "-5s"
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Pipeline.TokenTTLStr = "1 hour"
	assert.Error(t, cfg.Validate())
}

func TestValidate_PipelineCategory(t *testing.T) {
	cfg := validConfig()
	cfg.Pipeline.Category = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "category cannot be empty")
}

func TestInfluxAuth(t *testing.T) {
	dir := t.TempDir()

	tokenPath := filepath.Join(dir, "token")
	require.NoError(t, os.WriteFile(tokenPath, []byte("s3cret-token\n"), 0o600))

	passPath := filepath.Join(dir, "password")
	require.NoError(t, os.WriteFile(passPath, []byte("hunter2\n"), 0o600))

	t.Run("token file", func(t *testing.T) {
		cfg := InfluxConfig{TokenFile: tokenPath}
		require.NoError(t, cfg.Validate())
		token, err := cfg.AuthToken()
		require.NoError(t, err)
		assert.Equal(t, "s3cret-token", token)
	})

	t.Run("username and password file", func(t *testing.T) {
		cfg := InfluxConfig{Username: "autobox", PasswordFile: passPath}
		require.NoError(t, cfg.Validate())
		token, err := cfg.AuthToken()
		require.NoError(t, err)
		assert.Equal(t, "autobox:hunter2", token)
	})

	t.Run("no auth", func(t *testing.T) {
		cfg := InfluxConfig{}
		require.NoError(t, cfg.Validate())
		token, err := cfg.AuthToken()
		require.NoError(t, err)
		assert.Empty(t, token)
	})

	t.Run("mutually exclusive", func(t *testing.T) {
		cfg := InfluxConfig{TokenFile: tokenPath, Username: "autobox"}
		assert.Error(t, cfg.Validate())
	})
}

func TestReadSecret(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "secret")
	require.NoError(t, os.WriteFile(path, []byte("  p@ss\n"), 0o600))

	secret, err := ReadSecret(path)
	require.NoError(t, err)
	assert.Equal(t, "p@ss", secret)

	_, err = ReadSecret("")
	assert.Error(t, err)

	_, err = ReadSecret(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestReadSecretLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "keys")
	require.NoError(t, os.WriteFile(path, []byte("key-one\n\nkey-two\n"), 0o600))

	lines, err := ReadSecretLines(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"key-one", "key-two"}, lines)

	empty := filepath.Join(dir, "empty")
	require.NoError(t, os.WriteFile(empty, []byte("\n\n"), 0o600))
	_, err = ReadSecretLines(empty)
	assert.Error(t, err)
}

func TestClone(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())

	clone := cfg.Clone()
	clone.Broker.Kafka.Topic = "other"
	clone.Broker.Kafka.Brokers[0] = "changed:9092"

	assert.Equal(t, "weblogs", cfg.Broker.Kafka.Topic)
	assert.Equal(t, "localhost:9092", cfg.Broker.Kafka.Brokers[0])

	var nilCfg *Config
	assert.NotNil(t, nilCfg.Clone())
}
