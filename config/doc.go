// Package config loads and validates the autobox runtime configuration.
//
// # Overview
//
// Configuration is a single JSON document read once at startup. There is no
// hot reload: the process is cheap to restart and the pool re-sizes itself
// from scratch anyway, so restart is the reload mechanism.
//
// Sections map one-to-one onto the pipeline stages:
//
//   - broker: which upstream to consume (Kafka or NATS JetStream) and the
//     receive timeout that defines an idle pass
//   - pool: worker supervision knobs (queue capacity, scaling thresholds and
//     steps, batch size, check interval, cooldown)
//   - pipeline: the record category to run and its decryption key file
//   - elasticsearch / influxdb: store endpoints and credentials
//   - metrics: the operational HTTP endpoint
//
// # Validation
//
// Config.Validate checks required fields, rejects inconsistent settings,
// fills in defaults, and parses duration strings ("30s", "5m") into typed
// fields. Accessor methods such as PoolConfig.CheckInterval return the
// parsed values and must only be called after Validate.
//
// # Secrets
//
// Passwords, tokens, and decryption keys are never stored inline. The config
// carries file paths; ReadSecret and ReadSecretLines load the values at
// wiring time. Key files hold one key per line, newest first, so old tokens
// stay decryptable across key rotation.
//
// # Example
//
//	{
//	  "broker": {
//	    "kind": "kafka",
//	    "kafka": {"brokers": ["kafka:9092"], "topic": "weblogs", "group": "autobox"}
//	  },
//	  "pool": {"check_interval": "30s", "batch_size": 5000},
//	  "pipeline": {"category": "weblog", "key_file": "/run/secrets/log_keys"},
//	  "elasticsearch": {
//	    "addresses": ["https://es:9200"],
//	    "username": "autobox",
//	    "password_file": "/run/secrets/es_password"
//	  },
//	  "metrics": {"enabled": true, "port": 9100}
//	}
package config
