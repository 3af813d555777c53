// Package config loads the gateway's runtime configuration from the
// environment via envconfig, with defaults matching a bare-metal single
// listener deployment.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const envPrefix = "fmb"

// Config holds every tunable the gateway reads at startup. Field order
// mirrors the grouping devices/ops care about: listener, protocol timing,
// DOUT1 policy, storage, and logging.
type Config struct {
	TCPHost string `envconfig:"TCP_HOST" default:"0.0.0.0"`
	TCPPort int    `envconfig:"TCP_PORT" default:"12345"`

	ResponseTimeoutSeconds int `envconfig:"RESPONSE_TIMEOUT_S" default:"5"`
	ReadTimeoutSeconds     int `envconfig:"READ_TIMEOUT_S" default:"30"`

	Dout1IOID           uint16 `envconfig:"DOUT1_IO_ID" default:"179"`
	TimeoutZeroSeconds  int    `envconfig:"TIMEOUT_ZERO_S" default:"43200"`
	ActivationDurationS int    `envconfig:"ACTIVATION_DURATION_S" default:"4000"`

	DBPath string `envconfig:"DB_PATH" default:""`

	LogPath  string `envconfig:"LOG_PATH" default:""`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`
}

// Load reads Config from environment variables prefixed FMB_ (e.g.
// FMB_TCP_PORT), applying the struct defaults for anything unset.
func Load() (Config, error) {
	var c Config
	if err := envconfig.Process(envPrefix, &c); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return c, nil
}

// ResponseTimeout is ResponseTimeoutSeconds as a time.Duration.
func (c Config) ResponseTimeout() time.Duration {
	return time.Duration(c.ResponseTimeoutSeconds) * time.Second
}

// ReadTimeout is ReadTimeoutSeconds as a time.Duration.
func (c Config) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutSeconds) * time.Second
}

// TimeoutZero is TimeoutZeroSeconds as a time.Duration (the DOUT1
// zero-signal activation window, 12h by default).
func (c Config) TimeoutZero() time.Duration {
	return time.Duration(c.TimeoutZeroSeconds) * time.Second
}

// ActivationDuration is ActivationDurationS as a time.Duration.
func (c Config) ActivationDuration() time.Duration {
	return time.Duration(c.ActivationDurationS) * time.Second
}

// Addr is the TCP listen address in host:port form.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.TCPHost, c.TCPPort)
}
