package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds process-level settings. Database and JWT settings stay on their
// own env vars (see database/ and utils/) so operators can rotate them
// independently of a config reload.
type Config struct {
	Port              string        `envconfig:"PORT" default:"8080"`
	Env               string        `envconfig:"ENV" default:"development"`
	ReadHeaderTimeout time.Duration `envconfig:"READ_HEADER_TIMEOUT" default:"15s"`
	ShutdownTimeout   time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`

	// Billing policy. MinStartBalance is the minimum credit balance required
	// to start a consultation (roughly one minute at a typical rate).
	MinStartBalance float64 `envconfig:"MIN_START_BALANCE" default:"5.00"`

	// A websocket connection with no inbound frames for WSIdleTimeout is
	// reaped. Client-side pacing (ping interval, reconnect backoff, typing
	// TTL) belongs to the embedding client, see wsclient.Config.
	WSIdleTimeout time.Duration `envconfig:"WS_IDLE_TIMEOUT" default:"60s"`
}

// Load reads Config from the environment.
func Load() (Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return Config{}, err
	}
	return c, nil
}
