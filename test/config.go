package test

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config tunes the integration scenarios from the environment.
type Config struct {
	// INTEGRATION_READ_TIMEOUT bounds how long a scenario waits for one event.
	ReadTimeout time.Duration `envconfig:"INTEGRATION_READ_TIMEOUT" default:"2s"`
	// INTEGRATION_SINK_SIZE is the outbound buffer per connection.
	SinkSize int `envconfig:"INTEGRATION_SINK_SIZE" default:"64"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
