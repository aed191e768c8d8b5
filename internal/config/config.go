// Package config holds the simulation's runtime configuration: the
// values a cobra command line populates and passes down to the
// controller and back-end factory.
package config

import (
	"fmt"
	"time"
)

// Config holds everything needed to construct a Controller.
type Config struct {
	Backend      string        `json:"backend"`
	Workers      int           `json:"workers"`
	TickInterval time.Duration `json:"tickInterval"`
	BodyCapacity int           `json:"bodyCapacity"`
	RelayAddr    string        `json:"relayAddr"`
}

// Default returns a Config with the module's default values.
func Default() Config {
	return Config{
		Backend:      "scalar",
		Workers:      0, // 0 means GOMAXPROCS(0)
		TickInterval: 20 * time.Millisecond,
		BodyCapacity: 10000,
		RelayAddr:    "",
	}
}

// Validate checks that the configuration is internally consistent.
func (c Config) Validate() error {
	if c.TickInterval <= 0 {
		return fmt.Errorf("config: tick interval must be positive, got %s", c.TickInterval)
	}
	if c.BodyCapacity < 0 {
		return fmt.Errorf("config: body capacity cannot be negative, got %d", c.BodyCapacity)
	}
	if c.Workers < 0 {
		return fmt.Errorf("config: workers cannot be negative, got %d", c.Workers)
	}
	return nil
}
