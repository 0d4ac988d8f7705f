package config

import (
	"fmt"
	"time"
)

// MockConfig configures the local mock predictor.
type MockConfig struct {
	Address string `json:"address"`
	// Latency delays every /api answer, useful to watch the submitting state.
	Latency time.Duration `json:"latency"`
}

// SetDefaults applies sane defaults.
func (c *MockConfig) SetDefaults() {
	if c.Address == "" {
		c.Address = ":5000"
	}
}

// Validate rejects negative latencies.
func (c MockConfig) Validate() error {
	if c.Latency < 0 {
		return fmt.Errorf("latency must not be negative")
	}
	return nil
}
