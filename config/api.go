package config

import (
	"fmt"
	"net/url"
	"time"
)

// APIConfig locates the predictor service.
type APIConfig struct {
	// BaseURL is prefixed to /api/brands, /api/predict and /health.
	BaseURL string        `json:"base_url"`
	Timeout time.Duration `json:"timeout"`
}

// SetDefaults applies sane defaults.
func (c *APIConfig) SetDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:5000"
	}
	if c.Timeout <= 0 {
		c.Timeout = 15 * time.Second
	}
}

// Validate checks that BaseURL is an absolute http(s) URL.
func (c APIConfig) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("base_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base_url %q must use http or https", c.BaseURL)
	}
	if u.Host == "" {
		return fmt.Errorf("base_url %q has no host", c.BaseURL)
	}
	return nil
}
