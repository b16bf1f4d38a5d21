package config

import (
	"fmt"
	"time"
)

// DiaflowConfig holds the workflow engine connection settings.
// Builders maps a job kind ("source-transcribe", "text-generate",
// "image-generate") to the engine builder id that runs it.
type DiaflowConfig struct {
	BaseURL  string            `mapstructure:"base_url"`
	APIKey   string            `mapstructure:"api_key"`
	Builders map[string]string `mapstructure:"builders"`
	Timeout  time.Duration     `mapstructure:"timeout"`
}

// Validate checks that the engine can be reached at all.
// Returns an error describing the first missing field, or nil if valid.
func (c *DiaflowConfig) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("diaflow: base_url is required")
	}
	if c.APIKey == "" {
		return fmt.Errorf("diaflow: api_key is required (set directly or via DIAFLOW_API_KEY)")
	}
	return nil
}
