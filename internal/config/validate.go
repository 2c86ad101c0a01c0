package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateRecognition(); err != nil {
		return err
	}
	if err := c.validateLifecycle(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	switch c.Paths.Backend {
	case "file", "sqlite":
	default:
		return fmt.Errorf("paths.backend must be \"file\" or \"sqlite\", got %q", c.Paths.Backend)
	}
	return nil
}

func (c *Config) validateRecognition() error {
	r := c.Recognition
	if r.SimilarityThreshold <= 0 || r.SimilarityThreshold > 1 {
		return errors.New("recognition.similarity_threshold must be in (0, 1]")
	}
	if r.ColorWeight <= 0 || r.ColorWeight >= 1 {
		return errors.New("recognition.color_weight must be in (0, 1)")
	}
	if r.HistogramBins < 2 || r.HistogramBins > 256 {
		return errors.New("recognition.histogram_bins must be between 2 and 256")
	}
	switch r.Backbone {
	case "grid":
	case "remote":
		if c.Embedding.APIKey == "" {
			return errors.New("recognition.backbone \"remote\" requires embedding.api_key (or VOYAGE_API_KEY)")
		}
	default:
		return fmt.Errorf("recognition.backbone must be \"grid\" or \"remote\", got %q", r.Backbone)
	}
	return nil
}

func (c *Config) validateLifecycle() error {
	if c.Lifecycle.ResetPeriodDays < 1 {
		return errors.New("lifecycle.reset_period_days must be at least 1")
	}
	if c.Lifecycle.ListingThresholdDays < 1 {
		return errors.New("lifecycle.listing_threshold_days must be at least 1")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "auto", "text", "json":
	default:
		return fmt.Errorf("logging.format must be auto, text or json; got %q", c.Logging.Format)
	}
	return nil
}
