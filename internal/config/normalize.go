package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeRecognition()
	c.normalizeEmbedding()
	c.normalizeAnnotation()
	c.normalizeMarketplace()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.Catalog) == "" {
		c.Paths.Catalog = defaultCatalogPath
	}
	if c.Paths.Catalog, err = expandPath(strings.TrimSpace(c.Paths.Catalog)); err != nil {
		return fmt.Errorf("paths.catalog: %w", err)
	}
	if c.Paths.LogFile, err = expandPath(strings.TrimSpace(c.Paths.LogFile)); err != nil {
		return fmt.Errorf("paths.log_file: %w", err)
	}
	c.Paths.Backend = strings.ToLower(strings.TrimSpace(c.Paths.Backend))
	if c.Paths.Backend == "" {
		c.Paths.Backend = defaultBackend
	}
	c.Server.Bind = strings.TrimSpace(c.Server.Bind)
	if c.Server.Bind == "" {
		c.Server.Bind = defaultBind
	}
	return nil
}

func (c *Config) normalizeRecognition() {
	c.Recognition.Backbone = strings.ToLower(strings.TrimSpace(c.Recognition.Backbone))
	if c.Recognition.Backbone == "" {
		c.Recognition.Backbone = defaultBackbone
	}
	if c.Recognition.HistogramBins == 0 {
		c.Recognition.HistogramBins = defaultHistogramBins
	}
}

func (c *Config) normalizeEmbedding() {
	c.Embedding.APIKey = strings.TrimSpace(c.Embedding.APIKey)
	if c.Embedding.APIKey == "" {
		c.Embedding.APIKey = firstEnv("VESTIQUE_EMBEDDING_API_KEY", "VOYAGE_API_KEY")
	}
	c.Embedding.BaseURL = strings.TrimSpace(c.Embedding.BaseURL)
	if c.Embedding.BaseURL == "" {
		c.Embedding.BaseURL = defaultEmbeddingBaseURL
	}
	c.Embedding.Model = strings.TrimSpace(c.Embedding.Model)
	if c.Embedding.Model == "" {
		c.Embedding.Model = defaultEmbeddingModel
	}
	if c.Embedding.TimeoutSeconds <= 0 {
		c.Embedding.TimeoutSeconds = defaultEmbeddingTimeout
	}
}

func (c *Config) normalizeAnnotation() {
	c.Annotation.APIKey = strings.TrimSpace(c.Annotation.APIKey)
	if c.Annotation.APIKey == "" {
		c.Annotation.APIKey = firstEnv("ANTHROPIC_API_KEY")
	}
	c.Annotation.BaseURL = strings.TrimSpace(c.Annotation.BaseURL)
	if c.Annotation.BaseURL == "" {
		c.Annotation.BaseURL = defaultAnnotationBaseURL
	}
	c.Annotation.Model = strings.TrimSpace(c.Annotation.Model)
	if c.Annotation.Model == "" {
		c.Annotation.Model = defaultAnnotationModel
	}
	if c.Annotation.TimeoutSeconds <= 0 {
		c.Annotation.TimeoutSeconds = defaultAnnotationTimeout
	}
}

func (c *Config) normalizeMarketplace() {
	c.Marketplace.ClaimSecret = strings.TrimSpace(c.Marketplace.ClaimSecret)
	if c.Marketplace.ClaimSecret == "" {
		c.Marketplace.ClaimSecret = firstEnv("VESTIQUE_CLAIM_SECRET")
	}
	if c.Marketplace.ClaimTTLHours <= 0 {
		c.Marketplace.ClaimTTLHours = defaultClaimTTLHours
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
}

func firstEnv(keys ...string) string {
	for _, key := range keys {
		if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
