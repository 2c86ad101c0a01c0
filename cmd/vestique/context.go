package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/erazemk/vestique/internal/annotate"
	"github.com/erazemk/vestique/internal/config"
	"github.com/erazemk/vestique/internal/features"
	"github.com/erazemk/vestique/internal/marketplace"
	"github.com/erazemk/vestique/internal/store"
	"github.com/erazemk/vestique/internal/tracker"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = fmt.Errorf("load config: %w", err)
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// session bundles everything a command needs to work on the catalog.
type session struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   store.Store
	tracker *tracker.Tracker
	cleanup func()
}

func (s *session) Close() {
	if err := s.store.Close(); err != nil {
		s.logger.Warn("closing store", "error", err)
	}
	s.cleanup()
}

// withTracker opens the catalog for a one-shot command. Log output goes to
// stderr so stdout stays readable.
func (c *commandContext) withTracker(cmd *cobra.Command, fn func(*session) error) error {
	s, err := c.openSession(cmd.Context(), cmd.ErrOrStderr(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}

func (c *commandContext) openSession(ctx context.Context, stdout, stderr io.Writer) (*session, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}

	logger, cleanup, err := setupLogger(cfg.Logging, cfg.Paths.LogFile, stdout, stderr)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(cfg.Paths.Backend, cfg.Paths.Catalog, logger)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("opening catalog: %w", err)
	}

	extractor, err := newExtractor(cfg, logger)
	if err != nil {
		st.Close()
		cleanup()
		return nil, err
	}

	opts := []tracker.Option{tracker.WithLogger(logger)}
	if annotator := newAnnotator(cfg); annotator != nil {
		opts = append(opts, tracker.WithAnnotator(annotator))
	}

	t, err := tracker.New(ctx, st, extractor, tracker.Config{
		Threshold:        cfg.Recognition.SimilarityThreshold,
		ResetPeriod:      cfg.Lifecycle.ResetPeriodDays,
		ListingThreshold: cfg.Lifecycle.ListingThresholdDays,
	}, opts...)
	if err != nil {
		st.Close()
		cleanup()
		return nil, fmt.Errorf("loading catalog: %w", err)
	}
	if warn := t.LoadWarning(); warn != nil {
		var rec *store.RecoveryError
		if errors.As(warn, &rec) {
			logger.Warn("catalog was unreadable and has been reset", "backup", rec.Backup, "error", rec.Err)
		}
	}

	return &session{cfg: cfg, logger: logger, store: st, tracker: t, cleanup: cleanup}, nil
}

func newExtractor(cfg *config.Config, logger *slog.Logger) (*features.Extractor, error) {
	var backbone features.Backbone = features.NewGridBackbone()
	if cfg.Recognition.Backbone == "remote" {
		remote, err := features.NewRemoteBackbone(features.RemoteConfig{
			APIKey:         cfg.Embedding.APIKey,
			BaseURL:        cfg.Embedding.BaseURL,
			Model:          cfg.Embedding.Model,
			TimeoutSeconds: cfg.Embedding.TimeoutSeconds,
		})
		if err != nil {
			return nil, fmt.Errorf("configuring embedding backbone: %w", err)
		}
		backbone = remote
	}
	return features.New(backbone, features.Options{
		ColorWeight:      cfg.Recognition.ColorWeight,
		HistogramBins:    cfg.Recognition.HistogramBins,
		CompositeRegions: cfg.Recognition.CompositeRegions,
	}, logger), nil
}

// newAnnotator returns nil when annotation is off or has no key.
func newAnnotator(cfg *config.Config) *annotate.Client {
	if !cfg.Annotation.Enabled {
		return nil
	}
	client := annotate.NewClient(annotate.Config{
		APIKey:         cfg.Annotation.APIKey,
		BaseURL:        cfg.Annotation.BaseURL,
		Model:          cfg.Annotation.Model,
		TimeoutSeconds: cfg.Annotation.TimeoutSeconds,
	})
	if !client.Enabled() {
		return nil
	}
	return client
}

// claimSettings resolves the claim signing secret: configuration first, then
// the SQLite settings table, then a per-process random secret.
func claimSettings(ctx context.Context, s *session) (string, time.Duration, error) {
	ttl := time.Duration(s.cfg.Marketplace.ClaimTTLHours) * time.Hour
	if secret := s.cfg.Marketplace.ClaimSecret; secret != "" {
		return secret, ttl, nil
	}
	if sq, ok := s.store.(*store.SQLiteStore); ok {
		secret, err := sq.ClaimSecret(ctx)
		if err != nil {
			return "", 0, fmt.Errorf("loading claim secret: %w", err)
		}
		return secret, ttl, nil
	}
	secret, err := marketplace.GenerateSecret()
	if err != nil {
		return "", 0, err
	}
	s.logger.Warn("claim secret generated for this process; tokens will not survive a restart")
	return secret, ttl, nil
}
