package app

import (
	"context"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/vk/genesisforge/internal/config"
	"github.com/vk/genesisforge/internal/ctxlog"
	"github.com/vk/genesisforge/internal/failure"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	config   *Config
	pipeline *config.Pipeline
	runID    string
}

// NewApp loads and validates the pipeline configuration and returns an App
// with its own isolated logger. Configuration problems are
// failure.KindConfig errors.
func NewApp(outW io.Writer, cfg *Config, loader config.Loader) (*App, error) {
	runID := uuid.NewString()
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW).With("run_id", runID)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	pipeline, err := loader.Load(ctx, cfg.ConfigPath)
	if err != nil {
		return nil, failure.WithPath(failure.Wrap(failure.KindConfig, "config.load", err, "failed to load configuration"), cfg.ConfigPath)
	}
	logger.Debug("Configuration loaded and translated into pipeline model.", "workspace", pipeline.Workspace)

	if cfg.Profile != "" && pipeline.Chain != nil {
		logger.Debug("Chain profile overridden from the command line.", "configured", pipeline.Chain.Profile, "profile", cfg.Profile)
		pipeline.Chain.Profile = cfg.Profile
	}
	if cfg.Workers > 0 && pipeline.Types != nil {
		pipeline.Types.Workers = cfg.Workers
	}

	if err := pipeline.Validate(); err != nil {
		return nil, failure.WithPath(failure.Wrap(failure.KindConfig, "config.validate", err, "configuration is not usable"), cfg.ConfigPath)
	}
	logger.Debug("Pipeline configuration validated.")

	return &App{
		outW:     outW,
		logger:   logger,
		config:   cfg,
		pipeline: pipeline,
		runID:    runID,
	}, nil
}

// RunID identifies this run in logs, the lock file and the release manifest.
func (a *App) RunID() string {
	return a.runID
}

// Pipeline returns the loaded pipeline configuration. This is primarily for testing.
func (a *App) Pipeline() *config.Pipeline {
	return a.pipeline
}
