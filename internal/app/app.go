package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/polyscan/internal/config"
)

// App ties configuration, dependencies, and the mode runloops together. It
// owns the dependency lifecycle: New wires everything, Run blocks until the
// context is cancelled or a mode fails, Close releases resources.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	deps    *Dependencies
	cleanup func()
}

// New wires all dependencies for the configured mode.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	deps, cleanup, err := Wire(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	return &App{
		cfg:     cfg,
		logger:  logger,
		deps:    deps,
		cleanup: cleanup,
	}, nil
}

// Run dispatches to the configured mode and blocks until it returns.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("starting",
		slog.String("mode", a.cfg.Mode),
		slog.String("data_dir", a.cfg.DataDir),
	)

	switch a.cfg.Mode {
	case config.ModeArbitrage:
		return a.runArbitrage(ctx)
	case config.ModeHedge:
		return a.runHedge(ctx)
	case config.ModeMonitor:
		return a.runMonitor(ctx)
	case config.ModeTail:
		return a.runTail(ctx)
	case config.ModeFull:
		return a.runFull(ctx)
	default:
		return fmt.Errorf("app: unknown mode %q", a.cfg.Mode)
	}
}

// Close releases every resource Wire acquired, in reverse order.
func (a *App) Close() {
	if a.cleanup != nil {
		a.cleanup()
	}
}
