package announcer

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/eugenenazirov/announcer/internal/venue"
)

// Loader reads the current venue configuration.
type Loader func() (venue.Config, error)

// Factory builds the loop for a freshly loaded configuration.
type Factory func(cfg venue.Config) (*Loop, error)

// Runner owns the running Loop and replaces it whenever a reload is requested.
type Runner struct {
	load    Loader
	factory Factory
	reload  <-chan struct{}
	logger  *zap.Logger
}

// NewRunner creates a Runner. Each value received on reload makes it
// re-read the configuration and restart the loop.
func NewRunner(load Loader, factory Factory, reload <-chan struct{}, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{load: load, factory: factory, reload: reload, logger: logger}
}

// Run blocks until ctx is cancelled. A configuration that cannot be loaded
// ends the run with an error.
func (r *Runner) Run(ctx context.Context) error {
	for {
		cfg, err := r.load()
		if err != nil {
			return fmt.Errorf("load venue config: %w", err)
		}
		loop, err := r.factory(cfg)
		if err != nil {
			return fmt.Errorf("build announcer loop: %w", err)
		}

		reloading, err := r.runOnce(ctx, loop)
		if cerr := loop.Close(); cerr != nil {
			r.logger.Warn("failed to release loop resources", zap.Error(cerr))
		}
		if err != nil || !reloading {
			return err
		}
		r.logger.Info("reloading venue config")
	}
}

// runOnce reports whether the loop ended for a reload. A reload waits for
// an announcement in progress to finish; only ctx cancellation cuts it off.
func (r *Runner) runOnce(ctx context.Context, loop *Loop) (bool, error) {
	stop := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- loop.run(ctx, stop)
	}()

	select {
	case <-ctx.Done():
		return false, <-done
	case <-r.reload:
		close(stop)
		return true, <-done
	case err := <-done:
		return false, err
	}
}
