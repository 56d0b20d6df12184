package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Runner runs instances on a fixed-size pool, one worker each.
// A failing instance stops alone; the others keep running.
type Runner struct {
	instances []*Instance
	logger    *slog.Logger
}

// NewRunner creates a Runner.
func NewRunner(instances []*Instance, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{instances: instances, logger: logger.With("component", "runner")}
}

// Run blocks until every instance has returned. The result joins the errors
// of the instances that failed.
func (r *Runner) Run(ctx context.Context) error {
	if len(r.instances) == 0 {
		return errors.New("no pipeline instances configured")
	}

	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	g.SetLimit(len(r.instances))

	for _, inst := range r.instances {
		g.Go(func() error {
			if err := inst.Run(ctx); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}

	r.logger.Info("pipelines started", "instances", len(r.instances))
	_ = g.Wait()

	err := errors.Join(errs...)
	if err != nil {
		r.logger.Error("pipelines stopped with errors", "failed", len(errs), "error", err)
	} else {
		r.logger.Info("pipelines stopped")
	}
	return err
}
