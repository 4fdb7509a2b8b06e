// Package worker runs the periodic jobs that keep listing availability in
// step with the calendar.
package worker

import (
	"context"
	"log/slog"
	"time"
)

// Completer closes rentals whose end date has passed.
type Completer interface {
	CompleteEndedRentals(ctx context.Context) (int, error)
}

type Reconciler struct {
	completer Completer
	interval  time.Duration
	log       *slog.Logger
}

func NewReconciler(completer Completer, interval time.Duration, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		completer: completer,
		interval:  interval,
		log:       logger.With("component", "reconciler"),
	}
}

// Run reconciles once immediately and then on every tick until ctx is done.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			r.log.Info("reconciler stopped")
			return
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

func (r *Reconciler) RunOnce(ctx context.Context) {
	start := time.Now()
	n, err := r.completer.CompleteEndedRentals(ctx)
	if err != nil {
		r.log.Error("completing ended rentals", "completed", n, "error", err)
		return
	}
	if n > 0 {
		r.log.Info("completed ended rentals", "completed", n, "duration", time.Since(start))
	}
}
