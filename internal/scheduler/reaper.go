// Package scheduler runs the cron job that returns jobs with expired leases
// to the queue.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Requeuer moves expired reservations back to the waiting set.
type Requeuer interface {
	RequeueExpired(ctx context.Context) (int, error)
}

// Reaper wraps robfig/cron and runs the requeue pass on a schedule.
type Reaper struct {
	cron  *cron.Cron
	queue Requeuer
	spec  string // cron spec, e.g. "@every 1m"
}

func NewReaper(queue Requeuer, spec string) *Reaper {
	return &Reaper{
		cron:  cron.New(),
		queue: queue,
		spec:  spec,
	}
}

// Start registers the job and starts the scheduler.
func (r *Reaper) Start(ctx context.Context) error {
	if _, err := r.cron.AddFunc(r.spec, func() { r.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}
	r.cron.Start()
	slog.Info("reaper started", "schedule", r.spec)
	return nil
}

// Stop stops the scheduler and waits for a running pass to finish.
func (r *Reaper) Stop() {
	<-r.cron.Stop().Done()
	slog.Info("reaper stopped")
}

// RunOnce performs a single requeue pass.
func (r *Reaper) RunOnce(ctx context.Context) int {
	n, err := r.queue.RequeueExpired(ctx)
	if err != nil {
		slog.Error("requeue expired jobs failed", "error", err)
		return 0
	}
	if n > 0 {
		slog.Warn("requeued jobs with expired leases", "count", n)
	}
	return n
}
