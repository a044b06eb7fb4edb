package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/Spok95/school-erp/internal/observability"
)

type Job func(ctx context.Context) error

// Runner schedules background jobs for the lifetime of ctx. Every run is timed, counted
// and shielded from panics.
type Runner struct {
	ctx  context.Context
	log  *zap.Logger
	cron *cron.Cron
	loc  *time.Location
}

func New(ctx context.Context, log *zap.Logger, loc *time.Location) *Runner {
	if loc == nil {
		loc = time.Local
	}
	return &Runner{
		ctx:  ctx,
		log:  log,
		loc:  loc,
		cron: cron.New(cron.WithLocation(loc), cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger))),
	}
}

func (r *Runner) Every(interval time.Duration, name string, fn Job) {
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-r.ctx.Done():
				return
			case <-t.C:
				r.run(name, fn)
			}
		}
	}()
}

// Cron registers fn on a standard five-field schedule. Start must be called once all
// cron jobs are registered.
func (r *Runner) Cron(spec, name string, fn Job) error {
	if _, err := r.cron.AddFunc(spec, func() { r.run(name, fn) }); err != nil {
		return fmt.Errorf("schedule %s %q: %w", name, spec, err)
	}
	return nil
}

// Start runs the cron scheduler until the runner's context is done.
func (r *Runner) Start() {
	r.cron.Start()
	go func() {
		<-r.ctx.Done()
		<-r.cron.Stop().Done()
	}()
}

func (r *Runner) run(name string, fn Job) {
	start := time.Now()
	defer func() {
		jobRuns.WithLabelValues(name).Inc()
		jobDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}()
	defer func() {
		if rec := recover(); rec != nil {
			err := fmt.Errorf("panic in job %s: %v", name, rec)
			jobErrors.WithLabelValues(name).Inc()
			r.log.Error("job panicked", zap.String("job", name), zap.Any("panic", rec))
			observability.CaptureWithTags(err, map[string]string{"job": name})
		}
	}()
	if err := fn(r.ctx); err != nil {
		jobErrors.WithLabelValues(name).Inc()
		r.log.Error("job failed", zap.String("job", name), zap.Error(err))
		observability.CaptureWithTags(err, map[string]string{"job": name})
	}
}
