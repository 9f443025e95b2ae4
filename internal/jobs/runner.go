package jobs

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Spok95/group-grader/internal/observability"
)

type Job func(ctx context.Context) error

type Runner struct {
	ctx context.Context
	log *zap.Logger
}

func New(ctx context.Context, log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{ctx: ctx, log: log}
}

// Every запускает fn раз в interval. interval <= 0 — задача выключена.
func (r *Runner) Every(interval time.Duration, name string, fn Job) bool {
	if interval <= 0 {
		r.log.Info("job disabled", zap.String("job", name))
		return false
	}
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
	return true
}

func (r *Runner) run(name string, fn Job) {
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			err := fmt.Errorf("panic in job %s: %v", name, p)
			jobErrors.WithLabelValues(name).Inc()
			r.log.Error("job panic", zap.String("job", name), zap.Error(err))
			observability.CaptureErr(err)
		}
		jobRuns.WithLabelValues(name).Inc()
		jobDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}()
	if err := fn(r.ctx); err != nil {
		jobErrors.WithLabelValues(name).Inc()
		r.log.Warn("job failed", zap.String("job", name), zap.Error(err))
		observability.CaptureErr(err)
	}
}
