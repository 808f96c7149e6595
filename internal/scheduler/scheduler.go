// Package scheduler runs the ingestion pipeline on an in-process cron
// schedule, for deployments without an external trigger.
package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/navhub/navhub/internal/directory"
	"github.com/navhub/navhub/internal/pipeline"
)

// Runner executes one ingestion attempt per call.
type Runner interface {
	Run(ctx context.Context) (pipeline.Result, error)
}

// runTimeout bounds a single scheduled invocation.
const runTimeout = 2 * time.Minute

// Scheduler triggers the pipeline on a cron spec. Overlapping firings are
// skipped rather than queued; external triggers on the HTTP endpoint can
// still race with scheduled runs, which the stores tolerate as documented.
type Scheduler struct {
	cron    *cron.Cron
	runner  Runner
	logger  *zap.Logger
	running atomic.Bool
}

// New constructs a Scheduler for the given cron spec.
func New(spec string, runner Runner, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scheduler{
		cron:   cron.New(),
		runner: runner,
		logger: logger,
	}
	if _, err := s.cron.AddFunc(spec, s.runOnce); err != nil {
		return nil, err
	}
	return s, nil
}

// Start begins firing the schedule.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the schedule and waits for a running invocation to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Scheduler) runOnce() {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Warn("previous pipeline run still in progress, skipping")
		return
	}
	defer s.running.Store(false)

	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	result, err := s.runner.Run(ctx)
	switch {
	case err == nil:
		s.logger.Info("scheduled run published entry",
			zap.Int64("submission_id", result.Submission.ID),
			zap.String("url", result.Entry.URL),
		)
	case errors.Is(err, directory.ErrNoPending):
		s.logger.Debug("scheduled run found no pending submissions")
	default:
		s.logger.Error("scheduled run failed", zap.Error(err))
	}
}
