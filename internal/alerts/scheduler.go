package alerts

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const DefaultSchedule = "@every 6h"

// Scheduler runs Checker.CheckAll on a cron schedule.
type Scheduler struct {
	cron    *cron.Cron
	checker *Checker
	spec    string
	logger  *zap.Logger

	wg sync.WaitGroup
}

func NewScheduler(checker *Checker, spec string, logger *zap.Logger) *Scheduler {
	if spec == "" {
		spec = DefaultSchedule
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		cron:    cron.New(),
		checker: checker,
		spec:    spec,
		logger:  logger,
	}
}

// Start registers the job, starts the scheduler and runs one check right away.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.spec, func() { s.run(ctx) }); err != nil {
		return fmt.Errorf("invalid alerts schedule %q: %w", s.spec, err)
	}

	s.cron.Start()
	s.logger.Info("alerts scheduler started", zap.String("schedule", s.spec))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()

	return nil
}

// Stop waits for running checks to finish, including the one started by Start.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.wg.Wait()
	s.logger.Info("alerts scheduler stopped")
}

func (s *Scheduler) run(ctx context.Context) {
	if _, err := s.checker.CheckAll(ctx); err != nil {
		s.logger.Warn("alerts check cycle failed", zap.Error(err))
	}
}
