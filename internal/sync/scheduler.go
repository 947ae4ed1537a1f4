package sync

import (
	"context"
	"errors"

	"github.com/robfig/cron/v3"

	"triage/internal/logger"
)

// Scheduler triggers sync cycles on a standard five-field cron schedule.
type Scheduler struct {
	cron     *cron.Cron
	schedule cron.Schedule
	syncer   *Syncer
	logger   logger.Logger
}

func NewScheduler(schedule string, syncer *Syncer, log logger.Logger) (*Scheduler, error) {
	sched, err := cron.ParseStandard(schedule)
	if err != nil {
		return nil, err
	}
	return &Scheduler{
		cron:     cron.New(),
		schedule: sched,
		syncer:   syncer,
		logger:   log,
	}, nil
}

func (s *Scheduler) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := s.syncer.Run(ctx, TriggerSchedule); err != nil {
		if errors.Is(err, ErrSyncInProgress) {
			s.logger.Debugw("Skipping scheduled sync, previous cycle still running")
			return
		}
		s.logger.Errorw("Scheduled sync failed", "error", err)
	}
}

// Run starts the schedule and blocks until ctx is done. Cycles run under ctx,
// so cancelling it also cancels the cycle in flight; Run returns once that
// cycle has finished.
func (s *Scheduler) Run(ctx context.Context) error {
	s.cron.Schedule(s.schedule, cron.FuncJob(func() { s.tick(ctx) }))
	s.logger.Infow("Sync scheduler started", "entries", len(s.cron.Entries()))
	s.cron.Start()

	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.logger.Infow("Sync scheduler stopped")
	return nil
}
