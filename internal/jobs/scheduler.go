package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/masa162/imgbase/internal/tasks"
)

// Enqueuer publishes a task to the maintenance stream. *queue.Producer
// satisfies it.
type Enqueuer interface {
	Enqueue(ctx context.Context, values map[string]any) error
}

type Scheduler struct {
	cron          *cron.Cron
	queue         Enqueuer
	sweepSchedule string
	log           zerolog.Logger
	now           func() time.Time
}

// NewScheduler uses six-field cron specs (seconds first).
func NewScheduler(queue Enqueuer, sweepSchedule string, log zerolog.Logger) *Scheduler {
	c := cron.New(cron.WithSeconds())
	return &Scheduler{
		cron:          c,
		queue:         queue,
		sweepSchedule: sweepSchedule,
		log:           log,
		now:           time.Now,
	}
}

func (s *Scheduler) Start() error {
	if s.queue == nil || s.sweepSchedule == "" {
		s.log.Info().Msg("maintenance scheduler disabled")
		return nil
	}

	if _, err := s.cron.AddFunc(s.sweepSchedule, s.enqueueSweep); err != nil {
		return fmt.Errorf("schedule %q: %w", s.sweepSchedule, err)
	}

	s.cron.Start()
	s.log.Info().Str("schedule", s.sweepSchedule).Msg("maintenance scheduler started")
	return nil
}

// Stop halts the cron and waits up to five seconds for a running job.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
	}
}

func (s *Scheduler) enqueueSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.queue.Enqueue(ctx, tasks.NewSweepPending(s.now()).Values()); err != nil {
		s.log.Error().Err(err).Msg("enqueue pending sweep failed")
		return
	}
	s.log.Debug().Msg("pending sweep enqueued")
}
