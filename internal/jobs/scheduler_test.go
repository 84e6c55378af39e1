package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/masa162/imgbase/internal/tasks"
)

type recordingQueue struct {
	values []map[string]any
	err    error
}

func (q *recordingQueue) Enqueue(_ context.Context, values map[string]any) error {
	q.values = append(q.values, values)
	return q.err
}

func TestEnqueueSweepPublishesTask(t *testing.T) {
	q := &recordingQueue{}
	s := NewScheduler(q, "0 0 * * * *", zerolog.Nop())
	s.now = func() time.Time { return time.Date(2024, 1, 2, 3, 0, 0, 0, time.UTC) }

	s.enqueueSweep()

	require.Len(t, q.values, 1)
	assert.Equal(t, map[string]any{
		"type":       tasks.TypeSweepPending,
		"enqueuedAt": "2024-01-02T03:00:00Z",
	}, q.values[0])
}

func TestEnqueueSweepSurvivesQueueError(t *testing.T) {
	q := &recordingQueue{err: errors.New("redis down")}
	s := NewScheduler(q, "0 0 * * * *", zerolog.Nop())

	assert.NotPanics(t, s.enqueueSweep)
}

func TestStartRejectsBadSchedule(t *testing.T) {
	s := NewScheduler(&recordingQueue{}, "every hour", zerolog.Nop())
	assert.Error(t, s.Start())
}

func TestStartStop(t *testing.T) {
	s := NewScheduler(&recordingQueue{}, "0 0 * * * *", zerolog.Nop())
	require.NoError(t, s.Start())
	s.Stop()
}

func TestStartDisabledWithoutQueue(t *testing.T) {
	s := NewScheduler(nil, "0 0 * * * *", zerolog.Nop())
	assert.NoError(t, s.Start())
}
