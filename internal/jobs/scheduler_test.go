package jobs

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"svgembed/internal/queue"
)

type captureQueue struct {
	tasks []queue.Task
}

func (c *captureQueue) Enqueue(_ context.Context, task queue.Task) (string, error) {
	c.tasks = append(c.tasks, task)
	return "1-0", nil
}

func TestSchedulerRegistersCleanup(t *testing.T) {
	q := &captureQueue{}
	s := NewScheduler(q, "0 3 * * *", zerolog.Nop())
	require.NoError(t, s.Start())
	defer s.Stop()

	entries := s.cron.Entries()
	require.Len(t, entries, 1)

	entries[0].Job.Run()
	require.Equal(t, []queue.Task{{Type: queue.TaskCleanup}}, q.tasks)
}

func TestSchedulerRejectsBadSchedule(t *testing.T) {
	s := NewScheduler(&captureQueue{}, "every day", zerolog.Nop())
	require.Error(t, s.Start())
}

func TestSchedulerWithoutQueue(t *testing.T) {
	s := NewScheduler(nil, "0 3 * * *", zerolog.Nop())
	require.NoError(t, s.Start())
	require.Empty(t, s.cron.Entries())
}
