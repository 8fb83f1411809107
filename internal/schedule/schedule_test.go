package schedule

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestAdd_RejectsBadSpec(t *testing.T) {
	s := New(0)
	err := s.Add("refresh", "every minute please", func(context.Context) error { return nil })
	assert.Error(t, err)

	_, ok := s.NextRun("refresh")
	assert.False(t, ok)
}

func TestAdd_ReplacesByName(t *testing.T) {
	s := New(0)
	noop := func(context.Context) error { return nil }
	require.NoError(t, s.Add("sweep", "@every 1h", noop))
	require.NoError(t, s.Add("sweep", "@every 2h", noop))
	assert.Len(t, s.cron.Entries(), 1)
}

func TestStart_RunsJobs(t *testing.T) {
	s := New(time.Second)
	var runs atomic.Int32
	done := make(chan struct{}, 1)
	require.NoError(t, s.Add("tick", "@every 1s", func(ctx context.Context) error {
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		if runs.Add(1) == 1 {
			done <- struct{}{}
		}
		return errors.New("logged, not fatal")
	}))

	s.Start()
	next, ok := s.NextRun("tick")
	assert.True(t, ok)
	assert.False(t, next.IsZero())

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("job never ran")
	}
	s.Stop()
	assert.GreaterOrEqual(t, runs.Load(), int32(1))
}

func TestTrigger(t *testing.T) {
	s := New(0)
	ran := false
	s.Trigger("once", func(context.Context) error {
		ran = true
		return nil
	})
	assert.True(t, ran)
}

func TestStop_CancelsRunningJob(t *testing.T) {
	s := New(0)
	started := make(chan struct{})
	var once sync.Once
	require.NoError(t, s.Add("slow", "@every 1s", func(ctx context.Context) error {
		once.Do(func() { close(started) })
		<-ctx.Done()
		return ctx.Err()
	}))
	s.Start()

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("job never started")
	}
	s.Stop()
}
