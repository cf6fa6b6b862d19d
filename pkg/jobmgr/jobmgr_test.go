package jobmgr

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartAsyncRunsOnePerName(t *testing.T) {
	jm := NewManager(context.Background(), nil)
	defer jm.Shutdown()

	var started atomic.Int32
	release := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = jm.StartAsync("loop", func(ctx context.Context, job *Job) error {
				started.Add(1)
				<-release
				return nil
			})
		}()
	}
	wg.Wait()

	close(release)
	assert.Eventually(t, func() bool { return !jm.Running("loop") }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), started.Load())
}

func TestStartAsyncReportsAlreadyRunning(t *testing.T) {
	jm := NewManager(context.Background(), nil)
	defer jm.Shutdown()

	block := func(ctx context.Context, job *Job) error {
		<-ctx.Done()
		return ctx.Err()
	}
	require.NoError(t, jm.StartAsync("a", block))
	assert.ErrorIs(t, jm.StartAsync("a", block), ErrAlreadyRunning)
	assert.Equal(t, []string{"a"}, jm.List())
}

func TestStopCancelsJob(t *testing.T) {
	var mu sync.Mutex
	var events []string
	jm := NewManager(context.Background(), func(s string) {
		mu.Lock()
		events = append(events, s)
		mu.Unlock()
	})

	require.NoError(t, jm.StartAsync("a", func(ctx context.Context, job *Job) error {
		<-ctx.Done()
		return ctx.Err()
	}))
	job, ok := jm.Get("a")
	require.True(t, ok)

	require.NoError(t, jm.Stop("a"))
	<-job.Done()

	assert.ErrorIs(t, jm.Stop("a"), ErrNotRunning)
	assert.Equal(t, "No jobs are running.", jm.Status())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"running:a", "done:a"}, events)
}

func TestReleaseOnlyWhenFinished(t *testing.T) {
	jm := NewManager(context.Background(), nil)
	defer jm.Shutdown()

	var pending atomic.Int32
	pending.Store(1)
	exited := make(chan struct{})

	require.NoError(t, jm.StartAsync("loop", func(ctx context.Context, job *Job) error {
		defer close(exited)
		for {
			if jm.Release(job, func() bool { return pending.Load() == 0 }) {
				return nil
			}
			pending.Add(-1)
		}
	}))

	<-exited
	assert.Equal(t, int32(0), pending.Load())
	assert.False(t, jm.Running("loop"))
}

func TestStaleRunnerDoesNotRemoveSuccessor(t *testing.T) {
	jm := NewManager(context.Background(), nil)
	defer jm.Shutdown()

	firstRelease := make(chan struct{})
	require.NoError(t, jm.StartAsync("loop", func(ctx context.Context, job *Job) error {
		jm.Release(job, func() bool { return true })
		<-firstRelease
		return nil
	}))

	assert.Eventually(t, func() bool { return !jm.Running("loop") }, time.Second, time.Millisecond)

	require.NoError(t, jm.StartAsync("loop", func(ctx context.Context, job *Job) error {
		<-ctx.Done()
		return nil
	}))
	close(firstRelease)

	time.Sleep(20 * time.Millisecond)
	assert.True(t, jm.Running("loop"))
}

func TestShutdownCancelsWithParent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	jm := NewManager(ctx, nil)

	require.NoError(t, jm.StartAsync("a", func(ctx context.Context, job *Job) error {
		<-ctx.Done()
		return nil
	}))
	job, _ := jm.Get("a")

	cancel()
	select {
	case <-job.Done():
	case <-time.After(time.Second):
		t.Fatal("job did not observe parent cancellation")
	}
	jm.Shutdown()
}
