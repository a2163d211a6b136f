package worker

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/adcondev/printbridge/internal/printing"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("timeout waiting for condition")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestPool_RunsTasks(t *testing.T) {
	p := NewPool(Config{Workers: 3, QueueSize: 10}, nil)
	p.Start()
	defer p.Stop()

	var ran atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		err := p.Submit("count", func() error {
			ran.Add(1)
			return nil
		}, func(err error) {
			assert.NoError(t, err)
			wg.Done()
		})
		require.NoError(t, err)
	}
	wg.Wait()

	assert.Equal(t, int32(10), ran.Load())
	waitFor(t, func() bool { return p.Stats().JobsProcessed == 10 })
	assert.False(t, p.Stats().LastJobTime.IsZero())
}

func TestPool_TaskErrorReachesDone(t *testing.T) {
	p := NewPool(Config{Workers: 1, QueueSize: 1}, nil)
	p.Start()
	defer p.Stop()

	want := printing.JobNotFound(4)
	got := make(chan error, 1)
	require.NoError(t, p.Submit("fail", func() error { return want }, func(err error) { got <- err }))

	assert.Same(t, want, <-got)
	waitFor(t, func() bool { return p.Stats().JobsFailed == 1 })
}

func TestPool_RecoversPanics(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	p := NewPool(Config{Workers: 1, QueueSize: 1}, zap.New(core))
	p.Start()
	defer p.Stop()

	got := make(chan error, 1)
	require.NoError(t, p.Submit("boom", func() error { panic("driver exploded") }, func(err error) { got <- err }))

	err := <-got
	require.Error(t, err)
	assert.Equal(t, printing.CodeUnknown, printing.CodeOf(err))
	assert.Contains(t, err.Error(), "driver exploded")
	assert.Equal(t, 1, logs.FilterMessage("panic in task").Len())

	// The worker survives the panic.
	next := make(chan error, 1)
	require.NoError(t, p.Submit("after", func() error { return nil }, func(err error) { next <- err }))
	assert.NoError(t, <-next)
}

func TestPool_QueueFull(t *testing.T) {
	p := NewPool(Config{Workers: 1, QueueSize: 1}, nil)
	p.Start()
	defer p.Stop()

	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, p.Submit("block", func() error {
		close(started)
		<-release
		return nil
	}, nil))
	<-started

	require.NoError(t, p.Submit("queued", func() error { return nil }, nil))
	err := p.Submit("rejected", func() error { return nil }, nil)
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Equal(t, printing.CodeUnknown, printing.CodeOf(err))
	assert.Equal(t, int64(1), p.Stats().JobsRejected)

	close(release)
}

func TestPool_StopCompletesQueuedTasks(t *testing.T) {
	p := NewPool(Config{Workers: 1, QueueSize: 5}, nil)
	p.Start()

	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, p.Submit("block", func() error {
		close(started)
		<-release
		return nil
	}, nil))
	<-started

	var mu sync.Mutex
	var results []error
	for i := 0; i < 3; i++ {
		require.NoError(t, p.Submit("pending", func() error { return nil }, func(err error) {
			mu.Lock()
			results = append(results, err)
			mu.Unlock()
		}))
	}

	go func() {
		time.Sleep(20 * time.Millisecond)
		close(release)
	}()
	p.Stop()

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, results, 3)
	for _, err := range results {
		if err != nil {
			assert.True(t, errors.Is(err, ErrNotRunning))
		}
	}
	assert.False(t, p.Stats().IsRunning)
}

func TestPool_SubmitBeforeStartAndAfterStop(t *testing.T) {
	p := NewPool(Config{}, nil)
	assert.ErrorIs(t, p.Submit("early", func() error { return nil }, nil), ErrNotRunning)

	p.Start()
	p.Stop()
	p.Start()
	assert.ErrorIs(t, p.Submit("late", func() error { return nil }, nil), ErrNotRunning)
}

func TestNewPool_Defaults(t *testing.T) {
	p := NewPool(Config{Workers: -1}, nil)
	stats := p.Stats()
	assert.Equal(t, DefaultConfig().Workers, stats.Workers)
	assert.Equal(t, DefaultConfig().QueueSize, stats.QueueSize)
}

func TestPool_StopTwice(t *testing.T) {
	p := NewPool(DefaultConfig(), nil)
	p.Start()
	p.Stop()
	p.Stop()
	assert.False(t, p.Stats().IsRunning)
}
