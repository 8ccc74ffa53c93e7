package task

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWorkerPool(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		config   WorkerPoolConfig
		expected int
	}{
		{name: "default config", config: DefaultWorkerPoolConfig(), expected: 2},
		{name: "explicit count", config: WorkerPoolConfig{WorkerCount: 5}, expected: 5},
		{name: "zero count falls back to one", config: WorkerPoolConfig{WorkerCount: 0}, expected: 1},
		{name: "negative count falls back to one", config: WorkerPoolConfig{WorkerCount: -3}, expected: 1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			pool := NewWorkerPool(NewTaskQueue(1, setupTestLogger()), tc.config, setupTestLogger())
			assert.Equal(t, tc.expected, pool.workerCount)
		})
	}
}

func TestNewWorkerPool_NilQueuePanics(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() {
		NewWorkerPool(nil, DefaultWorkerPoolConfig(), nil)
	})
}

func TestWorkerPool_SetErrorHandler(t *testing.T) {
	t.Parallel()

	pool := NewWorkerPool(NewTaskQueue(1, setupTestLogger()), DefaultWorkerPoolConfig(), setupTestLogger())
	assert.Nil(t, pool.errorHandler)

	pool.SetErrorHandler(func(task Task, err error) {})
	assert.NotNil(t, pool.errorHandler)
}

func TestWorkerPool_DrainsQueueOnClose(t *testing.T) {
	t.Parallel()

	queue := NewTaskQueue(20, setupTestLogger())
	pool := NewWorkerPool(queue, WorkerPoolConfig{WorkerCount: 3}, setupTestLogger())

	var executed atomic.Int32
	for i := 0; i < 10; i++ {
		task := newMockTask()
		task.execFn = func(ctx context.Context) error {
			executed.Add(1)
			return nil
		}
		require.NoError(t, queue.Enqueue(task))
	}

	pool.Start(context.Background())
	queue.Close()

	done := make(chan struct{})
	go func() {
		pool.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for workers to drain the queue")
	}

	assert.Equal(t, int32(10), executed.Load())
	assert.Equal(t, int64(10), pool.Completed())
	assert.Equal(t, int64(0), pool.Failed())
}

func TestWorkerPool_ErrorHandler(t *testing.T) {
	t.Parallel()

	queue := NewTaskQueue(2, setupTestLogger())
	pool := NewWorkerPool(queue, WorkerPoolConfig{WorkerCount: 1}, setupTestLogger())

	expectedErr := errors.New("test error")
	var (
		mu      sync.Mutex
		handled []error
	)
	pool.SetErrorHandler(func(task Task, err error) {
		mu.Lock()
		defer mu.Unlock()
		handled = append(handled, err)
	})

	failing := newMockTask()
	failing.execFn = func(ctx context.Context) error { return expectedErr }
	require.NoError(t, queue.Enqueue(failing))
	require.NoError(t, queue.Enqueue(newMockTask()))
	queue.Close()

	pool.Start(context.Background())
	pool.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, handled, 1)
	assert.ErrorIs(t, handled[0], expectedErr)
	assert.Equal(t, int64(1), pool.Completed())
	assert.Equal(t, int64(1), pool.Failed())
}

func TestWorkerPool_Stop(t *testing.T) {
	t.Parallel()

	queue := NewTaskQueue(1, setupTestLogger())
	pool := NewWorkerPool(queue, WorkerPoolConfig{WorkerCount: 2}, setupTestLogger())

	pool.Start(context.Background())

	done := make(chan struct{})
	go func() {
		pool.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return while the queue was still open")
	}
}

func TestWorkerPool_ContextCancellation(t *testing.T) {
	t.Parallel()

	queue := NewTaskQueue(1, setupTestLogger())
	pool := NewWorkerPool(queue, WorkerPoolConfig{WorkerCount: 1}, setupTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	task := newMockTask()
	task.execFn = func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}
	require.NoError(t, queue.Enqueue(task))

	pool.Start(ctx)
	<-started
	cancel()
	pool.Wait()

	assert.Equal(t, int64(1), pool.Failed())
}
