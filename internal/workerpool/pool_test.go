package workerpool

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDo_ReturnsResult(t *testing.T) {
	p := New(2, 4)
	defer p.Close()

	v, err := Do(context.Background(), p, func() (int, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	boom := errors.New("boom")
	_, err = Do(context.Background(), p, func() (string, error) { return "", boom })
	assert.ErrorIs(t, err, boom)
}

func TestDo_RecoversPanic(t *testing.T) {
	p := New(1, 1)
	defer p.Close()

	_, err := Do(context.Background(), p, func() (int, error) { panic("bad") })
	assert.ErrorIs(t, err, ErrJobPanicked)

	// the worker survives
	v, err := Do(context.Background(), p, func() (int, error) { return 1, nil })
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestSubmit_QueueFull(t *testing.T) {
	p := New(1, 1)
	defer p.Close()

	release := make(chan struct{})
	started := make(chan struct{})

	require.NoError(t, p.Submit(func() {
		close(started)
		<-release
	}))
	<-started

	// occupies the single queue slot
	require.NoError(t, p.Submit(func() {}))

	err := p.Submit(func() {})
	assert.ErrorIs(t, err, ErrDispatchFailed)

	_, err = Do(context.Background(), p, func() (int, error) { return 0, nil })
	assert.ErrorIs(t, err, ErrDispatchFailed)

	close(release)

	st := p.Stats()
	assert.Equal(t, 1, st.Workers)
	assert.Equal(t, 1, st.QueueSize)
	assert.Equal(t, int64(2), st.Rejected)
}

func TestSubmit_AfterClose(t *testing.T) {
	p := New(1, 1)
	p.Close()
	p.Close()

	err := p.Submit(func() {})
	assert.ErrorIs(t, err, ErrDispatchFailed)
}

func TestDo_ContextCancelledDiscardsResult(t *testing.T) {
	p := New(1, 1)
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())

	started := make(chan struct{})
	finished := make(chan struct{})
	release := make(chan struct{})

	go func() {
		<-started
		cancel()
	}()

	_, err := Do(ctx, p, func() (int, error) {
		close(started)
		<-release
		defer close(finished)
		return 7, nil
	})
	assert.ErrorIs(t, err, context.Canceled)

	// the job still runs to completion
	close(release)
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("job did not complete")
	}
}

func TestDo_PreCancelledContext(t *testing.T) {
	p := New(1, 1)
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	_, err := Do(ctx, p, func() (int, error) { called = true; return 0, nil })
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestClose_WaitsForQueuedJobs(t *testing.T) {
	p := New(2, 8)

	var mu sync.Mutex
	count := 0
	for i := 0; i < 8; i++ {
		require.NoError(t, p.Submit(func() {
			time.Sleep(time.Millisecond)
			mu.Lock()
			count++
			mu.Unlock()
		}))
	}

	p.Close()
	assert.Equal(t, 8, count)
	assert.Equal(t, int64(8), p.Stats().Completed)
}
