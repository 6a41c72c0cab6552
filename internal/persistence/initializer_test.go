package persistence

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestInitializerRunsOnceForConcurrentCallers(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	init := NewInitializer(func(ctx context.Context) error {
		calls.Add(1)
		<-release
		return nil
	}, zap.NewNop())

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for n := range errs {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			errs[n] = init.Ensure(context.Background())
		}(n)
	}
	close(release)
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.True(t, init.Ready())

	require.NoError(t, init.Ensure(context.Background()))
	assert.Equal(t, int32(1), calls.Load())
}

func TestInitializerRetriesAfterFailure(t *testing.T) {
	var calls atomic.Int32
	init := NewInitializer(func(ctx context.Context) error {
		if calls.Add(1) == 1 {
			return errors.New("database starting up")
		}
		return nil
	}, zap.NewNop())

	err := init.Ensure(context.Background())
	assert.Error(t, err)
	assert.False(t, init.Ready())

	require.NoError(t, init.Ensure(context.Background()))
	assert.True(t, init.Ready())
	assert.Equal(t, int32(2), calls.Load())
}

func TestInitializerRunOutlivesCallerDeadline(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	init := NewInitializer(func(ctx context.Context) error {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		return ctx.Err()
	}, zap.NewNop())

	impatientCtx, cancelImpatient := context.WithCancel(context.Background())
	impatientErr := make(chan error, 1)
	go func() { impatientErr <- init.Ensure(impatientCtx) }()

	<-started
	cancelImpatient()
	require.ErrorIs(t, <-impatientErr, context.Canceled)
	assert.False(t, init.Ready())

	startupErr := make(chan error, 1)
	go func() { startupErr <- init.Ensure(context.Background()) }()
	close(release)

	require.NoError(t, <-startupErr)
	assert.True(t, init.Ready())
	assert.Equal(t, int32(1), calls.Load())
}
