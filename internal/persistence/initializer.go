package persistence

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const initTimeout = 2 * time.Minute

// InitFunc prepares the backing store, e.g. by applying migrations.
type InitFunc func(ctx context.Context) error

// Initializer runs an InitFunc at most once successfully. Concurrent callers
// share the in-flight run; a failed run is retried by the next caller.
type Initializer struct {
	run    InitFunc
	logger *zap.Logger
	group  singleflight.Group
	done   atomic.Bool
}

func NewInitializer(run InitFunc, logger *zap.Logger) *Initializer {
	return &Initializer{run: run, logger: logger}
}

// Ensure waits until initialization has succeeded, the current attempt
// failed, or ctx is done. The shared run is not bound to any caller's deadline.
func (i *Initializer) Ensure(ctx context.Context) error {
	if i.done.Load() {
		return nil
	}
	runCtx := context.WithoutCancel(ctx)
	ch := i.group.DoChan("init", func() (any, error) {
		if i.done.Load() {
			return nil, nil
		}
		runCtx, cancel := context.WithTimeout(runCtx, initTimeout)
		defer cancel()
		if err := i.run(runCtx); err != nil {
			i.logger.Error("store initialization failed", zap.Error(err))
			return nil, err
		}
		i.done.Store(true)
		i.logger.Info("store initialized")
		return nil, nil
	})

	select {
	case res := <-ch:
		if res.Shared {
			i.logger.Debug("joined in-flight store initialization")
		}
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Ready reports whether initialization has completed.
func (i *Initializer) Ready() bool {
	return i.done.Load()
}
