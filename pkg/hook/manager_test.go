// pkg/hook/manager_test.go
package hook_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vulntor/console/pkg/hook"
)

func TestHookManager_OnShutdown(t *testing.T) {
	t.Parallel()

	mgr := hook.NewManager()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var wg sync.WaitGroup
	var called atomic.Bool
	wg.Add(1)
	mgr.Register(hook.OnShutdown, func(ctx context.Context) {
		defer wg.Done()
		called.Store(true)
		assert.NoError(t, ctx.Err())
	})

	mgr.Trigger(ctx, hook.OnShutdown)

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		assert.True(t, called.Load())
	case <-ctx.Done():
		t.Fatal("timed out waiting for hook")
	}
}

func TestHookManager_TriggerWait(t *testing.T) {
	mgr := hook.NewManager()
	var count atomic.Int32
	for range 3 {
		mgr.Register(hook.OnShutdown, func(context.Context) {
			time.Sleep(5 * time.Millisecond)
			count.Add(1)
		})
	}

	require.NoError(t, mgr.TriggerWait(context.Background(), hook.OnShutdown))
	assert.Equal(t, int32(3), count.Load())
	assert.True(t, mgr.IsTriggered(hook.OnShutdown))
	assert.False(t, mgr.IsTriggered(hook.OnScanFinished))
}

func TestHookManager_TriggerWaitTimeout(t *testing.T) {
	mgr := hook.NewManager()
	block := make(chan struct{})
	defer close(block)
	mgr.Register(hook.OnShutdown, func(context.Context) { <-block })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, mgr.TriggerWait(ctx, hook.OnShutdown), context.DeadlineExceeded)
}

func TestHookManager_NoHooks(t *testing.T) {
	mgr := hook.NewManager()
	require.NoError(t, mgr.TriggerWait(context.Background(), "unknown"))
	assert.True(t, mgr.IsTriggered("unknown"))
}
