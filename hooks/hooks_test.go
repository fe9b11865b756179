package hooks

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockListener is a mock implementation of HookListener for testing.
type mockListener struct {
	name      string
	priority  int
	isAsync   bool
	returnErr error
	// callOrder records names for synchronous ordering checks.
	callOrder *[]string
	// callSignal receives the name for asynchronous checks.
	callSignal chan string
	workDelay  time.Duration
	onEvent    func(event HookEvent)
}

func (m *mockListener) OnEvent(ctx context.Context, event HookEvent) error {
	if m.workDelay > 0 {
		time.Sleep(m.workDelay)
	}
	if m.onEvent != nil {
		m.onEvent(event)
	}
	if m.callOrder != nil {
		*m.callOrder = append(*m.callOrder, m.name)
	}
	if m.callSignal != nil {
		m.callSignal <- m.name
	}
	return m.returnErr
}

func (m *mockListener) Priority() int { return m.priority }
func (m *mockListener) IsAsync() bool { return m.isAsync }

func TestDefaultHookManager_Register(t *testing.T) {
	manager := NewHookManager(nil)
	manager.Register(EventPreCompaction, &mockListener{name: "p10", priority: 10})
	manager.Register(EventPreCompaction, &mockListener{name: "p1", priority: 1})
	manager.Register(EventPreCompaction, &mockListener{name: "p5a", priority: 5})
	manager.Register(EventPreCompaction, &mockListener{name: "p5b", priority: 5})

	var names []string
	for _, l := range manager.listeners[EventPreCompaction] {
		names = append(names, l.listener.(*mockListener).name)
	}
	assert.Equal(t, []string{"p1", "p5a", "p5b", "p10"}, names)
}

func TestDefaultHookManager_PreHooks(t *testing.T) {
	t.Run("priority order", func(t *testing.T) {
		manager := NewHookManager(nil)
		var order []string
		manager.Register(EventPreFlushMemtable, &mockListener{name: "late", priority: 10, callOrder: &order})
		manager.Register(EventPreFlushMemtable, &mockListener{name: "early", priority: 1, callOrder: &order})

		require.NoError(t, manager.Trigger(context.Background(), NewPreFlushMemtableEvent(PreFlushMemtablePayload{Entries: 3})))
		assert.Equal(t, []string{"early", "late"}, order)
	})

	t.Run("error aborts remaining listeners", func(t *testing.T) {
		manager := NewHookManager(nil)
		var order []string
		veto := errors.New("compaction vetoed")
		manager.Register(EventPreCompaction, &mockListener{name: "first", priority: 1, callOrder: &order})
		manager.Register(EventPreCompaction, &mockListener{name: "veto", priority: 2, callOrder: &order, returnErr: veto})
		manager.Register(EventPreCompaction, &mockListener{name: "never", priority: 3, callOrder: &order})

		err := manager.Trigger(context.Background(), NewPreCompactionEvent(PreCompactionPayload{}))
		require.Error(t, err)
		assert.ErrorIs(t, err, veto)
		assert.Equal(t, []string{"first", "veto"}, order)
	})

	t.Run("async flag is ignored", func(t *testing.T) {
		manager := NewHookManager(nil)
		var order []string
		manager.Register(EventPreSegmentDelete, &mockListener{name: "async", isAsync: true, callOrder: &order})

		require.NoError(t, manager.Trigger(context.Background(), NewPreSegmentDeleteEvent(SegmentInfo{Name: "segment_1"})))
		assert.Equal(t, []string{"async"}, order)
	})

	t.Run("payload is delivered", func(t *testing.T) {
		manager := NewHookManager(nil)
		var got SegmentInfo
		manager.Register(EventPreSegmentDelete, ListenerFunc(func(ctx context.Context, event HookEvent) error {
			got = event.Payload().(SegmentInfo)
			return nil
		}))
		want := SegmentInfo{Name: "segment_9", Path: "/tmp/segment_9", Size: 42}
		require.NoError(t, manager.Trigger(context.Background(), NewPreSegmentDeleteEvent(want)))
		assert.Equal(t, want, got)
	})
}

func TestDefaultHookManager_PostHooks(t *testing.T) {
	t.Run("sync and async listeners", func(t *testing.T) {
		manager := NewHookManager(nil)
		signal := make(chan string, 1)
		var order []string
		manager.Register(EventPostFlushMemtable, &mockListener{name: "async", priority: 10, isAsync: true, callSignal: signal})
		manager.Register(EventPostFlushMemtable, &mockListener{name: "sync", priority: 1, callOrder: &order})

		require.NoError(t, manager.Trigger(context.Background(), NewPostFlushMemtableEvent(PostFlushMemtablePayload{})))
		assert.Equal(t, []string{"sync"}, order)

		select {
		case name := <-signal:
			assert.Equal(t, "async", name)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for async listener")
		}
		manager.Stop()
	})

	t.Run("errors are swallowed", func(t *testing.T) {
		manager := NewHookManager(nil)
		var order []string
		manager.Register(EventPostCompaction, &mockListener{name: "fails", priority: 1, callOrder: &order, returnErr: errors.New("boom")})
		manager.Register(EventPostCompaction, &mockListener{name: "runs", priority: 2, callOrder: &order})

		require.NoError(t, manager.Trigger(context.Background(), NewPostCompactionEvent(PostCompactionPayload{})))
		assert.Equal(t, []string{"fails", "runs"}, order)
	})

	t.Run("no listeners", func(t *testing.T) {
		manager := NewHookManager(nil)
		assert.NoError(t, manager.Trigger(context.Background(), NewPostSegmentCreateEvent(SegmentInfo{})))
	})
}

func TestDefaultHookManager_StopWaitsForAsync(t *testing.T) {
	manager := NewHookManager(nil)
	var done atomic.Bool
	manager.Register(EventPostSegmentCreate, &mockListener{
		isAsync:   true,
		workDelay: 30 * time.Millisecond,
		onEvent:   func(HookEvent) { done.Store(true) },
	})

	require.NoError(t, manager.Trigger(context.Background(), NewPostSegmentCreateEvent(SegmentInfo{})))
	manager.Stop()
	assert.True(t, done.Load())
}
