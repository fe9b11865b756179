// Package hooks lets observers attach to storage engine lifecycle events:
// memtable flushes, segment creation and deletion, and compactions.
//
// Events whose type starts with "Pre" are delivered synchronously and a
// listener error aborts the operation that triggered them. "Post" events are
// informational; listener errors are logged and listeners may opt into
// asynchronous delivery.
package hooks

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"
)

// EventType defines the type of a hook event.
type EventType string

const (
	EventPreFlushMemtable  EventType = "PreFlushMemtable"
	EventPostFlushMemtable EventType = "PostFlushMemtable"
	EventPostSegmentCreate EventType = "PostSegmentCreate"
	EventPreSegmentDelete  EventType = "PreSegmentDelete"
	EventPreCompaction     EventType = "PreCompaction"
	EventPostCompaction    EventType = "PostCompaction"
)

// HookManager registers listeners and dispatches events to them.
type HookManager interface {
	// Register adds a listener for a specific event type.
	Register(eventType EventType, listener HookListener)
	// Trigger fires every listener registered for the event's type in
	// priority order. Only Pre events can return an error.
	Trigger(ctx context.Context, event HookEvent) error
	// Stop waits for in-flight asynchronous listeners.
	Stop()
}

// HookEvent is the interface that all event objects must implement.
type HookEvent interface {
	Type() EventType
	Payload() interface{}
}

// BaseEvent provides a base implementation for HookEvent.
type BaseEvent struct {
	eventType EventType
	payload   interface{}
}

func (e *BaseEvent) Type() EventType      { return e.eventType }
func (e *BaseEvent) Payload() interface{} { return e.payload }

// HookListener defines the interface for components that want to listen to events.
type HookListener interface {
	OnEvent(ctx context.Context, event HookEvent) error
	// Priority orders listeners of one event; lower runs first.
	Priority() int
	// IsAsync requests goroutine delivery. Ignored for Pre events.
	IsAsync() bool
}

// SegmentInfo is an immutable description of a segment file.
type SegmentInfo struct {
	Name      string
	Path      string
	Size      int64
	Compacted bool
}

// PreFlushMemtablePayload describes a memtable about to be written out.
type PreFlushMemtablePayload struct {
	Entries int
	Age     time.Duration
}

// NewPreFlushMemtableEvent creates a new event for before a memtable is flushed.
func NewPreFlushMemtableEvent(payload PreFlushMemtablePayload) HookEvent {
	return &BaseEvent{eventType: EventPreFlushMemtable, payload: payload}
}

// PostFlushMemtablePayload describes a completed flush.
type PostFlushMemtablePayload struct {
	Segment  SegmentInfo
	Entries  int
	Duration time.Duration
}

// NewPostFlushMemtableEvent creates a new event for after a memtable is flushed.
func NewPostFlushMemtableEvent(payload PostFlushMemtablePayload) HookEvent {
	return &BaseEvent{eventType: EventPostFlushMemtable, payload: payload}
}

// NewPostSegmentCreateEvent creates an event for after a segment file has
// been durably written, by either a flush or a compaction.
func NewPostSegmentCreateEvent(payload SegmentInfo) HookEvent {
	return &BaseEvent{eventType: EventPostSegmentCreate, payload: payload}
}

// NewPreSegmentDeleteEvent creates an event for before a segment file is removed.
func NewPreSegmentDeleteEvent(payload SegmentInfo) HookEvent {
	return &BaseEvent{eventType: EventPreSegmentDelete, payload: payload}
}

// PreCompactionPayload lists the segments a compaction is about to merge.
type PreCompactionPayload struct {
	Segments []SegmentInfo
}

// NewPreCompactionEvent creates a new event for before a compaction starts.
func NewPreCompactionEvent(payload PreCompactionPayload) HookEvent {
	return &BaseEvent{eventType: EventPreCompaction, payload: payload}
}

// PostCompactionPayload contains data about a completed compaction.
type PostCompactionPayload struct {
	OldSegments       []SegmentInfo
	NewSegment        SegmentInfo
	LiveEntries       int
	DroppedTombstones int
	Duration          time.Duration
}

// NewPostCompactionEvent creates a new event for after a compaction finishes.
func NewPostCompactionEvent(payload PostCompactionPayload) HookEvent {
	return &BaseEvent{eventType: EventPostCompaction, payload: payload}
}

type registeredListener struct {
	listener HookListener
	priority int
}

// DefaultHookManager is a concrete implementation of HookManager.
type DefaultHookManager struct {
	mu        sync.RWMutex
	listeners map[EventType][]registeredListener
	wg        sync.WaitGroup
	logger    *slog.Logger
}

// NewHookManager creates a new DefaultHookManager.
func NewHookManager(logger *slog.Logger) *DefaultHookManager {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &DefaultHookManager{
		listeners: make(map[EventType][]registeredListener),
		logger:    logger.With("component", "HookManager"),
	}
}

// Register adds a listener for eventType. Listeners with equal priority run
// in registration order.
func (m *DefaultHookManager) Register(eventType EventType, listener HookListener) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item := registeredListener{listener: listener, priority: listener.Priority()}
	l := m.listeners[eventType]
	idx := slices.IndexFunc(l, func(r registeredListener) bool { return r.priority > item.priority })
	if idx < 0 {
		idx = len(l)
	}
	m.listeners[eventType] = slices.Insert(l, idx, item)
}

// Trigger dispatches event. The listener slice is copied under the read
// lock so listeners may register further listeners without deadlocking.
func (m *DefaultHookManager) Trigger(ctx context.Context, event HookEvent) error {
	m.mu.RLock()
	listeners := slices.Clone(m.listeners[event.Type()])
	m.mu.RUnlock()
	if len(listeners) == 0 {
		return nil
	}

	isPre := strings.HasPrefix(string(event.Type()), "Pre")
	for _, item := range listeners {
		if isPre {
			if item.listener.IsAsync() {
				m.logger.Warn("Listener for Pre-hook requested async execution, but Pre-hooks are always synchronous.", "event", event.Type(), "priority", item.priority)
			}
			if err := item.listener.OnEvent(ctx, event); err != nil {
				return fmt.Errorf("pre-hook for event %s (priority %d) failed: %w", event.Type(), item.priority, err)
			}
			continue
		}
		if item.listener.IsAsync() {
			m.wg.Add(1)
			go func(item registeredListener) {
				defer m.wg.Done()
				if err := item.listener.OnEvent(ctx, event); err != nil {
					m.logger.Error("Error from asynchronous post-hook listener", "event", event.Type(), "priority", item.priority, "error", err)
				}
			}(item)
			continue
		}
		if err := item.listener.OnEvent(ctx, event); err != nil {
			m.logger.Error("Error from synchronous post-hook listener", "event", event.Type(), "priority", item.priority, "error", err)
		}
	}
	return nil
}

// Stop waits for all asynchronous listeners to complete.
func (m *DefaultHookManager) Stop() {
	m.wg.Wait()
}

// ListenerFunc adapts a function into a synchronous HookListener with
// priority 0.
type ListenerFunc func(ctx context.Context, event HookEvent) error

func (f ListenerFunc) OnEvent(ctx context.Context, event HookEvent) error { return f(ctx, event) }
func (f ListenerFunc) Priority() int                                      { return 0 }
func (f ListenerFunc) IsAsync() bool                                      { return false }
