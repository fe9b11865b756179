package listeners

import (
	"context"
	"expvar"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/INLOpen/kvbench/hooks"
)

var (
	flushMetricsOnce    sync.Once
	totalFlushes        *expvar.Int
	totalFlushedEntries *expvar.Int
	totalFlushedBytes   *expvar.Int
)

func initFlushMetrics() {
	flushMetricsOnce.Do(func() {
		totalFlushes = expvar.NewInt("lsm_flushes_total")
		totalFlushedEntries = expvar.NewInt("lsm_flushed_entries_total")
		totalFlushedBytes = expvar.NewInt("lsm_flushed_bytes_total")
	})
}

// FlushCounterListener counts memtable flushes and the entries and bytes
// they wrote.
type FlushCounterListener struct {
	logger *slog.Logger

	flushes atomic.Int64
	entries atomic.Int64
	bytes   atomic.Int64
}

func NewFlushCounterListener(logger *slog.Logger) *FlushCounterListener {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	initFlushMetrics()
	return &FlushCounterListener{logger: logger.With("component", "FlushCounterListener")}
}

// OnEvent handles PostFlushMemtable events.
func (l *FlushCounterListener) OnEvent(ctx context.Context, event hooks.HookEvent) error {
	payload, ok := event.Payload().(hooks.PostFlushMemtablePayload)
	if !ok {
		return nil
	}
	l.flushes.Add(1)
	l.entries.Add(int64(payload.Entries))
	l.bytes.Add(payload.Segment.Size)
	totalFlushes.Add(1)
	totalFlushedEntries.Add(int64(payload.Entries))
	totalFlushedBytes.Add(payload.Segment.Size)

	l.logger.Debug("Flush observed", "segment", payload.Segment.Name, "entries", payload.Entries, "duration", payload.Duration)
	return nil
}

func (l *FlushCounterListener) Flushes() int64      { return l.flushes.Load() }
func (l *FlushCounterListener) Entries() int64      { return l.entries.Load() }
func (l *FlushCounterListener) BytesFlushed() int64 { return l.bytes.Load() }

func (l *FlushCounterListener) Priority() int { return 100 }
func (l *FlushCounterListener) IsAsync() bool { return false }
