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

// Process-wide totals across every listener instance, published once.
var (
	wafMetricsOnce    sync.Once
	totalBytesRead    *expvar.Int
	totalBytesWritten *expvar.Int
	compactionEvents  *expvar.Int
)

func initWAFMetrics() {
	wafMetricsOnce.Do(func() {
		totalBytesRead = expvar.NewInt("lsm_compaction_bytes_read_total")
		totalBytesWritten = expvar.NewInt("lsm_compaction_bytes_written_total")
		compactionEvents = expvar.NewInt("lsm_compaction_events_total")
		expvar.Publish("lsm_compaction_waf", expvar.Func(func() interface{} {
			return ratio(totalBytesWritten.Value(), totalBytesRead.Value())
		}))
	})
}

func ratio(written, read int64) float64 {
	if read == 0 {
		return 0
	}
	return float64(written) / float64(read)
}

// WriteAmplificationListener tracks how many bytes compaction rewrites
// relative to what it reads, both for its own engine and process-wide.
type WriteAmplificationListener struct {
	logger *slog.Logger

	bytesRead    atomic.Int64
	bytesWritten atomic.Int64
	events       atomic.Int64
}

// NewWriteAmplificationListener creates a new listener.
func NewWriteAmplificationListener(logger *slog.Logger) *WriteAmplificationListener {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	initWAFMetrics()
	return &WriteAmplificationListener{
		logger: logger.With("component", "WriteAmplificationListener"),
	}
}

// OnEvent is called when a PostCompaction event is triggered.
func (l *WriteAmplificationListener) OnEvent(ctx context.Context, event hooks.HookEvent) error {
	payload, ok := event.Payload().(hooks.PostCompactionPayload)
	if !ok {
		return nil
	}

	var bytesRead int64
	for _, seg := range payload.OldSegments {
		bytesRead += seg.Size
	}
	bytesWritten := payload.NewSegment.Size

	l.bytesRead.Add(bytesRead)
	l.bytesWritten.Add(bytesWritten)
	l.events.Add(1)
	totalBytesRead.Add(bytesRead)
	totalBytesWritten.Add(bytesWritten)
	compactionEvents.Add(1)

	l.logger.Info("Compaction event processed",
		"segments_in", len(payload.OldSegments),
		"segment_out", payload.NewSegment.Name,
		"bytes_read", bytesRead,
		"bytes_written", bytesWritten,
	)
	return nil
}

// BytesRead is the sum of compaction input sizes seen by this listener.
func (l *WriteAmplificationListener) BytesRead() int64 { return l.bytesRead.Load() }

// BytesWritten is the sum of compaction output sizes seen by this listener.
func (l *WriteAmplificationListener) BytesWritten() int64 { return l.bytesWritten.Load() }

// Compactions is the number of PostCompaction events observed.
func (l *WriteAmplificationListener) Compactions() int64 { return l.events.Load() }

// WAF returns bytes written over bytes read, or 0 before any compaction.
func (l *WriteAmplificationListener) WAF() float64 {
	return ratio(l.bytesWritten.Load(), l.bytesRead.Load())
}

func (l *WriteAmplificationListener) Priority() int { return 100 }

// IsAsync is false so counters are current as soon as Compact returns.
func (l *WriteAmplificationListener) IsAsync() bool { return false }
