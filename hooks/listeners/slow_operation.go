package listeners

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/INLOpen/kvbench/hooks"
)

// SlowOperationListener logs a warning when a flush or compaction takes
// longer than its configured threshold. A zero threshold disables the check
// for that operation.
type SlowOperationListener struct {
	logger          *slog.Logger
	flushLimit      time.Duration
	compactionLimit time.Duration
}

// NewSlowOperationListener creates a detector for PostFlushMemtable and
// PostCompaction events.
func NewSlowOperationListener(logger *slog.Logger, flushLimit, compactionLimit time.Duration) *SlowOperationListener {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &SlowOperationListener{
		logger:          logger.With("component", "SlowOperationListener"),
		flushLimit:      flushLimit,
		compactionLimit: compactionLimit,
	}
}

func (l *SlowOperationListener) OnEvent(ctx context.Context, event hooks.HookEvent) error {
	switch payload := event.Payload().(type) {
	case hooks.PostFlushMemtablePayload:
		if l.flushLimit > 0 && payload.Duration > l.flushLimit {
			l.logger.Warn("Slow memtable flush",
				"segment", payload.Segment.Name,
				"entries", payload.Entries,
				"duration", payload.Duration,
				"threshold", l.flushLimit,
			)
		}
	case hooks.PostCompactionPayload:
		if l.compactionLimit > 0 && payload.Duration > l.compactionLimit {
			l.logger.Warn("Slow compaction",
				"segments_in", len(payload.OldSegments),
				"segment_out", payload.NewSegment.Name,
				"duration", payload.Duration,
				"threshold", l.compactionLimit,
			)
		}
	default:
		l.logger.Debug("Ignoring event with unexpected payload", "event", event.Type(), "payload_type", fmt.Sprintf("%T", event.Payload()))
	}
	return nil
}

func (l *SlowOperationListener) Priority() int { return 100 }
func (l *SlowOperationListener) IsAsync() bool { return true }
