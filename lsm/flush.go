package lsm

import (
	"context"
	"fmt"

	"github.com/INLOpen/kvbench/hooks"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Flush writes the memtable to a new segment and clears it. An empty
// memtable is a no-op. On failure the memtable is left untouched.
func (e *Engine[K, V]) Flush() error {
	if e.mem.IsEmpty() {
		return nil
	}
	ctx, span := e.tracer.Start(context.Background(), "LSMEngine.Flush")
	defer span.End()
	start := e.clock.Now()
	entries := e.mem.Len()
	span.SetAttributes(attribute.Int("flush.entries", entries))

	preErr := e.hooks.Trigger(ctx, hooks.NewPreFlushMemtableEvent(hooks.PreFlushMemtablePayload{
		Entries: entries,
		Age:     e.mem.Age(),
	}))
	if preErr != nil {
		span.RecordError(preErr)
		span.SetStatus(codes.Error, "pre_flush_hook_failed")
		return fmt.Errorf("flush cancelled: %w", preErr)
	}

	info, err := e.store.Write(e.mem.Records(), false)
	if err != nil {
		e.logger.Error("Memtable flush failed.", "entries", entries, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "segment_write_failed")
		return err
	}
	e.mem.Clear()

	e.stats.flushes.Add(1)
	e.stats.segmentsWritten.Add(1)
	e.stats.bytesWritten.Add(info.Size)
	span.SetAttributes(attribute.String("flush.segment", info.Name), attribute.Int64("flush.bytes", info.Size))

	seg := hookInfo(info)
	e.hooks.Trigger(ctx, hooks.NewPostSegmentCreateEvent(seg))
	e.hooks.Trigger(ctx, hooks.NewPostFlushMemtableEvent(hooks.PostFlushMemtablePayload{
		Segment:  seg,
		Entries:  entries,
		Duration: e.clock.Now().Sub(start),
	}))
	e.logger.Debug("Memtable flushed.", "segment", info.Name, "entries", entries, "bytes", info.Size)
	return nil
}
