package lsm

import (
	"context"
	"fmt"

	"github.com/INLOpen/kvbench/core"
	"github.com/INLOpen/kvbench/hooks"
	"github.com/INLOpen/kvbench/memtable"
	"github.com/INLOpen/kvbench/segment"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Compact merges every segment into one compacted segment. Segments are
// folded oldest first so later entries win; tombstones are then dropped
// since no older generation is left for them to shadow. The memtable is
// not touched.
//
// The merged segment is written before the originals are removed. Its name
// sorts after every original, so if removal fails part way the
// surviving originals are already shadowed and reads stay correct.
func (e *Engine[K, V]) Compact() error {
	ctx, span := e.tracer.Start(context.Background(), "LSMEngine.Compact")
	defer span.End()
	start := e.clock.Now()

	infos, err := e.store.List()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list_segments_failed")
		return err
	}
	span.SetAttributes(attribute.Int("compaction.input_segments", len(infos)))
	if len(infos) == 0 {
		span.SetAttributes(attribute.Bool("compaction.performed", false))
		return nil
	}

	old := make([]hooks.SegmentInfo, len(infos))
	for i, info := range infos {
		old[i] = hookInfo(info)
	}
	if err := e.hooks.Trigger(ctx, hooks.NewPreCompactionEvent(hooks.PreCompactionPayload{Segments: old})); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "pre_compaction_hook_failed")
		return fmt.Errorf("compaction cancelled: %w", err)
	}

	// The merge reuses the memtable structure as an unbounded ordered map.
	merged := memtable.New[K, V](0, e.clock)
	for _, info := range infos {
		records, err := e.store.Load(info)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "load_segment_failed")
			return err
		}
		for _, r := range records {
			merged.Put(r.Key, r.Entry)
		}
	}

	live := make([]core.Record[K, V], 0, merged.Len())
	dropped := 0
	merged.Ascend(func(key K, entry core.Entry[V]) bool {
		if entry.IsTombstone() {
			dropped++
		} else {
			live = append(live, core.Record[K, V]{Key: key, Entry: entry})
		}
		return true
	})

	out, err := e.store.Write(live, true)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "segment_write_failed")
		return err
	}
	e.stats.segmentsWritten.Add(1)
	e.stats.bytesWritten.Add(out.Size)
	e.hooks.Trigger(ctx, hooks.NewPostSegmentCreateEvent(hookInfo(out)))

	if err := e.removeSegments(ctx, infos); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "segment_remove_failed")
		return err
	}
	e.stats.compactions.Add(1)

	span.SetAttributes(
		attribute.String("compaction.output_segment", out.Name),
		attribute.Int("compaction.live_entries", len(live)),
		attribute.Int("compaction.dropped_tombstones", dropped),
	)
	e.hooks.Trigger(ctx, hooks.NewPostCompactionEvent(hooks.PostCompactionPayload{
		OldSegments:       old,
		NewSegment:        hookInfo(out),
		LiveEntries:       len(live),
		DroppedTombstones: dropped,
		Duration:          e.clock.Now().Sub(start),
	}))
	e.logger.Info("Compaction finished.", "input_segments", len(infos), "output", out.Name, "live_entries", len(live), "dropped_tombstones", dropped)
	return nil
}

func (e *Engine[K, V]) removeSegments(ctx context.Context, infos []segment.Info) error {
	for _, info := range infos {
		if err := e.hooks.Trigger(ctx, hooks.NewPreSegmentDeleteEvent(hookInfo(info))); err != nil {
			return fmt.Errorf("segment delete cancelled: %w", err)
		}
		if err := e.store.Remove(info); err != nil {
			return err
		}
		e.stats.segmentsRemoved.Add(1)
	}
	return nil
}
