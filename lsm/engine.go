// Package lsm implements a log-structured merge engine: writes land in an
// in-memory memtable which is flushed to an immutable segment file when it
// reaches a size threshold. Reads consult the memtable and then segments
// newest first. Compaction is explicit and folds every segment into one.
//
// Keys and values must survive a segment round trip: non-finite floats and
// values encoding/json rejects are refused by Insert with a CodecError.
//
// An Engine is meant to be driven by a single caller.
package lsm

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"sync/atomic"

	"github.com/INLOpen/kvbench/core"
	"github.com/INLOpen/kvbench/hooks"
	"github.com/INLOpen/kvbench/memtable"
	"github.com/INLOpen/kvbench/segment"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// EngineName is reported by Name.
const EngineName = "LSM-Tree"

var (
	_ core.Engine[uint64, uint64] = (*Engine[uint64, uint64])(nil)
	_ core.Resetter               = (*Engine[uint64, uint64])(nil)
	_ core.Compactor              = (*Engine[uint64, uint64])(nil)
)

// Stats is a snapshot of engine counters.
type Stats struct {
	Flushes         int64
	Compactions     int64
	SegmentsWritten int64
	SegmentsRemoved int64
	SegmentLoads    int64
	BytesWritten    int64
	Segments        int
	MemtableEntries int
}

type counters struct {
	flushes         atomic.Int64
	compactions     atomic.Int64
	segmentsWritten atomic.Int64
	segmentsRemoved atomic.Int64
	segmentLoads    atomic.Int64
	bytesWritten    atomic.Int64
}

// Engine is the LSM storage engine.
type Engine[K cmp.Ordered, V any] struct {
	mem    *memtable.Memtable[K, V]
	store  *segment.Store[K, V]
	hooks  hooks.HookManager
	tracer trace.Tracer
	logger *slog.Logger
	clock  core.Clock

	stats counters
}

// Open creates an engine over opts.Dir. Segments already in the directory
// become part of the engine's read path.
func Open[K cmp.Ordered, V any](opts Options) (*Engine[K, V], error) {
	if err := opts.applyDefaults(); err != nil {
		return nil, err
	}
	logger := opts.Logger.With("component", "LSMEngine")
	store, err := segment.Open[K, V](opts.Dir, segment.Options{
		Compressor: opts.Compressor,
		Clock:      opts.Clock,
		Logger:     opts.Logger,
	})
	if err != nil {
		return nil, err
	}
	e := &Engine[K, V]{
		mem:    memtable.New[K, V](opts.MemtableThreshold, opts.Clock),
		store:  store,
		hooks:  opts.HookManager,
		tracer: opts.Tracer,
		logger: logger,
		clock:  opts.Clock,
	}
	logger.Info("LSM engine opened.", "dir", opts.Dir, "memtable_threshold", opts.MemtableThreshold, "compression", opts.Compressor.Type().String())
	return e, nil
}

// Name implements core.Engine.
func (e *Engine[K, V]) Name() string { return EngineName }

// Dir returns the segment directory.
func (e *Engine[K, V]) Dir() string { return e.store.Dir() }

// Insert records value for key. A full memtable is flushed before Insert
// returns; if that flush fails the entry stays in the memtable.
func (e *Engine[K, V]) Insert(key K, value V) error {
	return e.write(key, core.PutEntry(value))
}

// Delete records a tombstone for key. Nothing is physically removed until
// compaction.
func (e *Engine[K, V]) Delete(key K) error {
	return e.write(key, core.TombstoneEntry[V]())
}

// write rejects entries a segment could not hold, such as NaN floats, so
// they never reach the memtable and block every later flush.
func (e *Engine[K, V]) write(key K, entry core.Entry[V]) error {
	if err := (core.Record[K, V]{Key: key, Entry: entry}).Validate(); err != nil {
		return core.NewCodecError(e.store.Dir(), err)
	}
	e.mem.Put(key, entry)
	if e.mem.IsFull() {
		return e.Flush()
	}
	return nil
}

// Search resolves key against the memtable, then segments newest first.
// The first entry found decides: a value is returned, a tombstone reports
// absent. Absence is (zero, false, nil).
func (e *Engine[K, V]) Search(key K) (V, bool, error) {
	var zero V
	if entry, ok := e.mem.Get(key); ok {
		v, live := entry.Resolve()
		return v, live, nil
	}

	_, span := e.tracer.Start(context.Background(), "LSMEngine.SearchSegments")
	defer span.End()

	infos, err := e.store.List()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list_segments_failed")
		return zero, false, err
	}
	segment.SortDescending(infos)

	for i, info := range infos {
		records, err := e.store.Load(info)
		e.stats.segmentLoads.Add(1)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "load_segment_failed")
			return zero, false, err
		}
		idx, found := slices.BinarySearchFunc(records, key, func(r core.Record[K, V], k K) int {
			return cmp.Compare(r.Key, k)
		})
		if found {
			span.SetAttributes(attribute.Int("search.segments_scanned", i+1), attribute.String("search.segment", info.Name))
			v, live := records[idx].Entry.Resolve()
			return v, live, nil
		}
	}
	span.SetAttributes(attribute.Int("search.segments_scanned", len(infos)))
	return zero, false, nil
}

// Reset discards the memtable and every segment, leaving an empty engine
// over the same directory.
func (e *Engine[K, V]) Reset() error {
	e.mem.Clear()
	n, err := e.store.RemoveAll()
	e.stats.segmentsRemoved.Add(int64(n))
	if err != nil {
		return err
	}
	e.logger.Info("LSM engine reset.", "segments_removed", n)
	return nil
}

// Close flushes the memtable, waits for asynchronous hook listeners and
// releases the directory lock.
func (e *Engine[K, V]) Close() error {
	flushErr := e.Flush()
	e.hooks.Stop()
	closeErr := e.store.Close()
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}

// Stats returns a snapshot of the engine counters.
func (e *Engine[K, V]) Stats() Stats {
	s := Stats{
		Flushes:         e.stats.flushes.Load(),
		Compactions:     e.stats.compactions.Load(),
		SegmentsWritten: e.stats.segmentsWritten.Load(),
		SegmentsRemoved: e.stats.segmentsRemoved.Load(),
		SegmentLoads:    e.stats.segmentLoads.Load(),
		BytesWritten:    e.stats.bytesWritten.Load(),
		MemtableEntries: e.mem.Len(),
	}
	if infos, err := e.store.List(); err == nil {
		s.Segments = len(infos)
	}
	return s
}

func hookInfo(info segment.Info) hooks.SegmentInfo {
	return hooks.SegmentInfo{Name: info.Name, Path: info.Path, Size: info.Size, Compacted: info.Compacted}
}
