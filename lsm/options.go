package lsm

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/INLOpen/kvbench/compressors"
	"github.com/INLOpen/kvbench/core"
	"github.com/INLOpen/kvbench/hooks"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// DefaultMemtableThreshold is the flush threshold used when none is given.
const DefaultMemtableThreshold = 1000

// Options configure an Engine. Only Dir is required.
type Options struct {
	// Dir is the segment directory. It is created if missing and locked
	// for the lifetime of the engine.
	Dir string
	// MemtableThreshold is the entry count at which the memtable is flushed.
	MemtableThreshold int
	// Compressor applies to new segments. Nil means snappy.
	Compressor core.Compressor

	Clock       core.Clock
	Logger      *slog.Logger
	Tracer      trace.Tracer
	HookManager hooks.HookManager
}

func (o *Options) applyDefaults() error {
	if o.Dir == "" {
		return fmt.Errorf("lsm: data directory is required")
	}
	if o.MemtableThreshold == 0 {
		o.MemtableThreshold = DefaultMemtableThreshold
	}
	if o.MemtableThreshold < 1 {
		return fmt.Errorf("lsm: memtable threshold must be at least 1, got %d", o.MemtableThreshold)
	}
	if o.Compressor == nil {
		o.Compressor = compressors.NewSnappyCompressor()
	}
	if o.Clock == nil {
		o.Clock = core.SystemClock()
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if o.Tracer == nil {
		o.Tracer = noop.NewTracerProvider().Tracer("kvbench/lsm")
	}
	if o.HookManager == nil {
		o.HookManager = hooks.NewHookManager(o.Logger)
	}
	return nil
}
