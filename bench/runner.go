package bench

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/INLOpen/kvbench/core"
	"golang.org/x/sync/errgroup"
)

// Engine is the contract every benchmarked engine implements.
type Engine = core.Engine[uint64, uint64]

// cancelCheckInterval is how many operations run between context checks.
const cancelCheckInterval = 1024

// PhaseResult holds the measurements for one phase of one engine.
type PhaseResult struct {
	Phase   PhaseKind
	Ops     int
	Elapsed time.Duration
	P50     time.Duration
	P90     time.Duration
	P99     time.Duration
	Max     time.Duration
	// Hits counts searches that found a value (read and verify phases).
	Hits int
}

// Throughput is operations per second, or 0 for an empty phase.
func (p PhaseResult) Throughput() float64 {
	if p.Ops == 0 || p.Elapsed <= 0 {
		return 0
	}
	return float64(p.Ops) / p.Elapsed.Seconds()
}

// EngineResult collects every phase run against one engine.
type EngineResult struct {
	Engine   string
	Phases   []PhaseResult
	Elapsed  time.Duration
	RSSBytes uint64
	// LiveKeys is the reference model's live key count; zero unless verifying.
	LiveKeys   uint64
	Mismatches int
	Err        error
}

// Options configure a Runner.
type Options struct {
	// Parallel bounds how many engines run at once. Each engine still has
	// a single caller.
	Parallel int
	Logger   *slog.Logger
}

// Runner executes a Workload.
type Runner struct {
	workload Workload
	plan     Plan
	parallel int
	logger   *slog.Logger
}

// NewRunner validates w and fixes its key plan. A zero seed is replaced by
// a random one, readable through Workload.
func NewRunner(w Workload, opts Options) (*Runner, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	if w.Seed == 0 {
		w.Seed = randomSeed()
	}
	if opts.Parallel < 1 {
		opts.Parallel = 1
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Runner{
		workload: w,
		plan:     w.Plan(),
		parallel: opts.Parallel,
		logger:   opts.Logger.With("component", "BenchRunner"),
	}, nil
}

// Workload returns the workload being run, with its effective seed.
func (r *Runner) Workload() Workload { return r.workload }

// Run benchmarks every engine and returns results in the order given.
// Engine failures are recorded in each result and also joined into the
// returned error; cancellation stops outstanding runs.
func (r *Runner) Run(ctx context.Context, engines []Engine) ([]EngineResult, error) {
	results := make([]EngineResult, len(engines))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.parallel)
	for i, engine := range engines {
		g.Go(func() error {
			res, err := r.RunEngine(gctx, engine)
			results[i] = res
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return nil
		})
	}
	waitErr := g.Wait()

	var errs []error
	for _, res := range results {
		if res.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", res.Engine, res.Err))
		}
	}
	if waitErr != nil && len(errs) == 0 {
		errs = append(errs, waitErr)
	}
	return results, errors.Join(errs...)
}

// RunEngine resets engine, runs every phase, and reports the results. The
// returned error equals the result's Err.
func (r *Runner) RunEngine(ctx context.Context, engine Engine) (EngineResult, error) {
	res := EngineResult{Engine: engine.Name()}
	logger := r.logger.With("engine", res.Engine)
	fail := func(err error) (EngineResult, error) {
		res.Err = err
		logger.Error("Benchmark run failed.", "error", err)
		return res, err
	}

	if err := core.Reset(engine); err != nil {
		return fail(fmt.Errorf("reset: %w", err))
	}

	var m *model
	if r.workload.Verify {
		m = newModel()
	}
	run := &engineRun{engine: engine, model: m, result: &res}
	start := time.Now()

	phases := []struct {
		kind PhaseKind
		keys []uint64
		op   func(key uint64) (bool, error)
	}{
		{PhaseInsert, r.plan.Inserts, run.insert(func(k uint64) uint64 { return k })},
		{PhaseRead, r.plan.Reads, run.search(PhaseRead)},
		{PhaseUpdate, r.plan.Updates, run.insert(func(k uint64) uint64 { return k + 1 })},
		{PhaseDelete, r.plan.Deletes, run.delete},
	}
	for _, p := range phases {
		pr, err := runPhase(ctx, p.kind, p.keys, p.op)
		res.Phases = append(res.Phases, pr)
		if err != nil {
			return fail(fmt.Errorf("%s phase: %w", p.kind, err))
		}
		logger.Info("Phase finished.", "phase", p.kind, "ops", pr.Ops, "elapsed", pr.Elapsed, "ops_per_sec", int64(pr.Throughput()))
	}

	if compactor, ok := engine.(core.Compactor); ok && r.workload.Compact {
		pr, err := runPhase(ctx, PhaseCompact, []uint64{0}, func(uint64) (bool, error) {
			return false, compactor.Compact()
		})
		res.Phases = append(res.Phases, pr)
		if err != nil {
			return fail(fmt.Errorf("%s phase: %w", PhaseCompact, err))
		}
	}

	if m != nil {
		keys := make([]uint64, 0, m.touched.GetCardinality())
		_ = m.sweep(func(k uint64) error {
			keys = append(keys, k)
			return nil
		})
		pr, err := runPhase(ctx, PhaseVerify, keys, run.search(PhaseVerify))
		res.Phases = append(res.Phases, pr)
		res.LiveKeys = m.liveKeys()
		if err != nil {
			return fail(fmt.Errorf("%s phase: %w", PhaseVerify, err))
		}
	}

	res.Elapsed = time.Since(start)
	res.RSSBytes = residentSetSize()
	if run.firstMismatch != nil {
		return fail(run.firstMismatch)
	}
	logger.Info("Benchmark run finished.", "elapsed", res.Elapsed, "rss_bytes", res.RSSBytes)
	return res, nil
}

// engineRun binds per-operation closures to one engine and its model.
type engineRun struct {
	engine        Engine
	model         *model
	result        *EngineResult
	firstMismatch error
}

func (e *engineRun) insert(valueOf func(uint64) uint64) func(uint64) (bool, error) {
	return func(key uint64) (bool, error) {
		v := valueOf(key)
		if err := e.engine.Insert(key, v); err != nil {
			return false, err
		}
		if e.model != nil {
			e.model.put(key, v)
		}
		return false, nil
	}
}

func (e *engineRun) delete(key uint64) (bool, error) {
	if err := e.engine.Delete(key); err != nil {
		return false, err
	}
	if e.model != nil {
		e.model.remove(key)
	}
	return false, nil
}

func (e *engineRun) search(phase PhaseKind) func(uint64) (bool, error) {
	return func(key uint64) (bool, error) {
		got, ok, err := e.engine.Search(key)
		if err != nil {
			return false, err
		}
		if e.model != nil {
			want, wantOK := e.model.lookup(key)
			if ok != wantOK || (ok && got != want) {
				e.result.Mismatches++
				if e.firstMismatch == nil {
					e.firstMismatch = &VerifyError{
						Engine: e.engine.Name(), Phase: phase, Key: key,
						Want: want, WantOK: wantOK, Got: got, GotOK: ok,
					}
				}
			}
		}
		return ok, nil
	}
}

// runPhase times op over keys. Latency quantiles come from a t-digest of
// individual operation durations.
func runPhase(ctx context.Context, kind PhaseKind, keys []uint64, op func(uint64) (bool, error)) (PhaseResult, error) {
	pr := PhaseResult{Phase: kind}
	rec, err := newLatencyRecorder()
	if err != nil {
		return pr, err
	}
	start := time.Now()
	for i, k := range keys {
		if i%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				pr.Elapsed = time.Since(start)
				return pr, err
			}
		}
		opStart := time.Now()
		hit, err := op(k)
		if err != nil {
			pr.Elapsed = time.Since(start)
			return pr, err
		}
		if err := rec.observe(time.Since(opStart)); err != nil {
			return pr, err
		}
		pr.Ops++
		if hit {
			pr.Hits++
		}
	}
	pr.Elapsed = time.Since(start)
	pr.P50, pr.P90, pr.P99 = rec.quantile(0.5), rec.quantile(0.9), rec.quantile(0.99)
	pr.Max = rec.max
	return pr, nil
}
