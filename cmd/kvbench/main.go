// Command kvbench drives the same seeded workload against the B-tree and
// LSM engines and prints a per-phase comparison.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/INLOpen/kvbench/bench"
	"github.com/INLOpen/kvbench/btree"
	"github.com/INLOpen/kvbench/compressors"
	"github.com/INLOpen/kvbench/config"
	"github.com/INLOpen/kvbench/hooks"
	"github.com/INLOpen/kvbench/hooks/listeners"
	"github.com/INLOpen/kvbench/lsm"
	"github.com/INLOpen/kvbench/server"
)

// overrides are command-line values that replace config file settings,
// applied only for flags the user actually set.
type overrides struct {
	operations  int
	degree      int
	threshold   int
	compression string
	verify      bool
	parallel    int
	seed        uint64
}

func parseFlags(fs *flag.FlagSet, args []string) (string, func(*config.Config), error) {
	var o overrides
	configPath := fs.String("config", "kvbench.yaml", "Path to the configuration file")
	fs.IntVar(&o.operations, "n", 0, "Number of insert operations")
	fs.IntVar(&o.degree, "degree", 0, "B-tree minimum degree")
	fs.IntVar(&o.threshold, "threshold", 0, "LSM memtable flush threshold (entries)")
	fs.StringVar(&o.compression, "compression", "", "Segment compression: none, snappy, lz4, zstd")
	fs.BoolVar(&o.verify, "verify", false, "Check every search against a reference model")
	fs.IntVar(&o.parallel, "parallel", 0, "Number of engines to run concurrently")
	fs.Uint64Var(&o.seed, "seed", 0, "Workload seed (0 picks one)")
	if err := fs.Parse(args); err != nil {
		return "", nil, err
	}

	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	apply := func(cfg *config.Config) {
		if set["n"] {
			cfg.Workload.Operations = o.operations
		}
		if set["degree"] {
			cfg.Engines.BTree.Degree = o.degree
		}
		if set["threshold"] {
			cfg.Engines.LSM.MemtableThreshold = o.threshold
		}
		if set["compression"] {
			cfg.Engines.LSM.Compression = o.compression
		}
		if set["verify"] {
			cfg.Workload.Verify = o.verify
		}
		if set["parallel"] {
			cfg.Workload.Parallel = o.parallel
		}
		if set["seed"] {
			cfg.Workload.Seed = o.seed
		}
	}
	return *configPath, apply, nil
}

func main() {
	configPath, apply, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		os.Exit(2)
	}
	if err := run(configPath, apply, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "kvbench:", err)
		os.Exit(1)
	}
}

func run(configPath string, apply func(*config.Config), out *os.File) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	apply(cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, logCloser, err := createLogger(cfg.Logging)
	if err != nil {
		return err
	}
	if logCloser != nil {
		defer logCloser.Close()
	}

	tp, tracerCleanup, err := initTracerProvider(cfg.Tracing, logger)
	if err != nil {
		return err
	}
	defer tracerCleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if timeout := config.ParseDuration(cfg.Workload.Timeout, 0, logger); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if cfg.Debug.Enabled {
		metricSrv, err := server.NewMetricsServer(cfg.Debug, logger)
		if err != nil {
			return err
		}
		if err := metricSrv.Start(); err != nil {
			return err
		}
		defer metricSrv.Stop()
	}
	if cfg.SelfMonitoring.Enabled {
		interval := config.ParseDuration(cfg.SelfMonitoring.Interval, 5*time.Second, logger)
		collector := server.NewSystemCollector(cfg.Engines.LSM.DataDir, interval, logger)
		collector.Start()
		defer collector.Stop()
	}

	var engines []bench.Engine
	if cfg.Engines.BTree.Enabled {
		engines = append(engines, btree.New[uint64, uint64](cfg.Engines.BTree.Degree))
	}

	var (
		lsmEngine *lsm.Engine[uint64, uint64]
		waf       *listeners.WriteAmplificationListener
		flushes   *listeners.FlushCounterListener
	)
	if cfg.Engines.LSM.Enabled {
		dataDir := cfg.Engines.LSM.DataDir
		if err := os.RemoveAll(dataDir); err != nil {
			return fmt.Errorf("remove stale data dir %s: %w", dataDir, err)
		}
		defer func() {
			if err := os.RemoveAll(dataDir); err != nil {
				logger.Warn("Failed to clean up data dir", "path", dataDir, "error", err)
			}
		}()

		compressor, err := compressors.ForName(cfg.Engines.LSM.Compression)
		if err != nil {
			return err
		}
		hookManager := hooks.NewHookManager(logger)
		waf = listeners.NewWriteAmplificationListener(logger)
		flushes = listeners.NewFlushCounterListener(logger)
		slow := listeners.NewSlowOperationListener(logger,
			config.ParseDuration(cfg.Engines.LSM.SlowFlushThreshold, 0, logger),
			config.ParseDuration(cfg.Engines.LSM.SlowCompactionThreshold, 0, logger),
		)
		hookManager.Register(hooks.EventPostCompaction, waf)
		hookManager.Register(hooks.EventPostFlushMemtable, flushes)
		hookManager.Register(hooks.EventPostFlushMemtable, slow)
		hookManager.Register(hooks.EventPostCompaction, slow)

		lsmEngine, err = lsm.Open[uint64, uint64](lsm.Options{
			Dir:               dataDir,
			MemtableThreshold: cfg.Engines.LSM.MemtableThreshold,
			Compressor:        compressor,
			Logger:            logger,
			Tracer:            tp.Tracer("kvbench/lsm"),
			HookManager:       hookManager,
		})
		if err != nil {
			return err
		}
		defer func() {
			if err := lsmEngine.Close(); err != nil {
				logger.Warn("Failed to close LSM engine", "error", err)
			}
		}()
		engines = append(engines, lsmEngine)
	}

	runner, err := bench.NewRunner(bench.Workload{
		Operations:         cfg.Workload.Operations,
		KeySpaceMultiplier: cfg.Workload.KeySpaceMultiplier,
		ReadRatio:          cfg.Workload.ReadRatio,
		UpdateRatio:        cfg.Workload.UpdateRatio,
		DeleteRatio:        cfg.Workload.DeleteRatio,
		Seed:               cfg.Workload.Seed,
		Verify:             cfg.Workload.Verify,
		Compact:            cfg.Engines.LSM.CompactAfterRun,
	}, bench.Options{Parallel: cfg.Workload.Parallel, Logger: logger})
	if err != nil {
		return err
	}
	logger.Info("Starting benchmarks", "operations", cfg.Workload.Operations, "seed", runner.Workload().Seed, "engines", len(engines))

	results, runErr := runner.Run(ctx, engines)
	format := bench.FormatFor(out)
	if err := bench.WriteReport(out, results, format); err != nil {
		return errors.Join(runErr, err)
	}
	if lsmEngine != nil && format == bench.FormatTable {
		writeLSMSummary(out, lsmEngine.Stats(), waf, flushes)
	}
	return runErr
}

func writeLSMSummary(w io.Writer, st lsm.Stats, waf *listeners.WriteAmplificationListener, flushes *listeners.FlushCounterListener) {
	fmt.Fprintf(w, "%s: flushes %d (%d entries), compactions %d, segments %d, segment loads %d, bytes written %d, compaction WAF %.2f\n",
		lsm.EngineName, flushes.Flushes(), flushes.Entries(), st.Compactions, st.Segments, st.SegmentLoads, st.BytesWritten, waf.WAF())
}
