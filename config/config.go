package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/INLOpen/kvbench/core"
	"gopkg.in/yaml.v3"
)

// BTreeConfig holds tree engine configuration.
type BTreeConfig struct {
	Enabled bool `yaml:"enabled"`
	Degree  int  `yaml:"degree"` // minimum degree t, at least 2
}

// LSMConfig holds LSM engine configuration.
type LSMConfig struct {
	Enabled           bool   `yaml:"enabled"`
	DataDir           string `yaml:"data_dir"`
	MemtableThreshold int    `yaml:"memtable_threshold"` // entries
	Compression       string `yaml:"compression"`        // none, snappy, lz4, zstd
	CompactAfterRun   bool   `yaml:"compact_after_run"`
	// Listeners warn when a single flush or compaction exceeds these.
	SlowFlushThreshold      string `yaml:"slow_flush_threshold"`
	SlowCompactionThreshold string `yaml:"slow_compaction_threshold"`
}

// EnginesConfig groups the per-engine settings.
type EnginesConfig struct {
	BTree BTreeConfig `yaml:"btree"`
	LSM   LSMConfig   `yaml:"lsm"`
}

// WorkloadConfig describes the operation mix driven against each engine.
type WorkloadConfig struct {
	Operations         int     `yaml:"operations"`
	KeySpaceMultiplier int     `yaml:"key_space_multiplier"`
	ReadRatio          float64 `yaml:"read_ratio"`
	UpdateRatio        float64 `yaml:"update_ratio"`
	DeleteRatio        float64 `yaml:"delete_ratio"`
	Seed               uint64  `yaml:"seed"` // 0 picks a random seed
	Verify             bool    `yaml:"verify"`
	Parallel           int     `yaml:"parallel"`
	Timeout            string  `yaml:"timeout"` // empty means no limit
}

// LoggingConfig holds logging-specific configurations.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // e.g., "debug", "info", "warn", "error"
	Output string `yaml:"output"` // e.g., "stdout", "file", "none"
	File   string `yaml:"file"`   // Path to the log file, used if output is "file"
}

// DebugConfig holds debugging-related configurations.
type DebugConfig struct {
	Enabled          bool   `yaml:"enabled"`
	ListenAddress    string `yaml:"listen_address"`
	PProfEnabled     bool   `yaml:"pprof_enabled"`
	MetricsEnabled   bool   `yaml:"metrics_enabled"`
	MonitorUIEnabled bool   `yaml:"monitor_ui_enabled"`
}

// SelfMonitoringConfig controls the system resource collector.
type SelfMonitoringConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Interval string `yaml:"interval"`
}

// TracingConfig holds configuration for distributed tracing.
type TracingConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"` // e.g., "localhost:4317" for gRPC OTLP collector
	Protocol string `yaml:"protocol"` // "grpc" or "http"
}

// Config is the top-level configuration struct.
type Config struct {
	Engines        EnginesConfig        `yaml:"engines"`
	Workload       WorkloadConfig       `yaml:"workload"`
	Logging        LoggingConfig        `yaml:"logging"`
	Debug          DebugConfig          `yaml:"debug"`
	SelfMonitoring SelfMonitoringConfig `yaml:"self_monitoring"`
	Tracing        TracingConfig        `yaml:"tracing"`
}

// ParseDuration parses a duration string. Returns the default duration if the string is empty or invalid.
// Logs a warning if the string is invalid but not empty.
func ParseDuration(durationStr string, defaultDuration time.Duration, logger *slog.Logger) time.Duration {
	if durationStr == "" || durationStr == "0" {
		return defaultDuration
	}
	d, err := time.ParseDuration(durationStr)
	if err != nil {
		if logger != nil {
			logger.Warn("Invalid duration format, using default", "input", durationStr, "default", defaultDuration.String(), "error", err)
		}
		return defaultDuration
	}
	return d
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Engines: EnginesConfig{
			BTree: BTreeConfig{
				Enabled: true,
				Degree:  64,
			},
			LSM: LSMConfig{
				Enabled:                 true,
				DataDir:                 "lsm_data_bench",
				MemtableThreshold:       1000,
				Compression:             "snappy",
				CompactAfterRun:         false,
				SlowFlushThreshold:      "500ms",
				SlowCompactionThreshold: "5s",
			},
		},
		Workload: WorkloadConfig{
			Operations:         100000,
			KeySpaceMultiplier: 10,
			ReadRatio:          0.5,
			UpdateRatio:        0.1,
			DeleteRatio:        0.1,
			Parallel:           1,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: "stdout",
			File:   "kvbench.log",
		},
		Debug: DebugConfig{
			Enabled:          false,
			ListenAddress:    "localhost:6060",
			PProfEnabled:     true,
			MetricsEnabled:   true,
			MonitorUIEnabled: true,
		},
		SelfMonitoring: SelfMonitoringConfig{
			Enabled:  false,
			Interval: "5s",
		},
		Tracing: TracingConfig{
			Enabled:  false,
			Endpoint: "localhost:4317",
			Protocol: "grpc",
		},
	}
}

// Load reads configuration from an io.Reader, overlaying it on Default.
// A nil or empty reader yields the defaults.
func Load(r io.Reader) (*Config, error) {
	cfg := Default()
	if r == nil {
		return cfg, nil
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read config data: %w", err)
	}
	if len(data) == 0 {
		return cfg, nil
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
	}
	return cfg, nil
}

// LoadConfig reads configuration from a YAML file by path. A missing file
// yields the defaults.
func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Load(nil)
		}
		return nil, fmt.Errorf("failed to open config file %s: %w", path, err)
	}
	defer file.Close()

	return Load(file)
}

// Validate reports every setting that cannot be run.
func (c *Config) Validate() error {
	var errs []error
	if c.Engines.BTree.Enabled && c.Engines.BTree.Degree < 2 {
		errs = append(errs, fmt.Errorf("engines.btree.degree must be at least 2, got %d", c.Engines.BTree.Degree))
	}
	if c.Engines.LSM.Enabled {
		if c.Engines.LSM.MemtableThreshold < 1 {
			errs = append(errs, fmt.Errorf("engines.lsm.memtable_threshold must be at least 1, got %d", c.Engines.LSM.MemtableThreshold))
		}
		if c.Engines.LSM.DataDir == "" {
			errs = append(errs, errors.New("engines.lsm.data_dir must not be empty"))
		}
		if _, err := core.ParseCompressionType(c.Engines.LSM.Compression); err != nil {
			errs = append(errs, fmt.Errorf("engines.lsm.compression: %w", err))
		}
	}
	if !c.Engines.BTree.Enabled && !c.Engines.LSM.Enabled {
		errs = append(errs, errors.New("no engine enabled"))
	}

	w := c.Workload
	if w.Operations < 1 {
		errs = append(errs, fmt.Errorf("workload.operations must be positive, got %d", w.Operations))
	}
	if w.KeySpaceMultiplier < 1 {
		errs = append(errs, fmt.Errorf("workload.key_space_multiplier must be positive, got %d", w.KeySpaceMultiplier))
	}
	for name, r := range map[string]float64{
		"read_ratio":   w.ReadRatio,
		"update_ratio": w.UpdateRatio,
		"delete_ratio": w.DeleteRatio,
	} {
		if r < 0 || r > 1 {
			errs = append(errs, fmt.Errorf("workload.%s must be within [0, 1], got %g", name, r))
		}
	}
	if w.Parallel < 1 {
		errs = append(errs, fmt.Errorf("workload.parallel must be at least 1, got %d", w.Parallel))
	}
	if w.Timeout != "" {
		if _, err := time.ParseDuration(w.Timeout); err != nil {
			errs = append(errs, fmt.Errorf("workload.timeout: %w", err))
		}
	}
	switch c.Tracing.Protocol {
	case "grpc", "http":
	default:
		if c.Tracing.Enabled {
			errs = append(errs, fmt.Errorf("tracing.protocol must be grpc or http, got %q", c.Tracing.Protocol))
		}
	}
	return errors.Join(errs...)
}
