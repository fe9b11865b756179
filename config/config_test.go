package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_ValidConfig(t *testing.T) {
	yamlContent := `
engines:
  btree:
    degree: 16
  lsm:
    data_dir: "/tmp/kvbench_data"
    memtable_threshold: 250
    compression: zstd
workload:
  operations: 5000
  verify: true
`
	cfg, err := Load(strings.NewReader(yamlContent))
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 16, cfg.Engines.BTree.Degree)
	assert.Equal(t, "/tmp/kvbench_data", cfg.Engines.LSM.DataDir)
	assert.Equal(t, 250, cfg.Engines.LSM.MemtableThreshold)
	assert.Equal(t, "zstd", cfg.Engines.LSM.Compression)
	assert.Equal(t, 5000, cfg.Workload.Operations)
	assert.True(t, cfg.Workload.Verify)

	// Not overridden.
	assert.True(t, cfg.Engines.BTree.Enabled)
	assert.Equal(t, 10, cfg.Workload.KeySpaceMultiplier)
	assert.InDelta(t, 0.5, cfg.Workload.ReadRatio, 1e-9)
	require.NoError(t, cfg.Validate())
}

func TestLoad_Defaults(t *testing.T) {
	for name, r := range map[string]io.Reader{"nil": nil, "empty": strings.NewReader("")} {
		t.Run(name, func(t *testing.T) {
			cfg, err := Load(r)
			require.NoError(t, err)
			assert.Equal(t, 64, cfg.Engines.BTree.Degree)
			assert.Equal(t, 1000, cfg.Engines.LSM.MemtableThreshold)
			assert.Equal(t, "lsm_data_bench", cfg.Engines.LSM.DataDir)
			assert.Equal(t, "snappy", cfg.Engines.LSM.Compression)
			assert.Equal(t, 100000, cfg.Workload.Operations)
			assert.Equal(t, 1, cfg.Workload.Parallel)
			assert.NoError(t, cfg.Validate())
		})
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	yamlContent := `
engines:
  lsm:
    data_dir: "/tmp/test_data"
  this: is: invalid: yaml
`
	_, err := Load(strings.NewReader(yamlContent))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to unmarshal config yaml")
}

func TestLoadConfig_FileIntegration(t *testing.T) {
	t.Run("FileExists", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "kvbench.yaml")
		require.NoError(t, os.WriteFile(configPath, []byte("engines:\n  btree:\n    degree: 3\n"), 0644))

		cfg, err := LoadConfig(configPath)
		require.NoError(t, err)
		assert.Equal(t, 3, cfg.Engines.BTree.Degree)
	})

	t.Run("FileDoesNotExist", func(t *testing.T) {
		cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
		require.NoError(t, err)
		assert.Equal(t, 64, cfg.Engines.BTree.Degree)
	})
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"defaults", func(c *Config) {}, ""},
		{"degree too small", func(c *Config) { c.Engines.BTree.Degree = 1 }, "engines.btree.degree"},
		{"degree ignored when disabled", func(c *Config) { c.Engines.BTree.Enabled = false; c.Engines.BTree.Degree = 0 }, ""},
		{"threshold zero", func(c *Config) { c.Engines.LSM.MemtableThreshold = 0 }, "memtable_threshold"},
		{"unknown compression", func(c *Config) { c.Engines.LSM.Compression = "brotli" }, "engines.lsm.compression"},
		{"no engines", func(c *Config) { c.Engines.BTree.Enabled = false; c.Engines.LSM.Enabled = false }, "no engine enabled"},
		{"read ratio above one", func(c *Config) { c.Workload.ReadRatio = 1.5 }, "read_ratio"},
		{"negative delete ratio", func(c *Config) { c.Workload.DeleteRatio = -0.1 }, "delete_ratio"},
		{"zero operations", func(c *Config) { c.Workload.Operations = 0 }, "workload.operations"},
		{"bad timeout", func(c *Config) { c.Workload.Timeout = "soon" }, "workload.timeout"},
		{"bad tracing protocol", func(c *Config) { c.Tracing.Enabled = true; c.Tracing.Protocol = "udp" }, "tracing.protocol"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestParseDuration(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	defaultDuration := 10 * time.Second

	testCases := []struct {
		name     string
		input    string
		expected time.Duration
	}{
		{"ValidSeconds", "5s", 5 * time.Second},
		{"ValidMilliseconds", "500ms", 500 * time.Millisecond},
		{"EmptyString", "", defaultDuration},
		{"ZeroString", "0", defaultDuration},
		{"InvalidString", "5x", defaultDuration},
		{"JustNumber", "10", defaultDuration},
		{"NilLogger", "5x", defaultDuration},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var testLogger *slog.Logger
			if tc.name != "NilLogger" {
				testLogger = logger
			}
			assert.Equal(t, tc.expected, ParseDuration(tc.input, defaultDuration, testLogger))
		})
	}
}
