package server

import (
	"encoding/json"
	"expvar"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/INLOpen/kvbench/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsServer_Routes(t *testing.T) {
	testCases := []struct {
		name     string
		cfg      config.DebugConfig
		path     string
		wantCode int
	}{
		{"metrics enabled", config.DebugConfig{MetricsEnabled: true}, "/metrics", http.StatusOK},
		{"metrics disabled", config.DebugConfig{}, "/metrics", http.StatusNotFound},
		{"pprof enabled", config.DebugConfig{PProfEnabled: true}, "/debug/pprof/", http.StatusOK},
		{"pprof disabled", config.DebugConfig{}, "/debug/pprof/", http.StatusNotFound},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			srv, err := NewMetricsServer(tc.cfg, nil)
			require.NoError(t, err)
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.path, nil))
			assert.Equal(t, tc.wantCode, rec.Code)
		})
	}
}

func TestMetricsServer_StartStop(t *testing.T) {
	srv, err := NewMetricsServer(config.DebugConfig{ListenAddress: "127.0.0.1:0", MetricsEnabled: true}, nil)
	require.NoError(t, err)
	assert.Empty(t, srv.Addr())

	require.NoError(t, srv.Start())
	require.NoError(t, srv.Start(), "second Start is a no-op")
	addr := srv.Addr()
	require.NotEmpty(t, addr)

	resp, err := http.Get("http://" + addr + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var vars map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(body, &vars))
	assert.Contains(t, vars, "memstats")

	srv.Stop()
	srv.Stop()
	assert.Empty(t, srv.Addr())
}

func TestSystemCollector_Collect(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "segment_1"), make([]byte, 1234), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "x"), make([]byte, 66), 0644))

	sc := NewSystemCollector(dir, time.Hour, nil)
	sc.Collect()
	assert.Equal(t, int64(1300), sc.DataDirBytes())
	assert.NotNil(t, expvar.Get("system"))

	sc.Start()
	sc.Stop()
	sc.Stop()
}

func TestSystemCollector_MissingDataDir(t *testing.T) {
	sc := NewSystemCollector(filepath.Join(t.TempDir(), "not", "yet"), time.Hour, nil)
	sc.Collect()
	assert.Zero(t, sc.DataDirBytes())
}
