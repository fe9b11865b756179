package server

import (
	"expvar"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

var (
	systemVarsOnce sync.Once
	systemVars     *expvar.Map
)

// systemMap returns the shared "system" expvar map. expvar names are
// process-global, so every collector publishes into the same map.
func systemMap() *expvar.Map {
	systemVarsOnce.Do(func() {
		systemVars = expvar.NewMap("system")
	})
	return systemVars
}

// SystemCollector periodically samples host CPU and memory, this process's
// resident memory, and the usage of the disk holding the data directory,
// and publishes them under the "system" expvar map.
type SystemCollector struct {
	cpuUsagePercent *expvar.Float
	memUsagePercent *expvar.Float
	diskUsage       *expvar.Float
	processRSS      *expvar.Int
	dataDirBytes    *expvar.Int

	dataDir  string
	interval time.Duration
	proc     *process.Process
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	logger   *slog.Logger
}

// NewSystemCollector creates a new collector. dataDir is the directory
// whose disk and footprint are reported; it need not exist yet.
func NewSystemCollector(dataDir string, interval time.Duration, logger *slog.Logger) *SystemCollector {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	m := systemMap()
	sc := &SystemCollector{
		cpuUsagePercent: new(expvar.Float),
		memUsagePercent: new(expvar.Float),
		diskUsage:       new(expvar.Float),
		processRSS:      new(expvar.Int),
		dataDirBytes:    new(expvar.Int),
		dataDir:         dataDir,
		interval:        interval,
		stopChan:        make(chan struct{}),
		logger:          logger.With("component", "SystemCollector"),
	}
	m.Set("cpu_usage_percent", sc.cpuUsagePercent)
	m.Set("mem_usage_percent", sc.memUsagePercent)
	m.Set("disk_usage_percent", sc.diskUsage)
	m.Set("process_rss_bytes", sc.processRSS)
	m.Set("data_dir_bytes", sc.dataDirBytes)
	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		sc.proc = p
	}
	return sc
}

// Start begins the background collection loop.
func (sc *SystemCollector) Start() {
	sc.logger.Info("Starting system metrics collector", "interval", sc.interval)
	sc.wg.Add(1)
	go sc.collectLoop()
}

// Stop signals the collection loop to terminate and waits for it to finish.
func (sc *SystemCollector) Stop() {
	sc.stopOnce.Do(func() {
		sc.logger.Info("Stopping system metrics collector")
		close(sc.stopChan)
	})
	sc.wg.Wait()
}

func (sc *SystemCollector) collectLoop() {
	defer sc.wg.Done()
	ticker := time.NewTicker(sc.interval)
	defer ticker.Stop()

	sc.Collect()
	for {
		select {
		case <-ticker.C:
			sc.Collect()
		case <-sc.stopChan:
			return
		}
	}
}

// Collect takes one sample. Sources that fail are skipped and keep their
// previous value.
func (sc *SystemCollector) Collect() {
	// Interval 0 compares against the previous call instead of sleeping.
	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		sc.cpuUsagePercent.Set(pct[0])
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		sc.memUsagePercent.Set(vm.UsedPercent)
	}
	if sc.proc != nil {
		if info, err := sc.proc.MemoryInfo(); err == nil && info != nil {
			sc.processRSS.Set(int64(info.RSS))
		}
	}
	if du, err := disk.Usage(existingAncestor(sc.dataDir)); err == nil {
		sc.diskUsage.Set(du.UsedPercent)
	}
	sc.dataDirBytes.Set(dirSize(sc.dataDir))
}

// ProcessRSS returns the last sampled resident set size.
func (sc *SystemCollector) ProcessRSS() int64 { return sc.processRSS.Value() }

// DataDirBytes returns the last sampled data directory footprint.
func (sc *SystemCollector) DataDirBytes() int64 { return sc.dataDirBytes.Value() }

func existingAncestor(path string) string {
	p, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	for {
		if _, err := os.Stat(p); err == nil {
			return p
		}
		parent := filepath.Dir(p)
		if parent == p {
			return p
		}
		p = parent
	}
}

func dirSize(dir string) int64 {
	var total int64
	_ = filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.Type().IsRegular() {
			if info, err := d.Info(); err == nil {
				total += info.Size()
			}
		}
		return nil
	})
	return total
}
