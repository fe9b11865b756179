package bench

import (
	"os"

	"github.com/shirou/gopsutil/v3/process"
)

// residentSetSize returns the resident memory of this process, or 0 when
// the platform does not report it.
func residentSetSize() uint64 {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return 0
	}
	info, err := p.MemoryInfo()
	if err != nil || info == nil {
		return 0
	}
	return info.RSS
}
