package segment

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/INLOpen/kvbench/core"
)

// Info describes one segment file in a store directory.
type Info struct {
	Name      string
	Path      string
	Timestamp int64 // creation time in Unix microseconds, taken from the name
	Compacted bool
	Size      int64
}

// FormatName builds segment_<micros> or segment_<micros>_compacted.
func FormatName(timestamp int64, compacted bool) string {
	name := fmt.Sprintf("%s%d", core.SegmentFilePrefix, timestamp)
	if compacted {
		name += core.CompactedSuffix
	}
	return name
}

// ParseName extracts the timestamp and compaction flag from a segment file
// name. Names outside the segment grammar (temp files, the lock file,
// anything else) report ok=false.
func ParseName(name string) (timestamp int64, compacted bool, ok bool) {
	rest, found := strings.CutPrefix(name, core.SegmentFilePrefix)
	if !found {
		return 0, false, false
	}
	if trimmed, isCompacted := strings.CutSuffix(rest, core.CompactedSuffix); isCompacted {
		rest, compacted = trimmed, true
	}
	if rest == "" || strings.TrimLeft(rest, "0123456789") != "" {
		return 0, false, false
	}
	ts, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return 0, false, false
	}
	return ts, compacted, true
}

// compareInfo orders segments chronologically by embedded timestamp, with
// the name as a deterministic tiebreak.
func compareInfo(a, b Info) int {
	if c := cmp.Compare(a.Timestamp, b.Timestamp); c != 0 {
		return c
	}
	return strings.Compare(a.Name, b.Name)
}

// SortAscending orders infos oldest first.
func SortAscending(infos []Info) {
	slices.SortFunc(infos, compareInfo)
}

// SortDescending orders infos newest first.
func SortDescending(infos []Info) {
	slices.SortFunc(infos, func(a, b Info) int { return compareInfo(b, a) })
}

// String implements fmt.Stringer for log output.
func (i Info) String() string {
	return fmt.Sprintf("%s(%d bytes)", i.Name, i.Size)
}
