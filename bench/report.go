package bench

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"golang.org/x/term"
)

// Format selects how WriteReport lays out rows.
type Format int

const (
	// FormatTable aligns columns for a human reader.
	FormatTable Format = iota
	// FormatTSV emits one tab-separated row per phase for scripts.
	FormatTSV
)

// FormatFor picks FormatTable when f is a terminal and FormatTSV otherwise.
func FormatFor(f *os.File) Format {
	if f != nil && term.IsTerminal(int(f.Fd())) {
		return FormatTable
	}
	return FormatTSV
}

var reportHeader = []string{"engine", "phase", "ops", "elapsed", "ops/sec", "p50", "p90", "p99", "max", "hits"}

// WriteReport writes one row per phase of every result, followed by a
// per-engine summary line in table mode.
func WriteReport(w io.Writer, results []EngineResult, format Format) error {
	if format == FormatTSV {
		return writeTSV(w, results)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	writeRow(tw, reportHeader)
	for _, res := range results {
		for _, p := range res.Phases {
			writeRow(tw, phaseRow(res.Engine, p, formatDuration))
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	for _, res := range results {
		line := fmt.Sprintf("%s: total %s, rss %s", res.Engine, formatDuration(res.Elapsed), formatBytes(res.RSSBytes))
		if res.LiveKeys > 0 || res.Mismatches > 0 {
			line += fmt.Sprintf(", live keys %d, mismatches %d", res.LiveKeys, res.Mismatches)
		}
		if res.Err != nil {
			line += fmt.Sprintf(", error: %v", res.Err)
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func writeTSV(w io.Writer, results []EngineResult) error {
	nanos := func(d time.Duration) string { return strconv.FormatInt(d.Nanoseconds(), 10) }
	if err := writeRow(w, reportHeader); err != nil {
		return err
	}
	for _, res := range results {
		for _, p := range res.Phases {
			if err := writeRow(w, phaseRow(res.Engine, p, nanos)); err != nil {
				return err
			}
		}
	}
	return nil
}

func phaseRow(engine string, p PhaseResult, dur func(time.Duration) string) []string {
	return []string{
		engine,
		string(p.Phase),
		strconv.Itoa(p.Ops),
		dur(p.Elapsed),
		strconv.FormatFloat(p.Throughput(), 'f', 2, 64),
		dur(p.P50),
		dur(p.P90),
		dur(p.P99),
		dur(p.Max),
		strconv.Itoa(p.Hits),
	}
}

func writeRow(w io.Writer, cols []string) error {
	for i, c := range cols {
		sep := "\t"
		if i == len(cols)-1 {
			sep = "\n"
		}
		if _, err := io.WriteString(w, c+sep); err != nil {
			return err
		}
	}
	return nil
}

func formatDuration(d time.Duration) string {
	switch {
	case d >= time.Second:
		return fmt.Sprintf("%.2fs", d.Seconds())
	case d >= time.Millisecond:
		return fmt.Sprintf("%.2fms", float64(d)/float64(time.Millisecond))
	case d >= time.Microsecond:
		return fmt.Sprintf("%.2fµs", float64(d)/float64(time.Microsecond))
	default:
		return fmt.Sprintf("%dns", d.Nanoseconds())
	}
}

func formatBytes(b uint64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := uint64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}
