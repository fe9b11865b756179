// Command segment-util inspects and maintains an LSM segment directory.
//
//	segment-util list <dir>
//	segment-util dump <dir> <segment-name>
//	segment-util compact [-compression snappy] <dir>
//
// Keys and values are read as uint64, matching what kvbench writes.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/INLOpen/kvbench/compressors"
	"github.com/INLOpen/kvbench/lsm"
	"github.com/INLOpen/kvbench/segment"
)

var errUsage = errors.New("usage: segment-util list <dir> | dump <dir> <name> | compact [-compression c] <dir>")

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	if err := run(os.Args[1:], os.Stdout, logger); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(args []string, out io.Writer, logger *slog.Logger) error {
	if len(args) == 0 {
		return errUsage
	}
	switch args[0] {
	case "list":
		if len(args) != 2 {
			return errUsage
		}
		return listSegments(args[1], out, logger)
	case "dump":
		if len(args) != 3 {
			return errUsage
		}
		return dumpSegment(args[1], args[2], out, logger)
	case "compact":
		fs := flag.NewFlagSet("compact", flag.ContinueOnError)
		fs.SetOutput(io.Discard)
		compression := fs.String("compression", "snappy", "compression for the compacted segment")
		if err := fs.Parse(args[1:]); err != nil || fs.NArg() != 1 {
			return errUsage
		}
		return compactDir(fs.Arg(0), *compression, out, logger)
	default:
		return errUsage
	}
}

func openStore(dir string, logger *slog.Logger) (*segment.Store[uint64, uint64], error) {
	if fi, err := os.Stat(dir); err != nil {
		return nil, err
	} else if !fi.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}
	return segment.Open[uint64, uint64](dir, segment.Options{Logger: logger})
}

func listSegments(dir string, out io.Writer, logger *slog.Logger) error {
	store, err := openStore(dir, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	infos, err := store.List()
	if err != nil {
		return err
	}
	if len(infos) == 0 {
		fmt.Fprintln(out, "No segments found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "NAME\tCREATED AT\tCOMPACTED\tSIZE (B)\tENTRIES\tCOMPRESSION")
	fmt.Fprintln(w, "----\t----------\t---------\t--------\t-------\t-----------")
	for _, info := range infos {
		entries, compression := "?", "?"
		if h, err := store.Header(info); err == nil {
			entries = fmt.Sprint(h.EntryCount)
			compression = h.CompressorType.String()
		} else {
			logger.Warn("Unreadable segment header", "segment", info.Name, "error", err)
		}
		fmt.Fprintf(w, "%s\t%s\t%t\t%d\t%s\t%s\n",
			info.Name,
			time.UnixMicro(info.Timestamp).UTC().Format("2006-01-02 15:04:05.000000 MST"),
			info.Compacted,
			info.Size,
			entries,
			compression,
		)
	}
	return w.Flush()
}

func dumpSegment(dir, name string, out io.Writer, logger *slog.Logger) error {
	store, err := openStore(dir, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	infos, err := store.List()
	if err != nil {
		return err
	}
	for _, info := range infos {
		if info.Name != name {
			continue
		}
		records, err := store.Load(info)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "KEY\tTYPE\tVALUE")
		for _, r := range records {
			value := "-"
			if v, ok := r.Entry.Resolve(); ok {
				value = fmt.Sprint(v)
			}
			fmt.Fprintf(w, "%d\t%s\t%s\n", r.Key, r.Entry.Type, value)
		}
		return w.Flush()
	}
	return fmt.Errorf("segment %q not found in %s", name, dir)
}

func compactDir(dir, compression string, out io.Writer, logger *slog.Logger) error {
	if _, err := os.Stat(dir); err != nil {
		return err
	}
	compressor, err := compressors.ForName(compression)
	if err != nil {
		return err
	}
	engine, err := lsm.Open[uint64, uint64](lsm.Options{Dir: dir, Compressor: compressor, Logger: logger})
	if err != nil {
		return err
	}
	defer engine.Close()

	before := engine.Stats().Segments
	if err := engine.Compact(); err != nil {
		return err
	}
	st := engine.Stats()
	fmt.Fprintf(out, "Compacted %d segment(s) into %d, %d bytes written.\n", before, st.Segments, st.BytesWritten)
	return nil
}
