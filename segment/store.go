// Package segment manages the immutable sorted files an LSM engine flushes
// to and compacts into. A Store owns one directory: it names, writes, lists,
// loads and removes segment files, and holds an exclusive lock on the
// directory for as long as it is open.
package segment

import (
	"bufio"
	"cmp"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/INLOpen/kvbench/compressors"
	"github.com/INLOpen/kvbench/core"
	"github.com/INLOpen/kvbench/sys"
)

// Options configure a Store. A nil Compressor writes uncompressed
// segments; a nil Clock uses the system clock.
type Options struct {
	Compressor core.Compressor
	Clock      core.Clock
	Logger     *slog.Logger
}

// Store is the on-disk half of an LSM engine.
type Store[K cmp.Ordered, V any] struct {
	dir        string
	compressor core.Compressor
	clock      core.Clock
	logger     *slog.Logger
	lock       *sys.DirLock

	mu         sync.Mutex
	lastIssued int64
	closed     bool
}

// Open creates dir if needed, locks it and scans it for existing segments
// so that new names sort after everything already present.
func Open[K cmp.Ordered, V any](dir string, opts Options) (*Store[K, V], error) {
	if opts.Compressor == nil {
		opts.Compressor = &compressors.NoCompressionCompressor{}
	}
	if opts.Clock == nil {
		opts.Clock = core.SystemClock()
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, core.NewStorageIOError("mkdir", dir, err)
	}
	lock, err := sys.LockDir(dir, core.LockFileName)
	if err != nil {
		return nil, core.NewStorageIOError("lock", filepath.Join(dir, core.LockFileName), err)
	}

	s := &Store[K, V]{
		dir:        dir,
		compressor: opts.Compressor,
		clock:      opts.Clock,
		logger:     opts.Logger.With("component", "SegmentStore", "dir", dir),
		lock:       lock,
	}
	infos, err := s.List()
	if err != nil {
		lock.Release()
		return nil, err
	}
	if len(infos) > 0 {
		s.lastIssued = infos[len(infos)-1].Timestamp
	}
	s.logger.Debug("Segment store opened.", "segments", len(infos), "compression", s.compressor.Type().String())
	return s, nil
}

// Dir returns the directory the store manages.
func (s *Store[K, V]) Dir() string { return s.dir }

// Compression returns the compression applied to newly written segments.
func (s *Store[K, V]) Compression() core.CompressionType { return s.compressor.Type() }

// List enumerates segment files oldest first. Temp files, the lock file and
// any other name outside the segment grammar are skipped.
func (s *Store[K, V]) List() ([]Info, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, core.NewStorageIOError("readdir", s.dir, err)
	}
	infos := make([]Info, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		ts, compacted, ok := ParseName(e.Name())
		if !ok {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, core.NewStorageIOError("stat", filepath.Join(s.dir, e.Name()), err)
		}
		infos = append(infos, Info{
			Name:      e.Name(),
			Path:      filepath.Join(s.dir, e.Name()),
			Timestamp: ts,
			Compacted: compacted,
			Size:      fi.Size(),
		})
	}
	SortAscending(infos)
	return infos, nil
}

// nextTimestamp returns max(now, last+1) in microseconds, so issued names
// are strictly increasing even if the clock stalls or steps backwards.
func (s *Store[K, V]) nextTimestamp() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now().UnixMicro()
	if now <= s.lastIssued {
		now = s.lastIssued + 1
	}
	s.lastIssued = now
	return now
}

// Write persists records, which must be in strictly ascending key order, as
// a new segment. The file is written under a temporary name, synced and then
// renamed, so a failure never leaves a partial file under a segment name.
func (s *Store[K, V]) Write(records []core.Record[K, V], compacted bool) (Info, error) {
	if s.isClosed() {
		return Info{}, core.NewStorageIOError("write", s.dir, os.ErrClosed)
	}
	ts := s.nextTimestamp()
	name := FormatName(ts, compacted)
	finalPath := filepath.Join(s.dir, name)
	tmpPath := finalPath + core.TempFileSuffix

	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return Info{}, core.NewStorageIOError("create", tmpPath, err)
	}
	abort := func() {
		f.Close()
		os.Remove(tmpPath)
	}

	w := bufio.NewWriterSize(f, core.DefaultSegmentBufferSize)
	size, err := encode(w, records, s.compressor, s.clock.Now())
	if err != nil {
		abort()
		var pathErr *os.PathError
		if errors.As(err, &pathErr) {
			return Info{}, core.NewStorageIOError("write", tmpPath, err)
		}
		return Info{}, core.NewCodecError(tmpPath, err)
	}
	if err := w.Flush(); err != nil {
		abort()
		return Info{}, core.NewStorageIOError("write", tmpPath, err)
	}
	if err := f.Sync(); err != nil {
		abort()
		return Info{}, core.NewStorageIOError("sync", tmpPath, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return Info{}, core.NewStorageIOError("close", tmpPath, err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return Info{}, core.NewStorageIOError("rename", finalPath, err)
	}
	syncDir(s.dir)

	info := Info{Name: name, Path: finalPath, Timestamp: ts, Compacted: compacted, Size: size}
	s.logger.Debug("Segment written.", "name", name, "entries", len(records), "bytes", size)
	return info, nil
}

// Load reads and decodes a whole segment. Checksum, header and JSON
// failures are reported as CodecErrors; filesystem failures as
// StorageIOErrors.
func (s *Store[K, V]) Load(info Info) ([]core.Record[K, V], error) {
	_, records, err := s.read(info)
	return records, err
}

// Header reads only the header of a segment.
func (s *Store[K, V]) Header(info Info) (core.FileHeader, error) {
	f, err := os.Open(info.Path)
	if err != nil {
		return core.FileHeader{}, core.NewStorageIOError("open", info.Path, err)
	}
	defer f.Close()
	buf := make([]byte, headerSize+core.ChecksumSize)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return core.FileHeader{}, core.NewStorageIOError("read", info.Path, err)
	}
	header, err := decodeHeader(buf[:n])
	if err != nil {
		return header, core.NewCodecError(info.Path, err)
	}
	return header, nil
}

func (s *Store[K, V]) read(info Info) (core.FileHeader, []core.Record[K, V], error) {
	data, err := os.ReadFile(info.Path)
	if err != nil {
		return core.FileHeader{}, nil, core.NewStorageIOError("read", info.Path, err)
	}
	header, records, err := decode[K, V](data)
	if err != nil {
		return header, nil, core.NewCodecError(info.Path, err)
	}
	return header, records, nil
}

// Remove deletes a segment file. A file that is already gone is not an error.
func (s *Store[K, V]) Remove(info Info) error {
	if err := os.Remove(info.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return core.NewStorageIOError("remove", info.Path, err)
	}
	s.logger.Debug("Segment removed.", "name", info.Name)
	return nil
}

// RemoveAll deletes every segment in the directory and returns how many
// files were removed.
func (s *Store[K, V]) RemoveAll() (int, error) {
	infos, err := s.List()
	if err != nil {
		return 0, err
	}
	for i, info := range infos {
		if err := s.Remove(info); err != nil {
			return i, err
		}
	}
	return len(infos), nil
}

// Close releases the directory lock. It is safe to call more than once.
func (s *Store[K, V]) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.lock.Release(); err != nil {
		return core.NewStorageIOError("unlock", s.lock.Path(), err)
	}
	return nil
}

func (s *Store[K, V]) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// syncDir makes a rename durable. Failure is ignored: not every platform
// supports fsync on a directory handle.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}
