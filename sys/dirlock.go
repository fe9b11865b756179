package sys

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// ErrLocked is returned when another holder already owns a directory lock.
var ErrLocked = errors.New("directory is locked by another process")

// DirLock is an exclusive advisory lock on a file inside a directory. It
// guards a directory against being opened by two owners at once; it does
// nothing to serialize callers within the owning process.
type DirLock struct {
	path string
	file *os.File
}

// LockDir acquires the lock file name inside dir without blocking. The holder's
// pid is written into the file for diagnostics.
func LockDir(dir, name string) (*DirLock, error) {
	path := filepath.Join(dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, err
	}
	if err := lockFile(f); err != nil {
		f.Close()
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}
	if err := f.Truncate(0); err == nil {
		_, _ = f.WriteAt([]byte(strconv.Itoa(os.Getpid())+"\n"), 0)
	}
	return &DirLock{path: path, file: f}, nil
}

// Path returns the lock file path.
func (l *DirLock) Path() string { return l.path }

// Release unlocks and closes the lock file. The file itself is left in
// place; removing it would let a concurrent LockDir lock a different inode.
func (l *DirLock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	unlockErr := unlockFile(l.file)
	closeErr := l.file.Close()
	l.file = nil
	return errors.Join(unlockErr, closeErr)
}
