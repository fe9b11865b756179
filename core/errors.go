package core

import (
	"errors"
	"fmt"
)

var (
	// ErrChecksumMismatch is wrapped by a CodecError when a segment payload
	// does not match its stored CRC32.
	ErrChecksumMismatch = errors.New("segment checksum mismatch")
	// ErrBadMagic is wrapped by a CodecError when a file does not start with
	// the segment magic number.
	ErrBadMagic = errors.New("not a segment file")
)

// StorageIOError reports a failed directory or file operation
// (create, open, read, write, sync, rename, remove, lock).
type StorageIOError struct {
	Op   string // e.g. "create", "open", "remove"
	Path string
	Err  error
}

func (e *StorageIOError) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageIOError) Unwrap() error { return e.Err }

// CodecError reports a segment whose contents could not be encoded or
// decoded. On read it signals corruption and is not retryable.
type CodecError struct {
	Path string
	Err  error
}

func (e *CodecError) Error() string {
	return fmt.Sprintf("segment codec %s: %v", e.Path, e.Err)
}

func (e *CodecError) Unwrap() error { return e.Err }

// NewStorageIOError wraps err unless it is nil.
func NewStorageIOError(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageIOError{Op: op, Path: path, Err: err}
}

// NewCodecError wraps err unless it is nil.
func NewCodecError(path string, err error) error {
	if err == nil {
		return nil
	}
	return &CodecError{Path: path, Err: err}
}

// IsStorageIOError checks if an error is a StorageIOError.
func IsStorageIOError(err error) bool {
	var ioErr *StorageIOError
	return errors.As(err, &ioErr)
}

// IsCodecError checks if an error is a CodecError.
func IsCodecError(err error) bool {
	var codecErr *CodecError
	return errors.As(err, &codecErr)
}
