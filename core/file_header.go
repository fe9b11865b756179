package core

import (
	"encoding/binary"
	"time"
)

// FileHeader is the fixed-size header at the start of every segment file.
type FileHeader struct {
	Magic          uint32
	Version        uint8
	CreatedAt      int64 // UnixNano timestamp
	CompressorType CompressionType
	EntryCount     uint64
}

func (h *FileHeader) Size() int {
	return binary.Size(h)
}

// NewFileHeader creates a header stamped with createdAt.
func NewFileHeader(compressorType CompressionType, entryCount uint64, createdAt time.Time) FileHeader {
	return FileHeader{
		Magic:          SegmentMagicNumber,
		Version:        FormatVersion,
		CreatedAt:      createdAt.UnixNano(),
		CompressorType: compressorType,
		EntryCount:     entryCount,
	}
}
