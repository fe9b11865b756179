package segment

import (
	"bytes"
	"cmp"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"io"
	"time"

	"github.com/INLOpen/kvbench/compressors"
	"github.com/INLOpen/kvbench/core"
)

// Layout of a segment file:
//
//	+-----------------+----------------------------+--------------+
//	| core.FileHeader | compressed JSON record list | CRC32 (IEEE) |
//	+-----------------+----------------------------+--------------+
//
// The checksum covers the compressed payload. Records are written in
// strictly ascending key order.

var headerSize = binary.Size(core.FileHeader{})

// encode writes records to w and returns the number of bytes written.
func encode[K cmp.Ordered, V any](w io.Writer, records []core.Record[K, V], compressor core.Compressor, createdAt time.Time) (int64, error) {
	raw := core.BufferPool.Get()
	defer core.BufferPool.Put(raw)
	if err := json.NewEncoder(raw).Encode(records); err != nil {
		return 0, fmt.Errorf("encode records: %w", err)
	}

	payload := core.BufferPool.Get()
	defer core.BufferPool.Put(payload)
	if err := compressor.CompressTo(payload, raw.Bytes()); err != nil {
		return 0, fmt.Errorf("compress payload with %s: %w", compressor.Type(), err)
	}

	header := core.NewFileHeader(compressor.Type(), uint64(len(records)), createdAt)
	if err := binary.Write(w, binary.LittleEndian, &header); err != nil {
		return 0, err
	}
	if _, err := w.Write(payload.Bytes()); err != nil {
		return 0, err
	}
	if err := binary.Write(w, binary.LittleEndian, crc32.ChecksumIEEE(payload.Bytes())); err != nil {
		return 0, err
	}
	return int64(headerSize + payload.Len() + core.ChecksumSize), nil
}

// decodeHeader parses and validates the fixed header at the start of data.
func decodeHeader(data []byte) (core.FileHeader, error) {
	var header core.FileHeader
	if len(data) < headerSize+core.ChecksumSize {
		return header, fmt.Errorf("file is %d bytes, shorter than header and footer: %w", len(data), core.ErrBadMagic)
	}
	if err := binary.Read(bytes.NewReader(data[:headerSize]), binary.LittleEndian, &header); err != nil {
		return header, fmt.Errorf("read header: %w", err)
	}
	if header.Magic != core.SegmentMagicNumber {
		return header, fmt.Errorf("magic %#x: %w", header.Magic, core.ErrBadMagic)
	}
	if header.Version != core.FormatVersion {
		return header, fmt.Errorf("unsupported format version %d", header.Version)
	}
	return header, nil
}

// decode verifies and decodes a complete segment file image.
func decode[K cmp.Ordered, V any](data []byte) (core.FileHeader, []core.Record[K, V], error) {
	header, err := decodeHeader(data)
	if err != nil {
		return header, nil, err
	}

	payload := data[headerSize : len(data)-core.ChecksumSize]
	stored := binary.LittleEndian.Uint32(data[len(data)-core.ChecksumSize:])
	if actual := crc32.ChecksumIEEE(payload); actual != stored {
		return header, nil, fmt.Errorf("stored %#08x, computed %#08x: %w", stored, actual, core.ErrChecksumMismatch)
	}

	compressor, err := compressors.New(header.CompressorType)
	if err != nil {
		return header, nil, err
	}
	rc, err := compressor.Decompress(payload)
	if err != nil {
		return header, nil, err
	}
	defer rc.Close()

	var records []core.Record[K, V]
	if err := json.NewDecoder(rc).Decode(&records); err != nil {
		return header, nil, fmt.Errorf("decode records: %w", err)
	}
	if uint64(len(records)) != header.EntryCount {
		return header, nil, fmt.Errorf("header declares %d entries, payload holds %d", header.EntryCount, len(records))
	}
	for i := 1; i < len(records); i++ {
		if cmp.Compare(records[i-1].Key, records[i].Key) >= 0 {
			return header, nil, fmt.Errorf("records out of order at index %d", i)
		}
	}
	return header, records, nil
}
