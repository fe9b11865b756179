package compressors

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/INLOpen/kvbench/core"
	lz4 "github.com/pierrec/lz4/v4"
)

// LZ4Compressor implements the Compressor interface using LZ4 blocks.
//
// The LZ4 block format does not record the uncompressed length, so every
// payload starts with a 5 byte prefix: the uncompressed length as a
// little-endian uint32 and a mode byte. Input that LZ4 cannot shrink is
// stored raw.
type LZ4Compressor struct{}

var _ core.Compressor = (*LZ4Compressor)(nil)

const (
	lz4PrefixSize = 5
	lz4ModeRaw    = 0
	lz4ModeBlock  = 1

	// maxLZ4DecodedSize bounds the allocation made for a single payload.
	maxLZ4DecodedSize = 256 << 20
)

func NewLz4Compressor() *LZ4Compressor {
	return &LZ4Compressor{}
}

func (c *LZ4Compressor) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := c.CompressTo(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c *LZ4Compressor) CompressTo(dst *bytes.Buffer, src []byte) error {
	dst.Reset()
	out := make([]byte, lz4PrefixSize+lz4.CompressBlockBound(len(src)))
	binary.LittleEndian.PutUint32(out[:4], uint32(len(src)))

	n, err := lz4.CompressBlock(src, out[lz4PrefixSize:], nil)
	if err != nil {
		return fmt.Errorf("lz4 compress error: %w", err)
	}
	if n == 0 || n >= len(src) {
		out[4] = lz4ModeRaw
		dst.Write(out[:lz4PrefixSize])
		_, err = dst.Write(src)
		return err
	}
	out[4] = lz4ModeBlock
	_, err = dst.Write(out[:lz4PrefixSize+n])
	return err
}

func (c *LZ4Compressor) Decompress(data []byte) (io.ReadCloser, error) {
	if len(data) < lz4PrefixSize {
		return nil, fmt.Errorf("lz4 payload too short: %d bytes", len(data))
	}
	size := binary.LittleEndian.Uint32(data[:4])
	if size > maxLZ4DecodedSize {
		return nil, fmt.Errorf("lz4 payload claims %d bytes, limit is %d", size, maxLZ4DecodedSize)
	}
	body := data[lz4PrefixSize:]

	switch data[4] {
	case lz4ModeRaw:
		if uint32(len(body)) != size {
			return nil, fmt.Errorf("lz4 raw payload is %d bytes, header says %d", len(body), size)
		}
		return io.NopCloser(bytes.NewReader(body)), nil
	case lz4ModeBlock:
		out := make([]byte, size)
		n, err := lz4.UncompressBlock(body, out)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress error: %w", err)
		}
		if uint32(n) != size {
			return nil, fmt.Errorf("lz4 decompressed %d bytes, header says %d", n, size)
		}
		return io.NopCloser(bytes.NewReader(out)), nil
	default:
		return nil, fmt.Errorf("lz4 payload has unknown mode %d", data[4])
	}
}

func (c *LZ4Compressor) Type() core.CompressionType {
	return core.CompressionLZ4
}
