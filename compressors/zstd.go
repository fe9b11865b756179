package compressors

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/INLOpen/kvbench/core"
	"github.com/klauspost/compress/zstd"
)

// ZstdCompressor implements the Compressor interface using Zstandard.
// The encoder and decoder are created lazily and shared; EncodeAll and
// DecodeAll are safe for concurrent use.
type ZstdCompressor struct {
	once    sync.Once
	initErr error
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

var _ core.Compressor = (*ZstdCompressor)(nil)

// maxZstdDecodedSize bounds the memory a single segment payload may expand to.
const maxZstdDecodedSize = 256 << 20

func NewZstdCompressor() *ZstdCompressor {
	return &ZstdCompressor{}
}

func (c *ZstdCompressor) init() error {
	c.once.Do(func() {
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			c.initErr = fmt.Errorf("zstd encoder init error: %w", err)
			return
		}
		dec, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxZstdDecodedSize))
		if err != nil {
			c.initErr = fmt.Errorf("zstd decoder init error: %w", err)
			return
		}
		c.encoder, c.decoder = enc, dec
	})
	return c.initErr
}

func (c *ZstdCompressor) Compress(data []byte) ([]byte, error) {
	if err := c.init(); err != nil {
		return nil, err
	}
	return c.encoder.EncodeAll(data, nil), nil
}

func (c *ZstdCompressor) CompressTo(dst *bytes.Buffer, src []byte) error {
	if err := c.init(); err != nil {
		return err
	}
	dst.Reset()
	_, err := dst.Write(c.encoder.EncodeAll(src, nil))
	return err
}

func (c *ZstdCompressor) Decompress(data []byte) (io.ReadCloser, error) {
	if err := c.init(); err != nil {
		return nil, err
	}
	out, err := c.decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decompress error: %w", err)
	}
	return io.NopCloser(bytes.NewReader(out)), nil
}

func (c *ZstdCompressor) Type() core.CompressionType {
	return core.CompressionZSTD
}
