package compressors

import (
	"bytes"
	"crypto/rand"
	"io"
	"testing"

	"github.com/INLOpen/kvbench/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomBytes(t *testing.T, n int) []byte {
	t.Helper()
	b := make([]byte, n)
	_, err := rand.Read(b)
	require.NoError(t, err)
	return b
}

func decompressAll(t *testing.T, c core.Compressor, data []byte) []byte {
	t.Helper()
	rc, err := c.Decompress(data)
	require.NoError(t, err)
	defer rc.Close()
	out, err := io.ReadAll(rc)
	require.NoError(t, err)
	return out
}

func TestCompressors(t *testing.T) {
	inputs := map[string][]byte{
		"empty":          {},
		"simple string":  []byte("hello world, this is a test of the segment compressor"),
		"repetitive":     bytes.Repeat([]byte(`{"k":1,"t":"P","v":1},`), 512),
		"incompressible": randomBytes(t, 4096),
	}

	for _, ct := range []core.CompressionType{core.CompressionNone, core.CompressionSnappy, core.CompressionLZ4, core.CompressionZSTD} {
		c, err := New(ct)
		require.NoError(t, err)
		require.Equal(t, ct, c.Type())

		for name, data := range inputs {
			t.Run(ct.String()+"/"+name, func(t *testing.T) {
				compressed, err := c.Compress(data)
				require.NoError(t, err)
				assert.Equal(t, data, append([]byte{}, decompressAll(t, c, compressed)...))

				var buf bytes.Buffer
				buf.WriteString("garbage that CompressTo must discard")
				require.NoError(t, c.CompressTo(&buf, data))
				assert.Equal(t, data, append([]byte{}, decompressAll(t, c, buf.Bytes())...))
			})
		}
	}
}

func TestCompressors_RepetitiveDataShrinks(t *testing.T) {
	data := bytes.Repeat([]byte("segment"), 1024)
	for _, ct := range []core.CompressionType{core.CompressionSnappy, core.CompressionLZ4, core.CompressionZSTD} {
		c, err := New(ct)
		require.NoError(t, err)
		compressed, err := c.Compress(data)
		require.NoError(t, err)
		assert.Less(t, len(compressed), len(data), ct.String())
	}
}

func TestCompressors_CorruptInput(t *testing.T) {
	garbage := []byte{0xff, 0xfe, 0xfd, 0xfc, 0x01, 0xaa, 0xbb}
	for _, ct := range []core.CompressionType{core.CompressionSnappy, core.CompressionLZ4, core.CompressionZSTD} {
		c, err := New(ct)
		require.NoError(t, err)
		_, err = c.Decompress(garbage)
		assert.Error(t, err, ct.String())
	}
}

func TestForName(t *testing.T) {
	c, err := ForName("zstd")
	require.NoError(t, err)
	assert.Equal(t, core.CompressionZSTD, c.Type())

	_, err = ForName("gzip")
	assert.Error(t, err)

	_, err = New(core.CompressionType(42))
	assert.Error(t, err)
}
