// Package compressors provides the payload compressors a segment may be
// written with. The compression type is recorded in each segment header, so
// a store can read segments written under a different configuration.
package compressors

import (
	"fmt"

	"github.com/INLOpen/kvbench/core"
)

// New returns a compressor for the given type.
func New(ct core.CompressionType) (core.Compressor, error) {
	switch ct {
	case core.CompressionNone:
		return &NoCompressionCompressor{}, nil
	case core.CompressionSnappy:
		return NewSnappyCompressor(), nil
	case core.CompressionLZ4:
		return NewLz4Compressor(), nil
	case core.CompressionZSTD:
		return NewZstdCompressor(), nil
	default:
		return nil, fmt.Errorf("unsupported compression type %d", ct)
	}
}

// ForName resolves a configuration name such as "snappy" to a compressor.
func ForName(name string) (core.Compressor, error) {
	ct, err := core.ParseCompressionType(name)
	if err != nil {
		return nil, err
	}
	return New(ct)
}
