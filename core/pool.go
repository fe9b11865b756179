package core

import (
	"bytes"
	"sync"
)

// GenericPool is a generic wrapper around sync.Pool
type GenericPool[T any] struct {
	pool  sync.Pool
	reset func(T)
}

// NewGenericPool creates a new GenericPool. reset, if non-nil, is applied to
// an item when it is returned to the pool.
func NewGenericPool[T any](newItem func() T, reset func(T)) *GenericPool[T] {
	return &GenericPool[T]{
		pool: sync.Pool{
			New: func() interface{} {
				return newItem()
			},
		},
		reset: reset,
	}
}

// Get retrieves an item from the pool.
func (p *GenericPool[T]) Get() T {
	return p.pool.Get().(T)
}

// Put returns an item to the pool.
func (p *GenericPool[T]) Put(item T) {
	if p.reset != nil {
		p.reset(item)
	}
	p.pool.Put(item)
}

// DefaultSegmentBufferSize is the initial capacity of pooled encode buffers.
const DefaultSegmentBufferSize = 32 * 1024

// BufferPool holds scratch buffers for segment encoding and compression.
var BufferPool = NewGenericPool(
	func() *bytes.Buffer { return bytes.NewBuffer(make([]byte, 0, DefaultSegmentBufferSize)) },
	func(b *bytes.Buffer) { b.Reset() },
)
