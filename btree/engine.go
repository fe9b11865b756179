package btree

import (
	"github.com/INLOpen/kvbench/core"
)

// EngineName is the label the tree reports to a workload driver.
const EngineName = "B-Tree"

var (
	_ core.Engine[uint64, uint64] = (*Tree[uint64, uint64])(nil)
	_ core.Resetter               = (*Tree[uint64, uint64])(nil)
)

// Insert implements core.Engine. It never fails.
func (tr *Tree[K, V]) Insert(key K, value V) error {
	tr.Put(key, value)
	return nil
}

// Search implements core.Engine. It never fails.
func (tr *Tree[K, V]) Search(key K) (V, bool, error) {
	v, ok := tr.Get(key)
	return v, ok, nil
}

// Delete implements core.Engine. Deleting an absent key is a no-op.
func (tr *Tree[K, V]) Delete(key K) error {
	tr.Remove(key)
	return nil
}

// Name implements core.Engine.
func (tr *Tree[K, V]) Name() string { return EngineName }

// Reset drops every key, leaving an empty leaf root of the same degree.
func (tr *Tree[K, V]) Reset() error {
	tr.root = newNode[K, V](true)
	tr.length = 0
	tr.splits = 0
	return nil
}
