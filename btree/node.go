package btree

// node is a single B-tree node. keys and values are index-aligned; an
// internal node with k keys owns exactly k+1 children. A node belongs to
// exactly one parent (or to the tree, for the root).
type node[K any, V any] struct {
	keys     []K
	values   []V
	children []*node[K, V]
	leaf     bool
}

func newNode[K any, V any](leaf bool) *node[K, V] {
	return &node[K, V]{leaf: leaf}
}

// insertAt places key/value at index i, shifting later entries right.
func (n *node[K, V]) insertAt(i int, key K, value V) {
	n.keys = append(n.keys, key)
	n.values = append(n.values, value)
	copy(n.keys[i+1:], n.keys[i:])
	copy(n.values[i+1:], n.values[i:])
	n.keys[i] = key
	n.values[i] = value
}

// removeAt deletes the entry at index i from both sequences.
func (n *node[K, V]) removeAt(i int) {
	var zeroK K
	var zeroV V
	last := len(n.keys) - 1
	copy(n.keys[i:], n.keys[i+1:])
	copy(n.values[i:], n.values[i+1:])
	n.keys[last] = zeroK
	n.values[last] = zeroV
	n.keys = n.keys[:last]
	n.values = n.values[:last]
}

// insertChildAt places child at index i, shifting later children right.
func (n *node[K, V]) insertChildAt(i int, child *node[K, V]) {
	n.children = append(n.children, nil)
	copy(n.children[i+1:], n.children[i:])
	n.children[i] = child
}

// removeChildAt detaches the child at index i.
func (n *node[K, V]) removeChildAt(i int) {
	last := len(n.children) - 1
	copy(n.children[i:], n.children[i+1:])
	n.children[last] = nil
	n.children = n.children[:last]
}
