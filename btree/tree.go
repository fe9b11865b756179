// Package btree implements an in-memory B-tree of minimum degree t.
//
// Every node holds at most 2t-1 keys and full nodes are split on the way
// down during insertion, so the tree only grows at the root.
//
// Deletion replaces a key found in an internal node with its in-order
// predecessor and never merges or borrows from siblings afterwards. After
// repeated deletions non-root nodes may hold fewer than t-1 keys and leaves
// may end up at different depths. Search and insert stay correct; only the
// height bound is lost.
package btree

import (
	"cmp"
	"fmt"
)

// Tree is a B-tree mapping K to V. It is not safe for concurrent use.
type Tree[K cmp.Ordered, V any] struct {
	root   *node[K, V]
	t      int
	length int
	splits int
}

// New returns an empty tree of minimum degree t. It panics if t < 2.
func New[K cmp.Ordered, V any](t int) *Tree[K, V] {
	if t < 2 {
		panic(fmt.Sprintf("btree: minimum degree must be at least 2, got %d", t))
	}
	return &Tree[K, V]{root: newNode[K, V](true), t: t}
}

// Degree returns the minimum degree the tree was built with.
func (tr *Tree[K, V]) Degree() int { return tr.t }

// Len returns the number of keys stored.
func (tr *Tree[K, V]) Len() int { return tr.length }

// Splits returns how many node splits have been performed.
func (tr *Tree[K, V]) Splits() int { return tr.splits }

// Height returns the number of levels on the leftmost root-to-leaf path.
// An empty tree has height 1.
func (tr *Tree[K, V]) Height() int {
	h := 1
	for n := tr.root; !n.leaf; n = n.children[0] {
		h++
	}
	return h
}

func (tr *Tree[K, V]) maxKeys() int { return 2*tr.t - 1 }

// scan returns the index of the first key >= key and whether it is an exact match.
func scan[K cmp.Ordered, V any](n *node[K, V], key K) (int, bool) {
	i := 0
	for i < len(n.keys) && key > n.keys[i] {
		i++
	}
	return i, i < len(n.keys) && key == n.keys[i]
}

// find locates the node and index holding key.
func (tr *Tree[K, V]) find(key K) (*node[K, V], int, bool) {
	n := tr.root
	for {
		i, found := scan(n, key)
		if found {
			return n, i, true
		}
		if n.leaf {
			return nil, 0, false
		}
		n = n.children[i]
	}
}

// Get returns the value stored under key.
func (tr *Tree[K, V]) Get(key K) (V, bool) {
	if n, i, ok := tr.find(key); ok {
		return n.values[i], true
	}
	var zero V
	return zero, false
}

// Put stores value under key. An existing key has its value replaced in
// place without any change to the tree's shape.
func (tr *Tree[K, V]) Put(key K, value V) {
	if n, i, ok := tr.find(key); ok {
		n.values[i] = value
		return
	}

	if len(tr.root.keys) == tr.maxKeys() {
		oldRoot := tr.root
		tr.root = newNode[K, V](false)
		tr.root.children = append(tr.root.children, oldRoot)
		tr.split(tr.root, 0)
	}
	tr.insertNonFull(tr.root, key, value)
	tr.length++
}

// insertNonFull inserts a key known to be absent into the subtree rooted at
// n, which must not be full.
func (tr *Tree[K, V]) insertNonFull(n *node[K, V], key K, value V) {
	for {
		i, _ := scan(n, key)
		if n.leaf {
			n.insertAt(i, key, value)
			return
		}
		if len(n.children[i].keys) == tr.maxKeys() {
			tr.split(n, i)
			if key > n.keys[i] {
				i++
			}
		}
		n = n.children[i]
	}
}

// split divides the full child at index i of parent. The child keeps keys
// 0..t-2, key t-1 moves up into parent at index i, and a new right sibling
// takes keys t..2t-2 (and, for internal nodes, children t..2t-1).
func (tr *Tree[K, V]) split(parent *node[K, V], i int) {
	t := tr.t
	child := parent.children[i]
	right := newNode[K, V](child.leaf)

	right.keys = append(right.keys, child.keys[t:]...)
	right.values = append(right.values, child.values[t:]...)
	if !child.leaf {
		right.children = append(right.children, child.children[t:]...)
		clear(child.children[t:])
		child.children = child.children[:t]
	}

	medianKey, medianValue := child.keys[t-1], child.values[t-1]
	clear(child.keys[t-1:])
	clear(child.values[t-1:])
	child.keys = child.keys[:t-1]
	child.values = child.values[:t-1]

	parent.insertAt(i, medianKey, medianValue)
	parent.insertChildAt(i+1, right)
	tr.splits++
}

// Remove deletes key if present. It reports whether the key was found.
func (tr *Tree[K, V]) Remove(key K) bool {
	n := tr.root
	for {
		i, found := scan(n, key)
		if !found {
			if n.leaf {
				return false
			}
			n = n.children[i]
			continue
		}

		if n.leaf {
			n.removeAt(i)
		} else if k, v, ok := removeMax(n.children[i]); ok {
			n.keys[i], n.values[i] = k, v
		} else {
			// The left subtree holds no keys at all; drop it together with
			// the separator so n still owns len(keys)+1 children.
			n.removeAt(i)
			n.removeChildAt(i)
		}
		tr.length--
		return true
	}
}

// removeMax removes and returns the largest entry of the subtree rooted at n
// by following the right-most path to a leaf. ok is false only when the
// subtree holds no keys.
func removeMax[K cmp.Ordered, V any](n *node[K, V]) (K, V, bool) {
	if n.leaf {
		if len(n.keys) == 0 {
			var zeroK K
			var zeroV V
			return zeroK, zeroV, false
		}
		last := len(n.keys) - 1
		k, v := n.keys[last], n.values[last]
		n.removeAt(last)
		return k, v, true
	}

	if k, v, ok := removeMax(n.children[len(n.children)-1]); ok {
		return k, v, true
	}
	// Right-most leaf was emptied by earlier deletions. The subtree maximum
	// is then this node's last key; its (empty) right child goes with it.
	if len(n.keys) == 0 {
		var zeroK K
		var zeroV V
		return zeroK, zeroV, false
	}
	last := len(n.keys) - 1
	k, v := n.keys[last], n.values[last]
	n.removeAt(last)
	n.removeChildAt(last + 1)
	return k, v, true
}

// Ascend calls fn for every entry in ascending key order until fn returns false.
func (tr *Tree[K, V]) Ascend(fn func(key K, value V) bool) {
	ascend(tr.root, fn)
}

func ascend[K cmp.Ordered, V any](n *node[K, V], fn func(K, V) bool) bool {
	for i := range n.keys {
		if !n.leaf && !ascend(n.children[i], fn) {
			return false
		}
		if !fn(n.keys[i], n.values[i]) {
			return false
		}
	}
	if !n.leaf {
		return ascend(n.children[len(n.children)-1], fn)
	}
	return true
}
