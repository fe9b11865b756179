package btree

import (
	"cmp"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

// checkStructure verifies ordering, key-count upper bounds and the
// keys/children shape of every node. strictOccupancy additionally checks the
// t-1 lower bound and equal leaf depth, which only hold before any deletion.
func checkStructure[K cmp.Ordered, V any](t *testing.T, tr *Tree[K, V], strictOccupancy bool) {
	t.Helper()
	leafDepth := -1
	var walk func(n *node[K, V], depth int, lo, hi *K) error
	walk = func(n *node[K, V], depth int, lo, hi *K) error {
		if len(n.keys) != len(n.values) {
			return fmt.Errorf("keys/values misaligned: %d vs %d", len(n.keys), len(n.values))
		}
		if len(n.keys) > tr.maxKeys() {
			return fmt.Errorf("node holds %d keys, max is %d", len(n.keys), tr.maxKeys())
		}
		if strictOccupancy && n != tr.root && len(n.keys) < tr.t-1 {
			return fmt.Errorf("non-root node holds %d keys, min is %d", len(n.keys), tr.t-1)
		}
		for i, k := range n.keys {
			if i > 0 && !(n.keys[i-1] < k) {
				return fmt.Errorf("keys not strictly ascending: %v then %v", n.keys[i-1], k)
			}
			if lo != nil && !(*lo < k) {
				return fmt.Errorf("key %v not greater than parent separator %v", k, *lo)
			}
			if hi != nil && !(k < *hi) {
				return fmt.Errorf("key %v not less than parent separator %v", k, *hi)
			}
		}
		if n.leaf {
			if len(n.children) != 0 {
				return fmt.Errorf("leaf has %d children", len(n.children))
			}
			if strictOccupancy {
				if leafDepth == -1 {
					leafDepth = depth
				} else if leafDepth != depth {
					return fmt.Errorf("leaves at depths %d and %d", leafDepth, depth)
				}
			}
			return nil
		}
		if len(n.children) != len(n.keys)+1 {
			return fmt.Errorf("internal node with %d keys has %d children", len(n.keys), len(n.children))
		}
		for i, c := range n.children {
			childLo, childHi := lo, hi
			if i > 0 {
				childLo = &n.keys[i-1]
			}
			if i < len(n.keys) {
				childHi = &n.keys[i]
			}
			if err := walk(c, depth+1, childLo, childHi); err != nil {
				return err
			}
		}
		return nil
	}
	require.NoError(t, walk(tr.root, 1, nil, nil))
}

func keysOf[K cmp.Ordered, V any](tr *Tree[K, V]) []K {
	var out []K
	tr.Ascend(func(k K, _ V) bool {
		out = append(out, k)
		return true
	})
	return out
}
