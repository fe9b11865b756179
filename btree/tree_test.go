package btree

import (
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/INLOpen/kvbench/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RejectsSmallDegree(t *testing.T) {
	assert.Panics(t, func() { New[int, int](1) })
	assert.Panics(t, func() { New[int, int](0) })
	assert.NotPanics(t, func() { New[int, int](2) })
}

func TestTree_DegreeTwoAscending(t *testing.T) {
	tr := New[int, string](2)
	for k := 1; k <= 5; k++ {
		tr.Put(k, string(rune('a'+k-1)))
	}

	assert.GreaterOrEqual(t, tr.Splits(), 1)
	for k := 1; k <= 5; k++ {
		v, ok := tr.Get(k)
		require.True(t, ok, "key %d", k)
		assert.Equal(t, string(rune('a'+k-1)), v)
	}
	assert.Equal(t, []int{1, 2, 3, 4, 5}, keysOf(tr))
	assert.Equal(t, 5, tr.Len())
	checkStructure(t, tr, true)
}

func TestTree_SplitGrowsHeightByOne(t *testing.T) {
	for degree := 2; degree <= 8; degree++ {
		tr := New[int, int](degree)
		full := 2*degree - 1
		for k := 0; k < full; k++ {
			tr.Put(k, k)
		}
		require.Equal(t, 0, tr.Splits(), "degree %d: a root below capacity must not split", degree)
		require.Equal(t, 1, tr.Height())

		tr.Put(full, full)
		assert.Equal(t, 1, tr.Splits(), "degree %d", degree)
		assert.Equal(t, 2, tr.Height(), "degree %d", degree)
		assert.Len(t, tr.root.keys, 1)
		assert.Equal(t, degree-1, tr.root.keys[0], "median of the old root is promoted")
		checkStructure(t, tr, true)
	}
}

func TestTree_SplitPartitionsChildren(t *testing.T) {
	tr := New[int, int](2)
	// Build a tree whose root is full and internal, then force a root split.
	for k := 1; k <= 9; k++ {
		tr.Put(k, k*10)
	}
	checkStructure(t, tr, true)
	height := tr.Height()

	for k := 10; k <= 40; k++ {
		tr.Put(k, k*10)
		checkStructure(t, tr, true)
	}
	assert.Greater(t, tr.Height(), height)
	for k := 1; k <= 40; k++ {
		v, ok := tr.Get(k)
		require.True(t, ok)
		assert.Equal(t, k*10, v)
	}
}

func TestTree_UpdateDoesNotRestructure(t *testing.T) {
	tr := New[int, int](2)
	for k := 1; k <= 3; k++ {
		tr.Put(k, k)
	}
	require.Len(t, tr.root.keys, 3, "root is full")

	tr.Put(2, 200)
	assert.Equal(t, 0, tr.Splits(), "overwriting an existing key must not split a full root")
	assert.Equal(t, 3, tr.Len())
	v, ok := tr.Get(2)
	require.True(t, ok)
	assert.Equal(t, 200, v)
}

func TestTree_LastWriteWins_RandomOrder(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for _, degree := range []int{2, 3, 4, 16, 64} {
		tr := New[uint64, uint64](degree)
		want := map[uint64]uint64{}
		for i := 0; i < 5000; i++ {
			k := rng.Uint64N(1000)
			v := rng.Uint64()
			tr.Put(k, v)
			want[k] = v
		}
		checkStructure(t, tr, true)
		assert.Equal(t, len(want), tr.Len())
		for k, v := range want {
			got, ok := tr.Get(k)
			require.True(t, ok)
			require.Equal(t, v, got)
		}

		keys := keysOf(tr)
		assert.True(t, slices.IsSorted(keys))
		assert.Len(t, slices.Compact(slices.Clone(keys)), len(keys), "in-order traversal must be strictly ascending")
	}
}

func TestTree_Search_Absent(t *testing.T) {
	tr := New[int, int](3)
	_, ok := tr.Get(42)
	assert.False(t, ok)

	for k := 0; k < 100; k += 2 {
		tr.Put(k, k)
	}
	for k := 1; k < 100; k += 2 {
		_, ok := tr.Get(k)
		assert.False(t, ok, "odd key %d was never inserted", k)
	}
}

func TestTree_DeleteFromLeaf(t *testing.T) {
	tr := New[int, int](3)
	for k := 1; k <= 20; k++ {
		tr.Put(k, k)
	}
	// Pick a key that currently lives in a leaf.
	leaf := tr.root
	for !leaf.leaf {
		leaf = leaf.children[0]
	}
	victim := leaf.keys[0]

	assert.True(t, tr.Remove(victim))
	_, ok := tr.Get(victim)
	assert.False(t, ok)
	for k := 1; k <= 20; k++ {
		if k == victim {
			continue
		}
		v, ok := tr.Get(k)
		require.True(t, ok, "key %d", k)
		assert.Equal(t, k, v)
	}
	assert.Equal(t, 19, tr.Len())
	checkStructure(t, tr, false)
}

func TestTree_DeleteFromInternalUsesPredecessor(t *testing.T) {
	tr := New[int, int](2)
	for k := 1; k <= 10; k++ {
		tr.Put(k, k*100)
	}
	require.False(t, tr.root.leaf)
	sep := tr.root.keys[0]

	// Predecessor is the largest key of the left subtree.
	var pred int
	for _, k := range keysOf(tr) {
		if k < sep {
			pred = k
		}
	}

	require.True(t, tr.Remove(sep))
	assert.Equal(t, pred, tr.root.keys[0], "separator replaced by in-order predecessor")
	assert.Equal(t, pred*100, tr.root.values[0])
	_, ok := tr.Get(sep)
	assert.False(t, ok)
	checkStructure(t, tr, false)
}

func TestTree_DeleteAbsentIsNoop(t *testing.T) {
	tr := New[int, int](2)
	for k := 0; k < 10; k++ {
		tr.Put(k, k)
	}
	before := keysOf(tr)
	assert.False(t, tr.Remove(100))
	assert.False(t, tr.Remove(-1))
	assert.Equal(t, before, keysOf(tr))
	assert.Equal(t, 10, tr.Len())

	empty := New[int, int](2)
	assert.False(t, empty.Remove(1))
}

func TestTree_DeleteEverything(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 7))
	for _, degree := range []int{2, 3, 5} {
		tr := New[int, int](degree)
		keys := rng.Perm(500)
		for _, k := range keys {
			tr.Put(k, k)
		}
		rng.Shuffle(len(keys), func(i, j int) { keys[i], keys[j] = keys[j], keys[i] })

		for n, k := range keys {
			require.True(t, tr.Remove(k), "degree %d key %d", degree, k)
			_, ok := tr.Get(k)
			require.False(t, ok)
			if n%50 == 0 {
				checkStructure(t, tr, false)
			}
		}
		assert.Equal(t, 0, tr.Len())
		assert.Empty(t, keysOf(tr))
		checkStructure(t, tr, false)

		// The degraded tree must keep accepting writes.
		for k := 0; k < 200; k++ {
			tr.Put(k, -k)
		}
		checkStructure(t, tr, false)
		for k := 0; k < 200; k++ {
			v, ok := tr.Get(k)
			require.True(t, ok)
			require.Equal(t, -k, v)
		}
	}
}

func TestTree_MixedWorkloadMatchesMap(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 99))
	tr := New[uint64, uint64](4)
	want := map[uint64]uint64{}
	for i := 0; i < 20000; i++ {
		k := rng.Uint64N(2000)
		switch rng.IntN(3) {
		case 0, 1:
			tr.Put(k, uint64(i))
			want[k] = uint64(i)
		case 2:
			_, existed := want[k]
			assert.Equal(t, existed, tr.Remove(k))
			delete(want, k)
		}
	}
	checkStructure(t, tr, false)
	require.Equal(t, len(want), tr.Len())
	for k := uint64(0); k < 2000; k++ {
		v, ok := tr.Get(k)
		wv, wok := want[k]
		require.Equal(t, wok, ok, "key %d", k)
		require.Equal(t, wv, v)
	}
	assert.True(t, slices.IsSorted(keysOf(tr)))
}

func TestTree_EngineContract(t *testing.T) {
	var e core.Engine[uint64, uint64] = New[uint64, uint64](8)
	assert.Equal(t, "B-Tree", e.Name())

	require.NoError(t, e.Insert(1, 10))
	v, ok, err := e.Search(1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(10), v)

	require.NoError(t, e.Delete(1))
	_, ok, err = e.Search(1)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, e.Insert(2, 20))
	require.NoError(t, core.Reset(e))
	_, ok, _ = e.Search(2)
	assert.False(t, ok)
	assert.Equal(t, 0, e.(*Tree[uint64, uint64]).Len())
}

func TestTree_AscendStopsEarly(t *testing.T) {
	tr := New[int, int](2)
	for k := 0; k < 50; k++ {
		tr.Put(k, k)
	}
	var seen []int
	tr.Ascend(func(k, _ int) bool {
		seen = append(seen, k)
		return len(seen) < 5
	})
	assert.Equal(t, []int{0, 1, 2, 3, 4}, seen)
}
