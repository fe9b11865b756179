// Package memtable holds the in-memory, most-recent-writes buffer of the LSM
// engine: an ordered map from key to the latest entry written for it.
package memtable

import (
	"cmp"
	"time"

	"github.com/INLOpen/kvbench/core"
	"github.com/INLOpen/skiplist"
)

// Memtable is an ordered key -> entry map bounded by an entry-count
// threshold. Each key holds exactly one entry; a later write for the same key
// replaces the earlier one. It is not safe for concurrent use.
type Memtable[K cmp.Ordered, V any] struct {
	data         *skiplist.SkipList[K, core.Entry[V]]
	threshold    int
	clock        core.Clock
	creationTime time.Time // Time the current generation started
}

// New creates an empty memtable that reports full once it holds threshold entries.
func New[K cmp.Ordered, V any](threshold int, clock core.Clock) *Memtable[K, V] {
	if clock == nil {
		clock = core.SystemClock()
	}
	return &Memtable[K, V]{
		data:         skiplist.NewWithComparator[K, core.Entry[V]](cmp.Compare[K]),
		threshold:    threshold,
		clock:        clock,
		creationTime: clock.Now(),
	}
}

// Put stores entry under key, overwriting any entry already held for it.
func (m *Memtable[K, V]) Put(key K, entry core.Entry[V]) {
	m.data.Insert(key, entry)
}

// Get returns the entry held for key. A tombstone is a valid entry; the
// caller decides how to interpret it.
func (m *Memtable[K, V]) Get(key K) (core.Entry[V], bool) {
	node, ok := m.data.Seek(key)
	if ok && node.Key() == key {
		return node.Value(), true
	}
	return core.Entry[V]{}, false
}

// Len returns the number of distinct keys held.
func (m *Memtable[K, V]) Len() int {
	return m.data.Len()
}

// IsEmpty reports whether the memtable holds no entries.
func (m *Memtable[K, V]) IsEmpty() bool {
	return m.data.Len() == 0
}

// IsFull checks if the memtable has reached its entry-count threshold.
func (m *Memtable[K, V]) IsFull() bool {
	return m.data.Len() >= m.threshold
}

// Threshold returns the entry count at which the memtable is full.
func (m *Memtable[K, V]) Threshold() int {
	return m.threshold
}

// Age returns how long the current generation has been accumulating writes.
func (m *Memtable[K, V]) Age() time.Duration {
	return m.clock.Now().Sub(m.creationTime)
}

// Ascend calls fn for each entry in ascending key order until fn returns false.
func (m *Memtable[K, V]) Ascend(fn func(key K, entry core.Entry[V]) bool) {
	m.data.Range(fn)
}

// Records returns an ordered snapshot of every entry.
func (m *Memtable[K, V]) Records() []core.Record[K, V] {
	out := make([]core.Record[K, V], 0, m.data.Len())
	m.data.Range(func(key K, entry core.Entry[V]) bool {
		out = append(out, core.Record[K, V]{Key: key, Entry: entry})
		return true
	})
	return out
}

// Clear drops every entry and starts a new generation. The memtable itself
// is reused.
func (m *Memtable[K, V]) Clear() {
	m.data = skiplist.NewWithComparator[K, core.Entry[V]](cmp.Compare[K])
	m.creationTime = m.clock.Now()
}
