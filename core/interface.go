package core

import "cmp"

// Engine is the operation set shared by every storage engine. A workload
// driver holds an Engine and never needs to know which implementation it has.
//
// Search reports a genuinely absent key as (zero, false, nil); absence is
// never an error.
type Engine[K cmp.Ordered, V any] interface {
	Insert(key K, value V) error
	Search(key K) (V, bool, error)
	Delete(key K) error
	// Name returns a human readable label used in reports.
	Name() string
}

// Resetter is implemented by engines that hold state worth clearing
// between workload runs.
type Resetter interface {
	Reset() error
}

// Compactor is implemented by engines that support an explicit full compaction.
type Compactor interface {
	Compact() error
}

// Reset clears engine state if the engine implements Resetter. For any
// other engine it is a no-op.
func Reset(engine any) error {
	if r, ok := engine.(Resetter); ok {
		return r.Reset()
	}
	return nil
}
