// Package bench drives an identical, seeded workload against storage
// engines that satisfy core.Engine and reports per-phase timings.
package bench

import (
	"fmt"
	"math/rand/v2"
)

// PhaseKind names a step of the workload.
type PhaseKind string

const (
	PhaseInsert  PhaseKind = "insert"
	PhaseRead    PhaseKind = "read"
	PhaseUpdate  PhaseKind = "update"
	PhaseDelete  PhaseKind = "delete"
	PhaseCompact PhaseKind = "compact"
	PhaseVerify  PhaseKind = "verify"
)

// Workload describes the operation mix. Ratios are relative to Operations.
type Workload struct {
	Operations         int
	KeySpaceMultiplier int
	ReadRatio          float64
	UpdateRatio        float64
	DeleteRatio        float64
	// Seed makes the key sequence reproducible; every engine in a run sees
	// the same keys in the same order.
	Seed uint64
	// Verify checks every search against a reference model and sweeps all
	// touched keys at the end.
	Verify bool
	// Compact adds a compaction phase for engines that support it.
	Compact bool
}

// DefaultWorkload mirrors the classic comparison: 100k inserts over a key
// space ten times larger, half as many reads, a tenth updates and deletes.
func DefaultWorkload() Workload {
	return Workload{
		Operations:         100_000,
		KeySpaceMultiplier: 10,
		ReadRatio:          0.5,
		UpdateRatio:        0.1,
		DeleteRatio:        0.1,
	}
}

// Validate rejects workloads that cannot be planned.
func (w Workload) Validate() error {
	if w.Operations < 1 {
		return fmt.Errorf("bench: operations must be positive, got %d", w.Operations)
	}
	if w.KeySpaceMultiplier < 1 {
		return fmt.Errorf("bench: key space multiplier must be positive, got %d", w.KeySpaceMultiplier)
	}
	for _, r := range []float64{w.ReadRatio, w.UpdateRatio, w.DeleteRatio} {
		if r < 0 || r > 1 {
			return fmt.Errorf("bench: ratio %g outside [0, 1]", r)
		}
	}
	return nil
}

// Plan is the concrete key sequence for each phase.
type Plan struct {
	Inserts []uint64
	Reads   []uint64
	Updates []uint64
	Deletes []uint64
}

// Plan generates keys. Inserted keys are uniform over
// [0, Operations*KeySpaceMultiplier) and may repeat; read, update and
// delete keys are sampled from the inserted keys.
func (w Workload) Plan() Plan {
	rng := rand.New(rand.NewPCG(w.Seed, w.Seed^0x9E3779B97F4A7C15))
	n := w.Operations
	space := uint64(n) * uint64(w.KeySpaceMultiplier)

	p := Plan{Inserts: make([]uint64, n)}
	for i := range p.Inserts {
		p.Inserts[i] = rng.Uint64N(space)
	}
	sample := func(ratio float64) []uint64 {
		keys := make([]uint64, int(float64(n)*ratio))
		for i := range keys {
			keys[i] = p.Inserts[rng.IntN(n)]
		}
		return keys
	}
	p.Reads = sample(w.ReadRatio)
	p.Updates = sample(w.UpdateRatio)
	p.Deletes = sample(w.DeleteRatio)
	return p
}

func randomSeed() uint64 {
	for {
		if s := rand.Uint64(); s != 0 {
			return s
		}
	}
}
