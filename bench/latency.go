package bench

import (
	"fmt"
	"time"

	"github.com/caio/go-tdigest/v4"
)

// latencyRecorder accumulates per-operation durations into a t-digest so
// quantiles stay cheap regardless of operation count.
type latencyRecorder struct {
	td  *tdigest.TDigest
	max time.Duration
}

func newLatencyRecorder() (*latencyRecorder, error) {
	td, err := tdigest.New()
	if err != nil {
		return nil, fmt.Errorf("tdigest.New failed: %w", err)
	}
	return &latencyRecorder{td: td}, nil
}

func (r *latencyRecorder) observe(d time.Duration) error {
	if d > r.max {
		r.max = d
	}
	if err := r.td.Add(float64(d)); err != nil {
		return fmt.Errorf("tdigest Add failed: %w", err)
	}
	return nil
}

func (r *latencyRecorder) quantile(q float64) time.Duration {
	if r.td.Count() == 0 {
		return 0
	}
	return time.Duration(r.td.Quantile(q))
}
