package bench

import (
	"errors"
	"fmt"

	"github.com/RoaringBitmap/roaring/roaring64"
)

// ErrMismatch is wrapped by every VerifyError.
var ErrMismatch = errors.New("engine result differs from reference model")

// VerifyError describes the first search whose result disagreed with the
// reference model.
type VerifyError struct {
	Engine string
	Phase  PhaseKind
	Key    uint64
	Want   uint64
	WantOK bool
	Got    uint64
	GotOK  bool
}

func (e *VerifyError) Error() string {
	return fmt.Sprintf("%s %s: key %d: want (%d, %t), got (%d, %t)", e.Engine, e.Phase, e.Key, e.Want, e.WantOK, e.Got, e.GotOK)
}

func (e *VerifyError) Unwrap() error { return ErrMismatch }

// model is the expected engine state: latest value per live key, a bitmap
// of live keys and a bitmap of every key ever written.
type model struct {
	values  map[uint64]uint64
	live    *roaring64.Bitmap
	touched *roaring64.Bitmap
}

func newModel() *model {
	return &model{
		values:  make(map[uint64]uint64),
		live:    roaring64.New(),
		touched: roaring64.New(),
	}
}

func (m *model) put(key, value uint64) {
	m.values[key] = value
	m.live.Add(key)
	m.touched.Add(key)
}

func (m *model) remove(key uint64) {
	delete(m.values, key)
	m.live.Remove(key)
	m.touched.Add(key)
}

func (m *model) lookup(key uint64) (uint64, bool) {
	if !m.live.Contains(key) {
		return 0, false
	}
	return m.values[key], true
}

// liveKeys is the number of keys expected to be found.
func (m *model) liveKeys() uint64 { return m.live.GetCardinality() }

// sweep calls fn for every key ever written, ascending.
func (m *model) sweep(fn func(key uint64) error) error {
	it := m.touched.Iterator()
	for it.HasNext() {
		if err := fn(it.Next()); err != nil {
			return err
		}
	}
	return nil
}
