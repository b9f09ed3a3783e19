// Package progress holds the application's progress fraction.
package progress

import (
	"math"
	"sync/atomic"
)

// Manager is an atomic progress fraction in [0, 1], probed by the allocate
// loop and fed by executor completions.
type Manager struct {
	bits atomic.Uint32
}

// Set stores the fraction, clamped to [0, 1].
func (m *Manager) Set(f float32) {
	switch {
	case f < 0 || f != f: // NaN guards the heartbeat payload
		f = 0
	case f > 1:
		f = 1
	}
	m.bits.Store(math.Float32bits(f))
}

// Progress implements sproto.ProgressProvider.
func (m *Manager) Progress() float32 {
	return math.Float32frombits(m.bits.Load())
}
