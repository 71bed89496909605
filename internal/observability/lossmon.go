package observability

import "sync"

// LossMonitor estimates link loss from the peer's monotonic sequence
// numbers. The estimate is purely informational: sequence gaps have no
// protocol effect, and a sequence that moves backwards is treated as a
// peer restart rather than loss.
type LossMonitor struct {
	mu       sync.Mutex
	primed   bool
	lastSeq  uint32
	received uint64
	lost     uint64
}

func (m *LossMonitor) Observe(seq uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.received++
	if !m.primed || seq <= m.lastSeq {
		m.primed = true
		m.lastSeq = seq
		return
	}
	m.lost += uint64(seq - m.lastSeq - 1)
	m.lastSeq = seq
}

// Snapshot returns packets received and the estimated count lost in
// transit since the monitor was primed.
func (m *LossMonitor) Snapshot() (received, lost uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.received, m.lost
}
