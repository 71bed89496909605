package link

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
)

const memInboxDepth = 64

// Mem is one endpoint of an in-process link pair. It mimics the radio
// link's failure mode: datagrams are dropped whole, never corrupted or
// reordered within the process.
type Mem struct {
	peer *Mem

	inbox chan []byte
	done  chan struct{}

	mu      sync.RWMutex
	handler Handler

	lossRate float64
	rngMu    sync.Mutex
	rng      *rand.Rand

	started atomic.Bool
	closed  atomic.Bool

	dropped atomic.Uint64
}

// NewMemPair returns two linked endpoints. lossRate in [0,1] is the
// probability that any Send is silently dropped; seed makes drops
// reproducible.
func NewMemPair(lossRate float64, seed int64) (*Mem, *Mem) {
	a := newMem(lossRate, rand.New(rand.NewSource(seed)))
	b := newMem(lossRate, rand.New(rand.NewSource(seed+1)))
	a.peer = b
	b.peer = a
	return a, b
}

func newMem(lossRate float64, rng *rand.Rand) *Mem {
	if lossRate < 0 {
		lossRate = 0
	}
	if lossRate > 1 {
		lossRate = 1
	}
	return &Mem{
		inbox:    make(chan []byte, memInboxDepth),
		done:     make(chan struct{}),
		lossRate: lossRate,
		rng:      rng,
	}
}

func (m *Mem) SetHandler(h Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = h
}

func (m *Mem) Start(ctx context.Context) error {
	m.mu.RLock()
	handler := m.handler
	m.mu.RUnlock()
	if handler == nil {
		return ErrNoHandler
	}
	if !m.started.CompareAndSwap(false, true) {
		return nil
	}
	go m.pump(ctx, handler)
	return nil
}

func (m *Mem) pump(ctx context.Context, handler Handler) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.done:
			return
		case payload := <-m.inbox:
			handler(payload)
		}
	}
}

func (m *Mem) Send(payload []byte) error {
	if m.closed.Load() || m.peer.closed.Load() {
		return ErrClosed
	}
	if m.drop() {
		m.dropped.Add(1)
		return nil
	}
	out := make([]byte, len(payload))
	copy(out, payload)
	select {
	case m.peer.inbox <- out:
	default:
		// A full inbox is indistinguishable from air loss.
		m.dropped.Add(1)
	}
	return nil
}

func (m *Mem) drop() bool {
	if m.lossRate <= 0 {
		return false
	}
	m.rngMu.Lock()
	defer m.rngMu.Unlock()
	return m.rng.Float64() < m.lossRate
}

// Dropped reports how many outbound datagrams this endpoint discarded.
func (m *Mem) Dropped() uint64 {
	return m.dropped.Load()
}

func (m *Mem) Close() error {
	if m.closed.CompareAndSwap(false, true) {
		close(m.done)
	}
	return nil
}
