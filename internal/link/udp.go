package link

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
)

// readBufferSize comfortably exceeds the largest packet the bench
// exchanges; oversized foreign datagrams are truncated and then rejected
// by the decoder on length.
const readBufferSize = 64

// UDP is the radio-link stand-in: unreliable, unordered, whole-datagram
// delivery to a single fixed peer.
type UDP struct {
	conn *net.UDPConn
	peer *net.UDPAddr

	mu      sync.RWMutex
	handler Handler

	started atomic.Bool
	closed  atomic.Bool
	wg      sync.WaitGroup
}

// NewUDP binds listenAddr and fixes peerAddr as the only destination.
func NewUDP(listenAddr, peerAddr string) (*UDP, error) {
	laddr, err := net.ResolveUDPAddr("udp", listenAddr)
	if err != nil {
		return nil, fmt.Errorf("link: resolve listen addr %s: %w", listenAddr, err)
	}
	peer, err := net.ResolveUDPAddr("udp", peerAddr)
	if err != nil {
		return nil, fmt.Errorf("link: resolve peer addr %s: %w", peerAddr, err)
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, fmt.Errorf("link: listen %s: %w", listenAddr, err)
	}
	return &UDP{conn: conn, peer: peer}, nil
}

func (u *UDP) SetHandler(h Handler) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.handler = h
}

func (u *UDP) Start(ctx context.Context) error {
	u.mu.RLock()
	handler := u.handler
	u.mu.RUnlock()
	if handler == nil {
		return ErrNoHandler
	}
	if !u.started.CompareAndSwap(false, true) {
		return nil
	}

	u.wg.Add(1)
	go u.readLoop(handler)

	go func() {
		<-ctx.Done()
		u.Close()
	}()
	return nil
}

func (u *UDP) readLoop(handler Handler) {
	defer u.wg.Done()
	buf := make([]byte, readBufferSize)
	for {
		n, _, err := u.conn.ReadFromUDP(buf)
		if err != nil {
			if u.closed.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			continue
		}
		payload := make([]byte, n)
		copy(payload, buf[:n])
		handler(payload)
	}
}

func (u *UDP) Send(payload []byte) error {
	if u.closed.Load() {
		return ErrClosed
	}
	if _, err := u.conn.WriteToUDP(payload, u.peer); err != nil {
		return fmt.Errorf("link: send to %s: %w", u.peer, err)
	}
	return nil
}

func (u *UDP) Close() error {
	if !u.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := u.conn.Close()
	u.wg.Wait()
	return err
}
