// Package link carries whole datagrams between exactly two peers on a
// best-effort basis: a payload arrives intact or not at all, with no
// ordering, acknowledgement, or retry. Peer addressing is fixed at
// construction; bring-up beyond that is the caller's problem.
package link

import (
	"context"
	"errors"
)

// Handler receives one inbound datagram. It runs on the link's receive
// goroutine and must return quickly without blocking.
type Handler func(payload []byte)

// Link is a point-to-point best-effort transport.
type Link interface {
	// SetHandler registers the receive callback. Must be called before
	// Start.
	SetHandler(h Handler)

	// Start begins delivering inbound datagrams until ctx is done.
	Start(ctx context.Context) error

	// Send transmits one datagram to the fixed peer. A returned error is
	// a transmit failure to be logged and forgotten; the protocol is
	// loss-tolerant and the next periodic tick resends fresher data.
	Send(payload []byte) error

	Close() error
}

var (
	ErrNoHandler = errors.New("link: no receive handler registered")
	ErrClosed    = errors.New("link: closed")
)
