package link

import (
	"context"
	"sync"
	"testing"
	"time"
)

func collect(t *testing.T, m *Mem) (*sync.Mutex, *[][]byte) {
	t.Helper()
	var mu sync.Mutex
	var got [][]byte
	m.SetHandler(func(payload []byte) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, payload)
	})
	return &mu, &got
}

func TestMemPairDeliversWholePayloads(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, b := NewMemPair(0, 1)
	mu, got := collect(t, b)
	if err := b.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	want := []byte{1, 2, 3, 4, 5}
	for i := 0; i < 10; i++ {
		if err := a.Send(want); err != nil {
			t.Fatalf("send: %v", err)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := len(*got)
		mu.Unlock()
		if n == 10 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("received %d of 10 payloads", n)
		}
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	for _, payload := range *got {
		if len(payload) != len(want) {
			t.Fatalf("payload length %d, want %d", len(payload), len(want))
		}
		for i := range want {
			if payload[i] != want[i] {
				t.Fatalf("payload %v, want %v", payload, want)
			}
		}
	}
}

func TestMemPairTotalLossDeliversNothing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, b := NewMemPair(1, 1)
	mu, got := collect(t, b)
	if err := b.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	for i := 0; i < 20; i++ {
		if err := a.Send([]byte{byte(i)}); err != nil {
			t.Fatalf("send: %v", err)
		}
	}
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(*got) != 0 {
		t.Fatalf("expected nothing delivered, got %d payloads", len(*got))
	}
	if a.Dropped() != 20 {
		t.Fatalf("dropped = %d, want 20", a.Dropped())
	}
}

func TestMemStartRequiresHandler(t *testing.T) {
	a, _ := NewMemPair(0, 1)
	if err := a.Start(context.Background()); err != ErrNoHandler {
		t.Fatalf("expected ErrNoHandler, got %v", err)
	}
}

func TestMemSendAfterCloseFails(t *testing.T) {
	a, _ := NewMemPair(0, 1)
	if err := a.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := a.Send([]byte{1}); err != ErrClosed {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}
