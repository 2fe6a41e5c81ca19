package http

import (
	"context"
	"errors"
	"testing"

	"quiz-duel-service/internal/domain"
)

func TestHubNotConnected(t *testing.T) {
	hub := NewHub(nil)
	if _, err := hub.DeliverQuestion(context.Background(), "u1", 1, "?", []string{"a", "b"}); !errors.Is(err, domain.ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
	if err := hub.NotifyText(context.Background(), "u1", "hi"); !errors.Is(err, domain.ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestHubDeliverReturnsDistinctHandles(t *testing.T) {
	hub := NewHub(nil)
	c := newClient()
	hub.attach("u1", c)

	h1, err := hub.DeliverQuestion(context.Background(), "u1", 1, "First?", []string{"a", "b"})
	if err != nil || h1 == "" {
		t.Fatalf("deliver: handle=%q err=%v", h1, err)
	}
	h2, _ := hub.DeliverQuestion(context.Background(), "u1", 2, "Second?", []string{"a", "b"})
	if h1 == h2 {
		t.Fatalf("expected distinct handles, got %q twice", h1)
	}

	msg := <-c.send
	q, ok := msg.Payload.(questionPayload)
	if msg.Type != "question" || !ok || q.Handle != h1 || q.Number != 1 {
		t.Fatalf("unexpected first message %+v", msg)
	}
}

func TestHubSendNeverBlocks(t *testing.T) {
	hub := NewHub(nil)
	c := newClient()
	hub.attach("u1", c)

	for i := 0; i < sendBuffer; i++ {
		if err := hub.NotifyText(context.Background(), "u1", "tick"); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}
	if err := hub.NotifyText(context.Background(), "u1", "overflow"); !errors.Is(err, errSendBufferFull) {
		t.Fatalf("expected errSendBufferFull, got %v", err)
	}
}

func TestHubReplacedConnectionKeepsNewer(t *testing.T) {
	hub := NewHub(nil)
	first, second := newClient(), newClient()
	hub.attach("u1", first)
	hub.attach("u1", second)

	select {
	case <-first.done:
	default:
		t.Fatalf("expected replaced connection to be closed")
	}
	if hub.detach("u1", first) {
		t.Fatalf("stale detach must not remove the newer connection")
	}
	if !hub.Connected("u1") {
		t.Fatalf("expected u1 still connected")
	}
	if !hub.detach("u1", second) || hub.Connected("u1") {
		t.Fatalf("expected current connection removed")
	}
	if err := second.enqueue(outboundMessage[any]{Type: "notice"}); !errors.Is(err, domain.ErrNotConnected) {
		t.Fatalf("expected closed client to reject sends, got %v", err)
	}
}
