package http

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"quiz-duel-service/internal/domain"
)

const sendBuffer = 32

var errSendBufferFull = errors.New("send buffer full")

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type questionPayload struct {
	Handle  string   `json:"handle"`
	Number  int      `json:"number"`
	Prompt  string   `json:"prompt"`
	Options []string `json:"options"`
}

type retractPayload struct {
	Handle string `json:"handle"`
}

type noticePayload struct {
	Text string `json:"text"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// client is one open connection. The hub never closes send; the writer
// goroutine stops when done is closed.
type client struct {
	send chan outboundMessage[any]
	done chan struct{}
	once sync.Once
}

func newClient() *client {
	return &client{
		send: make(chan outboundMessage[any], sendBuffer),
		done: make(chan struct{}),
	}
}

func (c *client) enqueue(msg outboundMessage[any]) error {
	select {
	case <-c.done:
		return domain.ErrNotConnected
	default:
	}
	select {
	case c.send <- msg:
		return nil
	default:
		return errSendBufferFull
	}
}

func (c *client) close() {
	c.once.Do(func() { close(c.done) })
}

// Hub routes duel events to connected participants. Every send is
// non-blocking so it is safe to call while the duel service holds its lock.
type Hub struct {
	mu        sync.RWMutex
	clients   map[string]*client
	newHandle func() string
	logger    *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients:   make(map[string]*client),
		newHandle: uuid.NewString,
		logger:    logger,
	}
}

// attach registers c for participantID, replacing and closing any older connection.
func (h *Hub) attach(participantID string, c *client) {
	h.mu.Lock()
	old := h.clients[participantID]
	h.clients[participantID] = c
	h.mu.Unlock()
	if old != nil {
		old.close()
	}
}

// detach removes c only if it is still the participant's current connection.
func (h *Hub) detach(participantID string, c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[participantID] != c {
		return false
	}
	delete(h.clients, participantID)
	c.close()
	return true
}

func (h *Hub) Connected(participantID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[participantID]
	return ok
}

func (h *Hub) send(participantID string, msg outboundMessage[any]) error {
	h.mu.RLock()
	c, ok := h.clients[participantID]
	h.mu.RUnlock()
	if !ok {
		return domain.ErrNotConnected
	}
	return c.enqueue(msg)
}

// DeliverQuestion sends a prompt and returns the handle the answer must echo.
func (h *Hub) DeliverQuestion(_ context.Context, participantID string, number int, prompt string, options []string) (string, error) {
	handle := h.newHandle()
	err := h.send(participantID, outboundMessage[any]{Type: "question", Payload: questionPayload{
		Handle:  handle,
		Number:  number,
		Prompt:  prompt,
		Options: options,
	}})
	if err != nil {
		return "", err
	}
	return handle, nil
}

func (h *Hub) Retract(_ context.Context, participantID, handle string) error {
	return h.send(participantID, outboundMessage[any]{Type: "retract", Payload: retractPayload{Handle: handle}})
}

func (h *Hub) NotifyText(_ context.Context, participantID, text string) error {
	return h.send(participantID, outboundMessage[any]{Type: "notice", Payload: noticePayload{Text: text}})
}
