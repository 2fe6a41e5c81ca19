// Package testkit holds deterministic collaborators for exercising the duel service in tests.
package testkit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"quiz-duel-service/internal/domain"
)

// Questions returns three fixed questions whose correct answer is always "right".
func Questions() []domain.Question {
	return []domain.Question{
		{ID: "q1", Prompt: "First?", Options: []string{"right", "wrong"}, Answer: "right"},
		{ID: "q2", Prompt: "Second?", Options: []string{"wrong", "right"}, Answer: "right"},
		{ID: "q3", Prompt: "Third?", Options: []string{"right", "wrong", "other"}, Answer: "right"},
	}
}

// Bank is a question bank that returns its questions in order.
type Bank struct {
	Questions []domain.Question
	Err       error
}

// FixedBank returns a bank serving Questions().
func FixedBank() *Bank {
	return &Bank{Questions: Questions()}
}

func (b *Bank) Sample(_ context.Context, n int) ([]domain.Question, error) {
	if b.Err != nil {
		return nil, b.Err
	}
	if len(b.Questions) < n {
		return nil, fmt.Errorf("%w: have %d, need %d", domain.ErrBankExhausted, len(b.Questions), n)
	}
	return append([]domain.Question(nil), b.Questions[:n]...), nil
}

// Delivery is one question pushed to a participant.
type Delivery struct {
	Participant string
	Number      int
	Prompt      string
	Options     []string
	Handle      string
}

// Notifier records every outbound message.
type Notifier struct {
	mu         sync.Mutex
	seq        int
	deliveries []Delivery
	retracted  map[string][]string
	texts      map[string][]string
	// RetractErr, when set, is returned from every Retract call.
	RetractErr error
}

func NewNotifier() *Notifier {
	return &Notifier{
		retracted: make(map[string][]string),
		texts:     make(map[string][]string),
	}
}

func (n *Notifier) DeliverQuestion(_ context.Context, participantID string, number int, prompt string, options []string) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.seq++
	handle := fmt.Sprintf("%s/%d/%d", participantID, number, n.seq)
	n.deliveries = append(n.deliveries, Delivery{
		Participant: participantID,
		Number:      number,
		Prompt:      prompt,
		Options:     options,
		Handle:      handle,
	})
	return handle, nil
}

func (n *Notifier) Retract(_ context.Context, participantID, handle string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.retracted[participantID] = append(n.retracted[participantID], handle)
	return n.RetractErr
}

func (n *Notifier) NotifyText(_ context.Context, participantID, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.texts[participantID] = append(n.texts[participantID], text)
	return nil
}

// Deliveries returns the questions delivered to participantID, oldest first.
func (n *Notifier) Deliveries(participantID string) []Delivery {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []Delivery
	for _, d := range n.deliveries {
		if d.Participant == participantID {
			out = append(out, d)
		}
	}
	return out
}

// LastHandle is the handle of the latest question delivered to participantID.
func (n *Notifier) LastHandle(participantID string) string {
	ds := n.Deliveries(participantID)
	if len(ds) == 0 {
		return ""
	}
	return ds[len(ds)-1].Handle
}

func (n *Notifier) Texts(participantID string) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.texts[participantID]...)
}

// LastText is the latest text sent to participantID.
func (n *Notifier) LastText(participantID string) string {
	texts := n.Texts(participantID)
	if len(texts) == 0 {
		return ""
	}
	return texts[len(texts)-1]
}

func (n *Notifier) Retracted(participantID string) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.retracted[participantID]...)
}

// Scheduler collects delayed callbacks until the test runs them.
type Scheduler struct {
	mu      sync.Mutex
	pending []Task
}

// Task is one scheduled callback.
type Task struct {
	Delay time.Duration
	Run   func()
}

func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// AfterFunc matches the signature expected by app.WithScheduler.
func (s *Scheduler) AfterFunc(d time.Duration, f func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, Task{Delay: d, Run: f})
}

// Pending returns the delays of callbacks not yet run.
func (s *Scheduler) Pending() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	delays := make([]time.Duration, len(s.pending))
	for i, t := range s.pending {
		delays[i] = t.Delay
	}
	return delays
}

// RunPending runs every callback queued so far, in order, and returns how many ran.
// Callbacks scheduled while running stay pending.
func (s *Scheduler) RunPending() int {
	s.mu.Lock()
	tasks := s.pending
	s.pending = nil
	s.mu.Unlock()
	for _, t := range tasks {
		t.Run()
	}
	return len(tasks)
}

// RunDelay runs only the queued callbacks scheduled with delay d.
func (s *Scheduler) RunDelay(d time.Duration) int {
	s.mu.Lock()
	var run, keep []Task
	for _, t := range s.pending {
		if t.Delay == d {
			run = append(run, t)
		} else {
			keep = append(keep, t)
		}
	}
	s.pending = keep
	s.mu.Unlock()
	for _, t := range run {
		t.Run()
	}
	return len(run)
}
