package app

import "quiz-duel-service/internal/domain"

// Match is the result of a matchmaking request.
type Match struct {
	Paired   bool
	Opponent domain.Player
}

// Matchmaker pairs waiting participants first come, first served.
// It is not safe for concurrent use; DuelService serializes access together
// with the registry so the "queued or dueling, never both" rule holds.
type Matchmaker struct {
	waiting []domain.Player
	inDuel  func(participantID string) bool
}

// NewMatchmaker builds a queue that consults inDuel to reject participants
// who already belong to a live session.
func NewMatchmaker(inDuel func(participantID string) bool) *Matchmaker {
	return &Matchmaker{inDuel: inDuel}
}

// Check reports why participantID may not request a duel, without mutating the queue.
func (m *Matchmaker) Check(participantID string) error {
	if m.Contains(participantID) {
		return domain.ErrAlreadyQueued
	}
	if m.inDuel != nil && m.inDuel(participantID) {
		return domain.ErrAlreadyInDuel
	}
	return nil
}

// Request pairs the player with the longest waiting participant, or enqueues them.
func (m *Matchmaker) Request(player domain.Player) (Match, error) {
	if err := m.Check(player.ID); err != nil {
		return Match{}, err
	}
	if len(m.waiting) == 0 {
		m.waiting = append(m.waiting, player)
		return Match{}, nil
	}
	opponent := m.waiting[0]
	m.waiting[0] = domain.Player{}
	m.waiting = m.waiting[1:]
	return Match{Paired: true, Opponent: opponent}, nil
}

// Withdraw removes a waiting participant. It reports whether they were queued.
func (m *Matchmaker) Withdraw(participantID string) bool {
	for i, p := range m.waiting {
		if p.ID == participantID {
			m.waiting = append(m.waiting[:i], m.waiting[i+1:]...)
			return true
		}
	}
	return false
}

// Contains reports whether participantID is waiting.
func (m *Matchmaker) Contains(participantID string) bool {
	for _, p := range m.waiting {
		if p.ID == participantID {
			return true
		}
	}
	return false
}

func (m *Matchmaker) Len() int {
	return len(m.waiting)
}

// Waiting returns the queued participant IDs, head first.
func (m *Matchmaker) Waiting() []string {
	ids := make([]string, len(m.waiting))
	for i, p := range m.waiting {
		ids[i] = p.ID
	}
	return ids
}

// restore puts a popped opponent back at the head of the queue.
func (m *Matchmaker) restore(player domain.Player) {
	m.waiting = append([]domain.Player{player}, m.waiting...)
}
