package app

import (
	"context"
	"log/slog"
	"time"

	"quiz-duel-service/internal/domain"
)

// DuelRounds is the number of questions in every duel.
const DuelRounds = 3

// SessionState is the position of a duel in its round lifecycle.
type SessionState int

const (
	StateAwaitingAnswers SessionState = iota
	StateRoundResolved
	StateFinished
)

func (s SessionState) String() string {
	switch s {
	case StateAwaitingAnswers:
		return "awaiting_answers"
	case StateRoundResolved:
		return "round_resolved"
	case StateFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// resolution describes what an accepted answer did to the round.
type resolution int

const (
	roundOpen resolution = iota
	roundScored
	roundUnscored
)

// Session is one live duel between two participants. All methods assume the
// caller holds the DuelService lock.
type Session struct {
	id        string
	players   [2]domain.Player
	questions []domain.Question
	startedAt time.Time

	round     int
	state     SessionState
	attempted map[string]bool
	scores    map[string]int
	// prompts holds the handle of the question each participant may still answer.
	prompts map[string]string
}

func newSession(id string, players [2]domain.Player, questions []domain.Question, now time.Time) *Session {
	return &Session{
		id:        id,
		players:   players,
		questions: questions,
		startedAt: now,
		state:     StateAwaitingAnswers,
		attempted: make(map[string]bool, 2),
		scores:    map[string]int{players[0].ID: 0, players[1].ID: 0},
		prompts:   make(map[string]string, 2),
	}
}

func (s *Session) ID() string { return s.id }

// Players returns both participants in pairing order (the one who waited first).
func (s *Session) Players() [2]domain.Player { return s.players }

// Round is the zero-based index of the current question.
func (s *Session) Round() int { return s.round }

func (s *Session) State() SessionState { return s.state }

// Score returns the participant's cumulative score.
func (s *Session) Score(participantID string) int { return s.scores[participantID] }

// Has reports whether participantID plays in this duel.
func (s *Session) Has(participantID string) bool {
	return s.players[0].ID == participantID || s.players[1].ID == participantID
}

func (s *Session) opponent(participantID string) domain.Player {
	if s.players[0].ID == participantID {
		return s.players[1]
	}
	return s.players[0]
}

func (s *Session) player(participantID string) domain.Player {
	if s.players[0].ID == participantID {
		return s.players[0]
	}
	return s.players[1]
}

// deliver sends the current question to both participants and records the prompt handles.
func (s *Session) deliver(ctx context.Context, n Notifier, log *slog.Logger) {
	q := s.questions[s.round]
	for _, p := range s.players {
		handle, err := n.DeliverQuestion(ctx, p.ID, s.round+1, q.Prompt, q.Options)
		if err != nil {
			log.Warn("deliver question failed", "duel", s.id, "participant", p.ID, "round", s.round, "error", err)
		}
		s.prompts[p.ID] = handle
	}
}

// submit applies one answer. Rejected submissions return ErrStaleAnswer and change nothing.
func (s *Session) submit(ctx context.Context, n Notifier, log *slog.Logger, participantID, choice, token string) (resolution, error) {
	if s.state != StateAwaitingAnswers || s.attempted[participantID] {
		return roundOpen, domain.ErrStaleAnswer
	}
	if handle, ok := s.prompts[participantID]; !ok || handle == "" || handle != token {
		return roundOpen, domain.ErrStaleAnswer
	}
	s.attempted[participantID] = true

	opponent := s.opponent(participantID)
	if choice == s.questions[s.round].Answer {
		s.scores[participantID]++
		s.state = StateRoundResolved
		s.notify(ctx, n, log, participantID, "Correct! You got the point.")
		s.notify(ctx, n, log, opponent.ID, s.player(participantID).Label()+" answered correctly.")
		s.retractPrompts(ctx, n, log)
		return roundScored, nil
	}

	s.notify(ctx, n, log, participantID, "Incorrect answer.")
	if len(s.attempted) < len(s.players) {
		return roundOpen, nil
	}
	s.state = StateRoundResolved
	s.retractPrompts(ctx, n, log)
	return roundUnscored, nil
}

// expire resolves round unscored if it is still open. It reports whether anything changed.
func (s *Session) expire(ctx context.Context, n Notifier, log *slog.Logger, round int) bool {
	if s.state != StateAwaitingAnswers || s.round != round {
		return false
	}
	s.state = StateRoundResolved
	for _, p := range s.players {
		s.notify(ctx, n, log, p.ID, "Time is up! Nobody scored this round.")
	}
	s.retractPrompts(ctx, n, log)
	return true
}

// advance moves past a resolved round. It reports whether the duel is finished.
func (s *Session) advance(ctx context.Context, n Notifier, log *slog.Logger) bool {
	if s.state != StateRoundResolved {
		return s.state == StateFinished
	}
	s.round++
	clear(s.attempted)
	if s.round >= DuelRounds {
		s.state = StateFinished
		return true
	}
	s.state = StateAwaitingAnswers
	s.deliver(ctx, n, log)
	return false
}

// outcome computes the final result; meaningful once the session is finished.
func (s *Session) outcome() domain.Outcome {
	return domain.NewOutcome(s.id,
		domain.FinalScore{Player: s.players[0], Score: s.scores[s.players[0].ID]},
		domain.FinalScore{Player: s.players[1], Score: s.scores[s.players[1].ID]},
	)
}

func (s *Session) retractPrompts(ctx context.Context, n Notifier, log *slog.Logger) {
	for _, p := range s.players {
		handle := s.prompts[p.ID]
		delete(s.prompts, p.ID)
		if handle == "" {
			continue
		}
		if err := n.Retract(ctx, p.ID, handle); err != nil {
			log.Warn("retract question failed", "duel", s.id, "participant", p.ID, "error", err)
		}
	}
}

func (s *Session) notify(ctx context.Context, n Notifier, log *slog.Logger, participantID, text string) {
	if err := n.NotifyText(ctx, participantID, text); err != nil {
		log.Warn("notify failed", "duel", s.id, "participant", participantID, "error", err)
	}
}
