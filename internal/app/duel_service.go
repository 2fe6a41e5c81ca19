package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"quiz-duel-service/internal/domain"
	"quiz-duel-service/internal/metrics"

	"github.com/google/uuid"
)

// QuestionBank supplies questions for new duels.
type QuestionBank interface {
	// Sample returns n distinct questions or an error wrapping domain.ErrBankExhausted.
	Sample(ctx context.Context, n int) ([]domain.Question, error)
}

// RatingStore persists participant records and ratings.
type RatingStore interface {
	EnsureRegistered(ctx context.Context, participantID, displayName string) (bool, domain.Player, error)
	AdjustRating(ctx context.Context, participantID string, delta int) error
	TopN(ctx context.Context, n int) ([]domain.LeaderboardEntry, error)
	GetRating(ctx context.Context, participantID string) (int, error)
}

// Notifier reaches participants over the outer transport. Implementations are
// called while the service lock is held and must not block.
type Notifier interface {
	DeliverQuestion(ctx context.Context, participantID string, number int, prompt string, options []string) (string, error)
	Retract(ctx context.Context, participantID, handle string) error
	NotifyText(ctx context.Context, participantID, text string) error
}

// DuelRegistry tracks live sessions and which participant plays in which duel.
type DuelRegistry interface {
	Create(session *Session) error
	Get(duelID string) (*Session, bool)
	LookupByParticipant(participantID string) (*Session, error)
	Busy(participantID string) bool
	// Touch marks the duel as still live; called on every new round.
	Touch(duelID string)
	Remove(duelID string)
	Len() int
}

// RequestStatus tells the caller what a duel request did.
type RequestStatus int

const (
	Enqueued RequestStatus = iota
	Paired
)

// RequestResult describes the outcome of RequestDuel.
type RequestResult struct {
	Status   RequestStatus
	DuelID   string
	Opponent domain.Player
}

// DuelService matches participants, runs their duels and settles ratings.
// Every event is processed under a single mutex, so the answer that acquires
// the lock first is the one that wins a round.
type DuelService struct {
	mu       sync.Mutex
	queue    *Matchmaker
	registry DuelRegistry
	bank     QuestionBank
	ratings  RatingStore
	notifier Notifier

	settleDelay     time.Duration
	idleTimeout     time.Duration
	leaderboardSize int
	afterFunc       func(time.Duration, func())
	newID           func() string
	now             func() time.Time
	logger          *slog.Logger
	metrics         *metrics.Collector
}

// Option configures a DuelService.
type Option func(*DuelService)

// WithSettleDelay sets the pause between a resolved round and the next question.
func WithSettleDelay(d time.Duration) Option {
	return func(s *DuelService) {
		if d >= 0 {
			s.settleDelay = d
		}
	}
}

// WithIdleTimeout resolves a round unscored after d without a result. Zero disables it.
func WithIdleTimeout(d time.Duration) Option {
	return func(s *DuelService) {
		if d >= 0 {
			s.idleTimeout = d
		}
	}
}

// WithLeaderboardSize sets how many entries Leaderboard returns, capped at domain.MaxLeaderboardSize.
func WithLeaderboardSize(n int) Option {
	return func(s *DuelService) {
		if n > 0 {
			s.leaderboardSize = min(n, domain.MaxLeaderboardSize)
		}
	}
}

// WithScheduler replaces time.AfterFunc; tests use it to step through delays.
func WithScheduler(afterFunc func(time.Duration, func())) Option {
	return func(s *DuelService) {
		if afterFunc != nil {
			s.afterFunc = afterFunc
		}
	}
}

func WithIDGenerator(newID func() string) Option {
	return func(s *DuelService) {
		if newID != nil {
			s.newID = newID
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *DuelService) {
		if now != nil {
			s.now = now
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *DuelService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(c *metrics.Collector) Option {
	return func(s *DuelService) {
		s.metrics = c
	}
}

func NewDuelService(registry DuelRegistry, bank QuestionBank, ratings RatingStore, notifier Notifier, opts ...Option) *DuelService {
	s := &DuelService{
		registry:        registry,
		bank:            bank,
		ratings:         ratings,
		notifier:        notifier,
		settleDelay:     time.Second,
		leaderboardSize: domain.MaxLeaderboardSize,
		afterFunc:       func(d time.Duration, f func()) { time.AfterFunc(d, f) },
		newID:           uuid.NewString,
		now:             time.Now,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.queue = NewMatchmaker(registry.Busy)
	return s
}

// Register creates the participant's rating record on first contact.
func (s *DuelService) Register(ctx context.Context, participantID, displayName string) (bool, domain.Player, error) {
	created, player, err := s.ratings.EnsureRegistered(ctx, participantID, displayName)
	if err != nil {
		return false, domain.Player{}, fmt.Errorf("register %s: %w", participantID, err)
	}
	if created {
		s.logger.Info("participant registered", "participant", participantID)
	}
	return created, player, nil
}

// RequestDuel queues the participant or pairs them with the longest waiting one.
func (s *DuelService) RequestDuel(ctx context.Context, participantID, displayName string) (RequestResult, error) {
	_, player, err := s.Register(ctx, participantID, displayName)
	if err != nil {
		return RequestResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.queue.Check(participantID); err != nil {
		return RequestResult{}, err
	}

	// Questions are drawn before the queue is touched so an exhausted bank
	// leaves both the waiting participant and the registry as they were.
	var questions []domain.Question
	if s.queue.Len() > 0 {
		questions, err = s.bank.Sample(ctx, DuelRounds)
		if err != nil {
			s.logger.Error("cannot start duel", "participant", participantID, "error", err)
			return RequestResult{}, fmt.Errorf("start duel: %w", err)
		}
		if len(questions) < DuelRounds {
			return RequestResult{}, fmt.Errorf("start duel: %w: got %d questions", domain.ErrBankExhausted, len(questions))
		}
	}

	match, err := s.queue.Request(player)
	if err != nil {
		return RequestResult{}, err
	}
	if !match.Paired {
		s.metrics.Occupancy(s.queue.Len(), s.registry.Len())
		return RequestResult{Status: Enqueued}, nil
	}

	session := newSession(s.newID(), [2]domain.Player{match.Opponent, player}, questions[:DuelRounds], s.now())
	if err := s.registry.Create(session); err != nil {
		s.queue.restore(match.Opponent)
		return RequestResult{}, err
	}
	s.logger.Info("duel started", "duel", session.ID(), "first", match.Opponent.ID, "second", participantID)
	s.metrics.DuelStarted()
	s.metrics.Occupancy(s.queue.Len(), s.registry.Len())

	session.notify(ctx, s.notifier, s.logger, match.Opponent.ID, "Duel started with @"+player.Label()+"!")
	session.notify(ctx, s.notifier, s.logger, participantID, "Duel started with @"+match.Opponent.Label()+"!")
	session.deliver(ctx, s.notifier, s.logger)
	s.scheduleIdleLocked(session)

	return RequestResult{Status: Paired, DuelID: session.ID(), Opponent: match.Opponent}, nil
}

// Withdraw removes a participant from the waiting queue. Live duels are unaffected.
func (s *DuelService) Withdraw(_ context.Context, participantID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := s.queue.Withdraw(participantID)
	if removed {
		s.metrics.Occupancy(s.queue.Len(), s.registry.Len())
	}
	return removed
}

// SubmitAnswer applies a participant's choice for the prompt identified by token.
// Stale or duplicate submissions return domain.ErrStaleAnswer and change nothing.
func (s *DuelService) SubmitAnswer(ctx context.Context, participantID, option, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.registry.LookupByParticipant(participantID)
	if err != nil {
		return err
	}
	res, err := session.submit(ctx, s.notifier, s.logger, participantID, option, token)
	if err != nil {
		if errors.Is(err, domain.ErrStaleAnswer) {
			s.metrics.StaleAnswer()
		}
		return err
	}
	switch res {
	case roundScored:
		s.metrics.RoundResolved(metrics.RoundScored)
		s.scheduleAdvanceLocked(session.ID())
	case roundUnscored:
		s.metrics.RoundResolved(metrics.RoundUnscored)
		s.scheduleAdvanceLocked(session.ID())
	}
	return nil
}

// Leaderboard returns the top participants by rating.
func (s *DuelService) Leaderboard(ctx context.Context) ([]domain.LeaderboardEntry, error) {
	entries, err := s.ratings.TopN(ctx, s.leaderboardSize)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, nil
}

// Rating returns the participant's rating and title, or domain.ErrNotRegistered.
func (s *DuelService) Rating(ctx context.Context, participantID string) (domain.RatingCard, error) {
	rating, err := s.ratings.GetRating(ctx, participantID)
	if err != nil {
		return domain.RatingCard{}, err
	}
	return domain.RatingCard{PlayerID: participantID, Rating: rating, Title: domain.Title(rating)}, nil
}

// Waiting lists queued participant IDs, head first.
func (s *DuelService) Waiting() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Waiting()
}

// ActiveDuels returns the number of live duels.
func (s *DuelService) ActiveDuels() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry.Len()
}

// scheduleAdvanceLocked queues the move to the next round after the settle delay.
// The scheduler never runs f synchronously, so holding the lock here is safe.
func (s *DuelService) scheduleAdvanceLocked(duelID string) {
	s.afterFunc(s.settleDelay, func() { s.advance(duelID) })
}

func (s *DuelService) scheduleIdleLocked(session *Session) {
	if s.idleTimeout <= 0 {
		return
	}
	duelID, round := session.ID(), session.Round()
	s.afterFunc(s.idleTimeout, func() { s.expireRound(duelID, round) })
}

func (s *DuelService) advance(duelID string) {
	ctx := context.Background()

	s.mu.Lock()
	session, ok := s.registry.Get(duelID)
	if !ok || session.State() == StateFinished {
		s.mu.Unlock()
		return
	}
	if !session.advance(ctx, s.notifier, s.logger) {
		s.registry.Touch(duelID)
		s.scheduleIdleLocked(session)
		s.mu.Unlock()
		return
	}
	outcome := session.outcome()
	elapsed := s.now().Sub(session.startedAt)
	s.mu.Unlock()

	// The finished session stays registered until ratings are settled and the
	// result is announced; its participants cannot queue again before that.
	s.finish(ctx, outcome, elapsed)

	s.mu.Lock()
	s.registry.Remove(duelID)
	s.metrics.Occupancy(s.queue.Len(), s.registry.Len())
	s.mu.Unlock()
}

func (s *DuelService) expireRound(duelID string, round int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.registry.Get(duelID)
	if !ok {
		return
	}
	if session.expire(context.Background(), s.notifier, s.logger, round) {
		s.logger.Info("round timed out", "duel", duelID, "round", round)
		s.metrics.RoundResolved(metrics.RoundTimedOut)
		s.scheduleAdvanceLocked(duelID)
	}
}

// finish settles ratings and announces the result.
func (s *DuelService) finish(ctx context.Context, outcome domain.Outcome, elapsed time.Duration) {
	if !outcome.Tie() {
		deltas := outcome.RatingDeltas()
		for _, id := range []string{outcome.WinnerID, outcome.LoserID} {
			if err := s.ratings.AdjustRating(ctx, id, deltas[id]); err != nil {
				s.logger.Error("adjust rating failed", "duel", outcome.DuelID, "participant", id, "error", err)
			}
		}
	}
	s.metrics.DuelFinished(outcome.Tie(), elapsed)
	s.logger.Info("duel finished", "duel", outcome.DuelID, "winner", outcome.WinnerID, "tie", outcome.Tie(),
		"duration", elapsed)

	summary := outcome.Summary()
	for _, fs := range outcome.Players {
		if err := s.notifier.NotifyText(ctx, fs.Player.ID, summary); err != nil {
			s.logger.Warn("notify failed", "duel", outcome.DuelID, "participant", fs.Player.ID, "error", err)
		}
	}
}
