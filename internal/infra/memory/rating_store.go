package memory

import (
	"context"
	"sort"
	"sync"

	"quiz-duel-service/internal/domain"
)

// RatingStore keeps participant records in process memory.
type RatingStore struct {
	mu      sync.RWMutex
	players map[string]*ratingRecord
	nextSeq int
}

type ratingRecord struct {
	player domain.Player
	seq    int
}

func NewRatingStore() *RatingStore {
	return &RatingStore{players: make(map[string]*ratingRecord)}
}

// EnsureRegistered returns the existing record or creates one with the default rating.
func (s *RatingStore) EnsureRegistered(_ context.Context, participantID, displayName string) (bool, domain.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.players[participantID]; ok {
		return false, rec.player, nil
	}
	s.nextSeq++
	rec := &ratingRecord{
		player: domain.Player{ID: participantID, DisplayName: displayName, Rating: domain.DefaultRating},
		seq:    s.nextSeq,
	}
	s.players[participantID] = rec
	return true, rec.player, nil
}

func (s *RatingStore) AdjustRating(_ context.Context, participantID string, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.players[participantID]
	if !ok {
		return domain.ErrNotRegistered
	}
	rec.player.Rating += delta
	return nil
}

// TopN orders by rating descending; equal ratings keep registration order.
func (s *RatingStore) TopN(_ context.Context, n int) ([]domain.LeaderboardEntry, error) {
	s.mu.RLock()
	records := make([]ratingRecord, 0, len(s.players))
	for _, rec := range s.players {
		records = append(records, *rec)
	}
	s.mu.RUnlock()

	sort.Slice(records, func(i, j int) bool {
		if records[i].player.Rating != records[j].player.Rating {
			return records[i].player.Rating > records[j].player.Rating
		}
		return records[i].seq < records[j].seq
	})
	if n >= 0 && len(records) > n {
		records = records[:n]
	}

	entries := make([]domain.LeaderboardEntry, len(records))
	for i, rec := range records {
		entries[i] = domain.LeaderboardEntry{
			Rank:        i + 1,
			PlayerID:    rec.player.ID,
			DisplayName: rec.player.DisplayName,
			Rating:      rec.player.Rating,
		}
	}
	return entries, nil
}

func (s *RatingStore) GetRating(_ context.Context, participantID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.players[participantID]
	if !ok {
		return 0, domain.ErrNotRegistered
	}
	return rec.player.Rating, nil
}
