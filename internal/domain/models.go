package domain

import "fmt"

// DefaultRating is assigned to participants on first contact.
const DefaultRating = 1000

// MaxLeaderboardSize caps how many entries a leaderboard shows.
const MaxLeaderboardSize = 10

// Player is a participant record as held by the rating store.
type Player struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Rating      int    `json:"rating"`
}

// Label is the name shown to other participants.
func (p Player) Label() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return "player " + p.ID
}

// LeaderboardEntry is one row of the global rating leaderboard.
type LeaderboardEntry struct {
	Rank        int    `json:"rank"`
	PlayerID    string `json:"playerId"`
	DisplayName string `json:"displayName"`
	Rating      int    `json:"rating"`
}

// RatingCard is a participant's rating along with the derived title.
type RatingCard struct {
	PlayerID string `json:"playerId"`
	Rating   int    `json:"rating"`
	Title    string `json:"title"`
}

// Question models a multiple-choice trivia question with exactly one correct option.
type Question struct {
	ID      string   `json:"id" yaml:"id"`
	Prompt  string   `json:"prompt" yaml:"prompt"`
	Options []string `json:"options" yaml:"options"`
	Answer  string   `json:"answer" yaml:"answer"`
}

// Validate checks the question is answerable.
func (q Question) Validate() error {
	if q.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidQuestion)
	}
	if q.Prompt == "" {
		return fmt.Errorf("%w: %s has no prompt", ErrInvalidQuestion, q.ID)
	}
	if len(q.Options) < 2 {
		return fmt.Errorf("%w: %s needs at least two options", ErrInvalidQuestion, q.ID)
	}
	seen := make(map[string]struct{}, len(q.Options))
	found := false
	for _, opt := range q.Options {
		if _, dup := seen[opt]; dup {
			return fmt.Errorf("%w: %s repeats option %q", ErrInvalidQuestion, q.ID, opt)
		}
		seen[opt] = struct{}{}
		if opt == q.Answer {
			found = true
		}
	}
	if !found {
		return fmt.Errorf("%w: %s answer is not an option", ErrInvalidQuestion, q.ID)
	}
	return nil
}
