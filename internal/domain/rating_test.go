package domain

import (
	"errors"
	"testing"
)

func TestTitleThresholds(t *testing.T) {
	cases := map[int]string{
		2100: "Grandmaster",
		2000: "Grandmaster",
		1999: "Master",
		1800: "Master",
		1600: "Expert",
		1400: "Apprentice",
		1399: "Novice",
		1000: "Novice",
		-20:  "Novice",
	}
	for rating, want := range cases {
		if got := Title(rating); got != want {
			t.Fatalf("Title(%d) = %s, want %s", rating, got, want)
		}
	}
}

func TestOutcomeWinnerDeltasSumToZero(t *testing.T) {
	alice := Player{ID: "a", DisplayName: "Alice"}
	bob := Player{ID: "b", DisplayName: "Bob"}

	o := NewOutcome("d1", FinalScore{Player: alice, Score: 1}, FinalScore{Player: bob, Score: 2})
	if o.Tie() || o.WinnerID != "b" || o.LoserID != "a" {
		t.Fatalf("expected bob to win, got %+v", o)
	}
	deltas := o.RatingDeltas()
	if deltas["b"] != RatingDelta || deltas["a"] != -RatingDelta {
		t.Fatalf("unexpected deltas %v", deltas)
	}
	if deltas["a"]+deltas["b"] != 0 {
		t.Fatalf("deltas must sum to zero: %v", deltas)
	}
	if got, want := o.Summary(), "Duel over! Bob wins with a score of 2 to 1."; got != want {
		t.Fatalf("summary = %q, want %q", got, want)
	}
}

func TestOutcomeTieLeavesRatings(t *testing.T) {
	o := NewOutcome("d1", FinalScore{Player: Player{ID: "a"}, Score: 1}, FinalScore{Player: Player{ID: "b"}, Score: 1})
	if !o.Tie() {
		t.Fatalf("expected tie")
	}
	for id, d := range o.RatingDeltas() {
		if d != 0 {
			t.Fatalf("expected no change for %s, got %d", id, d)
		}
	}
	if got, want := o.Summary(), "Duel over! It's a tie with a score of 1 to 1."; got != want {
		t.Fatalf("summary = %q, want %q", got, want)
	}
}

func TestQuestionValidate(t *testing.T) {
	ok := Question{ID: "q1", Prompt: "2+2?", Options: []string{"3", "4"}, Answer: "4"}
	if err := ok.Validate(); err != nil {
		t.Fatalf("expected valid question, got %v", err)
	}

	bad := []Question{
		{Prompt: "x", Options: []string{"a", "b"}, Answer: "a"},
		{ID: "q", Options: []string{"a", "b"}, Answer: "a"},
		{ID: "q", Prompt: "x", Options: []string{"a"}, Answer: "a"},
		{ID: "q", Prompt: "x", Options: []string{"a", "a"}, Answer: "a"},
		{ID: "q", Prompt: "x", Options: []string{"a", "b"}, Answer: "c"},
	}
	for i, q := range bad {
		if err := q.Validate(); !errors.Is(err, ErrInvalidQuestion) {
			t.Fatalf("case %d: expected ErrInvalidQuestion, got %v", i, err)
		}
	}
}
