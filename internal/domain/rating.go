package domain

import "fmt"

// RatingDelta is the flat amount a duel winner gains and the loser gives up.
const RatingDelta = 10

// Title derives the display title for a rating, highest threshold first.
func Title(rating int) string {
	switch {
	case rating >= 2000:
		return "Grandmaster"
	case rating >= 1800:
		return "Master"
	case rating >= 1600:
		return "Expert"
	case rating >= 1400:
		return "Apprentice"
	default:
		return "Novice"
	}
}

// FinalScore is one participant's score at the end of a duel.
type FinalScore struct {
	Player Player `json:"player"`
	Score  int    `json:"score"`
}

// Outcome is the result of a finished duel.
type Outcome struct {
	DuelID   string        `json:"duelId"`
	Players  [2]FinalScore `json:"players"`
	WinnerID string        `json:"winnerId,omitempty"`
	LoserID  string        `json:"loserId,omitempty"`
}

// NewOutcome compares the two final scores. Equal scores produce a tie.
func NewOutcome(duelID string, first, second FinalScore) Outcome {
	o := Outcome{DuelID: duelID, Players: [2]FinalScore{first, second}}
	switch {
	case first.Score > second.Score:
		o.WinnerID, o.LoserID = first.Player.ID, second.Player.ID
	case second.Score > first.Score:
		o.WinnerID, o.LoserID = second.Player.ID, first.Player.ID
	}
	return o
}

// Tie reports whether neither participant won.
func (o Outcome) Tie() bool {
	return o.WinnerID == ""
}

// RatingDeltas returns the rating change per participant; the values always sum to zero.
func (o Outcome) RatingDeltas() map[string]int {
	deltas := map[string]int{
		o.Players[0].Player.ID: 0,
		o.Players[1].Player.ID: 0,
	}
	if o.Tie() {
		return deltas
	}
	deltas[o.WinnerID] = RatingDelta
	deltas[o.LoserID] = -RatingDelta
	return deltas
}

// Summary is the closing message sent to both participants.
func (o Outcome) Summary() string {
	if o.Tie() {
		return fmt.Sprintf("Duel over! It's a tie with a score of %d to %d.", o.Players[0].Score, o.Players[1].Score)
	}
	winner, loser := o.Players[0], o.Players[1]
	if winner.Player.ID != o.WinnerID {
		winner, loser = loser, winner
	}
	return fmt.Sprintf("Duel over! %s wins with a score of %d to %d.", winner.Player.Label(), winner.Score, loser.Score)
}
