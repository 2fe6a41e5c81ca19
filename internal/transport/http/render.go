package http

import (
	"fmt"
	"strings"

	"quiz-duel-service/internal/domain"
)

const (
	welcomeText        = "Welcome to the Quiz Duel Bot!"
	welcomeBackText    = "Welcome back to the Quiz Duel Bot!"
	waitingText        = "Waiting for an opponent..."
	alreadyWaitingText = "You are already waiting for a duel!"
	alreadyInDuelText  = "You are already in a duel!"
	notRegisteredText  = "You are not registered yet. Send start to register."
	noDuelText         = "You are not in a duel."
	bankExhaustedText  = "Not enough questions to start a duel right now."
)

type leaderboardPayload struct {
	Entries []domain.LeaderboardEntry `json:"entries"`
	Text    string                    `json:"text"`
}

type ratingPayload struct {
	Rating int    `json:"rating"`
	Title  string `json:"title"`
	Text   string `json:"text"`
}

func leaderboardText(entries []domain.LeaderboardEntry) string {
	var b strings.Builder
	b.WriteString("🏆 Leaderboard 🏆\n\n")
	for _, e := range entries {
		name := e.DisplayName
		if name == "" {
			name = "Anonymous"
		}
		fmt.Fprintf(&b, "%d. @%s - %d\n", e.Rank, name, e.Rating)
	}
	return b.String()
}

func ratingText(card domain.RatingCard) string {
	return fmt.Sprintf("Your rating: %d\nYour title: %s", card.Rating, card.Title)
}
