package domain

import "errors"

var (
	// ErrAlreadyQueued is returned when a participant asks for a duel while already waiting.
	ErrAlreadyQueued = errors.New("participant already waiting for a duel")
	// ErrAlreadyInDuel is returned when a participant asks for a duel while one is running.
	ErrAlreadyInDuel = errors.New("participant already in a duel")
	// ErrParticipantBusy is returned by the registry when a participant already maps to a duel.
	ErrParticipantBusy = errors.New("participant busy in another duel")
	// ErrNotInDuel indicates the participant has no live duel.
	ErrNotInDuel = errors.New("participant not in a duel")
	// ErrStaleAnswer marks a submission for a prompt that is no longer answerable.
	ErrStaleAnswer = errors.New("stale answer")
	// ErrNotRegistered indicates the participant has no rating record.
	ErrNotRegistered = errors.New("participant not registered")
	// ErrBankExhausted means the question bank cannot supply enough distinct questions.
	ErrBankExhausted = errors.New("question bank exhausted")
	// ErrInvalidQuestion indicates malformed question content.
	ErrInvalidQuestion = errors.New("invalid question")
	// ErrNotConnected is returned by notifiers when the participant has no open channel.
	ErrNotConnected = errors.New("participant not connected")
)
