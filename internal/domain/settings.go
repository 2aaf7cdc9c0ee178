package domain

import "time"

// Settings holds the fixed parameters of a game room.
type Settings struct {
	MaxPlayers       int
	MinPlayers       int
	QuestionDuration time.Duration
	// DeadlineMargin is added to QuestionDuration before the round is scored.
	DeadlineMargin time.Duration
	WaitingGrace   time.Duration
	CleanupDelay   time.Duration
	ResultsPause   time.Duration
}

// DefaultSettings returns the production parameters.
func DefaultSettings() Settings {
	return Settings{
		MaxPlayers:       12,
		MinPlayers:       1,
		QuestionDuration: 15 * time.Second,
		DeadlineMargin:   50 * time.Millisecond,
		WaitingGrace:     20 * time.Minute,
		CleanupDelay:     2 * time.Minute,
		ResultsPause:     1500 * time.Millisecond,
	}
}
