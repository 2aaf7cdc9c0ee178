package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

// Phase is the lifecycle stage of a room.
type Phase string

const (
	PhaseWaiting    Phase = "waiting"
	PhaseInProgress Phase = "in_progress"
	PhaseResults    Phase = "results"
)

const (
	// DefaultPlayerName replaces empty display names.
	DefaultPlayerName = "Jugador"
	// MaxNameLength is measured in runes.
	MaxNameLength = 24
)

// Player is a participant of one room. IDs come from the connection layer.
type Player struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// Answer is a player's submission for the active question.
type Answer struct {
	Option  string
	At      time.Time
	Correct bool
	Seq     int // arrival order within the question
}

// Question is a multiple choice question; Correct holds the option key (e.g. "B").
type Question struct {
	ID      int      `json:"id" yaml:"id"`
	Text    string   `json:"text" yaml:"text"`
	Options []string `json:"options" yaml:"options"`
	Correct string   `json:"correct" yaml:"correct"`
}

// Award is the number of points given to a player for one question.
type Award struct {
	PlayerID string `json:"playerId"`
	Points   int    `json:"points"`
}

// RoomState is the public view of a room. It never carries answers.
type RoomState struct {
	Token                string   `json:"token"`
	State                Phase    `json:"state"`
	Players              []Player `json:"players"`
	ManagerID            *string  `json:"managerId"`
	CurrentQuestionIndex int      `json:"currentQuestionIndex"`
	QuestionStartTs      *int64   `json:"questionStartTs"`
	TimePerQuestion      int      `json:"timePerQuestion"`
}

// JoinResult is returned to the connection that created or joined a room.
type JoinResult struct {
	Token     string `json:"token"`
	IsManager bool   `json:"isManager"`
	Player    Player `json:"player"`
}

// SanitizeName trims the display name, falls back to DefaultPlayerName and caps its length.
func SanitizeName(name string) string {
	n := strings.TrimSpace(name)
	if n == "" {
		return DefaultPlayerName
	}
	if utf8.RuneCountInString(n) > MaxNameLength {
		n = string([]rune(n)[:MaxNameLength])
	}
	return n
}

// NormalizeOption upper-cases and trims a submitted option key.
func NormalizeOption(option string) string {
	return strings.ToUpper(strings.TrimSpace(option))
}

// UnixMilli returns t in unix milliseconds, or nil for the zero time.
func UnixMilli(t time.Time) *int64 {
	if t.IsZero() {
		return nil
	}
	ms := t.UnixMilli()
	return &ms
}
