package domain

import "errors"

var (
	// ErrRoomNotFound is returned when no room is registered under a token.
	ErrRoomNotFound = errors.New("room not found")
	// ErrRoomExists is returned when a token is already taken in the registry.
	ErrRoomExists = errors.New("room already exists")
	// ErrNotManager is returned when a privileged command comes from a non-manager.
	ErrNotManager = errors.New("only the manager can do that")
	// ErrAlreadyStarted is returned when a room is no longer waiting for players.
	ErrAlreadyStarted = errors.New("game already started")
	// ErrRoomFull is returned when the room reached its player capacity.
	ErrRoomFull = errors.New("room is full")
	// ErrInsufficientPlayers is returned when starting below the minimum player count.
	ErrInsufficientPlayers = errors.New("not enough players to start")
	// ErrAlreadyAnswered is returned on a second answer to the same question.
	ErrAlreadyAnswered = errors.New("answer already submitted")
	// ErrTimedOut is returned when no question is accepting answers.
	ErrTimedOut = errors.New("time is up")
	// ErrNotAPlayer is returned when the caller is not part of the room.
	ErrNotAPlayer = errors.New("not a player in this room")
	// ErrNoQuestions indicates the question bank is empty.
	ErrNoQuestions = errors.New("question bank is empty")
)

var codes = []struct {
	err  error
	code string
}{
	{ErrRoomNotFound, "RoomNotFound"},
	{ErrRoomExists, "RoomExists"},
	{ErrNotManager, "NotManager"},
	{ErrAlreadyStarted, "AlreadyStarted"},
	{ErrRoomFull, "RoomFull"},
	{ErrInsufficientPlayers, "InsufficientPlayers"},
	{ErrAlreadyAnswered, "AlreadyAnswered"},
	{ErrTimedOut, "TimedOut"},
	{ErrNotAPlayer, "NotAPlayer"},
	{ErrNoQuestions, "NoQuestions"},
}

// Code maps an error to the reason code sent to clients. Unknown errors map to "Internal".
func Code(err error) string {
	if err == nil {
		return ""
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "Internal"
}
