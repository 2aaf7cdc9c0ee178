package domain

// Event types pushed to connected players.
const (
	EventRoomState   = "room:state"
	EventGraceInfo   = "room:grace-info"
	EventRoomExpired = "room:expired"
	EventQuestion    = "game:question"
	EventQuestionEnd = "game:question:end"
	EventResults     = "game:results"
	EventAnswerAck   = "game:answer:ack"
)

// Event is an outbound message addressed to one player.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// GraceInfo tells the manager how long the room may stay in the waiting phase.
type GraceInfo struct {
	Minutes   int   `json:"minutes"`
	ExpiresAt int64 `json:"expiresAt"`
}

// QuestionView is the part of a question players are allowed to see.
type QuestionView struct {
	Text    string   `json:"text"`
	Options []string `json:"options"`
}

// QuestionBegin announces a new question round.
type QuestionBegin struct {
	Index       int          `json:"index"`
	Total       int          `json:"total"`
	Question    QuestionView `json:"question"`
	StartTs     int64        `json:"startTs"`
	DurationSec int          `json:"durationSec"`
}

// QuestionEnd reveals the correct option and who scored.
type QuestionEnd struct {
	Index   int     `json:"index"`
	Correct string  `json:"correct"`
	Scored  []Award `json:"scored"`
}

// Results carries the final standings, highest score first.
type Results struct {
	Players []Player `json:"players"`
}

// Expired is sent right before a room is dropped.
type Expired struct {
	Reason string `json:"reason"`
}

// AnswerAck confirms an accepted answer to its sender.
type AnswerAck struct {
	OK bool `json:"ok"`
}
