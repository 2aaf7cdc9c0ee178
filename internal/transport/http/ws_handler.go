package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"trivia-race-service/internal/app"
	"trivia-race-service/internal/domain"
)

const (
	commandsPerSecond = 5
	commandBurst      = 10
)

type WSHandler struct {
	service  *app.GameService
	hub      *Hub
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.GameService, hub *Hub, log zerolog.Logger) *WSHandler {
	return &WSHandler{
		service: service,
		hub:     hub,
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type createPayload struct {
	Name string `json:"name"`
}

type joinPayload struct {
	Token string `json:"token"`
	Name  string `json:"name"`
}

type tokenPayload struct {
	Token string `json:"token"`
}

type answerPayload struct {
	Token  string `json:"token"`
	Option string `json:"option"`
}

// commandResult is the direct reply to one inbound command.
type commandResult struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	Code  string `json:"code,omitempty"`
	*domain.JoinResult
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type helloPayload struct {
	PlayerID string `json:"playerId"`
}

type errorPayload struct {
	Message string `json:"message"`
}

var errBadPayload = errors.New("invalid payload")

// ServeWS upgrades HTTP requests to websockets. Each connection is one player identity.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	playerID := uuid.NewString()
	log := h.log.With().Str("player", playerID).Logger()
	events := h.hub.register(playerID)

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	eventsDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Debug().Err(err).Msg("ws write error")
				// unblock the reader and keep draining so senders never stall
				_ = conn.Close()
				for range send {
				}
				return
			}
		}
	}()

	go func() {
		defer close(eventsDone)
		for {
			select {
			case event, ok := <-events:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: event.Type, Payload: event.Payload}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	send <- outboundMessage[any]{Type: "session:hello", Payload: helloPayload{PlayerID: playerID}}
	log.Debug().Msg("connection opened")

	limiter := rate.NewLimiter(commandsPerSecond, commandBurst)
	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if !limiter.Allow() {
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "too many messages"}}
			continue
		}
		reply, ok := h.dispatch(r.Context(), playerID, inbound)
		if !ok {
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
			continue
		}
		send <- outboundMessage[any]{Type: inbound.Type + ":result", Payload: reply}
	}

	log.Debug().Strs("rooms", h.service.Memberships(playerID)).Msg("leaving rooms")
	h.service.Disconnect(context.Background(), playerID)
	h.hub.unregister(playerID)
	close(closeSignals)
	<-eventsDone
	close(send)
	<-writerDone
	log.Debug().Msg("connection closed")
}

func (h *WSHandler) dispatch(ctx context.Context, playerID string, msg inboundMessage) (commandResult, bool) {
	switch msg.Type {
	case "room:create":
		var p createPayload
		if err := decode(msg.Payload, &p); err != nil {
			return failure(err), true
		}
		res, err := h.service.CreateRoom(ctx, playerID, p.Name)
		return joined(res, err), true
	case "room:join":
		var p joinPayload
		if err := decode(msg.Payload, &p); err != nil {
			return failure(err), true
		}
		res, err := h.service.JoinRoom(ctx, p.Token, playerID, p.Name)
		return joined(res, err), true
	case "game:start":
		var p tokenPayload
		if err := decode(msg.Payload, &p); err != nil {
			return failure(err), true
		}
		return outcome(h.service.StartGame(ctx, p.Token, playerID)), true
	case "game:answer":
		var p answerPayload
		if err := decode(msg.Payload, &p); err != nil {
			return failure(err), true
		}
		return outcome(h.service.SubmitAnswer(ctx, p.Token, playerID, p.Option)), true
	case "game:restart":
		var p tokenPayload
		if err := decode(msg.Payload, &p); err != nil {
			return failure(err), true
		}
		return outcome(h.service.RestartGame(ctx, p.Token, playerID)), true
	default:
		return commandResult{}, false
	}
}

// ServeRoomState serves GET /rooms/{token}.
func (h *WSHandler) ServeRoomState(w http.ResponseWriter, r *http.Request) {
	state, err := h.service.RoomState(r.Context(), r.PathValue("token"))
	if errors.Is(err, domain.ErrRoomNotFound) {
		writeJSON(w, http.StatusNotFound, failure(err))
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, failure(err))
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func decode(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return errBadPayload
	}
	return nil
}

func joined(res domain.JoinResult, err error) commandResult {
	if err != nil {
		return failure(err)
	}
	return commandResult{OK: true, JoinResult: &res}
}

func outcome(err error) commandResult {
	if err != nil {
		return failure(err)
	}
	return commandResult{OK: true}
}

func failure(err error) commandResult {
	code := domain.Code(err)
	if errors.Is(err, errBadPayload) {
		code = "BadRequest"
	}
	return commandResult{OK: false, Error: err.Error(), Code: code}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
