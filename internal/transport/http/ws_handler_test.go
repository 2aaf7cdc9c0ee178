package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trivia-race-service/internal/app"
	"trivia-race-service/internal/clock"
	"trivia-race-service/internal/domain"
	"trivia-race-service/internal/infra/memory"
)

type testServer struct {
	*httptest.Server
	clock *clock.Manual
	hub   *Hub
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	manual := clock.NewManual(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	hub := NewHub(zerolog.Nop())
	bank := memory.NewQuestionBank(memory.NewStaticQuestionLoader(sampleQuestions()), time.Minute)
	service := app.NewGameService(memory.NewRoomStore(), bank, hub, app.WithClock(manual))
	wsHandler := NewWSHandler(service, hub, zerolog.Nop())

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	mux.HandleFunc("GET /rooms/{token}", wsHandler.ServeRoomState)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return &testServer{Server: server, clock: manual, hub: hub}
}

type message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type client struct {
	t        *testing.T
	conn     *websocket.Conn
	playerID string
	backlog  []message
}

func (s *testServer) dial(t *testing.T) *client {
	t.Helper()
	u := "ws" + strings.TrimPrefix(s.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	c := &client{t: t, conn: conn}
	var hello helloPayload
	c.await("session:hello", &hello)
	require.NotEmpty(t, hello.PlayerID)
	c.playerID = hello.PlayerID
	return c
}

func (c *client) send(typ string, payload any) {
	c.t.Helper()
	require.NoError(c.t, c.conn.WriteJSON(map[string]any{"type": typ, "payload": payload}))
}

// await returns the oldest unseen message of the given type, decoding its payload into v.
// Messages of other types are kept for later calls.
func (c *client) await(typ string, v any) {
	c.t.Helper()
	msg := c.next(typ)
	if v != nil {
		require.NoError(c.t, json.Unmarshal(msg.Payload, v))
	}
}

func (c *client) next(typ string) message {
	c.t.Helper()
	for i, msg := range c.backlog {
		if msg.Type == typ {
			c.backlog = append(c.backlog[:i], c.backlog[i+1:]...)
			return msg
		}
	}
	for {
		_ = c.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var msg message
		require.NoError(c.t, c.conn.ReadJSON(&msg), "waiting for %s", typ)
		if msg.Type == typ {
			return msg
		}
		c.backlog = append(c.backlog, msg)
	}
}

type result struct {
	OK        bool          `json:"ok"`
	Error     string        `json:"error"`
	Code      string        `json:"code"`
	Token     string        `json:"token"`
	IsManager bool          `json:"isManager"`
	Player    domain.Player `json:"player"`
}

func (c *client) command(typ string, payload any) result {
	c.t.Helper()
	c.send(typ, payload)
	var res result
	c.await(typ+":result", &res)
	return res
}

func TestWebSocketGameFlow(t *testing.T) {
	srv := newTestServer(t)
	alice := srv.dial(t)
	bob := srv.dial(t)

	created := alice.command("room:create", map[string]any{"name": "Alice"})
	require.True(t, created.OK, created.Error)
	assert.True(t, created.IsManager)
	assert.Equal(t, alice.playerID, created.Player.ID)
	assert.Len(t, created.Token, app.TokenLength)

	joinedRes := bob.command("room:join", map[string]any{"token": created.Token, "name": "Bob"})
	require.True(t, joinedRes.OK, joinedRes.Error)
	assert.False(t, joinedRes.IsManager)

	notManager := bob.command("game:start", map[string]any{"token": created.Token})
	assert.False(t, notManager.OK)
	assert.Equal(t, "NotManager", notManager.Code)

	started := alice.command("game:start", map[string]any{"token": created.Token})
	require.True(t, started.OK, started.Error)

	var question domain.QuestionBegin
	bob.await(domain.EventQuestion, &question)
	assert.Equal(t, 0, question.Index)
	assert.Equal(t, 1, question.Total)

	answered := bob.command("game:answer", map[string]any{"token": created.Token, "option": "b"})
	require.True(t, answered.OK, answered.Error)
	var ack domain.AnswerAck
	bob.await(domain.EventAnswerAck, &ack)
	assert.True(t, ack.OK)

	again := bob.command("game:answer", map[string]any{"token": created.Token, "option": "b"})
	assert.Equal(t, "AlreadyAnswered", again.Code)

	srv.clock.Advance(15*time.Second + 50*time.Millisecond)
	var end domain.QuestionEnd
	alice.await(domain.EventQuestionEnd, &end)
	assert.Equal(t, "B", end.Correct)
	require.Len(t, end.Scored, 1)
	assert.Equal(t, domain.Award{PlayerID: bob.playerID, Points: 20}, end.Scored[0])

	srv.clock.Advance(1500 * time.Millisecond)
	var final domain.Results
	alice.await(domain.EventResults, &final)
	require.Len(t, final.Players, 2)
	assert.Equal(t, bob.playerID, final.Players[0].ID)
	assert.Equal(t, 20, final.Players[0].Score)

	restarted := alice.command("game:restart", map[string]any{"token": created.Token})
	require.True(t, restarted.OK, restarted.Error)
	var grace domain.GraceInfo
	alice.await(domain.EventGraceInfo, &grace)
	assert.Equal(t, 20, grace.Minutes)
}

func TestWebSocketDisconnectHandsOverManager(t *testing.T) {
	srv := newTestServer(t)
	alice := srv.dial(t)
	bob := srv.dial(t)

	created := alice.command("room:create", map[string]any{"name": "Alice"})
	require.True(t, created.OK)
	require.True(t, bob.command("room:join", map[string]any{"token": created.Token, "name": "Bob"}).OK)

	require.NoError(t, alice.conn.Close())

	for {
		var state domain.RoomState
		bob.await(domain.EventRoomState, &state)
		if len(state.Players) != 1 {
			continue
		}
		require.NotNil(t, state.ManagerID)
		assert.Equal(t, bob.playerID, *state.ManagerID)
		break
	}
	assert.Eventually(t, func() bool { return srv.hub.Connected() == 1 }, time.Second, 10*time.Millisecond)
}

func TestWebSocketErrors(t *testing.T) {
	srv := newTestServer(t)
	alice := srv.dial(t)

	missing := alice.command("room:join", map[string]any{"token": "NOPE00", "name": "Alice"})
	assert.False(t, missing.OK)
	assert.Equal(t, "RoomNotFound", missing.Code)

	alice.send("room:join", "not an object")
	var bad result
	alice.await("room:join:result", &bad)
	assert.Equal(t, "BadRequest", bad.Code)

	alice.send("room:dance", map[string]any{})
	var unsupported errorPayload
	alice.await("error", &unsupported)
	assert.Equal(t, "unsupported message type", unsupported.Message)
}

func TestRoomStateEndpoint(t *testing.T) {
	srv := newTestServer(t)
	alice := srv.dial(t)
	created := alice.command("room:create", map[string]any{"name": "Alice"})
	require.True(t, created.OK)

	resp, err := http.Get(srv.URL + "/rooms/" + created.Token)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var state domain.RoomState
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&state))
	assert.Equal(t, created.Token, state.Token)
	assert.Equal(t, domain.PhaseWaiting, state.State)
	assert.Equal(t, -1, state.CurrentQuestionIndex)

	missing, err := http.Get(srv.URL + "/rooms/NOPE00")
	require.NoError(t, err)
	defer missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func sampleQuestions() []domain.Question {
	return []domain.Question{
		{ID: 1, Text: "What is 2 + 2?", Options: []string{"A) 3", "B) 4", "C) 5"}, Correct: "B"},
	}
}
