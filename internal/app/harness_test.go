package app_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"trivia-race-service/internal/app"
	"trivia-race-service/internal/clock"
	"trivia-race-service/internal/domain"
	"trivia-race-service/internal/infra/memory"
)

var epoch = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type harness struct {
	t       *testing.T
	ctx     context.Context
	clock   *clock.Manual
	store   *memory.RoomStore
	events  *recorder
	service *app.GameService
}

func newHarness(t *testing.T, opts ...app.Option) *harness {
	t.Helper()
	h := &harness{
		t:      t,
		ctx:    context.Background(),
		clock:  clock.NewManual(epoch),
		store:  memory.NewRoomStore(),
		events: newRecorder(),
	}
	bank := memory.NewQuestionBank(memory.NewStaticQuestionLoader(testQuestions()), time.Minute)
	base := []app.Option{app.WithClock(h.clock), app.WithTokenGenerator(&sequentialTokens{})}
	h.service = app.NewGameService(h.store, bank, h.events, append(base, opts...)...)
	return h
}

// advance moves the clock and waits until every room processed the timers that fired.
func (h *harness) advance(d time.Duration) {
	h.t.Helper()
	h.clock.Advance(d)
	h.sync()
}

func (h *harness) sync() {
	for _, room := range h.store.Rooms() {
		_, _ = room.Snapshot(h.ctx)
	}
}

func (h *harness) create(playerID, name string) string {
	h.t.Helper()
	res, err := h.service.CreateRoom(h.ctx, playerID, name)
	require.NoError(h.t, err)
	return res.Token
}

func (h *harness) join(token, playerID, name string) domain.JoinResult {
	h.t.Helper()
	res, err := h.service.JoinRoom(h.ctx, token, playerID, name)
	require.NoError(h.t, err)
	return res
}

func (h *harness) state(token string) domain.RoomState {
	h.t.Helper()
	st, err := h.service.RoomState(h.ctx, token)
	require.NoError(h.t, err)
	return st
}

func (h *harness) requireGone(token string) {
	h.t.Helper()
	_, err := h.service.RoomState(h.ctx, token)
	require.ErrorIs(h.t, err, domain.ErrRoomNotFound)
}

func testQuestions() []domain.Question {
	return []domain.Question{
		{ID: 1, Text: "2 + 2?", Options: []string{"A) 3", "B) 4", "C) 5"}, Correct: "B"},
		{ID: 2, Text: "Capital of Spain?", Options: []string{"A) Lisbon", "B) Madrid"}, Correct: "B"},
	}
}

type sequentialTokens struct {
	mu sync.Mutex
	n  int
}

func (s *sequentialTokens) Generate() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("ROOM%02d", s.n)
}

type recorder struct {
	mu     sync.Mutex
	events map[string][]domain.Event
}

func newRecorder() *recorder {
	return &recorder{events: make(map[string][]domain.Event)}
}

func (r *recorder) Send(playerID string, event domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[playerID] = append(r.events[playerID], event)
}

func (r *recorder) of(playerID, eventType string) []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Event
	for _, e := range r.events[playerID] {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

func (r *recorder) last(playerID, eventType string) (domain.Event, bool) {
	events := r.of(playerID, eventType)
	if len(events) == 0 {
		return domain.Event{}, false
	}
	return events[len(events)-1], true
}
