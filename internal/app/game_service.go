package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"trivia-race-service/internal/clock"
	"trivia-race-service/internal/domain"
)

// Notifier delivers events to connected players. Send must not block.
type Notifier interface {
	Send(playerID string, event domain.Event)
}

// QuestionBank provides the ordered questions a new room plays with.
type QuestionBank interface {
	Questions(ctx context.Context) ([]domain.Question, error)
}

// RoomRegistry abstracts where live rooms are indexed (in-memory, Redis-backed, etc).
type RoomRegistry interface {
	// Create registers room under its token; it fails with domain.ErrRoomExists if the token is taken.
	Create(ctx context.Context, room *Room) error
	Get(token string) (*Room, bool)
	Remove(token string)
	// Rooms returns a snapshot of every registered room.
	Rooms() []*Room
	Len() int
}

// TokenGenerator produces candidate room tokens.
type TokenGenerator interface {
	Generate() string
}

const maxTokenAttempts = 8

// GameService exposes the commands connections issue against rooms.
type GameService struct {
	rooms     RoomRegistry
	questions QuestionBank
	notifier  Notifier
	tokens    TokenGenerator
	settings  domain.Settings
	clock     clock.Clock
	log       zerolog.Logger

	mu sync.Mutex
	// player id -> token -> room, for rooms the player joined on this connection
	memberships map[string]map[string]*Room
}

// Option customizes a GameService.
type Option func(*GameService)

// WithSettings overrides the default game parameters.
func WithSettings(settings domain.Settings) Option {
	return func(s *GameService) { s.settings = settings }
}

// WithClock replaces wall time; tests use a manual clock to drive room timers.
func WithClock(c clock.Clock) Option {
	return func(s *GameService) { s.clock = c }
}

// WithTokenGenerator replaces the random token source.
func WithTokenGenerator(tokens TokenGenerator) Option {
	return func(s *GameService) { s.tokens = tokens }
}

// WithLogger sets the parent logger for rooms.
func WithLogger(log zerolog.Logger) Option {
	return func(s *GameService) { s.log = log }
}

func NewGameService(rooms RoomRegistry, questions QuestionBank, notifier Notifier, opts ...Option) *GameService {
	s := &GameService{
		rooms:     rooms,
		questions: questions,
		notifier:  notifier,
		tokens:    NewTokenGenerator(),
		settings:  domain.DefaultSettings(),
		clock:     clock.Real(),
		log:       zerolog.Nop(),

		memberships: make(map[string]map[string]*Room),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateRoom opens a room under a fresh token and joins the caller as its manager.
func (s *GameService) CreateRoom(ctx context.Context, playerID, name string) (domain.JoinResult, error) {
	bank, err := s.questions.Questions(ctx)
	if err != nil {
		return domain.JoinResult{}, fmt.Errorf("load questions: %w", err)
	}
	if len(bank) == 0 {
		return domain.JoinResult{}, domain.ErrNoQuestions
	}

	for attempt := 0; attempt < maxTokenAttempts; attempt++ {
		room := s.newRoom(s.tokens.Generate(), bank)
		err := s.rooms.Create(ctx, room)
		if errors.Is(err, domain.ErrRoomExists) {
			continue
		}
		if err != nil {
			return domain.JoinResult{}, fmt.Errorf("register room: %w", err)
		}
		go room.run()
		s.log.Info().Str("room", room.Token()).Str("player", playerID).Msg("room created")

		result, err := room.Join(ctx, playerID, name)
		if err != nil {
			// schedule cleanup so the unused room does not linger
			_ = room.Leave(context.Background(), playerID)
			return domain.JoinResult{}, err
		}
		s.track(playerID, room)
		return result, nil
	}
	return domain.JoinResult{}, domain.ErrRoomExists
}

// JoinRoom adds the caller to an existing room.
func (s *GameService) JoinRoom(ctx context.Context, token, playerID, name string) (domain.JoinResult, error) {
	room, err := s.room(token)
	if err != nil {
		return domain.JoinResult{}, err
	}
	result, err := room.Join(ctx, playerID, name)
	if err != nil {
		return domain.JoinResult{}, err
	}
	s.track(playerID, room)
	return result, nil
}

// StartGame starts the room's game on behalf of its manager.
func (s *GameService) StartGame(ctx context.Context, token, playerID string) error {
	room, err := s.room(token)
	if err != nil {
		return err
	}
	return room.Start(ctx, playerID)
}

// SubmitAnswer records the caller's option for the active question.
func (s *GameService) SubmitAnswer(ctx context.Context, token, playerID, option string) error {
	room, err := s.room(token)
	if err != nil {
		return err
	}
	return room.SubmitAnswer(ctx, playerID, option)
}

// RestartGame sends the room back to the waiting phase on behalf of its manager.
func (s *GameService) RestartGame(ctx context.Context, token, playerID string) error {
	room, err := s.room(token)
	if err != nil {
		return err
	}
	return room.Restart(ctx, playerID)
}

// Disconnect removes the player from every room it joined.
func (s *GameService) Disconnect(ctx context.Context, playerID string) {
	s.mu.Lock()
	joined := s.memberships[playerID]
	delete(s.memberships, playerID)
	s.mu.Unlock()

	for _, room := range joined {
		if err := room.Leave(ctx, playerID); err != nil && !errors.Is(err, domain.ErrRoomNotFound) {
			s.log.Warn().Err(err).Str("room", room.Token()).Str("player", playerID).Msg("leave failed")
		}
	}
}

// RoomState returns the public state of a room.
func (s *GameService) RoomState(ctx context.Context, token string) (domain.RoomState, error) {
	room, err := s.room(token)
	if err != nil {
		return domain.RoomState{}, err
	}
	return room.Snapshot(ctx)
}

// Memberships returns the tokens of the rooms the player joined and has not disconnected from.
func (s *GameService) Memberships(playerID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	tokens := make([]string, 0, len(s.memberships[playerID]))
	for token, room := range s.memberships[playerID] {
		select {
		case <-room.Done():
			continue
		default:
		}
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)
	return tokens
}

func (s *GameService) track(playerID string, room *Room) {
	s.mu.Lock()
	defer s.mu.Unlock()
	joined, ok := s.memberships[playerID]
	if !ok {
		joined = make(map[string]*Room)
		s.memberships[playerID] = joined
	}
	joined[room.Token()] = room
}

func (s *GameService) room(token string) (*Room, error) {
	room, ok := s.rooms.Get(token)
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	return room, nil
}

func (s *GameService) newRoom(token string, bank []domain.Question) *Room {
	return NewRoom(token, bank, RoomDeps{
		Settings: s.settings,
		Clock:    s.clock,
		Notifier: s.notifier,
		Logger:   s.log,
		Release:  s.rooms.Remove,
	})
}
