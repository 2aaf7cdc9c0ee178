package app

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"trivia-race-service/internal/clock"
	"trivia-race-service/internal/domain"
)

type timerKind int

const (
	// timerQuestion covers both the answer deadline and the pause before the next question.
	timerQuestion timerKind = iota
	timerCleanup
	timerWaitingExpiry
	timerKinds
)

var timerNames = [timerKinds]string{"question", "cleanup", "waiting_expiry"}

type timerSlot struct {
	timer clock.Timer
	gen   uint64
}

// RoomDeps are the collaborators a room needs besides its token and questions.
type RoomDeps struct {
	Settings domain.Settings
	Clock    clock.Clock
	Notifier Notifier
	Logger   zerolog.Logger
	// Release drops the room from its registry. It runs on the room goroutine.
	Release func(token string)
}

// Room is one game session. All state below inbox is owned by the goroutine
// started with run; every exported method is a command sent through inbox.
type Room struct {
	token    string
	settings domain.Settings
	bank     []domain.Question
	clock    clock.Clock
	notifier Notifier
	release  func(token string)
	log      zerolog.Logger

	inbox   chan func()
	stopped chan struct{}
	closing bool

	players       []*domain.Player
	managerID     string
	phase         domain.Phase
	questionIndex int
	questionStart time.Time
	questionOpen  bool
	answers       map[string]domain.Answer
	createdAt     time.Time
	timers        [timerKinds]timerSlot
	timerGen      uint64
}

// NewRoom builds a waiting room. It does not process commands until run is started.
func NewRoom(token string, bank []domain.Question, deps RoomDeps) *Room {
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}
	if deps.Release == nil {
		deps.Release = func(string) {}
	}
	return &Room{
		token:         token,
		settings:      deps.Settings,
		bank:          bank,
		clock:         deps.Clock,
		notifier:      deps.Notifier,
		release:       deps.Release,
		log:           deps.Logger.With().Str("room", token).Logger(),
		inbox:         make(chan func(), 64),
		stopped:       make(chan struct{}),
		phase:         domain.PhaseWaiting,
		questionIndex: -1,
		answers:       make(map[string]domain.Answer),
		createdAt:     deps.Clock.Now(),
	}
}

// Token returns the registry key of the room.
func (r *Room) Token() string { return r.token }

// Done is closed once the room stopped processing commands.
func (r *Room) Done() <-chan struct{} { return r.stopped }

func (r *Room) run() {
	defer close(r.stopped)
	for {
		fn := <-r.inbox
		fn()
		if r.closing {
			r.stopTimers()
			return
		}
	}
}

// exec runs fn on the room goroutine and waits for it.
func (r *Room) exec(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	select {
	case r.inbox <- func() { fn(); close(done) }:
	case <-r.stopped:
		return domain.ErrRoomNotFound
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-r.stopped:
		select {
		case <-done:
			return nil
		default:
			return domain.ErrRoomNotFound
		}
	}
}

// post queues fn without waiting. Timer callbacks use it.
func (r *Room) post(fn func()) {
	select {
	case r.inbox <- fn:
	case <-r.stopped:
	}
}

func call[T any](ctx context.Context, r *Room, fn func() (T, error)) (T, error) {
	var (
		out T
		err error
	)
	if execErr := r.exec(ctx, func() { out, err = fn() }); execErr != nil {
		var zero T
		return zero, execErr
	}
	return out, err
}

// Join adds a player to a waiting room.
func (r *Room) Join(ctx context.Context, playerID, name string) (domain.JoinResult, error) {
	return call(ctx, r, func() (domain.JoinResult, error) { return r.join(playerID, name) })
}

// Start begins the game. Only the manager may start it.
func (r *Room) Start(ctx context.Context, playerID string) error {
	_, err := call(ctx, r, func() (struct{}, error) { return struct{}{}, r.start(playerID) })
	return err
}

// SubmitAnswer records the caller's answer for the active question.
func (r *Room) SubmitAnswer(ctx context.Context, playerID, option string) error {
	_, err := call(ctx, r, func() (struct{}, error) { return struct{}{}, r.submitAnswer(playerID, option) })
	return err
}

// Restart returns the room to the waiting phase. Only the manager may restart it.
func (r *Room) Restart(ctx context.Context, playerID string) error {
	_, err := call(ctx, r, func() (struct{}, error) { return struct{}{}, r.restart(playerID) })
	return err
}

// Leave removes the player if present and schedules cleanup when the room is empty.
func (r *Room) Leave(ctx context.Context, playerID string) error {
	return r.exec(ctx, func() { r.leave(playerID) })
}

// Snapshot returns the public room state.
func (r *Room) Snapshot(ctx context.Context) (domain.RoomState, error) {
	return call(ctx, r, func() (domain.RoomState, error) { return r.publicState(), nil })
}

func (r *Room) join(playerID, name string) (domain.JoinResult, error) {
	if r.phase != domain.PhaseWaiting {
		return domain.JoinResult{}, domain.ErrAlreadyStarted
	}
	player := r.player(playerID)
	if player == nil && len(r.players) >= r.settings.MaxPlayers {
		return domain.JoinResult{}, domain.ErrRoomFull
	}
	if player != nil {
		player.Name = domain.SanitizeName(name)
	} else {
		player = &domain.Player{ID: playerID, Name: domain.SanitizeName(name)}
		r.players = append(r.players, player)
	}

	becameManager := false
	if r.managerID == "" {
		r.managerID = playerID
		becameManager = true
	}

	r.disarm(timerCleanup)
	r.ensureWaitingExpiry()
	if becameManager || r.managerID == playerID {
		r.sendGraceInfo()
	}
	r.broadcastState()

	r.log.Debug().Str("player", playerID).Int("players", len(r.players)).Msg("player joined")
	return domain.JoinResult{
		Token:     r.token,
		IsManager: r.managerID == playerID,
		Player:    *player,
	}, nil
}

func (r *Room) start(playerID string) error {
	if r.managerID == "" || r.managerID != playerID {
		return domain.ErrNotManager
	}
	if r.phase != domain.PhaseWaiting {
		return domain.ErrAlreadyStarted
	}
	if len(r.players) < r.settings.MinPlayers {
		return domain.ErrInsufficientPlayers
	}

	for _, p := range r.players {
		p.Score = 0
	}
	r.disarm(timerWaitingExpiry)
	r.phase = domain.PhaseInProgress
	r.questionIndex = -1
	r.nextQuestion()
	r.broadcastState()

	r.log.Info().Int("players", len(r.players)).Int("questions", len(r.bank)).Msg("game started")
	return nil
}

func (r *Room) submitAnswer(playerID, option string) error {
	if r.phase != domain.PhaseInProgress {
		return domain.ErrTimedOut
	}
	if r.player(playerID) == nil {
		return domain.ErrNotAPlayer
	}
	if _, ok := r.answers[playerID]; ok {
		return domain.ErrAlreadyAnswered
	}
	now := r.clock.Now()
	if !r.questionOpen || r.questionStart.IsZero() || now.Sub(r.questionStart) > r.settings.QuestionDuration {
		return domain.ErrTimedOut
	}

	normalized := domain.NormalizeOption(option)
	r.answers[playerID] = domain.Answer{
		Option:  normalized,
		At:      now,
		Correct: normalized == domain.NormalizeOption(r.bank[r.questionIndex].Correct),
		Seq:     len(r.answers),
	}
	r.notifier.Send(playerID, domain.Event{Type: domain.EventAnswerAck, Payload: domain.AnswerAck{OK: true}})
	return nil
}

func (r *Room) restart(playerID string) error {
	if r.managerID == "" || r.managerID != playerID {
		return domain.ErrNotManager
	}

	r.stopTimers()
	r.phase = domain.PhaseWaiting
	r.questionIndex = -1
	r.questionStart = time.Time{}
	r.questionOpen = false
	r.answers = make(map[string]domain.Answer)
	for _, p := range r.players {
		p.Score = 0
	}
	r.createdAt = r.clock.Now()
	r.ensureWaitingExpiry()
	r.sendGraceInfo()
	r.broadcastState()

	r.log.Info().Msg("room restarted")
	return nil
}

func (r *Room) leave(playerID string) {
	changed := false
	for i, p := range r.players {
		if p.ID == playerID {
			r.players = append(r.players[:i], r.players[i+1:]...)
			changed = true
			break
		}
	}
	if r.managerID != "" && r.managerID == playerID {
		r.managerID = ""
		if len(r.players) > 0 {
			r.managerID = r.players[0].ID
		}
		changed = true
	}
	if changed {
		r.broadcastState()
		r.log.Debug().Str("player", playerID).Str("manager", r.managerID).Msg("player left")
	}
	if len(r.players) == 0 && !r.armed(timerCleanup) {
		r.arm(timerCleanup, r.settings.CleanupDelay, r.cleanup)
	}
}

// nextQuestion moves to the following question or to results. Callers broadcast the state.
func (r *Room) nextQuestion() {
	r.disarm(timerQuestion)
	r.questionIndex++
	r.answers = make(map[string]domain.Answer)
	r.questionOpen = false

	if r.questionIndex >= len(r.bank) {
		r.phase = domain.PhaseResults
		r.questionStart = time.Time{}
		r.broadcast(domain.EventResults, domain.Results{Players: r.standings()})
		r.log.Info().Msg("game finished")
		return
	}

	r.questionStart = r.clock.Now()
	r.questionOpen = true
	r.arm(timerQuestion, r.settings.QuestionDuration+r.settings.DeadlineMargin, r.endQuestion)
	q := r.bank[r.questionIndex]
	r.broadcast(domain.EventQuestion, domain.QuestionBegin{
		Index: r.questionIndex,
		Total: len(r.bank),
		Question: domain.QuestionView{
			Text:    q.Text,
			Options: append([]string(nil), q.Options...),
		},
		StartTs:     r.questionStart.UnixMilli(),
		DurationSec: int(r.settings.QuestionDuration / time.Second),
	})
}

func (r *Room) endQuestion() {
	if r.phase != domain.PhaseInProgress || !r.questionOpen {
		return
	}
	r.questionOpen = false

	q := r.bank[r.questionIndex]
	awards := ScoreAnswers(r.answers)
	for _, award := range awards {
		if p := r.player(award.PlayerID); p != nil {
			p.Score += award.Points
		}
	}
	r.arm(timerQuestion, r.settings.ResultsPause, r.advance)
	r.broadcast(domain.EventQuestionEnd, domain.QuestionEnd{
		Index:   r.questionIndex,
		Correct: q.Correct,
		Scored:  awards,
	})
}

func (r *Room) advance() {
	if r.phase != domain.PhaseInProgress {
		return
	}
	r.nextQuestion()
	r.broadcastState()
}

func (r *Room) ensureWaitingExpiry() {
	if r.phase != domain.PhaseWaiting || r.armed(timerWaitingExpiry) {
		return
	}
	delay := r.expiresAt().Sub(r.clock.Now())
	if delay < 0 {
		delay = 0
	}
	r.arm(timerWaitingExpiry, delay, r.expireWaiting)
}

func (r *Room) expireWaiting() {
	if r.phase != domain.PhaseWaiting {
		return
	}
	r.broadcast(domain.EventRoomExpired, domain.Expired{Reason: "timeout"})
	r.log.Info().Int("players", len(r.players)).Msg("waiting room expired")
	r.shutdown()
}

func (r *Room) cleanup() {
	if len(r.players) > 0 {
		return
	}
	r.log.Info().Msg("empty room removed")
	r.shutdown()
}

func (r *Room) shutdown() {
	r.stopTimers()
	r.closing = true
	r.release(r.token)
}

func (r *Room) expiresAt() time.Time {
	return r.createdAt.Add(r.settings.WaitingGrace)
}

func (r *Room) sendGraceInfo() {
	if r.managerID == "" || r.phase != domain.PhaseWaiting {
		return
	}
	r.notifier.Send(r.managerID, domain.Event{
		Type: domain.EventGraceInfo,
		Payload: domain.GraceInfo{
			Minutes:   int((r.settings.WaitingGrace + time.Minute/2) / time.Minute),
			ExpiresAt: r.expiresAt().UnixMilli(),
		},
	})
}

// arm schedules fire on the room goroutine, replacing any timer of the same kind.
// A callback whose slot was re-armed or disarmed after it fired is dropped.
func (r *Room) arm(kind timerKind, d time.Duration, fire func()) {
	r.disarm(kind)
	r.timerGen++
	gen := r.timerGen
	t := r.clock.AfterFunc(d, func() {
		r.post(func() {
			if r.timers[kind].timer == nil || r.timers[kind].gen != gen {
				r.log.Debug().Str("timer", timerNames[kind]).Msg("stale timer ignored")
				return
			}
			r.timers[kind] = timerSlot{}
			fire()
		})
	})
	r.timers[kind] = timerSlot{timer: t, gen: gen}
}

func (r *Room) disarm(kind timerKind) {
	if slot := r.timers[kind]; slot.timer != nil {
		slot.timer.Stop()
	}
	r.timers[kind] = timerSlot{}
}

func (r *Room) armed(kind timerKind) bool {
	return r.timers[kind].timer != nil
}

func (r *Room) stopTimers() {
	for kind := timerKind(0); kind < timerKinds; kind++ {
		r.disarm(kind)
	}
}

func (r *Room) player(id string) *domain.Player {
	for _, p := range r.players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (r *Room) playersCopy() []domain.Player {
	out := make([]domain.Player, len(r.players))
	for i, p := range r.players {
		out[i] = *p
	}
	return out
}

// standings orders players by score, keeping join order on ties.
func (r *Room) standings() []domain.Player {
	out := r.playersCopy()
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

func (r *Room) publicState() domain.RoomState {
	state := domain.RoomState{
		Token:                r.token,
		State:                r.phase,
		Players:              r.playersCopy(),
		CurrentQuestionIndex: r.questionIndex,
		QuestionStartTs:      domain.UnixMilli(r.questionStart),
		TimePerQuestion:      int(r.settings.QuestionDuration / time.Second),
	}
	if r.managerID != "" {
		manager := r.managerID
		state.ManagerID = &manager
	}
	return state
}

func (r *Room) broadcastState() {
	r.broadcast(domain.EventRoomState, r.publicState())
}

func (r *Room) broadcast(eventType string, payload any) {
	event := domain.Event{Type: eventType, Payload: payload}
	for _, p := range r.players {
		r.notifier.Send(p.ID, event)
	}
}
