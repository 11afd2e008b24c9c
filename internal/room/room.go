// Package room runs matches: the ready lobby, the start handshake and the
// game session, all mutated from one goroutine per room.
package room

import (
	"context"
	"encoding/json"
	"log/slog"
	"runtime/debug"
	"slices"
	"sync"
	"time"

	"tablero_total/internal/game"
	"tablero_total/internal/logger"
	"tablero_total/internal/metrics"
	"tablero_total/internal/timer"

	"github.com/jonboulle/clockwork"
)

type State string

const (
	StateLobby    State = "lobby"
	StateStarting State = "starting"
	StateActive   State = "active"
	StateFinished State = "finished"
)

const (
	taskBuffer    = 64
	recordTimeout = 5 * time.Second

	// CodeInternal is broadcast when a room task panics and the room is shut.
	CodeInternal = "internal_error"
	// CodeClosed is broadcast when the server closes a room that is still running.
	CodeClosed = "room_closed"
)

type Config struct {
	// LobbyTimeout is rounded down to whole seconds.
	LobbyTimeout time.Duration
	// ReadyPoll is how often the Starting state re-checks client acks.
	ReadyPoll time.Duration
	// StartTimeout caps the wait for client acks.
	StartTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		LobbyTimeout: 60 * time.Second,
		ReadyPoll:    200 * time.Millisecond,
		StartTimeout: 10 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.LobbyTimeout < time.Second {
		c.LobbyTimeout = d.LobbyTimeout
	}
	if c.ReadyPoll <= 0 {
		c.ReadyPoll = d.ReadyPoll
	}
	if c.StartTimeout <= 0 {
		c.StartTimeout = d.StartTimeout
	}
	return c
}

// Result is what a finished match leaves behind.
type Result struct {
	Code         string
	Options      game.Options
	Participants []game.PlayerInfo
	Outcome      game.Outcome
	StartedAt    time.Time
	FinishedAt   time.Time
}

// Recorder stores finished matches. It is called off the room goroutine.
type Recorder interface {
	RecordMatch(ctx context.Context, res Result) error
}

// Snapshot is a point-in-time copy of a room for read-only callers.
type Snapshot struct {
	Code      string       `json:"code"`
	State     State        `json:"state"`
	Options   game.Options `json:"options"`
	Players   []PlayerView `json:"players"`
	Status    game.Status  `json:"status"`
	CreatedAt time.Time    `json:"createdAt"`
}

type member struct {
	p     Participant
	ready ReadyState
	acked bool
}

type Room struct {
	code  string
	opts  game.Options
	cfg   Config
	clock clockwork.Clock
	log   *slog.Logger

	session   game.Session
	sched     *timer.Scheduler
	countdown *timer.Handle
	poll      clockwork.Timer
	startBy   time.Time

	recorder Recorder
	reg      *Registry

	tasks     chan func()
	done      chan struct{}
	closeOnce sync.Once

	// Everything below is owned by the Run goroutine.
	state     State
	members   []*member
	roster    []game.PlayerInfo
	createdAt time.Time
	startedAt time.Time
}

// New builds a room and its game session. A session that cannot be built
// fails the room; nothing is left running. Call Run to start the lobby.
func New(code string, opts game.Options, cfg Config, clock clockwork.Clock, factory *game.Factory) (*Room, error) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if factory == nil {
		factory = game.NewFactory()
	}

	r := &Room{
		code:      code,
		cfg:       cfg.withDefaults(),
		clock:     clock,
		tasks:     make(chan func(), taskBuffer),
		done:      make(chan struct{}),
		state:     StateLobby,
		createdAt: clock.Now(),
	}

	session, normalized, err := factory.CreateGame(roomHost{r}, opts)
	if err != nil {
		return nil, err
	}
	r.session = session
	r.opts = normalized
	r.log = logger.Room(code, string(normalized.Game))
	r.sched = timer.NewScheduler(clock, func(fn func()) { r.do(fn) })
	return r, nil
}

func (r *Room) Code() string { return r.code }

// Options are the normalized options the session runs with.
func (r *Room) Options() game.Options { return r.opts }

// Done is closed once the room is released.
func (r *Room) Done() <-chan struct{} { return r.done }

// Run opens the lobby and processes room tasks until the room is released.
func (r *Room) Run() {
	r.log.Info("room opened", "maxPlayers", r.opts.MaxPlayers)
	r.exec(r.openLobby)

	for {
		select {
		case <-r.done:
			return
		case fn := <-r.tasks:
			r.exec(fn)
		}
	}
}

// Join admits p to the lobby. When ctx ends before the admission is
// confirmed, a queued rollback removes p again should the admission still
// run.
func (r *Room) Join(ctx context.Context, p Participant) error {
	var err error
	if cerr := r.call(ctx, func() { err = r.admit(p) }); cerr != nil {
		r.do(func() { r.handleLeave(p) })
		return cerr
	}
	return err
}

// ToggleReady flips the participant's lobby ready flag. Outside the lobby the
// current flag is returned unchanged.
func (r *Room) ToggleReady(ctx context.Context, id string) (ReadyState, error) {
	state, err := NotReady, error(nil)
	if cerr := r.call(ctx, func() { state, err = r.toggleReady(id) }); cerr != nil {
		return NotReady, cerr
	}
	return state, err
}

// Acknowledge records that the participant's client is ready to render the
// match.
func (r *Room) Acknowledge(id string) {
	r.do(func() {
		if m := r.member(id); m != nil {
			m.acked = true
		}
	})
}

// Move forwards a raw action to the session while the match is active.
func (r *Room) Move(id string, raw json.RawMessage) {
	r.do(func() {
		if r.state != StateActive {
			return
		}
		r.session.RecordAction(id, raw)
	})
}

// Leave handles a participant disconnecting. Only the seated connection
// itself can leave; another connection reusing its id is ignored.
func (r *Room) Leave(p Participant) {
	r.do(func() { r.handleLeave(p) })
}

func (r *Room) Snapshot(ctx context.Context) (Snapshot, error) {
	var s Snapshot
	if err := r.call(ctx, func() { s = r.snapshot() }); err != nil {
		return Snapshot{}, err
	}
	return s, nil
}

// Close shuts a room that is still running without recording a result.
func (r *Room) Close() {
	r.do(func() {
		if r.state == StateFinished {
			return
		}
		r.broadcast(Message{Type: EventError, Payload: ErrorPayload{Code: CodeClosed}})
		r.teardown()
	})
}

// do queues fn on the room goroutine. False once the room is released.
func (r *Room) do(fn func()) bool {
	select {
	case <-r.done:
		return false
	default:
	}
	select {
	case r.tasks <- fn:
		return true
	case <-r.done:
		return false
	}
}

// call runs fn on the room goroutine and waits for it.
func (r *Room) call(ctx context.Context, fn func()) error {
	ran := make(chan struct{})
	if !r.do(func() { fn(); close(ran) }) {
		return ErrRoomNotFound
	}
	select {
	case <-ran:
		return nil
	case <-r.done:
		select {
		case <-ran:
			return nil
		default:
			return ErrRoomNotFound
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Room) exec(fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("room task panicked", "panic", rec, "stack", string(debug.Stack()))
			if r.state != StateFinished {
				r.broadcast(Message{Type: EventError, Payload: ErrorPayload{Code: CodeInternal}})
				r.teardown()
			}
		}
	}()
	fn()
}

func (r *Room) openLobby() {
	seconds := int(r.cfg.LobbyTimeout / time.Second)
	r.startCountdown(seconds, r.closeLobby, func(int) bool { return r.everyoneReady() })
}

func (r *Room) admit(p Participant) error {
	if r.state != StateLobby {
		return ErrCannotJoin
	}
	if r.member(p.ID()) != nil {
		return ErrAlreadyInRoom
	}
	if len(r.members) >= r.opts.MaxPlayers {
		return ErrRoomFull
	}
	if !r.session.AddParticipant(game.PlayerInfo{ID: p.ID(), DisplayName: p.DisplayName()}) {
		return ErrRoomFull
	}

	r.members = append(r.members, &member{p: p, ready: NotReady})
	r.log.Info("participant joined", "participant", p.ID(), "players", len(r.members))
	r.broadcastRoster()
	return nil
}

func (r *Room) toggleReady(id string) (ReadyState, error) {
	m := r.member(id)
	if m == nil {
		return NotReady, ErrNotInRoom
	}
	if r.state != StateLobby {
		return m.ready, nil
	}
	if m.ready == Ready {
		m.ready = NotReady
	} else {
		m.ready = Ready
	}
	r.broadcastRoster()
	return m.ready, nil
}

func (r *Room) everyoneReady() bool {
	if len(r.members) < 2 {
		return false
	}
	for _, m := range r.members {
		if m.ready != Ready {
			return false
		}
	}
	return true
}

func (r *Room) everyoneAcked() bool {
	for _, m := range r.members {
		if !m.acked {
			return false
		}
	}
	return true
}

func (r *Room) closeLobby() {
	if r.state != StateLobby {
		return
	}
	if len(r.members) < 2 {
		r.log.Info("lobby closed without enough players", "players", len(r.members))
		r.broadcast(Message{Type: EventError, Payload: ErrorPayload{Code: CodeNotEnoughPlayers}})
		metrics.LobbiesAborted.WithLabelValues(CodeNotEnoughPlayers).Inc()
		r.teardown()
		return
	}

	r.state = StateStarting
	r.roster = r.session.Participants()
	r.startBy = r.clock.Now().Add(r.cfg.StartTimeout)
	r.broadcast(Message{Type: EventStartGame})
	r.awaitAcks()
}

// awaitAcks polls until every present participant acknowledged the start or
// the start timeout passes, then hands over to the session.
func (r *Room) awaitAcks() {
	if r.state != StateStarting {
		return
	}
	if !r.everyoneAcked() && r.clock.Now().Before(r.startBy) {
		r.poll = r.clock.AfterFunc(r.cfg.ReadyPoll, func() { r.do(r.awaitAcks) })
		return
	}

	r.state = StateActive
	r.startedAt = r.clock.Now()
	r.log.Info("match started", "players", len(r.members))
	r.session.StartGameLoop()
}

func (r *Room) handleLeave(p Participant) {
	i := slices.IndexFunc(r.members, func(m *member) bool { return m.p == p })
	if i < 0 {
		return
	}
	id := p.ID()
	r.members = slices.Delete(r.members, i, i+1)
	if r.reg != nil {
		r.reg.unlocate(r.code, id)
	}
	r.log.Info("participant left", "participant", id, "state", r.state, "players", len(r.members))

	switch r.state {
	case StateLobby:
		r.session.RemoveParticipant(id)
		r.broadcastRoster()
	case StateStarting, StateActive:
		r.session.PlayerLeave(id)
	}

	if len(r.members) == 0 && r.state != StateFinished {
		metrics.LobbiesAborted.WithLabelValues("empty").Inc()
		r.teardown()
	}
}

func (r *Room) startCountdown(seconds int, onComplete func(), early func(remaining int) bool) {
	if r.state == StateFinished {
		return
	}
	// The previous countdown has normally completed already.
	r.countdown.Cancel()
	r.countdown = r.sched.Start(seconds, timer.Countdown{
		OnTick: func(remaining int) {
			r.broadcast(Message{Type: EventTime, Payload: TimePayload{Remaining: remaining}})
		},
		EarlyComplete: early,
		OnComplete:    onComplete,
	})
}

func (r *Room) finish(o game.Outcome) {
	if r.state == StateFinished {
		r.log.Warn("duplicate finish ignored", "outcome", o.Kind)
		return
	}
	r.log.Info("match finished", "outcome", o.Kind, "winner", o.Winner)

	for _, m := range r.members {
		m.p.Send(Message{Type: EventFinishGame, Payload: FinishPayload{Outcome: o, You: o.Result(m.p.ID())}})
	}
	metrics.MatchesFinished.WithLabelValues(string(r.opts.Game), string(o.Kind)).Inc()
	r.record(o)
	r.teardown()
}

func (r *Room) record(o game.Outcome) {
	if r.recorder == nil {
		return
	}
	res := Result{
		Code:         r.code,
		Options:      r.opts,
		Participants: r.roster,
		Outcome:      o,
		StartedAt:    r.startedAt,
		FinishedAt:   r.clock.Now(),
	}
	if len(res.Participants) == 0 {
		res.Participants = r.session.Participants()
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()
		if err := r.recorder.RecordMatch(ctx, res); err != nil {
			r.log.Error("record match failed", "error", err)
		}
	}()
}

// teardown is the single exit from every state.
func (r *Room) teardown() {
	r.state = StateFinished
	r.countdown.Cancel()
	if r.poll != nil {
		r.poll.Stop()
	}
	if r.reg != nil {
		r.reg.release(r)
	}
	r.closeOnce.Do(func() {
		close(r.done)
		r.log.Info("room released")
	})
}

func (r *Room) member(id string) *member {
	for _, m := range r.members {
		if m.p.ID() == id {
			return m
		}
	}
	return nil
}

func (r *Room) players() []PlayerView {
	out := make([]PlayerView, 0, len(r.members))
	for _, m := range r.members {
		out = append(out, PlayerView{ID: m.p.ID(), DisplayName: m.p.DisplayName(), ReadyState: m.ready})
	}
	return out
}

func (r *Room) broadcastRoster() {
	r.broadcast(Message{Type: EventPlayersWaiting, Payload: WaitingPayload{Players: r.players()}})
}

func (r *Room) broadcast(msg Message) {
	for _, m := range r.members {
		m.p.Send(msg)
	}
}

func (r *Room) snapshot() Snapshot {
	return Snapshot{
		Code:      r.code,
		State:     r.state,
		Options:   r.opts,
		Players:   r.players(),
		Status:    r.session.Status(),
		CreatedAt: r.createdAt,
	}
}

// roomHost is the room as its session sees it. Every call arrives on the
// room goroutine.
type roomHost struct {
	r *Room
}

func (h roomHost) AnnounceInitialInfo(info any) {
	h.r.broadcast(Message{Type: EventInitialInfo, Payload: info})
}

func (h roomHost) AnnounceTurn(participants []string) {
	h.r.broadcast(Message{Type: EventNextTurn, Payload: TurnPayload{Participants: participants}})
}

func (h roomHost) AnnounceRoundResult(result any) {
	h.r.broadcast(Message{Type: EventTurnResults, Payload: result})
}

func (h roomHost) AnnounceFinish(o game.Outcome) {
	h.r.finish(o)
}

func (h roomHost) ScheduleCountdown(seconds int, onComplete func(), earlyComplete func(remaining int) bool) {
	h.r.startCountdown(seconds, onComplete, earlyComplete)
}
