package room

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"tablero_total/internal/game"

	"github.com/jonboulle/clockwork"
)

type fakeParticipant struct {
	id   string
	msgs chan Message
}

func newParticipant(id string) *fakeParticipant {
	return &fakeParticipant{id: id, msgs: make(chan Message, 256)}
}

func (f *fakeParticipant) ID() string          { return f.id }
func (f *fakeParticipant) DisplayName() string { return "player " + f.id }

func (f *fakeParticipant) Send(m Message) {
	select {
	case f.msgs <- m:
	default:
	}
}

// expect skips messages until one of the given type arrives.
func (f *fakeParticipant) expect(t *testing.T, typ string) Message {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case m := <-f.msgs:
			if m.Type == typ {
				return m
			}
		case <-deadline:
			t.Fatalf("%s never received %s", f.id, typ)
		}
	}
}

func (f *fakeParticipant) expectWhere(t *testing.T, typ string, match func(Message) bool) Message {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case m := <-f.msgs:
			if m.Type == typ && match(m) {
				return m
			}
		case <-deadline:
			t.Fatalf("%s never received a matching %s", f.id, typ)
		}
	}
}

// expectTurn waits for the next_turn that hands the move to f.
func (f *fakeParticipant) expectTurn(t *testing.T) {
	t.Helper()
	f.expectWhere(t, EventNextTurn, func(m Message) bool {
		return m.Payload.(TurnPayload).Participants[0] == f.id
	})
}

// drain returns the types of every message already queued.
func (f *fakeParticipant) drain() []string {
	var types []string
	for {
		select {
		case m := <-f.msgs:
			types = append(types, m.Type)
		default:
			return types
		}
	}
}

type fakeRecorder struct {
	results chan Result
}

func (f *fakeRecorder) RecordMatch(_ context.Context, res Result) error {
	f.results <- res
	return nil
}

type env struct {
	reg   *Registry
	clock *clockwork.FakeClock
	rec   *fakeRecorder
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		clock: clockwork.NewFakeClock(),
		rec:   &fakeRecorder{results: make(chan Result, 4)},
	}
	cfg := Config{LobbyTimeout: 3 * time.Second, ReadyPoll: 200 * time.Millisecond, StartTimeout: time.Second}
	e.reg = NewRegistry(cfg, e.clock, e.rec)
	t.Cleanup(e.reg.Shutdown)
	return e
}

// tick waits for the room's countdown ticker and fires it once.
func (e *env) tick(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := e.clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("no countdown running: %v", err)
	}
	e.clock.Advance(time.Second)
}

func waitDone(t *testing.T, r *Room) {
	t.Helper()
	select {
	case <-r.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("room %s was not released", r.Code())
	}
}

// startMatch seats two participants in a tic-tac-toe room and runs it into
// the active state. It returns them in turn order.
func startMatch(t *testing.T, e *env) (*Room, *fakeParticipant, *fakeParticipant) {
	t.Helper()
	ctx := context.Background()
	p1, p2 := newParticipant("p1"), newParticipant("p2")

	r, err := e.reg.Create(ctx, p1, game.Options{Game: game.KindTicTacToe})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := e.reg.Join(ctx, p2, r.Code()); err != nil {
		t.Fatalf("join: %v", err)
	}
	for _, p := range []*fakeParticipant{p1, p2} {
		r.Acknowledge(p.id)
		if state, err := r.ToggleReady(ctx, p.id); err != nil || state != Ready {
			t.Fatalf("ready %s: %v %v", p.id, state, err)
		}
	}

	e.tick(t)
	p1.expect(t, EventStartGame)
	p1.expect(t, EventInitialInfo)
	turn := p1.expect(t, EventNextTurn).Payload.(TurnPayload)
	if turn.Participants[0] == "p2" {
		return r, p2, p1
	}
	return r, p1, p2
}

// move plays a cell and lets the turn countdown close early on the next tick.
func move(t *testing.T, e *env, r *Room, p *fakeParticipant, cell int) {
	t.Helper()
	r.Move(p.id, json.RawMessage(fmt.Sprintf(`{"cell":%d}`, cell)))
	p.expectWhere(t, EventTurnResults, func(m Message) bool {
		return m.Payload.(map[string]any)["by"] == p.id
	})
	e.tick(t)
}

func TestLobbyTimeoutWithOneParticipant(t *testing.T) {
	e := newEnv(t)
	p1 := newParticipant("p1")

	r, err := e.reg.Create(context.Background(), p1, game.Options{Game: game.KindRockPaperScissors})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := r.ToggleReady(context.Background(), "p1"); err != nil {
		t.Fatalf("ready: %v", err)
	}

	for want := 2; want >= 0; want-- {
		e.tick(t)
		got := p1.expect(t, EventTime).Payload.(TimePayload)
		if got.Remaining != want {
			t.Fatalf("remaining = %d; want %d", got.Remaining, want)
		}
	}

	msg := p1.expect(t, EventError)
	if code := msg.Payload.(ErrorPayload).Code; code != CodeNotEnoughPlayers {
		t.Fatalf("error code = %s; want %s", code, CodeNotEnoughPlayers)
	}
	waitDone(t, r)

	for _, typ := range p1.drain() {
		if typ == EventStartGame || typ == EventInitialInfo {
			t.Fatalf("room went past the lobby: got %s", typ)
		}
	}
	if e.reg.Len() != 0 {
		t.Fatalf("registry still holds %d rooms", e.reg.Len())
	}
	if _, err := e.reg.Route("p1"); !errors.Is(err, ErrNotInRoom) {
		t.Fatalf("participant still located: %v", err)
	}
}

func TestTicTacToeMatchThroughRoom(t *testing.T) {
	e := newEnv(t)
	r, first, second := startMatch(t, e)

	move(t, e, r, first, 0)
	second.expectTurn(t)
	move(t, e, r, second, 3)
	first.expectTurn(t)
	move(t, e, r, first, 1)
	second.expectTurn(t)
	move(t, e, r, second, 4)
	first.expectTurn(t)
	move(t, e, r, first, 2)

	fin := first.expect(t, EventFinishGame).Payload.(FinishPayload)
	if fin.Kind != game.OutcomeWinner || fin.Winner != first.id || fin.You != "win" {
		t.Fatalf("first got %+v", fin)
	}
	if lost := second.expect(t, EventFinishGame).Payload.(FinishPayload); lost.You != "lose" {
		t.Fatalf("second got %+v", lost)
	}
	waitDone(t, r)

	select {
	case res := <-e.rec.results:
		if res.Code != r.Code() || len(res.Participants) != 2 || res.Outcome.Winner != first.id {
			t.Fatalf("recorded %+v", res)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("match was not recorded")
	}
}

func TestDisconnectForfeitsImmediately(t *testing.T) {
	e := newEnv(t)
	r, first, second := startMatch(t, e)

	e.reg.Leave(first)

	fin := second.expect(t, EventFinishGame).Payload.(FinishPayload)
	if fin.Kind != game.OutcomeResignation || fin.Winner != second.id {
		t.Fatalf("outcome = %+v; want resignation won by %s", fin, second.id)
	}
	waitDone(t, r)
}

func TestFinishIsIdempotent(t *testing.T) {
	e := newEnv(t)
	p1 := newParticipant("p1")
	r, err := e.reg.Create(context.Background(), p1, game.Options{Game: game.KindEvenOdd})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	host := roomHost{r}
	r.do(func() {
		host.AnnounceFinish(game.Draw(nil))
		host.AnnounceFinish(game.Draw(nil))
	})
	waitDone(t, r)

	finishes := 0
	for _, typ := range p1.drain() {
		if typ == EventFinishGame {
			finishes++
		}
	}
	if finishes != 1 {
		t.Fatalf("finish_game sent %d times", finishes)
	}
	<-e.rec.results
	select {
	case res := <-e.rec.results:
		t.Fatalf("second record: %+v", res)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestLobbyLeaveUpdatesRosterAndReleasesEmptyRoom(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	p1, p2 := newParticipant("p1"), newParticipant("p2")

	r, err := e.reg.Create(ctx, p1, game.Options{Game: game.KindEvenOdd, MaxPlayers: 4})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := e.reg.Join(ctx, p2, r.Code()); err != nil {
		t.Fatalf("join: %v", err)
	}

	e.reg.Leave(p2)
	snap, err := r.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(snap.Players) != 1 || snap.State != StateLobby {
		t.Fatalf("snapshot = %+v", snap)
	}
	if _, err := e.reg.Route("p2"); !errors.Is(err, ErrNotInRoom) {
		t.Fatalf("p2 still routed: %v", err)
	}

	e.reg.Leave(p1)
	waitDone(t, r)
	if e.reg.Len() != 0 {
		t.Fatalf("empty room still registered")
	}
}

func TestReadyToggle(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	p1 := newParticipant("p1")
	r, err := e.reg.Create(ctx, p1, game.Options{Game: game.KindTicTacToe})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	for _, want := range []ReadyState{Ready, NotReady, Ready} {
		got, err := r.ToggleReady(ctx, "p1")
		if err != nil || got != want {
			t.Fatalf("toggle = %s, %v; want %s", got, err, want)
		}
	}
	if _, err := r.ToggleReady(ctx, "stranger"); !errors.Is(err, ErrNotInRoom) {
		t.Fatalf("stranger toggle err = %v", err)
	}
}

func TestMovesOutsideActiveAreIgnored(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	p1 := newParticipant("p1")
	r, err := e.reg.Create(ctx, p1, game.Options{Game: game.KindTicTacToe})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	r.Move("p1", json.RawMessage(`{"cell":0}`))
	snap, err := r.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.Status.Round != 0 {
		t.Fatalf("lobby move reached the session: %+v", snap.Status)
	}
}

// enterStarting readies two tic-tac-toe participants without acknowledging
// the start and closes the lobby. The room then polls for acks.
func enterStarting(t *testing.T, e *env) (*Room, *fakeParticipant, *fakeParticipant) {
	t.Helper()
	ctx := context.Background()
	p1, p2 := newParticipant("p1"), newParticipant("p2")

	r, err := e.reg.Create(ctx, p1, game.Options{Game: game.KindTicTacToe})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := e.reg.Join(ctx, p2, r.Code()); err != nil {
		t.Fatalf("join: %v", err)
	}
	for _, p := range []*fakeParticipant{p1, p2} {
		if _, err := r.ToggleReady(ctx, p.id); err != nil {
			t.Fatalf("ready %s: %v", p.id, err)
		}
	}

	e.tick(t)
	p1.expect(t, EventStartGame)
	p2.expect(t, EventStartGame)
	return r, p1, p2
}

// poll waits for the ack poll timer and fires it.
func (e *env) poll(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := e.clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("no poll pending: %v", err)
	}
	e.clock.Advance(200 * time.Millisecond)
}

func stateOf(t *testing.T, r *Room) State {
	t.Helper()
	snap, err := r.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	return snap.State
}

func TestStartWaitsForLateAcks(t *testing.T) {
	e := newEnv(t)
	r, p1, p2 := enterStarting(t, e)

	r.Acknowledge(p1.id)
	e.poll(t)

	// The next poll being armed means the previous one ran.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := e.clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("poll not re-armed: %v", err)
	}
	if got := stateOf(t, r); got != StateStarting {
		t.Fatalf("state with one ack = %s; want %s", got, StateStarting)
	}
	for _, typ := range p1.drain() {
		if typ == EventInitialInfo || typ == EventNextTurn {
			t.Fatalf("match began before every ack: got %s", typ)
		}
	}

	r.Acknowledge(p2.id)
	e.poll(t)

	p1.expect(t, EventInitialInfo)
	p2.expect(t, EventNextTurn)
	if got := stateOf(t, r); got != StateActive {
		t.Fatalf("state = %s; want %s", got, StateActive)
	}
}

func TestStartTimeoutWithoutAcks(t *testing.T) {
	e := newEnv(t)
	r, p1, _ := enterStarting(t, e)

	// StartTimeout is one second, polled every 200ms.
	for range 5 {
		e.poll(t)
	}

	p1.expect(t, EventInitialInfo)
	p1.expect(t, EventNextTurn)
	if got := stateOf(t, r); got != StateActive {
		t.Fatalf("state = %s; want %s", got, StateActive)
	}
}

func TestLeaveDuringStartingForfeits(t *testing.T) {
	e := newEnv(t)
	r, p1, p2 := enterStarting(t, e)

	e.reg.Leave(p1)

	fin := p2.expect(t, EventFinishGame).Payload.(FinishPayload)
	if fin.Kind != game.OutcomeResignation || fin.Winner != p2.id || fin.You != "win" {
		t.Fatalf("outcome = %+v; want resignation won by %s", fin, p2.id)
	}
	waitDone(t, r)

	for _, typ := range p2.drain() {
		if typ == EventInitialInfo {
			t.Fatalf("session started after the forfeit")
		}
	}
}

func TestCancelledJoinIsRolledBack(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	p1, p2 := newParticipant("p1"), newParticipant("p2")

	r, err := e.reg.Create(ctx, p1, game.Options{Game: game.KindEvenOdd, MaxPlayers: 4})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Hold the room goroutine so the admission stays queued.
	release := make(chan struct{})
	r.do(func() { <-release })

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := e.reg.Join(cancelled, p2, r.Code()); !errors.Is(err, context.Canceled) {
		t.Fatalf("join err = %v; want %v", err, context.Canceled)
	}
	close(release)

	snap, err := r.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(snap.Players) != 1 || snap.Players[0].ID != "p1" {
		t.Fatalf("players = %+v", snap.Players)
	}
	if _, err := e.reg.Route("p2"); !errors.Is(err, ErrNotInRoom) {
		t.Fatalf("p2 still routed: %v", err)
	}

	// The seat is free again.
	if _, err := e.reg.Join(ctx, p2, r.Code()); err != nil {
		t.Fatalf("rejoin: %v", err)
	}
}

func TestStaleParticipantLeaveIsIgnored(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	seated := newParticipant("p1")

	r, err := e.reg.Create(ctx, seated, game.Options{Game: game.KindTicTacToe})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Same id, different connection.
	e.reg.Leave(newParticipant("p1"))

	snap, err := r.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(snap.Players) != 1 {
		t.Fatalf("players = %+v", snap.Players)
	}
	if routed, err := e.reg.Route("p1"); err != nil || routed != r {
		t.Fatalf("p1 routed to %v, %v", routed, err)
	}
}
