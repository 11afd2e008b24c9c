package game

import (
	"encoding/json"
	"testing"
)

type scheduled struct {
	seconds  int
	complete func()
	early    func(int) bool
}

type fakeHost struct {
	initial    []any
	turns      [][]string
	results    []any
	finishes   []Outcome
	countdowns []*scheduled
}

func (h *fakeHost) AnnounceInitialInfo(info any)   { h.initial = append(h.initial, info) }
func (h *fakeHost) AnnounceTurn(ids []string)      { h.turns = append(h.turns, ids) }
func (h *fakeHost) AnnounceRoundResult(result any) { h.results = append(h.results, result) }
func (h *fakeHost) AnnounceFinish(o Outcome)       { h.finishes = append(h.finishes, o) }

func (h *fakeHost) ScheduleCountdown(seconds int, complete func(), early func(int) bool) {
	h.countdowns = append(h.countdowns, &scheduled{seconds: seconds, complete: complete, early: early})
}

func (h *fakeHost) current(t *testing.T) *scheduled {
	t.Helper()
	if len(h.countdowns) == 0 {
		t.Fatalf("no countdown scheduled")
	}
	return h.countdowns[len(h.countdowns)-1]
}

// settle completes the current countdown the way the scheduler would: early
// when the predicate holds, otherwise on expiry.
func (h *fakeHost) settle(t *testing.T) (early bool) {
	t.Helper()
	cd := h.current(t)
	early = cd.early != nil && cd.early(cd.seconds-1)
	cd.complete()
	return early
}

func (h *fakeHost) finished(t *testing.T) Outcome {
	t.Helper()
	if len(h.finishes) != 1 {
		t.Fatalf("finish announced %d times; want 1", len(h.finishes))
	}
	o := h.finishes[0]
	if !o.Valid() {
		t.Fatalf("invalid outcome %+v", o)
	}
	return o
}

func raw(s string) json.RawMessage { return json.RawMessage(s) }

func newSession(t *testing.T, h Host, kind Kind, rounds int, ids ...string) Session {
	t.Helper()
	s, _, err := NewFactory().CreateGame(h, Options{Game: kind, Rounds: rounds, MaxPlayers: len(ids)})
	if err != nil {
		t.Fatalf("create %s: %v", kind, err)
	}
	for _, id := range ids {
		if !s.AddParticipant(PlayerInfo{ID: id, DisplayName: "name-" + id}) {
			t.Fatalf("add %s rejected", id)
		}
	}
	return s
}
