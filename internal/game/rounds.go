package game

import (
	"encoding/json"
	"maps"
)

// rules is the per-game part of a simultaneous-move game: how to read a move
// and how a closed round is scored.
type rules[M any] interface {
	parse(raw json.RawMessage) (M, bool)
	score(ledger map[string]M, order []string) map[string]int
}

// RoundResult is broadcast when a round closes.
type RoundResult[M any] struct {
	Round  int            `json:"round"`
	Moves  map[string]M   `json:"moves"`
	Gained map[string]int `json:"gained"`
	Points map[string]int `json:"points"`
}

// roundGame runs fixed-count rounds where every participant moves at once
// into a ledger keyed by participant id.
type roundGame[M any] struct {
	kind  Kind
	host  Host
	opts  Options
	rules rules[M]

	players []PlayerInfo
	scores  map[string]int

	ledger      map[string]M
	history     []map[string]M
	round       int
	moveAllowed bool
	introduced  bool

	over     bool
	result   *Outcome
	finished bool
}

func newRoundGame[M any](kind Kind, host Host, opts Options, r rules[M]) *roundGame[M] {
	return &roundGame[M]{
		kind:   kind,
		host:   host,
		opts:   opts,
		rules:  r,
		scores: make(map[string]int),
	}
}

func (g *roundGame[M]) Kind() Kind       { return g.kind }
func (g *roundGame[M]) Options() Options { return g.opts }

func (g *roundGame[M]) AddParticipant(p PlayerInfo) bool {
	if len(g.players) >= g.opts.MaxPlayers || g.has(p.ID) {
		return false
	}
	g.players = append(g.players, p)
	g.scores[p.ID] = 0
	return true
}

func (g *roundGame[M]) RemoveParticipant(id string) bool {
	for i, p := range g.players {
		if p.ID == id {
			g.players = append(g.players[:i], g.players[i+1:]...)
			delete(g.scores, id)
			return true
		}
	}
	return false
}

func (g *roundGame[M]) RecordAction(id string, raw json.RawMessage) {
	if !g.moveAllowed || g.over || !g.has(id) {
		return
	}
	move, ok := g.rules.parse(raw)
	if !ok {
		return
	}
	g.ledger[id] = move
}

func (g *roundGame[M]) StartGameLoop() {
	if g.finished {
		return
	}
	if !g.introduced {
		g.introduced = true
		g.host.AnnounceInitialInfo(map[string]any{
			"players": g.playerView(),
			"round":   1,
			"rounds":  g.opts.Rounds,
		})
	}
	if g.over {
		g.finish()
		return
	}

	g.ledger = make(map[string]M, len(g.players))
	g.moveAllowed = true
	g.host.ScheduleCountdown(g.opts.TimeoutSeconds, g.closeRound, func(int) bool {
		return g.everyoneMoved()
	})
}

func (g *roundGame[M]) closeRound() {
	g.moveAllowed = false
	if g.over {
		// Abandoned by a resignation; not scored.
		g.StartGameLoop()
		return
	}

	gained := g.rules.score(g.ledger, g.ids())
	for id, pts := range gained {
		if _, ok := g.scores[id]; ok {
			g.scores[id] += pts
		}
	}
	g.history = append(g.history, g.ledger)
	g.round++

	g.host.AnnounceRoundResult(RoundResult[M]{
		Round:  g.round,
		Moves:  g.ledger,
		Gained: gained,
		Points: maps.Clone(g.scores),
	})

	if g.round >= g.opts.Rounds {
		g.end(g.finalOutcome())
	}
	g.StartGameLoop()
}

func (g *roundGame[M]) PlayerLeave(id string) {
	if !g.has(id) {
		return
	}
	if g.over {
		g.RemoveParticipant(id)
		return
	}
	g.moveAllowed = false

	if leader, ok := g.leader(id); ok {
		g.end(Resignation(leader))
	} else {
		g.end(Draw(nil))
	}
	g.RemoveParticipant(id)
	g.finish()
}

func (g *roundGame[M]) Participants() []PlayerInfo {
	return append([]PlayerInfo(nil), g.players...)
}

func (g *roundGame[M]) Status() Status {
	return Status{Round: g.round, Over: g.over, Result: g.result}
}

// Scores returns a copy of the accumulated points.
func (g *roundGame[M]) Scores() map[string]int {
	return maps.Clone(g.scores)
}

func (g *roundGame[M]) everyoneMoved() bool {
	if len(g.players) == 0 {
		return false
	}
	for _, p := range g.players {
		if _, ok := g.ledger[p.ID]; !ok {
			return false
		}
	}
	return true
}

// finalOutcome picks the top scorer. An exact tie at the top is a draw
// between the tied participants.
func (g *roundGame[M]) finalOutcome() Outcome {
	best := -1
	var top []string
	for _, p := range g.players {
		switch s := g.scores[p.ID]; {
		case s > best:
			best = s
			top = []string{p.ID}
		case s == best:
			top = append(top, p.ID)
		}
	}
	if len(top) == 1 {
		return Win(top[0])
	}
	return Draw(top)
}

// leader is the highest scorer other than except, join order breaking ties.
func (g *roundGame[M]) leader(except string) (string, bool) {
	lead, found := "", false
	for _, p := range g.players {
		if p.ID == except {
			continue
		}
		if !found || g.scores[p.ID] > g.scores[lead] {
			lead, found = p.ID, true
		}
	}
	return lead, found
}

func (g *roundGame[M]) end(o Outcome) {
	if g.over {
		return
	}
	o = o.withDetail("scores", maps.Clone(g.scores))
	o = o.withDetail("moves", g.history)
	g.over = true
	g.result = &o
}

func (g *roundGame[M]) finish() {
	if g.finished || g.result == nil {
		return
	}
	g.finished = true
	g.host.AnnounceFinish(*g.result)
}

func (g *roundGame[M]) has(id string) bool {
	_, ok := g.scores[id]
	return ok
}

func (g *roundGame[M]) ids() []string {
	ids := make([]string, len(g.players))
	for i, p := range g.players {
		ids[i] = p.ID
	}
	return ids
}

func (g *roundGame[M]) playerView() []map[string]any {
	out := make([]map[string]any, 0, len(g.players))
	for _, p := range g.players {
		out = append(out, map[string]any{
			"id":          p.ID,
			"displayName": p.DisplayName,
			"points":      g.scores[p.ID],
		})
	}
	return out
}
