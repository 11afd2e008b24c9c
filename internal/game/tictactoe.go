package game

import (
	"encoding/json"
	"math/rand/v2"
)

type Symbol string

const (
	SymbolCross  Symbol = "cross"
	SymbolCircle Symbol = "circle"
)

var winningLines = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8},
	{0, 4, 8}, {2, 4, 6},
}

func init() {
	register(KindTicTacToe, registration{
		fixedPlayers: 2,
		maxPlayers:   2,
		build:        func(h Host, o Options) Session { return NewTicTacToe(h, o) },
	})
}

// TicTacToe is a turn-based board game: one countdown per turn, a missed
// turn loses the match.
type TicTacToe struct {
	host Host
	opts Options

	players []PlayerInfo
	symbols map[string]Symbol

	board       [9]string
	nextTurn    string
	round       int
	moveAllowed bool

	over     bool
	result   *Outcome
	finished bool

	pickFirst func(ids []string) string
}

func NewTicTacToe(host Host, opts Options) *TicTacToe {
	return &TicTacToe{
		host:    host,
		opts:    opts,
		symbols: make(map[string]Symbol),
		pickFirst: func(ids []string) string {
			return ids[rand.IntN(len(ids))]
		},
	}
}

func (g *TicTacToe) Kind() Kind       { return KindTicTacToe }
func (g *TicTacToe) Options() Options { return g.opts }

func (g *TicTacToe) AddParticipant(p PlayerInfo) bool {
	if len(g.players) >= g.opts.MaxPlayers || g.has(p.ID) {
		return false
	}
	sym := SymbolCross
	for _, s := range g.symbols {
		if s == SymbolCross {
			sym = SymbolCircle
		}
	}
	g.players = append(g.players, p)
	g.symbols[p.ID] = sym
	return true
}

func (g *TicTacToe) RemoveParticipant(id string) bool {
	for i, p := range g.players {
		if p.ID == id {
			g.players = append(g.players[:i], g.players[i+1:]...)
			delete(g.symbols, id)
			return true
		}
	}
	return false
}

func (g *TicTacToe) RecordAction(id string, raw json.RawMessage) {
	if !g.moveAllowed || g.over || id != g.nextTurn {
		return
	}

	var action cellAction
	if err := decodeAction(raw, &action); err != nil {
		return
	}
	cell := *action.Cell
	if g.board[cell] != "" {
		return
	}

	g.board[cell] = id
	g.nextTurn = g.other(id)
	g.moveAllowed = false

	g.host.AnnounceRoundResult(map[string]any{
		"round": g.round,
		"cell":  cell,
		"by":    id,
		"board": g.boardView(),
	})
}

func (g *TicTacToe) StartGameLoop() {
	if g.finished {
		return
	}
	if !g.over && g.round > 0 {
		g.checkBoard()
	}
	if g.over {
		g.finish()
		return
	}

	if g.round == 0 {
		g.nextTurn = g.pickFirst(g.ids())
		g.host.AnnounceInitialInfo(map[string]any{
			"players":  g.playerView(),
			"board":    g.boardView(),
			"nextTurn": g.nextTurn,
		})
	}

	turn := g.nextTurn
	g.round++
	g.moveAllowed = true

	g.host.ScheduleCountdown(g.opts.TimeoutSeconds, func() { g.closeTurn(turn) }, func(int) bool {
		return g.nextTurn != turn
	})
	g.host.AnnounceTurn([]string{turn})
}

func (g *TicTacToe) closeTurn(turn string) {
	g.moveAllowed = false
	if !g.over && g.nextTurn == turn {
		g.end(Timeout(g.other(turn)))
	}
	g.StartGameLoop()
}

func (g *TicTacToe) PlayerLeave(id string) {
	if !g.has(id) {
		return
	}
	if g.over {
		g.RemoveParticipant(id)
		return
	}
	g.moveAllowed = false
	if other := g.other(id); other != "" {
		g.end(Resignation(other))
	} else {
		g.end(Draw(nil))
	}
	g.RemoveParticipant(id)
	g.finish()
}

func (g *TicTacToe) Participants() []PlayerInfo {
	return append([]PlayerInfo(nil), g.players...)
}

func (g *TicTacToe) Status() Status {
	return Status{Round: g.round, Over: g.over, Result: g.result}
}

// Symbol returns the mark assigned to a participant.
func (g *TicTacToe) Symbol(id string) Symbol {
	return g.symbols[id]
}

// checkBoard is the single point where a finished board ends the match.
func (g *TicTacToe) checkBoard() {
	for _, line := range winningLines {
		a := g.board[line[0]]
		if a != "" && a == g.board[line[1]] && a == g.board[line[2]] {
			g.end(Win(a))
			return
		}
	}
	for _, cell := range g.board {
		if cell == "" {
			return
		}
	}
	g.end(Draw(g.ids()))
}

func (g *TicTacToe) end(o Outcome) {
	if g.over {
		return
	}
	o = o.withDetail("board", g.boardView())
	g.over = true
	g.result = &o
}

func (g *TicTacToe) finish() {
	if g.finished || g.result == nil {
		return
	}
	g.finished = true
	g.host.AnnounceFinish(*g.result)
}

func (g *TicTacToe) has(id string) bool {
	_, ok := g.symbols[id]
	return ok
}

func (g *TicTacToe) other(id string) string {
	for _, p := range g.players {
		if p.ID != id {
			return p.ID
		}
	}
	return ""
}

func (g *TicTacToe) ids() []string {
	ids := make([]string, len(g.players))
	for i, p := range g.players {
		ids[i] = p.ID
	}
	return ids
}

func (g *TicTacToe) boardView() []Symbol {
	view := make([]Symbol, len(g.board))
	for i, owner := range g.board {
		if owner != "" {
			view[i] = g.symbols[owner]
		}
	}
	return view
}

func (g *TicTacToe) playerView() []map[string]any {
	out := make([]map[string]any, 0, len(g.players))
	for _, p := range g.players {
		out = append(out, map[string]any{
			"id":          p.ID,
			"displayName": p.DisplayName,
			"symbol":      g.symbols[p.ID],
		})
	}
	return out
}
