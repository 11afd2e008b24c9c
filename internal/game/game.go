package game

import (
	"encoding/json"
	"errors"
)

// Kind names a supported game.
type Kind string

const (
	KindTicTacToe         Kind = "tic_tac_toe"
	KindRockPaperScissors Kind = "rock_paper_scissors"
	KindEvenOdd           Kind = "even_odd"
)

var ErrUnsupportedGame = errors.New("unsupported_game")

// Options is what the room creator asks for. MaxPlayers is overwritten by
// games with a fixed player count.
type Options struct {
	Game           Kind `json:"game"`
	MaxPlayers     int  `json:"maxPlayers"`
	Rounds         int  `json:"rounds"`
	TimeoutSeconds int  `json:"timeout"`
}

// PlayerInfo is the session's cached view of a participant.
type PlayerInfo struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

// Status is the state every session exposes regardless of the game.
type Status struct {
	Round  int      `json:"round"`
	Over   bool     `json:"isOver"`
	Result *Outcome `json:"result,omitempty"`
}

// Session is one match of one game. All methods are called from the owning
// room's goroutine; implementations do no locking of their own.
type Session interface {
	Kind() Kind
	Options() Options

	// AddParticipant registers a player. False when full or already present.
	AddParticipant(p PlayerInfo) bool
	// RemoveParticipant drops a player who left before the match started.
	RemoveParticipant(id string) bool
	// RecordAction applies a raw move. Malformed or inadmissible moves are
	// dropped silently.
	RecordAction(id string, raw json.RawMessage)
	// StartGameLoop begins round one and is re-entered to advance rounds.
	StartGameLoop()
	// PlayerLeave ends the match in favour of whoever remains.
	PlayerLeave(id string)

	Participants() []PlayerInfo
	Status() Status
}

// Host is what a session needs from the room that runs it.
type Host interface {
	AnnounceInitialInfo(info any)
	AnnounceTurn(participants []string)
	AnnounceRoundResult(result any)
	AnnounceFinish(outcome Outcome)
	ScheduleCountdown(seconds int, onComplete func(), earlyComplete func(remaining int) bool)
}
