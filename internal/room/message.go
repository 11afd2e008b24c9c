package room

import "tablero_total/internal/game"

// Outbound event types.
const (
	EventPlayersWaiting = "show_players_waiting"
	EventTime           = "show_time"
	EventStartGame      = "start_game"
	EventInitialInfo    = "show_initial_info"
	EventNextTurn       = "next_turn"
	EventTurnResults    = "show_turn_results"
	EventFinishGame     = "finish_game"
	EventError          = "error"
)

// CodeNotEnoughPlayers is sent when the lobby closes with fewer than two
// participants.
const CodeNotEnoughPlayers = "not_enough_players"

// Message is one outbound event. The transport decides how to frame it.
type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Participant is a connected player as seen by a room. Send must not block.
type Participant interface {
	ID() string
	DisplayName() string
	Send(msg Message)
}

type ReadyState string

const (
	NotReady ReadyState = "not_ready"
	Ready    ReadyState = "ready"
)

type PlayerView struct {
	ID          string     `json:"id"`
	DisplayName string     `json:"displayName"`
	ReadyState  ReadyState `json:"readyState"`
}

type WaitingPayload struct {
	Players []PlayerView `json:"players"`
}

type TimePayload struct {
	Remaining int `json:"remaining"`
}

type TurnPayload struct {
	Participants []string `json:"participants"`
}

type ErrorPayload struct {
	Code string `json:"code"`
}

// FinishPayload is the outcome plus how it went for the receiving participant.
type FinishPayload struct {
	game.Outcome
	You string `json:"you"`
}
