package ws

import (
	"encoding/json"

	"tablero_total/internal/game"
	"tablero_total/internal/room"
)

// Envelope frames every message in both directions. Ref echoes the
// request's ref on replies so clients can match them.
type Envelope struct {
	Type    string          `json:"type"`
	Ref     string          `json:"ref,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type outbound struct {
	Type    string `json:"type"`
	Ref     string `json:"ref,omitempty"`
	Payload any    `json:"payload,omitempty"`
}

// client → server
type CreatePayload struct {
	DisplayName string       `json:"displayName" validate:"required,max=32"`
	Options     game.Options `json:"options"`
}

type JoinPayload struct {
	DisplayName string `json:"displayName" validate:"required,max=32"`
	RoomCode    string `json:"roomCode" validate:"required,len=6,alphanum"`
}

// server → client
type CreatedPayload struct {
	RoomCode string       `json:"roomCode"`
	Options  game.Options `json:"options"`
}

type JoinedPayload struct {
	RoomCode string       `json:"roomCode"`
	Options  game.Options `json:"options"`
}

type ReadyPayload struct {
	ReadyState room.ReadyState `json:"readyState"`
}

type ErrorPayload struct {
	Code string `json:"code"`
}
