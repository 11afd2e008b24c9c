package domain

import (
	"time"

	"github.com/google/uuid"
)

// MatchResult is how a match ended for one participant.
type MatchResult string

const (
	MatchResultWin  MatchResult = "win"
	MatchResultLose MatchResult = "lose"
	MatchResultDraw MatchResult = "draw"
)

// Match is a finished match as stored.
type Match struct {
	ID           uuid.UUID          `db:"id" json:"id"`
	RoomCode     string             `db:"room_code" json:"room_code"`
	Game         string             `db:"game" json:"game"`
	Outcome      string             `db:"outcome" json:"outcome"`
	WinnerID     *string            `db:"winner_id" json:"winner_id,omitempty"`
	Options      map[string]any     `db:"options" json:"options"`
	Details      map[string]any     `db:"details" json:"details,omitempty"`
	StartedAt    *time.Time         `db:"started_at" json:"started_at,omitempty"`
	FinishedAt   time.Time          `db:"finished_at" json:"finished_at"`
	CreatedAt    time.Time          `db:"created_at" json:"created_at"`
	Participants []MatchParticipant `json:"participants"`
}

type MatchParticipant struct {
	ParticipantID string      `db:"participant_id" json:"participant_id"`
	DisplayName   string      `db:"display_name" json:"display_name"`
	Result        MatchResult `db:"result" json:"result"`
}

// MatchHistoryEntry is one row of a participant's history.
type MatchHistoryEntry struct {
	MatchID    uuid.UUID   `db:"match_id" json:"match_id"`
	RoomCode   string      `db:"room_code" json:"room_code"`
	Game       string      `db:"game" json:"game"`
	Outcome    string      `db:"outcome" json:"outcome"`
	Result     MatchResult `db:"result" json:"result"`
	FinishedAt time.Time   `db:"finished_at" json:"finished_at"`
}
