package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"tablero_total/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type MatchRepository struct {
	db *pgxpool.Pool
}

func NewMatchRepository(db *pgxpool.Pool) *MatchRepository {
	return &MatchRepository{db: db}
}

// Create stores a match and its participants in one transaction.
func (r *MatchRepository) Create(ctx context.Context, m *domain.Match) error {
	optionsJSON, err := json.Marshal(m.Options)
	if err != nil {
		optionsJSON = []byte("{}")
	}
	detailsJSON, err := json.Marshal(m.Details)
	if err != nil {
		detailsJSON = []byte("{}")
	}

	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO matches
				(id, room_code, game, outcome, winner_id, options, details, started_at, finished_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			 RETURNING created_at`,
			m.ID,
			m.RoomCode,
			m.Game,
			m.Outcome,
			m.WinnerID,
			optionsJSON,
			detailsJSON,
			m.StartedAt,
			m.FinishedAt,
		).Scan(&m.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert match: %w", err)
		}

		batch := &pgx.Batch{}
		for _, p := range m.Participants {
			batch.Queue(
				`INSERT INTO match_participants (match_id, participant_id, display_name, result)
				 VALUES ($1, $2, $3, $4)`,
				m.ID, p.ParticipantID, p.DisplayName, p.Result,
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert match participants: %w", err)
		}
		return nil
	})
}

// ListByParticipant returns the participant's most recent matches.
func (r *MatchRepository) ListByParticipant(ctx context.Context, participantID string, limit int) ([]*domain.MatchHistoryEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	rows, err := r.db.Query(ctx,
		`SELECT m.id, m.room_code, m.game, m.outcome, p.result, m.finished_at
		 FROM match_participants p
		 JOIN matches m ON m.id = p.match_id
		 WHERE p.participant_id = $1
		 ORDER BY m.finished_at DESC
		 LIMIT $2`,
		participantID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.MatchHistoryEntry
	for rows.Next() {
		e := &domain.MatchHistoryEntry{}
		if err := rows.Scan(&e.MatchID, &e.RoomCode, &e.Game, &e.Outcome, &e.Result, &e.FinishedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
