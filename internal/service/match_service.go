package service

import (
	"context"
	"errors"
	"log/slog"

	"tablero_total/internal/domain"
	"tablero_total/internal/game"
	"tablero_total/internal/logger"
	"tablero_total/internal/room"

	"github.com/google/uuid"
)

var ErrHistoryUnavailable = errors.New("match history is not configured")

type MatchStore interface {
	Create(ctx context.Context, m *domain.Match) error
	ListByParticipant(ctx context.Context, participantID string, limit int) ([]*domain.MatchHistoryEntry, error)
}

type MatchPublisher interface {
	PublishMatchFinished(ctx context.Context, m *domain.Match) error
}

// MatchService stores and announces finished matches. Either dependency may
// be nil; the other still runs.
type MatchService struct {
	store     MatchStore
	publisher MatchPublisher
	log       *slog.Logger
}

func NewMatchService(store MatchStore, publisher MatchPublisher) *MatchService {
	return &MatchService{
		store:     store,
		publisher: publisher,
		log:       logger.Component("matches"),
	}
}

// RecordMatch persists a finished room's result and publishes it. A publish
// failure does not undo the stored record.
func (s *MatchService) RecordMatch(ctx context.Context, res room.Result) error {
	m := NewMatch(res)

	if s.store != nil {
		if err := s.store.Create(ctx, m); err != nil {
			return err
		}
	}
	if s.publisher != nil {
		if err := s.publisher.PublishMatchFinished(ctx, m); err != nil {
			s.log.Warn("publish match finished failed", "match", m.ID, "error", err)
		}
	}

	s.log.Info("match recorded", "match", m.ID, "room", m.RoomCode, "outcome", m.Outcome)
	return nil
}

func (s *MatchService) History(ctx context.Context, participantID string, limit int) ([]*domain.MatchHistoryEntry, error) {
	if s.store == nil {
		return nil, ErrHistoryUnavailable
	}
	return s.store.ListByParticipant(ctx, participantID, limit)
}

// NewMatch converts a room result into the stored form.
func NewMatch(res room.Result) *domain.Match {
	o := res.Outcome
	m := &domain.Match{
		ID:         uuid.New(),
		RoomCode:   res.Code,
		Game:       string(res.Options.Game),
		Outcome:    string(o.Kind),
		FinishedAt: res.FinishedAt,
		Options: map[string]any{
			"maxPlayers": res.Options.MaxPlayers,
			"rounds":     res.Options.Rounds,
			"timeout":    res.Options.TimeoutSeconds,
		},
		Details: o.Details,
	}
	if o.Winner != "" {
		winner := o.Winner
		m.WinnerID = &winner
	}
	if !res.StartedAt.IsZero() {
		started := res.StartedAt
		m.StartedAt = &started
	}

	for _, p := range res.Participants {
		m.Participants = append(m.Participants, domain.MatchParticipant{
			ParticipantID: p.ID,
			DisplayName:   p.DisplayName,
			Result:        resultFor(o, p.ID),
		})
	}
	return m
}

func resultFor(o game.Outcome, id string) domain.MatchResult {
	switch o.Result(id) {
	case "win":
		return domain.MatchResultWin
	case "draw":
		return domain.MatchResultDraw
	default:
		return domain.MatchResultLose
	}
}
