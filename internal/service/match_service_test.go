package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"tablero_total/internal/domain"
	"tablero_total/internal/game"
	"tablero_total/internal/room"
)

type memStore struct {
	matches []*domain.Match
	err     error
}

func (s *memStore) Create(_ context.Context, m *domain.Match) error {
	if s.err != nil {
		return s.err
	}
	s.matches = append(s.matches, m)
	return nil
}

func (s *memStore) ListByParticipant(_ context.Context, id string, _ int) ([]*domain.MatchHistoryEntry, error) {
	var out []*domain.MatchHistoryEntry
	for _, m := range s.matches {
		for _, p := range m.Participants {
			if p.ParticipantID == id {
				out = append(out, &domain.MatchHistoryEntry{MatchID: m.ID, Game: m.Game, Result: p.Result})
			}
		}
	}
	return out, nil
}

type memPublisher struct {
	published []*domain.Match
	err       error
}

func (p *memPublisher) PublishMatchFinished(_ context.Context, m *domain.Match) error {
	p.published = append(p.published, m)
	return p.err
}

func result(o game.Outcome) room.Result {
	return room.Result{
		Code:    "ABC123",
		Options: game.Options{Game: game.KindRockPaperScissors, MaxPlayers: 2, Rounds: 3, TimeoutSeconds: 10},
		Participants: []game.PlayerInfo{
			{ID: "p1", DisplayName: "Ana"},
			{ID: "p2", DisplayName: "Bo"},
		},
		Outcome:    o,
		StartedAt:  time.Unix(100, 0),
		FinishedAt: time.Unix(160, 0),
	}
}

func TestRecordMatch(t *testing.T) {
	store, pub := &memStore{}, &memPublisher{}
	svc := NewMatchService(store, pub)

	if err := svc.RecordMatch(context.Background(), result(game.Win("p1"))); err != nil {
		t.Fatalf("record: %v", err)
	}
	if len(store.matches) != 1 || len(pub.published) != 1 {
		t.Fatalf("stored %d, published %d", len(store.matches), len(pub.published))
	}

	m := store.matches[0]
	if m.WinnerID == nil || *m.WinnerID != "p1" || m.Outcome != "winner" || m.Game != "rock_paper_scissors" {
		t.Fatalf("match = %+v", m)
	}

	history, err := svc.History(context.Background(), "p2", 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 || history[0].Result != domain.MatchResultLose {
		t.Fatalf("history = %+v", history)
	}
}

func TestRecordMatchDrawResults(t *testing.T) {
	m := NewMatch(result(game.Draw([]string{"p1", "p2"})))
	for _, p := range m.Participants {
		if p.Result != domain.MatchResultDraw {
			t.Fatalf("%s result = %s; want draw", p.ParticipantID, p.Result)
		}
	}
	if m.WinnerID != nil {
		t.Fatalf("draw has winner %s", *m.WinnerID)
	}
}

func TestRecordMatchFailures(t *testing.T) {
	boom := errors.New("boom")

	svc := NewMatchService(&memStore{err: boom}, &memPublisher{})
	if err := svc.RecordMatch(context.Background(), result(game.Win("p1"))); !errors.Is(err, boom) {
		t.Fatalf("store failure err = %v", err)
	}

	pub := &memPublisher{err: boom}
	svc = NewMatchService(&memStore{}, pub)
	if err := svc.RecordMatch(context.Background(), result(game.Win("p1"))); err != nil {
		t.Fatalf("publish failure surfaced: %v", err)
	}

	svc = NewMatchService(nil, nil)
	if err := svc.RecordMatch(context.Background(), result(game.Win("p1"))); err != nil {
		t.Fatalf("no-op record: %v", err)
	}
	if _, err := svc.History(context.Background(), "p1", 10); !errors.Is(err, ErrHistoryUnavailable) {
		t.Fatalf("history err = %v", err)
	}
}
