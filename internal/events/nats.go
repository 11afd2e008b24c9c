// Package events publishes match lifecycle events to NATS.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"tablero_total/internal/domain"
	"tablero_total/internal/logger"

	"github.com/nats-io/nats.go"
)

const DefaultSubject = "tablero.match.finished"

// MatchFinished is the event body published for every finished match.
type MatchFinished struct {
	MatchID      string                    `json:"matchId"`
	RoomCode     string                    `json:"roomCode"`
	Game         string                    `json:"game"`
	Outcome      string                    `json:"outcome"`
	WinnerID     *string                   `json:"winnerId,omitempty"`
	Participants []domain.MatchParticipant `json:"participants"`
	FinishedAt   time.Time                 `json:"finishedAt"`
}

type Publisher struct {
	nc      *nats.Conn
	subject string
}

// Connect dials NATS with unlimited reconnects.
func Connect(url, subject string) (*Publisher, error) {
	if subject == "" {
		subject = DefaultSubject
	}
	log := logger.Component("events")

	opts := []nats.Option{
		nats.Name("tablero"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return &Publisher{nc: nc, subject: subject}, nil
}

func (p *Publisher) PublishMatchFinished(ctx context.Context, m *domain.Match) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(MatchFinished{
		MatchID:      m.ID.String(),
		RoomCode:     m.RoomCode,
		Game:         m.Game,
		Outcome:      m.Outcome,
		WinnerID:     m.WinnerID,
		Participants: m.Participants,
		FinishedAt:   m.FinishedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := &nats.Msg{
		Subject: p.subject,
		Data:    data,
		Header: nats.Header{
			"Event-Type": []string{"match.finished"},
			"Match-ID":   []string{m.ID.String()},
		},
	}
	if err := p.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish %s: %w", p.subject, err)
	}
	return nil
}

// Close flushes pending messages and closes the connection.
func (p *Publisher) Close() error {
	if p == nil || p.nc == nil {
		return nil
	}
	return p.nc.Drain()
}
