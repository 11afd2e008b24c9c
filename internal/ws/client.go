package ws

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"tablero_total/internal/logger"
	"tablero_total/internal/metrics"
	"tablero_total/internal/ratelimit"
	"tablero_total/internal/room"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 30 * time.Second
	pingPeriod     = 25 * time.Second
	maxMessageSize = 4096
	sendBuffer     = 256
	requestTimeout = 5 * time.Second
)

var validate = validator.New()

// Limit caps inbound messages per participant.
type Limit struct {
	Max    int
	Window time.Duration
}

// Client is one websocket connection. It is the room.Participant the rooms
// talk to; only writePump writes to the socket.
type Client struct {
	id      string
	conn    *websocket.Conn
	reg     *room.Registry
	limiter *ratelimit.Limiter
	limit   Limit
	log     *slog.Logger

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once

	mu   sync.RWMutex
	name string
}

func NewClient(id, displayName string, conn *websocket.Conn, reg *room.Registry, limiter *ratelimit.Limiter, limit Limit) *Client {
	return &Client{
		id:      id,
		name:    displayName,
		conn:    conn,
		reg:     reg,
		limiter: limiter,
		limit:   limit,
		log:     logger.Participant(id),
		send:    make(chan []byte, sendBuffer),
		done:    make(chan struct{}),
	}
}

func (c *Client) ID() string { return c.id }

func (c *Client) DisplayName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.name
}

func (c *Client) setName(name string) {
	c.mu.Lock()
	c.name = name
	c.mu.Unlock()
}

// Send queues a room event. It never blocks the room: a client that cannot
// keep up is disconnected.
func (c *Client) Send(msg room.Message) {
	c.write(outbound{Type: msg.Type, Payload: msg.Payload})
}

// Run serves the connection until it closes, then leaves any room.
func (c *Client) Run() {
	metrics.ParticipantsConnected.Inc()
	defer metrics.ParticipantsConnected.Dec()

	c.log.Info("connected")
	go c.writePump()
	c.readPump()
	c.log.Info("disconnected")
}

func (c *Client) readPump() {
	defer func() {
		c.reg.Leave(c)
		c.close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	// writePump answers the close frame once the seat is released.
	c.conn.SetCloseHandler(func(int, string) error { return nil })

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug("read error", "error", err)
			}
			return
		}
		c.handle(msg)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.log.Debug("write error", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *Client) write(msg outbound) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.log.Error("marshal outbound", "type", msg.Type, "error", err)
		return
	}

	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.send <- data:
	case <-c.done:
	default:
		c.log.Warn("send buffer full, dropping connection")
		c.close()
	}
}

func (c *Client) reply(env Envelope, payload any) {
	c.write(outbound{Type: env.Type, Ref: env.Ref, Payload: payload})
}

func (c *Client) replyError(env Envelope, code string) {
	c.write(outbound{Type: MsgError, Ref: env.Ref, Payload: ErrorPayload{Code: code}})
}

func (c *Client) handle(raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Type == "" {
		c.replyError(env, CodeBadRequest)
		return
	}
	if !knownTypes[env.Type] {
		c.replyError(env, CodeUnknownType)
		return
	}
	metrics.ActionsReceived.WithLabelValues(env.Type).Inc()

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	if !c.limiter.Allow(ctx, "ws:"+c.id, c.limit.Max, c.limit.Window) {
		c.replyError(env, CodeRateLimited)
		return
	}

	switch env.Type {
	case MsgCreate:
		c.create(ctx, env)
	case MsgJoin:
		c.join(ctx, env)
	case MsgMarkReady:
		c.markReady(ctx, env)
	case MsgClientReady:
		if r, err := c.reg.Route(c.id); err == nil {
			r.Acknowledge(c.id)
		}
	case MsgMove:
		// Moves from participants outside a room are dropped silently, like
		// illegal moves inside one.
		if r, err := c.reg.Route(c.id); err == nil {
			r.Move(c.id, env.Payload)
		}
	}
}

func (c *Client) create(ctx context.Context, env Envelope) {
	var p CreatePayload
	if err := decode(env.Payload, &p); err != nil {
		c.replyError(env, CodeBadRequest)
		return
	}
	c.setName(p.DisplayName)

	r, err := c.reg.Create(ctx, c, p.Options)
	if err != nil {
		c.log.Info("create room rejected", "game", p.Options.Game, "error", err)
		c.replyError(env, room.ErrorCode(err))
		return
	}
	c.reply(env, CreatedPayload{RoomCode: r.Code(), Options: r.Options()})
}

func (c *Client) join(ctx context.Context, env Envelope) {
	var p JoinPayload
	if err := decode(env.Payload, &p); err != nil {
		c.replyError(env, CodeBadRequest)
		return
	}
	c.setName(p.DisplayName)

	r, err := c.reg.Join(ctx, c, p.RoomCode)
	if err != nil {
		c.log.Info("join room rejected", "room", p.RoomCode, "error", err)
		c.replyError(env, room.ErrorCode(err))
		return
	}
	c.reply(env, JoinedPayload{RoomCode: r.Code(), Options: r.Options()})
}

func (c *Client) markReady(ctx context.Context, env Envelope) {
	r, err := c.reg.Route(c.id)
	if err != nil {
		c.replyError(env, room.ErrorCode(err))
		return
	}
	state, err := r.ToggleReady(ctx, c.id)
	if err != nil {
		c.replyError(env, room.ErrorCode(err))
		return
	}
	c.reply(env, ReadyPayload{ReadyState: state})
}

// decode parses a request payload strictly and validates it.
func decode(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return errors.New("empty payload")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return fmt.Errorf("trailing data in payload")
	}
	return validate.Struct(v)
}
