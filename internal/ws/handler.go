package ws

import (
	"errors"
	"net/http"
	"time"

	"tablero_total/internal/logger"
	"tablero_total/internal/ratelimit"
	"tablero_total/internal/room"
	"tablero_total/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type HandlerConfig struct {
	// AllowedOrigin restricts the Origin header; empty allows any.
	AllowedOrigin string
	ActionLimit   int
	ActionWindow  time.Duration
}

// HandleWS upgrades the request and serves a participant connection.
//
// A token is optional. When auth is enabled and a token is given, its
// subject becomes the participant id; otherwise the connection gets a fresh
// anonymous id.
func HandleWS(reg *room.Registry, auth *service.JWT, limiter *ratelimit.Limiter, cfg HandlerConfig) gin.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if cfg.AllowedOrigin == "" {
				return true
			}
			return r.Header.Get("Origin") == cfg.AllowedOrigin
		},
	}
	limit := Limit{Max: cfg.ActionLimit, Window: cfg.ActionWindow}

	return func(c *gin.Context) {
		id, name := uuid.NewString(), ""

		if token := c.Query("token"); token != "" && auth.Enabled() {
			ident, err := auth.Parse(token)
			if err != nil {
				status := "invalid token"
				if errors.Is(err, service.ErrNoSubject) {
					status = "token has no subject"
				}
				c.JSON(http.StatusUnauthorized, gin.H{"error": status})
				return
			}
			id, name = ident.ParticipantID, ident.DisplayName
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("ws upgrade failed", "error", err)
			return
		}

		client := NewClient(id, name, conn, reg, limiter, limit)
		go client.Run()
	}
}
