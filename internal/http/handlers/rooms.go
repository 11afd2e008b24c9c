package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"tablero_total/internal/domain"
	"tablero_total/internal/room"
	"tablero_total/internal/service"

	"github.com/gin-gonic/gin"
)

type RoomLookup interface {
	GetRoom(code string) (*room.Room, error)
}

type MatchHistory interface {
	History(ctx context.Context, participantID string, limit int) ([]*domain.MatchHistoryEntry, error)
}

// RoomHandler serves read-only views of rooms and finished matches.
type RoomHandler struct {
	rooms   RoomLookup
	matches MatchHistory
}

func NewRoomHandler(rooms RoomLookup, matches MatchHistory) *RoomHandler {
	return &RoomHandler{rooms: rooms, matches: matches}
}

// GET /api/v1/rooms/:code
func (h *RoomHandler) Room(c *gin.Context) {
	code := strings.ToUpper(strings.TrimSpace(c.Param("code")))

	r, err := h.rooms.GetRoom(code)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": room.ErrRoomNotFound.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	snap, err := r.Snapshot(ctx)
	if err != nil {
		// released between lookup and snapshot
		c.JSON(http.StatusNotFound, gin.H{"error": room.ErrRoomNotFound.Error()})
		return
	}
	c.JSON(http.StatusOK, snap)
}

// GET /api/v1/matches?participant=<id>&limit=<n>
func (h *RoomHandler) Matches(c *gin.Context) {
	participant := c.Query("participant")
	if participant == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "participant is required"})
		return
	}

	limit := 20
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	history, err := h.matches.History(c.Request.Context(), participant, limit)
	if errors.Is(err, service.ErrHistoryUnavailable) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load matches"})
		return
	}
	if history == nil {
		history = []*domain.MatchHistoryEntry{}
	}

	c.JSON(http.StatusOK, gin.H{"matches": history})
}
