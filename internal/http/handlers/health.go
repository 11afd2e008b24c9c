package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RoomCounter reports how many rooms are open.
type RoomCounter interface {
	Len() int
}

// HealthHandler reports process and dependency health. db is nil when match
// history is disabled.
type HealthHandler struct {
	db        *pgxpool.Pool
	rooms     RoomCounter
	startTime time.Time
	version   string
}

func NewHealthHandler(db *pgxpool.Pool, rooms RoomCounter, version string) *HealthHandler {
	return &HealthHandler{
		db:        db,
		rooms:     rooms,
		startTime: time.Now(),
		version:   version,
	}
}

type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version,omitempty"`
	Uptime    string            `json:"uptime,omitempty"`
	RoomsOpen int               `json:"roomsOpen"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// GET /healthz
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GET /readyz. Rooms live in memory, so only the database can make the
// process unready.
func (h *HealthHandler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	resp := HealthResponse{
		Status:    "ready",
		Version:   h.version,
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		RoomsOpen: h.rooms.Len(),
		Checks:    map[string]string{"database": h.database(ctx)},
	}

	code := http.StatusOK
	if resp.Checks["database"] == "unreachable" {
		resp.Status = "unready"
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, resp)
}

// GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	if h.database(ctx) == "unreachable" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": "unreachable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": h.version, "roomsOpen": h.rooms.Len()})
}

func (h *HealthHandler) database(ctx context.Context) string {
	if h.db == nil {
		return "disabled"
	}
	if err := h.db.Ping(ctx); err != nil {
		return "unreachable"
	}
	return "ok"
}
