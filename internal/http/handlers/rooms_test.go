package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"tablero_total/internal/domain"
	"tablero_total/internal/game"
	"tablero_total/internal/room"
	"tablero_total/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type stubHistory struct {
	entries []*domain.MatchHistoryEntry
	gotID   string
	gotMax  int
}

func (s *stubHistory) History(_ context.Context, id string, limit int) ([]*domain.MatchHistoryEntry, error) {
	s.gotID, s.gotMax = id, limit
	return s.entries, nil
}

func newRouter(reg *room.Registry, history MatchHistory) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewRoomHandler(reg, history)
	r.GET("/api/v1/rooms/:code", h.Room)
	r.GET("/api/v1/matches", h.Matches)
	health := NewHealthHandler(nil, reg, "test")
	r.GET("/readyz", health.Readiness)
	r.GET("/health", health.Health)
	return r
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestRoomSnapshot(t *testing.T) {
	reg := room.NewRegistry(room.DefaultConfig(), nil, nil)
	t.Cleanup(reg.Shutdown)
	if _, err := reg.CreateRoom("ABC123", game.Options{Game: game.KindTicTacToe}); err != nil {
		t.Fatalf("create: %v", err)
	}
	r := newRouter(reg, &stubHistory{})

	w := get(r, "/api/v1/rooms/abc123")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var snap room.Snapshot
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.Code != "ABC123" || snap.State != room.StateLobby || snap.Options.MaxPlayers != 2 {
		t.Fatalf("snapshot = %+v", snap)
	}

	if w := get(r, "/api/v1/rooms/ZZZZZZ"); w.Code != http.StatusNotFound {
		t.Fatalf("unknown room status = %d", w.Code)
	}
}

func TestMatches(t *testing.T) {
	reg := room.NewRegistry(room.DefaultConfig(), nil, nil)
	t.Cleanup(reg.Shutdown)

	history := &stubHistory{entries: []*domain.MatchHistoryEntry{
		{MatchID: uuid.New(), Game: "even_odd", Result: domain.MatchResultWin},
	}}
	r := newRouter(reg, history)

	tests := []struct {
		name   string
		path   string
		status int
	}{
		{"ok", "/api/v1/matches?participant=p1&limit=5", http.StatusOK},
		{"missing participant", "/api/v1/matches", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := get(r, tt.path); w.Code != tt.status {
				t.Fatalf("status = %d; want %d", w.Code, tt.status)
			}
		})
	}
	if history.gotID != "p1" || history.gotMax != 5 {
		t.Fatalf("history called with %s/%d", history.gotID, history.gotMax)
	}

	disabled := newRouter(reg, service.NewMatchService(nil, nil))
	if w := get(disabled, "/api/v1/matches?participant=p1"); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("disabled history status = %d", w.Code)
	}
}

func TestReadinessWithoutDatabase(t *testing.T) {
	reg := room.NewRegistry(room.DefaultConfig(), nil, nil)
	t.Cleanup(reg.Shutdown)
	r := newRouter(reg, &stubHistory{})

	w := get(r, "/readyz")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "ready" || resp.Checks["database"] != "disabled" || resp.RoomsOpen != 0 {
		t.Fatalf("readiness = %+v", resp)
	}

	if w := get(r, "/health"); w.Code != http.StatusOK {
		t.Fatalf("health status = %d", w.Code)
	}
}
