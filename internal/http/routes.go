package http

import (
	"net/http"
	"time"

	"tablero_total/internal/http/handlers"
	"tablero_total/internal/http/middleware"
	"tablero_total/internal/ratelimit"
	"tablero_total/internal/room"
	"tablero_total/internal/service"
	"tablero_total/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps are the components the router exposes. DB may be nil.
type Deps struct {
	DB       *pgxpool.Pool
	Registry *room.Registry
	Matches  *service.MatchService
	JWT      *service.JWT
	Limiter  *ratelimit.Limiter
	Version  string

	AllowedOrigin string

	APIRateLimit  int
	APIRateWindow time.Duration
	WSRateLimit   int
	WSRateWindow  time.Duration
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	r.Use(cors(d.AllowedOrigin))

	healthHandler := handlers.NewHealthHandler(d.DB, d.Registry, d.Version)
	roomHandler := handlers.NewRoomHandler(d.Registry, d.Matches)

	// Health checks (no rate limiting)
	r.GET("/health", healthHandler.Health)
	r.GET("/healthz", healthHandler.Liveness)
	r.GET("/readyz", healthHandler.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	apiRL := middleware.RateLimit(d.Limiter, d.APIRateLimit, d.APIRateWindow)

	v1 := r.Group("/api/v1")
	v1.Use(apiRL)
	v1.GET("/rooms/:code", roomHandler.Room)
	v1.GET("/matches", roomHandler.Matches)

	r.GET("/ws", apiRL, ws.HandleWS(d.Registry, d.JWT, d.Limiter, ws.HandlerConfig{
		AllowedOrigin: d.AllowedOrigin,
		ActionLimit:   d.WSRateLimit,
		ActionWindow:  d.WSRateWindow,
	}))
}

func cors(allowedOrigin string) gin.HandlerFunc {
	origin := allowedOrigin
	if origin == "" {
		origin = "*"
	}
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
