package config

import (
	"os"
	"strconv"
	"time"

	"tablero_total/internal/events"
	"tablero_total/internal/room"

	"github.com/joho/godotenv"
)

type Config struct {
	AppPort     string
	DatabaseURL string // empty disables match persistence
	JWTSecret   string // empty disables token identities

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	NatsURL     string // empty disables event publishing
	NatsSubject string

	AllowedOrigin string

	Room room.Config

	// per IP, ws handshake and REST
	APIRateLimit  int
	APIRateWindow time.Duration

	// per participant, inbound ws messages
	WSRateLimit  int
	WSRateWindow time.Duration

	LogLevel string
	LogJSON  bool
}

// Загрузка конфига из env
func Load() *Config {
	_ = godotenv.Load()

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	subject := os.Getenv("NATS_SUBJECT")
	if subject == "" {
		subject = events.DefaultSubject
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}

	def := room.DefaultConfig()

	return &Config{
		AppPort:       port,
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       envInt("REDIS_DB", 0),
		NatsURL:       os.Getenv("NATS_URL"),
		NatsSubject:   subject,
		AllowedOrigin: os.Getenv("ALLOWED_ORIGIN"),
		Room: room.Config{
			LobbyTimeout: envDuration("LOBBY_TIMEOUT_SECONDS", time.Second, def.LobbyTimeout),
			ReadyPoll:    envDuration("READY_POLL_MS", time.Millisecond, def.ReadyPoll),
			StartTimeout: envDuration("START_TIMEOUT_SECONDS", time.Second, def.StartTimeout),
		},
		APIRateLimit:  envInt("API_RATE_LIMIT", 30),
		APIRateWindow: envDuration("API_RATE_WINDOW_SECONDS", time.Second, time.Minute),
		WSRateLimit:   envInt("WS_RATE_LIMIT", 120),
		WSRateWindow:  envDuration("WS_RATE_WINDOW_SECONDS", time.Second, time.Minute),
		LogLevel:      logLevel,
		LogJSON:       os.Getenv("LOG_JSON") == "true",
	}
}

// envInt reads a non-negative integer, falling back to def when unset or
// malformed.
func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return def
}

// envDuration reads a positive count of unit.
func envDuration(key string, unit, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return time.Duration(n) * unit
		}
	}
	return def
}
