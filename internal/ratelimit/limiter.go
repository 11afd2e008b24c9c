// Package ratelimit implements fixed-window counters shared by the HTTP
// middleware and the websocket action limiter.
package ratelimit

import (
	"context"
	"strconv"
	"sync"
	"time"

	"tablero_total/internal/logger"

	redis "github.com/redis/go-redis/v9"
)

// NewRedisClient connects to Redis. It returns nil when addr is empty or the
// server does not answer a ping, so callers fall back to in-memory counting.
func NewRedisClient(addr, password string, db int) *redis.Client {
	if addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unavailable, rate limits are per process", "addr", addr, "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

type window struct {
	start time.Time
	count int
}

// Limiter counts hits per key in fixed windows. With a Redis client the
// counters are shared across processes (INCR/EXPIRE); without one they live
// in this process only.
type Limiter struct {
	rdb *redis.Client

	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

func New(rdb *redis.Client) *Limiter {
	return &Limiter{
		rdb:     rdb,
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

// Allow records one hit for key and reports whether it is within max hits per
// window. Redis errors fail open.
func (l *Limiter) Allow(ctx context.Context, key string, max int, win time.Duration) bool {
	if max <= 0 {
		return true
	}
	key = "rl:" + strconv.FormatInt(int64(win.Seconds()), 10) + ":" + key

	if l.rdb != nil {
		val, err := l.rdb.Incr(ctx, key).Result()
		if err != nil {
			logger.Debug("rate limiter redis error", "key", key, "error", err)
			return true
		}
		if val == 1 {
			l.rdb.Expire(ctx, key, win)
		}
		return val <= int64(max)
	}

	return l.allowLocal(key, max, win)
}

func (l *Limiter) allowLocal(key string, max int, win time.Duration) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[key]
	if !ok || now.Sub(w.start) > win {
		l.windows[key] = &window{start: now, count: 1}
		l.sweep(now, win)
		return true
	}
	w.count++
	return w.count <= max
}

// sweep drops expired windows once the map grows.
func (l *Limiter) sweep(now time.Time, win time.Duration) {
	if len(l.windows) < 1024 {
		return
	}
	for k, w := range l.windows {
		if now.Sub(w.start) > win {
			delete(l.windows, k)
		}
	}
}
