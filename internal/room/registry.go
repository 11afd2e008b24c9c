package room

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"tablero_total/internal/game"
	"tablero_total/internal/logger"
	"tablero_total/internal/metrics"

	"github.com/jonboulle/clockwork"
)

const maxCodeAttempts = 16

// Registry owns every live room by code and remembers which room each
// participant is in. A participant can be in at most one room.
type Registry struct {
	mu      sync.Mutex
	rooms   map[string]*Room
	located map[string]string

	cfg      Config
	clock    clockwork.Clock
	factory  *game.Factory
	recorder Recorder
	newCode  func() (string, error)
	log      *slog.Logger
}

// NewRegistry creates an empty registry. recorder may be nil.
func NewRegistry(cfg Config, clock clockwork.Clock, recorder Recorder) *Registry {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Registry{
		rooms:    make(map[string]*Room),
		located:  make(map[string]string),
		cfg:      cfg,
		clock:    clock,
		factory:  game.NewFactory(),
		recorder: recorder,
		newCode:  NewCode,
		log:      logger.Component("registry"),
	}
}

// CreateRoom registers and starts a room under code. Either the room is
// fully registered or nothing is.
func (reg *Registry) CreateRoom(code string, opts game.Options) (*Room, error) {
	reg.mu.Lock()
	r, err := reg.createLocked(normalizeCode(code), opts)
	reg.mu.Unlock()
	if err != nil {
		return nil, err
	}
	go r.Run()
	return r, nil
}

// Create opens a room under a fresh code with p as its first participant.
func (reg *Registry) Create(ctx context.Context, p Participant, opts game.Options) (*Room, error) {
	reg.mu.Lock()
	if _, busy := reg.located[p.ID()]; busy {
		reg.mu.Unlock()
		return nil, ErrAlreadyInRoom
	}
	code, err := reg.freeCodeLocked()
	if err != nil {
		reg.mu.Unlock()
		return nil, fmt.Errorf("%w: %w", ErrCannotCreate, err)
	}
	r, err := reg.createLocked(code, opts)
	if err != nil {
		reg.mu.Unlock()
		return nil, err
	}
	reg.located[p.ID()] = code
	reg.mu.Unlock()

	go r.Run()

	if err := r.Join(ctx, p); err != nil {
		reg.unlocate(code, p.ID())
		r.Close()
		return nil, fmt.Errorf("%w: %w", ErrCannotCreate, err)
	}
	return r, nil
}

// Join admits p into the room with the given code.
func (reg *Registry) Join(ctx context.Context, p Participant, code string) (*Room, error) {
	code = normalizeCode(code)

	reg.mu.Lock()
	if _, busy := reg.located[p.ID()]; busy {
		reg.mu.Unlock()
		return nil, ErrAlreadyInRoom
	}
	r, ok := reg.rooms[code]
	if !ok {
		reg.mu.Unlock()
		return nil, ErrRoomNotFound
	}
	// Reserve the slot so a concurrent create/join for p fails fast.
	reg.located[p.ID()] = code
	reg.mu.Unlock()

	if err := r.Join(ctx, p); err != nil {
		reg.unlocate(code, p.ID())
		return nil, err
	}
	return r, nil
}

func (reg *Registry) GetRoom(code string) (*Room, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	r, ok := reg.rooms[normalizeCode(code)]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return r, nil
}

// DeleteRoom drops the room and stops it. Deleting an unknown code is a no-op.
func (reg *Registry) DeleteRoom(code string) {
	reg.mu.Lock()
	r, ok := reg.rooms[normalizeCode(code)]
	if ok {
		reg.removeLocked(r)
	}
	reg.mu.Unlock()

	if ok {
		r.Close()
	}
}

// Route returns the room the participant is currently in.
func (reg *Registry) Route(participantID string) (*Room, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	code, ok := reg.located[participantID]
	if !ok {
		return nil, ErrNotInRoom
	}
	r, ok := reg.rooms[code]
	if !ok {
		return nil, ErrNotInRoom
	}
	return r, nil
}

// Leave tells the participant's room that it disconnected.
func (reg *Registry) Leave(p Participant) {
	r, err := reg.Route(p.ID())
	if err != nil {
		return
	}
	r.Leave(p)
}

func (reg *Registry) Len() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return len(reg.rooms)
}

// Shutdown closes every room still registered.
func (reg *Registry) Shutdown() {
	reg.mu.Lock()
	rooms := make([]*Room, 0, len(reg.rooms))
	for _, r := range reg.rooms {
		rooms = append(rooms, r)
	}
	reg.mu.Unlock()

	for _, r := range rooms {
		r.Close()
	}
	reg.log.Info("registry shut down", "rooms", len(rooms))
}

func (reg *Registry) createLocked(code string, opts game.Options) (*Room, error) {
	if _, taken := reg.rooms[code]; taken {
		return nil, fmt.Errorf("%w: code %s in use", ErrCannotCreate, code)
	}
	r, err := New(code, opts, reg.cfg, reg.clock, reg.factory)
	if err != nil {
		reg.log.Warn("room construction failed", "room", code, "game", opts.Game, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrCannotCreate, err)
	}
	r.reg = reg
	r.recorder = reg.recorder
	reg.rooms[code] = r

	metrics.RoomsOpen.Inc()
	metrics.RoomsCreated.WithLabelValues(string(r.opts.Game)).Inc()
	return r, nil
}

func (reg *Registry) freeCodeLocked() (string, error) {
	for range maxCodeAttempts {
		code, err := reg.newCode()
		if err != nil {
			return "", err
		}
		if _, taken := reg.rooms[code]; !taken {
			return code, nil
		}
	}
	return "", fmt.Errorf("no free room code after %d attempts", maxCodeAttempts)
}

// release is called by a room on its way out.
func (reg *Registry) release(r *Room) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.removeLocked(r)
}

func (reg *Registry) removeLocked(r *Room) {
	if reg.rooms[r.code] != r {
		return
	}
	delete(reg.rooms, r.code)
	for pid, code := range reg.located {
		if code == r.code {
			delete(reg.located, pid)
		}
	}
	metrics.RoomsOpen.Dec()
}

func (reg *Registry) unlocate(code, participantID string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if reg.located[participantID] == code {
		delete(reg.located, participantID)
	}
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
