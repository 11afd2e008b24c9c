package game

import "fmt"

const (
	DefaultTimeoutSeconds = 10
	DefaultRounds         = 3
)

// Constructor builds a session for already normalized options.
type Constructor func(host Host, opts Options) Session

type registration struct {
	// fixedPlayers is the exact player count, or 0 when the game accepts a
	// range up to maxPlayers.
	fixedPlayers int
	maxPlayers   int
	rounds       bool
	build        Constructor
}

var registry = map[Kind]registration{}

func register(kind Kind, reg registration) {
	if _, dup := registry[kind]; dup {
		panic("game: duplicate registration for " + string(kind))
	}
	registry[kind] = reg
}

// Supported reports whether kind has a registered constructor.
func Supported(kind Kind) bool {
	_, ok := registry[kind]
	return ok
}

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

// Normalize fills defaults and applies the game's player capacity.
func (f *Factory) Normalize(opts Options) (Options, error) {
	reg, ok := registry[opts.Game]
	if !ok {
		return opts, fmt.Errorf("%w: %q", ErrUnsupportedGame, opts.Game)
	}

	if opts.TimeoutSeconds <= 0 {
		opts.TimeoutSeconds = DefaultTimeoutSeconds
	}

	switch {
	case reg.fixedPlayers > 0:
		opts.MaxPlayers = reg.fixedPlayers
	case opts.MaxPlayers < 2 || opts.MaxPlayers > reg.maxPlayers:
		opts.MaxPlayers = reg.maxPlayers
	}

	if reg.rounds {
		if opts.Rounds <= 0 {
			opts.Rounds = DefaultRounds
		}
	} else {
		opts.Rounds = 0
	}

	return opts, nil
}

// CreateGame builds the session for opts.Game. The returned options are the
// normalized ones the session runs with.
func (f *Factory) CreateGame(host Host, opts Options) (Session, Options, error) {
	opts, err := f.Normalize(opts)
	if err != nil {
		return nil, opts, err
	}
	if host == nil {
		return nil, opts, fmt.Errorf("game: nil host for %s", opts.Game)
	}
	return registry[opts.Game].build(host, opts), opts, nil
}
