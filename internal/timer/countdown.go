// Package timer implements the per-room deadline scheduler: a cancelable
// countdown that ticks once per second and completes either when it runs
// out or when an early-completion predicate holds.
package timer

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// TickInterval is the spacing between two countdown ticks.
const TickInterval = time.Second

// Dispatcher runs fn on the goroutine that owns the state the countdown
// callbacks touch. A room passes its task queue here.
type Dispatcher func(fn func())

// Countdown describes what a running countdown reports back.
type Countdown struct {
	// OnTick observes every tick with the remaining whole seconds.
	OnTick func(remaining int)
	// EarlyComplete is evaluated after each tick; true finishes the countdown.
	EarlyComplete func(remaining int) bool
	// OnComplete fires exactly once, unless the countdown is cancelled first.
	OnComplete func()
}

// Scheduler issues countdowns whose callbacks all run through one dispatcher.
type Scheduler struct {
	clock    clockwork.Clock
	dispatch Dispatcher
}

func NewScheduler(clock clockwork.Clock, dispatch Dispatcher) *Scheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Scheduler{clock: clock, dispatch: dispatch}
}

// Handle controls one running countdown.
type Handle struct {
	ticker    clockwork.Ticker
	stop      chan struct{}
	stopOnce  sync.Once
	remaining int

	// finished is only read and written from dispatched callbacks and Cancel,
	// which the owner calls from that same goroutine.
	finished bool
}

// Start begins a countdown of the given number of seconds. A non-positive
// duration completes on the first tick.
func (s *Scheduler) Start(seconds int, cd Countdown) *Handle {
	if seconds < 0 {
		seconds = 0
	}
	h := &Handle{
		ticker:    s.clock.NewTicker(TickInterval),
		stop:      make(chan struct{}),
		remaining: seconds,
	}

	go func() {
		remaining := seconds
		for {
			select {
			case <-h.stop:
				return
			case <-h.ticker.Chan():
				if remaining > 0 {
					remaining--
				}
				left := remaining
				s.dispatch(func() { h.step(left, cd) })
				if left == 0 {
					return
				}
			}
		}
	}()

	return h
}

func (h *Handle) step(remaining int, cd Countdown) {
	if h.finished {
		return
	}
	h.remaining = remaining
	if cd.OnTick != nil {
		cd.OnTick(remaining)
	}
	if h.finished {
		// OnTick cancelled us.
		return
	}

	done := remaining <= 0
	if !done && cd.EarlyComplete != nil {
		done = cd.EarlyComplete(remaining)
	}
	if !done || h.finished {
		return
	}

	h.halt()
	if cd.OnComplete != nil {
		cd.OnComplete()
	}
}

// Cancel stops the countdown without firing OnComplete. Safe to call more
// than once and after completion.
func (h *Handle) Cancel() {
	if h == nil {
		return
	}
	h.halt()
}

// Remaining is the last count reported to OnTick.
func (h *Handle) Remaining() int {
	return h.remaining
}

// Finished reports whether the countdown completed or was cancelled.
func (h *Handle) Finished() bool {
	return h.finished
}

func (h *Handle) halt() {
	h.finished = true
	h.stopOnce.Do(func() {
		h.ticker.Stop()
		close(h.stop)
	})
}
