package session

import (
	"errors"
	"sync"
	"time"
)

// TickPeriod is the interval between countdown ticks.
const TickPeriod = time.Second

var (
	ErrTimerArmed    = errors.New("countdown timer is already running")
	ErrInvalidPeriod = errors.New("countdown must start from a positive number of seconds")
)

// Ticker is the subset of *time.Ticker the countdown needs.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFunc creates a Ticker firing every d.
type TickerFunc func(d time.Duration) Ticker

type realTicker struct{ t *time.Ticker }

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

// NewRealTicker wraps time.NewTicker.
func NewRealTicker(d time.Duration) Ticker {
	return realTicker{t: time.NewTicker(d)}
}

// CountdownTimer counts down once per TickPeriod from an armed total to zero.
// onTick receives every new remaining value; onExpire runs exactly once when
// zero is reached, after which the timer stops itself.
type CountdownTimer struct {
	newTicker TickerFunc
	onTick    func(remaining int)
	onExpire  func()

	mu        sync.Mutex
	remaining int
	running   bool
	stop      chan struct{}
}

// NewCountdownTimer creates an unarmed timer. A nil newTicker uses real time.
func NewCountdownTimer(newTicker TickerFunc, onTick func(remaining int), onExpire func()) *CountdownTimer {
	if newTicker == nil {
		newTicker = NewRealTicker
	}
	if onTick == nil {
		onTick = func(int) {}
	}
	if onExpire == nil {
		onExpire = func() {}
	}
	return &CountdownTimer{
		newTicker: newTicker,
		onTick:    onTick,
		onExpire:  onExpire,
	}
}

// Arm starts counting down from totalSeconds.
func (t *CountdownTimer) Arm(totalSeconds int) error {
	if totalSeconds <= 0 {
		return ErrInvalidPeriod
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running {
		return ErrTimerArmed
	}

	t.remaining = totalSeconds
	t.running = true
	t.stop = make(chan struct{})

	go t.run(t.newTicker(TickPeriod), t.stop)
	return nil
}

// Cancel stops the countdown. It is idempotent, safe on an unarmed or
// self-stopped timer, and safe to call from inside onTick or onExpire.
func (t *CountdownTimer) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.running {
		return
	}
	t.running = false
	close(t.stop)
}

// Remaining returns the seconds left. It never goes below zero.
func (t *CountdownTimer) Remaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remaining
}

// Running reports whether the countdown is still ticking.
func (t *CountdownTimer) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

func (t *CountdownTimer) run(ticker Ticker, stop <-chan struct{}) {
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C():
			remaining, expired, ok := t.tick(stop)
			if !ok {
				return
			}

			t.onTick(remaining)
			if expired {
				t.onExpire()
				return
			}
		}
	}
}

// tick decrements the countdown unless it was cancelled in the meantime.
func (t *CountdownTimer) tick(stop <-chan struct{}) (remaining int, expired, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	select {
	case <-stop:
		return t.remaining, false, false
	default:
	}

	if t.remaining > 0 {
		t.remaining--
	}
	if t.remaining == 0 {
		t.running = false
		close(t.stop)
		return 0, true, true
	}
	return t.remaining, false, true
}
