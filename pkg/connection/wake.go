package connection

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Wake errors.
var (
	ErrWakeFailed = errors.New("device did not wake up")
	ErrNoWaker    = errors.New("no wake function configured")
	ErrClosed     = errors.New("wake manager closed")
)

// State is the power state of a device as last observed.
type State uint8

const (
	// StateUnknown - nothing observed yet.
	StateUnknown State = iota

	// StateAwake - the last call was answered normally.
	StateAwake

	// StateAsleep - the last call reported the display off.
	StateAsleep

	// StateWaking - a wake sequence is in progress.
	StateWaking

	// StateClosed - the manager has been closed.
	StateClosed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateUnknown:
		return "UNKNOWN"
	case StateAwake:
		return "AWAKE"
	case StateAsleep:
		return "ASLEEP"
	case StateWaking:
		return "WAKING"
	case StateClosed:
		return "CLOSED"
	default:
		return "INVALID"
	}
}

// WakeFunc sends one wake signal, e.g. a wake-on-LAN packet.
type WakeFunc func(ctx context.Context) error

// ProbeFunc checks whether the device is awake. A non-nil error ends the
// wake sequence; return (false, nil) to keep waiting.
type ProbeFunc func(ctx context.Context) (awake bool, err error)

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	// MaxAttempts bounds the number of probes per wake sequence (default: 5).
	MaxAttempts int

	// Backoff configures the delay between probes.
	Backoff BackoffConfig
}

// DefaultManagerConfig returns the default wake configuration.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		MaxAttempts: 5,
		Backoff:     DefaultBackoffConfig(),
	}
}

// Manager tracks the power state of one device and runs wake sequences.
// Concurrent Wake calls share a single sequence.
type Manager struct {
	mu sync.Mutex

	state       State
	backoff     *Backoff
	wake        WakeFunc
	maxAttempts int

	// done is closed when the running wake sequence finishes.
	done    chan struct{}
	lastErr error

	onStateChange func(oldState, newState State)
	onWaking      func(attempt int, delay time.Duration)
}

// NewManager creates a manager. wake may be nil, in which case Wake fails
// with ErrNoWaker.
func NewManager(wake WakeFunc, cfg ManagerConfig) *Manager {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	return &Manager{
		backoff:     NewBackoffWithConfig(cfg.Backoff),
		wake:        wake,
		maxAttempts: cfg.MaxAttempts,
	}
}

// State returns the last observed power state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// CanWake reports whether a wake function is configured.
func (m *Manager) CanWake() bool {
	return m.wake != nil
}

// MarkAwake records a normal answer and resets the backoff.
func (m *Manager) MarkAwake() {
	m.transition(StateAwake)
	m.backoff.Reset()
}

// MarkAsleep records a power-off answer.
func (m *Manager) MarkAsleep() {
	m.transition(StateAsleep)
}

// Wake sends a wake signal and probes with backoff until the device answers
// or MaxAttempts probes failed. Callers arriving while a sequence runs wait
// for it instead of starting another. If that sequence ends because its own
// caller gave up, a waiting caller whose context is still live runs a new one.
func (m *Manager) Wake(ctx context.Context, probe ProbeFunc) error {
	if m.wake == nil {
		return ErrNoWaker
	}

	for {
		m.mu.Lock()
		if m.state == StateClosed {
			m.mu.Unlock()
			return ErrClosed
		}
		done := m.done
		if done == nil {
			break
		}
		m.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-done:
		}
		m.mu.Lock()
		err := m.lastErr
		m.mu.Unlock()
		if !isContextErr(err) || ctx.Err() != nil {
			return err
		}
	}

	// m.mu is held here.
	done := make(chan struct{})
	m.done = done
	old := m.state
	m.state = StateWaking
	cb := m.onStateChange
	m.mu.Unlock()
	if cb != nil {
		cb(old, StateWaking)
	}

	err := m.runWake(ctx, probe)

	// The final state is set before done closes, so a waiter that starts
	// its own sequence keeps its WAKING state.
	to := StateAwake
	if err != nil {
		to = StateAsleep
	} else {
		m.backoff.Reset()
	}
	m.mu.Lock()
	m.lastErr = err
	m.done = nil
	from := m.state
	if from != StateClosed {
		m.state = to
	}
	cb = m.onStateChange
	m.mu.Unlock()
	close(done)

	if cb != nil && from != StateClosed && from != to {
		cb(from, to)
	}
	return err
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (m *Manager) runWake(ctx context.Context, probe ProbeFunc) error {
	m.backoff.Reset()
	if err := m.wake(ctx); err != nil {
		return fmt.Errorf("wake: %w", err)
	}

	for attempt := 1; attempt <= m.maxAttempts; attempt++ {
		m.mu.Lock()
		onWaking := m.onWaking
		m.mu.Unlock()
		if onWaking != nil {
			onWaking(attempt, m.backoff.Current())
		}
		if err := m.backoff.Wait(ctx); err != nil {
			return err
		}

		awake, err := probe(ctx)
		if err != nil {
			return err
		}
		if awake {
			return nil
		}
	}
	return fmt.Errorf("%w after %d attempts", ErrWakeFailed, m.maxAttempts)
}

// Close marks the manager closed; later Wake calls fail with ErrClosed.
func (m *Manager) Close() {
	m.transition(StateClosed)
}

// transition sets the state and runs the callback outside the lock.
// A closed manager stays closed.
func (m *Manager) transition(to State) {
	m.mu.Lock()
	old := m.state
	if old == StateClosed || old == to {
		m.mu.Unlock()
		return
	}
	m.state = to
	cb := m.onStateChange
	m.mu.Unlock()

	if cb != nil {
		cb(old, to)
	}
}

// OnStateChange sets a callback for state changes.
func (m *Manager) OnStateChange(fn func(oldState, newState State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onStateChange = fn
}

// OnWaking sets a callback run before each probe with the base delay.
func (m *Manager) OnWaking(fn func(attempt int, delay time.Duration)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onWaking = fn
}

// Attempts returns the number of probes in the current or last sequence.
func (m *Manager) Attempts() int {
	return m.backoff.Attempts()
}
