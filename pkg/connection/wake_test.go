package connection

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func fastConfig(attempts int) ManagerConfig {
	return ManagerConfig{
		MaxAttempts: attempts,
		Backoff:     BackoffConfig{Initial: time.Millisecond, Max: 2 * time.Millisecond},
	}
}

func TestManagerWakeSucceeds(t *testing.T) {
	var wakes, probes atomic.Int32
	m := NewManager(func(ctx context.Context) error {
		wakes.Add(1)
		return nil
	}, fastConfig(5))

	var transitions []string
	m.OnStateChange(func(old, new State) {
		transitions = append(transitions, old.String()+">"+new.String())
	})

	m.MarkAsleep()
	err := m.Wake(context.Background(), func(ctx context.Context) (bool, error) {
		return probes.Add(1) == 3, nil
	})
	if err != nil {
		t.Fatalf("Wake failed: %v", err)
	}
	if wakes.Load() != 1 || probes.Load() != 3 {
		t.Errorf("wakes %d probes %d", wakes.Load(), probes.Load())
	}
	if m.State() != StateAwake {
		t.Errorf("state %s, want AWAKE", m.State())
	}
	want := []string{"UNKNOWN>ASLEEP", "ASLEEP>WAKING", "WAKING>AWAKE"}
	if len(transitions) != len(want) {
		t.Fatalf("transitions %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transition %d: %s, want %s", i, transitions[i], want[i])
		}
	}
}

func TestManagerWakeGivesUp(t *testing.T) {
	var probes atomic.Int32
	m := NewManager(func(ctx context.Context) error { return nil }, fastConfig(3))

	var waking []int
	m.OnWaking(func(attempt int, delay time.Duration) { waking = append(waking, attempt) })

	err := m.Wake(context.Background(), func(ctx context.Context) (bool, error) {
		probes.Add(1)
		return false, nil
	})
	if !errors.Is(err, ErrWakeFailed) {
		t.Fatalf("got %v, want ErrWakeFailed", err)
	}
	if probes.Load() != 3 || len(waking) != 3 {
		t.Errorf("probes %d waking callbacks %d", probes.Load(), len(waking))
	}
	if m.State() != StateAsleep {
		t.Errorf("state %s, want ASLEEP", m.State())
	}
}

func TestManagerProbeErrorStops(t *testing.T) {
	boom := errors.New("unauthorized")
	var probes atomic.Int32
	m := NewManager(func(ctx context.Context) error { return nil }, fastConfig(5))

	err := m.Wake(context.Background(), func(ctx context.Context) (bool, error) {
		probes.Add(1)
		return false, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("got %v", err)
	}
	if probes.Load() != 1 {
		t.Errorf("probe errors must not be retried, got %d probes", probes.Load())
	}
}

func TestManagerWakeFuncError(t *testing.T) {
	boom := errors.New("no route")
	m := NewManager(func(ctx context.Context) error { return boom }, fastConfig(5))
	err := m.Wake(context.Background(), func(ctx context.Context) (bool, error) {
		t.Fatal("probe must not run when the wake signal failed")
		return false, nil
	})
	if !errors.Is(err, boom) {
		t.Errorf("got %v", err)
	}
}

func TestManagerNoWaker(t *testing.T) {
	m := NewManager(nil, DefaultManagerConfig())
	if m.CanWake() {
		t.Error("CanWake should be false")
	}
	if err := m.Wake(context.Background(), nil); !errors.Is(err, ErrNoWaker) {
		t.Errorf("got %v", err)
	}
}

func TestManagerClosed(t *testing.T) {
	m := NewManager(func(ctx context.Context) error { return nil }, fastConfig(1))
	m.Close()
	m.MarkAwake()
	if m.State() != StateClosed {
		t.Errorf("closed manager changed state to %s", m.State())
	}
	if err := m.Wake(context.Background(), func(ctx context.Context) (bool, error) { return true, nil }); !errors.Is(err, ErrClosed) {
		t.Errorf("got %v", err)
	}
}

func TestManagerConcurrentWakeShared(t *testing.T) {
	var wakes atomic.Int32
	release := make(chan struct{})
	m := NewManager(func(ctx context.Context) error {
		wakes.Add(1)
		<-release
		return nil
	}, fastConfig(2))

	probe := func(ctx context.Context) (bool, error) { return true, nil }

	var wg sync.WaitGroup
	errs := make([]error, 5)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = m.Wake(context.Background(), probe)
		}(i)
	}

	deadline := time.Now().Add(time.Second)
	for m.State() != StateWaking && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(10 * time.Millisecond)
	close(release)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("caller %d: %v", i, err)
		}
	}
	if wakes.Load() != 1 {
		t.Errorf("wake signal sent %d times, want 1", wakes.Load())
	}
}

func TestManagerJoinedWakeOutlivesCanceledOwner(t *testing.T) {
	var wakes atomic.Int32
	m := NewManager(func(ctx context.Context) error {
		if wakes.Add(1) == 1 {
			<-ctx.Done()
			return ctx.Err()
		}
		return nil
	}, fastConfig(2))
	probe := func(ctx context.Context) (bool, error) { return true, nil }

	ownerCtx, cancel := context.WithCancel(context.Background())
	ownerErr := make(chan error, 1)
	go func() { ownerErr <- m.Wake(ownerCtx, probe) }()

	deadline := time.Now().Add(time.Second)
	for m.State() != StateWaking && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	joinedErr := make(chan error, 1)
	go func() { joinedErr <- m.Wake(context.Background(), probe) }()
	time.Sleep(10 * time.Millisecond)
	cancel()

	if err := <-ownerErr; !errors.Is(err, context.Canceled) {
		t.Errorf("owner: got %v, want context.Canceled", err)
	}
	if err := <-joinedErr; err != nil {
		t.Errorf("joined caller: %v", err)
	}
	if wakes.Load() != 2 {
		t.Errorf("wake signal sent %d times, want 2", wakes.Load())
	}
	if m.State() != StateAwake {
		t.Errorf("state = %s, want AWAKE", m.State())
	}
}

func TestManagerWakeContextCanceled(t *testing.T) {
	m := NewManager(func(ctx context.Context) error { return nil }, ManagerConfig{
		MaxAttempts: 3,
		Backoff:     BackoffConfig{Initial: time.Hour},
	})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := m.Wake(ctx, func(ctx context.Context) (bool, error) { return true, nil })
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("got %v", err)
	}
}

func TestStateString(t *testing.T) {
	tests := map[State]string{
		StateUnknown: "UNKNOWN",
		StateAwake:   "AWAKE",
		StateAsleep:  "ASLEEP",
		StateWaking:  "WAKING",
		StateClosed:  "CLOSED",
		State(99):    "INVALID",
	}
	for s, want := range tests {
		if s.String() != want {
			t.Errorf("State(%d).String() = %q, want %q", s, s.String(), want)
		}
	}
}
