package connection

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBackoff(t *testing.T) {
	t.Run("DefaultSequence", func(t *testing.T) {
		b := NewBackoff()

		expected := []time.Duration{
			500 * time.Millisecond,
			1 * time.Second,
			2 * time.Second,
			4 * time.Second,
			8 * time.Second,
			8 * time.Second, // stays at max
		}
		for i, exp := range expected {
			base := b.Current()
			_ = b.Next()
			if base != exp {
				t.Errorf("attempt %d: base = %v, want %v", i, base, exp)
			}
		}
	})

	t.Run("Jitter", func(t *testing.T) {
		upper := time.Duration(float64(InitialBackoff) * (1 + JitterFactor))
		distinct := make(map[time.Duration]bool)
		for i := 0; i < 20; i++ {
			b := NewBackoff()
			d := b.Next()
			if d < InitialBackoff || d > upper {
				t.Errorf("sample %d: %v out of range [%v, %v]", i, d, InitialBackoff, upper)
			}
			distinct[d] = true
		}
		if len(distinct) == 1 {
			t.Error("all jittered samples are identical")
		}
	})

	t.Run("Reset", func(t *testing.T) {
		b := NewBackoff()
		for i := 0; i < 3; i++ {
			b.Next()
		}
		if b.Attempts() != 3 {
			t.Errorf("Attempts() = %d, want 3", b.Attempts())
		}
		b.Reset()
		if b.Current() != InitialBackoff || b.Attempts() != 0 {
			t.Errorf("after reset: current %v attempts %d", b.Current(), b.Attempts())
		}
	})

	t.Run("CustomConfig", func(t *testing.T) {
		got := Sequence(BackoffConfig{
			Initial:    100 * time.Millisecond,
			Max:        500 * time.Millisecond,
			Multiplier: 3,
			Jitter:     0.5,
		}, 4)
		want := []time.Duration{
			100 * time.Millisecond,
			300 * time.Millisecond,
			500 * time.Millisecond,
			500 * time.Millisecond,
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("step %d: got %v, want %v", i, got[i], want[i])
			}
		}
	})

	t.Run("Defaults", func(t *testing.T) {
		b := NewBackoffWithConfig(BackoffConfig{Initial: time.Minute, Jitter: -1})
		if b.Current() != time.Minute {
			t.Errorf("Current() = %v", b.Current())
		}
		if d := b.Next(); d != time.Minute {
			t.Errorf("negative jitter should disable jitter, got %v", d)
		}
		if b.Current() != time.Minute {
			t.Errorf("max below initial should clamp to initial, got %v", b.Current())
		}
	})
}

func TestBackoffWait(t *testing.T) {
	b := NewBackoffWithConfig(BackoffConfig{Initial: time.Millisecond})
	if err := b.Wait(context.Background()); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}

	slow := NewBackoffWithConfig(BackoffConfig{Initial: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := slow.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Wait on canceled context = %v", err)
	}
}
