package agent

import (
	"context"
	"testing"
	"time"
)

func TestBackoffGrowsAndCaps(t *testing.T) {
	b := newBackoff(time.Millisecond, 4*time.Millisecond)
	ctx := context.Background()

	steps := []time.Duration{
		time.Millisecond,
		2 * time.Millisecond,
		4 * time.Millisecond,
		4 * time.Millisecond, // capped
	}
	for i, want := range steps {
		b.Sleep(ctx)
		if b.cur != want {
			t.Fatalf("step %d: cur = %v, want %v", i, b.cur, want)
		}
	}

	b.Reset()
	b.Sleep(ctx)
	if b.cur != time.Millisecond {
		t.Fatalf("cur after reset = %v, want base", b.cur)
	}
}

func TestBackoffSleepHonorsContext(t *testing.T) {
	b := newBackoff(10*time.Second, 10*time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	b.Sleep(ctx)
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("sleep took %v with canceled context", elapsed)
	}
}
