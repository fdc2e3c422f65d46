package agent

import (
	"context"
	"math/rand"
	"time"
)

type backoff struct {
	base time.Duration
	max  time.Duration
	cur  time.Duration
}

func newBackoff(base, max time.Duration) *backoff { return &backoff{base: base, max: max} }

// Sleep blocks for the next backoff step, or until ctx is done.
func (b *backoff) Sleep(ctx context.Context) {
	if b.cur <= 0 {
		b.cur = b.base
	} else {
		b.cur *= 2
		if b.cur > b.max {
			b.cur = b.max
		}
	}
	// jitter ~ +/-20%
	j := 0.8 + 0.4*rand.Float64()
	select {
	case <-ctx.Done():
	case <-time.After(time.Duration(float64(b.cur) * j)):
	}
}

func (b *backoff) Reset() { b.cur = 0 }
