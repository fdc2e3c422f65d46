package wal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bft-labs/walsync/internal/domain"
)

// A handle that never opened a read scope must report staleness, not a
// frame count of zero.
func TestFrameCountWithoutScopeFails(t *testing.T) {
	l, w := openTestLog(t, t.TempDir())
	appendFrames(t, w, 4)

	h := l.NewHandle()
	if _, err := h.FrameCount(); !errors.Is(err, domain.ErrStaleCache) {
		t.Fatalf("frame count without scope error = %v, want ErrStaleCache", err)
	}
}

func TestBeginReadRefreshesCache(t *testing.T) {
	l, w := openTestLog(t, t.TempDir())
	appendFrames(t, w, 4)

	// Fresh handle, same process: the scope must observe every frame
	// committed before it began.
	h := l.NewHandle()
	guard, err := h.BeginRead(context.Background())
	if err != nil {
		t.Fatalf("begin read: %v", err)
	}
	defer guard.End()

	n, err := h.FrameCount()
	if err != nil {
		t.Fatalf("frame count: %v", err)
	}
	if n != 4 {
		t.Fatalf("frame count = %d, want 4", n)
	}
}

func TestCacheLegibleAfterEndUntilNextBegin(t *testing.T) {
	l, w := openTestLog(t, t.TempDir())
	appendFrames(t, w, 4)

	h := l.NewHandle()
	guard, err := h.BeginRead(context.Background())
	if err != nil {
		t.Fatalf("begin read: %v", err)
	}
	guard.End()

	appendFrames(t, w, 2)

	// Ending the scope does not invalidate the cache; the value stays
	// legible (and intentionally old) until the next BeginRead.
	n, err := h.FrameCount()
	if err != nil {
		t.Fatalf("frame count after end: %v", err)
	}
	if n != 4 {
		t.Fatalf("frame count after end = %d, want cached 4", n)
	}

	guard2, err := h.BeginRead(context.Background())
	if err != nil {
		t.Fatalf("second begin read: %v", err)
	}
	defer guard2.End()
	if n, _ := h.FrameCount(); n != 6 {
		t.Fatalf("frame count after refresh = %d, want 6", n)
	}
}

func TestCacheStaleAfterEpochBump(t *testing.T) {
	l, w := openTestLog(t, t.TempDir())
	appendFrames(t, w, 3)

	h := l.NewHandle()
	guard, err := h.BeginRead(context.Background())
	if err != nil {
		t.Fatalf("begin read: %v", err)
	}
	guard.End()

	if _, err := w.Checkpoint(context.Background()); err != nil {
		t.Fatalf("checkpoint: %v", err)
	}

	if _, err := h.FrameCount(); !errors.Is(err, domain.ErrStaleCache) {
		t.Fatalf("frame count across epochs error = %v, want ErrStaleCache", err)
	}
}

func TestBeginReadReentrant(t *testing.T) {
	l, w := openTestLog(t, t.TempDir())
	appendFrames(t, w, 2)

	h := l.NewHandle()
	outer, err := h.BeginRead(context.Background())
	if err != nil {
		t.Fatalf("begin read: %v", err)
	}

	appendFrames(t, w, 3)

	// Nested begin returns the existing snapshot; it must not re-read.
	inner, err := h.BeginRead(context.Background())
	if err != nil {
		t.Fatalf("nested begin read: %v", err)
	}
	if n, _ := h.FrameCount(); n != 2 {
		t.Fatalf("frame count inside nested scope = %d, want snapshot 2", n)
	}

	inner.End()
	if n, _ := h.FrameCount(); n != 2 {
		t.Fatalf("frame count after inner end = %d, want 2", n)
	}
	outer.End()
	outer.End() // extra ends are no-ops

	guard, err := h.BeginRead(context.Background())
	if err != nil {
		t.Fatalf("begin after full end: %v", err)
	}
	defer guard.End()
	if n, _ := h.FrameCount(); n != 5 {
		t.Fatalf("frame count after refresh = %d, want 5", n)
	}
}

func TestReadScopeBlocksCheckpoint(t *testing.T) {
	l, w := openTestLog(t, t.TempDir())
	appendFrames(t, w, 2)

	h := l.NewHandle()
	guard, err := h.BeginRead(context.Background())
	if err != nil {
		t.Fatalf("begin read: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := w.Checkpoint(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("checkpoint under open scope error = %v, want DeadlineExceeded", err)
	}

	guard.End()
	if _, err := w.Checkpoint(context.Background()); err != nil {
		t.Fatalf("checkpoint after scope end: %v", err)
	}
}
