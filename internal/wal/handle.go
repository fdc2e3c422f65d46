package wal

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/bft-labs/walsync/internal/domain"
)

// Handle is one connection to the log. It carries a private cache of the
// committed position that is written only by BeginRead, mirroring a
// connection whose view of the log advances only at read-scope
// boundaries. A handle that never opens a scope has no legible cache:
// FrameCount fails rather than reporting zero.
type Handle struct {
	id  uuid.UUID
	log *LogStore

	mu    sync.Mutex
	depth int
	guard *ReadGuard
	cache frameCache
}

// frameCache is the per-handle snapshot of the shared index. populated
// stays true after the scope ends; the value remains legible until the
// next BeginRead overwrites it, but every query re-checks the epoch.
type frameCache struct {
	pos       domain.Position
	populated bool
}

// NewHandle returns a fresh handle on the log with an empty cache.
func (l *LogStore) NewHandle() *Handle {
	return &Handle{id: uuid.New(), log: l}
}

// ID returns the handle's identifier, used for log correlation.
func (h *Handle) ID() uuid.UUID { return h.id }

// BeginRead opens a read scope: it snapshots the shared index into the
// handle's cache and pins the log against truncation. This is the only
// writer of the cache. Re-entrant: a nested BeginRead returns the guard
// of the scope already open on this handle without re-reading the index.
func (h *Handle) BeginRead(ctx context.Context) (*ReadGuard, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.depth > 0 {
		h.depth++
		return h.guard, nil
	}

	pos, err := h.log.idx.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if err := h.log.pinRead(ctx); err != nil {
		return nil, err
	}

	h.cache = frameCache{pos: pos, populated: true}
	h.depth = 1
	h.guard = &ReadGuard{h: h}
	return h.guard, nil
}

// Position returns the cached (epoch, count) snapshot. It fails with
// ErrStaleCache if no scope ever populated the cache, or if the shared
// index has since moved to a newer epoch.
func (h *Handle) Position() (domain.Position, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.cache.populated {
		return domain.Position{}, domain.ErrStaleCache
	}
	if h.cache.pos.Epoch != h.log.idx.Epoch() {
		return domain.Position{}, domain.ErrStaleCache
	}
	return h.cache.pos, nil
}

// FrameCount returns the cached committed frame count, with the same
// staleness guarantees as Position.
func (h *Handle) FrameCount() (domain.FrameNum, error) {
	pos, err := h.Position()
	if err != nil {
		return 0, err
	}
	return pos.FrameNum, nil
}

// ReadGuard is a reference to an open read scope on a handle.
type ReadGuard struct {
	h *Handle
}

// End closes one level of the scope. The cached position stays legible
// until the next BeginRead; only the read pin is released. Ending more
// times than the scope was begun is a no-op.
func (g *ReadGuard) End() {
	h := g.h
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.depth == 0 {
		return
	}
	h.depth--
	if h.depth == 0 {
		h.guard = nil
		h.log.unpinRead()
	}
}
