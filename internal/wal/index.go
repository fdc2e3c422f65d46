package wal

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bft-labs/walsync/internal/domain"
)

// snapshotInterval is the pause between snapshot validation attempts.
const snapshotInterval = 10 * time.Microsecond

// DefaultSnapshotAttempts bounds how many times a snapshot read retries
// before failing with ErrSnapshotContention.
const DefaultSnapshotAttempts = 16

// SharedIndex publishes the committed frame count and its generation to
// every handle on the log. It is the single source of truth for how many
// frames exist right now; handles must never base a sync decision on it
// directly, only on a snapshot taken through a read scope.
//
// Updates go through a seqlock: the sequence is odd while a publish is in
// flight, so a reader that sees the same even sequence on both sides of
// its read is guaranteed a coherent (epoch, count) pair.
type SharedIndex struct {
	writeMu sync.Mutex // serializes committers; TryLock detects violations

	seq   atomic.Uint64
	epoch atomic.Uint64
	count atomic.Uint64

	snapshotAttempts int
}

// NewSharedIndex returns an index at epoch 1 with no committed frames.
func NewSharedIndex() *SharedIndex {
	idx := &SharedIndex{snapshotAttempts: DefaultSnapshotAttempts}
	idx.epoch.Store(1)
	return idx
}

// Epoch returns the current log generation. The result is a momentary
// read; callers must not retain it across operations that assume
// freshness.
func (idx *SharedIndex) Epoch() domain.Epoch {
	return domain.Epoch(idx.epoch.Load())
}

// CommittedCount returns the current committed frame count. Momentary
// read, same caveat as Epoch.
func (idx *SharedIndex) CommittedCount() domain.FrameNum {
	return domain.FrameNum(idx.count.Load())
}

// Commit publishes a new committed frame count. Exactly one writer may
// commit at a time; a concurrent committer or a count regression fails
// with ErrConflict and leaves the index untouched. Once Commit returns,
// every subsequent snapshot on any handle observes a count >= n.
func (idx *SharedIndex) Commit(n domain.FrameNum) error {
	if !idx.writeMu.TryLock() {
		return domain.ErrConflict
	}
	defer idx.writeMu.Unlock()

	if uint64(n) < idx.count.Load() {
		return domain.ErrConflict
	}
	idx.publish(idx.epoch.Load(), uint64(n))
	return nil
}

// Reset starts a new generation after a truncation or checkpoint: the
// epoch increments and the committed count restarts at n.
func (idx *SharedIndex) Reset(n domain.FrameNum) (domain.Epoch, error) {
	if !idx.writeMu.TryLock() {
		return 0, domain.ErrConflict
	}
	defer idx.writeMu.Unlock()

	e := idx.epoch.Load() + 1
	idx.publish(e, uint64(n))
	return domain.Epoch(e), nil
}

// restore seeds the index during recovery, before any handle exists.
func (idx *SharedIndex) restore(epoch domain.Epoch, n domain.FrameNum) {
	idx.publish(uint64(epoch), uint64(n))
}

func (idx *SharedIndex) publish(epoch, count uint64) {
	idx.seq.Add(1) // odd: publish in flight
	idx.epoch.Store(epoch)
	idx.count.Store(count)
	idx.seq.Add(1) // even: visible
}

// Snapshot returns a validated (epoch, count) pair. It retries while a
// publish is in flight, up to the attempt budget, honoring ctx.
func (idx *SharedIndex) Snapshot(ctx context.Context) (domain.Position, error) {
	attempts := idx.snapshotAttempts
	if attempts <= 0 {
		attempts = DefaultSnapshotAttempts
	}

	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return domain.Position{}, err
		}
		s := idx.seq.Load()
		if s%2 == 0 {
			epoch := idx.epoch.Load()
			count := idx.count.Load()
			if idx.seq.Load() == s {
				return domain.Position{
					Epoch:    domain.Epoch(epoch),
					FrameNum: domain.FrameNum(count),
				}, nil
			}
		}
		time.Sleep(snapshotInterval)
	}
	return domain.Position{}, domain.ErrSnapshotContention
}
