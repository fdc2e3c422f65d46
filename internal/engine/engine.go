// Package engine implements the sync decision engine: it compares a
// fresh committed-frame snapshot against the remote watermark and, when
// the local log is ahead, pushes exactly the missing frame range.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bft-labs/walsync/internal/domain"
	"github.com/bft-labs/walsync/internal/ports"
	"github.com/bft-labs/walsync/internal/wal"
	"github.com/bft-labs/walsync/pkg/log"
)

// Engine drives sync decisions for one log. It owns a dedicated handle
// and opens a read scope for every decision: a committed frame count is
// never consumed without the refresh that makes it trustworthy. Safe for
// use by a single sync loop goroutine.
type Engine struct {
	handle *wal.Handle
	frames ports.FrameSource

	sender     ports.FrameSender
	watermarks ports.WatermarkProvider
	states     ports.StateRepository
	logger     log.Logger
	meta       ports.SendMetadata

	stats stats
}

// Options configures an Engine. Sender and States may be nil for a
// decide-only engine (e.g. tests or dry runs); Watermarks is required
// for RunSyncCycle.
type Options struct {
	Sender     ports.FrameSender
	Watermarks ports.WatermarkProvider
	States     ports.StateRepository
	Logger     log.Logger
	Metadata   ports.SendMetadata
}

// New creates an engine on its own handle of the given log.
func New(store *wal.LogStore, opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Engine{
		handle:     store.NewHandle(),
		frames:     store,
		sender:     opts.Sender,
		watermarks: opts.Watermarks,
		states:     opts.States,
		logger:     logger,
		meta:       opts.Metadata,
	}
}

// Decide compares a fresh snapshot of the committed frame count against
// the remote watermark. It always opens a read scope first; a prior
// scope's freshness is never assumed. Errors are surfaced, never
// substituted with a stale or zero count.
func (e *Engine) Decide(ctx context.Context, remote domain.Watermark) (domain.SyncDecision, error) {
	guard, err := e.beginScope(ctx)
	if err != nil {
		return domain.UpToDate(), err
	}
	defer guard.End()

	decision, _, err := e.decideInScope(remote)
	return decision, err
}

// decideInScope evaluates the decision using the cache populated by the
// scope the caller holds open.
func (e *Engine) decideInScope(remote domain.Watermark) (domain.SyncDecision, domain.Position, error) {
	local, err := e.handle.Position()
	if err != nil {
		if errors.Is(err, domain.ErrStaleCache) {
			e.stats.staleCacheErrors.Add(1)
			staleCacheErrorsMetric.Inc()
		}
		return domain.UpToDate(), domain.Position{}, fmt.Errorf("read frame cache: %w", err)
	}

	// A watermark from another generation must not be compared frame for
	// frame; the numbering spaces are unrelated.
	if remote.Epoch != 0 && remote.Epoch != local.Epoch {
		e.logger.Warn("remote watermark from another log generation, full resync required",
			log.Uint64("local_epoch", uint64(local.Epoch)),
			log.Uint64("remote_epoch", uint64(remote.Epoch)))
		return domain.UpToDate(), local, fmt.Errorf("local epoch %d, remote epoch %d: %w",
			local.Epoch, remote.Epoch, domain.ErrEpochMismatch)
	}

	// Remote may transiently run ahead via another writer path; clamp.
	if local.FrameNum <= remote.DurableFrameNum {
		return domain.UpToDate(), local, nil
	}

	decision := domain.PushRange(remote.DurableFrameNum+1, local.FrameNum)
	e.stats.pushRangesComputed.Add(1)
	pushRangesMetric.Inc()
	return decision, local, nil
}

// RunSyncCycle is the sync loop's sole entry point: refresh, decide,
// and, when ahead, read the missing range and hand it to the sender.
// Safe to call on a fixed interval indefinitely. State advances only
// after the remote acknowledged the push.
func (e *Engine) RunSyncCycle(ctx context.Context) (domain.SyncDecision, error) {
	var remote domain.Watermark
	if e.watermarks != nil {
		remote = e.watermarks.Current()
	}

	guard, err := e.beginScope(ctx)
	if err != nil {
		return domain.UpToDate(), err
	}

	decision, local, err := e.decideInScope(remote)
	if err != nil || decision.Kind != domain.DecisionPushRange {
		guard.End()
		return decision, err
	}

	// Read inside the scope so the range cannot be truncated away
	// between decision and read.
	frames, err := e.frames.ReadFrames(ctx, decision.From, decision.To)
	guard.End()
	if err != nil {
		return decision, fmt.Errorf("read push range: %w", err)
	}

	if e.sender == nil {
		return decision, nil
	}
	if err := e.sender.Send(ctx, local.Epoch, frames, e.meta); err != nil {
		return decision, fmt.Errorf("push frames [%d,%d]: %w", decision.From, decision.To, err)
	}
	e.stats.framesPushed.Add(uint64(len(frames)))
	framesPushedMetric.Add(float64(len(frames)))
	e.logger.Info("pushed frames",
		log.Uint64("from", uint64(decision.From)),
		log.Uint64("to", uint64(decision.To)),
		log.Uint64("epoch", uint64(local.Epoch)))

	if e.states != nil {
		now := time.Now().UTC()
		state := domain.State{
			LastPushed:  domain.Position{Epoch: local.Epoch, FrameNum: decision.To},
			LastPushAt:  now,
			LastCycleAt: now,
		}
		if err := e.states.Save(ctx, state); err != nil {
			// The push already succeeded; losing the diagnostic record
			// must not fail the cycle.
			e.logger.Warn("save sync state", log.Err(err))
		}
	}
	return decision, nil
}

func (e *Engine) beginScope(ctx context.Context) (*wal.ReadGuard, error) {
	guard, err := e.handle.BeginRead(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin read scope: %w", err)
	}
	e.stats.scopesBegun.Add(1)
	scopesBegunMetric.Inc()
	return guard, nil
}

// Handle returns the engine's dedicated log handle.
func (e *Engine) Handle() *wal.Handle { return e.handle }
