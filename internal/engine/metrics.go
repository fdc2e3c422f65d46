package engine

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Stats is a read-only snapshot of engine activity counters.
type Stats struct {
	// ScopesBegun counts read scopes opened by the engine.
	ScopesBegun uint64

	// StaleCacheErrors counts frame-cache queries that failed validation.
	StaleCacheErrors uint64

	// PushRangesComputed counts decisions that produced a push range.
	PushRangesComputed uint64

	// FramesPushed counts frames acknowledged by the remote.
	FramesPushed uint64
}

type stats struct {
	scopesBegun        atomic.Uint64
	staleCacheErrors   atomic.Uint64
	pushRangesComputed atomic.Uint64
	framesPushed       atomic.Uint64
}

// Stats returns the current counter values without mutating engine state.
func (e *Engine) Stats() Stats {
	return Stats{
		ScopesBegun:        e.stats.scopesBegun.Load(),
		StaleCacheErrors:   e.stats.staleCacheErrors.Load(),
		PushRangesComputed: e.stats.pushRangesComputed.Load(),
		FramesPushed:       e.stats.framesPushed.Load(),
	}
}

var (
	scopesBegunMetric = promauto.NewCounter(prometheus.CounterOpts{
		Name: "walsync_scopes_begun_total",
		Help: "Number of read scopes opened by the sync engine.",
	})
	staleCacheErrorsMetric = promauto.NewCounter(prometheus.CounterOpts{
		Name: "walsync_stale_cache_errors_total",
		Help: "Number of frame cache queries that failed staleness validation.",
	})
	pushRangesMetric = promauto.NewCounter(prometheus.CounterOpts{
		Name: "walsync_push_ranges_total",
		Help: "Number of sync decisions that produced a push range.",
	})
	framesPushedMetric = promauto.NewCounter(prometheus.CounterOpts{
		Name: "walsync_frames_pushed_total",
		Help: "Number of WAL frames acknowledged by the remote.",
	})
)
