package agent

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	fsadapter "github.com/bft-labs/walsync/internal/adapters/fs"
	httpadapter "github.com/bft-labs/walsync/internal/adapters/http"
	"github.com/bft-labs/walsync/internal/domain"
	"github.com/bft-labs/walsync/internal/engine"
	"github.com/bft-labs/walsync/internal/ports"
	"github.com/bft-labs/walsync/internal/wal"
	pkglog "github.com/bft-labs/walsync/pkg/log"
)

// liveSettings holds the runtime-tunable subset of the configuration,
// updated by the config watcher and read by the loops each iteration.
type liveSettings struct {
	mu           sync.Mutex
	syncInterval time.Duration
	pullInterval time.Duration
}

func newLiveSettings(cfg Config) *liveSettings {
	return &liveSettings{
		syncInterval: cfg.SyncInterval,
		pullInterval: cfg.PullInterval,
	}
}

func (s *liveSettings) SyncInterval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.syncInterval
}

func (s *liveSettings) PullInterval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pullInterval
}

func (s *liveSettings) applyFile(fc fileConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, err := time.ParseDuration(fc.SyncInterval); err == nil && d > 0 {
		s.syncInterval = d
	}
	if d, err := time.ParseDuration(fc.PullInterval); err == nil && d > 0 {
		s.pullInterval = d
	}
}

// Run starts the sync agent: it opens the frame log, wires the engine to
// the HTTP sync service, and drives the sync loop until ctx is cancelled
// or, in Once mode, a single cycle completes.
func Run(ctx context.Context, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	store, err := wal.Open(cfg.WALDir)
	if err != nil {
		return fmt.Errorf("open wal: %w", err)
	}
	defer store.Close()

	adapter := pkglog.NewZerologAdapterWithLogger(logger)
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	watermarks := engine.NewWatermarkCache()
	states := fsadapter.NewStateFileRepository(cfg.StateDir)

	eng := engine.New(store, engine.Options{
		Sender:     httpadapter.NewFrameSender(httpClient, watermarks, adapter),
		Watermarks: watermarks,
		States:     states,
		Logger:     adapter,
		Metadata: ports.SendMetadata{
			StoreID:    cfg.StoreID,
			Hostname:   hostname(),
			OSArch:     runtime.GOOS + "/" + runtime.GOARCH,
			AuthKey:    cfg.AuthKey,
			ServiceURL: cfg.ServiceURL,
		},
	})

	if prior, err := states.Load(ctx); err == nil && !prior.LastPushed.IsZero() {
		logger.Info().
			Uint64("epoch", uint64(prior.LastPushed.Epoch)).
			Uint64("frame", uint64(prior.LastPushed.FrameNum)).
			Time("at", prior.LastPushAt).
			Msg("resuming after previous push")
	}

	if cfg.MetricsAddr != "" {
		go serveMetrics(ctx, cfg.MetricsAddr)
	}

	live := newLiveSettings(cfg)
	if cfg.ConfigPath != "" {
		go NewConfigWatcher(cfg.ConfigPath, live.applyFile).Run(ctx)
	}

	pull := httpadapter.NewWatermarkClient(httpClient, cfg.ServiceURL, cfg.AuthKey, cfg.StoreID)
	if !cfg.Once {
		go pullLoop(ctx, pull, watermarks, live)
	} else if w, err := pull.Fetch(ctx); err != nil {
		logger.Warn().Err(err).Msg("watermark pull failed, cycle assumes nothing acknowledged")
	} else {
		watermarks.Update(w)
	}

	back := newBackoff(500*time.Millisecond, 10*time.Second)
	for {
		decision, err := eng.RunSyncCycle(ctx)
		switch {
		case err == nil:
			logger.Debug().Stringer("decision", decision).Msg("sync cycle")
			back.Reset()
		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			return err
		case errors.Is(err, domain.ErrEpochMismatch):
			// The remote still acks an older generation; keep cadence and
			// wait for its watermark to move to the new epoch.
			logger.Warn().Err(err).Msg("sync cycle: epoch mismatch")
			back.Reset()
		default:
			logger.Error().Err(err).Msg("sync cycle failed")
			back.Sleep(ctx)
		}

		if cfg.Once {
			if err != nil && !errors.Is(err, domain.ErrEpochMismatch) {
				return err
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(live.SyncInterval()):
		}
	}
}

// pullLoop refreshes the watermark cache on its own cadence. The sync
// loop never waits on it; it consumes whatever the cache last saw.
func pullLoop(ctx context.Context, src ports.WatermarkSource, cache *engine.WatermarkCache, live *liveSettings) {
	back := newBackoff(time.Second, 30*time.Second)
	for {
		w, err := src.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn().Err(err).Msg("watermark pull failed")
			back.Sleep(ctx)
		} else {
			cache.Update(w)
			back.Reset()
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(live.PullInterval()):
		}
	}
}

func serveMetrics(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info().Str("addr", addr).Msg("serving metrics")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Warn().Err(err).Msg("metrics server")
	}
}

func hostname() string {
	if h, err := os.Hostname(); err == nil {
		return h
	}
	return "unknown"
}
