// Package walsync replicates an embedded store's write-ahead log to a
// remote sync service.
//
// The library can be embedded directly:
//
//	store, err := walsync.Open("/path/to/wal")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	w, err := store.Writer()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if _, err := w.Append(ctx, frameBytes); err != nil {
//	    log.Fatal(err)
//	}
//
// or driven as an agent:
//
//	cfg := walsync.DefaultConfig()
//	cfg.WALDir = "/path/to/wal"
//	cfg.AuthKey = "your-api-key"
//	if err := walsync.Run(context.Background(), cfg); err != nil {
//	    log.Fatal(err)
//	}
package walsync

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/bft-labs/walsync/internal/agent"
	"github.com/bft-labs/walsync/internal/wal"
)

// Config holds the configuration for the sync agent.
// Use DefaultConfig() to get a Config with sensible defaults.
type Config = agent.Config

// LogStore is the append-only frame log.
type LogStore = wal.LogStore

// Handle is a connection to the log with its own frame-count cache.
type Handle = wal.Handle

// Writer is the single append path into the log.
type Writer = wal.Writer

// Open opens or creates the frame log under dir.
func Open(dir string) (*LogStore, error) {
	return wal.Open(dir)
}

// Run starts the sync agent with the given configuration. It blocks
// until the context is cancelled or, with cfg.Once, one cycle completes.
func Run(ctx context.Context, cfg Config) error {
	return agent.Run(ctx, cfg)
}

// DefaultConfig returns a Config with sensible default values.
// At minimum, set WALDir and AuthKey before calling Run.
func DefaultConfig() Config {
	return agent.DefaultConfig()
}

// Logger returns the package-level zerolog logger used by the agent.
func Logger() zerolog.Logger {
	return agent.Logger()
}

// DefaultServiceURL is the default endpoint for the sync service.
const DefaultServiceURL = agent.DefaultServiceURL
