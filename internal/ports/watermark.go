package ports

import (
	"context"

	"github.com/bft-labs/walsync/internal/domain"
)

// WatermarkSource pulls the remote's last durably applied position.
// Pulls run on their own cadence; the engine never awaits one inside a
// sync decision.
type WatermarkSource interface {
	Fetch(ctx context.Context) (domain.Watermark, error)
}

// WatermarkProvider serves the most recently pulled watermark without
// blocking. The value is eventually-consistent input: it may lag the
// remote, and the engine must tolerate it running ahead of the local log.
type WatermarkProvider interface {
	Current() domain.Watermark
}
