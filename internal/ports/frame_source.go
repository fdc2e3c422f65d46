package ports

import (
	"context"

	"github.com/bft-labs/walsync/internal/domain"
)

// FrameSource supplies committed frames from the log. Implementations
// must return exactly to-from+1 frames or fail with an error wrapping
// domain.ErrRangeRead; partial results are never returned.
type FrameSource interface {
	ReadFrames(ctx context.Context, from, to domain.FrameNum) ([]domain.Frame, error)
}
