package engine

import (
	"sync/atomic"

	"github.com/bft-labs/walsync/internal/domain"
)

// WatermarkCache holds the most recently pulled remote watermark. The
// pull loop updates it; the engine reads it without blocking. A zero
// value reports a zero watermark (remote has acknowledged nothing).
type WatermarkCache struct {
	v atomic.Value // domain.Watermark
}

// NewWatermarkCache returns an empty cache.
func NewWatermarkCache() *WatermarkCache {
	return &WatermarkCache{}
}

// Update stores a freshly pulled watermark.
func (c *WatermarkCache) Update(w domain.Watermark) {
	c.v.Store(w)
}

// Current returns the last stored watermark.
func (c *WatermarkCache) Current() domain.Watermark {
	if w, ok := c.v.Load().(domain.Watermark); ok {
		return w
	}
	return domain.Watermark{}
}
