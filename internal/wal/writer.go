package wal

import (
	"context"
	"fmt"

	"github.com/bft-labs/walsync/internal/domain"
)

// Writer is the single append path into the log. At most one writer may
// exist per log; acquiring a second fails with ErrConflict. The shared
// index is published only after a frame is durable, so a snapshot taken
// after Append returns always observes the new count.
type Writer struct {
	log *LogStore
}

// Writer acquires the log's writer.
func (l *LogStore) Writer() (*Writer, error) {
	if !l.writerTaken.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("acquire writer: %w", domain.ErrConflict)
	}
	return &Writer{log: l}, nil
}

// Append commits one frame and returns its number.
func (w *Writer) Append(ctx context.Context, data []byte) (domain.FrameNum, error) {
	return w.log.append(ctx, data)
}

// Checkpoint truncates the log and starts a new generation. It blocks
// until open read scopes drain, bounded by ctx. Remote watermarks from
// earlier generations become incomparable afterwards; the sync engine
// reports them as epoch mismatches until the remote catches up.
func (w *Writer) Checkpoint(ctx context.Context) (domain.Epoch, error) {
	return w.log.truncate(ctx)
}

// Release gives the writer back so another can be acquired.
func (w *Writer) Release() {
	w.log.writerTaken.Store(false)
}
