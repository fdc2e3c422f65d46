package ports

import (
	"context"

	"github.com/bft-labs/walsync/internal/domain"
)

// StateRepository persists the sync loop's last-pushed record for crash
// recovery and diagnostics.
type StateRepository interface {
	// Load retrieves the last saved state. Returns a zero state and nil
	// error if none exists; errors only on actual read failures.
	Load(ctx context.Context) (domain.State, error)

	// Save persists the state atomically (write to a temp file, then
	// rename, or equivalent).
	Save(ctx context.Context, state domain.State) error
}
