package ports

import (
	"context"

	"github.com/bft-labs/walsync/internal/domain"
)

// FrameSender transmits a contiguous frame range to the remote service.
// Implementations handle serialization, transport, and authentication.
// An error means nothing may be recorded as pushed.
type FrameSender interface {
	Send(ctx context.Context, epoch domain.Epoch, frames []domain.Frame, metadata SendMetadata) error
}

// SendMetadata provides context for the send operation. It is included
// in request headers for server-side tracking.
type SendMetadata struct {
	// StoreID identifies the replicated store on the remote.
	StoreID string

	// Hostname is the agent's hostname.
	Hostname string

	// OSArch is the operating system and architecture (e.g. "linux/amd64").
	OSArch string

	// AuthKey is the API authentication key.
	AuthKey string

	// ServiceURL is the base URL of the sync service.
	ServiceURL string
}
