// internal/domain/campaign/repository_port.go
package campaign

import "context"

// RepositoryPort loads campaign definitions. The refresh cadence is
// owned by the caller; this port is a single fetch.
type RepositoryPort interface {
	// FindByAddress returns the campaign for a candy machine address.
	// ErrNotFound when no such campaign is configured.
	FindByAddress(ctx context.Context, address string) (CandyMachine, error)
}
