package ports

import (
	"context"

	"go.kiln.dev/kiln/internal/core/domain"
)

// PackageIndex defines the interface for querying a package index.
//
//go:generate mockgen -source=index.go -destination=mocks/mock_index.go -package=mocks
type PackageIndex interface {
	// Search returns every candidate on the given channel matching the spec.
	// An empty slice with a nil error means the channel has no match.
	Search(ctx context.Context, channel, spec string) ([]domain.PackageRecord, error)
}
