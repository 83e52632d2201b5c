package ports

import "go.kiln.dev/kiln/internal/core/domain"

// IndexCache defines the interface for persisting package index query results.
//
//go:generate mockgen -source=index_cache.go -destination=mocks/mock_index_cache.go -package=mocks
type IndexCache interface {
	// Get retrieves the cached records for a channel and spec.
	// Returns ok=false if the query has not been cached yet.
	Get(channel, spec string) (records []domain.PackageRecord, ok bool, err error)

	// Put stores the records for a channel and spec. An empty slice is a
	// valid cacheable result meaning the channel has no match.
	Put(channel, spec string, records []domain.PackageRecord) error
}
