package ports

import "context"

// Fetcher defines the interface for fetching feedstock repositories.
//
//go:generate mockgen -source=fetcher.go -destination=mocks/mock_fetcher.go -package=mocks
type Fetcher interface {
	// Fetch clones the repository at url and checks out ref, returning the
	// checkout directory. An empty ref leaves the default branch checked out.
	// Fetching the same repository twice reuses the existing checkout.
	Fetch(ctx context.Context, url, ref string) (string, error)

	// ApplyPatch applies a patch file to a previously fetched checkout.
	ApplyPatch(ctx context.Context, repoDir, patchFile string) error
}
