package ports

import "go.kiln.dev/kiln/internal/core/domain"

// ConfigLoader defines the interface for loading environment files.
//
//go:generate mockgen -source=config_loader.go -destination=mocks/mock_config_loader.go -package=mocks
type ConfigLoader interface {
	// Load reads the given environment files and everything they import,
	// returning the merged environment. Paths are resolved against the
	// current working directory.
	Load(paths []string) (*domain.Environment, error)

	// DiscoverConfigPaths returns every file Load would read, including
	// imports, mapped to its modification time in UnixNano.
	DiscoverConfigPaths(paths []string) (map[string]int64, error)
}
