package index

import (
	"time"

	"go.kiln.dev/kiln/internal/core/domain"
)

// Repodata is the index document a channel serves per platform directory.
type Repodata struct {
	Info          RepodataInfo            `json:"info"`
	Packages      map[string]PackageEntry `json:"packages"`
	CondaPackages map[string]PackageEntry `json:"packages.conda"`
}

// RepodataInfo carries the platform directory the document describes.
type RepodataInfo struct {
	Subdir string `json:"subdir"`
}

// PackageEntry is one artifact entry in a repodata document, keyed by its
// artifact file name.
type PackageEntry struct {
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Build       string   `json:"build"`
	BuildNumber int      `json:"build_number"`
	Depends     []string `json:"depends"`
	Timestamp   int64    `json:"timestamp"`
}

// cacheEntry represents one cached query result.
type cacheEntry struct {
	Channel   string                 `json:"channel"`
	Spec      string                 `json:"spec"`
	Records   []domain.PackageRecord `json:"records"`
	Timestamp time.Time              `json:"timestamp"`
}
