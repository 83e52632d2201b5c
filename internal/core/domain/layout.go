package domain

import "path/filepath"

const (
	// KilnDirName is the name of the internal workspace directory.
	KilnDirName = ".kiln"

	// CacheDirName is the name of the cache directory.
	CacheDirName = "cache"

	// IndexDirName is the name of the package index cache directory.
	IndexDirName = "index"

	// ReposDirName is the name of the feedstock checkout directory.
	ReposDirName = "repos"

	// DefaultOutputFolder is where built package artifacts land.
	DefaultOutputFolder = "condabuild"

	// DefaultGitLocation is the organization URL feedstock repositories are
	// fetched from when an environment file does not name one.
	DefaultGitLocation = "https://github.com/open-ce"

	// DefaultParallelism caps concurrent fetch, render and resolve work.
	DefaultParallelism = 16

	// EnvFilePrefix prefixes generated environment file names.
	EnvFilePrefix = "kiln-env-"

	// VariantMarker is the comment key identifying a generated environment
	// file's variant, e.g. "#kiln-variant:py3.10-cuda-openmpi-11.8".
	VariantMarker = "kiln-variant"

	// DebugLogFile is the name of the debug log file.
	DebugLogFile = "debug.log"

	// DirPerm is the default permission for directories (rwxr-x---).
	DirPerm = 0o750

	// FilePerm is the default permission for files (rw-r--r--).
	FilePerm = 0o644
)

// DefaultKilnPath returns the default root directory for kiln metadata.
func DefaultKilnPath() string {
	return KilnDirName
}

// DefaultIndexCachePath returns the default path for the package index cache.
// It joins .kiln, cache, and index.
func DefaultIndexCachePath() string {
	return filepath.Join(KilnDirName, CacheDirName, IndexDirName)
}

// DefaultReposPath returns the default root for feedstock checkouts.
// It joins .kiln and repos.
func DefaultReposPath() string {
	return filepath.Join(KilnDirName, ReposDirName)
}

// DefaultDebugLogPath returns the default path for the debug log.
// It joins .kiln and debug.log.
func DefaultDebugLogPath() string {
	return filepath.Join(KilnDirName, DebugLogFile)
}
