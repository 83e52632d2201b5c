package domain

import "go.trai.ch/zerr"

var (
	// ErrInvalidAxis is returned when a variant axis is empty or carries an unsupported value.
	ErrInvalidAxis = zerr.New("invalid variant axis")

	// ErrCycleDetected is returned when the build graph contains dependency cycles.
	ErrCycleDetected = zerr.New("build dependencies must form a directed acyclic graph")

	// ErrUnresolvedDependency is returned when a package cannot be found on any configured channel.
	ErrUnresolvedDependency = zerr.New("unable to resolve remote dependency")

	// ErrFetchFailed is returned when a feedstock repository cannot be fetched.
	ErrFetchFailed = zerr.New("failed to fetch feedstock repository")

	// ErrPatchFailed is returned when a patch cannot be applied to a feedstock.
	ErrPatchFailed = zerr.New("failed to apply patch")

	// ErrGitTagMissing is returned when a feedstock referenced by URL carries no pinned tag.
	ErrGitTagMissing = zerr.New("git tag attribute is missing for feedstock")

	// ErrRenderFailed is returned when a recipe cannot be rendered for a variant.
	ErrRenderFailed = zerr.New("failed to render recipe")

	// ErrNodeNotFound is returned when a requested node is not present in the graph.
	ErrNodeNotFound = zerr.New("node not found in graph")

	// ErrNoPackages is returned when a dependency node is created without any package names.
	ErrNoPackages = zerr.New("dependency node must own at least one package")

	// ErrNoEnvFiles is returned when no environment files are given to a command.
	ErrNoEnvFiles = zerr.New("no environment files specified")

	// ErrConfigReadFailed is returned when an environment file cannot be read.
	ErrConfigReadFailed = zerr.New("failed to read environment file")

	// ErrConfigParseFailed is returned when an environment file cannot be parsed.
	ErrConfigParseFailed = zerr.New("failed to parse environment file")

	// ErrConfigInvalid is returned when an environment file violates the schema.
	ErrConfigInvalid = zerr.New("invalid environment file")

	// ErrConfigNotFound is returned when an environment file cannot be found.
	ErrConfigNotFound = zerr.New("could not find environment file")

	// ErrImportCycle is returned when environment files import each other in a loop.
	ErrImportCycle = zerr.New("environment file import cycle")

	// ErrIndexRequestFailed is returned when a package index request fails.
	ErrIndexRequestFailed = zerr.New("failed to query package index")

	// ErrIndexParseFailed is returned when a package index response cannot be parsed.
	ErrIndexParseFailed = zerr.New("failed to parse package index response")

	// ErrIndexCacheCreateFailed is returned when the index cache directory cannot be created.
	ErrIndexCacheCreateFailed = zerr.New("failed to create index cache directory")

	// ErrIndexCacheReadFailed is returned when reading from the index cache fails.
	ErrIndexCacheReadFailed = zerr.New("failed to read from index cache")

	// ErrIndexCacheWriteFailed is returned when writing to the index cache fails.
	ErrIndexCacheWriteFailed = zerr.New("failed to write to index cache")

	// ErrBuildExecutionFailed is returned when the build loop fails.
	ErrBuildExecutionFailed = zerr.New("build execution failed")

	// ErrCommandExecutionFailed is returned when a build command execution fails.
	ErrCommandExecutionFailed = zerr.New("command execution failed")

	// ErrOutputFolderCreateFailed is returned when the output folder cannot be created.
	ErrOutputFolderCreateFailed = zerr.New("failed to create output folder")

	// ErrEnvFileWriteFailed is returned when a generated environment file cannot be written.
	ErrEnvFileWriteFailed = zerr.New("failed to write environment file")
)
