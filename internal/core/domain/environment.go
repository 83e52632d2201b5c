package domain

// PackageEntry is one package declaration from an environment file, after
// schema validation and path resolution.
type PackageEntry struct {
	// Feedstock is the feedstock repository short name, without the
	// "-feedstock" suffix.
	Feedstock string
	// Recipes optionally narrows the build to specific recipes within the
	// feedstock. Empty means all recipes.
	Recipes []string
	// GitTag pins the feedstock checkout. Takes precedence over the
	// environment wide tag.
	GitTag string
	// RecipePath overrides the directory inside the feedstock that holds
	// the recipes.
	RecipePath string
	// Patches are paths of patch files applied after checkout, in order.
	// The loader resolves them against the declaring environment file.
	Patches []string
	// Channels are extra package channels for this entry, highest priority first.
	Channels []string
	// RuntimePackage marks whether the produced packages belong in the
	// installable set. Defaults to true.
	RuntimePackage bool
}

// Environment is the merged content of an environment file and all of its
// imports.
type Environment struct {
	// Files lists every environment file that was loaded, in load order.
	Files []string
	// Channels are environment level channels, highest priority first.
	Channels []string
	// Packages are the package entries to build, in declaration order.
	Packages []PackageEntry
	// ExternalDependencies are installable set entries that are never built
	// locally, as raw match spec strings.
	ExternalDependencies []string
	// GitTagForEnv pins every feedstock that has no explicit tag of its own.
	GitTagForEnv string
	// CondaBuildConfigs are extra build configuration files, resolved against
	// the declaring environment file.
	CondaBuildConfigs []string
}
