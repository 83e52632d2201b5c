package domain

// RenderedRecipe is the metadata obtained by rendering one recipe for one
// variant. Dependency lists are raw match spec strings as declared by the
// recipe; parsing happens at graph ingestion.
type RenderedRecipe struct {
	// Name is the recipe name.
	Name string
	// Path is the directory the recipe was rendered from.
	Path string
	// Packages are the package names this recipe produces, in declaration order.
	Packages []string

	BuildDependencies []string
	HostDependencies  []string
	RunDependencies   []string
	TestDependencies  []string

	// Channels declared by the recipe, highest priority first.
	Channels []string
	// OutputFiles are the artifact file names a build is expected to produce,
	// relative to the output folder.
	OutputFiles []string
}
