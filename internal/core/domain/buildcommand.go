package domain

import "strings"

// BuildCommand represents one recipe rendered for one variant.
// It is created once per (recipe, variant) pair during tree construction and
// is immutable afterwards, except for Channels which may be widened when
// ancestor channels propagate down during remote resolution.
type BuildCommand struct {
	// Recipe is the recipe identifier within its feedstock.
	Recipe InternedString
	// Repository is the local path of the fetched feedstock.
	Repository string
	// Packages lists the package names this command produces, in recipe order.
	Packages []InternedString
	// RecipePath is an explicit recipe directory override from the environment file.
	RecipePath string
	// Variant selects the axis values this command was rendered for.
	Variant Variant
	// Channels are extra package sources declared by the recipe or its
	// environment file, highest priority first.
	Channels []string

	BuildDependencies []MatchSpec
	HostDependencies  []MatchSpec
	RunDependencies   []MatchSpec
	TestDependencies  []MatchSpec

	// OutputFiles are the artifact file names the build is expected to produce,
	// relative to the output folder.
	OutputFiles []string
	// BuildConfigs are extra build configuration files passed to the renderer
	// and the feedstock build tool.
	BuildConfigs []string
	// RuntimePackage marks whether the produced packages belong in installable
	// sets. Build-only tooling sets this to false.
	RuntimePackage bool
}

// Name returns the unique display name of the build command: the recipe name
// joined with the variant string, with dots and underscores dashed so the name
// is safe for file paths, e.g. "recipe2-py2-6-cpu-openmpi-10-2".
func (c *BuildCommand) Name() string {
	result := c.Recipe.String()
	if variant := c.Variant.String(); variant != "" {
		result += "-" + variant
	}
	result = strings.ReplaceAll(result, ".", "-")
	result = strings.ReplaceAll(result, "_", "-")
	return result
}

// AllDependencies returns the dependencies of every phase in a stable order:
// build, host, run, then test.
func (c *BuildCommand) AllDependencies() []MatchSpec {
	deps := make([]MatchSpec, 0, len(c.BuildDependencies)+len(c.HostDependencies)+len(c.RunDependencies)+len(c.TestDependencies))
	deps = append(deps, c.BuildDependencies...)
	deps = append(deps, c.HostDependencies...)
	deps = append(deps, c.RunDependencies...)
	deps = append(deps, c.TestDependencies...)
	return deps
}

// ProducesPackage reports whether this command produces the named package.
func (c *BuildCommand) ProducesPackage(name InternedString) bool {
	for _, pkg := range c.Packages {
		if pkg == name {
			return true
		}
	}
	return false
}

// FeedstockArgs renders the command as arguments for the feedstock build tool.
func (c *BuildCommand) FeedstockArgs() []string {
	args := []string{"--working_directory", c.Repository}
	if c.Recipe.String() != "" {
		args = append(args, "--recipes", c.Recipe.String())
	}
	for _, channel := range c.Channels {
		args = append(args, "--channels", channel)
	}
	if c.Variant.PythonVersion != "" {
		args = append(args, "--python_versions", c.Variant.PythonVersion)
	}
	if c.Variant.BuildType != "" {
		args = append(args, "--build_types", c.Variant.BuildType)
	}
	if c.Variant.MPIType != "" {
		args = append(args, "--mpi_types", c.Variant.MPIType)
	}
	if c.Variant.CUDAVersion != "" {
		args = append(args, "--cuda_versions", c.Variant.CUDAVersion)
	}
	if len(c.BuildConfigs) > 0 {
		args = append(args, "--conda_build_configs", strings.Join(c.BuildConfigs, ","))
	}
	return args
}
