package config

// EnvFile represents the structure of an environment file.
type EnvFile struct {
	ImportedEnvs         []string      `yaml:"imported_envs"`
	Channels             []string      `yaml:"channels"`
	Packages             []*PackageDTO `yaml:"packages"`
	ExternalDependencies []string      `yaml:"external_dependencies"`
	GitTagForEnv         string        `yaml:"git_tag_for_env"`
	CondaBuildConfigs    []string      `yaml:"conda_build_configs"`
}

// PackageDTO represents a package declaration in an environment file.
type PackageDTO struct {
	Feedstock      string   `yaml:"feedstock"`
	Recipes        []string `yaml:"recipes"`
	GitTag         string   `yaml:"git_tag"`
	RecipePath     string   `yaml:"recipe_path"`
	Patches        []string `yaml:"patches"`
	Channels       []string `yaml:"channels"`
	RuntimePackage *bool    `yaml:"runtime_package"`
}
