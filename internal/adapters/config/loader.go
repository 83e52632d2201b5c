// Package config provides the environment file loader for kiln.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"go.kiln.dev/kiln/internal/core/domain"
	"go.kiln.dev/kiln/internal/core/ports"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

// Loader implements ports.ConfigLoader using YAML environment files.
type Loader struct {
	Logger ports.Logger
}

// NewLoader creates a new Loader with the given logger.
func NewLoader(logger ports.Logger) *Loader {
	return &Loader{Logger: logger}
}

// Load reads the given environment files and everything they import, returning
// the merged environment. Imported files are merged before the file importing
// them, so an importer's packages follow those of its imports.
func (l *Loader) Load(paths []string) (*domain.Environment, error) {
	if len(paths) == 0 {
		return nil, domain.ErrNoEnvFiles
	}

	st := newLoadState()
	for _, path := range paths {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return nil, zerr.Wrap(err, domain.ErrConfigNotFound.Error())
		}
		if err := l.loadFile(st, absPath, nil); err != nil {
			return nil, err
		}
	}

	return st.env, nil
}

// DiscoverConfigPaths returns every file Load would read, including imports,
// mapped to its modification time in UnixNano. Unreadable or unparseable
// files are still included so a watcher can pick up the fix; their imports
// are skipped.
func (l *Loader) DiscoverConfigPaths(paths []string) (map[string]int64, error) {
	pending := make([]string, 0, len(paths))
	for _, path := range paths {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return nil, zerr.Wrap(err, domain.ErrConfigNotFound.Error())
		}
		pending = append(pending, absPath)
	}

	discovered := make(map[string]int64)
	for len(pending) > 0 {
		absPath := pending[0]
		pending = pending[1:]
		if _, seen := discovered[absPath]; seen {
			continue
		}

		discovered[absPath] = 0
		if info, err := os.Stat(absPath); err == nil {
			discovered[absPath] = info.ModTime().UnixNano()
		}

		// Lenient parse, only the imports matter here.
		// #nosec G304 -- path comes from user supplied configuration
		data, err := os.ReadFile(absPath)
		if err != nil {
			continue
		}
		var file EnvFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			continue
		}
		for _, imported := range file.ImportedEnvs {
			pending = append(pending, resolvePath(filepath.Dir(absPath), imported))
		}
	}

	return discovered, nil
}

// loadState accumulates the merged environment across files. The maps
// deduplicate entries that appear in more than one file.
type loadState struct {
	env       *domain.Environment
	loaded    map[string]bool
	channels  map[string]bool
	externals map[string]bool
	configs   map[string]bool
}

func newLoadState() *loadState {
	return &loadState{
		env:       &domain.Environment{},
		loaded:    make(map[string]bool),
		channels:  make(map[string]bool),
		externals: make(map[string]bool),
		configs:   make(map[string]bool),
	}
}

func (l *Loader) loadFile(st *loadState, absPath string, stack []string) error {
	if st.loaded[absPath] {
		return nil
	}
	if slices.Contains(stack, absPath) {
		chain := strings.Join(append(slices.Clone(stack), absPath), " -> ")
		return zerr.With(domain.ErrImportCycle, "chain", chain)
	}

	file, err := readEnvFile(absPath)
	if err != nil {
		return err
	}

	if len(file.Packages) == 0 && len(file.ImportedEnvs) == 0 {
		err := zerr.With(domain.ErrConfigInvalid, "file", absPath)
		return zerr.With(err, "reason", "must declare packages or imported_envs")
	}

	baseDir := filepath.Dir(absPath)
	stack = append(stack, absPath)
	for _, imported := range file.ImportedEnvs {
		if err := l.loadFile(st, resolvePath(baseDir, imported), stack); err != nil {
			return err
		}
	}

	return l.mergeFile(st, file, absPath)
}

func (l *Loader) mergeFile(st *loadState, file *EnvFile, absPath string) error {
	baseDir := filepath.Dir(absPath)

	for _, channel := range file.Channels {
		if !st.channels[channel] {
			st.channels[channel] = true
			st.env.Channels = append(st.env.Channels, channel)
		}
	}

	for _, dto := range file.Packages {
		entry, err := packageEntry(dto, file.GitTagForEnv, baseDir)
		if err != nil {
			return zerr.With(err, "file", absPath)
		}
		st.env.Packages = append(st.env.Packages, entry)
	}

	for _, dep := range file.ExternalDependencies {
		if !st.externals[dep] {
			st.externals[dep] = true
			st.env.ExternalDependencies = append(st.env.ExternalDependencies, dep)
		}
	}

	for _, cfg := range file.CondaBuildConfigs {
		resolved := resolvePath(baseDir, cfg)
		if !st.configs[resolved] {
			st.configs[resolved] = true
			st.env.CondaBuildConfigs = append(st.env.CondaBuildConfigs, resolved)
		}
	}

	if file.GitTagForEnv != "" {
		switch {
		case st.env.GitTagForEnv == "":
			st.env.GitTagForEnv = file.GitTagForEnv
		case st.env.GitTagForEnv != file.GitTagForEnv:
			l.Logger.Warn(fmt.Sprintf(
				"git_tag_for_env %q in %s differs from %q declared earlier, package entries keep their own file's tag",
				file.GitTagForEnv, absPath, st.env.GitTagForEnv))
		}
	}

	st.env.Files = append(st.env.Files, absPath)
	st.loaded[absPath] = true
	return nil
}

// readEnvFile reads and strictly decodes a single environment file.
// Unknown keys are schema violations.
func readEnvFile(absPath string) (*EnvFile, error) {
	// #nosec G304 -- path comes from user supplied configuration
	data, err := os.ReadFile(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, zerr.With(domain.ErrConfigNotFound, "file", absPath)
		}
		err = zerr.Wrap(err, domain.ErrConfigReadFailed.Error())
		return nil, zerr.With(err, "file", absPath)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var file EnvFile
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return &file, nil
		}
		err = zerr.Wrap(err, domain.ErrConfigParseFailed.Error())
		return nil, zerr.With(err, "file", absPath)
	}

	return &file, nil
}

// packageEntry converts a package declaration into a domain entry, applying
// the declaring file's env wide git tag and resolving patch paths.
func packageEntry(dto *PackageDTO, envGitTag, baseDir string) (domain.PackageEntry, error) {
	feedstock, recipes, err := parseFeedstock(dto.Feedstock)
	if err != nil {
		return domain.PackageEntry{}, err
	}

	for _, recipe := range dto.Recipes {
		if !slices.Contains(recipes, recipe) {
			recipes = append(recipes, recipe)
		}
	}

	gitTag := dto.GitTag
	if gitTag == "" {
		gitTag = envGitTag
	}

	var patches []string
	for _, patch := range dto.Patches {
		patches = append(patches, resolvePath(baseDir, patch))
	}

	runtimePackage := true
	if dto.RuntimePackage != nil {
		runtimePackage = *dto.RuntimePackage
	}

	return domain.PackageEntry{
		Feedstock:      feedstock,
		Recipes:        recipes,
		GitTag:         gitTag,
		RecipePath:     dto.RecipePath,
		Patches:        patches,
		Channels:       slices.Clone(dto.Channels),
		RuntimePackage: runtimePackage,
	}, nil
}

// parseFeedstock splits the trailing recipe list off a feedstock declaration.
// "name:recipe1,recipe2" narrows the build to the named recipes. Feedstocks
// given as full URLs never carry a recipe list.
func parseFeedstock(value string) (string, []string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", nil, zerr.With(domain.ErrConfigInvalid, "reason", "package entry missing feedstock")
	}

	if strings.Contains(value, "://") {
		return value, nil, nil
	}

	name, list, found := strings.Cut(value, ":")
	if !found {
		return value, nil, nil
	}
	if name == "" {
		return "", nil, zerr.With(domain.ErrConfigInvalid, "reason", "package entry missing feedstock")
	}

	var recipes []string
	for _, recipe := range strings.Split(list, ",") {
		recipe = strings.TrimSpace(recipe)
		if recipe != "" && !slices.Contains(recipes, recipe) {
			recipes = append(recipes, recipe)
		}
	}

	return name, recipes, nil
}

// resolvePath resolves a path from an environment file against the file's
// directory. Absolute paths pass through unchanged.
func resolvePath(baseDir, path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Clean(filepath.Join(baseDir, path))
}
