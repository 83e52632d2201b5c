// Package render implements the RecipeRenderer port by shelling out to the
// conda render command and parsing the YAML metadata it emits.
package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.kiln.dev/kiln/internal/core/domain"
	"go.kiln.dev/kiln/internal/core/ports"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

const (
	renderProgram = "conda"
	metaFileName  = "meta.yaml"
)

// Renderer implements ports.RecipeRenderer using the conda command line tool.
type Renderer struct {
	executor ports.Executor
}

// NewRenderer creates a RecipeRenderer backed by conda render.
func NewRenderer(executor ports.Executor) *Renderer {
	return &Renderer{executor: executor}
}

// Render evaluates every recipe under recipePath for the given variant.
// Each recipe is rendered twice, once for its metadata and once with
// --output for the artifact file names the build will produce.
func (r *Renderer) Render(ctx context.Context, recipePath string, variant domain.Variant, configs []string) ([]domain.RenderedRecipe, error) {
	dirs, err := recipeDirs(recipePath)
	if err != nil {
		return nil, err
	}

	var recipes []domain.RenderedRecipe
	for _, dir := range dirs {
		stdout, err := r.run(ctx, dir, variant, configs, false)
		if err != nil {
			return nil, err
		}

		rendered, err := parseRendered(dir, stdout)
		if err != nil {
			return nil, err
		}

		outputs, err := r.run(ctx, dir, variant, configs, true)
		if err != nil {
			return nil, err
		}
		files := outputFiles(outputs)
		for i := range rendered {
			rendered[i].OutputFiles = files
		}

		recipes = append(recipes, rendered...)
	}

	return recipes, nil
}

// run invokes conda render for one recipe directory and returns its stdout.
func (r *Renderer) run(ctx context.Context, dir string, variant domain.Variant, configs []string, output bool) (string, error) {
	args := []string{"render", dir, "--variants", variantArg(variant)}
	for _, cfg := range configs {
		args = append(args, "-m", cfg)
	}
	if output {
		args = append(args, "--output")
	}

	var stdout, stderr bytes.Buffer
	cmd := &domain.Command{
		Label:   "conda render " + dir,
		Program: renderProgram,
		Args:    args,
	}
	if err := r.executor.Execute(ctx, cmd, nil, &stdout, &stderr); err != nil {
		renderErr := zerr.Wrap(err, domain.ErrRenderFailed.Error())
		renderErr = zerr.With(renderErr, "recipe", dir)
		return "", zerr.With(renderErr, "stderr", stderr.String())
	}

	return stdout.String(), nil
}

// parseRendered decodes a stream of rendered recipe documents.
func parseRendered(dir, stdout string) ([]domain.RenderedRecipe, error) {
	dec := yaml.NewDecoder(strings.NewReader(stdout))

	var recipes []domain.RenderedRecipe
	for {
		var meta renderedMeta
		if err := dec.Decode(&meta); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			parseErr := zerr.Wrap(err, domain.ErrRenderFailed.Error())
			return nil, zerr.With(parseErr, "recipe", dir)
		}
		recipes = append(recipes, recipeFromMeta(dir, meta))
	}

	if len(recipes) == 0 {
		emptyErr := zerr.With(domain.ErrRenderFailed, "recipe", dir)
		return nil, zerr.With(emptyErr, "reason", "renderer produced no metadata")
	}

	return recipes, nil
}

// recipeFromMeta maps one rendered document to the domain model. Recipes
// without an outputs section produce exactly their package name.
func recipeFromMeta(dir string, meta renderedMeta) domain.RenderedRecipe {
	packages := make([]string, 0, len(meta.Outputs))
	for _, output := range meta.Outputs {
		packages = append(packages, output.Name)
	}
	if len(packages) == 0 {
		packages = append(packages, meta.Package.Name)
	}

	return domain.RenderedRecipe{
		Name:              meta.Package.Name,
		Path:              dir,
		Packages:          packages,
		BuildDependencies: meta.Requirements.Build,
		HostDependencies:  meta.Requirements.Host,
		RunDependencies:   meta.Requirements.Run,
		TestDependencies:  meta.Test.Requires,
		Channels:          meta.Extra.Channels,
	}
}

// outputFiles splits conda render --output stdout into artifact file names.
func outputFiles(stdout string) []string {
	var files []string
	for _, line := range strings.Split(stdout, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			files = append(files, line)
		}
	}
	return files
}

// variantArg renders the variant matrix argument as a YAML mapping literal.
// The accelerator axis is passed only when the variant carries one.
func variantArg(variant domain.Variant) string {
	parts := []string{
		fmt.Sprintf("'python': '%s'", variant.PythonVersion),
		fmt.Sprintf("'build_type': '%s'", variant.BuildType),
		fmt.Sprintf("'mpi_type': '%s'", variant.MPIType),
	}
	if variant.CUDAVersion != "" {
		parts = append(parts, fmt.Sprintf("'cudatoolkit': '%s'", variant.CUDAVersion))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// recipeDirs locates the recipes under a path: the path itself when it holds
// a meta.yaml, otherwise any subdirectory up to two levels down, covering
// both the recipe/ and the recipes/<name>/ feedstock layouts. Render order
// follows directory order, so it is stable.
func recipeDirs(recipePath string) ([]string, error) {
	if hasMeta(recipePath) {
		return []string{recipePath}, nil
	}

	entries, err := os.ReadDir(recipePath)
	if err != nil {
		return nil, zerr.Wrap(err, domain.ErrRenderFailed.Error())
	}

	var dirs []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(recipePath, entry.Name())
		if hasMeta(dir) {
			dirs = append(dirs, dir)
			continue
		}

		subEntries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, sub := range subEntries {
			if !sub.IsDir() {
				continue
			}
			subDir := filepath.Join(dir, sub.Name())
			if hasMeta(subDir) {
				dirs = append(dirs, subDir)
			}
		}
	}

	if len(dirs) == 0 {
		noneErr := zerr.With(domain.ErrRenderFailed, "path", recipePath)
		return nil, zerr.With(noneErr, "reason", "no recipes found")
	}

	return dirs, nil
}

func hasMeta(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, metaFileName))
	return err == nil
}
