// Package tree expands environment files into the build dependency graph.
// The builder fetches and renders every declared feedstock per variant and
// wires local dependency edges, the resolver fills the remaining external
// nodes from package channels.
package tree

import (
	"context"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"

	"go.kiln.dev/kiln/internal/core/domain"
	"go.kiln.dev/kiln/internal/core/ports"
)

// Options tune tree construction. The zero value resolves feedstocks against
// the default git organization with the default parallelism.
type Options struct {
	// GitLocation is the base URL feedstock short names resolve against.
	GitLocation string
	// GitTag overrides every feedstock checkout ref when set.
	GitTag string
	// Channels are extra package channels, lower priority than the channels
	// the environment files declare.
	Channels []string
	// BuildConfigs are extra build configuration files passed to every render.
	BuildConfigs []string
	// Parallelism bounds concurrent variant construction.
	Parallelism int
}

// Builder constructs dependency trees from environment configurations.
type Builder struct {
	fetcher  ports.Fetcher
	renderer ports.RecipeRenderer
	logger   ports.Logger
	opts     Options

	mu        sync.Mutex
	checkouts map[string]*checkout
}

// checkout memoizes one feedstock fetch so patches apply exactly once no
// matter how many variants share the repository.
type checkout struct {
	once sync.Once
	dir  string
	err  error
}

// NewBuilder creates a Builder on top of the given fetcher and renderer.
func NewBuilder(fetcher ports.Fetcher, renderer ports.RecipeRenderer, logger ports.Logger, opts Options) *Builder {
	if opts.GitLocation == "" {
		opts.GitLocation = domain.DefaultGitLocation
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = domain.DefaultParallelism
	}
	return &Builder{
		fetcher:   fetcher,
		renderer:  renderer,
		logger:    logger,
		opts:      opts,
		checkouts: make(map[string]*checkout),
	}
}

// Tree is an expanded environment: the dependency graph plus the per variant
// entry points and the channel and external dependency lists that the
// generated environment files need.
type Tree struct {
	graph     *domain.Graph
	variants  []domain.Variant
	initial   map[domain.Variant][]*domain.DependencyNode
	channels  []string
	externals []string
}

// Graph returns the dependency graph.
func (t *Tree) Graph() *domain.Graph {
	return t.graph
}

// Variants returns the variants the tree was built for, in expansion order.
func (t *Tree) Variants() []domain.Variant {
	return t.variants
}

// InitialNodes returns the nodes created directly from package entries for
// one variant, in declaration order. Dependency only nodes are not included.
func (t *Tree) InitialNodes(variant domain.Variant) []*domain.DependencyNode {
	return t.initial[variant]
}

// Channels returns the environment and command line channels, highest
// priority first.
func (t *Tree) Channels() []string {
	return t.channels
}

// ExternalDependencies returns the external dependency specifiers declared by
// the environment files.
func (t *Tree) ExternalDependencies() []string {
	return t.externals
}

// InstallablePackages returns the installable specifier set for one variant.
func (t *Tree) InstallablePackages(variant domain.Variant) []string {
	nodes, ok := t.initial[variant]
	if !ok {
		return nil
	}
	return InstallablePackages(t.graph, nodes, t.externals)
}

// Build expands the environment into a dependency graph, one subtree per
// variant. Variants are constructed concurrently, nodes whose package sets
// intersect across variants merge onto whichever was added first. The
// returned tree is validated to be free of dependency cycles.
func (b *Builder) Build(ctx context.Context, env *domain.Environment, variants []domain.Variant) (*Tree, error) {
	tree := &Tree{
		graph:     domain.NewGraph(),
		variants:  slices.Clone(variants),
		initial:   make(map[domain.Variant][]*domain.DependencyNode, len(variants)),
		channels:  mergeChannels(env.Channels, b.opts.Channels),
		externals: slices.Clone(env.ExternalDependencies),
	}

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(b.opts.Parallelism)
	var mu sync.Mutex
	for _, variant := range variants {
		group.Go(func() error {
			nodes, err := b.buildVariant(ctx, tree.graph, env, variant)
			if err != nil {
				return zerr.With(err, "variant", variant.String())
			}
			mu.Lock()
			tree.initial[variant] = nodes
			mu.Unlock()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	if err := tree.graph.Validate(); err != nil {
		return nil, err
	}
	return tree, nil
}

// buildVariant renders every package entry for one variant and connects the
// dependency edges between the nodes it created.
func (b *Builder) buildVariant(ctx context.Context, graph *domain.Graph, env *domain.Environment, variant domain.Variant) ([]*domain.DependencyNode, error) {
	b.logger.Info("expanding environment for variant " + variant.String())

	var nodes []*domain.DependencyNode
	for _, entry := range env.Packages {
		rendered, repoDir, err := b.renderEntry(ctx, env, entry, variant)
		if err != nil {
			return nil, zerr.With(err, "feedstock", entry.Feedstock)
		}
		configs := mergeConfigs(env.CondaBuildConfigs, b.opts.BuildConfigs)
		for _, recipe := range rendered {
			if len(entry.Recipes) > 0 && !slices.Contains(entry.Recipes, recipe.Name) {
				continue
			}
			cmd := buildCommand(recipe, entry, variant, repoDir, configs)
			node := graph.AddNode(domain.NewDependencyNode(cmd))
			// AddNode canonicalizes duplicates, keep the entry point list unique.
			if !slices.Contains(nodes, node) {
				nodes = append(nodes, node)
			}
		}
	}
	b.connectLocal(graph, nodes)
	return nodes, nil
}

// renderEntry fetches the entry's feedstock and renders its recipes for the
// variant.
func (b *Builder) renderEntry(ctx context.Context, env *domain.Environment, entry domain.PackageEntry, variant domain.Variant) ([]domain.RenderedRecipe, string, error) {
	repoDir, err := b.fetchEntry(ctx, env, entry)
	if err != nil {
		return nil, "", err
	}
	recipePath := repoDir
	if entry.RecipePath != "" {
		recipePath = filepath.Join(repoDir, entry.RecipePath)
	}
	rendered, err := b.renderer.Render(ctx, recipePath, variant, mergeConfigs(env.CondaBuildConfigs, b.opts.BuildConfigs))
	if err != nil {
		return nil, "", err
	}
	return rendered, repoDir, nil
}

// fetchEntry resolves the entry to a repository checkout. The fetch and the
// patch sequence run once per repository and ref, concurrent variants block
// until the first caller finishes.
func (b *Builder) fetchEntry(ctx context.Context, env *domain.Environment, entry domain.PackageEntry) (string, error) {
	ref := b.checkoutRef(env, entry)
	if ref == "" && isRepositoryURL(entry.Feedstock) {
		return "", zerr.With(domain.ErrGitTagMissing, "feedstock", entry.Feedstock)
	}
	url := feedstockURL(entry.Feedstock, b.opts.GitLocation)

	key := url + "\x00" + ref
	b.mu.Lock()
	state, ok := b.checkouts[key]
	if !ok {
		state = &checkout{}
		b.checkouts[key] = state
	}
	b.mu.Unlock()

	state.once.Do(func() {
		state.dir, state.err = b.fetcher.Fetch(ctx, url, ref)
		if state.err != nil {
			return
		}
		for _, patch := range entry.Patches {
			if state.err = b.fetcher.ApplyPatch(ctx, state.dir, patch); state.err != nil {
				return
			}
		}
	})
	return state.dir, state.err
}

// checkoutRef picks the ref for a feedstock checkout. A command line tag
// overrides the package tag, which overrides the environment wide tag. Empty
// means the default branch.
func (b *Builder) checkoutRef(env *domain.Environment, entry domain.PackageEntry) string {
	if b.opts.GitTag != "" {
		return b.opts.GitTag
	}
	if entry.GitTag != "" {
		return entry.GitTag
	}
	return env.GitTagForEnv
}

// connectLocal wires an edge from each node to the local producer of every
// dependency it declares. Dependencies no node produces become external nodes
// for the remote resolver to fill in.
func (b *Builder) connectLocal(graph *domain.Graph, nodes []*domain.DependencyNode) {
	for _, node := range nodes {
		for _, dep := range node.Command().AllDependencies() {
			if producer, ok := graph.NodeForPackage(dep.Name); ok {
				// Recipes may list a sibling output of their own
				// feedstock, that is not a self dependency.
				if producer != node {
					graph.AddEdge(node, producer)
				}
				continue
			}
			external := graph.AddNode(domain.NewExternalNode(dep))
			graph.AddEdge(node, external)
		}
	}
}

// buildCommand maps one rendered recipe onto the build command for a variant.
func buildCommand(recipe domain.RenderedRecipe, entry domain.PackageEntry, variant domain.Variant, repoDir string, configs []string) *domain.BuildCommand {
	return &domain.BuildCommand{
		Recipe:            domain.NewInternedString(recipe.Name),
		Repository:        repoDir,
		Packages:          domain.NewInternedStrings(recipe.Packages),
		RecipePath:        entry.RecipePath,
		Variant:           variant,
		Channels:          mergeChannels(entry.Channels, recipe.Channels),
		BuildDependencies: domain.ParseMatchSpecs(recipe.BuildDependencies),
		HostDependencies:  domain.ParseMatchSpecs(recipe.HostDependencies),
		RunDependencies:   domain.ParseMatchSpecs(recipe.RunDependencies),
		TestDependencies:  domain.ParseMatchSpecs(recipe.TestDependencies),
		OutputFiles:       slices.Clone(recipe.OutputFiles),
		BuildConfigs:      configs,
		RuntimePackage:    entry.RuntimePackage,
	}
}

// feedstockURL resolves a feedstock short name against the git location.
// Entries that already are repository URLs pass through unchanged.
func feedstockURL(feedstock, location string) string {
	if isRepositoryURL(feedstock) {
		return feedstock
	}
	return strings.TrimSuffix(location, "/") + "/" + feedstock + "-feedstock.git"
}

func isRepositoryURL(feedstock string) bool {
	return strings.HasPrefix(feedstock, "http://") ||
		strings.HasPrefix(feedstock, "https://") ||
		strings.HasPrefix(feedstock, "git@")
}

// mergeChannels concatenates channel lists keeping the first occurrence of
// each channel, so earlier lists keep their priority.
func mergeChannels(lists ...[]string) []string {
	var merged []string
	seen := make(map[string]bool)
	for _, list := range lists {
		for _, channel := range list {
			if seen[channel] {
				continue
			}
			seen[channel] = true
			merged = append(merged, channel)
		}
	}
	return merged
}

func mergeConfigs(lists ...[]string) []string {
	return mergeChannels(lists...)
}
