package tree

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"

	"go.kiln.dev/kiln/internal/core/domain"
	"go.kiln.dev/kiln/internal/core/ports"
	"go.kiln.dev/kiln/internal/semver"
)

// resolverCacheSize bounds the memoized channel query results.
const resolverCacheSize = 1024

// defaultsChannel is always queried last so every lookup has a fallback.
const defaultsChannel = "defaults"

// Resolver expands the external nodes of a dependency graph by querying
// package channels. Channel order decides the winner: the first channel with
// any candidate supplies the package, even when a later channel carries a
// newer version.
type Resolver struct {
	index       ports.PackageIndex
	logger      ports.Logger
	parallelism int
	cache       *lru.Cache[string, []domain.PackageRecord]
}

// NewResolver creates a Resolver backed by the given package index. Query
// results are memoized across Resolve calls, so watch mode rebuilds reuse
// them.
func NewResolver(index ports.PackageIndex, logger ports.Logger) *Resolver {
	cache, _ := lru.New[string, []domain.PackageRecord](resolverCacheSize)
	return &Resolver{
		index:       index,
		logger:      logger,
		parallelism: domain.DefaultParallelism,
		cache:       cache,
	}
}

// Resolve walks every external node of the graph and pulls in its transitive
// dependency closure. A node's query channels are the channels of its
// ancestors, nearest first, followed by the given tree channels and the
// defaults channel. The winning channel of a package is propagated to its own
// dependencies as their highest priority ancestor channel. Recursion stops at
// packages already present in the graph.
func (r *Resolver) Resolve(ctx context.Context, graph *domain.Graph, channels []string) error {
	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(r.parallelism)
	state := &resolution{
		resolver: r,
		graph:    graph,
		group:    group,
		ctx:      ctx,
		visited:  make(map[*domain.DependencyNode]bool),
	}
	base := mergeChannels(channels, []string{defaultsChannel})

	var inlineErr error
	for _, node := range graph.Nodes() {
		if !node.IsExternal() {
			continue
		}
		if inlineErr = state.spawn(node, mergeChannels(ancestorChannels(graph, node), base)); inlineErr != nil {
			break
		}
	}
	if err := group.Wait(); err != nil {
		return err
	}
	return inlineErr
}

// resolution is the per Resolve call state shared between workers.
type resolution struct {
	resolver *Resolver
	graph    *domain.Graph
	group    *errgroup.Group
	ctx      context.Context

	mu      sync.Mutex
	visited map[*domain.DependencyNode]bool
}

// spawn schedules one node resolution, deduplicating nodes that several
// parents request concurrently. When the worker pool is full the resolution
// runs inline, recursive spawns must not block on the pool they run in.
func (s *resolution) spawn(node *domain.DependencyNode, channels []string) error {
	s.mu.Lock()
	if s.visited[node] {
		s.mu.Unlock()
		return nil
	}
	s.visited[node] = true
	s.mu.Unlock()

	work := func() error { return s.resolve(node, channels) }
	if s.group.TryGo(work) {
		return nil
	}
	return work()
}

// resolve finds the record for one external node and attaches its
// dependencies to the graph.
func (s *resolution) resolve(node *domain.DependencyNode, channels []string) error {
	if err := s.ctx.Err(); err != nil {
		return err
	}
	spec := node.Spec()
	if domain.IsVirtualPackage(spec.Name.String()) {
		return nil
	}
	record, channel, err := s.lookup(spec, channels)
	if err != nil {
		return err
	}
	s.resolver.logger.Info("resolved " + spec.Name.String() + " " + record.Version + " from " + channel)

	for _, dep := range domain.ParseMatchSpecs(record.Dependencies) {
		child, known := s.attach(node, dep)
		if known {
			continue
		}
		if err := s.spawn(child, prependChannel(channel, channels)); err != nil {
			return err
		}
	}
	return nil
}

// attach records that parent depends on the given package, creating an
// external node when the package is not in the graph yet. It reports whether
// the package was already known.
func (s *resolution) attach(parent *domain.DependencyNode, dep domain.MatchSpec) (*domain.DependencyNode, bool) {
	if existing, ok := s.graph.NodeForPackage(dep.Name); ok {
		if existing != parent {
			s.graph.AddEdge(parent, existing)
		}
		return existing, true
	}
	node := s.graph.AddNode(domain.NewExternalNode(dep))
	s.graph.AddEdge(parent, node)
	// AddNode canonicalizes, a concurrent creator may have won the race.
	// The visited set in spawn keeps the node from resolving twice.
	return node, false
}

// lookup queries each channel in priority order and returns the best
// candidate of the first channel that has any.
func (s *resolution) lookup(spec domain.MatchSpec, channels []string) (domain.PackageRecord, string, error) {
	query := spec.Generalize()
	for _, channel := range channels {
		records, err := s.search(channel, query)
		if err != nil {
			return domain.PackageRecord{}, "", err
		}
		if len(records) == 0 {
			continue
		}
		return slices.MaxFunc(records, compareCandidates), channel, nil
	}
	err := zerr.With(domain.ErrUnresolvedDependency, "package", spec.Raw)
	return domain.PackageRecord{}, "", zerr.With(err, "channels", strings.Join(channels, ", "))
}

// search memoizes index queries per channel and spec.
func (s *resolution) search(channel, query string) ([]domain.PackageRecord, error) {
	key := channel + "\x00" + query
	if records, ok := s.resolver.cache.Get(key); ok {
		return records, nil
	}
	records, err := s.resolver.index.Search(s.ctx, channel, query)
	if err != nil {
		return nil, err
	}
	s.resolver.cache.Add(key, records)
	return records, nil
}

// compareCandidates orders candidates by version, then build number, then
// upload timestamp.
func compareCandidates(a, b domain.PackageRecord) int {
	if c := semver.Compare(a.Version, b.Version); c != 0 {
		return c
	}
	if c := cmp.Compare(a.BuildNumber, b.BuildNumber); c != 0 {
		return c
	}
	return cmp.Compare(a.Timestamp, b.Timestamp)
}

// ancestorChannels collects the channels declared by the node's ancestors,
// breadth first so nearer ancestors keep priority.
func ancestorChannels(graph *domain.Graph, node *domain.DependencyNode) []string {
	var channels []string
	seen := make(map[string]bool)
	visited := map[*domain.DependencyNode]bool{node: true}
	frontier := []*domain.DependencyNode{node}
	for len(frontier) > 0 {
		var next []*domain.DependencyNode
		for _, current := range frontier {
			if cmd := current.Command(); cmd != nil {
				for _, channel := range cmd.Channels {
					if seen[channel] {
						continue
					}
					seen[channel] = true
					channels = append(channels, channel)
				}
			}
			for _, pred := range graph.Predecessors(current) {
				if visited[pred] {
					continue
				}
				visited[pred] = true
				next = append(next, pred)
			}
		}
		frontier = next
	}
	return channels
}

// prependChannel puts a winning channel at the front of a query list.
func prependChannel(channel string, channels []string) []string {
	return mergeChannels([]string{channel}, channels)
}
