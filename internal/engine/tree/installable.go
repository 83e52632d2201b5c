package tree

import (
	"fmt"
	"slices"
	"strings"

	"go.kiln.dev/kiln/internal/core/domain"
)

// InstallablePackages returns the sorted, deduplicated installable specifier
// list for the part of the graph reachable from the starting nodes. A nil
// starting set means the graph roots.
//
// Locally built nodes contribute the specifiers of their output files and
// their generalized run dependencies, external nodes contribute their
// generalized requesting specifier. Nodes built with runtime_package false
// are excluded together with everything reachable only through them. The
// external dependencies passed by the caller are always included.
func InstallablePackages(graph *domain.Graph, starting []*domain.DependencyNode, externalDeps []string) []string {
	if starting == nil {
		starting = graph.Roots()
	}

	set := newSpecSet()
	visited := make(map[*domain.DependencyNode]bool)
	frontier := make([]*domain.DependencyNode, 0, len(starting))
	for _, node := range starting {
		if visited[node] {
			continue
		}
		visited[node] = true
		frontier = append(frontier, node)
	}
	for len(frontier) > 0 {
		var next []*domain.DependencyNode
		for _, node := range frontier {
			cmd := node.Command()
			switch {
			case cmd == nil:
				set.add(domain.ParseMatchSpec(node.Spec().Generalize()))
			case !cmd.RuntimePackage:
				continue
			default:
				for _, file := range cmd.OutputFiles {
					set.add(domain.ParseMatchSpec(domain.GeneralizeSpec(domain.DistFileToSpec(file))))
				}
				for _, dep := range cmd.RunDependencies {
					set.add(domain.ParseMatchSpec(dep.Generalize()))
				}
			}
			for _, succ := range graph.Successors(node) {
				if visited[succ] {
					continue
				}
				visited[succ] = true
				next = append(next, succ)
			}
		}
		frontier = next
	}

	for _, dep := range externalDeps {
		set.add(domain.ParseMatchSpec(domain.GeneralizeSpec(dep)))
	}
	return set.sorted()
}

// specSet merges specifiers by package name. A specifier carrying an explicit
// operator beats a bare version pin, which beats a name only entry. Between
// equally precise specifiers the first one seen stays.
type specSet struct {
	entries map[domain.InternedString]domain.MatchSpec
}

func newSpecSet() *specSet {
	return &specSet{entries: make(map[domain.InternedString]domain.MatchSpec)}
}

func (s *specSet) add(spec domain.MatchSpec) {
	name := spec.Name.String()
	if name == "" || domain.IsVirtualPackage(name) {
		return
	}
	current, ok := s.entries[spec.Name]
	if !ok || specRank(spec) > specRank(current) {
		s.entries[spec.Name] = spec
	}
}

func (s *specSet) sorted() []string {
	result := make([]string, 0, len(s.entries))
	for _, spec := range s.entries {
		result = append(result, spec.Raw)
	}
	slices.Sort(result)
	return result
}

// specRank orders specifier precision for merging.
func specRank(s domain.MatchSpec) int {
	switch {
	case s.HasOperator():
		return 2
	case s.HasVersion():
		return 1
	default:
		return 0
	}
}

// DependencyReport lists every node in dependency order, each with the quoted
// names of the nodes it depends on, one line per node.
func DependencyReport(graph *domain.Graph) string {
	var sb strings.Builder
	for node := range graph.Walk() {
		line := node.Name()
		if succs := graph.Successors(node); len(succs) > 0 {
			names := make([]string, len(succs))
			for i, succ := range succs {
				names[i] = "'" + succ.Name() + "'"
			}
			line += " : " + strings.Join(names, ", ")
		}
		fmt.Fprintln(&sb, line)
	}
	return sb.String()
}
