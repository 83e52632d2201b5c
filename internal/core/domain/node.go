package domain

// DependencyNode is one vertex of the build graph: a set of package names and,
// for locally built units, the BuildCommand producing them. Nodes for packages
// supplied by remote channels carry no command, only the specifier that first
// requested them.
//
// Two nodes are considered the same build unit when their package sets
// intersect. The graph enforces this, keeping whichever node was added first,
// so a node's lifetime is the lifetime of its graph.
type DependencyNode struct {
	packages []InternedString
	command  *BuildCommand
	spec     MatchSpec
}

// NewDependencyNode creates a node owning the given build command.
// The command's produced packages become the node's package set.
func NewDependencyNode(cmd *BuildCommand) *DependencyNode {
	return &DependencyNode{
		packages: cmd.Packages,
		command:  cmd,
	}
}

// NewExternalNode creates a node for a package that no local recipe produces.
// The node is responsible for the specifier's package name only.
func NewExternalNode(spec MatchSpec) *DependencyNode {
	return &DependencyNode{
		packages: []InternedString{spec.Name},
		spec:     spec,
	}
}

// Packages returns the package names this node is responsible for.
func (n *DependencyNode) Packages() []InternedString {
	return n.packages
}

// Command returns the owned build command, or nil for external nodes.
func (n *DependencyNode) Command() *BuildCommand {
	return n.command
}

// Spec returns the specifier that introduced an external node.
// It is the zero MatchSpec for locally built nodes.
func (n *DependencyNode) Spec() MatchSpec {
	return n.spec
}

// IsExternal reports whether the node represents a remotely supplied package.
func (n *DependencyNode) IsExternal() bool {
	return n.command == nil
}

// Name returns a display name: the build command name for local nodes, the
// requesting specifier for external ones.
func (n *DependencyNode) Name() string {
	if n.command != nil {
		return n.command.Name()
	}
	return n.spec.Raw
}
