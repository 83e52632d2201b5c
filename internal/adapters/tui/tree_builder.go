package tui

const maxTreeDepth = 10

// rootCommands returns the planned commands that nothing else depends on,
// preserving plan order. These become the top-level rows of the tree.
func rootCommands(commands []string, dependencies map[string][]string) []string {
	dependedOn := make(map[string]bool)
	for _, deps := range dependencies {
		for _, dep := range deps {
			dependedOn[dep] = true
		}
	}

	roots := make([]string, 0, len(commands))
	for _, name := range commands {
		if !dependedOn[name] {
			roots = append(roots, name)
		}
	}
	return roots
}

// buildTree constructs a visual tree from the DAG dependency map.
// Since commands form a DAG, a command may appear multiple times in the
// tree if several other commands depend on it.
func buildTree(
	roots []string,
	dependencies map[string][]string,
	buildMap map[string]*BuildNode,
) []*BuildNode {
	nodes := make([]*BuildNode, 0, len(roots))

	for _, root := range roots {
		node := buildSubtree(root, dependencies, buildMap, 0)
		if node != nil {
			nodes = append(nodes, node)
		}
	}

	return nodes
}

func buildSubtree(
	name string,
	dependencies map[string][]string,
	buildMap map[string]*BuildNode,
	depth int,
) *BuildNode {
	// Guard against very deep trees
	if depth > maxTreeDepth {
		return nil
	}

	// Create a new node instance for each occurrence in the tree
	canonical := buildMap[name]
	if canonical == nil {
		return nil
	}

	// Clone for the tree position, but keep a reference to the canonical
	// node for live status and timing updates.
	node := &BuildNode{
		Name:          canonical.Name,
		Term:          canonical.Term,
		IsExpanded:    true,
		Depth:         depth,
		Children:      make([]*BuildNode, 0),
		CanonicalNode: canonical,
	}

	// Recursively build children from dependencies
	for _, dep := range dependencies[name] {
		child := buildSubtree(dep, dependencies, buildMap, depth+1)
		if child != nil {
			child.Parent = node
			node.Children = append(node.Children, child)
		}
	}

	return node
}

// flattenTree converts the tree into a linear list respecting expansion
// state. Only expanded nodes have their children included.
func flattenTree(roots []*BuildNode) []*BuildNode {
	flat := make([]*BuildNode, 0)

	var walk func(node *BuildNode)
	walk = func(node *BuildNode) {
		flat = append(flat, node)
		if node.IsExpanded {
			for _, child := range node.Children {
				walk(child)
			}
		}
	}

	for _, root := range roots {
		walk(root)
	}

	return flat
}
