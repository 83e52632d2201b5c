package render

import (
	"context"

	"github.com/grindlemire/graft"
	"go.kiln.dev/kiln/internal/adapters/shell"
	"go.kiln.dev/kiln/internal/core/ports"
)

// NodeID is the unique identifier for the recipe renderer Graft node.
const NodeID graft.ID = "adapter.recipe_renderer"

func init() {
	graft.Register(graft.Node[ports.RecipeRenderer]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{shell.NodeID},
		Run: func(ctx context.Context) (ports.RecipeRenderer, error) {
			executor, err := graft.Dep[ports.Executor](ctx)
			if err != nil {
				return nil, err
			}
			return NewRenderer(executor), nil
		},
	})
}
