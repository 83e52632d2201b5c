package envfile

import (
	"context"

	"github.com/grindlemire/graft"
	"go.kiln.dev/kiln/internal/adapters/logger"
	"go.kiln.dev/kiln/internal/core/ports"
)

// NodeID is the unique identifier for the environment file generator Graft node.
const NodeID graft.ID = "adapter.envfile_generator"

func init() {
	graft.Register(graft.Node[*Generator]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{logger.NodeID},
		Run: func(ctx context.Context) (*Generator, error) {
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			return NewGenerator(log), nil
		},
	})
}
