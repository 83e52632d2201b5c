package git

import (
	"context"

	"github.com/grindlemire/graft"
	"go.kiln.dev/kiln/internal/adapters/logger"
	"go.kiln.dev/kiln/internal/adapters/shell"
	"go.kiln.dev/kiln/internal/core/ports"
)

// NodeID is the unique identifier for the repository fetcher Graft node.
const NodeID graft.ID = "adapter.git_fetcher"

func init() {
	graft.Register(graft.Node[ports.Fetcher]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{shell.NodeID, logger.NodeID},
		Run: func(ctx context.Context) (ports.Fetcher, error) {
			executor, err := graft.Dep[ports.Executor](ctx)
			if err != nil {
				return nil, err
			}
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			return NewFetcher(executor, log)
		},
	})
}
