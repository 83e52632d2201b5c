package index

import (
	"context"

	"github.com/grindlemire/graft"
	"go.kiln.dev/kiln/internal/core/ports"
)

// NodeID is the unique identifier for the package index Graft node.
const NodeID graft.ID = "adapter.package_index"

func init() {
	graft.Register(graft.Node[ports.PackageIndex]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.PackageIndex, error) {
			return NewIndex()
		},
	})
}
