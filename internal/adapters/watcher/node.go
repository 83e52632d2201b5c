package watcher

import (
	"context"
	"time"

	"github.com/grindlemire/graft"
	"go.kiln.dev/kiln/internal/core/ports"
)

const (
	// WatcherNodeID is the unique identifier for the file watcher Graft node.
	WatcherNodeID graft.ID = "adapter.watcher"
	// HashCacheNodeID is the unique identifier for the content hash cache Graft node.
	HashCacheNodeID graft.ID = "adapter.hash_cache"
)

func init() {
	graft.Register(graft.Node[ports.Watcher]{
		ID:        WatcherNodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.Watcher, error) {
			return NewWatcher()
		},
	})

	graft.Register(graft.Node[*HashCache]{
		ID:        HashCacheNodeID,
		Cacheable: true,
		Run: func(_ context.Context) (*HashCache, error) {
			return NewHashCache(), nil
		},
	})
}

// DefaultDebounceWindow is how long the watch loop lets the file system
// settle before it re-validates. Editors often write several files per save.
const DefaultDebounceWindow = 200 * time.Millisecond
