package watcher

import (
	"os"
	"sync"
	"unique"

	"github.com/cespare/xxhash/v2"
)

// HashCache remembers the content hash of every file the watcher has
// reported. Write events that leave contents untouched (mtime-only touches,
// editor atomic saves) can then be dropped before they trigger a full
// re-validation pass.
type HashCache struct {
	mu     sync.Mutex
	hashes map[unique.Handle[string]]uint64
}

// NewHashCache creates an empty content hash cache.
func NewHashCache() *HashCache {
	return &HashCache{
		hashes: make(map[unique.Handle[string]]uint64),
	}
}

// Changed reports whether the content at path differs from the last recorded
// hash and updates the record. A path seen for the first time counts as
// changed. An unreadable path (removed, or a directory) is forgotten and
// counts as changed only if it had been hashed before, so stray events on
// files we never tracked stay quiet.
func (h *HashCache) Changed(path string) bool {
	handle := unique.Make(path)

	data, err := os.ReadFile(path)
	if err != nil {
		h.mu.Lock()
		defer h.mu.Unlock()
		_, known := h.hashes[handle]
		delete(h.hashes, handle)
		return known
	}

	sum := xxhash.Sum64(data)

	h.mu.Lock()
	defer h.mu.Unlock()
	prev, known := h.hashes[handle]
	h.hashes[handle] = sum
	return !known || prev != sum
}

// Filter returns the subset of paths whose content actually changed since the
// last call, in input order. It is meant to run on a debounced batch right
// before deciding whether to re-validate.
func (h *HashCache) Filter(paths []string) []string {
	changed := make([]string, 0, len(paths))
	for _, path := range paths {
		if h.Changed(path) {
			changed = append(changed, path)
		}
	}
	return changed
}
