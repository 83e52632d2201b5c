package index

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.kiln.dev/kiln/internal/core/domain"
	"go.trai.ch/zerr"
)

// DiskCache implements ports.IndexCache with one JSON file per query.
type DiskCache struct {
	dir string
}

// NewDiskCache creates a query cache rooted at the given directory, creating
// it if needed.
func NewDiskCache(path string) (*DiskCache, error) {
	cleanPath := filepath.Clean(path)
	if err := os.MkdirAll(cleanPath, domain.DirPerm); err != nil {
		return nil, zerr.Wrap(err, domain.ErrIndexCacheCreateFailed.Error())
	}
	return &DiskCache{dir: cleanPath}, nil
}

// Get retrieves the cached records for a channel and spec.
func (c *DiskCache) Get(channel, spec string) ([]domain.PackageRecord, bool, error) {
	//nolint:gosec // Path is constructed from trusted directory and hashed filename
	data, err := os.ReadFile(c.entryPath(channel, spec))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, zerr.Wrap(err, domain.ErrIndexCacheReadFailed.Error())
	}

	var entry cacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false, zerr.Wrap(err, domain.ErrIndexCacheReadFailed.Error())
	}
	if entry.Records == nil {
		entry.Records = []domain.PackageRecord{}
	}

	return entry.Records, true, nil
}

// Put stores the records for a channel and spec.
func (c *DiskCache) Put(channel, spec string, records []domain.PackageRecord) error {
	entry := cacheEntry{
		Channel:   channel,
		Spec:      spec,
		Records:   records,
		Timestamp: time.Now(),
	}

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return zerr.Wrap(err, domain.ErrIndexCacheWriteFailed.Error())
	}

	if err := c.atomicWriteFile(c.entryPath(channel, spec), data); err != nil {
		return zerr.Wrap(err, domain.ErrIndexCacheWriteFailed.Error())
	}

	return nil
}

// entryPath derives the cache file for a query. Channel URLs contain path
// separators, so the file name is a hash of the pair rather than the pair
// itself.
func (c *DiskCache) entryPath(channel, spec string) string {
	hasher := xxhash.New()
	_, _ = hasher.WriteString(channel)
	_, _ = hasher.Write([]byte{0})
	_, _ = hasher.WriteString(spec)
	return filepath.Join(c.dir, fmt.Sprintf("%016x.json", hasher.Sum64()))
}

// atomicWriteFile writes data to a file atomically by writing to a temp file
// and renaming it.
func (c *DiskCache) atomicWriteFile(path string, data []byte) error {
	tmpFile, err := os.CreateTemp(c.dir, "index-cache-*.json")
	if err != nil {
		return err
	}
	tmpName := tmpFile.Name()

	// Clean up temp file on error
	defer func() {
		if _, statErr := os.Stat(tmpName); statErr == nil {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		return err
	}

	if err := tmpFile.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, domain.FilePerm); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}
