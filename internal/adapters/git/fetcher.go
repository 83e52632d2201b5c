// Package git implements the Fetcher port using the git command line tool.
package git

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"go.kiln.dev/kiln/internal/core/domain"
	"go.kiln.dev/kiln/internal/core/ports"
	"go.trai.ch/zerr"
)

// Fetcher implements ports.Fetcher by shelling out to git, keeping one
// checkout directory per repository and ref.
type Fetcher struct {
	executor ports.Executor
	logger   ports.Logger
	root     string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewFetcher creates a Fetcher with checkouts rooted at the default repos
// directory.
func NewFetcher(executor ports.Executor, logger ports.Logger) (*Fetcher, error) {
	return NewFetcherWithRoot(executor, logger, domain.DefaultReposPath())
}

// NewFetcherWithRoot creates a Fetcher with a custom checkout root (used for
// testing).
func NewFetcherWithRoot(executor ports.Executor, logger ports.Logger, root string) (*Fetcher, error) {
	cleanRoot := filepath.Clean(root)
	if err := os.MkdirAll(cleanRoot, domain.DirPerm); err != nil {
		return nil, zerr.Wrap(err, domain.ErrFetchFailed.Error())
	}

	return &Fetcher{
		executor: executor,
		logger:   logger,
		root:     cleanRoot,
		locks:    make(map[string]*sync.Mutex),
	}, nil
}

// Fetch clones the repository at url and checks out ref, returning the
// checkout directory. An existing checkout for the same url and ref is
// reused without touching the working tree.
func (f *Fetcher) Fetch(ctx context.Context, url, ref string) (string, error) {
	dir := filepath.Join(f.root, checkoutName(url, ref))

	unlock := f.lockDir(dir)
	defer unlock()

	if _, err := os.Stat(dir); err == nil {
		return dir, nil
	}

	f.logger.Info(fmt.Sprintf("cloning %s into %s", url, dir))

	var output bytes.Buffer
	clone := &domain.Command{
		Label:   "git clone " + url,
		Program: "git",
		Args:    []string{"clone", url, dir},
	}
	if err := f.executor.Execute(ctx, clone, nil, &output, &output); err != nil {
		_ = os.RemoveAll(dir)
		cloneErr := zerr.Wrap(err, domain.ErrFetchFailed.Error())
		cloneErr = zerr.With(cloneErr, "url", url)
		return "", zerr.With(cloneErr, "output", output.String())
	}

	if ref != "" {
		output.Reset()
		checkout := &domain.Command{
			Label:   "git checkout " + ref,
			Program: "git",
			Args:    []string{"checkout", ref},
			Dir:     dir,
		}
		if err := f.executor.Execute(ctx, checkout, nil, &output, &output); err != nil {
			// A failed checkout must not be reused as a finished fetch.
			_ = os.RemoveAll(dir)
			checkoutErr := zerr.Wrap(err, domain.ErrFetchFailed.Error())
			checkoutErr = zerr.With(checkoutErr, "url", url)
			checkoutErr = zerr.With(checkoutErr, "ref", ref)
			return "", zerr.With(checkoutErr, "output", output.String())
		}
	}

	return dir, nil
}

// ApplyPatch applies a patch file to a previously fetched checkout.
func (f *Fetcher) ApplyPatch(ctx context.Context, repoDir, patchFile string) error {
	unlock := f.lockDir(repoDir)
	defer unlock()

	var output bytes.Buffer
	apply := &domain.Command{
		Label:   "git apply " + filepath.Base(patchFile),
		Program: "git",
		Args:    []string{"apply", "--whitespace=nowarn", patchFile},
		Dir:     repoDir,
	}
	if err := f.executor.Execute(ctx, apply, nil, &output, &output); err != nil {
		patchErr := zerr.Wrap(err, domain.ErrPatchFailed.Error())
		patchErr = zerr.With(patchErr, "patch", patchFile)
		patchErr = zerr.With(patchErr, "repo", repoDir)
		return zerr.With(patchErr, "output", output.String())
	}

	return nil
}

// lockDir serializes work on one checkout directory. Distinct repositories
// fetch in parallel, the same working tree never does.
func (f *Fetcher) lockDir(dir string) func() {
	f.mu.Lock()
	lock, ok := f.locks[dir]
	if !ok {
		lock = &sync.Mutex{}
		f.locks[dir] = lock
	}
	f.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// checkoutName derives a stable directory name for a url and ref pair. The
// repository base name keeps checkouts readable, the hash keeps same-named
// repositories from different locations apart.
func checkoutName(url, ref string) string {
	name := strings.TrimSuffix(path.Base(url), ".git")
	if ref != "" {
		name += "-" + sanitizeRef(ref)
	}
	return fmt.Sprintf("%s-%08x", name, xxhash.Sum64String(url)&0xffffffff)
}

// sanitizeRef maps ref characters that are unsafe in a directory name to
// dashes. Branch names may contain path separators.
func sanitizeRef(ref string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '_', r == '-':
			return r
		default:
			return '-'
		}
	}, ref)
}
