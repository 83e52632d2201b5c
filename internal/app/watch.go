package app

import (
	"context"
	"fmt"
	"maps"
	"path/filepath"
	"slices"

	"go.kiln.dev/kiln/internal/adapters/watcher"
)

// watchQueueDepth bounds debounced batches waiting for a slow re-validation.
const watchQueueDepth = 16

// watchEnvironments re-validates the environments whenever one of their
// files changes, until the context is canceled. Validation errors are logged
// and the loop keeps running so the user can edit their way out of a broken
// state.
func (a *App) watchEnvironments(ctx context.Context, paths []string, opts ValidateOptions) error {
	discovered, err := a.configLoader.DiscoverConfigPaths(paths)
	if err != nil {
		return err
	}

	if err := a.fsWatcher.Start(ctx, watchRoots(discovered)); err != nil {
		return err
	}
	defer func() {
		_ = a.fsWatcher.Stop()
	}()

	// Prime the content cache so touches without edits stay quiet.
	a.changes.Filter(slices.Sorted(maps.Keys(discovered)))

	batches := make(chan []string, watchQueueDepth)
	debouncer := watcher.NewDebouncer(watcher.DefaultDebounceWindow, func(changed []string) {
		select {
		case batches <- changed:
		case <-ctx.Done():
		}
	})

	go func() {
		for event := range a.fsWatcher.Events() {
			debouncer.Add(event.Path)
		}
	}()

	a.logger.Info(fmt.Sprintf("watching %d environment file(s) for changes", len(discovered)))

	for {
		select {
		case <-ctx.Done():
			return nil
		case batch := <-batches:
			changed := a.changes.Filter(relevantPaths(batch, discovered))
			if len(changed) == 0 {
				continue
			}

			a.logger.Info(fmt.Sprintf("%d environment file(s) changed, revalidating", len(changed)))
			if err := a.validateEnvironments(ctx, paths, opts); err != nil {
				a.logger.Error(err)
			}

			// Imports may have come or gone, refresh the tracked set.
			if updated, err := a.configLoader.DiscoverConfigPaths(paths); err == nil {
				discovered = updated
			}
		}
	}
}

// relevantPaths filters a debounced batch down to files that can affect
// validation: tracked environment files, plus any YAML since an edit may
// introduce a new import.
func relevantPaths(batch []string, discovered map[string]int64) []string {
	relevant := make([]string, 0, len(batch))
	for _, path := range batch {
		if _, tracked := discovered[path]; tracked || isYAMLFile(path) {
			relevant = append(relevant, path)
		}
	}
	return relevant
}

func isYAMLFile(path string) bool {
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// watchRoots returns the sorted set of directories holding discovered
// environment files.
func watchRoots(discovered map[string]int64) []string {
	dirs := make(map[string]struct{}, len(discovered))
	for path := range discovered {
		dirs[filepath.Dir(path)] = struct{}{}
	}
	return slices.Sorted(maps.Keys(dirs))
}
