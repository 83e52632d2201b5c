package app

import (
	"context"

	"github.com/grindlemire/graft"
	"go.kiln.dev/kiln/internal/adapters/config"  //nolint:depguard // Wired in app layer
	"go.kiln.dev/kiln/internal/adapters/envfile" //nolint:depguard // Wired in app layer
	"go.kiln.dev/kiln/internal/adapters/git"     //nolint:depguard // Wired in app layer
	"go.kiln.dev/kiln/internal/adapters/index"   //nolint:depguard // Wired in app layer
	"go.kiln.dev/kiln/internal/adapters/logger"  //nolint:depguard // Wired in app layer
	"go.kiln.dev/kiln/internal/adapters/render"  //nolint:depguard // Wired in app layer
	"go.kiln.dev/kiln/internal/adapters/shell"   //nolint:depguard // Wired in app layer
	"go.kiln.dev/kiln/internal/adapters/watcher" //nolint:depguard // Wired in app layer
	"go.kiln.dev/kiln/internal/core/ports"
)

const (
	// AppNodeID is the unique identifier for the main App Graft node.
	AppNodeID graft.ID = "app.main"
	// ComponentsNodeID is the unique identifier for the App components Graft node.
	ComponentsNodeID graft.ID = "app.components"
)

// Components contains the initialized application components the CLI layer
// needs.
type Components struct {
	App    *App
	Logger ports.Logger
}

func init() {
	// App Node
	graft.Register(graft.Node[*App]{
		ID:        AppNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			config.NodeID,
			git.NodeID,
			render.NodeID,
			index.NodeID,
			shell.NodeID,
			logger.NodeID,
			envfile.NodeID,
			watcher.WatcherNodeID,
			watcher.HashCacheNodeID,
		},
		Run: runAppNode,
	})

	// Components Node
	graft.Register(graft.Node[*Components]{
		ID:        ComponentsNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			AppNodeID,
			logger.NodeID,
		},
		Run: func(ctx context.Context) (*Components, error) {
			application, err := graft.Dep[*App](ctx)
			if err != nil {
				return nil, err
			}

			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}

			return &Components{
				App:    application,
				Logger: log,
			}, nil
		},
	})
}

func runAppNode(ctx context.Context) (*App, error) {
	loader, err := graft.Dep[ports.ConfigLoader](ctx)
	if err != nil {
		return nil, err
	}

	fetcher, err := graft.Dep[ports.Fetcher](ctx)
	if err != nil {
		return nil, err
	}

	recipes, err := graft.Dep[ports.RecipeRenderer](ctx)
	if err != nil {
		return nil, err
	}

	pkgIndex, err := graft.Dep[ports.PackageIndex](ctx)
	if err != nil {
		return nil, err
	}

	executor, err := graft.Dep[ports.Executor](ctx)
	if err != nil {
		return nil, err
	}

	log, err := graft.Dep[ports.Logger](ctx)
	if err != nil {
		return nil, err
	}

	envWriter, err := graft.Dep[*envfile.Generator](ctx)
	if err != nil {
		return nil, err
	}

	fsWatcher, err := graft.Dep[ports.Watcher](ctx)
	if err != nil {
		return nil, err
	}

	changes, err := graft.Dep[*watcher.HashCache](ctx)
	if err != nil {
		return nil, err
	}

	return New(loader, fetcher, recipes, pkgIndex, executor, log, envWriter, fsWatcher, changes), nil
}
