// Package wiring registers all Graft nodes for the application.
package wiring

import (
	// Register adapter nodes.
	_ "go.kiln.dev/kiln/internal/adapters/config"
	_ "go.kiln.dev/kiln/internal/adapters/envfile"
	_ "go.kiln.dev/kiln/internal/adapters/git"
	_ "go.kiln.dev/kiln/internal/adapters/index"
	_ "go.kiln.dev/kiln/internal/adapters/logger"
	_ "go.kiln.dev/kiln/internal/adapters/render"
	_ "go.kiln.dev/kiln/internal/adapters/shell"
	_ "go.kiln.dev/kiln/internal/adapters/watcher"
	// Register app and engine nodes.
	_ "go.kiln.dev/kiln/internal/app"
)
