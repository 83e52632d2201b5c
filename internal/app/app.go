// Package app implements the application layer for kiln.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"go.kiln.dev/kiln/internal/adapters/detector"
	"go.kiln.dev/kiln/internal/adapters/envfile"
	"go.kiln.dev/kiln/internal/adapters/linear"
	"go.kiln.dev/kiln/internal/adapters/telemetry"
	"go.kiln.dev/kiln/internal/adapters/tui"
	"go.kiln.dev/kiln/internal/adapters/watcher"
	"go.kiln.dev/kiln/internal/core/domain"
	"go.kiln.dev/kiln/internal/core/ports"
	"go.kiln.dev/kiln/internal/engine/scheduler"
	"go.kiln.dev/kiln/internal/engine/tree"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

// App represents the main application logic.
type App struct {
	configLoader ports.ConfigLoader
	fetcher      ports.Fetcher
	recipes      ports.RecipeRenderer
	executor     ports.Executor
	logger       ports.Logger
	envWriter    *envfile.Generator
	fsWatcher    ports.Watcher
	changes      *watcher.HashCache
	resolver     *tree.Resolver
	teaOptions   []tea.ProgramOption
	disableTick  bool
}

// New creates a new App instance. The remote resolver is shared across
// operations so its channel query cache survives watch mode re-validations.
func New(
	loader ports.ConfigLoader,
	fetcher ports.Fetcher,
	recipes ports.RecipeRenderer,
	index ports.PackageIndex,
	executor ports.Executor,
	log ports.Logger,
	envWriter *envfile.Generator,
	fsWatcher ports.Watcher,
	changes *watcher.HashCache,
) *App {
	return &App{
		configLoader: loader,
		fetcher:      fetcher,
		recipes:      recipes,
		executor:     executor,
		logger:       log,
		envWriter:    envWriter,
		fsWatcher:    fsWatcher,
		changes:      changes,
		resolver:     tree.NewResolver(index, log),
	}
}

// WithTeaOptions adds bubbletea program options to the App.
// This is primarily used for testing to disable input/output.
func (a *App) WithTeaOptions(opts ...tea.ProgramOption) *App {
	a.teaOptions = append(a.teaOptions, opts...)
	return a
}

// WithDisableTick disables the TUI tick loop.
// This is primarily used for testing with synctest to avoid goroutine deadlocks.
func (a *App) WithDisableTick() *App {
	a.disableTick = true
	return a
}

// TreeOptions select the variants and feedstock sources a dependency tree is
// built from. Every command that constructs a tree shares them.
type TreeOptions struct {
	PythonVersions []string
	BuildTypes     []string
	MPITypes       []string
	CUDAVersions   []string
	Channels       []string
	BuildConfigs   []string
	GitLocation    string
	GitTag         string
	Parallelism    int
}

// BuildOptions configuration for the Build method.
type BuildOptions struct {
	TreeOptions
	// Packages restricts the build to the named packages and their
	// dependencies. Empty builds everything.
	Packages     []string
	OutputFolder string
	SkipBuild    bool
	OutputMode   string
}

// ValidateOptions configuration for the Validate method.
type ValidateOptions struct {
	TreeOptions
	Watch bool
}

// ExportOptions configuration for the Export method.
type ExportOptions struct {
	TreeOptions
	OutputFolder string
}

// CleanOptions configuration for the Clean method.
type CleanOptions struct {
	Output       bool
	Caches       bool
	OutputFolder string
}

// buildTree runs the construction pipeline shared by every command: load the
// environment files, expand the variant axes, render and connect the tree,
// then resolve its remote dependencies.
func (a *App) buildTree(ctx context.Context, paths []string, opts TreeOptions) (*tree.Tree, error) {
	env, err := a.configLoader.Load(paths)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to load environment files")
	}

	variants, err := domain.ExpandVariants(opts.PythonVersions, opts.BuildTypes, opts.MPITypes, opts.CUDAVersions)
	if err != nil {
		return nil, err
	}

	builder := tree.NewBuilder(a.fetcher, a.recipes, a.logger, tree.Options{
		GitLocation:  opts.GitLocation,
		GitTag:       opts.GitTag,
		Channels:     opts.Channels,
		BuildConfigs: opts.BuildConfigs,
		Parallelism:  opts.Parallelism,
	})
	t, err := builder.Build(ctx, env, variants)
	if err != nil {
		return nil, err
	}

	if err := a.resolver.Resolve(ctx, t.Graph(), t.Channels()); err != nil {
		return nil, err
	}
	return t, nil
}

// Build constructs the dependency tree, writes the per variant environment
// files and runs the build commands in dependency order.
func (a *App) Build(ctx context.Context, paths []string, opts BuildOptions) error {
	t, err := a.buildTree(ctx, paths, opts.TreeOptions)
	if err != nil {
		return err
	}

	outputFolder := opts.OutputFolder
	if outputFolder == "" {
		outputFolder = domain.DefaultOutputFolder
	}

	if err := a.writeEnvironmentFiles(t, outputFolder); err != nil {
		return err
	}

	if opts.SkipBuild {
		a.logger.Info("tree validated and environment files written, skipping build execution")
		return nil
	}

	return a.runBuilds(ctx, t.Graph(), opts.Packages, outputFolder, opts.Parallelism, opts.OutputMode)
}

// Validate constructs and resolves the tree without building anything. With
// Watch set it keeps re-validating whenever an environment file changes.
func (a *App) Validate(ctx context.Context, paths []string, opts ValidateOptions) error {
	err := a.validateEnvironments(ctx, paths, opts)
	if !opts.Watch {
		return err
	}
	if err != nil {
		// Watch mode keeps running through a broken state so the user can
		// edit their way out of it.
		a.logger.Error(err)
	}
	return a.watchEnvironments(ctx, paths, opts)
}

// validateEnvironments builds and resolves the tree once and reports what it
// found.
func (a *App) validateEnvironments(ctx context.Context, paths []string, opts ValidateOptions) error {
	t, err := a.buildTree(ctx, paths, opts.TreeOptions)
	if err != nil {
		return err
	}

	commands := 0
	for _, node := range t.Graph().Nodes() {
		if !node.IsExternal() {
			commands++
		}
	}
	a.logger.Info(fmt.Sprintf(
		"environment valid: %d variant(s), %d node(s), %d build command(s)",
		len(t.Variants()), t.Graph().Len(), commands,
	))
	return nil
}

// Export writes the per variant conda environment files without building.
func (a *App) Export(ctx context.Context, paths []string, opts ExportOptions) error {
	t, err := a.buildTree(ctx, paths, opts.TreeOptions)
	if err != nil {
		return err
	}

	outputFolder := opts.OutputFolder
	if outputFolder == "" {
		outputFolder = domain.DefaultOutputFolder
	}
	return a.writeEnvironmentFiles(t, outputFolder)
}

// Graph writes the dependency report for the configured environments.
func (a *App) Graph(ctx context.Context, paths []string, opts TreeOptions, out io.Writer) error {
	t, err := a.buildTree(ctx, paths, opts)
	if err != nil {
		return err
	}
	_, err = io.WriteString(out, tree.DependencyReport(t.Graph()))
	return err
}

// Clean removes build output and cached state based on the provided options.
func (a *App) Clean(_ context.Context, options CleanOptions) error {
	var errs error

	// Helper to remove a directory and log the action
	remove := func(path string, name string) {
		a.logger.Info(fmt.Sprintf("removing %s...", name))
		if err := os.RemoveAll(path); err != nil {
			errs = errors.Join(errs, zerr.Wrap(err, fmt.Sprintf("failed to remove %s", name)))
			return
		}
		a.logger.Info(fmt.Sprintf("removed %s", name))
	}

	if options.Output {
		folder := options.OutputFolder
		if folder == "" {
			folder = domain.DefaultOutputFolder
		}
		remove(folder, "build output folder")
	}

	if options.Caches {
		remove(domain.DefaultReposPath(), "feedstock checkouts")
		remove(domain.DefaultIndexCachePath(), "package index cache")
	}

	return errs
}

// writeEnvironmentFiles writes one conda environment file per variant into
// the output folder.
func (a *App) writeEnvironmentFiles(t *tree.Tree, outputFolder string) error {
	for _, variant := range t.Variants() {
		if _, err := a.envWriter.WriteFile(outputFolder, variant, t.Channels(), t.InstallablePackages(variant)); err != nil {
			return err
		}
	}
	return nil
}

// runBuilds executes the build commands of the graph behind a renderer.
func (a *App) runBuilds(
	ctx context.Context,
	graph *domain.Graph,
	packages []string,
	outputFolder string,
	parallelism int,
	outputMode string,
) error {
	// Detect environment and resolve output mode.
	autoMode := detector.DetectEnvironment()
	mode := detector.ResolveMode(autoMode, outputMode)

	var renderer ports.Renderer
	if mode == detector.ModeTUI {
		model := tui.NewModel(os.Stderr)
		if a.disableTick {
			model = model.WithDisableTick()
		}
		optsTea := append([]tea.ProgramOption{tea.WithContext(ctx)}, a.teaOptions...)
		renderer = tui.NewRenderer(&model, optsTea...)
	} else {
		renderer = linear.NewRenderer(os.Stdout, os.Stderr)
	}

	// Create a bridge that sends OTel spans to the renderer and configure the
	// global OTel SDK to use it.
	bridge := telemetry.NewBridge(renderer)
	setupOTel(bridge)

	// The tracer streams command output directly to the renderer.
	tracer := telemetry.NewOTelTracer("kiln").WithRenderer(renderer)
	defer func() {
		_ = tracer.Shutdown(ctx)
	}()

	sched := scheduler.NewScheduler(a.executor, tracer, a.logger)

	g, ctx := errgroup.WithContext(ctx)

	// Renderer routine.
	g.Go(func() error {
		if err := renderer.Start(ctx); err != nil {
			return err
		}
		// Wait blocks until the renderer has terminated.
		return renderer.Wait()
	})

	// Scheduler routine.
	g.Go(func() error {
		defer func() {
			// Handle panic recovery for the scheduler goroutine.
			if r := recover(); r != nil {
				fmt.Fprintf(os.Stderr, "Scheduler panic: %v\n", r)
			}
			// Ensure the renderer stops when the scheduler finishes.
			_ = renderer.Stop()
		}()

		if err := sched.Run(ctx, graph, packages, outputFolder, parallelism); err != nil {
			return errors.Join(domain.ErrBuildExecutionFailed, err)
		}
		return nil
	})

	return g.Wait()
}

// setupOTel configures the OpenTelemetry SDK with the renderer bridge.
func setupOTel(bridge *telemetry.Bridge) {
	// Register a TracerProvider with the bridge as a SpanProcessor so every
	// started span is reported to the renderer.
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(bridge),
	)
	otel.SetTracerProvider(tp)
}
