// Package scheduler runs the build commands of a dependency graph, starting
// each one only after everything it depends on has been built.
package scheduler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"go.kiln.dev/kiln/internal/core/domain"
	"go.kiln.dev/kiln/internal/core/ports"
	"go.trai.ch/zerr"
)

// CommandStatus represents the status of a build command.
type CommandStatus string

const (
	// StatusPending indicates the command is waiting to be executed.
	StatusPending CommandStatus = "Pending"
	// StatusRunning indicates the command is currently executing.
	StatusRunning CommandStatus = "Running"
	// StatusCompleted indicates the command has finished successfully.
	StatusCompleted CommandStatus = "Completed"
	// StatusFailed indicates the command execution failed.
	StatusFailed CommandStatus = "Failed"
)

// feedstockProgram is the build tool invoked for each feedstock. It consumes
// the argument form rendered by BuildCommand.FeedstockArgs.
const feedstockProgram = "open-ce"

// Scheduler manages the execution of build commands in the dependency graph.
type Scheduler struct {
	executor ports.Executor
	tracer   ports.Tracer
	logger   ports.Logger

	mu     sync.RWMutex
	status map[string]CommandStatus
}

// NewScheduler creates a new Scheduler with the given dependencies.
func NewScheduler(executor ports.Executor, tracer ports.Tracer, logger ports.Logger) *Scheduler {
	return &Scheduler{
		executor: executor,
		tracer:   tracer,
		logger:   logger,
		status:   make(map[string]CommandStatus),
	}
}

// initStatuses initializes the status of commands in the run to Pending.
func (s *Scheduler) initStatuses(nodes []*domain.DependencyNode) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, node := range nodes {
		s.status[node.Name()] = StatusPending
	}
}

// updateStatus updates the status of a command.
func (s *Scheduler) updateStatus(name string, status CommandStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status[name] = status
}

// Run executes the build commands of the graph with the specified parallelism.
// If packages is empty, every build command in the graph is executed.
// Otherwise only the commands producing the named packages, plus everything
// they depend on, are executed. External nodes are never scheduled; they gate
// nothing.
//
// A command whose output files all exist under outputFolder already is
// skipped, so an interrupted run picks up where it left off.
func (s *Scheduler) Run(
	ctx context.Context,
	graph *domain.Graph,
	packages []string,
	outputFolder string,
	parallelism int,
) error {
	if err := graph.Validate(); err != nil {
		return err
	}
	if outputFolder == "" {
		outputFolder = domain.DefaultOutputFolder
	}
	if parallelism <= 0 {
		parallelism = domain.DefaultParallelism
	}

	state, err := s.newRunState(ctx, graph, packages, outputFolder, parallelism)
	if err != nil {
		return err
	}

	// Emit the build plan in dependency order, filtered to this run.
	planned := make([]string, 0, len(state.all))
	depMap := make(map[string][]string, len(state.all))
	for node := range graph.Walk() {
		if !state.commands[node] {
			continue
		}
		planned = append(planned, node.Name())
		deps := make([]string, 0, len(graph.Successors(node)))
		for _, dep := range graph.Successors(node) {
			if state.commands[dep] {
				deps = append(deps, dep.Name())
			}
		}
		depMap[node.Name()] = deps
	}
	s.tracer.EmitPlan(ctx, planned, depMap, packages)

	s.initStatuses(state.all)

	return state.runExecutionLoop()
}

type result struct {
	node *domain.DependencyNode
	err  error
}

type runState struct {
	graph        *domain.Graph
	inDegree     map[*domain.DependencyNode]int
	commands     map[*domain.DependencyNode]bool
	all          []*domain.DependencyNode
	ready        []*domain.DependencyNode
	active       int
	resultsCh    chan result
	errs         error
	ctx          context.Context
	outputFolder string
	parallelism  int
	s            *Scheduler
}

func (s *Scheduler) newRunState(
	ctx context.Context,
	graph *domain.Graph,
	packages []string,
	outputFolder string,
	parallelism int,
) (*runState, error) {
	commands, all, err := s.resolveCommandsToRun(graph, packages)
	if err != nil {
		return nil, err
	}

	// In-degree counts only dependencies that are part of this run, so
	// external nodes and filtered-out commands never block anything.
	inDegree := make(map[*domain.DependencyNode]int, len(all))
	for _, node := range all {
		degree := 0
		for _, dep := range graph.Successors(node) {
			if commands[dep] {
				degree++
			}
		}
		inDegree[node] = degree
	}

	var ready []*domain.DependencyNode
	for _, node := range all {
		if inDegree[node] == 0 {
			ready = append(ready, node)
		}
	}

	return &runState{
		graph:        graph,
		inDegree:     inDegree,
		commands:     commands,
		all:          all,
		ready:        ready,
		resultsCh:    make(chan result, parallelism),
		ctx:          ctx,
		outputFolder: outputFolder,
		parallelism:  parallelism,
		s:            s,
	}, nil
}

func (state *runState) runExecutionLoop() error {
	for !state.isDone() {
		state.schedule()

		if state.isDone() {
			break
		}

		if state.ctx.Err() != nil && state.active == 0 {
			return errors.Join(state.errs, state.ctx.Err())
		}

		select {
		case res := <-state.resultsCh:
			state.handleResult(res)
		case <-state.ctx.Done():
		}
	}

	if state.ctx.Err() != nil {
		state.errs = errors.Join(state.errs, state.ctx.Err())
	}

	return state.errs
}

func (s *Scheduler) resolveCommandsToRun(
	graph *domain.Graph,
	packages []string,
) (map[*domain.DependencyNode]bool, []*domain.DependencyNode, error) {
	if len(packages) == 0 {
		return s.resolveAllCommands(graph)
	}
	return s.resolvePackageCommands(graph, packages)
}

func (s *Scheduler) resolveAllCommands(
	graph *domain.Graph,
) (map[*domain.DependencyNode]bool, []*domain.DependencyNode, error) {
	commands := make(map[*domain.DependencyNode]bool)
	all := make([]*domain.DependencyNode, 0, graph.Len())
	for node := range graph.Walk() {
		if node.IsExternal() {
			continue
		}
		commands[node] = true
		all = append(all, node)
	}
	return commands, all, nil
}

func (s *Scheduler) resolvePackageCommands(
	graph *domain.Graph,
	packages []string,
) (map[*domain.DependencyNode]bool, []*domain.DependencyNode, error) {
	targets := make([]*domain.DependencyNode, 0, len(packages))
	for _, pkg := range packages {
		node, ok := graph.NodeForPackage(domain.NewInternedString(pkg))
		if !ok || node.IsExternal() {
			return nil, nil, zerr.With(domain.ErrNodeNotFound, "package", pkg)
		}
		targets = append(targets, node)
	}

	return s.collectDependencies(graph, targets)
}

// collectDependencies walks from the target commands to everything they
// transitively depend on, skipping external nodes.
func (s *Scheduler) collectDependencies(
	graph *domain.Graph,
	targets []*domain.DependencyNode,
) (map[*domain.DependencyNode]bool, []*domain.DependencyNode, error) {
	commands := make(map[*domain.DependencyNode]bool)
	var all []*domain.DependencyNode

	queue := make([]*domain.DependencyNode, len(targets))
	copy(queue, targets)

	visited := make(map[*domain.DependencyNode]bool)
	for _, t := range targets {
		visited[t] = true
	}

	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]

		if !commands[node] {
			commands[node] = true
			all = append(all, node)
		}

		for _, dep := range graph.Successors(node) {
			if visited[dep] || dep.IsExternal() {
				continue
			}
			visited[dep] = true
			queue = append(queue, dep)
		}
	}

	return commands, all, nil
}

func (state *runState) isDone() bool {
	return state.active == 0 && len(state.ready) == 0
}

func (state *runState) schedule() {
	for len(state.ready) > 0 && state.active < state.parallelism && state.ctx.Err() == nil {
		node := state.ready[0]
		state.ready = state.ready[1:]

		state.active++
		state.s.updateStatus(node.Name(), StatusRunning)

		go state.executeCommand(node)
	}
}

func (state *runState) executeCommand(node *domain.DependencyNode) {
	// Execute the command logic within a function to ensure the span is ended
	// BEFORE we send the result to the channel. This prevents race conditions
	// in tests where the scheduler loop finishes before the span is recorded.
	res := func() result {
		cmd := node.Command()

		ctx, span := state.s.tracer.Start(state.ctx, cmd.Name())
		defer span.End()

		if allOutputsExist(state.outputFolder, cmd.OutputFiles) {
			span.SetAttribute("kiln.skipped", true)
			state.s.logger.Info("skipping " + cmd.Name() + " because all outputs already exist")
			return result{node: node}
		}

		state.s.logger.Info("building " + cmd.Name())

		err := state.s.executor.Stream(ctx, buildInvocation(cmd, state.outputFolder), nil, span)
		if err != nil {
			span.RecordError(err)
		}

		return result{node: node, err: err}
	}()

	state.resultsCh <- res
}

// allOutputsExist reports whether every artifact a command produces is
// already present under the output folder. Commands without recorded output
// files are always built, absence of evidence is not evidence of a build.
func allOutputsExist(outputFolder string, files []string) bool {
	if len(files) == 0 {
		return false
	}
	for _, file := range files {
		if _, err := os.Stat(filepath.Join(outputFolder, file)); err != nil {
			return false
		}
	}
	return true
}

// buildInvocation renders the feedstock build tool call for one command.
// The output folder is passed through so packages built earlier in the run
// are picked up as a local channel by later builds.
func buildInvocation(cmd *domain.BuildCommand, outputFolder string) *domain.Command {
	args := append([]string{"build", "feedstock"}, cmd.FeedstockArgs()...)
	args = append(args, "--output_folder", outputFolder)
	return &domain.Command{
		Label:   cmd.Name(),
		Program: feedstockProgram,
		Args:    args,
	}
}

func (state *runState) handleResult(res result) {
	state.active--

	if res.err != nil {
		enhancedErr := zerr.With(zerr.Wrap(res.err, domain.ErrBuildExecutionFailed.Error()), "recipe", res.node.Name())
		state.errs = errors.Join(state.errs, enhancedErr)
		state.s.updateStatus(res.node.Name(), StatusFailed)
	} else {
		state.handleSuccess(res)
	}
}

func (state *runState) handleSuccess(res result) {
	state.s.updateStatus(res.node.Name(), StatusCompleted)

	for _, dependent := range state.graph.Predecessors(res.node) {
		// Only consider dependents that are part of the current run.
		if _, ok := state.inDegree[dependent]; !ok {
			continue
		}
		state.inDegree[dependent]--
		if state.inDegree[dependent] == 0 {
			state.ready = append(state.ready, dependent)
		}
	}
}
