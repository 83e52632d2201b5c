package scheduler_test

import (
	"context"
	"errors"
	"io"
	"maps"
	"slices"
	"testing"
	"testing/synctest"

	"github.com/stretchr/testify/require"
	"go.kiln.dev/kiln/internal/core/domain"
	"go.kiln.dev/kiln/internal/core/ports"
	"go.kiln.dev/kiln/internal/core/ports/mocks"
	"go.kiln.dev/kiln/internal/engine/scheduler"
	"go.uber.org/mock/gomock"
)

type schedulerMocks struct {
	executor *mocks.MockExecutor
	tracer   *mocks.MockTracer
	logger   *mocks.MockLogger
}

// setupSchedulerTest creates a scheduler and common mocks.
func setupSchedulerTest(t *testing.T) (*scheduler.Scheduler, schedulerMocks) {
	t.Helper()
	ctrl := gomock.NewController(t)
	m := schedulerMocks{
		executor: mocks.NewMockExecutor(ctrl),
		tracer:   mocks.NewMockTracer(ctrl),
		logger:   mocks.NewMockLogger(ctrl),
	}

	m.logger.EXPECT().Info(gomock.Any()).AnyTimes()

	// Default optimistic mocks to reduce noise in specific tests.
	mockSpan := mocks.NewMockSpan(ctrl)
	mockSpan.EXPECT().End().AnyTimes()
	mockSpan.EXPECT().RecordError(gomock.Any()).AnyTimes()
	mockSpan.EXPECT().SetAttribute(gomock.Any(), gomock.Any()).AnyTimes()
	mockSpan.EXPECT().Write(gomock.Any()).Return(0, nil).AnyTimes()

	// Start has variadic signature: Start(ctx, name, ...opts).
	m.tracer.EXPECT().Start(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, _ string, _ ...ports.SpanOption) (context.Context, ports.Span) {
			return ctx, mockSpan
		},
	).AnyTimes()
	m.tracer.EXPECT().EmitPlan(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).AnyTimes()

	s := scheduler.NewScheduler(m.executor, m.tracer, m.logger)
	return s, m
}

// commandNode creates a build node producing exactly one package named after
// its recipe.
func commandNode(recipe string, outputFiles ...string) *domain.DependencyNode {
	return domain.NewDependencyNode(&domain.BuildCommand{
		Recipe:         domain.NewInternedString(recipe),
		Repository:     "/repos/" + recipe,
		Packages:       []domain.InternedString{domain.NewInternedString(recipe)},
		Variant:        domain.Variant{PythonVersion: "3.10", BuildType: "cpu", MPIType: "openmpi"},
		OutputFiles:    outputFiles,
		RuntimePackage: true,
	})
}

// graphFromDeps constructs a graph from a simple map of dependencies.
// deps format: "command" -> ["dep1", "dep2"]. Nodes are inserted in sorted
// name order so traversal order is stable across runs.
func graphFromDeps(t *testing.T, deps map[string][]string) (*domain.Graph, map[string]*domain.DependencyNode) {
	t.Helper()
	g := domain.NewGraph()
	nodes := make(map[string]*domain.DependencyNode)

	ensure := func(name string) *domain.DependencyNode {
		if n, ok := nodes[name]; ok {
			return n
		}
		n := g.AddNode(commandNode(name))
		nodes[name] = n
		return n
	}

	for _, name := range slices.Sorted(maps.Keys(deps)) {
		ensure(name)
	}
	for _, name := range slices.Sorted(maps.Keys(deps)) {
		for _, dep := range deps[name] {
			g.AddEdge(nodes[name], ensure(dep))
		}
	}

	require.NoError(t, g.Validate())
	return g, nodes
}

// commandMatcher implements gomock.Matcher for domain.Command.
type commandMatcher struct {
	label string
}

func (m commandMatcher) Matches(x interface{}) bool {
	cmd, ok := x.(*domain.Command)
	if !ok {
		return false
	}
	return cmd.Label == m.label
}

func (m commandMatcher) String() string {
	return "command label is " + m.label
}

func matchCommand(label string) gomock.Matcher {
	return commandMatcher{label: label}
}

func TestScheduler_DiamondDependency(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		// Graph: A -> B, A -> C, B -> D, C -> D.
		// Execution order should be: D -> (B, C parallel) -> A.
		g, nodes := graphFromDeps(t, map[string][]string{
			"A": {"B", "C"},
			"B": {"D"},
			"C": {"D"},
		})
		s, m := setupSchedulerTest(t)

		// Check that D runs exactly once.
		dCall := m.executor.EXPECT().Stream(
			gomock.Any(),
			matchCommand(nodes["D"].Name()),
			gomock.Any(),
			gomock.Any(),
		).Return(nil).Times(1)

		// Check B and C run after D.
		bCall := m.executor.EXPECT().Stream(
			gomock.Any(),
			matchCommand(nodes["B"].Name()),
			gomock.Any(),
			gomock.Any(),
		).Return(nil).Times(1).After(dCall)

		cCall := m.executor.EXPECT().Stream(
			gomock.Any(),
			matchCommand(nodes["C"].Name()),
			gomock.Any(),
			gomock.Any(),
		).Return(nil).Times(1).After(dCall)

		// Check A runs after B and C.
		m.executor.EXPECT().Stream(
			gomock.Any(),
			matchCommand(nodes["A"].Name()),
			gomock.Any(),
			gomock.Any(),
		).Return(nil).Times(1).After(bCall).After(cCall)

		ctx := context.Background()
		err := s.Run(ctx, g, nil, t.TempDir(), 4)
		require.NoError(t, err)

		statuses := s.StatusMap()
		for _, node := range nodes {
			require.Equal(t, scheduler.StatusCompleted, statuses[node.Name()])
		}
	})
}

func TestScheduler_FailurePropagation(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		// Graph: A -> B. B fails. A should not run.
		g, nodes := graphFromDeps(t, map[string][]string{
			"A": {"B"},
		})
		s, m := setupSchedulerTest(t)

		failureErr := errors.New("conda build exited 1")
		m.executor.EXPECT().Stream(
			gomock.Any(),
			matchCommand(nodes["B"].Name()),
			gomock.Any(),
			gomock.Any(),
		).Return(failureErr).Times(1)

		// A should NOT run.
		m.executor.EXPECT().Stream(
			gomock.Any(),
			matchCommand(nodes["A"].Name()),
			gomock.Any(),
			gomock.Any(),
		).Times(0)

		ctx := context.Background()
		err := s.Run(ctx, g, nil, t.TempDir(), 4)
		require.Error(t, err)
		require.ErrorIs(t, err, failureErr)
		require.Contains(t, err.Error(), domain.ErrBuildExecutionFailed.Error())

		statuses := s.StatusMap()
		require.Equal(t, scheduler.StatusFailed, statuses[nodes["B"].Name()])
		require.Equal(t, scheduler.StatusPending, statuses[nodes["A"].Name()])
	})
}

func TestScheduler_Cancellation(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		// Graph: A (long running). Cancel context.
		g, nodes := graphFromDeps(t, map[string][]string{
			"A": {},
		})
		s, m := setupSchedulerTest(t)

		m.executor.EXPECT().Stream(
			gomock.Any(),
			matchCommand(nodes["A"].Name()),
			gomock.Any(),
			gomock.Any(),
		).DoAndReturn(
			func(ctx context.Context, _ *domain.Command, _ []string, _ io.Writer) error {
				<-ctx.Done()
				return ctx.Err()
			},
		).Times(1)

		ctx, cancel := context.WithCancel(context.Background())
		outputFolder := t.TempDir()

		errCh := make(chan error, 1)
		go func() {
			errCh <- s.Run(ctx, g, nil, outputFolder, 4)
		}()

		// Give it a moment to start.
		synctest.Wait()

		cancel()
		synctest.Wait()

		err := <-errCh
		require.Error(t, err)
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestScheduler_PackageFilter(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		// Graph: a -> b -> c, d standalone. Asking for package b builds c
		// then b, nothing else.
		g, nodes := graphFromDeps(t, map[string][]string{
			"a": {"b"},
			"b": {"c"},
			"d": {},
		})
		s, m := setupSchedulerTest(t)

		cCall := m.executor.EXPECT().Stream(
			gomock.Any(),
			matchCommand(nodes["c"].Name()),
			gomock.Any(),
			gomock.Any(),
		).Return(nil).Times(1)

		m.executor.EXPECT().Stream(
			gomock.Any(),
			matchCommand(nodes["b"].Name()),
			gomock.Any(),
			gomock.Any(),
		).Return(nil).Times(1).After(cCall)

		ctx := context.Background()
		err := s.Run(ctx, g, []string{"b"}, t.TempDir(), 4)
		require.NoError(t, err)
	})
}

func TestScheduler_PackageFilterUnknown(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		g, _ := graphFromDeps(t, map[string][]string{
			"a": {},
		})
		s, _ := setupSchedulerTest(t)

		ctx := context.Background()
		err := s.Run(ctx, g, []string{"no-such-package"}, t.TempDir(), 4)
		require.Error(t, err)
		require.Contains(t, err.Error(), domain.ErrNodeNotFound.Error())
	})
}

func TestScheduler_ExternalNodesNotScheduled(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		// A local command depending on a remote package must not wait for it.
		g := domain.NewGraph()
		local := g.AddNode(commandNode("app"))
		external := g.AddNode(domain.NewExternalNode(domain.ParseMatchSpec("cmake >=3.22")))
		g.AddEdge(local, external)
		require.NoError(t, g.Validate())

		s, m := setupSchedulerTest(t)

		m.executor.EXPECT().Stream(
			gomock.Any(),
			matchCommand(local.Name()),
			gomock.Any(),
			gomock.Any(),
		).Return(nil).Times(1)

		ctx := context.Background()
		err := s.Run(ctx, g, nil, t.TempDir(), 4)
		require.NoError(t, err)
	})
}

func TestScheduler_EmitsPlanInDependencyOrder(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		g, nodes := graphFromDeps(t, map[string][]string{
			"A": {"B"},
			"B": {"C"},
		})

		ctrl := gomock.NewController(t)
		executor := mocks.NewMockExecutor(ctrl)
		tracer := mocks.NewMockTracer(ctrl)
		logger := mocks.NewMockLogger(ctrl)
		logger.EXPECT().Info(gomock.Any()).AnyTimes()

		mockSpan := mocks.NewMockSpan(ctrl)
		mockSpan.EXPECT().End().AnyTimes()
		tracer.EXPECT().Start(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
			func(ctx context.Context, _ string, _ ...ports.SpanOption) (context.Context, ports.Span) {
				return ctx, mockSpan
			},
		).AnyTimes()

		var planned []string
		var planDeps map[string][]string
		tracer.EXPECT().EmitPlan(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Do(
			func(_ context.Context, commands []string, deps map[string][]string, _ []string) {
				planned = commands
				planDeps = deps
			},
		).Times(1)

		executor.EXPECT().Stream(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).Times(3)

		s := scheduler.NewScheduler(executor, tracer, logger)
		require.NoError(t, s.Run(context.Background(), g, nil, t.TempDir(), 2))

		a, b, c := nodes["A"].Name(), nodes["B"].Name(), nodes["C"].Name()
		require.Equal(t, []string{c, b, a}, planned)
		require.Equal(t, map[string][]string{a: {b}, b: {c}, c: {}}, planDeps)
	})
}

func TestScheduler_ZeroCommandGraph(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		g, _ := graphFromDeps(t, map[string][]string{})
		s, _ := setupSchedulerTest(t)

		ctx := context.Background()
		err := s.Run(ctx, g, nil, t.TempDir(), 1)
		require.NoError(t, err)
	})
}
