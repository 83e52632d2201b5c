package scheduler_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"testing/synctest"

	"github.com/stretchr/testify/require"
	"go.kiln.dev/kiln/internal/core/domain"
	"go.kiln.dev/kiln/internal/engine/scheduler"
	"go.uber.org/mock/gomock"
)

// writeArtifact creates a fake built package file under the output folder.
func writeArtifact(t *testing.T, outputFolder, name string) {
	t.Helper()
	path := filepath.Join(outputFolder, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte("artifact"), 0o644))
}

// TestScheduler_CycleFailsValidation verifies that a cyclic graph is rejected
// before anything executes.
func TestScheduler_CycleFailsValidation(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		g := domain.NewGraph()
		a := g.AddNode(commandNode("a"))
		b := g.AddNode(commandNode("b"))
		g.AddEdge(a, b)
		g.AddEdge(b, a)

		s, _ := setupSchedulerTest(t)

		ctx := context.Background()
		err := s.Run(ctx, g, nil, t.TempDir(), 1)
		require.Error(t, err)
		require.Contains(t, err.Error(), domain.ErrCycleDetected.Error())
	})
}

// TestScheduler_SkipsExistingOutputs verifies that a command whose artifacts
// are all present under the output folder is not rebuilt.
func TestScheduler_SkipsExistingOutputs(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		outputFolder := t.TempDir()

		g := domain.NewGraph()
		g.AddNode(commandNode("cached", "noarch/cached-1.0-py310_0.tar.bz2"))
		require.NoError(t, g.Validate())

		s, _ := setupSchedulerTest(t)
		writeArtifact(t, outputFolder, "noarch/cached-1.0-py310_0.tar.bz2")

		// No executor expectation: the build tool must not be invoked.
		ctx := context.Background()
		err := s.Run(ctx, g, nil, outputFolder, 1)
		require.NoError(t, err)

		statuses := s.StatusMap()
		require.Equal(t, scheduler.StatusCompleted, statuses["cached-py3-10-cpu-openmpi"])
	})
}

// TestScheduler_PartialOutputsRebuild verifies that a command with only some
// of its artifacts present is rebuilt.
func TestScheduler_PartialOutputsRebuild(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		outputFolder := t.TempDir()

		g := domain.NewGraph()
		node := g.AddNode(commandNode("partial",
			"noarch/partial-1.0-py310_0.tar.bz2",
			"noarch/partial-extras-1.0-py310_0.tar.bz2",
		))
		require.NoError(t, g.Validate())

		s, m := setupSchedulerTest(t)
		writeArtifact(t, outputFolder, "noarch/partial-1.0-py310_0.tar.bz2")

		m.executor.EXPECT().Stream(
			gomock.Any(),
			matchCommand(node.Name()),
			gomock.Any(),
			gomock.Any(),
		).Return(nil).Times(1)

		ctx := context.Background()
		err := s.Run(ctx, g, nil, outputFolder, 1)
		require.NoError(t, err)
	})
}

// TestScheduler_NoRecordedOutputsAlwaysBuilds verifies that a command without
// output file metadata cannot be skipped.
func TestScheduler_NoRecordedOutputsAlwaysBuilds(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		g := domain.NewGraph()
		node := g.AddNode(commandNode("opaque"))
		require.NoError(t, g.Validate())

		s, m := setupSchedulerTest(t)

		m.executor.EXPECT().Stream(
			gomock.Any(),
			matchCommand(node.Name()),
			gomock.Any(),
			gomock.Any(),
		).Return(nil).Times(1)

		ctx := context.Background()
		err := s.Run(ctx, g, nil, t.TempDir(), 1)
		require.NoError(t, err)
	})
}

// TestScheduler_SkippedCommandUnlocksDependents verifies that skipping a
// command still releases the commands depending on it.
func TestScheduler_SkippedCommandUnlocksDependents(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		outputFolder := t.TempDir()

		g := domain.NewGraph()
		base := g.AddNode(commandNode("base", "noarch/base-1.0-py310_0.tar.bz2"))
		app := g.AddNode(commandNode("app"))
		g.AddEdge(app, base)
		require.NoError(t, g.Validate())

		s, m := setupSchedulerTest(t)
		writeArtifact(t, outputFolder, "noarch/base-1.0-py310_0.tar.bz2")

		m.executor.EXPECT().Stream(
			gomock.Any(),
			matchCommand(app.Name()),
			gomock.Any(),
			gomock.Any(),
		).Return(nil).Times(1)

		ctx := context.Background()
		err := s.Run(ctx, g, nil, outputFolder, 2)
		require.NoError(t, err)
	})
}

// TestScheduler_FeedstockInvocation verifies the rendered build tool call.
func TestScheduler_FeedstockInvocation(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		outputFolder := t.TempDir()

		cmd := &domain.BuildCommand{
			Recipe:         domain.NewInternedString("tensorflow"),
			Repository:     "/repos/tensorflow-feedstock",
			Packages:       []domain.InternedString{domain.NewInternedString("tensorflow")},
			Variant:        domain.Variant{PythonVersion: "3.10", BuildType: "cuda", MPIType: "openmpi", CUDAVersion: "11.8"},
			Channels:       []string{"conda-forge"},
			RuntimePackage: true,
		}
		g := domain.NewGraph()
		node := g.AddNode(domain.NewDependencyNode(cmd))
		require.NoError(t, g.Validate())

		s, m := setupSchedulerTest(t)

		var invoked *domain.Command
		m.executor.EXPECT().Stream(
			gomock.Any(),
			gomock.Any(),
			gomock.Any(),
			gomock.Any(),
		).DoAndReturn(
			func(_ context.Context, c *domain.Command, _ []string, _ any) error {
				invoked = c
				return nil
			},
		).Times(1)

		ctx := context.Background()
		err := s.Run(ctx, g, nil, outputFolder, 1)
		require.NoError(t, err)

		require.NotNil(t, invoked)
		require.Equal(t, node.Name(), invoked.Label)
		require.Equal(t, "open-ce", invoked.Program)
		require.Equal(t, "build", invoked.Args[0])
		require.Equal(t, "feedstock", invoked.Args[1])
		require.Contains(t, invoked.Args, "--working_directory")
		require.Contains(t, invoked.Args, "/repos/tensorflow-feedstock")
		require.Contains(t, invoked.Args, "--channels")
		require.Contains(t, invoked.Args, "conda-forge")
		require.Contains(t, invoked.Args, "--cuda_versions")
		require.Contains(t, invoked.Args, "11.8")
		require.Equal(t, "--output_folder", invoked.Args[len(invoked.Args)-2])
		require.Equal(t, outputFolder, invoked.Args[len(invoked.Args)-1])
	})
}
