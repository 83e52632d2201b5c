package render_test

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.kiln.dev/kiln/internal/adapters/render"
	"go.kiln.dev/kiln/internal/core/domain"
	"go.kiln.dev/kiln/internal/core/ports/mocks"
	"go.trai.ch/zerr"
	"go.uber.org/mock/gomock"
)

const numpyMeta = `package:
  name: numpy
  version: 1.21.6
requirements:
  build: ['cmake', 'gcc_linux-64 11.*']
  host: ['python 3.10.*']
  run: ['python >=3.10,<3.11.0a0', 'libopenblas']
test:
  requires: ['pytest']
extra:
  channels: ['https://ftp.osuosl.org/pub/open-ce/current']
`

func writeMeta(t *testing.T, dir string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, domain.DirPerm))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "meta.yaml"), []byte("package:\n  name: placeholder\n"), domain.FilePerm))
}

// renderingExecutor records every command and answers metadata or output
// queries from the byDir map, keyed by recipe directory.
func renderingExecutor(executor *mocks.MockExecutor, commands *[]*domain.Command, byDir map[string]string, outputs string) *gomock.Call {
	return executor.EXPECT().
		Execute(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, cmd *domain.Command, _ []string, stdout, _ io.Writer) error {
			if commands != nil {
				*commands = append(*commands, cmd)
			}
			if slices.Contains(cmd.Args, "--output") {
				fmt.Fprint(stdout, outputs)
				return nil
			}
			fmt.Fprint(stdout, byDir[cmd.Args[1]])
			return nil
		})
}

func TestRenderer_Render(t *testing.T) {
	ctrl := gomock.NewController(t)
	executor := mocks.NewMockExecutor(ctrl)

	root := t.TempDir()
	recipeDir := filepath.Join(root, "recipe")
	writeMeta(t, recipeDir)

	var commands []*domain.Command
	renderingExecutor(executor, &commands, map[string]string{recipeDir: numpyMeta},
		"/condabuild/numpy-1.21.6-py310_openmpi.tar.bz2\n").Times(2)

	renderer := render.NewRenderer(executor)

	variant := domain.Variant{PythonVersion: "3.10", BuildType: "cuda", MPIType: "openmpi", CUDAVersion: "11.8"}
	recipes, err := renderer.Render(context.Background(), root, variant, []string{"/cfg/conda_build_config.yaml"})
	require.NoError(t, err)

	require.Len(t, recipes, 1)
	assert.Equal(t, domain.RenderedRecipe{
		Name:              "numpy",
		Path:              recipeDir,
		Packages:          []string{"numpy"},
		BuildDependencies: []string{"cmake", "gcc_linux-64 11.*"},
		HostDependencies:  []string{"python 3.10.*"},
		RunDependencies:   []string{"python >=3.10,<3.11.0a0", "libopenblas"},
		TestDependencies:  []string{"pytest"},
		Channels:          []string{"https://ftp.osuosl.org/pub/open-ce/current"},
		OutputFiles:       []string{"/condabuild/numpy-1.21.6-py310_openmpi.tar.bz2"},
	}, recipes[0])

	require.Len(t, commands, 2)
	assert.Equal(t, "conda", commands[0].Program)
	assert.Equal(t, []string{
		"render", recipeDir,
		"--variants", "{'python': '3.10', 'build_type': 'cuda', 'mpi_type': 'openmpi', 'cudatoolkit': '11.8'}",
		"-m", "/cfg/conda_build_config.yaml",
	}, commands[0].Args)
	assert.Equal(t, "--output", commands[1].Args[len(commands[1].Args)-1])
}

func TestRenderer_Render_CPUVariantOmitsAccelerator(t *testing.T) {
	ctrl := gomock.NewController(t)
	executor := mocks.NewMockExecutor(ctrl)

	root := t.TempDir()
	writeMeta(t, root)

	var commands []*domain.Command
	renderingExecutor(executor, &commands, map[string]string{root: numpyMeta}, "").Times(2)

	renderer := render.NewRenderer(executor)

	variant := domain.Variant{PythonVersion: "3.11", BuildType: "cpu", MPIType: "system"}
	_, err := renderer.Render(context.Background(), root, variant, nil)
	require.NoError(t, err)

	require.NotEmpty(t, commands)
	assert.Contains(t, commands[0].Args, "{'python': '3.11', 'build_type': 'cpu', 'mpi_type': 'system'}")
}

func TestRenderer_Render_MultiOutputPackages(t *testing.T) {
	ctrl := gomock.NewController(t)
	executor := mocks.NewMockExecutor(ctrl)

	root := t.TempDir()
	writeMeta(t, root)

	meta := `package:
  name: tensorflow-base
  version: 2.13.0
outputs:
  - name: tensorflow-base
  - name: libtensorflow
requirements:
  run: ['python >=3.10,<3.11.0a0']
`
	renderingExecutor(executor, nil, map[string]string{root: meta}, "").Times(2)

	renderer := render.NewRenderer(executor)

	recipes, err := renderer.Render(context.Background(), root, domain.Variant{PythonVersion: "3.10", BuildType: "cpu", MPIType: "openmpi"}, nil)
	require.NoError(t, err)

	require.Len(t, recipes, 1)
	assert.Equal(t, []string{"tensorflow-base", "libtensorflow"}, recipes[0].Packages)
}

func TestRenderer_Render_MultiRecipeFeedstock(t *testing.T) {
	ctrl := gomock.NewController(t)
	executor := mocks.NewMockExecutor(ctrl)

	root := t.TempDir()
	bazelDir := filepath.Join(root, "recipes", "bazel")
	toolchainDir := filepath.Join(root, "recipes", "bazel-toolchain")
	writeMeta(t, bazelDir)
	writeMeta(t, toolchainDir)

	byDir := map[string]string{
		bazelDir:     "package:\n  name: bazel\n  version: '5.1.1'\n",
		toolchainDir: "package:\n  name: bazel-toolchain\n  version: '0.1.5'\n",
	}
	renderingExecutor(executor, nil, byDir, "").Times(4)

	renderer := render.NewRenderer(executor)

	recipes, err := renderer.Render(context.Background(), root, domain.Variant{PythonVersion: "3.10", BuildType: "cpu", MPIType: "openmpi"}, nil)
	require.NoError(t, err)

	require.Len(t, recipes, 2)
	assert.Equal(t, "bazel", recipes[0].Name)
	assert.Equal(t, bazelDir, recipes[0].Path)
	assert.Equal(t, "bazel-toolchain", recipes[1].Name)
	assert.Equal(t, toolchainDir, recipes[1].Path)
}

func TestRenderer_Render_Errors(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, executor *mocks.MockExecutor) string
	}{
		{
			name: "Renderer Command Fails",
			setup: func(t *testing.T, executor *mocks.MockExecutor) string {
				root := t.TempDir()
				writeMeta(t, root)
				executor.EXPECT().
					Execute(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
					Return(zerr.New("exit status 1"))
				return root
			},
		},
		{
			name: "Invalid Metadata",
			setup: func(t *testing.T, executor *mocks.MockExecutor) string {
				root := t.TempDir()
				writeMeta(t, root)
				renderingExecutor(executor, nil, map[string]string{root: "\t- broken"}, "")
				return root
			},
		},
		{
			name: "Empty Metadata",
			setup: func(t *testing.T, executor *mocks.MockExecutor) string {
				root := t.TempDir()
				writeMeta(t, root)
				renderingExecutor(executor, nil, map[string]string{root: ""}, "")
				return root
			},
		},
		{
			name: "No Recipes Found",
			setup: func(t *testing.T, _ *mocks.MockExecutor) string {
				return t.TempDir()
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			executor := mocks.NewMockExecutor(ctrl)
			root := tt.setup(t, executor)

			renderer := render.NewRenderer(executor)

			_, err := renderer.Render(context.Background(), root, domain.Variant{PythonVersion: "3.10", BuildType: "cpu", MPIType: "openmpi"}, nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), domain.ErrRenderFailed.Error())
		})
	}
}
