package commands

import (
	"strings"

	"github.com/spf13/cobra"
	"go.kiln.dev/kiln/internal/app"
	"go.kiln.dev/kiln/internal/core/domain"
)

// addTreeFlags registers the flags shared by every command that constructs a
// dependency tree.
func addTreeFlags(cmd *cobra.Command) {
	cmd.Flags().StringSlice("python-versions", strings.Split(domain.DefaultPythonVersions, ","), "Python versions to build for")
	cmd.Flags().StringSlice("build-types", strings.Split(domain.DefaultBuildTypes, ","), "Build flavors to expand (cpu, cuda)")
	cmd.Flags().StringSlice("mpi-types", strings.Split(domain.DefaultMPITypes, ","), "MPI implementations to build for")
	cmd.Flags().StringSlice("cuda-versions", strings.Split(domain.DefaultCUDAVersions, ","), "CUDA versions for cuda build types")
	cmd.Flags().StringSlice("channels", nil, "Additional package channels, highest priority first")
	cmd.Flags().StringSlice("conda-build-configs", nil, "Additional conda build configuration files")
	cmd.Flags().String("git-location", domain.DefaultGitLocation, "Base URL feedstock short names resolve against")
	cmd.Flags().String("git-tag", "", "Checkout ref overriding every feedstock tag")
	cmd.Flags().IntP("parallelism", "j", domain.DefaultParallelism, "Concurrent fetch, render and build limit")
}

// treeOptions collects the shared tree flags of a command.
func treeOptions(cmd *cobra.Command) app.TreeOptions {
	pythonVersions, _ := cmd.Flags().GetStringSlice("python-versions")
	buildTypes, _ := cmd.Flags().GetStringSlice("build-types")
	mpiTypes, _ := cmd.Flags().GetStringSlice("mpi-types")
	cudaVersions, _ := cmd.Flags().GetStringSlice("cuda-versions")
	channels, _ := cmd.Flags().GetStringSlice("channels")
	buildConfigs, _ := cmd.Flags().GetStringSlice("conda-build-configs")
	gitLocation, _ := cmd.Flags().GetString("git-location")
	gitTag, _ := cmd.Flags().GetString("git-tag")
	parallelism, _ := cmd.Flags().GetInt("parallelism")

	return app.TreeOptions{
		PythonVersions: pythonVersions,
		BuildTypes:     buildTypes,
		MPITypes:       mpiTypes,
		CUDAVersions:   cudaVersions,
		Channels:       channels,
		BuildConfigs:   buildConfigs,
		GitLocation:    gitLocation,
		GitTag:         gitTag,
		Parallelism:    parallelism,
	}
}
