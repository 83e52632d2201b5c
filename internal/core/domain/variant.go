package domain

import (
	"strings"

	"go.trai.ch/zerr"
)

const (
	// BuildTypeCPU is the build flavor without accelerator support.
	BuildTypeCPU = "cpu"

	// BuildTypeCUDA is the build flavor targeting CUDA accelerators.
	BuildTypeCUDA = "cuda"
)

// Default axis values used when a command does not override them.
const (
	DefaultPythonVersions = "3.10"
	DefaultBuildTypes     = "cpu,cuda"
	DefaultMPITypes       = "openmpi"
	DefaultCUDAVersions   = "11.8"
)

// Variant is one point in the cross-product of build axes.
// CUDAVersion is empty for build types that do not require an accelerator.
// Variants are values and are never mutated after expansion.
type Variant struct {
	PythonVersion string
	BuildType     string
	MPIType       string
	CUDAVersion   string
}

// String returns the canonical variant string, e.g. "py3.10-cuda-openmpi-11.8".
// Empty axis fields are skipped, so a zero variant renders as "".
func (v Variant) String() string {
	var segments []string
	if v.PythonVersion != "" {
		segments = append(segments, "py"+v.PythonVersion)
	}
	if v.BuildType != "" {
		segments = append(segments, v.BuildType)
	}
	if v.MPIType != "" {
		segments = append(segments, v.MPIType)
	}
	if v.CUDAVersion != "" {
		segments = append(segments, v.CUDAVersion)
	}
	return strings.Join(segments, "-")
}

// FileSafe returns the variant string with dots replaced by dashes,
// suitable for file names and build unit names.
func (v Variant) FileSafe() string {
	return strings.ReplaceAll(v.String(), ".", "-")
}

// IsZero reports whether all axis fields are empty.
func (v Variant) IsZero() bool {
	return v == Variant{}
}

// RequiresAccelerator reports whether a build type needs the accelerator axis.
func RequiresAccelerator(buildType string) bool {
	return buildType == BuildTypeCUDA
}

// ExpandVariants produces the ordered cross-product of the given axes.
// Build types are expanded in the outer loop so each flavor's variants stay
// contiguous. The accelerator axis is folded in only for build types that
// require it.
func ExpandVariants(pythonVersions, buildTypes, mpiTypes, cudaVersions []string) ([]Variant, error) {
	if len(pythonVersions) == 0 {
		return nil, zerr.With(ErrInvalidAxis, "axis", "python_versions")
	}
	if len(buildTypes) == 0 {
		return nil, zerr.With(ErrInvalidAxis, "axis", "build_types")
	}
	if len(mpiTypes) == 0 {
		return nil, zerr.With(ErrInvalidAxis, "axis", "mpi_types")
	}

	var variants []Variant
	for _, buildType := range buildTypes {
		if RequiresAccelerator(buildType) {
			if len(cudaVersions) == 0 {
				return nil, zerr.With(ErrInvalidAxis, "axis", "cuda_versions")
			}
			for _, python := range pythonVersions {
				for _, mpi := range mpiTypes {
					for _, cuda := range cudaVersions {
						variants = append(variants, Variant{
							PythonVersion: python,
							BuildType:     buildType,
							MPIType:       mpi,
							CUDAVersion:   cuda,
						})
					}
				}
			}
			continue
		}
		for _, python := range pythonVersions {
			for _, mpi := range mpiTypes {
				variants = append(variants, Variant{
					PythonVersion: python,
					BuildType:     buildType,
					MPIType:       mpi,
				})
			}
		}
	}
	return variants, nil
}
