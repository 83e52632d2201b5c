// Package envfile writes the conda environment files that describe the
// installable set of each built variant.
package envfile

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"

	"go.kiln.dev/kiln/internal/core/domain"
	"go.kiln.dev/kiln/internal/core/ports"
)

// Generator writes environment files into a build output folder.
type Generator struct {
	logger ports.Logger
}

// NewGenerator creates a Generator.
func NewGenerator(logger ports.Logger) *Generator {
	return &Generator{logger: logger}
}

// fileContent is the YAML body of a generated environment file.
type fileContent struct {
	Channels     []string `yaml:"channels"`
	Dependencies []string `yaml:"dependencies"`
}

// FileName returns the environment file name for a variant.
func FileName(variant domain.Variant) string {
	return domain.EnvFilePrefix + variant.FileSafe() + ".yaml"
}

// Channels builds the channel list of a generated file: the local build
// output first so freshly built packages shadow remote ones, then the tree
// channels, then defaults.
func Channels(channels []string, outputDir string) []string {
	result := make([]string, 0, len(channels)+2)
	result = append(result, "file:/"+outputDir)
	result = append(result, channels...)
	return append(result, "defaults")
}

// WriteFile writes the environment file for one variant and returns its path.
// An empty package list writes nothing and returns an empty path. The file
// starts with a variant marker comment so ReadVariant can recover which
// variant it describes.
func (g *Generator) WriteFile(outputDir string, variant domain.Variant, channels, packages []string) (string, error) {
	if len(packages) == 0 {
		g.logger.Warn("no installable packages for variant " + variant.String() + ", skipping environment file")
		return "", nil
	}
	if err := os.MkdirAll(outputDir, domain.DirPerm); err != nil {
		err = zerr.Wrap(err, domain.ErrOutputFolderCreateFailed.Error())
		return "", zerr.With(err, "path", outputDir)
	}

	body, err := yaml.Marshal(fileContent{
		Channels:     Channels(channels, outputDir),
		Dependencies: packages,
	})
	if err != nil {
		return "", zerr.Wrap(err, domain.ErrEnvFileWriteFailed.Error())
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "#%s:%s\n", domain.VariantMarker, variant.String())
	buf.Write(body)

	path := filepath.Join(outputDir, FileName(variant))
	if err := os.WriteFile(path, buf.Bytes(), domain.FilePerm); err != nil {
		err = zerr.Wrap(err, domain.ErrEnvFileWriteFailed.Error())
		return "", zerr.With(err, "path", path)
	}
	g.logger.Info("wrote environment file " + path)
	return path, nil
}

// ReadVariant extracts the variant string from a generated environment file.
// It returns the empty string when the file carries no marker.
func ReadVariant(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		err = zerr.Wrap(err, domain.ErrConfigReadFailed.Error())
		return "", zerr.With(err, "file", path)
	}
	defer file.Close()

	marker := "#" + domain.VariantMarker + ":"
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if variant, ok := strings.CutPrefix(scanner.Text(), marker); ok {
			return strings.TrimSpace(variant), nil
		}
	}
	if err := scanner.Err(); err != nil {
		err = zerr.Wrap(err, domain.ErrConfigReadFailed.Error())
		return "", zerr.With(err, "file", path)
	}
	return "", nil
}
