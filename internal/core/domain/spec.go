package domain

import (
	"path/filepath"
	"regexp"
	"strings"
)

// specPattern splits a dependency specifier into name, operator, version and
// build segments. Specifiers without a version component do not match and stay
// name-only.
var specPattern = regexp.MustCompile(`^([\w-]+)([\s=<>]*)(\d[.\w*]*)([=\s]*.*)$`)

var whitespaceRun = regexp.MustCompile(`\s+`)

// MatchSpec is a dependency specifier parsed once at ingestion.
// Raw holds the normalized form (lowercased, whitespace collapsed) and is the
// form used for display and generalization, so operator spacing survives
// round-trips ("pack1==1.0" stays glued, "pack1 ==1.0" keeps its space).
type MatchSpec struct {
	Raw      string
	Name     InternedString
	Operator string
	Version  string
	Build    string
}

// ParseMatchSpec parses a dependency specifier of the form
// "name [operator]version [build]". Anything that does not carry a version
// degrades to a name-only spec.
func ParseMatchSpec(s string) MatchSpec {
	raw := strings.TrimSpace(whitespaceRun.ReplaceAllString(strings.ToLower(s), " "))
	spec := MatchSpec{Raw: raw}

	m := specPattern.FindStringSubmatch(raw)
	if m == nil {
		spec.Name = NewInternedString(PackageName(raw))
		return spec
	}
	spec.Name = NewInternedString(m[1])
	spec.Operator = strings.TrimSpace(m[2])
	spec.Version = m[3]
	spec.Build = strings.TrimLeft(m[4], "= ")
	return spec
}

// ParseMatchSpecs parses a list of raw specifiers.
func ParseMatchSpecs(specs []string) []MatchSpec {
	result := make([]MatchSpec, len(specs))
	for i, s := range specs {
		result[i] = ParseMatchSpec(s)
	}
	return result
}

// String returns the normalized specifier.
func (s MatchSpec) String() string {
	return s.Raw
}

// HasOperator reports whether the specifier carries an explicit comparison
// operator such as "==", ">=" or "=". A bare "name version" spec does not.
func (s MatchSpec) HasOperator() bool {
	return s.Operator != ""
}

// HasVersion reports whether the specifier pins any version at all.
func (s MatchSpec) HasVersion() bool {
	return s.Version != ""
}

// Generalize widens a pinned version so compatible build-string suffixes still
// match: a bare trailing version number gets a ".*" suffix when the operator
// is "==", a space or absent. Constraints with other operators, versions
// already ending in ".*" and versions not ending in a digit are untouched.
func (s MatchSpec) Generalize() string {
	return GeneralizeSpec(s.Raw)
}

// GeneralizeSpec is the raw-string form of MatchSpec.Generalize for callers
// holding unparsed specifiers.
func GeneralizeSpec(spec string) string {
	spec = whitespaceRun.ReplaceAllString(spec, " ")

	m := specPattern.FindStringSubmatch(spec)
	if m == nil {
		return spec
	}
	name, operator, version, build := m[1], m[2], m[3], m[4]
	if version == "" || operator == "" {
		return spec
	}
	trimmed := strings.TrimSpace(operator)
	if trimmed != "" && trimmed != "==" {
		return spec
	}
	if strings.HasSuffix(version, ".*") || !isDigit(version[len(version)-1]) {
		return spec
	}
	return name + operator + version + ".*" + build
}

// PackageName extracts the bare package name from a specifier: the first
// whitespace-separated token, cut at the first "=".
func PackageName(spec string) string {
	fields := strings.Fields(strings.ToLower(spec))
	if len(fields) == 0 {
		return ""
	}
	name, _, _ := strings.Cut(fields[0], "=")
	return name
}

// IsVirtualPackage reports whether a package name refers to a virtual package
// provided by the system rather than any channel (leading "__").
func IsVirtualPackage(name string) bool {
	return strings.HasPrefix(name, "__")
}

// ParseDistFileName splits a package artifact file name of the form
// "name-version-build.tar.bz2" into its parts. Package names may themselves
// contain dashes, so version and build are taken from the right.
func ParseDistFileName(file string) (name, version, build string) {
	base := filepath.Base(file)
	base = strings.TrimSuffix(base, ".tar.bz2")
	base = strings.TrimSuffix(base, ".conda")
	base = strings.TrimSuffix(base, ".tar.gz")

	idx := strings.LastIndex(base, "-")
	if idx < 0 {
		return base, "", ""
	}
	build = base[idx+1:]
	rest := base[:idx]

	idx = strings.LastIndex(rest, "-")
	if idx < 0 {
		return rest, build, ""
	}
	return rest[:idx], rest[idx+1:], build
}

// DistFileToSpec converts a package artifact file name into an installable
// specifier, e.g. "package1a-1.0-py36_0.tar.bz2" becomes "package1a 1.0 py36_0".
func DistFileToSpec(file string) string {
	name, version, build := ParseDistFileName(file)
	return strings.TrimSpace(strings.Join([]string{name, version, build}, " "))
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
