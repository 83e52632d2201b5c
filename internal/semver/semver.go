// Package semver orders package version strings.
//
// Index candidates mostly carry semantic versions, which are compared with
// github.com/Masterminds/semver/v3. Version strings the ecosystem produces
// that are not valid semver ("1.0.0post1", "9b", "2026.08.1") fall back to a
// lenient segment wise comparison.
package semver

import (
	"strconv"
	"strings"

	mm "github.com/Masterminds/semver/v3"
)

// Compare returns -1, 0, or 1 ordering a before, equal to, or after b.
func Compare(a, b string) int {
	av, aerr := mm.NewVersion(a)
	bv, berr := mm.NewVersion(b)
	if aerr == nil && berr == nil {
		return av.Compare(bv)
	}
	return compareLenient(a, b)
}

// Less reports whether version a orders strictly before version b.
func Less(a, b string) bool {
	return Compare(a, b) < 0
}

// compareLenient compares dot separated segments pairwise: numerically when
// both segments are numbers, byte wise when neither is, and a number always
// orders after a non number so "1.0a" stays a prerelease of "1.0". A missing
// segment orders first.
func compareLenient(a, b string) int {
	as := segments(a)
	bs := segments(b)
	for i := 0; i < len(as) && i < len(bs); i++ {
		if c := compareSegment(as[i], bs[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(as) < len(bs):
		return -1
	case len(as) > len(bs):
		return 1
	default:
		return 0
	}
}

func segments(v string) []string {
	return strings.FieldsFunc(v, func(r rune) bool {
		return r == '.' || r == '-' || r == '_' || r == '+'
	})
}

func compareSegment(a, b string) int {
	an, aerr := strconv.Atoi(a)
	bn, berr := strconv.Atoi(b)
	switch {
	case aerr == nil && berr == nil:
		switch {
		case an < bn:
			return -1
		case an > bn:
			return 1
		default:
			return 0
		}
	case aerr == nil:
		return 1
	case berr == nil:
		return -1
	default:
		return strings.Compare(a, b)
	}
}
