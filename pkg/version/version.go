// Package version folds version observations scattered across files and
// branches into lowest/highest summaries.
//
// Absence of data is encoded in the result itself: a fold that saw no valid
// version returns its seed untouched, so callers compare against
// LowSentinel/HighSentinel rather than checking a separate flag.
package version

import (
	"regexp"
	"strings"

	goversion "github.com/hashicorp/go-version"
)

const (
	// LowSentinel seeds the running lowest version. A result still holding it
	// means no valid version was observed.
	LowSentinel = "100.0.0"
	// HighSentinel seeds the running highest version.
	HighSentinel = "0.0.0"
)

// Only full major.minor.patch versions (optionally v-prefixed, with
// prerelease/build suffixes) count as valid. go-version alone would also
// accept "1" or "1.2".
var semverRe = regexp.MustCompile(`^v?\d+\.\d+\.\d+(?:-[0-9A-Za-z.-]+)?(?:\+[0-9A-Za-z.-]+)?$`)

// Observation is one version string found in one file on one branch.
type Observation struct {
	FilePath string `json:"file_path"`
	Branch   string `json:"branch"`
	Version  string `json:"version"`
}

// Parse returns the semantic version for s, or false if s is not a valid
// major.minor.patch version.
func Parse(s string) (*goversion.Version, bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "=")
	if !semverRe.MatchString(s) {
		return nil, false
	}
	v, err := goversion.NewSemver(s)
	if err != nil {
		return nil, false
	}
	return v, true
}

// Valid reports whether s parses as a semantic version.
func Valid(s string) bool {
	_, ok := Parse(s)
	return ok
}

// Compare returns -1, 0 or 1 comparing a to b. The bool is false when either
// side is not a valid version.
func Compare(a, b string) (int, bool) {
	va, ok := Parse(a)
	if !ok {
		return 0, false
	}
	vb, ok := Parse(b)
	if !ok {
		return 0, false
	}
	return va.Compare(vb), true
}

// Major returns the major component of s, ignoring a leading "v".
func Major(s string) (int, bool) {
	v, ok := Parse(s)
	if !ok {
		return 0, false
	}
	return v.Segments()[0], true
}
