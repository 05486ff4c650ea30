package version

import (
	goversion "github.com/hashicorp/go-version"
	"github.com/sirupsen/logrus"
)

// Extremes is the lowest and highest version seen in a scope, together with
// the file and branch that produced each.
type Extremes struct {
	LowestVersion        string `json:"lowest_version"`
	LowestVersionPath    string `json:"lowest_version_path"`
	LowestVersionBranch  string `json:"lowest_version_branch"`
	HighestVersion       string `json:"highest_version"`
	HighestVersionPath   string `json:"highest_version_path"`
	HighestVersionBranch string `json:"highest_version_branch"`

	// set once a real observation replaced the sentinel; a valid version
	// may equal a sentinel string.
	lowSet, highSet bool
}

// Seed returns the sentinel starting point for a fold.
func Seed() Extremes {
	return Extremes{
		LowestVersion:  LowSentinel,
		HighestVersion: HighSentinel,
	}
}

// HasLowest reports whether the lowest side holds an observed version.
func (e Extremes) HasLowest() bool { return e.lowSet || e.LowestVersion != LowSentinel }

// HasHighest reports whether the highest side holds an observed version.
func (e Extremes) HasHighest() bool { return e.highSet || e.HighestVersion != HighSentinel }

// Empty reports whether neither side holds a real version.
func (e Extremes) Empty() bool { return !e.HasLowest() && !e.HasHighest() }

// Resolver folds observations. The zero value is usable and silent.
type Resolver struct {
	Log logrus.FieldLogger
}

// NewResolver returns a Resolver that logs skipped observations at debug level.
func NewResolver(log logrus.FieldLogger) *Resolver {
	return &Resolver{Log: log}
}

// Fold folds observations into seed. Observations whose version does not
// parse are skipped. Ties keep the earlier observation. A sentinel side of
// seed is never a comparison bound: the first valid observation replaces it.
func (r *Resolver) Fold(observations []Observation, seed Extremes) Extremes {
	result := seed
	var lowest, highest *goversion.Version
	var lowOK, highOK bool
	if seed.HasLowest() {
		lowest, lowOK = Parse(seed.LowestVersion)
	}
	if seed.HasHighest() {
		highest, highOK = Parse(seed.HighestVersion)
	}

	for _, o := range observations {
		v, ok := Parse(o.Version)
		if !ok {
			r.debug(o)
			continue
		}
		if !lowOK || v.LessThan(lowest) {
			lowest, lowOK = v, true
			result.lowSet = true
			result.LowestVersion = o.Version
			result.LowestVersionPath = o.FilePath
			result.LowestVersionBranch = o.Branch
		}
		if !highOK || v.GreaterThan(highest) {
			highest, highOK = v, true
			result.highSet = true
			result.HighestVersion = o.Version
			result.HighestVersionPath = o.FilePath
			result.HighestVersionBranch = o.Branch
		}
	}
	return result
}

func (r *Resolver) debug(o Observation) {
	if r == nil || r.Log == nil {
		return
	}
	r.Log.WithFields(logrus.Fields{
		"file_path": o.FilePath,
		"branch":    o.Branch,
		"version":   o.Version,
	}).Debug("skipping invalid version")
}

// Fold folds observations into seed without logging.
func Fold(observations []Observation, seed Extremes) Extremes {
	var r Resolver
	return r.Fold(observations, seed)
}
