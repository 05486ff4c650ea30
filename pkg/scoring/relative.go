package scoring

import (
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/orgaudit/orgaudit/pkg/version"
)

// LatestTag is the declared version that pins to a floating "latest".
const LatestTag = "latest"

// Usage is one repository declaring one version of a shared dependency.
type Usage struct {
	DependencyID    string `json:"dependency_id"`
	RepoName        string `json:"repo_name"`
	DeclaredVersion string `json:"declared_version"`
}

// Occurrence is a graded usage. Usages without a parseable version (other
// than "latest") produce no occurrence.
type Occurrence struct {
	Usage
	Score HealthScore `json:"score"`
}

// RelativeGrader grades each usage of a dependency against the other
// repositories using it.
type RelativeGrader struct {
	// UniformMajorGrade, when set, is the grade given to versioned usages
	// of a dependency whose consumers all sit on the same major. When empty
	// such usages fall through to F.
	UniformMajorGrade Grade
	Log               logrus.FieldLogger
}

// GradeDependencyUsage grades every usage and groups the scores by repository.
func (g *RelativeGrader) GradeDependencyUsage(usages map[string][]Usage) map[string][]HealthScore {
	out := make(map[string][]HealthScore)
	for _, o := range g.GradeOccurrences(usages) {
		out[o.RepoName] = append(out[o.RepoName], o.Score)
	}
	return out
}

// GradeOccurrences grades every usage. Dependencies are visited in ID order
// and a repository that declares one dependency more than once is
// collapsed to its lowest parseable version first.
func (g *RelativeGrader) GradeOccurrences(usages map[string][]Usage) []Occurrence {
	ids := make([]string, 0, len(usages))
	for id := range usages {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []Occurrence
	for _, id := range ids {
		out = append(out, g.gradeDependency(id, collapse(usages[id]))...)
	}
	return out
}

func (g *RelativeGrader) gradeDependency(id string, usages []Usage) []Occurrence {
	if len(usages) == 0 {
		return nil
	}
	if len(usages) == 1 {
		return []Occurrence{{Usage: usages[0], Score: HealthScore{Grade: GradeC, Weight: 1}}}
	}

	lowest, highest := -1, -1
	for _, u := range usages {
		m, ok := version.Major(u.DeclaredVersion)
		if !ok {
			continue
		}
		if lowest < 0 || m < lowest {
			lowest = m
		}
		if highest < 0 || m > highest {
			highest = m
		}
	}
	spread := float64(highest-lowest) / 5

	out := make([]Occurrence, 0, len(usages))
	for _, u := range usages {
		score, ok := g.gradeUsage(u, highest, spread)
		if !ok {
			g.debug(id, u)
			continue
		}
		out = append(out, Occurrence{Usage: u, Score: score})
	}
	return out
}

// gradeUsage returns false for usages that earn no score: versions that
// are neither parseable nor "latest".
func (g *RelativeGrader) gradeUsage(u Usage, highest int, spread float64) (HealthScore, bool) {
	if u.DeclaredVersion == LatestTag {
		return HealthScore{Grade: GradeB, Weight: 1}, true
	}
	m, ok := version.Major(u.DeclaredVersion)
	if !ok {
		return HealthScore{}, false
	}
	if spread == 0 && g.UniformMajorGrade != "" {
		return HealthScore{Grade: g.UniformMajorGrade, Weight: 1}, true
	}

	gap := float64(highest - m)
	grade := GradeF
	switch {
	case gap < spread:
		grade = GradeA
	case gap < 2*spread:
		grade = GradeB
	case gap < 3*spread:
		grade = GradeC
	case gap < 4*spread:
		grade = GradeD
	}
	return HealthScore{Grade: grade, Weight: 1}, true
}

func (g *RelativeGrader) debug(id string, u Usage) {
	if g == nil || g.Log == nil {
		return
	}
	g.Log.WithFields(logrus.Fields{
		"dependency": id,
		"repo":       u.RepoName,
		"version":    u.DeclaredVersion,
	}).Debug("ungradable dependency version")
}

// collapse keeps one usage per repository: its lowest parseable version,
// else a "latest" pin, else the first declaration. First-seen repository
// order is preserved.
func collapse(usages []Usage) []Usage {
	index := make(map[string]int)
	var out []Usage
	for _, u := range usages {
		i, seen := index[u.RepoName]
		if !seen {
			index[u.RepoName] = len(out)
			out = append(out, u)
			continue
		}
		if preferUsage(u, out[i]) {
			out[i] = u
		}
	}
	return out
}

func preferUsage(candidate, current Usage) bool {
	cv, cOK := version.Parse(candidate.DeclaredVersion)
	kv, kOK := version.Parse(current.DeclaredVersion)
	switch {
	case cOK && kOK:
		return cv.LessThan(kv)
	case cOK:
		return true
	case kOK:
		return false
	default:
		return candidate.DeclaredVersion == LatestTag && current.DeclaredVersion != LatestTag
	}
}
