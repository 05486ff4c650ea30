package scoring

import (
	"github.com/orgaudit/orgaudit/pkg/report"
)

var (
	usageHeader      = []string{"dependencyId", "repoName", "declaredVersion"}
	usageGradeHeader = []string{"dependencyId", "repoName", "declaredVersion", "grade"}
)

// RelativeSignal grades a dependency kind (npm packages, docker images,
// terraform modules...) by how far each repository lags the rest of the
// organization.
type RelativeSignal struct {
	key    string
	weight int
	kind   string
	grader *RelativeGrader
}

// NewRelativeSignal grades usages of dependency kind with grader.
func NewRelativeSignal(key string, weight int, kind string, grader *RelativeGrader) *RelativeSignal {
	if grader == nil {
		grader = &RelativeGrader{}
	}
	return &RelativeSignal{key: key, weight: weight, kind: kind, grader: grader}
}

func (m *RelativeSignal) Key() string { return m.key }
func (m *RelativeSignal) Weight() int { return m.weight }

// Evaluate passes every usage through the signal's table, so exceptions can
// drop internal or vendored dependencies, grades what remains, and folds
// each repository's occurrences into one score.
func (m *RelativeSignal) Evaluate(ds *Dataset) map[string]HealthScore {
	usageTable := ds.Tables.Table(m.key, usageHeader...)
	gradeTable := ds.Tables.Table(m.key+"_grades", usageGradeHeader...)

	raw := ds.Source.GetDependencyUsages(m.kind)
	accepted := make(map[string][]Usage)
	for _, id := range sortedKeys(raw) {
		for _, u := range raw[id] {
			if u.DependencyID == "" {
				u.DependencyID = id
			}
			ok := usageTable.AddRow(report.Row{
				"dependencyId":    u.DependencyID,
				"repoName":        u.RepoName,
				"declaredVersion": u.DeclaredVersion,
			})
			if ok {
				accepted[id] = append(accepted[id], u)
			}
		}
	}

	byRepo := make(map[string][]HealthScore)
	for _, o := range m.grader.GradeOccurrences(accepted) {
		gradeTable.AddRow(report.Row{
			"dependencyId":    o.DependencyID,
			"repoName":        o.RepoName,
			"declaredVersion": o.DeclaredVersion,
			"grade":           string(o.Score.Grade),
		})
		byRepo[o.RepoName] = append(byRepo[o.RepoName], o.Score)
	}

	scores := make(map[string]HealthScore, len(byRepo))
	for repo, occurrences := range byRepo {
		if hs := Collapse(occurrences, m.weight); hs.Grade != GradeNotApplicable {
			scores[repo] = hs
		}
	}
	return scores
}
