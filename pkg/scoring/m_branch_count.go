package scoring

import (
	"github.com/orgaudit/orgaudit/pkg/report"
)

// BranchCountSignal grades how many of a repository's branches match a
// query over the shared branches table.
type BranchCountSignal struct {
	key    string
	weight int
	query  report.Matcher
	table  ThresholdTable
}

// NewBranchCountSignal counts branches matching query.
func NewBranchCountSignal(key string, weight int, query report.Matcher, table ThresholdTable) *BranchCountSignal {
	return &BranchCountSignal{key: key, weight: weight, query: query, table: table}
}

// StaleBranchQuery selects stale, non-default branches.
func StaleBranchQuery() report.Matcher {
	return report.MustCompile(map[string]string{"stale": "^true$", "default": "^false$"})
}

// DependabotBranchQuery selects branches opened by dependabot.
func DependabotBranchQuery() report.Matcher {
	return report.MustCompile(map[string]string{"branchName": "^dependabot/"})
}

func (m *BranchCountSignal) Key() string { return m.key }
func (m *BranchCountSignal) Weight() int { return m.weight }

// Evaluate counts matching rows per repository. Every repository is graded,
// including those with no matching branches.
func (m *BranchCountSignal) Evaluate(ds *Dataset) map[string]HealthScore {
	counts := make(map[string]int)
	for _, row := range ds.BranchTable().GetRows(m.query) {
		if repo, ok := row["repoName"].(string); ok {
			counts[repo]++
		}
	}

	scores := make(map[string]HealthScore)
	for _, repo := range ds.Source.Repositories() {
		scores[repo] = m.table.Grade(counts[repo], m.weight)
	}
	return scores
}
