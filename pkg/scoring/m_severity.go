package scoring

import (
	"github.com/orgaudit/orgaudit/pkg/report"
)

// Severity multipliers for the weighted alert score.
var severityLevels = []struct {
	name   string
	factor float64
}{
	{"critical", 4},
	{"high", 3},
	{"medium", 2},
	{"low", 1},
}

var severityHeader = []string{"repoName", "critical", "high", "medium", "low", "score"}

// SeveritySignal grades open security alerts weighted by severity. Alert
// counts are read from raw signals "<prefix>.critical", "<prefix>.high" and
// so on.
type SeveritySignal struct {
	key    string
	weight int
	prefix string
	table  ThresholdTable
}

// NewSeveritySignal reads alert counts under prefix.
func NewSeveritySignal(key string, weight int, prefix string, table ThresholdTable) *SeveritySignal {
	return &SeveritySignal{key: key, weight: weight, prefix: prefix, table: table}
}

func (m *SeveritySignal) Key() string { return m.key }
func (m *SeveritySignal) Weight() int { return m.weight }

// Evaluate scores critical*4 + high*3 + medium*2 + low. A repository with no
// alert counts at all, or whose row is suppressed, is not graded.
func (m *SeveritySignal) Evaluate(ds *Dataset) map[string]HealthScore {
	tbl := ds.Tables.Table(m.key, severityHeader...)

	scores := make(map[string]HealthScore)
	for _, repo := range ds.Source.Repositories() {
		row := report.Row{"repoName": repo}
		var score float64
		found := false
		for _, lvl := range severityLevels {
			n := 0.0
			if v, ok := ds.Source.GetRawSignal(repo, m.prefix+"."+lvl.name); ok {
				if f, ok := toNumber(v); ok {
					n = f
					found = true
				}
			}
			row[lvl.name] = n
			score += n * lvl.factor
		}
		if !found {
			continue
		}
		row["score"] = score
		if !tbl.AddRow(row) {
			continue
		}
		scores[repo] = m.table.Grade(score, m.weight)
	}
	return scores
}
