package scoring

import (
	"github.com/orgaudit/orgaudit/pkg/report"
)

// RawSignalsTable collects every raw value graded by a RawSignal.
const RawSignalsTable = "raw_signals"

var rawHeader = []string{"repoName", "signal", "value"}

// RawSignal grades one scalar fact taken directly from the source: a
// count, a boolean (true counts as 1), or a version string.
type RawSignal struct {
	key    string
	weight int
	name   string
	table  ThresholdTable
}

// NewRawSignal grades the raw value called name.
func NewRawSignal(key string, weight int, name string, table ThresholdTable) *RawSignal {
	return &RawSignal{key: key, weight: weight, name: name, table: table}
}

func (m *RawSignal) Key() string { return m.key }
func (m *RawSignal) Weight() int { return m.weight }

// Evaluate grades repositories that have a value. Values whose row is
// suppressed by an exception are left ungraded.
func (m *RawSignal) Evaluate(ds *Dataset) map[string]HealthScore {
	tbl := ds.Tables.Table(RawSignalsTable, rawHeader...)

	scores := make(map[string]HealthScore)
	for _, repo := range ds.Source.Repositories() {
		v, ok := ds.Source.GetRawSignal(repo, m.name)
		if !ok || v == nil {
			continue
		}
		if !tbl.AddRow(report.Row{"repoName": repo, "signal": m.key, "value": v}) {
			continue
		}
		scores[repo] = m.table.Grade(v, m.weight)
	}
	return scores
}
