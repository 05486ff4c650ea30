// Package surface defines output targets for orgaudit results: renderers
// for terminals, JSON and markdown, and the sink that persists report
// tables after a run.
package surface

import (
	"io"
	"sort"

	"github.com/orgaudit/orgaudit/pkg/scoring"
)

// Renderer produces formatted output from a run result.
type Renderer interface {
	// Render writes the formatted result to the writer.
	Render(w io.Writer, result *scoring.Result) error
}

// ranked returns repositories ordered by composite value, best first, then
// by name.
func ranked(result *scoring.Result) []*scoring.RepoResult {
	repos := append([]*scoring.RepoResult(nil), result.Repos...)
	sort.SliceStable(repos, func(i, j int) bool {
		if repos[i].Composite.Value != repos[j].Composite.Value {
			return repos[i].Composite.Value > repos[j].Composite.Value
		}
		return repos[i].Repo < repos[j].Repo
	})
	return repos
}

func applicableCount(scores map[string]scoring.HealthScore) int {
	n := 0
	for _, s := range scores {
		if s.Applicable() {
			n++
		}
	}
	return n
}

func sortedSignals(scores map[string]scoring.HealthScore) []string {
	keys := make([]string, 0, len(scores))
	for k := range scores {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
