package scoring

import (
	"github.com/orgaudit/orgaudit/pkg/report"
	"github.com/orgaudit/orgaudit/pkg/version"
)

var (
	versionBranchHeader = []string{
		"repoName", "branchName", "stale", "default",
		"lowestVersion", "lowestVersionPath", "highestVersion", "highestVersionPath",
	}
	versionRepoHeader = []string{
		"repoName",
		"lowestVersion", "lowestVersionPath", "lowestVersionBranch",
		"highestVersion", "highestVersionPath", "highestVersionBranch",
		"grade",
	}
)

// VersionSignal grades the lowest runtime version a repository declares on
// any active branch.
type VersionSignal struct {
	key       string
	weight    int
	ecosystem string
	table     ThresholdTable
}

// GathererSource is implemented by sources that supply their own
// observation strategy per ecosystem.
type GathererSource interface {
	Gatherer(ecosystem string) version.Gatherer
}

// NewVersionSignal grades ecosystem versions gathered from the source's
// observations against table.
func NewVersionSignal(key string, weight int, ecosystem string, table ThresholdTable) *VersionSignal {
	return &VersionSignal{
		key:       key,
		weight:    weight,
		ecosystem: ecosystem,
		table:     table,
	}
}

func (m *VersionSignal) Key() string { return m.key }
func (m *VersionSignal) Weight() int { return m.weight }

func (m *VersionSignal) gatherer(src Source) version.Gatherer {
	if gs, ok := src.(GathererSource); ok {
		return gs.Gatherer(m.ecosystem)
	}
	return version.GathererFunc(func(repo, branch string) []version.Observation {
		return src.GetVersionObservations(repo, branch, m.ecosystem)
	})
}

// Evaluate writes one row per branch with data to the signal's table, then
// grades each repository on the lowest version across the accepted,
// non-stale branch rows. Suppressing a branch row keeps it out of the grade.
func (m *VersionSignal) Evaluate(ds *Dataset) map[string]HealthScore {
	resolver := version.NewResolver(ds.Log)
	gatherer := m.gatherer(ds.Source)
	branchTable := ds.Tables.Table(m.key, versionBranchHeader...)
	repoTable := ds.Tables.Table(m.key+"_repos", versionRepoHeader...)

	scores := make(map[string]HealthScore)
	for _, repo := range ds.Source.Repositories() {
		summary := resolver.Resolve(gatherer, repo, ds.Branches(repo))

		var active []version.BranchSummary
		for _, b := range summary.Branches {
			if b.Empty() {
				continue
			}
			accepted := branchTable.AddRow(report.Row{
				"repoName":           repo,
				"branchName":         b.Branch,
				"stale":              b.Stale,
				"default":            b.Default,
				"lowestVersion":      b.LowestVersion,
				"lowestVersionPath":  b.LowestVersionPath,
				"highestVersion":     b.HighestVersion,
				"highestVersionPath": b.HighestVersionPath,
			})
			if accepted && !b.Stale {
				active = append(active, b)
			}
		}

		ext := resolver.FoldBranches(active, nil)
		if !ext.HasLowest() {
			continue
		}
		hs := m.table.Grade(ext.LowestVersion, m.weight)
		scores[repo] = hs
		repoTable.AddRow(report.Row{
			"repoName":             repo,
			"lowestVersion":        ext.LowestVersion,
			"lowestVersionPath":    ext.LowestVersionPath,
			"lowestVersionBranch":  ext.LowestVersionBranch,
			"highestVersion":       ext.HighestVersion,
			"highestVersionPath":   ext.HighestVersionPath,
			"highestVersionBranch": ext.HighestVersionBranch,
			"grade":                string(hs.Grade),
		})
	}
	return scores
}
