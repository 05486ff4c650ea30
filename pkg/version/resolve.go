package version

// Gatherer collects the observations for one ecosystem on one branch of a
// repository. Each ecosystem (node, terraform, python...) supplies its own.
type Gatherer interface {
	GatherObservations(repo, branch string) []Observation
}

// GathererFunc adapts a function to the Gatherer interface.
type GathererFunc func(repo, branch string) []Observation

func (f GathererFunc) GatherObservations(repo, branch string) []Observation {
	return f(repo, branch)
}

// Branch describes a branch to resolve.
type Branch struct {
	Name    string
	Stale   bool
	Default bool
}

// BranchSummary is the branch-level fold result.
type BranchSummary struct {
	Branch  string
	Stale   bool
	Default bool
	Extremes
}

// RepoSummary holds the per-branch summaries of a repository and the
// repository-level folds derived from them.
type RepoSummary struct {
	Repo     string
	Branches []BranchSummary
	// All folds every branch.
	All Extremes
	// Active folds only non-stale branches.
	Active Extremes
}

// Resolve folds each branch's observations, then folds the branch
// summaries into repository-level results.
func (r *Resolver) Resolve(g Gatherer, repo string, branches []Branch) RepoSummary {
	summary := RepoSummary{Repo: repo}
	for _, b := range branches {
		ext := r.Fold(g.GatherObservations(repo, b.Name), Seed())
		summary.Branches = append(summary.Branches, BranchSummary{
			Branch:   b.Name,
			Stale:    b.Stale,
			Default:  b.Default,
			Extremes: ext,
		})
	}
	summary.All = r.FoldBranches(summary.Branches, nil)
	summary.Active = r.FoldBranches(summary.Branches, func(b BranchSummary) bool { return !b.Stale })
	return summary
}

// FoldBranches folds branch summaries into one result. Each included branch
// contributes two synthetic observations: its lowest and its highest.
// A nil include selects every branch.
func (r *Resolver) FoldBranches(branches []BranchSummary, include func(BranchSummary) bool) Extremes {
	var obs []Observation
	for _, b := range branches {
		if include != nil && !include(b) {
			continue
		}
		if b.Empty() {
			continue
		}
		obs = append(obs,
			Observation{FilePath: b.LowestVersionPath, Branch: b.LowestVersionBranch, Version: b.LowestVersion},
			Observation{FilePath: b.HighestVersionPath, Branch: b.HighestVersionBranch, Version: b.HighestVersion},
		)
	}
	return r.Fold(obs, Seed())
}
