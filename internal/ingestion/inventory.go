package ingestion

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/orgaudit/orgaudit/pkg/scoring"
	"github.com/orgaudit/orgaudit/pkg/version"
)

// Inventory is the snapshot of an organization produced by the collector:
// repositories, their branches, the raw facts extracted from them and the
// dependencies they declare. It is the data a scoring run grades.
type Inventory struct {
	Org         string       `json:"org"`
	CollectedAt time.Time    `json:"collected_at"`
	Repos       []Repository `json:"repos"`
	// Dependencies maps dependency kind (npm, docker...) to dependency ID
	// to the usages of that dependency.
	Dependencies map[string]map[string][]scoring.Usage `json:"dependencies,omitempty"`

	byName map[string]*Repository
}

// Repository is one repository of an Inventory.
type Repository struct {
	Name     string       `json:"name"`
	Archived bool         `json:"archived,omitempty"`
	Branches []BranchInfo `json:"branches"`
	// Signals holds raw scalar facts keyed by name.
	Signals map[string]any `json:"signals,omitempty"`
	// Versions maps ecosystem to the version observations found on every
	// branch. Each observation names its branch.
	Versions map[string][]version.Observation `json:"versions,omitempty"`
}

// BranchInfo describes one branch.
type BranchInfo struct {
	Name       string    `json:"name"`
	Default    bool      `json:"default,omitempty"`
	Protected  bool      `json:"protected,omitempty"`
	Stale      bool      `json:"stale,omitempty"`
	LastCommit time.Time `json:"last_commit,omitempty"`
}

// ParseInventory decodes an inventory document.
func ParseInventory(data []byte) (*Inventory, error) {
	var inv Inventory
	if err := json.Unmarshal(data, &inv); err != nil {
		return nil, fmt.Errorf("decoding inventory: %w", err)
	}
	if inv.Org == "" {
		return nil, fmt.Errorf("inventory has no org")
	}
	inv.index()
	return &inv, nil
}

func (inv *Inventory) index() {
	inv.byName = make(map[string]*Repository, len(inv.Repos))
	for i := range inv.Repos {
		inv.byName[inv.Repos[i].Name] = &inv.Repos[i]
	}
}

func (inv *Inventory) repo(name string) *Repository {
	if inv.byName == nil {
		inv.index()
	}
	return inv.byName[name]
}

// MarkStale flags branches as stale when their last commit is older than
// maxAge before now. Default and protected branches are never stale, and
// branches without a commit time keep the collector's flag.
func (inv *Inventory) MarkStale(now time.Time, maxAge time.Duration) {
	cutoff := now.Add(-maxAge)
	for i := range inv.Repos {
		for j := range inv.Repos[i].Branches {
			b := &inv.Repos[i].Branches[j]
			switch {
			case b.Default || b.Protected:
				b.Stale = false
			case !b.LastCommit.IsZero():
				b.Stale = b.LastCommit.Before(cutoff)
			}
		}
	}
}

// Repositories lists repository names in inventory order, skipping
// archived repositories.
func (inv *Inventory) Repositories() []string {
	names := make([]string, 0, len(inv.Repos))
	for _, r := range inv.Repos {
		if r.Archived {
			continue
		}
		names = append(names, r.Name)
	}
	return names
}

func (inv *Inventory) Branches(repo string) []string {
	r := inv.repo(repo)
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.Branches))
	for _, b := range r.Branches {
		names = append(names, b.Name)
	}
	return names
}

func (inv *Inventory) branch(repo, name string) (BranchInfo, bool) {
	r := inv.repo(repo)
	if r == nil {
		return BranchInfo{}, false
	}
	for _, b := range r.Branches {
		if b.Name == name {
			return b, true
		}
	}
	return BranchInfo{}, false
}

func (inv *Inventory) IsBranchStale(repo, branch string) bool {
	b, _ := inv.branch(repo, branch)
	return b.Stale
}

func (inv *Inventory) IsBranchDefault(repo, branch string) bool {
	b, _ := inv.branch(repo, branch)
	return b.Default
}

// GetVersionObservations returns the observations of ecosystem recorded on
// branch.
func (inv *Inventory) GetVersionObservations(repo, branch, ecosystem string) []version.Observation {
	r := inv.repo(repo)
	if r == nil {
		return nil
	}
	var out []version.Observation
	for _, o := range r.Versions[ecosystem] {
		if o.Branch == branch {
			out = append(out, o)
		}
	}
	return out
}

// GetDependencyUsages returns the usages of kind, restricted to
// repositories that are scored.
func (inv *Inventory) GetDependencyUsages(kind string) map[string][]scoring.Usage {
	out := make(map[string][]scoring.Usage)
	for id, usages := range inv.Dependencies[kind] {
		for _, u := range usages {
			if r := inv.repo(u.RepoName); r != nil && r.Archived {
				continue
			}
			if u.DependencyID == "" {
				u.DependencyID = id
			}
			out[id] = append(out[id], u)
		}
	}
	return out
}

func (inv *Inventory) GetRawSignal(repo, name string) (any, bool) {
	r := inv.repo(repo)
	if r == nil {
		return nil, false
	}
	v, ok := r.Signals[name]
	return v, ok
}

// Gatherer returns the observation strategy for one ecosystem. Observations
// without a branch are recorded on the repository's default branch.
func (inv *Inventory) Gatherer(ecosystem string) version.Gatherer {
	return version.GathererFunc(func(repo, branch string) []version.Observation {
		obs := inv.GetVersionObservations(repo, branch, ecosystem)
		if !inv.IsBranchDefault(repo, branch) {
			return obs
		}
		r := inv.repo(repo)
		for _, o := range r.Versions[ecosystem] {
			if o.Branch == "" {
				o.Branch = branch
				obs = append(obs, o)
			}
		}
		return obs
	})
}
