package scoring

import (
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/orgaudit/orgaudit/pkg/report"
	"github.com/orgaudit/orgaudit/pkg/version"
)

// Source is the materialized ingestion data a run grades.
type Source interface {
	// Repositories lists every repository in the organization.
	Repositories() []string
	// Branches lists the branch names of a repository.
	Branches(repo string) []string
	IsBranchStale(repo, branch string) bool
	IsBranchDefault(repo, branch string) bool
	GetVersionObservations(repo, branch, ecosystem string) []version.Observation
	GetDependencyUsages(kind string) map[string][]Usage
	// GetRawSignal returns a scalar fact; ok is false when the repository
	// has no value for it.
	GetRawSignal(repo, name string) (value any, ok bool)
}

// Sink receives the results of a run.
type Sink interface {
	EmitRow(table string, row report.Row) error
	EmitRepositoryComposite(repo string, composite CompositeScore, scores map[string]HealthScore) error
}

// HeaderSink is implemented by sinks that lay out columns. DeclareTable is
// called with a table's declared header before any of its rows.
type HeaderSink interface {
	DeclareTable(table string, header []string)
}

// Signal is the interface that all graded signals implement.
type Signal interface {
	// Key returns the machine-readable signal identifier.
	Key() string
	// Weight returns the configured weight, 0 to MaxWeight.
	Weight() int
	// Evaluate grades every repository it has data for. Repositories left
	// out of the result are NotApplicable.
	Evaluate(ds *Dataset) map[string]HealthScore
}

// Shared table names and headers.
const (
	BranchesTable     = "branches"
	HealthScoresTable = "health_scores"
	CompositeTable    = "composite"
)

var (
	branchesHeader     = []string{"repoName", "branchName", "stale", "default"}
	healthScoresHeader = []string{"repoName", "signal", "grade", "weight"}
	compositeHeader    = []string{"repoName", "value", "grade"}
)

// Dataset is the working set of one run: the source data and the report
// tables signals write to.
type Dataset struct {
	Source Source
	Tables *report.Registry
	Log    logrus.FieldLogger

	branches []version.Branch
	byRepo   map[string][]version.Branch
}

// Branches returns the branches of repo with their stale and default flags.
func (ds *Dataset) Branches(repo string) []version.Branch {
	ds.loadBranches()
	return ds.byRepo[repo]
}

// BranchTable returns the shared branches table, populated on first use.
func (ds *Dataset) BranchTable() *report.Table {
	ds.loadBranches()
	return ds.Tables.Table(BranchesTable)
}

func (ds *Dataset) loadBranches() {
	if ds.byRepo != nil {
		return
	}
	ds.byRepo = make(map[string][]version.Branch)
	tbl := ds.Tables.Table(BranchesTable, branchesHeader...)
	for _, repo := range ds.Source.Repositories() {
		for _, name := range ds.Source.Branches(repo) {
			b := version.Branch{
				Name:    name,
				Stale:   ds.Source.IsBranchStale(repo, name),
				Default: ds.Source.IsBranchDefault(repo, name),
			}
			ds.byRepo[repo] = append(ds.byRepo[repo], b)
			tbl.AddRow(report.Row{
				"repoName":   repo,
				"branchName": b.Name,
				"stale":      b.Stale,
				"default":    b.Default,
			})
		}
	}
}

// Options configure an Engine.
type Options struct {
	// Exceptions maps table name to the rules suppressing its rows.
	Exceptions       map[string][]report.ExceptionRule
	FilterExceptions bool
	Log              logrus.FieldLogger
}

// Engine runs all configured signals against a source.
type Engine struct {
	signals []Signal
	opts    Options
}

// NewEngine creates a scoring engine with the given signals.
func NewEngine(opts Options, signals ...Signal) *Engine {
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}
	return &Engine{signals: signals, opts: opts}
}

// Signals returns the configured signals in evaluation order.
func (e *Engine) Signals() []Signal {
	return append([]Signal(nil), e.signals...)
}

// RepoResult is the graded outcome for one repository.
type RepoResult struct {
	Repo      string                 `json:"repo"`
	Scores    map[string]HealthScore `json:"scores"`
	Composite CompositeScore         `json:"composite"`
}

// Result is the outcome of one run.
type Result struct {
	Repos  []*RepoResult
	Tables *report.Registry
}

// Repo returns the result for name, or nil.
func (r *Result) Repo(name string) *RepoResult {
	for _, rr := range r.Repos {
		if rr.Repo == name {
			return rr
		}
	}
	return nil
}

// Run evaluates every signal, aggregates a composite per repository and
// hands accepted rows and composites to sink, which may be nil. Sink
// failures are logged; they never stop the run.
func (e *Engine) Run(src Source, sink Sink) *Result {
	ds := &Dataset{
		Source: src,
		Tables: report.NewRegistry(e.opts.Exceptions, e.opts.FilterExceptions, e.opts.Log),
		Log:    e.opts.Log,
	}
	ds.loadBranches()

	repos := append([]string(nil), src.Repositories()...)
	sort.Strings(repos)

	result := &Result{Tables: ds.Tables}
	byRepo := make(map[string]*RepoResult, len(repos))
	for _, repo := range repos {
		rr := &RepoResult{Repo: repo, Scores: make(map[string]HealthScore)}
		byRepo[repo] = rr
		result.Repos = append(result.Repos, rr)
	}

	for _, s := range e.signals {
		scores := s.Evaluate(ds)
		for _, repo := range repos {
			hs, ok := scores[repo]
			if !ok {
				hs = NotApplicable
			}
			byRepo[repo].Scores[s.Key()] = hs
		}
		e.opts.Log.WithFields(logrus.Fields{
			"signal": s.Key(),
			"graded": len(scores),
		}).Debug("signal evaluated")
	}

	scoreTable := ds.Tables.Table(HealthScoresTable, healthScoresHeader...)
	compositeTable := ds.Tables.Table(CompositeTable, compositeHeader...)
	for _, rr := range result.Repos {
		for _, s := range e.signals {
			hs := rr.Scores[s.Key()]
			scoreTable.AddRow(report.Row{
				"repoName": rr.Repo,
				"signal":   s.Key(),
				"grade":    string(hs.Grade),
				"weight":   hs.Weight,
			})
		}
		rr.Composite = Aggregate(rr.Scores)
		compositeTable.AddRow(report.Row{
			"repoName": rr.Repo,
			"value":    rr.Composite.Value,
			"grade":    string(rr.Composite.Grade),
		})
	}

	if sink != nil {
		e.emit(ds.Tables, result, sink)
	}
	return result
}

func (e *Engine) emit(tables *report.Registry, result *Result, sink Sink) {
	hs, _ := sink.(HeaderSink)
	for _, t := range tables.Tables() {
		if hs != nil {
			hs.DeclareTable(t.Name(), t.Header())
		}
		for _, row := range t.Rows() {
			if err := sink.EmitRow(t.Name(), row); err != nil {
				e.opts.Log.WithError(err).WithField("table", t.Name()).Error("emitting row")
			}
		}
	}
	for _, rr := range result.Repos {
		if err := sink.EmitRepositoryComposite(rr.Repo, rr.Composite, rr.Scores); err != nil {
			e.opts.Log.WithError(err).WithField("repo", rr.Repo).Error("emitting composite")
		}
	}
}

// sortedKeys returns the keys of m in order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
