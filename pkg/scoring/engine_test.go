package scoring_test

import (
	"errors"
	"testing"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orgaudit/orgaudit/pkg/report"
	"github.com/orgaudit/orgaudit/pkg/scoring"
	"github.com/orgaudit/orgaudit/pkg/version"
)

type fakeBranch struct {
	name      string
	stale     bool
	isDefault bool
}

type fakeSource struct {
	repos    []string
	branches map[string][]fakeBranch
	versions map[string][]version.Observation // repo@branch@ecosystem
	usages   map[string]map[string][]scoring.Usage
	raw      map[string]map[string]any
}

func (f *fakeSource) Repositories() []string { return f.repos }

func (f *fakeSource) Branches(repo string) []string {
	var names []string
	for _, b := range f.branches[repo] {
		names = append(names, b.name)
	}
	return names
}

func (f *fakeSource) branch(repo, name string) fakeBranch {
	for _, b := range f.branches[repo] {
		if b.name == name {
			return b
		}
	}
	return fakeBranch{}
}

func (f *fakeSource) IsBranchStale(repo, branch string) bool   { return f.branch(repo, branch).stale }
func (f *fakeSource) IsBranchDefault(repo, branch string) bool { return f.branch(repo, branch).isDefault }

func (f *fakeSource) GetVersionObservations(repo, branch, ecosystem string) []version.Observation {
	return f.versions[repo+"@"+branch+"@"+ecosystem]
}

func (f *fakeSource) GetDependencyUsages(kind string) map[string][]scoring.Usage {
	return f.usages[kind]
}

func (f *fakeSource) GetRawSignal(repo, name string) (any, bool) {
	v, ok := f.raw[repo][name]
	return v, ok
}

func fixtureSource() *fakeSource {
	return &fakeSource{
		repos: []string{"web", "api", "empty"},
		branches: map[string][]fakeBranch{
			"api": {
				{name: "main", isDefault: true},
				{name: "legacy", stale: true},
				{name: "dependabot/npm/lodash"},
				{name: "old-1", stale: true},
			},
			"web": {
				{name: "main", isDefault: true},
			},
		},
		versions: map[string][]version.Observation{
			"api@main@node":   {{FilePath: ".nvmrc", Branch: "main", Version: "20.11.0"}},
			"api@legacy@node": {{FilePath: ".nvmrc", Branch: "legacy", Version: "12.0.0"}},
			"web@main@node": {
				{FilePath: ".nvmrc", Branch: "main", Version: "16.3.0"},
				{FilePath: "tools/.nvmrc", Branch: "main", Version: "lts/*"},
			},
		},
		usages: map[string]map[string][]scoring.Usage{
			"npm": {
				"react": {
					{RepoName: "api", DeclaredVersion: "18.2.0"},
					{RepoName: "web", DeclaredVersion: "16.14.0"},
					{RepoName: "internal-ui", DeclaredVersion: "13.0.0"},
				},
			},
		},
		raw: map[string]map[string]any{
			"api": {"security_alerts.critical": 1, "security_alerts.low": 1},
			"web": {"missing_codeowners": true},
		},
	}
}

func fixtureSignals(t *testing.T) []scoring.Signal {
	t.Helper()
	node, err := scoring.VersionTableFromLTS("20.0.0")
	require.NoError(t, err)
	return []scoring.Signal{
		scoring.NewVersionSignal("node_version", 3, "node", node),
		scoring.NewBranchCountSignal("stale_branches", 2, scoring.StaleBranchQuery(), scoring.CountGrades()),
		scoring.NewSeveritySignal("security_alerts", 5, "security_alerts", scoring.SeverityGrades()),
		scoring.NewRawSignal("missing_codeowners", 1, "missing_codeowners", scoring.PresenceGrades()),
		scoring.NewRelativeSignal("npm_packages", 2, "npm", nil),
	}
}

type recordingSink struct {
	rows       map[string][]report.Row
	composites map[string]scoring.CompositeScore
	failRows   bool
}

func newRecordingSink() *recordingSink {
	return &recordingSink{
		rows:       make(map[string][]report.Row),
		composites: make(map[string]scoring.CompositeScore),
	}
}

func (s *recordingSink) EmitRow(table string, row report.Row) error {
	if s.failRows {
		return errors.New("disk full")
	}
	s.rows[table] = append(s.rows[table], row)
	return nil
}

func (s *recordingSink) EmitRepositoryComposite(repo string, c scoring.CompositeScore, _ map[string]scoring.HealthScore) error {
	s.composites[repo] = c
	return nil
}

func TestEngineRun(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	engine := scoring.NewEngine(scoring.Options{Log: logger}, fixtureSignals(t)...)
	sink := newRecordingSink()

	result := engine.Run(fixtureSource(), sink)

	require.Len(t, result.Repos, 3)
	assert.Equal(t, "api", result.Repos[0].Repo)

	api := result.Repo("api")
	require.NotNil(t, api)
	// legacy is stale, so 20.11.0 on main is the lowest active version.
	assert.Equal(t, scoring.HealthScore{Grade: scoring.GradeA, Weight: 3}, api.Scores["node_version"])
	assert.Equal(t, scoring.HealthScore{Grade: scoring.GradeA, Weight: 2}, api.Scores["stale_branches"])
	// 1*4 + 1*1 = 5
	assert.Equal(t, scoring.HealthScore{Grade: scoring.GradeB, Weight: 5}, api.Scores["security_alerts"])
	assert.Equal(t, scoring.NotApplicable, api.Scores["missing_codeowners"])
	assert.Equal(t, scoring.HealthScore{Grade: scoring.GradeA, Weight: 2}, api.Scores["npm_packages"])

	web := result.Repo("web")
	assert.Equal(t, scoring.GradeC, web.Scores["node_version"].Grade)
	assert.Equal(t, scoring.GradeF, web.Scores["missing_codeowners"].Grade)
	assert.Equal(t, scoring.NotApplicable, web.Scores["security_alerts"])

	empty := result.Repo("empty")
	assert.Equal(t, scoring.NotApplicable, empty.Scores["node_version"])
	assert.Equal(t, scoring.GradeA, empty.Scores["stale_branches"].Grade)

	assert.Len(t, sink.composites, 3)
	assert.Equal(t, api.Composite, sink.composites["api"])
	assert.Len(t, sink.rows[scoring.HealthScoresTable], 15)
	assert.Len(t, sink.rows[scoring.CompositeTable], 3)
	assert.Len(t, sink.rows["node_version"], 3)
	assert.Len(t, sink.rows[scoring.BranchesTable], 5)
}

type gathererSource struct {
	*fakeSource
	gathered []string
}

func (g *gathererSource) Gatherer(ecosystem string) version.Gatherer {
	return version.GathererFunc(func(repo, branch string) []version.Observation {
		g.gathered = append(g.gathered, repo+"@"+branch)
		return []version.Observation{{FilePath: "Dockerfile", Branch: branch, Version: "2024.1.0"}}
	})
}

type headerSink struct {
	*recordingSink
	headers map[string][]string
}

func (s *headerSink) DeclareTable(table string, header []string) {
	if _, ok := s.rows[table]; ok {
		panic("header declared after rows for " + table)
	}
	s.headers[table] = header
}

func TestEngineDeclaresHeaders(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	engine := scoring.NewEngine(scoring.Options{Log: logger}, fixtureSignals(t)...)
	sink := &headerSink{recordingSink: newRecordingSink(), headers: map[string][]string{}}

	engine.Run(fixtureSource(), sink)

	assert.Equal(t, []string{
		"repoName", "branchName", "stale", "default",
		"lowestVersion", "lowestVersionPath", "highestVersion", "highestVersionPath",
	}, sink.headers["node_version"])
	for table := range sink.rows {
		assert.Contains(t, sink.headers, table)
	}
}

func TestEngineUsesSourceGatherer(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	table, err := scoring.VersionTableFromLTS("2024.0.0")
	require.NoError(t, err)
	engine := scoring.NewEngine(scoring.Options{Log: logger},
		scoring.NewVersionSignal("base_image", 1, "docker", table))

	src := &gathererSource{fakeSource: &fakeSource{
		repos:    []string{"web"},
		branches: map[string][]fakeBranch{"web": {{name: "main", isDefault: true}}},
	}}
	result := engine.Run(src, newRecordingSink())

	assert.Equal(t, []string{"web@main"}, src.gathered)
	assert.Equal(t, scoring.HealthScore{Grade: scoring.GradeA, Weight: 1}, result.Repo("web").Scores["base_image"])
}

func TestEngineExceptionsChangeGrades(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	engine := scoring.NewEngine(scoring.Options{
		Log:              logger,
		FilterExceptions: true,
		Exceptions: map[string][]report.ExceptionRule{
			"node_version": {report.MustCompile(map[string]string{"repoName": "^web$", "lowestVersionPath": "^\\.nvmrc$"})},
			"npm_packages": {report.MustCompile(map[string]string{"repoName": "^internal-"})},
		},
	}, fixtureSignals(t)...)

	result := engine.Run(fixtureSource(), nil)

	web := result.Repo("web")
	assert.Equal(t, scoring.NotApplicable, web.Scores["node_version"])

	// Without internal-ui, react spans majors 16..18: api A, web F.
	assert.Equal(t, scoring.GradeA, result.Repo("api").Scores["npm_packages"].Grade)
	assert.Equal(t, scoring.GradeF, web.Scores["npm_packages"].Grade)
}

func TestEngineSinkErrorsDoNotStopRun(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	engine := scoring.NewEngine(scoring.Options{Log: logger}, fixtureSignals(t)...)
	sink := newRecordingSink()
	sink.failRows = true

	result := engine.Run(fixtureSource(), sink)

	assert.Len(t, result.Repos, 3)
	assert.Len(t, sink.composites, 3)
	assert.NotEmpty(t, hook.AllEntries())
}

func TestEngineNoSignals(t *testing.T) {
	engine := scoring.NewEngine(scoring.Options{})
	result := engine.Run(&fakeSource{repos: []string{"solo"}}, nil)

	require.Len(t, result.Repos, 1)
	assert.Equal(t, scoring.NoSignals, result.Repos[0].Composite.Value)
	assert.Equal(t, scoring.GradeF, result.Repos[0].Composite.Grade)
}

func TestBuildDefaultSignals(t *testing.T) {
	signals, err := scoring.BuildAll(scoring.DefaultSignals(), scoring.BuildOptions{})
	require.NoError(t, err)
	assert.Len(t, signals, len(scoring.DefaultSignals()))
	for _, s := range signals {
		assert.LessOrEqual(t, s.Weight(), scoring.MaxWeight)
	}
}

func TestBuildErrors(t *testing.T) {
	_, err := scoring.Build(scoring.SignalConfig{Key: "x", Kind: "ratio", Weight: 1}, scoring.BuildOptions{})
	assert.ErrorIs(t, err, scoring.ErrUnknownSignalKind)

	_, err = scoring.Build(scoring.SignalConfig{Key: "x", Kind: scoring.KindRaw, Weight: 9, Table: scoring.CountGrades()}, scoring.BuildOptions{})
	assert.Error(t, err)

	_, err = scoring.Build(scoring.SignalConfig{Key: "x", Kind: scoring.KindBranchCount, Weight: 1, Table: scoring.NewVersionTable(scoring.AtLeast("1.0.0", scoring.GradeA))}, scoring.BuildOptions{})
	assert.Error(t, err)

	_, err = scoring.Build(scoring.SignalConfig{Key: "x", Kind: scoring.KindVersion, Weight: 1, Ecosystem: "node", LTS: "iron"}, scoring.BuildOptions{})
	assert.Error(t, err)

	dup := []scoring.SignalConfig{
		{Key: "a", Kind: scoring.KindRelative, Weight: 1, Dependency: "npm"},
		{Key: "a", Kind: scoring.KindRelative, Weight: 1, Dependency: "npm"},
	}
	_, err = scoring.BuildAll(dup, scoring.BuildOptions{})
	assert.Error(t, err)
}
