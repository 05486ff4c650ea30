package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orgaudit/orgaudit/internal/history"
	"github.com/orgaudit/orgaudit/pkg/config"
	"github.com/orgaudit/orgaudit/pkg/scoring"
	"github.com/orgaudit/orgaudit/pkg/surface"
)

type fakeRecorder struct {
	runs  []history.Run
	repos [][]*scoring.RepoResult
	err   error
}

func (f *fakeRecorder) RecordRun(_ context.Context, run history.Run, repos []*scoring.RepoResult) error {
	f.runs = append(f.runs, run)
	f.repos = append(f.repos, repos)
	return f.err
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Scoring.StaleAfterDays = 90
	cfg.Scoring.Signals = []config.SignalConfig{
		{Key: "node_version", Kind: scoring.KindVersion, Weight: 3, Ecosystem: "node", LTS: "22.0.0"},
		{Key: "stale_branches", Kind: scoring.KindBranchCount, Weight: 2,
			Query: map[string]string{"stale": "^true$", "default": "^false$"}},
	}
	return cfg
}

func newTestService(t *testing.T, recorder RunRecorder) (*Service, *LocalStorage) {
	t.Helper()
	store := NewLocalStorage(t.TempDir())
	require.NoError(t, store.PutInventory(context.Background(), "acme", "latest", []byte(sampleInventory)))

	logger, _ := test.NewNullLogger()
	svc := NewService(store, recorder, testConfig(), logger)
	clock := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return clock }
	return svc, store
}

func TestServiceRun(t *testing.T) {
	rec := &fakeRecorder{}
	svc, store := newTestService(t, rec)
	ctx := context.Background()

	out, err := svc.Run(ctx, RunRequest{Org: "acme"})
	require.NoError(t, err)

	assert.NotEmpty(t, out.RunID)
	assert.Equal(t, "latest", out.Inventory)
	require.Len(t, out.Result.Repos, 2)

	api := out.Result.Repo("api")
	require.NotNil(t, api)
	// The stale feature branch is left out of the version grade.
	assert.Equal(t, scoring.HealthScore{Grade: scoring.GradeB, Weight: 3}, api.Scores["node_version"])
	assert.Equal(t, scoring.HealthScore{Grade: scoring.GradeA, Weight: 2}, api.Scores["stale_branches"])
	assert.InDelta(t, 3.4, api.Composite.Value, 1e-9)
	assert.Equal(t, scoring.GradeB, api.Composite.Grade)

	web := out.Result.Repo("web")
	require.NotNil(t, web)
	assert.Equal(t, scoring.GradeA, web.Composite.Grade)
	assert.Nil(t, out.Result.Repo("attic"))

	assert.Contains(t, out.Reports, "composite.json")
	assert.Contains(t, out.Reports, "branches.csv")

	data, err := store.GetReport(ctx, "acme", out.RunID, "composite.json")
	require.NoError(t, err)
	var composites []surface.CompositeRecord
	require.NoError(t, json.Unmarshal(data, &composites))
	assert.Len(t, composites, 2)

	require.Len(t, rec.runs, 1)
	assert.Equal(t, out.RunID, rec.runs[0].ID)
	assert.Equal(t, "acme", rec.runs[0].Org)
	assert.Len(t, rec.repos[0], 2)
}

func TestServiceRunWithoutRecorder(t *testing.T) {
	svc, _ := newTestService(t, nil)

	out, err := svc.Run(context.Background(), RunRequest{Org: "acme", Inventory: "latest"})
	require.NoError(t, err)
	assert.Len(t, out.Result.Repos, 2)
}

func TestServiceRunRecorderError(t *testing.T) {
	svc, _ := newTestService(t, &fakeRecorder{err: errors.New("connection refused")})

	out, err := svc.Run(context.Background(), RunRequest{Org: "acme"})
	assert.ErrorContains(t, err, "record run")
	require.NotNil(t, out, "reports were stored before recording failed")
	assert.NotEmpty(t, out.Reports)
}

func TestServiceRunErrors(t *testing.T) {
	svc, store := newTestService(t, nil)
	ctx := context.Background()

	_, err := svc.Run(ctx, RunRequest{})
	assert.ErrorContains(t, err, "org is required")

	_, err = svc.Run(ctx, RunRequest{Org: "acme", Inventory: "missing"})
	assert.ErrorContains(t, err, "get inventory")

	require.NoError(t, store.PutInventory(ctx, "other", "latest", []byte(sampleInventory)))
	_, err = svc.Run(ctx, RunRequest{Org: "other"})
	assert.ErrorContains(t, err, "belongs to org")
}

func TestServiceRunBadConfig(t *testing.T) {
	store := NewLocalStorage(t.TempDir())
	require.NoError(t, store.PutInventory(context.Background(), "acme", "latest", []byte(sampleInventory)))

	cfg := config.DefaultConfig()
	cfg.Scoring.Signals = []config.SignalConfig{{Key: "x", Kind: "ratio", Weight: 1}}
	svc := NewService(store, nil, cfg, logrus.New())

	_, err := svc.Run(context.Background(), RunRequest{Org: "acme"})
	assert.ErrorIs(t, err, scoring.ErrUnknownSignalKind)
}
