package ingestion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/orgaudit/orgaudit/internal/history"
	"github.com/orgaudit/orgaudit/pkg/config"
	"github.com/orgaudit/orgaudit/pkg/scoring"
	"github.com/orgaudit/orgaudit/pkg/surface"
)

// DefaultInventory is the inventory name read when a request names none.
const DefaultInventory = "latest"

// RunRecorder persists the outcome of a run. *history.Store implements it.
type RunRecorder interface {
	RecordRun(ctx context.Context, run history.Run, repos []*scoring.RepoResult) error
}

// RunRequest describes what to score.
type RunRequest struct {
	Org       string
	Inventory string
}

// RunResult is the outcome of Service.Run.
type RunResult struct {
	RunID      string
	Org        string
	Inventory  string
	StartedAt  time.Time
	FinishedAt time.Time
	// Reports lists the artifact names written under the run.
	Reports []string
	Result  *scoring.Result
}

// Service orchestrates a scoring run: load the inventory, grade it, store
// the reports and record the scores.
type Service struct {
	storage  StorageClient
	recorder RunRecorder
	cfg      *config.Config
	log      logrus.FieldLogger
	now      func() time.Time
}

// NewService creates a new run Service. recorder may be nil, in which case
// runs are not recorded in history.
func NewService(storage StorageClient, recorder RunRecorder, cfg *config.Config, log logrus.FieldLogger) *Service {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{
		storage:  storage,
		recorder: recorder,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
	}
}

// LoadInventory fetches and decodes an inventory from storage.
func (s *Service) LoadInventory(ctx context.Context, org, name string) (*Inventory, error) {
	if name == "" {
		name = DefaultInventory
	}
	data, err := s.storage.GetInventory(ctx, org, name)
	if err != nil {
		return nil, fmt.Errorf("get inventory %s/%s: %w", org, name, err)
	}
	inv, err := ParseInventory(data)
	if err != nil {
		return nil, fmt.Errorf("inventory %s/%s: %w", org, name, err)
	}
	if inv.Org != org {
		return nil, fmt.Errorf("inventory %s/%s belongs to org %q", org, name, inv.Org)
	}
	return inv, nil
}

// Run scores one inventory end to end.
func (s *Service) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	if req.Org == "" {
		return nil, errors.New("run: org is required")
	}
	if req.Inventory == "" {
		req.Inventory = DefaultInventory
	}

	inv, err := s.LoadInventory(ctx, req.Org, req.Inventory)
	if err != nil {
		return nil, err
	}
	return s.Score(ctx, inv, req.Inventory)
}

// Score grades an already loaded inventory, stores its reports and records
// the run. inventory names the source in history.
func (s *Service) Score(ctx context.Context, inv *Inventory, inventory string) (*RunResult, error) {
	compiled, err := s.cfg.Compile()
	if err != nil {
		return nil, fmt.Errorf("compile config: %w", err)
	}

	runID := uuid.NewString()
	log := s.log.WithFields(logrus.Fields{"org": inv.Org, "run": runID})

	signals, err := scoring.BuildAll(compiled.Signals, scoring.BuildOptions{
		UniformMajorGrade: compiled.UniformMajorGrade,
		Log:               log,
	})
	if err != nil {
		return nil, fmt.Errorf("build signals: %w", err)
	}

	started := s.now()
	if compiled.StaleAfter > 0 {
		inv.MarkStale(started, compiled.StaleAfter)
	}

	engine := scoring.NewEngine(scoring.Options{
		Exceptions:       compiled.Exceptions,
		FilterExceptions: compiled.FilterExceptions,
		Log:              log,
	}, signals...)

	sink := surface.NewStorageSink(s.storage, inv.Org, runID)
	result := engine.Run(inv, sink)

	reports, err := sink.Flush(ctx)
	if err != nil {
		return nil, fmt.Errorf("store reports: %w", err)
	}
	finished := s.now()

	out := &RunResult{
		RunID:      runID,
		Org:        inv.Org,
		Inventory:  inventory,
		StartedAt:  started,
		FinishedAt: finished,
		Reports:    reports,
		Result:     result,
	}

	if s.recorder != nil {
		err := s.recorder.RecordRun(ctx, history.Run{
			ID:         runID,
			Org:        inv.Org,
			Inventory:  inventory,
			StartedAt:  started,
			FinishedAt: finished,
		}, result.Repos)
		if err != nil {
			return out, fmt.Errorf("record run: %w", err)
		}
	}

	log.WithFields(logrus.Fields{
		"repos":   len(result.Repos),
		"reports": len(reports),
	}).Info("scoring run complete")
	return out, nil
}
