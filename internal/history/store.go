// Package history persists scoring runs and per-repository composite scores
// in Postgres so grades can be tracked over time.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/orgaudit/orgaudit/pkg/scoring"
)

// ErrNotFound is returned when a lookup matches no rows.
var ErrNotFound = errors.New("not found")

// Store provides run and score history backed by Postgres.
type Store struct {
	db *sql.DB
}

// Run is one recorded scoring run.
type Run struct {
	ID         string    `json:"id"`
	Org        string    `json:"org"`
	Inventory  string    `json:"inventory"`
	RepoCount  int       `json:"repo_count"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// RepoScore is a repository's composite and per-signal scores in one run.
type RepoScore struct {
	RunID      string                         `json:"run_id"`
	Org        string                         `json:"org"`
	Repo       string                         `json:"repo"`
	Value      float64                        `json:"value"`
	Grade      scoring.Grade                  `json:"grade"`
	Scores     map[string]scoring.HealthScore `json:"scores"`
	RecordedAt time.Time                      `json:"recorded_at"`
}

// Open connects to the Postgres database at url.
func Open(ctx context.Context, url string) (*sql.DB, error) {
	if url == "" {
		return nil, errors.New("database url is empty")
	}
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// NewStore creates a Store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// RecordRun stores run and the scores of every repository in it atomically.
func (s *Store) RecordRun(ctx context.Context, run Run, repos []*scoring.RepoResult) error {
	if run.ID == "" || run.Org == "" {
		return errors.New("record run: id and org are required")
	}
	run.RepoCount = len(repos)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, org, inventory, repo_count, started_at, finished_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		run.ID, run.Org, run.Inventory, run.RepoCount, run.StartedAt, run.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}

	for _, rr := range repos {
		scores, err := encodeScores(rr.Scores)
		if err != nil {
			return fmt.Errorf("encode scores for %s: %w", rr.Repo, err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO repo_scores (run_id, org, repo, value, grade, scores, recorded_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			run.ID, run.Org, rr.Repo, rr.Composite.Value, string(rr.Composite.Grade), scores, run.FinishedAt,
		)
		if err != nil {
			return fmt.Errorf("insert score for %s: %w", rr.Repo, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run %s: %w", run.ID, err)
	}
	return nil
}

// ListRepos returns the most recent score of every repository of org,
// ordered by repository name.
func (s *Store) ListRepos(ctx context.Context, org string) ([]RepoScore, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT ON (repo) run_id, org, repo, value, grade, scores, recorded_at
		 FROM repo_scores WHERE org = $1
		 ORDER BY repo, recorded_at DESC`,
		org,
	)
	if err != nil {
		return nil, fmt.Errorf("list repos: %w", err)
	}
	defer rows.Close()
	return scanScores(rows)
}

// ListScoresByRepo returns up to limit scores of one repository, newest
// first. A limit of zero or less returns every score.
func (s *Store) ListScoresByRepo(ctx context.Context, org, repo string, limit int) ([]RepoScore, error) {
	query := `SELECT run_id, org, repo, value, grade, scores, recorded_at
		 FROM repo_scores WHERE org = $1 AND repo = $2
		 ORDER BY recorded_at DESC`
	args := []any{org, repo}
	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list scores for %s: %w", repo, err)
	}
	defer rows.Close()
	return scanScores(rows)
}

// LatestRun returns the most recent run of org, or ErrNotFound.
func (s *Store) LatestRun(ctx context.Context, org string) (*Run, error) {
	r := &Run{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, org, inventory, repo_count, started_at, finished_at
		 FROM runs WHERE org = $1
		 ORDER BY finished_at DESC LIMIT 1`,
		org,
	).Scan(&r.ID, &r.Org, &r.Inventory, &r.RepoCount, &r.StartedAt, &r.FinishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest run for %s: %w", org, err)
	}
	return r, nil
}

func scanScores(rows *sql.Rows) ([]RepoScore, error) {
	var out []RepoScore
	for rows.Next() {
		var (
			rs     RepoScore
			grade  string
			scores []byte
		)
		if err := rows.Scan(&rs.RunID, &rs.Org, &rs.Repo, &rs.Value, &grade, &scores, &rs.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan score: %w", err)
		}
		rs.Grade = scoring.Grade(grade)
		decoded, err := decodeScores(scores)
		if err != nil {
			return nil, fmt.Errorf("decode scores for %s: %w", rs.Repo, err)
		}
		rs.Scores = decoded
		out = append(out, rs)
	}
	return out, rows.Err()
}

func encodeScores(scores map[string]scoring.HealthScore) ([]byte, error) {
	if scores == nil {
		scores = map[string]scoring.HealthScore{}
	}
	return json.Marshal(scores)
}

func decodeScores(data []byte) (map[string]scoring.HealthScore, error) {
	out := make(map[string]scoring.HealthScore)
	if len(data) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
