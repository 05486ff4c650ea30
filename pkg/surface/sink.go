package surface

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/orgaudit/orgaudit/pkg/report"
	"github.com/orgaudit/orgaudit/pkg/scoring"
)

// ReportWriter stores one named report artifact of a run.
type ReportWriter interface {
	PutReport(ctx context.Context, org, runID, name string, data []byte) error
}

// CompositeRecord is one entry of composite.json.
type CompositeRecord struct {
	Repo      string                         `json:"repo"`
	Composite scoring.CompositeScore         `json:"composite"`
	Scores    map[string]scoring.HealthScore `json:"scores"`
}

// StorageSink buffers the rows and composites of a run and writes them out
// on Flush: <table>.json and <table>.csv per table plus composite.json.
type StorageSink struct {
	writer ReportWriter
	org    string
	runID  string

	mu         sync.Mutex
	order      []string
	headers    map[string][]string
	rows       map[string][]report.Row
	composites []CompositeRecord
}

// NewStorageSink creates a sink writing under org/runID.
func NewStorageSink(w ReportWriter, org, runID string) *StorageSink {
	return &StorageSink{
		writer:  w,
		org:     org,
		runID:   runID,
		headers: make(map[string][]string),
		rows:    make(map[string][]report.Row),
	}
}

// DeclareTable records the column order used for table's CSV.
func (s *StorageSink) DeclareTable(table string, header []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.headers[table] = append([]string(nil), header...)
}

// EmitRow buffers an accepted row.
func (s *StorageSink) EmitRow(table string, row report.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[table]; !ok {
		s.order = append(s.order, table)
	}
	s.rows[table] = append(s.rows[table], row)
	return nil
}

// EmitRepositoryComposite buffers a repository's final scores.
func (s *StorageSink) EmitRepositoryComposite(repo string, composite scoring.CompositeScore, scores map[string]scoring.HealthScore) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := make(map[string]scoring.HealthScore, len(scores))
	for k, v := range scores {
		copied[k] = v
	}
	s.composites = append(s.composites, CompositeRecord{Repo: repo, Composite: composite, Scores: copied})
	return nil
}

// Tables returns the names of tables with buffered rows, in first-emitted
// order.
func (s *StorageSink) Tables() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order...)
}

// Flush writes every buffered artifact and returns the names written.
func (s *StorageSink) Flush(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var written []string
	put := func(name string, data []byte) error {
		if err := s.writer.PutReport(ctx, s.org, s.runID, name, data); err != nil {
			return fmt.Errorf("writing %s: %w", name, err)
		}
		written = append(written, name)
		return nil
	}

	for _, table := range s.order {
		rows := s.rows[table]
		data, err := json.MarshalIndent(rows, "", "  ")
		if err != nil {
			return written, fmt.Errorf("encoding %s: %w", table, err)
		}
		if err := put(table+".json", data); err != nil {
			return written, err
		}
		csvData, err := EncodeCSV(s.headers[table], rows)
		if err != nil {
			return written, fmt.Errorf("encoding %s: %w", table, err)
		}
		if err := put(table+".csv", csvData); err != nil {
			return written, err
		}
	}

	data, err := json.MarshalIndent(s.composites, "", "  ")
	if err != nil {
		return written, fmt.Errorf("encoding composites: %w", err)
	}
	if err := put("composite.json", data); err != nil {
		return written, err
	}
	return written, nil
}

// EncodeCSV writes rows as CSV with the given column order. Without a
// header, columns are the sorted field names of the first row.
func EncodeCSV(header []string, rows []report.Row) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if len(rows) == 0 {
		w.Flush()
		return buf.Bytes(), w.Error()
	}

	columns := header
	if len(columns) == 0 {
		columns = make([]string, 0, len(rows[0]))
		for k := range rows[0] {
			columns = append(columns, k)
		}
		sort.Strings(columns)
	}

	if err := w.Write(columns); err != nil {
		return nil, err
	}
	record := make([]string, len(columns))
	for _, r := range rows {
		for i, c := range columns {
			record[i] = report.Stringify(r[c])
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}
