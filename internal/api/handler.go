// Package api implements the orgaudit REST API: read endpoints over run
// history and stored reports, plus auth-protected endpoints to upload an
// inventory and trigger a scoring run.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/orgaudit/orgaudit/internal/history"
	"github.com/orgaudit/orgaudit/internal/ingestion"
)

// HistoryReader is the read side of the history store.
type HistoryReader interface {
	ListRepos(ctx context.Context, org string) ([]history.RepoScore, error)
	ListScoresByRepo(ctx context.Context, org, repo string, limit int) ([]history.RepoScore, error)
	LatestRun(ctx context.Context, org string) (*history.Run, error)
}

// Runner executes scoring runs. *ingestion.Service implements it.
type Runner interface {
	Run(ctx context.Context, req ingestion.RunRequest) (*ingestion.RunResult, error)
}

// Handler is the top-level API handler for the orgaudit service.
type Handler struct {
	org     string
	history HistoryReader
	runner  Runner
	storage ingestion.StorageClient
	cache   *ReportCache
	log     logrus.FieldLogger
}

// NewHandler creates a new API handler. org is the organization served when
// a request does not name one with ?org=.
func NewHandler(org string, hist HistoryReader, runner Runner, storage ingestion.StorageClient, cache *ReportCache, log logrus.FieldLogger) *Handler {
	if cache == nil {
		cache = NewReportCacheFromEnv()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{
		org:     org,
		history: hist,
		runner:  runner,
		storage: storage,
		cache:   cache,
		log:     log,
	}
}

// RegisterRoutes registers all API routes on the given ServeMux. Write
// endpoints require apiKey when it is set.
func (h *Handler) RegisterRoutes(mux *http.ServeMux, apiKey string) {
	auth := APIKeyAuth(apiKey)

	// Write endpoints (auth-protected)
	mux.Handle("POST /api/v1/inventories", auth(http.HandlerFunc(h.handleUploadInventory)))
	mux.Handle("POST /api/v1/runs", auth(http.HandlerFunc(h.handleRun)))

	// Read endpoints
	mux.HandleFunc("GET /api/repos", h.handleListRepos)
	mux.HandleFunc("GET /api/repos/{repo}/scores", h.handleListScores)
	mux.HandleFunc("GET /api/runs/latest", h.handleLatestRun)
	mux.HandleFunc("GET /api/runs/{runID}/reports/{name}", h.handleGetReport)
}

// orgFor resolves the request's org from ?org= or the handler default and
// writes a 400 when it is missing or not a plain name.
func (h *Handler) orgFor(w http.ResponseWriter, r *http.Request) (string, bool) {
	org := r.URL.Query().Get("org")
	if org == "" {
		org = h.org
	}
	return org, checkOrg(w, org)
}

func checkOrg(w http.ResponseWriter, org string) bool {
	switch {
	case org == "":
		writeError(w, http.StatusBadRequest, "org is required")
		return false
	case !validName(org):
		writeError(w, http.StatusBadRequest, "invalid org name")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
