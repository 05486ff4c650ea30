package api

import (
	"compress/gzip"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"regexp"

	"github.com/google/uuid"

	"github.com/orgaudit/orgaudit/internal/ingestion"
)

var namePattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

var (
	// maxUploadBytes caps the request body as sent, compressed or not.
	maxUploadBytes int64 = 10 << 20
	// maxInventoryBytes caps the decoded inventory document.
	maxInventoryBytes int64 = 64 << 20
)

func tooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}

func validName(s string) bool {
	return namePattern.MatchString(s) && s != "." && s != ".."
}

type runRequest struct {
	Org       string `json:"org"`
	Inventory string `json:"inventory"`
}

type runResponse struct {
	RunID      string            `json:"run_id"`
	Org        string            `json:"org"`
	Inventory  string            `json:"inventory"`
	StartedAt  string            `json:"started_at"`
	FinishedAt string            `json:"finished_at"`
	Reports    []string          `json:"reports"`
	Repos      []runRepoResponse `json:"repos"`
	// Warning reports a failure after the reports were stored, such as
	// history being unavailable.
	Warning string `json:"warning,omitempty"`
}

type runRepoResponse struct {
	Repo  string  `json:"repo"`
	Value float64 `json:"value"`
	Grade string  `json:"grade"`
}

// handleUploadInventory handles POST /api/v1/inventories: stores an
// inventory document for the org it names. The name defaults to a new
// UUID; ?name=latest replaces the default inventory.
func (h *Handler) handleUploadInventory(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	var body io.Reader = r.Body
	if r.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(r.Body)
		if err != nil {
			if tooLarge(err) {
				writeError(w, http.StatusRequestEntityTooLarge, "inventory too large")
				return
			}
			writeError(w, http.StatusBadRequest, "invalid gzip body: "+err.Error())
			return
		}
		defer gz.Close()
		body = gz
	}

	data, err := io.ReadAll(io.LimitReader(body, maxInventoryBytes+1))
	if err != nil {
		if tooLarge(err) {
			writeError(w, http.StatusRequestEntityTooLarge, "inventory too large")
			return
		}
		writeError(w, http.StatusBadRequest, "failed to read body: "+err.Error())
		return
	}
	if int64(len(data)) > maxInventoryBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "inventory too large")
		return
	}

	inv, err := ingestion.ParseInventory(data)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid inventory: "+err.Error())
		return
	}
	if !checkOrg(w, inv.Org) {
		return
	}

	name := r.URL.Query().Get("name")
	if name == "" {
		name = uuid.NewString()
	}
	if !validName(name) {
		writeError(w, http.StatusBadRequest, "invalid inventory name")
		return
	}

	if err := h.storage.PutInventory(r.Context(), inv.Org, name, data); err != nil {
		h.log.WithError(err).WithField("org", inv.Org).Error("store inventory")
		writeError(w, http.StatusInternalServerError, "failed to store inventory")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"org":       inv.Org,
		"inventory": name,
		"repos":     len(inv.Repos),
	})
}

// handleRun handles POST /api/v1/runs: scores a stored inventory.
func (h *Handler) handleRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
	}
	if req.Org == "" {
		req.Org = r.URL.Query().Get("org")
	}
	if req.Org == "" {
		req.Org = h.org
	}
	if !checkOrg(w, req.Org) {
		return
	}
	if req.Inventory != "" && !validName(req.Inventory) {
		writeError(w, http.StatusBadRequest, "invalid inventory name")
		return
	}

	out, err := h.runner.Run(r.Context(), ingestion.RunRequest{Org: req.Org, Inventory: req.Inventory})
	if err != nil {
		h.log.WithError(err).WithField("org", req.Org).Error("scoring run failed")
		if out == nil {
			writeError(w, http.StatusInternalServerError, "scoring run failed: "+err.Error())
			return
		}
	}

	resp := runResponse{
		RunID:      out.RunID,
		Org:        out.Org,
		Inventory:  out.Inventory,
		StartedAt:  out.StartedAt.UTC().Format("2006-01-02T15:04:05Z"),
		FinishedAt: out.FinishedAt.UTC().Format("2006-01-02T15:04:05Z"),
		Reports:    out.Reports,
		Repos:      []runRepoResponse{},
	}
	if err != nil {
		resp.Warning = err.Error()
	}
	for _, rr := range out.Result.Repos {
		resp.Repos = append(resp.Repos, runRepoResponse{
			Repo:  rr.Repo,
			Value: rr.Composite.Value,
			Grade: string(rr.Composite.Grade),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
