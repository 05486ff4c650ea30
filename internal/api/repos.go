package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/orgaudit/orgaudit/internal/history"
	"github.com/orgaudit/orgaudit/pkg/scoring"
)

type scoreResponse struct {
	RunID      string                         `json:"run_id"`
	Repo       string                         `json:"repo"`
	Value      float64                        `json:"value"`
	Grade      scoring.Grade                  `json:"grade"`
	Scores     map[string]scoring.HealthScore `json:"scores"`
	RecordedAt string                         `json:"recorded_at"`
}

func scoreToResponse(rs history.RepoScore) scoreResponse {
	scores := rs.Scores
	if scores == nil {
		scores = map[string]scoring.HealthScore{}
	}
	return scoreResponse{
		RunID:      rs.RunID,
		Repo:       rs.Repo,
		Value:      rs.Value,
		Grade:      rs.Grade,
		Scores:     scores,
		RecordedAt: rs.RecordedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
}

func scoresToResponse(in []history.RepoScore) []scoreResponse {
	out := make([]scoreResponse, 0, len(in))
	for _, rs := range in {
		out = append(out, scoreToResponse(rs))
	}
	return out
}

func (h *Handler) handleListRepos(w http.ResponseWriter, r *http.Request) {
	org, ok := h.orgFor(w, r)
	if !ok {
		return
	}

	repos, err := h.history.ListRepos(r.Context(), org)
	if err != nil {
		h.log.WithError(err).WithField("org", org).Error("list repos")
		writeError(w, http.StatusInternalServerError, "failed to list repositories")
		return
	}
	writeJSON(w, http.StatusOK, scoresToResponse(repos))
}

func (h *Handler) handleListScores(w http.ResponseWriter, r *http.Request) {
	org, ok := h.orgFor(w, r)
	if !ok {
		return
	}
	repo := r.PathValue("repo")

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	scores, err := h.history.ListScoresByRepo(r.Context(), org, repo, limit)
	if err != nil {
		h.log.WithError(err).WithField("repo", repo).Error("list scores")
		writeError(w, http.StatusInternalServerError, "failed to list scores")
		return
	}
	if len(scores) == 0 {
		writeError(w, http.StatusNotFound, "no scores for repository")
		return
	}
	writeJSON(w, http.StatusOK, scoresToResponse(scores))
}

func (h *Handler) handleLatestRun(w http.ResponseWriter, r *http.Request) {
	org, ok := h.orgFor(w, r)
	if !ok {
		return
	}

	run, err := h.history.LatestRun(r.Context(), org)
	if errors.Is(err, history.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no runs recorded")
		return
	}
	if err != nil {
		h.log.WithError(err).WithField("org", org).Error("latest run")
		writeError(w, http.StatusInternalServerError, "failed to load latest run")
		return
	}
	writeJSON(w, http.StatusOK, run)
}
