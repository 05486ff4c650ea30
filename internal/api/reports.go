package api

import (
	"net/http"

	"github.com/orgaudit/orgaudit/internal/ingestion"
)

// handleGetReport serves one stored artifact of a run, for example
// composite.json or branches.csv.
func (h *Handler) handleGetReport(w http.ResponseWriter, r *http.Request) {
	org, ok := h.orgFor(w, r)
	if !ok {
		return
	}
	runID := r.PathValue("runID")
	name := r.PathValue("name")
	if !validName(runID) || !validName(name) {
		writeError(w, http.StatusBadRequest, "invalid report reference")
		return
	}

	key := org + "/" + runID + "/" + name
	data := h.cache.Get(key)
	if data == nil {
		var err error
		data, err = h.storage.GetReport(r.Context(), org, runID, name)
		if err != nil {
			writeError(w, http.StatusNotFound, "report not found")
			return
		}
		h.cache.Put(key, data)
	}

	w.Header().Set("Content-Type", ingestion.ContentType(name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
