package api

import (
	"net/http"
	"strconv"
)

// maxStoredLimit caps GET /recommendations/{id}/stored?limit.
const maxStoredLimit = 1000

// RecommendationsHandler serves live and stored rankings.
type RecommendationsHandler struct {
	deps RecommendationDependencies
}

// NewRecommendationsHandler creates a new recommendations handler.
func NewRecommendationsHandler(deps RecommendationDependencies) *RecommendationsHandler {
	return &RecommendationsHandler{deps: deps}
}

// HandleLive handles GET /recommendations/{id}.
func (h *RecommendationsHandler) HandleLive(w http.ResponseWriter, r *http.Request) {
	id, err := profileID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err)
		return
	}
	ranking, err := h.deps.ComputeRanking(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ranking)
}

// HandleRefresh handles POST /recommendations/{id}/refresh.
func (h *RecommendationsHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	id, err := profileID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err)
		return
	}
	ranking, err := h.deps.RefreshRecommendations(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, refreshResponse{
		TargetID: ranking.TargetID,
		Stored:   len(ranking.Entries),
		Skipped:  ranking.Skipped,
	})
}

type refreshResponse struct {
	TargetID string `json:"target_id"`
	Stored   int    `json:"stored"`
	Skipped  int    `json:"skipped"`
}

// HandleStored handles GET /recommendations/{id}/stored?limit=N.
func (h *RecommendationsHandler) HandleStored(w http.ResponseWriter, r *http.Request) {
	id, err := profileID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err)
		return
	}

	// Zero lets the service apply its default.
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxStoredLimit {
			writeError(w, http.StatusBadRequest, codeBadRequest, ErrInvalidParam)
			return
		}
		limit = n
	}

	entries, err := h.deps.StoredRecommendations(r.Context(), id, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, storedResponse{TargetID: id, Entries: entries})
}

type storedResponse struct {
	TargetID string  `json:"target_id"`
	Entries  []Entry `json:"entries"`
}
