package api

import "net/http"

// PlacesHandler resolves place names.
type PlacesHandler struct {
	deps PlaceDependencies
}

// NewPlacesHandler creates a new places handler.
func NewPlacesHandler(deps PlaceDependencies) *PlacesHandler {
	return &PlacesHandler{deps: deps}
}

// HandleResolve handles GET /places?name=... . The first lookup of a name
// geocodes and stores it.
func (h *PlacesHandler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	name, err := queryString(r, "name")
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err)
		return
	}
	place, err := h.deps.ResolvePlace(r.Context(), name)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, place)
}
