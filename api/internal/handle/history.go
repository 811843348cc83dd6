package handle

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"algo-viz/api/internal/store"
)

func (h *Handle) Generations(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(w, http.StatusNotFound, "history is disabled")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit > 200 {
		limit = 200
	}
	rows, err := h.history.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if rows == nil {
		rows = []store.Generation{}
	}
	writeJSON(w, http.StatusOK, rows)
}

func (h *Handle) Generation(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(w, http.StatusNotFound, "history is disabled")
		return
	}
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/generations/"), "/")
	if id == "" {
		h.Generations(w, r)
		return
	}
	g, err := h.history.Get(r.Context(), id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "generation "+id+" not found")
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusOK, g)
	}
}
