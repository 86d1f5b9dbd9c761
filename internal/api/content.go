package api

import (
	"net/http"

	"github.com/felipepmaragno/ramadan-companion/internal/content"
)

func (h *Handler) handleDuas(w http.ResponseWriter, r *http.Request) {
	count, err := intParam(r, "count", content.DefaultDuaCount)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	duas, err := h.content.RandomDuas(count, r.URL.Query().Get("category"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"duas":       duas,
		"categories": content.DuaCategories(),
	})
}

func (h *Handler) handleInspirations(w http.ResponseWriter, r *http.Request) {
	count, err := intParam(r, "count", content.DefaultInspirationCount)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"inspirations": h.content.MultipleInspirations(count),
	})
}

// handleDailyInspiration keeps the same pick for a given seed so a client
// session does not reshuffle on every reload.
func (h *Handler) handleDailyInspiration(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.content.RandomInspiration(r.URL.Query().Get("seed")))
}
