package api

import (
	"net/http"

	"github.com/felipepmaragno/ramadan-companion/internal/location"
	"github.com/felipepmaragno/ramadan-companion/internal/quran"
)

func (h *Handler) handleSurahs(w http.ResponseWriter, r *http.Request) {
	surahs, err := h.quran.Surahs(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"surahs": surahs, "count": len(surahs)})
}

func (h *Handler) handleFeaturedSurahs(w http.ResponseWriter, r *http.Request) {
	surahs, err := h.quran.Featured(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"surahs": surahs})
}

func (h *Handler) handleSurah(w http.ResponseWriter, r *http.Request) {
	n, err := quran.ParseNumber(r.PathValue("number"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	detail, err := h.quran.Surah(r.Context(), n)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *Handler) handleSurahAudio(w http.ResponseWriter, r *http.Request) {
	n, err := quran.ParseNumber(r.PathValue("number"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	audio, err := h.quran.Audio(r.Context(), n)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, audio)
}

func (h *Handler) handleQuranSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	res, err := h.quran.Search(r.Context(), q.Get("q"), q.Get("edition"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleCities(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"cities":  location.Cities(),
		"default": location.Default(),
	})
}

func (h *Handler) handleCity(w http.ResponseWriter, r *http.Request) {
	city, ok := location.FindCity(r.PathValue("name"))
	if !ok {
		writeError(w, http.StatusNotFound, "city not found")
		return
	}
	writeJSON(w, http.StatusOK, city)
}
