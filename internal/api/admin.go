package api

import (
	"log/slog"
	"net/http"

	"github.com/felipepmaragno/ramadan-companion/internal/circuitbreaker"
	"github.com/felipepmaragno/ramadan-companion/internal/gemini"
)

// AdminHandler exposes the key pool to operators. It never returns key
// material, only fingerprints.
type AdminHandler struct {
	pool     *gemini.Pool
	breakers *circuitbreaker.Manager
	mux      *http.ServeMux
}

func NewAdminHandler(pool *gemini.Pool, breakers *circuitbreaker.Manager) *AdminHandler {
	h := &AdminHandler{
		pool:     pool,
		breakers: breakers,
		mux:      http.NewServeMux(),
	}

	h.mux.HandleFunc("GET /admin/credentials", h.listCredentials)
	h.mux.HandleFunc("POST /admin/credentials/cursor/reset", h.resetCursor)

	return h
}

func (h *AdminHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

type credentialView struct {
	Index       int    `json:"index"`
	Fingerprint string `json:"fingerprint"`
}

func (h *AdminHandler) listCredentials(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	fps := h.pool.Fingerprints()
	creds := make([]credentialView, len(fps))
	for i, fp := range fps {
		creds[i] = credentialView{Index: i, Fingerprint: fp}
	}

	resp := map[string]any{
		"size":        h.pool.Size(),
		"credentials": creds,
	}

	if pos, err := h.pool.Position(ctx); err != nil {
		slog.Warn("failed to read cursor position", "error", err)
		resp["cursor_error"] = err.Error()
	} else {
		resp["cursor"] = pos
	}

	if h.breakers != nil {
		resp["circuit_breakers"] = h.breakers.States(ctx)
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *AdminHandler) resetCursor(w http.ResponseWriter, r *http.Request) {
	if err := h.pool.Reset(r.Context()); err != nil {
		slog.Error("failed to reset cursor", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to reset cursor")
		return
	}

	slog.Info("credential cursor reset", "request_id", requestIDFrom(r.Context()))
	writeJSON(w, http.StatusOK, map[string]any{"cursor": 0})
}
