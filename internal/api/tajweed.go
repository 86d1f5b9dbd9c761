package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/felipepmaragno/ramadan-companion/internal/domain"
	"github.com/felipepmaragno/ramadan-companion/internal/queue"
	"github.com/felipepmaragno/ramadan-companion/internal/tajweed"
	"github.com/google/uuid"
)

const (
	// Base64 audio plus JSON framing.
	maxAnalyzeBody = 30 << 20
	maxChatBody    = 64 << 10
)

func (h *Handler) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req domain.RecitationRequest
	if err := decodeBody(w, r, maxAnalyzeBody, &req); err != nil {
		writeBodyError(w, err)
		return
	}

	analysis, err := h.tajweed.Analyze(r.Context(), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"analysis": analysis,
	})
}

func (h *Handler) handleAnalyzeAsync(w http.ResponseWriter, r *http.Request) {
	if h.queue == nil || h.analyses == nil {
		writeError(w, http.StatusServiceUnavailable, "background analysis is not enabled")
		return
	}

	var req domain.RecitationRequest
	if err := decodeBody(w, r, maxAnalyzeBody, &req); err != nil {
		writeBodyError(w, err)
		return
	}
	if err := tajweed.Validate(req); err != nil {
		writeDomainError(w, r, err)
		return
	}

	ctx := r.Context()
	rec := &domain.AnalysisRecord{
		ID:          uuid.New().String(),
		Status:      domain.AnalysisPending,
		SurahNumber: req.SurahNumber,
		AyahRange:   req.AyahRange,
	}
	if err := h.analyses.Create(ctx, rec); err != nil {
		writeDomainError(w, r, err)
		return
	}

	job := queue.Job{ID: rec.ID, Request: req, EnqueuedAt: time.Now().UTC()}
	if err := h.queue.Enqueue(ctx, job); err != nil {
		if ferr := h.analyses.Fail(ctx, rec.ID, "could not be queued"); ferr != nil {
			slog.Error("mark unqueued analysis failed", "id", rec.ID, "error", ferr)
		}
		writeDomainError(w, r, err)
		return
	}

	slog.Info("analysis queued", "id", rec.ID, "request_id", requestIDFrom(ctx))

	w.Header().Set("Location", "/api/tajweed/analyses/"+rec.ID)
	writeJSON(w, http.StatusAccepted, map[string]any{
		"id":     rec.ID,
		"status": rec.Status,
	})
}

func (h *Handler) handleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	if h.analyses == nil {
		writeError(w, http.StatusServiceUnavailable, "background analysis is not enabled")
		return
	}

	rec, err := h.analyses.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var req domain.ChatRequest
	if err := decodeBody(w, r, maxChatBody, &req); err != nil {
		writeBodyError(w, err)
		return
	}

	reply, err := h.tajweed.Chat(r.Context(), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Success bool `json:"success"`
		*domain.ChatReply
	}{Success: true, ChatReply: reply})
}

func (h *Handler) handleRules(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"rules":      tajweed.Rules(),
		"severities": tajweed.Severities(),
	})
}

func (h *Handler) handlePracticeSurahs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"surahs": tajweed.PracticeSurahs(r.URL.Query().Get("difficulty")),
	})
}
