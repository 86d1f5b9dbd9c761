// Package repository persists asynchronous recitation analyses.
package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/felipepmaragno/ramadan-companion/internal/domain"
)

type AnalysisRepository interface {
	Create(ctx context.Context, rec *domain.AnalysisRecord) error
	Get(ctx context.Context, id string) (*domain.AnalysisRecord, error)
	Complete(ctx context.Context, id string, analysis *domain.Analysis) error
	Fail(ctx context.Context, id string, reason string) error
}

type InMemoryAnalysisRepository struct {
	mu      sync.RWMutex
	records map[string]*domain.AnalysisRecord
	now     func() time.Time
}

func NewInMemoryAnalysisRepository() *InMemoryAnalysisRepository {
	return &InMemoryAnalysisRepository{
		records: make(map[string]*domain.AnalysisRecord),
		now:     time.Now,
	}
}

func (r *InMemoryAnalysisRepository) Create(ctx context.Context, rec *domain.AnalysisRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.records[rec.ID]; exists {
		return fmt.Errorf("analysis %s already exists", rec.ID)
	}

	now := r.now()
	stored := *rec
	if stored.Status == "" {
		stored.Status = domain.AnalysisPending
	}
	stored.CreatedAt = now
	stored.UpdatedAt = now
	r.records[rec.ID] = &stored

	*rec = stored
	return nil
}

func (r *InMemoryAnalysisRepository) Get(ctx context.Context, id string) (*domain.AnalysisRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[id]
	if !ok {
		return nil, fmt.Errorf("analysis %s: %w", id, domain.ErrNotFound)
	}

	out := *rec
	return &out, nil
}

func (r *InMemoryAnalysisRepository) Complete(ctx context.Context, id string, analysis *domain.Analysis) error {
	return r.update(id, func(rec *domain.AnalysisRecord) {
		rec.Status = domain.AnalysisCompleted
		rec.Analysis = analysis
		rec.Error = ""
	})
}

func (r *InMemoryAnalysisRepository) Fail(ctx context.Context, id string, reason string) error {
	return r.update(id, func(rec *domain.AnalysisRecord) {
		rec.Status = domain.AnalysisFailed
		rec.Error = reason
	})
}

func (r *InMemoryAnalysisRepository) update(id string, fn func(*domain.AnalysisRecord)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return fmt.Errorf("analysis %s: %w", id, domain.ErrNotFound)
	}

	fn(rec)
	rec.UpdatedAt = r.now()
	return nil
}
