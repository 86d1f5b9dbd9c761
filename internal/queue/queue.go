// Package queue carries recitation analysis jobs from the HTTP handler to
// background workers.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/felipepmaragno/ramadan-companion/internal/domain"
)

type Job struct {
	ID         string                   `json:"id"`
	Request    domain.RecitationRequest `json:"request"`
	EnqueuedAt time.Time                `json:"enqueued_at"`
}

// Message is a received job plus the handle needed to acknowledge it.
type Message struct {
	Job           Job
	ReceiptHandle string
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	// Receive blocks for up to the backend's wait time and returns at most
	// max messages. An empty result is not an error.
	Receive(ctx context.Context, max int) ([]Message, error)
	Delete(ctx context.Context, receiptHandle string) error
}

func decodeJob(body string) (Job, error) {
	var job Job
	if err := json.Unmarshal([]byte(body), &job); err != nil {
		return Job{}, fmt.Errorf("decode job: %w", err)
	}
	return job, nil
}

// InMemoryQueue is a process-local queue. Received messages stay in flight
// until deleted or until the visibility timeout returns them to the queue.
type InMemoryQueue struct {
	mu         sync.Mutex
	pending    []Job
	inFlight   map[string]inFlightJob
	nextHandle int
	visibility time.Duration
	wait       time.Duration
	notify     chan struct{}
}

type inFlightJob struct {
	job       Job
	visibleAt time.Time
}

func NewInMemoryQueue() *InMemoryQueue {
	return &InMemoryQueue{
		inFlight:   make(map[string]inFlightJob),
		visibility: 5 * time.Minute,
		wait:       time.Second,
		notify:     make(chan struct{}, 1),
	}
}

func (q *InMemoryQueue) Enqueue(ctx context.Context, job Job) error {
	q.mu.Lock()
	q.pending = append(q.pending, job)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return nil
}

func (q *InMemoryQueue) Receive(ctx context.Context, max int) ([]Message, error) {
	if msgs := q.take(max); len(msgs) > 0 {
		return msgs, nil
	}

	timer := time.NewTimer(q.wait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, nil
	case <-q.notify:
		return q.take(max), nil
	}
}

func (q *InMemoryQueue) take(max int) []Message {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now()
	for handle, f := range q.inFlight {
		if now.After(f.visibleAt) {
			slog.Warn("analysis job visibility expired, requeueing", "job_id", f.job.ID)
			q.pending = append(q.pending, f.job)
			delete(q.inFlight, handle)
		}
	}

	n := min(max, len(q.pending))
	msgs := make([]Message, 0, n)
	for _, job := range q.pending[:n] {
		q.nextHandle++
		handle := strconv.Itoa(q.nextHandle)
		q.inFlight[handle] = inFlightJob{job: job, visibleAt: now.Add(q.visibility)}
		msgs = append(msgs, Message{Job: job, ReceiptHandle: handle})
	}
	q.pending = q.pending[n:]

	return msgs
}

func (q *InMemoryQueue) Delete(ctx context.Context, receiptHandle string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.inFlight[receiptHandle]; !ok {
		return fmt.Errorf("unknown receipt handle %q", receiptHandle)
	}
	delete(q.inFlight, receiptHandle)
	return nil
}

// Len reports queued plus in-flight jobs.
func (q *InMemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending) + len(q.inFlight)
}
