// Package notifications tells operators when the Gemini key pool runs dry
// or background analyses fail.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
)

type Type string

const (
	TypePoolExhausted  Type = "pool_exhausted"
	TypeAnalysisFailed Type = "analysis_failed"
)

type Notification struct {
	Type       Type           `json:"type"`
	Message    string         `json:"message"`
	Data       map[string]any `json:"data,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

type Notifier interface {
	Send(ctx context.Context, n Notification) error
}

// SNSAPI is the subset of the SNS client in use.
type SNSAPI interface {
	Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type SNSNotifier struct {
	api      SNSAPI
	topicARN string
}

func NewSNSNotifier(ctx context.Context, region, topicARN string) (*SNSNotifier, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewSNSNotifierWithClient(sns.NewFromConfig(cfg), topicARN), nil
}

func NewSNSNotifierWithClient(api SNSAPI, topicARN string) *SNSNotifier {
	return &SNSNotifier{api: api, topicARN: topicARN}
}

func (s *SNSNotifier) Send(ctx context.Context, n Notification) error {
	if n.OccurredAt.IsZero() {
		n.OccurredAt = time.Now().UTC()
	}

	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	_, err = s.api.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(s.topicARN),
		Subject:  aws.String("ramadan-companion: " + string(n.Type)),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]snstypes.MessageAttributeValue{
			"Type": {
				DataType:    aws.String("String"),
				StringValue: aws.String(string(n.Type)),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}

	slog.Info("notification published", "type", n.Type)
	return nil
}

// InMemoryNotifier records notifications; used when no topic is set and in
// tests.
type InMemoryNotifier struct {
	mu   sync.Mutex
	sent []Notification
}

func NewInMemoryNotifier() *InMemoryNotifier {
	return &InMemoryNotifier{}
}

func (m *InMemoryNotifier) Send(ctx context.Context, n Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sent = append(m.sent, n)
	slog.Info("notification recorded", "type", n.Type, "message", n.Message)
	return nil
}

func (m *InMemoryNotifier) Sent() []Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Notification(nil), m.sent...)
}

// Throttled drops repeats of the same notification type while dedup holds a
// claim on it, so a burst of exhausted dispatches produces one alert.
type Throttled struct {
	next  Notifier
	dedup Deduplicator
}

func NewThrottled(next Notifier, dedup Deduplicator) *Throttled {
	return &Throttled{next: next, dedup: dedup}
}

func (t *Throttled) Send(ctx context.Context, n Notification) error {
	if !t.dedup.ShouldSend(ctx, n.Type) {
		slog.Debug("notification suppressed", "type", n.Type)
		return nil
	}
	return t.next.Send(ctx, n)
}
