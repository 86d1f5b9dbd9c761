// Package tajweed turns recorded recitations and student questions into
// Gemini prompts and shapes the answers for the companion app.
package tajweed

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/felipepmaragno/ramadan-companion/internal/domain"
	"github.com/felipepmaragno/ramadan-companion/internal/gemini"
	"github.com/felipepmaragno/ramadan-companion/internal/notifications"
)

const (
	defaultAudioMimeType = "audio/webm"

	// Gemini rejects inline payloads above 20MB.
	maxAudioBytes     = 20 << 20
	maxMessageRunes   = 2000
	analysisMaxTokens = 4096
	chatMaxTokens     = 1024
)

var (
	analysisTemperature = 0.2
	chatTemperature     = 0.5
)

// Generator is the part of the dispatcher the service needs.
type Generator interface {
	Dispatch(ctx context.Context, parts []domain.Part, cfg *domain.GenerationConfig) (gemini.Result, error)
}

type Service struct {
	gen      Generator
	notifier notifications.Notifier
}

// NewService builds a Service. notifier may be nil.
func NewService(gen Generator, notifier notifications.Notifier) *Service {
	return &Service{gen: gen, notifier: notifier}
}

// Analyze scores one recitation. The audio may be raw base64 or a data URL,
// in which case its MIME type is used instead of audio/webm.
func (s *Service) Analyze(ctx context.Context, req domain.RecitationRequest) (*domain.Analysis, error) {
	mimeType, data, err := validate(req)
	if err != nil {
		return nil, err
	}

	prompt, err := buildAnalysisPrompt(req)
	if err != nil {
		return nil, fmt.Errorf("build analysis prompt: %w", err)
	}

	maxTokens := analysisMaxTokens
	result, err := s.gen.Dispatch(ctx,
		[]domain.Part{domain.InlinePart(mimeType, data), domain.TextPart(prompt)},
		&domain.GenerationConfig{Temperature: &analysisTemperature, MaxOutputTokens: &maxTokens},
	)
	if err != nil {
		s.notifyExhausted(ctx, "analyze", err)
		return nil, fmt.Errorf("analyze recitation: %w", err)
	}

	if result.Kind == gemini.ResultRawText {
		return &domain.Analysis{RawResponse: result.RawText}, nil
	}

	var analysis domain.Analysis
	if err := result.Decode(&analysis); err != nil {
		slog.Warn("analysis payload did not match expected shape", "error", err)
		return &domain.Analysis{RawResponse: string(result.Structured)}, nil
	}

	normalizeAnalysis(&analysis)
	return &analysis, nil
}

// Chat answers a follow-up question, optionally in the context of the
// student's last analysis.
func (s *Service) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatReply, error) {
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		return nil, fmt.Errorf("%w: No message provided", domain.ErrInvalidRequest)
	}
	if utf8.RuneCountInString(req.Message) > maxMessageRunes {
		return nil, fmt.Errorf("%w: message longer than %d characters", domain.ErrInvalidRequest, maxMessageRunes)
	}

	prompt, err := buildChatPrompt(req)
	if err != nil {
		return nil, fmt.Errorf("build chat prompt: %w", err)
	}

	maxTokens := chatMaxTokens
	result, err := s.gen.Dispatch(ctx,
		[]domain.Part{domain.TextPart(prompt)},
		&domain.GenerationConfig{Temperature: &chatTemperature, MaxOutputTokens: &maxTokens},
	)
	if err != nil {
		s.notifyExhausted(ctx, "chat", err)
		return nil, fmt.Errorf("tajweed chat: %w", err)
	}

	if result.Kind == gemini.ResultRawText {
		return &domain.ChatReply{RawResponse: result.RawText}, nil
	}

	var reply domain.ChatReply
	if err := result.Decode(&reply); err != nil {
		slog.Warn("chat payload did not match expected shape", "error", err)
		return &domain.ChatReply{RawResponse: string(result.Structured)}, nil
	}
	return &reply, nil
}

func (s *Service) notifyExhausted(ctx context.Context, operation string, err error) {
	if s.notifier == nil || !errors.Is(err, domain.ErrKeysExhausted) {
		return
	}

	n := notifications.Notification{
		Type:    notifications.TypePoolExhausted,
		Message: "every Gemini API key was rate limited",
		Data:    map[string]any{"operation": operation},
	}
	var exhausted *gemini.ExhaustedError
	if errors.As(err, &exhausted) {
		n.Data["attempts"] = exhausted.Attempts
	}

	if nerr := s.notifier.Send(ctx, n); nerr != nil {
		slog.Error("failed to send pool exhausted notification", "error", nerr)
	}
}

// Validate checks a recitation request without dispatching it.
func Validate(req domain.RecitationRequest) error {
	_, _, err := validate(req)
	return err
}

func validate(req domain.RecitationRequest) (mimeType, data string, err error) {
	mimeType, data, err = parseAudio(req.AudioBase64)
	if err != nil {
		return "", "", err
	}
	if req.SurahNumber != 0 && (req.SurahNumber < 1 || req.SurahNumber > 114) {
		return "", "", fmt.Errorf("%w: surah number %d out of range", domain.ErrInvalidRequest, req.SurahNumber)
	}
	return mimeType, data, nil
}

func parseAudio(raw string) (mimeType, data string, err error) {
	mimeType = defaultAudioMimeType
	data = strings.TrimSpace(raw)

	if rest, ok := strings.CutPrefix(data, "data:"); ok {
		header, payload, found := strings.Cut(rest, ",")
		if !found || !strings.HasSuffix(header, ";base64") {
			return "", "", fmt.Errorf("%w: malformed audio data URL", domain.ErrInvalidRequest)
		}
		if mt := strings.TrimSuffix(header, ";base64"); mt != "" {
			mimeType = mt
		}
		data = payload
	}

	if data == "" {
		return "", "", fmt.Errorf("%w: No audio provided", domain.ErrInvalidRequest)
	}
	if base64.StdEncoding.DecodedLen(len(data)) > maxAudioBytes {
		return "", "", fmt.Errorf("%w: audio larger than %d bytes", domain.ErrInvalidRequest, maxAudioBytes)
	}
	if _, err := base64.StdEncoding.DecodeString(data); err != nil {
		return "", "", fmt.Errorf("%w: audio is not valid base64", domain.ErrInvalidRequest)
	}

	return mimeType, data, nil
}

func normalizeAnalysis(a *domain.Analysis) {
	a.OverallScore = clampScore(a.OverallScore)
	a.Scores.Pronunciation = clampScore(a.Scores.Pronunciation)
	a.Scores.TajweedRules = clampScore(a.Scores.TajweedRules)
	a.Scores.Fluency = clampScore(a.Scores.Fluency)
	a.Scores.Accuracy = clampScore(a.Scores.Accuracy)

	if a.Feedback == nil {
		a.Feedback = []domain.FeedbackItem{}
	}
	if a.TipsToImprove == nil {
		a.TipsToImprove = []domain.Tip{}
	}

	for i := range a.Feedback {
		f := &a.Feedback[i]
		f.Severity = normalizeSeverity(f.Severity)
		if rule, ok := LookupRule(f.Rule); ok {
			f.RuleInfo = &rule
		}
	}
}

func clampScore(v int) int {
	return max(0, min(100, v))
}
