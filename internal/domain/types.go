package domain

import (
	"encoding/json"
	"time"
)

// Part is one piece of generation content: either inline binary data or text.
type Part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *InlineData `json:"inlineData,omitempty"`
}

// InlineData carries base64 encoded bytes and their MIME type.
type InlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

func TextPart(text string) Part {
	return Part{Text: text}
}

func InlinePart(mimeType, base64Data string) Part {
	return Part{InlineData: &InlineData{MimeType: mimeType, Data: base64Data}}
}

// GenerationConfig holds per-request overrides. Nil fields fall back to the
// dispatcher defaults.
type GenerationConfig struct {
	Temperature      *float64 `json:"temperature,omitempty"`
	MaxOutputTokens  *int     `json:"maxOutputTokens,omitempty"`
	StructuredOutput *bool    `json:"-"`
}

type RecitationRequest struct {
	AudioBase64 string `json:"audioBase64"`
	SurahName   string `json:"surahName,omitempty"`
	SurahNumber int    `json:"surahNumber,omitempty"`
	ArabicText  string `json:"arabicText,omitempty"`
	AyahRange   string `json:"ayahRange,omitempty"`
}

type Scores struct {
	Pronunciation int `json:"pronunciation"`
	TajweedRules  int `json:"tajweedRules"`
	Fluency       int `json:"fluency"`
	Accuracy      int `json:"accuracy"`
}

type FeedbackItem struct {
	Word         string    `json:"word"`
	AyahNumber   *int      `json:"ayahNumber"`
	Issue        string    `json:"issue"`
	IssueBn      string    `json:"issueBn"`
	Severity     string    `json:"severity"`
	Rule         string    `json:"rule"`
	RuleBn       string    `json:"ruleBn"`
	Suggestion   string    `json:"suggestion"`
	SuggestionBn string    `json:"suggestionBn"`
	RuleInfo     *RuleInfo `json:"ruleInfo,omitempty"`
}

type Tip struct {
	Tip   string `json:"tip"`
	TipBn string `json:"tipBn"`
}

// Analysis is the structured Tajweed assessment of one recitation.
type Analysis struct {
	OverallScore  int            `json:"overallScore"`
	Scores        Scores         `json:"scores"`
	DetectedSurah string         `json:"detectedSurah,omitempty"`
	Feedback      []FeedbackItem `json:"feedback"`
	Praise        string         `json:"praise"`
	PraiseBn      string         `json:"praiseBn"`
	Summary       string         `json:"summary"`
	SummaryBn     string         `json:"summaryBn"`
	TipsToImprove []Tip          `json:"tipsToImprove"`
	RawResponse   string         `json:"rawResponse,omitempty"`
}

// MarshalJSON writes a raw-text fallback as {"rawResponse": ...} alone, so
// clients never mistake the zero scores for an assessment.
func (a Analysis) MarshalJSON() ([]byte, error) {
	if a.RawResponse != "" {
		return json.Marshal(struct {
			RawResponse string `json:"rawResponse"`
		}{a.RawResponse})
	}

	type plain Analysis
	return json.Marshal(plain(a))
}

// RuleInfo is the reference entry for a Tajweed rule.
type RuleInfo struct {
	Key           string   `json:"key"`
	Name          string   `json:"name"`
	NameAr        string   `json:"nameAr"`
	NameBn        string   `json:"nameBn"`
	Description   string   `json:"description"`
	DescriptionBn string   `json:"descriptionBn"`
	Letters       string   `json:"letters,omitempty"`
	Types         []string `json:"types,omitempty"`
}

type ChatContext struct {
	OverallScore int            `json:"overallScore"`
	Feedback     []FeedbackItem `json:"feedback,omitempty"`
}

type ChatRequest struct {
	Message string       `json:"message"`
	Context *ChatContext `json:"context,omitempty"`
}

type ChatReply struct {
	Reply       string `json:"reply,omitempty"`
	ReplyBn     string `json:"replyBn,omitempty"`
	Tip         string `json:"tip,omitempty"`
	RawResponse string `json:"rawResponse,omitempty"`
}

type AnalysisStatus string

const (
	AnalysisPending   AnalysisStatus = "pending"
	AnalysisCompleted AnalysisStatus = "completed"
	AnalysisFailed    AnalysisStatus = "failed"
)

// AnalysisRecord tracks an asynchronous recitation analysis.
type AnalysisRecord struct {
	ID          string         `json:"id"`
	Status      AnalysisStatus `json:"status"`
	SurahNumber int            `json:"surahNumber,omitempty"`
	AyahRange   string         `json:"ayahRange,omitempty"`
	Analysis    *Analysis      `json:"analysis,omitempty"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}
