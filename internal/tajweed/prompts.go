package tajweed

import (
	"strings"
	"text/template"

	"github.com/felipepmaragno/ramadan-companion/internal/domain"
)

var analysisPrompt = template.Must(template.New("analysis").Parse(
	`You are an expert Quran Tajweed teacher and Arabic phonetics analyst.

The user is reciting {{if .SurahName}}Surah {{.SurahName}} ({{.SurahNumber}}){{else}}a Quran passage{{end}}{{if .AyahRange}}, ayahs {{.AyahRange}}{{end}}.

{{if .ArabicText}}The correct Arabic text is:
{{.ArabicText}}{{else}}Listen carefully to identify which surah/ayahs are being recited.{{end}}

TASK: Listen to the audio recitation and provide a detailed Tajweed analysis.

Analyze:
1. **Pronunciation (Makharij)**: Are Arabic letters articulated from correct points?
2. **Tajweed Rules**: Idgham, Ikhfa, Iqlab, Izhar, Ghunnah, Madd, Qalqalah, Tafkheem/Tarqeeq
3. **Fluency**: Pace, rhythm, natural flow, stopping points (waqf)
4. **Accuracy**: Any words skipped, added, or mispronounced

Return ONLY a JSON object with this exact structure:
{
  "overallScore": <0-100>,
  "scores": {
    "pronunciation": <0-100>,
    "tajweedRules": <0-100>,
    "fluency": <0-100>,
    "accuracy": <0-100>
  },
  "detectedSurah": "<surah name if identifiable>",
  "feedback": [
    {
      "word": "<Arabic word>",
      "ayahNumber": <number or null>,
      "issue": "<English description of problem>",
      "issueBn": "<Bangla description>",
      "severity": "<correct|minor|major|missed>",
      "rule": "<tajweed rule name>",
      "ruleBn": "<Bangla rule name>",
      "suggestion": "<how to fix>",
      "suggestionBn": "<Bangla fix>"
    }
  ],
  "praise": "<one encouraging sentence in English>",
  "praiseBn": "<same in Bangla>",
  "summary": "<2-3 sentence overall assessment in English>",
  "summaryBn": "<same in Bangla>",
  "tipsToImprove": [
    {
      "tip": "<English tip>",
      "tipBn": "<Bangla tip>"
    }
  ]
}

IMPORTANT RULES:
- Be encouraging but honest
- If the recitation is good, give high scores and praise
- Only flag genuine pronunciation or tajweed issues
- Always provide Bangla translations for all feedback
- If audio is unclear or too short, still provide what feedback you can
- Limit feedback items to the top 5-8 most important issues
- severity "correct" should be used for words that are recited perfectly as positive reinforcement`))

var chatPrompt = template.Must(template.New("chat").Parse(
	`You are a friendly and knowledgeable Quran Tajweed teacher assistant.

{{with .Context}}The student just practiced reciting and received this analysis:
Overall Score: {{.OverallScore}}/100
Key issues: {{$.Issues}}
{{end}}
The student asks: "{{.Message}}"

Respond helpfully about Tajweed, Arabic pronunciation, or Quran recitation.
Keep your response concise (2-4 sentences max).
Always provide the response in both English and Bangla.

Return JSON:
{
  "reply": "<English response>",
  "replyBn": "<Bangla response>",
  "tip": "<optional quick tip>"
}`))

func buildAnalysisPrompt(req domain.RecitationRequest) (string, error) {
	var b strings.Builder
	if err := analysisPrompt.Execute(&b, req); err != nil {
		return "", err
	}
	return b.String(), nil
}

func buildChatPrompt(req domain.ChatRequest) (string, error) {
	data := struct {
		domain.ChatRequest
		Issues string
	}{ChatRequest: req, Issues: "None"}

	if req.Context != nil {
		issues := make([]string, 0, len(req.Context.Feedback))
		for _, f := range req.Context.Feedback {
			if f.Issue != "" {
				issues = append(issues, f.Issue)
			}
		}
		if len(issues) > 0 {
			data.Issues = strings.Join(issues, ", ")
		}
	}

	var b strings.Builder
	if err := chatPrompt.Execute(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}
