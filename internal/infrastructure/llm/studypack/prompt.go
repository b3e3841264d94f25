// Package studypack holds the prompt and response parsing shared by the study pack generators.
package studypack

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kirillkom/study-assistant/internal/core/domain"
)

const maxPromptChars = 12000

const SystemPrompt = `You are a study assistant. You read course material and produce study notes and practice questions.
Always answer with a single strict JSON object. No markdown fences, no extra keys.`

// BuildPrompt renders the user prompt for a study pack request.
func BuildPrompt(req domain.StudyPackRequest) string {
	count := domain.ClampQuestionCount(req.QuestionCount)
	text := []rune(strings.TrimSpace(req.Text))
	if len(text) > maxPromptChars {
		text = text[:maxPromptChars]
	}

	return fmt.Sprintf(`Analyse the document %q and return a JSON object with keys:
analysis_markdown (string): a structured markdown analysis with headings, key concepts and a short summary.
questions (array of exactly %d objects): each with keys
  type ("mcq"), skill ("understanding" or "application"), question (string),
  options (array of 4 strings), correctIndex (integer 0..3), explanation (string).

Document:
%s
`, req.FileName, count, string(text))
}

// Parse decodes a model response and normalises it into a study pack.
func Parse(raw string, questionCount int) (domain.StudyPack, error) {
	var payload domain.RawStudyPack
	if err := json.Unmarshal([]byte(ExtractJSONObject(raw)), &payload); err != nil {
		return domain.StudyPack{}, domain.WrapError(domain.ErrInvalidInput, "parse study pack", err)
	}
	return domain.NormalizeStudyPack(payload, questionCount)
}

// ExtractJSONObject trims any prose around the outermost JSON object.
func ExtractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
