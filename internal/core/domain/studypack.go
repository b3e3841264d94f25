package domain

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	MinStudyQuestions = 10
	MaxStudyQuestions = 25
)

const (
	SkillUnderstanding = "understanding"
	SkillApplication   = "application"
)

type StudyPackRequest struct {
	FileID        string
	FileName      string
	Text          string
	QuestionCount int
}

type Question struct {
	Type         string   `json:"type"`
	Skill        string   `json:"skill"`
	Question     string   `json:"question"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correctIndex"`
	Explanation  string   `json:"explanation"`
}

type StudyPack struct {
	AnalysisMarkdown string     `json:"analysis_markdown"`
	Questions        []Question `json:"questions"`
}

// RawStudyPack is the loosely typed payload returned by a generation backend.
type RawStudyPack struct {
	AnalysisMarkdown string           `json:"analysis_markdown"`
	Questions        []map[string]any `json:"questions"`
}

// ClampQuestionCount keeps the requested count inside the supported range.
func ClampQuestionCount(n int) int {
	if n < MinStudyQuestions {
		return MinStudyQuestions
	}
	if n > MaxStudyQuestions {
		return MaxStudyQuestions
	}
	return n
}

// NormalizeStudyPack validates a raw pack and coerces every question into shape.
func NormalizeStudyPack(raw RawStudyPack, questionCount int) (StudyPack, error) {
	markdown := strings.TrimSpace(raw.AnalysisMarkdown)
	if markdown == "" {
		return StudyPack{}, WrapError(ErrInvalidInput, "normalize study pack", errors.New("analysis markdown is empty"))
	}
	if raw.Questions == nil {
		return StudyPack{}, WrapError(ErrInvalidInput, "normalize study pack", errors.New("questions are missing"))
	}

	limit := ClampQuestionCount(questionCount)
	items := raw.Questions
	if len(items) > limit {
		items = items[:limit]
	}

	questions := make([]Question, 0, len(items))
	for _, obj := range items {
		questions = append(questions, normalizeQuestion(obj))
	}
	return StudyPack{AnalysisMarkdown: markdown, Questions: questions}, nil
}

func normalizeQuestion(obj map[string]any) Question {
	skill := SkillUnderstanding
	if strings.EqualFold(stringField(obj["skill"]), SkillApplication) {
		skill = SkillApplication
	}

	var options []string
	if list, ok := obj["options"].([]any); ok {
		options = make([]string, 0, len(list))
		for _, opt := range list {
			options = append(options, stringField(opt))
		}
	}
	if options == nil {
		options = []string{}
	}

	correct := intField(obj["correctIndex"])
	if correct < 0 {
		correct = 0
	}
	if correct > 3 {
		correct = 3
	}

	return Question{
		Type:         "mcq",
		Skill:        skill,
		Question:     strings.TrimSpace(stringField(obj["question"])),
		Options:      options,
		CorrectIndex: correct,
		Explanation:  strings.TrimSpace(stringField(obj["explanation"])),
	}
}

func stringField(v any) string {
	switch typed := v.(type) {
	case nil:
		return ""
	case string:
		return typed
	default:
		return fmt.Sprint(typed)
	}
}

func intField(v any) int {
	switch typed := v.(type) {
	case float64:
		if math.IsNaN(typed) {
			return 0
		}
		return int(typed)
	case int:
		return typed
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(typed))
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}
