// Package openai generates study packs through the OpenAI chat completions API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/kirillkom/study-assistant/internal/core/domain"
	"github.com/kirillkom/study-assistant/internal/infrastructure/llm/studypack"
	"github.com/kirillkom/study-assistant/internal/infrastructure/resilience"
)

const defaultModel = "gpt-4o-mini"

type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

type StudyPackGenerator struct {
	client   openai.Client
	model    string
	executor *resilience.Executor
}

func NewStudyPackGenerator(cfg Config, executor *resilience.Executor) (*StudyPackGenerator, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("openai API key is required")
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}
	return &StudyPackGenerator{
		client:   openai.NewClient(opts...),
		model:    model,
		executor: executor,
	}, nil
}

func (g *StudyPackGenerator) RequestStudyPack(ctx context.Context, req domain.StudyPackRequest) (domain.StudyPack, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(g.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(studypack.SystemPrompt),
			openai.UserMessage(studypack.BuildPrompt(req)),
		},
		Temperature: openai.Float(0.2),
	}

	content, err := resilience.ExecuteValue(ctx, g.executor, "openai.chat", func(callCtx context.Context) (string, error) {
		resp, err := g.client.Chat.Completions.New(callCtx, params)
		if err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			return "", errors.New("no choices returned")
		}
		return resp.Choices[0].Message.Content, nil
	}, classifyOpenAIError)
	if err != nil {
		if classifyOpenAIError(err).Retryable || resilience.IsCircuitOpen(err) {
			return domain.StudyPack{}, domain.WrapError(domain.ErrTemporary, "openai chat completion", err)
		}
		return domain.StudyPack{}, fmt.Errorf("openai chat completion: %w", err)
	}
	return studypack.Parse(content, req.QuestionCount)
}

func classifyOpenAIError(err error) resilience.ErrorClassification {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{}
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		default:
			return resilience.ErrorClassification{}
		}
	}
	return resilience.ErrorClassification{RecordFailure: true}
}
