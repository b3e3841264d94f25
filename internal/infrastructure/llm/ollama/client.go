package ollama

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/study-assistant/internal/core/domain"
	"github.com/kirillkom/study-assistant/internal/infrastructure/llm/studypack"
	"github.com/kirillkom/study-assistant/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	genModel   string
	httpClient *http.Client
	executor   *resilience.Executor
}

type Option func(*Client)

func WithExecutor(executor *resilience.Executor) Option {
	return func(c *Client) {
		c.executor = executor
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

func New(baseURL, genModel string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		genModel:   genModel,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StudyPackGenerator asks an Ollama model for a study pack in JSON mode.
type StudyPackGenerator struct {
	client *Client
}

func NewStudyPackGenerator(client *Client) *StudyPackGenerator {
	return &StudyPackGenerator{client: client}
}

func (g *StudyPackGenerator) RequestStudyPack(ctx context.Context, req domain.StudyPackRequest) (domain.StudyPack, error) {
	respText, err := g.client.generateJSON(ctx, studypack.SystemPrompt, studypack.BuildPrompt(req))
	if err != nil {
		return domain.StudyPack{}, err
	}
	return studypack.Parse(respText, req.QuestionCount)
}

func (c *Client) generateJSON(ctx context.Context, system, prompt string) (string, error) {
	reqBody := map[string]any{
		"model":  c.genModel,
		"system": system,
		"prompt": prompt,
		"stream": false,
		"format": "json",
	}
	return c.generate(ctx, reqBody)
}

func (c *Client) generate(ctx context.Context, reqBody map[string]any) (string, error) {
	var response struct {
		Response string `json:"response"`
	}
	err := c.executor.Execute(ctx, "ollama.generate", func(callCtx context.Context) error {
		return c.postJSON(callCtx, "/api/generate", reqBody, &response, "generate")
	}, classifyGenerateError)
	if err != nil {
		return "", resilience.MarkTemporary("ollama generate", err, classifyGenerateError)
	}
	return strings.TrimSpace(response.Response), nil
}
