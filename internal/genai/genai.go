// Package genai wraps the OpenAI API behind the two capabilities the engine
// consumes: free-form generation and low-temperature structured judging.
package genai

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// JudgeTemperature keeps judge calls near-deterministic.
const JudgeTemperature = 0.1

// completionService is the minimal seam over the OpenAI chat completion
// service, narrow so tests can substitute a mock.
type completionService interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// ClientInterface defines the boundary capabilities the engine consumes.
// Generate produces conversational text; Judge evaluates with a JSON-object
// response format hint at near-zero temperature.
type ClientInterface interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string, temperature float64) (string, error)
	Judge(ctx context.Context, prompt string) (string, error)
}

// Opts holds configuration for the GenAI client.
type Opts struct {
	APIKey     string
	BaseURL    string
	Model      string
	JudgeModel string
}

// Option configures the GenAI client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithBaseURL points the client at an OpenAI-compatible endpoint.
func WithBaseURL(url string) Option {
	return func(o *Opts) { o.BaseURL = url }
}

// WithModel sets the generation model.
func WithModel(model string) Option {
	return func(o *Opts) { o.Model = model }
}

// WithJudgeModel sets the model used for judge calls.
func WithJudgeModel(model string) Option {
	return func(o *Opts) { o.JudgeModel = model }
}

// Client implements ClientInterface against the OpenAI chat completion API.
type Client struct {
	completions completionService
	model       shared.ChatModel
	judgeModel  shared.ChatModel
}

// NewClient initializes a GenAI client. The API key falls back to the
// OPENAI_API_KEY environment variable when not set via options.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}
	cli := openai.NewClient(reqOpts...)

	model := shared.ChatModel(cfg.Model)
	if model == "" {
		model = openai.ChatModelGPT4oMini
	}
	judgeModel := shared.ChatModel(cfg.JudgeModel)
	if judgeModel == "" {
		judgeModel = model
	}

	slog.Debug("genai.NewClient: client created", "model", model, "judgeModel", judgeModel, "baseURL_set", cfg.BaseURL != "")
	return &Client{completions: &cli.Chat.Completions, model: model, judgeModel: judgeModel}, nil
}

// Generate produces a response from a system and user prompt at the given
// temperature.
func (c *Client) Generate(ctx context.Context, systemPrompt, userPrompt string, temperature float64) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
		Temperature: openai.Float(temperature),
	}
	resp, err := c.completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

// Judge evaluates a prompt at low temperature, hinting strict JSON output.
func (c *Client) Judge(ctx context.Context, prompt string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: c.judgeModel,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(JudgeTemperature),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	}
	resp, err := c.completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("judge completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}
