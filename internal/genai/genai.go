// Package genai wraps the OpenAI API for response generation, structured
// classification, and text embeddings.
package genai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Errors returned by the client.
var (
	ErrNoChoicesReturned = errors.New("no choices returned")
	ErrEmptyCompletion   = errors.New("empty completion content")
	ErrNoEmbeddingData   = errors.New("no embedding data returned")
)

// chatService is the minimal interface over chat completions, mockable in tests.
type chatService interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error)
}

// embeddingService is the minimal interface over embeddings, mockable in tests.
type embeddingService interface {
	New(ctx context.Context, params openai.EmbeddingNewParams) (*openai.CreateEmbeddingResponse, error)
}

// openaiChat adapts the OpenAI SDK chat completion service to chatService.
type openaiChat struct {
	client openai.Client
}

func (c openaiChat) New(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
	return c.client.Chat.Completions.New(ctx, params)
}

// openaiEmbeddings adapts the OpenAI SDK embedding service to embeddingService.
type openaiEmbeddings struct {
	client openai.Client
}

func (e openaiEmbeddings) New(ctx context.Context, params openai.EmbeddingNewParams) (*openai.CreateEmbeddingResponse, error) {
	return e.client.Embeddings.New(ctx, params)
}

// Opts holds configuration options for the GenAI client.
type Opts struct {
	APIKey          string
	ChatModel       openai.ChatModel
	ClassifierModel openai.ChatModel
	EmbeddingModel  openai.EmbeddingModel
}

// Option defines a configuration option for the GenAI client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key explicitly.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithChatModel overrides the model used for reply generation.
func WithChatModel(model openai.ChatModel) Option {
	return func(o *Opts) { o.ChatModel = model }
}

// WithClassifierModel overrides the model used for signal classification.
func WithClassifierModel(model openai.ChatModel) Option {
	return func(o *Opts) { o.ClassifierModel = model }
}

// WithEmbeddingModel overrides the embedding model.
func WithEmbeddingModel(model openai.EmbeddingModel) Option {
	return func(o *Opts) { o.EmbeddingModel = model }
}

// ClientInterface defines the GenAI operations consumed by the rest of
// the application; implemented by Client and by test mocks.
type ClientInterface interface {
	// GeneratePrompt generates a completion from system and user prompts
	// at the configured default temperature.
	GeneratePrompt(ctx context.Context, systemPrompt, userPrompt string) (string, error)

	// GeneratePromptWithTemperature generates a completion at an explicit temperature.
	GeneratePromptWithTemperature(ctx context.Context, systemPrompt, userPrompt string, temperature float64) (string, error)

	// GenerateWithMessages generates a completion from a full message list.
	GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error)

	// Classify runs the lightweight classifier model at temperature zero
	// for stable structured output.
	Classify(ctx context.Context, systemPrompt, userPrompt string) (string, error)

	// Embed returns a fixed-length vector for the text. Deterministic for
	// identical input.
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Client wraps the OpenAI chat completion and embedding services.
type Client struct {
	chat            chatService
	embeddings      embeddingService
	chatModel       openai.ChatModel
	classifierModel openai.ChatModel
	embeddingModel  openai.EmbeddingModel
}

// DefaultTemperature balances variety in empathic replies against coherence.
const DefaultTemperature = 0.65

// NewClient initializes a GenAI client. The API key comes from options or
// the OPENAI_API_KEY environment variable.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}

	if cfg.ChatModel == "" {
		cfg.ChatModel = openai.ChatModelGPT4oMini
	}
	if cfg.ClassifierModel == "" {
		cfg.ClassifierModel = cfg.ChatModel
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = openai.EmbeddingModelTextEmbedding3Small
	}
	slog.Debug("genai.NewClient: configured", "chatModel", cfg.ChatModel, "classifierModel", cfg.ClassifierModel, "embeddingModel", cfg.EmbeddingModel)

	cli := openai.NewClient(option.WithAPIKey(apiKey))
	return &Client{
		chat:            openaiChat{client: cli},
		embeddings:      openaiEmbeddings{client: cli},
		chatModel:       cfg.ChatModel,
		classifierModel: cfg.ClassifierModel,
		embeddingModel:  cfg.EmbeddingModel,
	}, nil
}

// GeneratePrompt generates a response based on the provided system and user prompts.
func (c *Client) GeneratePrompt(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return c.GeneratePromptWithTemperature(ctx, systemPrompt, userPrompt, DefaultTemperature)
}

// GeneratePromptWithTemperature generates a response at an explicit temperature.
func (c *Client) GeneratePromptWithTemperature(ctx context.Context, systemPrompt, userPrompt string, temperature float64) (string, error) {
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(systemPrompt),
		openai.UserMessage(userPrompt),
	}
	return c.complete(ctx, c.chatModel, messages, temperature)
}

// GenerateWithMessages generates a response from a full message list.
func (c *Client) GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	return c.complete(ctx, c.chatModel, messages, DefaultTemperature)
}

// Classify runs the classifier model at temperature zero for stable output.
func (c *Client) Classify(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(systemPrompt),
		openai.UserMessage(userPrompt),
	}
	return c.complete(ctx, c.classifierModel, messages, 0)
}

func (c *Client) complete(ctx context.Context, model openai.ChatModel, messages []openai.ChatCompletionMessageParamUnion, temperature float64) (string, error) {
	resp, err := c.chat.New(ctx, openai.ChatCompletionNewParams{
		Model:       model,
		Messages:    messages,
		Temperature: openai.Float(temperature),
	})
	if err != nil {
		slog.Error("genai.complete: chat completion failed", "model", model, "error", err)
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoicesReturned
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", ErrEmptyCompletion
	}
	slog.Debug("genai.complete: completion received", "model", model, "length", len(content))
	return content, nil
}

// Embed returns the embedding vector for the given text.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	resp, err := c.embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: c.embeddingModel,
		Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
	})
	if err != nil {
		slog.Error("genai.Embed: embedding request failed", "model", c.embeddingModel, "error", err)
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, ErrNoEmbeddingData
	}
	return resp.Data[0].Embedding, nil
}
