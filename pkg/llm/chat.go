package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"
)

const (
	DefaultOllamaURL   = "http://localhost:11434"
	DefaultEndpointURL = "http://localhost:8000/v1"
	DefaultMaxTokens   = 100
)

// ChatConfig represents the configuration for a generation engine.
type ChatConfig struct {
	Model       string
	MaxTokens   int
	Temperature float64
	BaseURL     string
	APIKey      string // served endpoints only
}

// Engine generates completions for fully formatted prompts.
type Engine struct {
	config ChatConfig
	llm    llms.Model
	raw    *resty.Client // set for Ollama, prompts bypass the model template
}

// NewOllama creates an Engine backed by a local Ollama server.
func NewOllama(config ChatConfig) (*Engine, error) {
	config = withDefaults(config, DefaultOllamaURL)

	llm, err := ollama.New(ollama.WithModel(config.Model),
		ollama.WithServerURL(config.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM: %w", err)
	}

	return &Engine{config: config, llm: llm, raw: newOllamaClient(config.BaseURL)}, nil
}

// NewServed creates an Engine backed by an OpenAI compatible endpoint.
func NewServed(config ChatConfig) (*Engine, error) {
	config = withDefaults(config, DefaultEndpointURL)

	llm, err := openai.New(
		openai.WithModel(config.Model),
		openai.WithBaseURL(config.BaseURL),
		openai.WithToken(config.APIKey),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM: %w", err)
	}

	return &Engine{config: config, llm: llm}, nil
}

func withDefaults(config ChatConfig, baseURL string) ChatConfig {
	if config.MaxTokens <= 0 {
		config.MaxTokens = DefaultMaxTokens
	}
	if config.BaseURL == "" {
		config.BaseURL = baseURL
	}
	return config
}

func (e *Engine) Model() string {
	return e.config.Model
}

// Generate returns the model's completion of an already templated prompt.
func (e *Engine) Generate(ctx context.Context, prompt string) (string, error) {
	if e.raw != nil {
		return e.generateRaw(ctx, prompt)
	}
	return e.generate(ctx, []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeHuman, prompt),
	})
}

// Chat leaves templating to the serving side.
func (e *Engine) Chat(ctx context.Context, system, user string) (string, error) {
	var content []llms.MessageContent
	if system != "" {
		content = append(content, llms.TextParts(schema.ChatMessageTypeSystem, system))
	}
	content = append(content, llms.TextParts(schema.ChatMessageTypeHuman, user))
	return e.generate(ctx, content)
}

func (e *Engine) generate(ctx context.Context, content []llms.MessageContent) (string, error) {
	opts := []llms.CallOption{llms.WithMaxTokens(e.config.MaxTokens)}
	if e.config.Temperature > 0 {
		opts = append(opts, llms.WithTemperature(e.config.Temperature))
	}

	response, err := e.llm.GenerateContent(ctx, content, opts...)
	if err != nil {
		return "", fmt.Errorf("generate with %s: %w", e.config.Model, err)
	}

	if response == nil || len(response.Choices) == 0 {
		return "", fmt.Errorf("generate with %s: no response from LLM", e.config.Model)
	}

	return strings.TrimSpace(response.Choices[0].Content), nil
}
