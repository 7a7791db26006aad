package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

type rawGenerateRequest struct {
	Model   string                 `json:"model"`
	Prompt  string                 `json:"prompt"`
	Raw     bool                   `json:"raw"`
	Stream  bool                   `json:"stream"`
	Options map[string]interface{} `json:"options,omitempty"`
}

type rawGenerateResponse struct {
	Response string `json:"response"`
	Error    string `json:"error"`
}

func newOllamaClient(baseURL string) *resty.Client {
	return resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(10*time.Minute).
		SetHeader("Content-Type", "application/json")
}

// generateRaw sends prompt to /api/generate in raw mode so Ollama does not
// wrap it in the model's own template a second time.
func (e *Engine) generateRaw(ctx context.Context, prompt string) (string, error) {
	options := map[string]interface{}{"num_predict": e.config.MaxTokens}
	if e.config.Temperature > 0 {
		options["temperature"] = e.config.Temperature
	}

	var result rawGenerateResponse
	resp, err := e.raw.R().
		SetContext(ctx).
		SetBody(rawGenerateRequest{
			Model:   e.config.Model,
			Prompt:  prompt,
			Raw:     true,
			Options: options,
		}).
		SetResult(&result).
		SetError(&result).
		Post("/api/generate")
	if err != nil {
		return "", fmt.Errorf("generate with %s: %w", e.config.Model, err)
	}

	if resp.IsError() || result.Error != "" {
		msg := result.Error
		if msg == "" {
			msg = resp.Status()
		}
		return "", fmt.Errorf("generate with %s: %s", e.config.Model, msg)
	}

	return strings.TrimSpace(result.Response), nil
}
