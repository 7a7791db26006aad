package config

import (
	"fmt"
	"net/url"
	"strings"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	if !validURL(c.Serve.EndpointURL) {
		errors = append(errors, ValidationError{
			Field:   "serve.endpoint_url",
			Message: "invalid endpoint URL",
		})
	}

	if !validURL(c.Serve.OllamaURL) {
		errors = append(errors, ValidationError{
			Field:   "serve.ollama_url",
			Message: "invalid Ollama base URL",
		})
	}

	if c.Serve.MaxTokens < 1 || c.Serve.MaxTokens > 4096 {
		errors = append(errors, ValidationError{
			Field:   "serve.max_tokens",
			Message: "max_tokens must be between 1 and 4096",
		})
	}

	switch strings.ToLower(c.Serve.ModelFamily) {
	case "", "merlinite", "mixtral":
	default:
		errors = append(errors, ValidationError{
			Field:   "serve.model_family",
			Message: fmt.Sprintf("unsupported model family: %s", c.Serve.ModelFamily),
		})
	}

	switch c.Test.Backend {
	case "auto", "adapter", "served":
	default:
		errors = append(errors, ValidationError{
			Field:   "test.backend",
			Message: "backend must be one of auto, adapter, served",
		})
	}

	if c.Chunking.ChunkWordCount < 1 {
		errors = append(errors, ValidationError{
			Field:   "chunking.chunk_word_count",
			Message: "chunk_word_count must be positive",
		})
	}

	if c.Chunking.ServerCtxSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "chunking.server_ctx_size",
			Message: "server_ctx_size must be positive",
		})
	}

	if c.Chunking.ChunkOverlap < 0 {
		errors = append(errors, ValidationError{
			Field:   "chunking.chunk_overlap",
			Message: "chunk_overlap must be non-negative",
		})
	}

	if c.Web.MaxDepth < 0 {
		errors = append(errors, ValidationError{
			Field:   "web.max_depth",
			Message: "max_depth must be non-negative",
		})
	}

	if c.Web.RateLimit <= 0 {
		errors = append(errors, ValidationError{
			Field:   "web.rate_limit",
			Message: "rate_limit must be positive",
		})
	}

	return errors
}

func validURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && u.Scheme != "" && u.Host != ""
}
