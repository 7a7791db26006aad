package llm

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-resty/resty/v2"
)

// AdapterRegistrar creates derived Ollama models that apply a trained
// adapter on top of a base model.
type AdapterRegistrar struct {
	client *resty.Client
}

type createRequest struct {
	Model     string `json:"model"`
	Name      string `json:"name"`
	Modelfile string `json:"modelfile"`
	Stream    bool   `json:"stream"`
}

type createResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

func NewAdapterRegistrar(baseURL string) *AdapterRegistrar {
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}

	return &AdapterRegistrar{client: newOllamaClient(baseURL)}
}

// AdapterModelName is the name the derived model is registered under.
func AdapterModelName(base, adapterFile string) string {
	name := strings.TrimSuffix(filepath.Base(adapterFile), filepath.Ext(adapterFile))
	return fmt.Sprintf("%s-%s", strings.ReplaceAll(filepath.Base(base), ":", "-"), name)
}

// Register creates the derived model and returns its name.
func (r *AdapterRegistrar) Register(ctx context.Context, base, adapterFile string) (string, error) {
	absAdapter, err := filepath.Abs(adapterFile)
	if err != nil {
		return "", fmt.Errorf("resolve adapter path: %w", err)
	}

	name := AdapterModelName(base, adapterFile)
	var result createResponse
	resp, err := r.client.R().
		SetContext(ctx).
		SetBody(createRequest{
			Model:     name,
			Name:      name,
			Modelfile: fmt.Sprintf("FROM %s\nADAPTER %s\n", base, absAdapter),
		}).
		SetResult(&result).
		SetError(&result).
		Post("/api/create")
	if err != nil {
		return "", fmt.Errorf("register adapter: %w", err)
	}

	if resp.IsError() || result.Error != "" {
		msg := result.Error
		if msg == "" {
			msg = resp.Status()
		}
		return "", fmt.Errorf("register adapter %s: %s", adapterFile, msg)
	}

	return name, nil
}
