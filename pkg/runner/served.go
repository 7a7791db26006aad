package runner

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/xhad/labtest/internal/models"
	"github.com/xhad/labtest/internal/types"
)

// ServedModel is one model reachable through a serving endpoint.
type ServedModel struct {
	Name  string
	Model types.ChatModel
}

type ServedConfig struct {
	Models     []ServedModel
	OnProgress ProgressFunc
	Logger     *log.Logger
}

// Answer is the output of one model for one question.
type Answer struct {
	Model  string
	Output string
}

// Result groups the answers to one question in model order.
type Result struct {
	Question string
	Answers  []Answer
}

// ServedBackend asks every configured model every question.
type ServedBackend struct {
	config ServedConfig
	logger *log.Logger
}

func NewServedBackend(config ServedConfig) (*ServedBackend, error) {
	if len(config.Models) == 0 {
		return nil, fmt.Errorf("served backend: at least one model is required")
	}
	if config.Logger == nil {
		config.Logger = log.Default()
	}
	return &ServedBackend{config: config, logger: config.Logger}, nil
}

func (b *ServedBackend) Name() string {
	return string(KindServed)
}

// Collect answers every example on every model. Nothing is returned on the
// first failure.
func (b *ServedBackend) Collect(ctx context.Context, examples []models.Example) ([]Result, error) {
	results := make([]Result, 0, len(examples))
	for i, example := range examples {
		result := Result{Question: example.User}
		for _, m := range b.config.Models {
			b.logger.Debug("generating", "model", m.Name, "example", i+1)
			output, err := m.Model.Chat(ctx, example.System, example.User)
			if err != nil {
				return nil, fmt.Errorf("model %s: %w", m.Name, err)
			}
			result.Answers = append(result.Answers, Answer{Model: m.Name, Output: output})
		}
		results = append(results, result)

		if b.config.OnProgress != nil {
			b.config.OnProgress(i+1, len(examples))
		}
	}
	return results, nil
}

// Run prints the collected answers as markdown.
func (b *ServedBackend) Run(ctx context.Context, examples []models.Example, w io.Writer) error {
	results, err := b.Collect(ctx, examples)
	if err != nil {
		return err
	}
	WriteMarkdown(w, results)
	return nil
}

func WriteMarkdown(w io.Writer, results []Result) {
	for _, r := range results {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "###", r.Question)
		for _, a := range r.Answers {
			fmt.Fprintln(w)
			fmt.Fprintf(w, "%s: %s\n", a.Model, a.Output)
			fmt.Fprintln(w)
		}
	}
}
