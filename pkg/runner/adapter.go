package runner

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/xhad/labtest/internal/models"
	"github.com/xhad/labtest/internal/types"
	"github.com/xhad/labtest/pkg/llm"
)

const defaultAdapterName = "adapters.npz"

// AdapterLoader returns a generator with the adapter file applied.
type AdapterLoader func(ctx context.Context, adapterFile string) (types.Generator, error)

type AdapterConfig struct {
	ModelDir     string
	AdapterFile  string // path, "auto" or "none"
	ModelFamily  string
	SystemPrompt string
	Base         types.Generator
	LoadAdapter  AdapterLoader
	OnProgress   ProgressFunc
	Logger       *log.Logger
}

// AdapterBackend compares a local model before and after training.
type AdapterBackend struct {
	config      AdapterConfig
	adapterFile string
	hasAdapter  bool
	logger      *log.Logger
}

// ResolveAdapterFile maps the adapter flag to a path. "auto" selects the
// default adapter inside modelDir, "none" disables the adapter.
func ResolveAdapterFile(modelDir, adapterFile string) string {
	switch {
	case adapterFile == "auto":
		return filepath.Join(modelDir, defaultAdapterName)
	case strings.ToLower(adapterFile) == "none":
		return ""
	default:
		return adapterFile
	}
}

func NewAdapterBackend(config AdapterConfig) (*AdapterBackend, error) {
	if config.Base == nil {
		return nil, fmt.Errorf("adapter backend: base model is required")
	}
	if config.SystemPrompt == "" {
		config.SystemPrompt = llm.DefaultSystemPrompt
	}
	if config.Logger == nil {
		config.Logger = log.Default()
	}
	if _, err := llm.FormatPrompt(config.ModelFamily, "", ""); err != nil {
		return nil, err
	}

	adapterFile := ResolveAdapterFile(config.ModelDir, config.AdapterFile)
	hasAdapter := false
	if adapterFile != "" {
		if info, err := os.Stat(adapterFile); err == nil && !info.IsDir() {
			hasAdapter = true
		}
	}

	return &AdapterBackend{
		config:      config,
		adapterFile: adapterFile,
		hasAdapter:  hasAdapter,
		logger:      config.Logger,
	}, nil
}

func (b *AdapterBackend) Name() string {
	return string(KindAdapter)
}

func (b *AdapterBackend) AdapterFile() (string, bool) {
	return b.adapterFile, b.hasAdapter
}

func (b *AdapterBackend) Run(ctx context.Context, examples []models.Example, w io.Writer) error {
	if b.adapterFile != "" && !b.hasAdapter {
		fmt.Fprintf(w, "NOTE: Adapter file does not exist. Testing behavior before training only. - %s\n", b.adapterFile)
	}

	var tuned types.Generator
	if b.hasAdapter {
		if b.config.LoadAdapter == nil {
			return fmt.Errorf("adapter backend: no adapter loader configured")
		}
		b.logger.Debug("loading adapter", "file", b.adapterFile)
		g, err := b.config.LoadAdapter(ctx, b.adapterFile)
		if err != nil {
			return err
		}
		tuned = g
	}

	fmt.Fprintln(w, "system prompt:", b.config.SystemPrompt)
	for idx, example := range examples {
		fmt.Fprintf(w, "[%d]\n user prompt: %s\n", idx+1, example.User)
		prompt, err := llm.FormatPrompt(b.config.ModelFamily, example.System, example.User)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, "expected output:", example.Assistant)

		fmt.Fprint(w, "\n-----model output BEFORE training----:\n\n")
		before, err := b.config.Base.Generate(ctx, prompt)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, before)

		if tuned != nil {
			fmt.Fprint(w, "\n-----model output AFTER training----:\n\n")
			after, err := tuned.Generate(ctx, prompt)
			if err != nil {
				return err
			}
			fmt.Fprintln(w, after)
		}

		if b.config.OnProgress != nil {
			b.config.OnProgress(idx+1, len(examples))
		}
	}

	return nil
}
