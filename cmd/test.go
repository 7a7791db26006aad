package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/xhad/labtest/internal/models"
	"github.com/xhad/labtest/internal/types"
	cfgPkg "github.com/xhad/labtest/pkg/config"
	"github.com/xhad/labtest/pkg/evalset"
	"github.com/xhad/labtest/pkg/llm"
	"github.com/xhad/labtest/pkg/runner"
)

const trainedServedModel = "models/ggml-model-f16.gguf"

type testOptions struct {
	dataDir      string
	modelDir     string
	adapterFile  string
	model        string
	trainedModel string
	testFile     string
	apiKey       string
	modelFamily  string
	backend      string
	endpointURL  string
	ollamaURL    string
	maxTokens    int
}

func newTestCmd(a *app) *cobra.Command {
	opts := &testOptions{}

	cmd := &cobra.Command{
		Use:   "test",
		Short: "Runs basic test to ensure model correctness",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.merge(cmd, a.config)
			return runTest(cmd, a, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.dataDir, "data-dir", cfgPkg.DefaultDataDir, "Base directory where data is stored")
	flags.StringVar(&opts.modelDir, "model-dir", cfgPkg.DefaultModelDir, "Base model to test with the adapter backend")
	flags.StringVar(&opts.adapterFile, "adapter-file", "auto", "Adapter to use for test. Set to 'None' to force only testing behavior from before training")
	flags.StringVarP(&opts.model, "model", "m", cfgPkg.DefaultModel, "Base model name to test with the served backend")
	flags.StringVar(&opts.trainedModel, "trained-model", trainedServedModel, "Trained model compared against --model with the served backend, empty to skip")
	flags.StringVarP(&opts.testFile, "test-file", "t", "", "Test data file")
	flags.StringVar(&opts.apiKey, "api-key", cfgPkg.DefaultAPIKey, "API key for API endpoint")
	flags.StringVar(&opts.modelFamily, "model-family", "", "Force model family to use when picking a generation template")
	flags.StringVar(&opts.backend, "backend", "auto", "Test backend: auto, adapter or served")
	flags.StringVar(&opts.endpointURL, "endpoint-url", llm.DefaultEndpointURL, "OpenAI compatible endpoint of the served backend")
	flags.StringVar(&opts.ollamaURL, "ollama-url", llm.DefaultOllamaURL, "Ollama server URL of the adapter backend")
	flags.IntVar(&opts.maxTokens, "max-tokens", llm.DefaultMaxTokens, "Maximum tokens generated per answer")

	// the default key is not shown in help output
	flags.Lookup("api-key").DefValue = ""

	return cmd
}

// merge fills every flag the user did not set from the config file.
func (o *testOptions) merge(cmd *cobra.Command, cfg *cfgPkg.Config) {
	flags := cmd.Flags()
	set := func(name string, dst *string, value string) {
		if !flags.Changed(name) && value != "" {
			*dst = value
		}
	}

	set("data-dir", &o.dataDir, cfg.Test.DataDir)
	set("model-dir", &o.modelDir, cfg.Test.ModelDir)
	set("adapter-file", &o.adapterFile, cfg.Test.AdapterFile)
	set("model", &o.model, cfg.Serve.Model)
	set("api-key", &o.apiKey, cfg.Serve.APIKey)
	set("model-family", &o.modelFamily, cfg.Serve.ModelFamily)
	set("backend", &o.backend, cfg.Test.Backend)
	set("endpoint-url", &o.endpointURL, cfg.Serve.EndpointURL)
	set("ollama-url", &o.ollamaURL, cfg.Serve.OllamaURL)
	if !flags.Changed("max-tokens") && cfg.Serve.MaxTokens > 0 {
		o.maxTokens = cfg.Serve.MaxTokens
	}
}

func runTest(cmd *cobra.Command, a *app, opts *testOptions) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	kind, err := runner.SelectKind(opts.backend, runtime.GOOS, runtime.GOARCH)
	if err != nil {
		return err
	}
	a.logger.Debug("selected test backend", "backend", kind)

	var (
		backend  types.Backend
		examples []models.Example
	)

	bar := getProgressBar(a.stderr, -1, "Testing model")
	switch kind {
	case runner.KindAdapter:
		testFile := filepath.Join(opts.dataDir, "test.jsonl")
		examples, err = loadExamples(testFile)
		if err != nil {
			return err
		}
		bar.ChangeMax(len(examples))
		backend, err = newAdapterBackend(a, opts, progressFunc(bar))
	case runner.KindServed:
		testFile := opts.testFile
		if testFile == "" {
			testFile, err = evalset.Latest(a.config.Generate.OutputDir, "test_*")
			if err != nil {
				return err
			}
		}
		a.logger.Debug("resolved test file", "test_file", testFile)
		examples, err = loadExamples(testFile)
		if err != nil {
			return err
		}
		bar.ChangeMax(len(examples))
		backend, err = newServedBackend(a, opts, progressFunc(bar))
	}
	if err != nil {
		return err
	}

	if err := backend.Run(ctx, examples, out); err != nil {
		_ = bar.Exit()
		return &exitError{
			code: 1,
			msg:  fmt.Sprintf("Testing models failed with the following error: %v", err),
		}
	}
	return nil
}

func loadExamples(path string) ([]models.Example, error) {
	examples, err := evalset.Load(path)
	if errors.Is(err, evalset.ErrNotFound) {
		return nil, &exitError{
			code: 1,
			msg:  fmt.Sprintf("'%s' no such file or directory. Did you run model training?", path),
		}
	}
	return examples, err
}

func newAdapterBackend(a *app, opts *testOptions, progress runner.ProgressFunc) (types.Backend, error) {
	chatConfig := llm.ChatConfig{
		Model:     opts.modelDir,
		MaxTokens: opts.maxTokens,
		BaseURL:   opts.ollamaURL,
	}
	base, err := llm.NewOllama(chatConfig)
	if err != nil {
		return nil, err
	}

	registrar := llm.NewAdapterRegistrar(opts.ollamaURL)
	backend, err := runner.NewAdapterBackend(runner.AdapterConfig{
		ModelDir:    opts.modelDir,
		AdapterFile: opts.adapterFile,
		ModelFamily: opts.modelFamily,
		Base:        base,
		LoadAdapter: func(ctx context.Context, adapterFile string) (types.Generator, error) {
			name, err := registrar.Register(ctx, opts.modelDir, adapterFile)
			if err != nil {
				return nil, err
			}
			tuned := chatConfig
			tuned.Model = name
			return llm.NewOllama(tuned)
		},
		OnProgress: progress,
		Logger:     a.logger,
	})
	if err != nil {
		return nil, err
	}

	if file, ok := backend.AdapterFile(); ok {
		color.New(color.FgCyan).Fprintf(a.stderr, "Using adapter %s\n", file)
	}
	return backend, nil
}

func newServedBackend(a *app, opts *testOptions, progress runner.ProgressFunc) (types.Backend, error) {
	names := []string{opts.model}
	if opts.trainedModel != "" && opts.trainedModel != opts.model {
		names = append(names, opts.trainedModel)
	}

	served := make([]runner.ServedModel, 0, len(names))
	for _, name := range names {
		engine, err := llm.NewServed(llm.ChatConfig{
			Model:     name,
			MaxTokens: opts.maxTokens,
			BaseURL:   opts.endpointURL,
			APIKey:    opts.apiKey,
		})
		if err != nil {
			return nil, err
		}
		served = append(served, runner.ServedModel{Name: name, Model: engine})
	}

	return runner.NewServedBackend(runner.ServedConfig{
		Models:     served,
		OnProgress: progress,
		Logger:     a.logger,
	})
}
