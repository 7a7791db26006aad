package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	DefaultModel    = "merlinite-7b-lab-Q4_K_M"
	DefaultAPIKey   = "no_api_key"
	DefaultDataDir  = "./taxonomy_data"
	DefaultModelDir = "instructlab-merlinite-7b-lab-mlx-q"
)

type Config struct {
	Serve struct {
		EndpointURL string `yaml:"endpoint_url"`
		APIKey      string `yaml:"api_key"`
		OllamaURL   string `yaml:"ollama_url"`
		Model       string `yaml:"model"`
		ModelFamily string `yaml:"model_family"`
		MaxTokens   int    `yaml:"max_tokens"`
	} `yaml:"serve"`

	Test struct {
		DataDir     string `yaml:"data_dir"`
		ModelDir    string `yaml:"model_dir"`
		AdapterFile string `yaml:"adapter_file"`
		Backend     string `yaml:"backend"`
	} `yaml:"test"`

	Generate struct {
		OutputDir string `yaml:"output_dir"`
	} `yaml:"generate"`

	Chunking struct {
		ChunkWordCount int `yaml:"chunk_word_count"`
		ServerCtxSize  int `yaml:"server_ctx_size"`
		ChunkOverlap   int `yaml:"chunk_overlap"`
	} `yaml:"chunking"`

	Web struct {
		MaxDepth       int      `yaml:"max_depth"`
		RateLimit      float64  `yaml:"rate_limit"` // requests per second
		IgnorePatterns []string `yaml:"ignore_patterns"`
	} `yaml:"web"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"labtest.yaml",
			"labtest.yml",
			filepath.Join(os.Getenv("HOME"), ".config/labtest/config.yaml"),
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %v", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %v", err)
	}

	mergeWithEnv(&config)
	applyDefaults(&config)

	return &config, nil
}

func getDefaultConfig() *Config {
	config := &Config{}
	mergeWithEnv(config)
	applyDefaults(config)
	return config
}

func applyDefaults(config *Config) {
	if config.Serve.EndpointURL == "" {
		config.Serve.EndpointURL = "http://localhost:8000/v1"
	}
	if config.Serve.APIKey == "" {
		config.Serve.APIKey = DefaultAPIKey
	}
	if config.Serve.OllamaURL == "" {
		config.Serve.OllamaURL = "http://localhost:11434"
	}
	if config.Serve.Model == "" {
		config.Serve.Model = DefaultModel
	}
	if config.Serve.MaxTokens == 0 {
		config.Serve.MaxTokens = 100
	}

	if config.Test.DataDir == "" {
		config.Test.DataDir = DefaultDataDir
	}
	if config.Test.ModelDir == "" {
		config.Test.ModelDir = DefaultModelDir
	}
	if config.Test.AdapterFile == "" {
		config.Test.AdapterFile = "auto"
	}
	if config.Test.Backend == "" {
		config.Test.Backend = "auto"
	}

	if config.Generate.OutputDir == "" {
		config.Generate.OutputDir = "generated"
	}

	if config.Chunking.ChunkWordCount == 0 {
		config.Chunking.ChunkWordCount = 1000
	}
	if config.Chunking.ServerCtxSize == 0 {
		config.Chunking.ServerCtxSize = 4096
	}
	// zero overlap is not representable, it selects the default
	if config.Chunking.ChunkOverlap == 0 {
		config.Chunking.ChunkOverlap = 100
	}

	if config.Web.RateLimit == 0 {
		config.Web.RateLimit = 2
	}

	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
}

func mergeWithEnv(config *Config) {
	if url := os.Getenv("LABTEST_ENDPOINT_URL"); url != "" {
		config.Serve.EndpointURL = url
	}
	if key := os.Getenv("LABTEST_API_KEY"); key != "" {
		config.Serve.APIKey = key
	}
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		config.Serve.OllamaURL = baseURL
	}
}
