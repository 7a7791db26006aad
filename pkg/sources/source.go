package sources

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"
	"github.com/xhad/labtest/internal/models"
	"gopkg.in/yaml.v3"
)

var (
	ErrInvalidSource = errors.New("invalid document source")
	ErrNoDocuments   = errors.New("couldn't find knowledge documents")
)

// Source describes where knowledge documents live.
type Source struct {
	Repo     string   `yaml:"repo"`
	Commit   string   `yaml:"commit"`
	Patterns []string `yaml:"patterns"`
	URLs     []string `yaml:"urls"`
}

// Knowledge is a knowledge contribution file. Only the document source is
// interpreted here.
type Knowledge struct {
	Version         int     `yaml:"version"`
	CreatedBy       string  `yaml:"created_by"`
	Domain          string  `yaml:"domain"`
	TaskDescription string  `yaml:"task_description"`
	Document        *Source `yaml:"document"`
}

func ParseKnowledge(data []byte) (*Knowledge, error) {
	var k Knowledge
	if err := yaml.Unmarshal(data, &k); err != nil {
		return nil, fmt.Errorf("error parsing knowledge file: %v", err)
	}
	if k.Document == nil {
		return nil, fmt.Errorf("%w: missing document key", ErrInvalidSource)
	}
	return &k, nil
}

func LoadKnowledge(path string) (*Knowledge, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading knowledge file: %v", err)
	}
	return ParseKnowledge(data)
}

type RetrieverConfig struct {
	Cloner  Cloner
	Web     WebConfig
	WorkDir string // parent for temporary clones, defaults to os.TempDir
	Logger  *log.Logger
}

// Retriever turns a Source into plain text documents.
type Retriever struct {
	cloner  Cloner
	web     *WebFetcher
	workDir string
	logger  *log.Logger
}

func NewWithConfig(config RetrieverConfig) *Retriever {
	if config.Cloner == nil {
		config.Cloner = GitCloner{}
	}
	if config.Logger == nil {
		config.Logger = log.Default()
	}
	if config.Web.Logger == nil {
		config.Web.Logger = config.Logger
	}

	return &Retriever{
		cloner:  config.Cloner,
		web:     NewWebFetcher(config.Web),
		workDir: config.WorkDir,
		logger:  config.Logger,
	}
}

// GetDocuments retrieves the documents named by source in a stable order.
// With skipCheckout the default branch of a git source is read as cloned.
func (r *Retriever) GetDocuments(ctx context.Context, source Source, skipCheckout bool) ([]models.Document, error) {
	switch {
	case source.Repo != "":
		return r.gitDocuments(ctx, source, skipCheckout)
	case len(source.URLs) > 0:
		docs, err := r.web.Fetch(ctx, source.URLs)
		if err != nil {
			return nil, err
		}
		if len(docs) == 0 {
			return nil, ErrNoDocuments
		}
		return docs, nil
	default:
		return nil, fmt.Errorf("%w: neither repo nor urls given", ErrInvalidSource)
	}
}

func (r *Retriever) gitDocuments(ctx context.Context, source Source, skipCheckout bool) ([]models.Document, error) {
	if !skipCheckout && source.Commit == "" {
		return nil, fmt.Errorf("%w: commit is required for %s", ErrInvalidSource, source.Repo)
	}
	for _, pattern := range source.Patterns {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("%w: bad pattern %q", ErrInvalidSource, pattern)
		}
	}

	dir, err := os.MkdirTemp(r.workDir, "knowledge-")
	if err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(dir)

	r.logger.Debug("cloning knowledge repository", "repo", source.Repo, "dir", dir)
	repo, err := r.cloner.Clone(ctx, source.Repo, dir)
	if err != nil {
		return nil, err
	}

	if !skipCheckout {
		if err := repo.Checkout(source.Commit); err != nil {
			return nil, err
		}
	}

	docs, err := readMarkdown(repo.WorkingDir(), source.Patterns)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, ErrNoDocuments
	}

	for i := range docs {
		docs[i].URL = source.Repo
		docs[i].Metadata["commit"] = source.Commit
	}
	return docs, nil
}

func readMarkdown(root string, patterns []string) ([]models.Document, error) {
	fsys := os.DirFS(root)

	var docs []models.Document
	for _, pattern := range patterns {
		matches, err := doublestar.Glob(fsys, strings.TrimPrefix(pattern, "/"))
		if err != nil {
			return nil, fmt.Errorf("expand pattern %q: %w", pattern, err)
		}
		sort.Strings(matches)

		for _, m := range matches {
			if !strings.HasSuffix(m, ".md") {
				continue
			}
			info, err := fs.Stat(fsys, m)
			if err != nil || !info.Mode().IsRegular() {
				continue
			}

			content, err := fs.ReadFile(fsys, m)
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", m, err)
			}
			docs = append(docs, models.Document{
				ID:       m,
				Title:    filepath.Base(m),
				Content:  string(content),
				Metadata: map[string]interface{}{"path": m},
			})
		}
	}
	return docs, nil
}
