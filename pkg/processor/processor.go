package processor

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"
	"github.com/xhad/labtest/internal/models"
)

const (
	// DefaultChunkOverlap is the number of characters shared by consecutive
	// chunks of the same document.
	DefaultChunkOverlap = 100

	// LongWordSlack bounds how far a chunk may run past its budget when a
	// single word cannot be split.
	LongWordSlack = 50

	tokensPerWord = 1.3
	charsPerToken = 4
)

var ErrInvalidChunkConfig = errors.New("invalid chunk configuration")

var separators = []string{"\n\n", "\n", " "}

type ChunkConfig struct {
	ChunkWordCount int
	ServerCtxSize  int
	ChunkOverlap   int
}

// NumTokensFromWords estimates the tokens needed for n words.
func NumTokensFromWords(n int) int {
	return int(float64(n) * tokensPerWord)
}

// NumCharsFromTokens estimates the characters covered by n tokens.
func NumCharsFromTokens(n int) int {
	return n * charsPerToken
}

// ChunkSize returns the character budget of a single chunk.
func (c ChunkConfig) ChunkSize() int {
	return NumCharsFromTokens(NumTokensFromWords(c.ChunkWordCount))
}

// MaxChunkLength is the upper bound on the length of any produced chunk.
func (c ChunkConfig) MaxChunkLength() int {
	return c.ChunkSize() + c.ChunkOverlap + LongWordSlack
}

func (c ChunkConfig) Validate() error {
	if c.ChunkOverlap < 0 {
		return fmt.Errorf("%w: Got a negative chunk overlap (%d)", ErrInvalidChunkConfig, c.ChunkOverlap)
	}
	tokens := NumTokensFromWords(c.ChunkWordCount)
	if tokens > c.ServerCtxSize {
		return fmt.Errorf("%w: Given word count (%d) per doc will exceed the server context window size (%d)",
			ErrInvalidChunkConfig, c.ChunkWordCount, c.ServerCtxSize)
	}
	chars := NumCharsFromTokens(tokens)
	if c.ChunkOverlap >= chars {
		return fmt.Errorf("%w: Got a larger chunk overlap (%d) than chunk size (%d), should be smaller",
			ErrInvalidChunkConfig, c.ChunkOverlap, chars)
	}
	return nil
}

func (c ChunkConfig) splitter() textsplitter.RecursiveCharacter {
	return textsplitter.NewRecursiveCharacter(
		textsplitter.WithSeparators(separators),
		textsplitter.WithChunkSize(c.ChunkSize()),
		textsplitter.WithChunkOverlap(c.ChunkOverlap),
	)
}

// ChunkDocuments splits every document into chunks that fit the context
// window described by cfg. Chunks of one document never overlap with chunks
// of another.
func ChunkDocuments(documents []string, cfg ChunkConfig) ([]string, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	splitter := cfg.splitter()
	var chunks []string
	for i, doc := range documents {
		parts, err := splitter.SplitText(doc)
		if err != nil {
			return nil, fmt.Errorf("failed to split document %d: %w", i, err)
		}
		chunks = append(chunks, parts...)
	}
	return chunks, nil
}

// ProcessorConfig holds the chunking parameters of a Processor. Zero values
// select the defaults: 1000 words, a 4096 token window and an overlap of
// DefaultChunkOverlap. A zero overlap cannot be requested through it; use
// ChunkDocuments with a ChunkConfig for that.
type ProcessorConfig struct {
	ChunkWordCount int
	ServerCtxSize  int
	ChunkOverlap   int
}

type Processor struct {
	config ChunkConfig
}

func NewWithConfig(config ProcessorConfig) (*Processor, error) {
	if config.ChunkWordCount == 0 {
		config.ChunkWordCount = 1000
	}
	if config.ServerCtxSize == 0 {
		config.ServerCtxSize = 4096
	}
	if config.ChunkOverlap == 0 {
		config.ChunkOverlap = DefaultChunkOverlap
	}

	chunkConfig := ChunkConfig{
		ChunkWordCount: config.ChunkWordCount,
		ServerCtxSize:  config.ServerCtxSize,
		ChunkOverlap:   config.ChunkOverlap,
	}
	if err := chunkConfig.Validate(); err != nil {
		return nil, err
	}

	return &Processor{config: chunkConfig}, nil
}

func (p *Processor) Config() ChunkConfig {
	return p.config
}

func (p *Processor) Process(docs []models.Document) ([]models.ProcessedDocument, error) {
	splitter := p.config.splitter()
	processed := make([]models.ProcessedDocument, 0, len(docs))

	for _, doc := range docs {
		if strings.TrimSpace(doc.Content) == "" {
			continue
		}

		chunks, err := splitter.SplitText(doc.Content)
		if err != nil {
			return nil, fmt.Errorf("failed to split document %s: %w", doc.ID, err)
		}

		processed = append(processed, models.ProcessedDocument{
			Document: doc,
			Chunks:   chunks,
		})
	}

	return processed, nil
}
