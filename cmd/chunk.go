package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/xhad/labtest/internal/models"
	"github.com/xhad/labtest/pkg/processor"
	"github.com/xhad/labtest/pkg/sources"
)

type chunkOptions struct {
	knowledge      string
	chunkWordCount int
	serverCtxSize  int
	skipCheckout   bool
	output         string
	maxDepth       int
	rateLimit      float64
}

type chunkRecord struct {
	Source string `json:"source"`
	URL    string `json:"url,omitempty"`
	Index  int    `json:"index"`
	Text   string `json:"text"`
}

func newChunkCmd(a *app) *cobra.Command {
	opts := &chunkOptions{}

	cmd := &cobra.Command{
		Use:   "chunk",
		Short: "Retrieve knowledge documents and split them into context sized chunks",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("chunk-word-count") {
				opts.chunkWordCount = a.config.Chunking.ChunkWordCount
			}
			if !cmd.Flags().Changed("server-ctx-size") {
				opts.serverCtxSize = a.config.Chunking.ServerCtxSize
			}
			if !cmd.Flags().Changed("max-depth") {
				opts.maxDepth = a.config.Web.MaxDepth
			}
			if !cmd.Flags().Changed("rate-limit") {
				opts.rateLimit = a.config.Web.RateLimit
			}
			return runChunk(cmd, a, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.knowledge, "knowledge", "k", "", "Knowledge YAML file describing the documents")
	flags.IntVar(&opts.chunkWordCount, "chunk-word-count", 1000, "Number of words per chunk")
	flags.IntVar(&opts.serverCtxSize, "server-ctx-size", 4096, "Context window size of the model, in tokens")
	flags.BoolVar(&opts.skipCheckout, "skip-checkout", false, "Read the cloned default branch instead of the pinned commit")
	flags.StringVarP(&opts.output, "output", "o", "", "Write chunks to this file instead of stdout")
	flags.IntVar(&opts.maxDepth, "max-depth", 0, "Maximum link depth followed from each knowledge URL")
	flags.Float64Var(&opts.rateLimit, "rate-limit", 2, "Web requests per second")
	_ = cmd.MarkFlagRequired("knowledge")

	return cmd
}

func runChunk(cmd *cobra.Command, a *app, opts *chunkOptions) error {
	if opts.maxDepth < 0 {
		return fmt.Errorf("max depth must be non-negative, got %d", opts.maxDepth)
	}
	if opts.rateLimit <= 0 {
		return fmt.Errorf("rate limit must be positive, got %g", opts.rateLimit)
	}

	p, err := processor.NewWithConfig(processor.ProcessorConfig{
		ChunkWordCount: opts.chunkWordCount,
		ServerCtxSize:  opts.serverCtxSize,
		ChunkOverlap:   a.config.Chunking.ChunkOverlap,
	})
	if err != nil {
		return err
	}

	knowledge, err := sources.LoadKnowledge(opts.knowledge)
	if err != nil {
		return err
	}

	retriever := sources.NewWithConfig(sources.RetrieverConfig{
		Web: sources.WebConfig{
			MaxDepth:       opts.maxDepth,
			RateLimit:      opts.rateLimit,
			IgnorePatterns: a.config.Web.IgnorePatterns,
		},
		Logger: a.logger,
	})
	docs, err := retriever.GetDocuments(cmd.Context(), *knowledge.Document, opts.skipCheckout)
	if err != nil {
		return err
	}
	a.logger.Debug("retrieved documents", "count", len(docs))

	processed, err := p.Process(docs)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if opts.output != "" {
		f, err := os.Create(opts.output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	count, err := writeChunks(out, processed)
	if err != nil {
		return err
	}

	color.New(color.FgGreen).Fprintf(a.stderr, "✓ Split %d documents into %d chunks\n", len(docs), count)
	return nil
}

func writeChunks(w io.Writer, processed []models.ProcessedDocument) (int, error) {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	count := 0
	for _, doc := range processed {
		for i, chunk := range doc.Chunks {
			record := chunkRecord{Source: doc.ID, URL: doc.URL, Index: i, Text: chunk}
			if err := enc.Encode(record); err != nil {
				return count, fmt.Errorf("failed to write chunk: %w", err)
			}
			count++
		}
	}
	return count, nil
}
