package types

import (
	"context"
	"io"

	"github.com/xhad/labtest/internal/models"
)

// Core interfaces
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type ChatModel interface {
	Chat(ctx context.Context, system, user string) (string, error)
}

type Backend interface {
	Name() string
	Run(ctx context.Context, examples []models.Example, w io.Writer) error
}
