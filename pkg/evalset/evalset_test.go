package evalset

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/labtest/internal/models"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeFile(t, t.TempDir(), "test.jsonl",
		`{"system": "You are helpful.", "user": "What is 2+2?", "assistant": "4"}

{"system": "", "user": "Name a color", "assistant": "Blue", "extra": 1}
`)

	examples, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []models.Example{
		{System: "You are helpful.", User: "What is 2+2?", Assistant: "4"},
		{System: "", User: "Name a color", Assistant: "Blue"},
	}, examples)
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
		wantErr error
		msg     string
	}{
		{
			name:    "missing key",
			content: `{"system": "s", "user": "u"}`,
			wantErr: ErrMalformedRecord,
			msg:     `missing key "assistant"`,
		},
		{
			name:    "not json",
			content: `{"system": "s",`,
			wantErr: ErrMalformedRecord,
		},
		{
			name:    "wrong type",
			content: `{"system": "s", "user": 3, "assistant": "a"}`,
			wantErr: ErrMalformedRecord,
			msg:     `key "user" is not a string`,
		},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, dir, filepath.Base(t.Name())+".jsonl", tt.content)
			_, err := Load(path)
			require.Error(t, err, "case %d", i)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Contains(t, err.Error(), ":1:")
			if tt.msg != "" {
				assert.Contains(t, err.Error(), tt.msg)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "test.jsonl"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLatest(t *testing.T) {
	dir := t.TempDir()
	older := writeFile(t, dir, "test_a.jsonl", "")
	newer := writeFile(t, dir, "test_b.jsonl", "")
	writeFile(t, dir, "train_c.jsonl", "")

	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(older, past, past))

	got, err := Latest(dir, "test_*")
	require.NoError(t, err)
	assert.Equal(t, newer, got)

	_, err = Latest(t.TempDir(), "test_*")
	assert.ErrorIs(t, err, ErrNotFound)
}
