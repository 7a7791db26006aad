package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/labtest/pkg/processor"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	stdout, _, err := executeWithStderr(t, args...)
	return stdout, err
}

func executeWithStderr(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func newCompletionServer(t *testing.T) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string          `json:"role"`
				Content json.RawMessage `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		last := messageText(req.Messages[len(req.Messages)-1].Content)

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"id":"1","object":"chat.completion","created":1,"model":%q,
			"choices":[{"index":0,"message":{"role":"assistant","content":%q},"finish_reason":"stop"}],
			"usage":{"prompt_tokens":1,"completion_tokens":1,"total_tokens":2}}`, req.Model, "echo "+last)
	}))
}

func TestTestCommandServed(t *testing.T) {
	srv := newCompletionServer(t)
	defer srv.Close()

	dir := t.TempDir()
	configPath := writeFile(t, dir, "labtest.yaml", fmt.Sprintf("serve:\n  endpoint_url: %q\ngenerate:\n  output_dir: %q\n", srv.URL+"/v1", dir))
	writeFile(t, dir, "test_run.jsonl", `{"system": "sys", "user": "What is 2+2?", "assistant": "4"}`+"\n")

	out, stderr, err := executeWithStderr(t, "--config", configPath, "test", "--backend", "served", "--trained-model", "")
	require.NoError(t, err)
	assert.Equal(t, "\n### What is 2+2?\n\nmerlinite-7b-lab-Q4_K_M: echo What is 2+2?\n\n", out)
	assert.NotContains(t, stderr, "Error")
}

func TestProgressBarWritesToGivenWriter(t *testing.T) {
	var buf bytes.Buffer
	bar := getProgressBar(&buf, 2, "Testing model")
	progressFunc(bar)(1, 2)
	assert.Contains(t, buf.String(), "Testing model")
}

func TestTestCommandServedFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	dir := t.TempDir()
	configPath := writeFile(t, dir, "labtest.yaml", fmt.Sprintf("serve:\n  endpoint_url: %q\n", srv.URL+"/v1"))
	testFile := writeFile(t, dir, "test.jsonl", `{"system": "sys", "user": "u", "assistant": "a"}`)

	_, err := execute(t, "--config", configPath, "test", "--backend", "served", "-t", testFile)
	var exitErr *exitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 1, exitErr.code)
	assert.True(t, strings.HasPrefix(exitErr.msg, "Testing models failed with the following error:"))
}

func TestTestCommandMissingTestData(t *testing.T) {
	dir := t.TempDir()
	configPath := writeFile(t, dir, "labtest.yaml", "log:\n  level: error\n")

	_, err := execute(t, "--config", configPath, "test", "--backend", "adapter", "--data-dir", dir)
	var exitErr *exitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 1, exitErr.code)
	assert.Contains(t, exitErr.msg, filepath.Join(dir, "test.jsonl"))
	assert.Contains(t, exitErr.msg, "no such file or directory")
}

func TestTestCommandUnknownBackend(t *testing.T) {
	configPath := writeFile(t, t.TempDir(), "labtest.yaml", "")
	_, err := execute(t, "--config", configPath, "test", "--backend", "tpu")
	assert.Error(t, err)
}

func TestChunkCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><head><title>Phoenix</title></head><body><main>Phoenix is a minor constellation.</main></body></html>`)
	}))
	defer srv.Close()

	dir := t.TempDir()
	configPath := writeFile(t, dir, "labtest.yaml", "")
	knowledge := writeFile(t, dir, "qna.yaml", fmt.Sprintf("domain: astronomy\ndocument:\n  urls:\n    - %q\n", srv.URL+"/"))

	out, err := execute(t, "--config", configPath, "chunk", "-k", knowledge, "--chunk-word-count", "50")
	require.NoError(t, err)

	var record chunkRecord
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(out)), &record))
	assert.Equal(t, srv.URL+"/", record.Source)
	assert.Equal(t, 0, record.Index)
	assert.Equal(t, "Phoenix is a minor constellation.", record.Text)
}

func TestChunkCommandFollowsLinks(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body><main>Index page. <a href="/guide">Guide</a> <a href="/blog/post">Blog</a> <a href="/manual.pdf">PDF</a></main></body></html>`)
	})
	mux.HandleFunc("/guide", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body><main>Guide page.</main></body></html>`)
	})
	mux.HandleFunc("/blog/post", func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("ignored page %s was fetched", r.URL.Path)
	})
	mux.HandleFunc("/manual.pdf", func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("non page link %s was fetched", r.URL.Path)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	dir := t.TempDir()
	configPath := writeFile(t, dir, "labtest.yaml", "web:\n  rate_limit: 100\n  ignore_patterns:\n    - \"/blog/\"\n")
	knowledge := writeFile(t, dir, "qna.yaml", fmt.Sprintf("domain: astronomy\ndocument:\n  urls:\n    - %q\n", srv.URL+"/"))

	out, err := execute(t, "--config", configPath, "chunk", "-k", knowledge, "--chunk-word-count", "50", "--max-depth", "1")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)

	var first, second chunkRecord
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, srv.URL+"/", first.Source)
	assert.Equal(t, srv.URL+"/guide", second.Source)
	assert.Equal(t, "Guide page.", second.Text)
}

func TestChunkCommandInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	configPath := writeFile(t, dir, "labtest.yaml", "")

	_, err := execute(t, "--config", configPath, "chunk",
		"-k", filepath.Join(dir, "missing.yaml"),
		"--chunk-word-count", "5",
		"--server-ctx-size", "1034")
	require.ErrorIs(t, err, processor.ErrInvalidChunkConfig)
	assert.Contains(t, err.Error(), "Got a larger chunk overlap (100) than chunk size (24), should be smaller")
}

func messageText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var parts []struct {
		Text string `json:"text"`
	}
	_ = json.Unmarshal(raw, &parts)
	var sb strings.Builder
	for _, p := range parts {
		sb.WriteString(p.Text)
	}
	return sb.String()
}
