package evalset

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xhad/labtest/internal/models"
)

var (
	ErrNotFound        = errors.New("test data file not found")
	ErrMalformedRecord = errors.New("malformed record")
)

const maxLineSize = 16 * 1024 * 1024

// Load reads a JSON lines file of evaluation examples. Every line must be an
// object carrying string values for system, user and assistant.
func Load(path string) ([]models.Example, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("failed to open test data: %w", err)
	}
	defer f.Close()

	var examples []models.Example
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		example, err := parseRecord([]byte(text))
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		examples = append(examples, example)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read test data: %w", err)
	}

	return examples, nil
}

func parseRecord(data []byte) (models.Example, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return models.Example{}, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}

	fields := make(map[string]string, 3)
	for _, key := range []string{"system", "user", "assistant"} {
		value, ok := raw[key]
		if !ok {
			return models.Example{}, fmt.Errorf("%w: missing key %q", ErrMalformedRecord, key)
		}
		var s string
		if err := json.Unmarshal(value, &s); err != nil {
			return models.Example{}, fmt.Errorf("%w: key %q is not a string", ErrMalformedRecord, key)
		}
		fields[key] = s
	}

	return models.Example{
		System:    fields["system"],
		User:      fields["user"],
		Assistant: fields["assistant"],
	}, nil
}

// Latest returns the most recently modified file in dir matching pattern.
func Latest(dir, pattern string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return "", fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}

	var latest string
	var latestInfo os.FileInfo
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || info.IsDir() {
			continue
		}
		if latestInfo == nil || info.ModTime().After(latestInfo.ModTime()) {
			latest, latestInfo = m, info
		}
	}

	if latest == "" {
		return "", fmt.Errorf("%w: no %s in %s", ErrNotFound, pattern, dir)
	}
	return latest, nil
}
