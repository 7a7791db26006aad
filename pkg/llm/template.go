package llm

import (
	"errors"
	"fmt"
	"strings"
)

const DefaultSystemPrompt = "You are an AI language model developed by IBM Research. You are a cautious assistant. You carefully follow instructions. You are helpful and harmless and you follow ethical guidelines and promote positive behavior."

var ErrUnknownFamily = errors.New("unknown model family")

var templates = map[string]string{
	"merlinite": "<|system|>\n{system}\n<|user|>\n{user}\n<|assistant|>",
	"mixtral":   "<s> [INST] {system}\n{user} [/INST]",
}

// Families lists the supported model families.
func Families() []string {
	return []string{"merlinite", "mixtral"}
}

// FormatPrompt renders system and user into the generation template of the
// given model family. An empty family selects merlinite.
func FormatPrompt(family, system, user string) (string, error) {
	family = strings.ToLower(strings.TrimSpace(family))
	if family == "" {
		family = "merlinite"
	}

	tmpl, ok := templates[family]
	if !ok {
		return "", fmt.Errorf("%w: %q (supported: %s)", ErrUnknownFamily, family, strings.Join(Families(), ", "))
	}

	r := strings.NewReplacer("{system}", system, "{user}", user)
	return r.Replace(tmpl), nil
}
