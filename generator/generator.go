// Package generator abstracts the LLM used to answer questions.
//
// The engine only needs single-shot completion over an assembled prompt;
// providers that support richer APIs (streaming, tools) are deliberately
// narrowed to this interface.
package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrGeneration marks any failure from the generation service, so callers
// can distinguish "the model call failed" from retrieval or storage faults
// with errors.Is.
var ErrGeneration = errors.New("generation failed")

// Generator produces a completion for a fully assembled prompt.
type Generator interface {
	// Complete sends the prompt and returns the model's text answer.
	Complete(ctx context.Context, prompt string) (string, error)

	// Name identifies the provider, e.g. "anthropic" or "openai".
	Name() string
}

// Config selects and configures a provider.
type Config struct {
	// Provider name: "anthropic" (default) or "openai".
	Provider string

	// APIKey for the selected provider.
	APIKey string

	// Model overrides the provider default.
	Model string

	// MaxTokens caps the response length. Zero means provider default.
	MaxTokens int
}

// NewFromConfig builds a Generator for the configured provider.
func NewFromConfig(cfg Config) (Generator, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "anthropic", "claude":
		return NewAnthropic(cfg)
	case "openai":
		return NewOpenAI(cfg)
	default:
		return nil, fmt.Errorf("unknown generation provider: %s (supported: anthropic, openai)", cfg.Provider)
	}
}
