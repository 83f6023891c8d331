package provider

import (
	"context"
	"errors"
	"fmt"

	"leadscout/config"
	openai_provider "leadscout/provider/openai"
)

// Client identifies a generation-service implementation.
type Client string

const (
	OpenAI Client = "openai"
)

// Generator is the boundary to the natural-language generation service. The
// caller owns prompt construction and is solely responsible for interpreting
// the returned content.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// NewGenerator creates a Generator from configuration. The client is
// process-wide: construct once at startup and share across invocations.
func NewGenerator(cfg config.LLMConfig) (Generator, error) {
	switch Client(cfg.Provider) {
	case OpenAI:
		if cfg.APIKey == "" {
			return nil, errors.New("llm.api_key not set")
		}
		return openai_provider.New(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}
