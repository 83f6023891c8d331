package web_search

import (
	"context"
	"errors"

	"leadscout/config"
	"leadscout/models"
	"leadscout/tools/web_search/googlecse"
)

// WebSearcher returns at most k candidate organizations for a query.
type WebSearcher interface {
	Search(ctx context.Context, q string, k int) ([]models.CandidateResult, error)
}

type Provider string

const (
	GoogleCSEProvider Provider = "googlecse"
)

var ErrUnsupportedProvider = errors.New("unsupported search provider")

// NewWebSearcher builds the configured search backend. Credential problems
// surface here, at startup, not per call.
func NewWebSearcher(provider Provider, cfg config.SearchConfig) (WebSearcher, error) {
	switch provider {
	case GoogleCSEProvider:
		return googlecse.New(cfg)
	default:
		return nil, ErrUnsupportedProvider
	}
}
