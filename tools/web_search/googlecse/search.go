package googlecse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"golang.org/x/time/rate"

	"leadscout/config"
	"leadscout/models"
)

const (
	// DefaultBaseURL is the Custom Search JSON API endpoint.
	DefaultBaseURL = "https://www.googleapis.com/customsearch/v1"

	// maxPerRequest is the API's hard cap on the num parameter.
	maxPerRequest = 10

	defaultRPS = 5
)

// Search queries the Google Custom Search JSON API. One instance is shared
// process-wide; the embedded limiter throttles all callers together.
type Search struct {
	APIKey   string
	EngineID string
	BaseURL  string

	httpClient *http.Client
	limiter    *rate.Limiter
}

// New validates credentials and builds the client. A missing API key or
// engine ID is a startup error, not a per-call one.
func New(cfg config.SearchConfig) (*Search, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("search.api_key not set")
	}
	if cfg.EngineID == "" {
		return nil, errors.New("search.engine_id not set")
	}
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	rps := cfg.RateLimitRPS
	if rps <= 0 {
		rps = defaultRPS
	}
	return &Search{
		APIKey:     cfg.APIKey,
		EngineID:   cfg.EngineID,
		BaseURL:    base,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
	}, nil
}

// Search runs one query and maps result items to candidates.
func (s *Search) Search(ctx context.Context, q string, k int) ([]models.CandidateResult, error) {
	if k <= 0 {
		k = 5
	}
	if k > maxPerRequest {
		k = maxPerRequest
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("key", s.APIKey)
	params.Set("cx", s.EngineID)
	params.Set("q", q)
	params.Set("num", fmt.Sprint(k))

	req, err := http.NewRequestWithContext(ctx, "GET", s.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("customsearch returned status %d", resp.StatusCode)
	}

	var raw struct {
		Items []struct {
			Title   string `json:"title"`
			Snippet string `json:"snippet"`
			Link    string `json:"link"`
		} `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, err
	}

	var out []models.CandidateResult
	for i, item := range raw.Items {
		if i >= k {
			break
		}
		out = append(out, models.CandidateResult{Title: item.Title, Snippet: item.Snippet, URL: item.Link})
	}
	return out, nil
}
