// Package index maintains an in-memory full-text index over the ranked leads
// of archived runs, backing the lead search endpoint.
package index

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/blevesearch/bleve"

	"leadscout/models"
)

// Lead is one indexed ranked-lead document.
type Lead struct {
	RunID   string `json:"run_id"`
	Tier    string `json:"tier"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	URL     string `json:"url"`
	Product string `json:"product"`
}

// Hit is one search result with its relevance score.
type Hit struct {
	Lead
	Score float64 `json:"score"`
}

// Index is a process-wide in-memory lead index. Bleve only hands back
// document IDs on search, so the full documents are kept in a side map.
type Index struct {
	mu    sync.RWMutex
	idx   bleve.Index
	leads map[string]Lead
}

func NewMemOnly() (*Index, error) {
	idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, err
	}
	return &Index{idx: idx, leads: make(map[string]Lead)}, nil
}

// tierEntry is the loose shape of one ranked-lead record. The ranking model
// is asked for title/snippet/url but not guaranteed to comply, so every field
// is optional.
type tierEntry struct {
	Title   string `json:"title"`
	Name    string `json:"name"`
	Snippet string `json:"snippet"`
	URL     string `json:"url"`
	Reason  string `json:"reason"`
}

// AddRun indexes every decodable ranked lead of a completed run and reports
// how many documents were added. Entries that do not decode as objects are
// skipped.
func (x *Index) AddRun(runID, product string, ranked models.RankedLeads) (int, error) {
	tiers := []struct {
		name    string
		entries []json.RawMessage
	}{
		{"high", ranked.HighPriority},
		{"medium", ranked.MediumPriority},
		{"low", ranked.LowPriority},
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	added := 0
	for _, tier := range tiers {
		for i, raw := range tier.entries {
			var entry tierEntry
			if err := json.Unmarshal(raw, &entry); err != nil {
				continue
			}
			title := entry.Title
			if title == "" {
				title = entry.Name
			}
			lead := Lead{
				RunID:   runID,
				Tier:    tier.name,
				Title:   title,
				Snippet: entry.Snippet,
				URL:     entry.URL,
				Product: product,
			}
			id := fmt.Sprintf("%s/%s/%d", runID, tier.name, i)
			if err := x.idx.Index(id, lead); err != nil {
				return added, err
			}
			x.leads[id] = lead
			added++
		}
	}
	return added, nil
}

// Search runs a bleve query-string query and returns up to k hits, best
// first.
func (x *Index) Search(q string, k int) ([]Hit, error) {
	if k <= 0 {
		k = 10
	}
	query := bleve.NewQueryStringQuery(q)
	req := bleve.NewSearchRequestOptions(query, k, 0, false)

	x.mu.RLock()
	defer x.mu.RUnlock()

	res, err := x.idx.Search(req)
	if err != nil {
		return nil, err
	}
	out := make([]Hit, 0, len(res.Hits))
	for _, hit := range res.Hits {
		lead, ok := x.leads[hit.ID]
		if !ok {
			continue
		}
		out = append(out, Hit{Lead: lead, Score: hit.Score})
	}
	return out, nil
}

// Count reports the number of indexed leads.
func (x *Index) Count() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.leads)
}
