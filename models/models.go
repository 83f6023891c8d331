package models

import "encoding/json"

// CandidateResult is a single organization discovered for a search query.
// Immutable once produced by the discovery layer.
type CandidateResult struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	URL     string `json:"url"`
}

// RankedLeads groups candidates into priority tiers as returned by the
// generation service. Tier elements are kept as raw JSON so that whatever
// record shape the model produced survives round-tripping untouched;
// partial output (only some tiers populated) is preserved as-is.
type RankedLeads struct {
	HighPriority   []json.RawMessage `json:"high_priority,omitempty"`
	MediumPriority []json.RawMessage `json:"medium_priority,omitempty"`
	LowPriority    []json.RawMessage `json:"low_priority,omitempty"`
}

// IsEmpty reports whether no tier holds any entries.
func (r RankedLeads) IsEmpty() bool {
	return len(r.HighPriority) == 0 && len(r.MediumPriority) == 0 && len(r.LowPriority) == 0
}

// Total counts entries across all tiers.
func (r RankedLeads) Total() int {
	return len(r.HighPriority) + len(r.MediumPriority) + len(r.LowPriority)
}
