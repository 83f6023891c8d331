// Package parse converts free-form generation-service output into typed
// records. Model replies arrive with unpredictable framing (prose, markdown
// fences, half-JSON); extraction is tiered: a strict pass over the first
// balanced JSON object, then a lenient bullet-line pass, then empty. Parsing
// never fails — absence of structure is a representable outcome.
package parse

import (
	"encoding/json"
	"strings"

	"leadscout/models"
)

// QueryPlan is the structured output of the enhance stage: the search
// queries to run and the business domains the product serves. Messages
// carries the full raw reply for the audit trail regardless of which
// extraction tier produced the fields.
type QueryPlan struct {
	SearchQueries   []string `json:"search_queries"`
	BusinessDomains []string `json:"business_domains"`
	Messages        []string `json:"messages"`
}

// ParseQueryPlan extracts a QueryPlan from a raw model reply.
//
// Tier 1 takes the first balanced JSON object found anywhere in the text and
// reads search_queries/business_domains from it; keys the object lacks
// default to empty. Tier 2, used only when no object decodes, collects
// bullet-marked lines as search queries. When both tiers miss, the plan is
// empty. The raw text is always preserved in Messages.
func ParseQueryPlan(raw string) QueryPlan {
	plan := QueryPlan{
		SearchQueries:   []string{},
		BusinessDomains: []string{},
		Messages:        []string{raw},
	}
	if obj, ok := FirstJSONObject(raw); ok {
		var decoded struct {
			SearchQueries   []string `json:"search_queries"`
			BusinessDomains []string `json:"business_domains"`
		}
		if err := json.Unmarshal(obj, &decoded); err == nil {
			if decoded.SearchQueries != nil {
				plan.SearchQueries = decoded.SearchQueries
			}
			if decoded.BusinessDomains != nil {
				plan.BusinessDomains = decoded.BusinessDomains
			}
			return plan
		}
	}
	plan.SearchQueries = append(plan.SearchQueries, BulletLines(raw)...)
	return plan
}

// ParseRankedLeads extracts priority tiers from a raw model reply. Only the
// strict tier applies: bullet lines carry no tier information. A reply with
// no decodable object yields the zero value; tiers the object lacks stay
// empty. Tier elements are retained as raw JSON so arbitrary record shapes
// survive unchanged.
func ParseRankedLeads(raw string) models.RankedLeads {
	obj, ok := FirstJSONObject(raw)
	if !ok {
		return models.RankedLeads{}
	}
	var decoded models.RankedLeads
	if err := json.Unmarshal(obj, &decoded); err != nil {
		return models.RankedLeads{}
	}
	return decoded
}

// FirstJSONObject returns the first balanced `{...}` substring of s that is
// valid JSON. Brace matching is string-aware, so braces inside JSON string
// values do not terminate the scan. Candidates that balance but fail to
// validate are skipped and the scan resumes at the next opening brace.
func FirstJSONObject(s string) ([]byte, bool) {
	start := strings.IndexByte(s, '{')
	for start >= 0 {
		if end, ok := balancedEnd(s, start); ok {
			candidate := []byte(s[start : end+1])
			if json.Valid(candidate) {
				return candidate, true
			}
		}
		next := strings.IndexByte(s[start+1:], '{')
		if next < 0 {
			break
		}
		start += 1 + next
	}
	return nil, false
}

// balancedEnd finds the index of the brace closing the object opened at
// start, tracking string literals and escape sequences.
func balancedEnd(s string, start int) (int, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

// BulletLines returns the non-empty content of every line that begins with a
// bullet marker, in input order, with markers and surrounding whitespace
// stripped.
func BulletLines(raw string) []string {
	var out []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "•") || strings.HasPrefix(line, "-") || strings.HasPrefix(line, "*") {
			if v := strings.TrimSpace(strings.Trim(line, "•-* ")); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}
