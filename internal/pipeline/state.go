package pipeline

import (
	"encoding/json"

	"leadscout/models"
)

// State is the single record threaded through a pipeline run. Stages only add
// fields or overwrite fields they own; nothing is removed once written.
type State struct {
	ProductName string   `json:"product_name"`
	Description string   `json:"description"`
	Features    []string `json:"features"`
	Competitors []string `json:"competitors"`

	SearchQueries   []string `json:"search_queries,omitempty"`
	BusinessDomains []string `json:"business_domains,omitempty"`

	ScrapedLeads map[string][]models.CandidateResult `json:"scraped_leads,omitempty"`

	ValueProp       string `json:"value_prop,omitempty"`
	CustomerProfile string `json:"customer_profile,omitempty"`

	RankedLeads *models.RankedLeads `json:"ranked_leads,omitempty"`

	Messages []string `json:"messages,omitempty"`
}

// NewState builds the initial state from caller-supplied product fields.
func NewState(productName, description string, features, competitors []string) State {
	if features == nil {
		features = []string{}
	}
	if competitors == nil {
		competitors = []string{}
	}
	return State{
		ProductName: productName,
		Description: description,
		Features:    features,
		Competitors: competitors,
	}
}

// Clone returns a deep copy so a stage can build its successor state without
// aliasing the one it was handed.
func (s State) Clone() State {
	out := s
	out.Features = cloneStrings(s.Features)
	out.Competitors = cloneStrings(s.Competitors)
	out.SearchQueries = cloneStrings(s.SearchQueries)
	out.BusinessDomains = cloneStrings(s.BusinessDomains)
	out.Messages = cloneStrings(s.Messages)
	if s.ScrapedLeads != nil {
		m := make(map[string][]models.CandidateResult, len(s.ScrapedLeads))
		for k, v := range s.ScrapedLeads {
			cp := make([]models.CandidateResult, len(v))
			copy(cp, v)
			m[k] = cp
		}
		out.ScrapedLeads = m
	}
	if s.RankedLeads != nil {
		rl := models.RankedLeads{
			HighPriority:   cloneRaw(s.RankedLeads.HighPriority),
			MediumPriority: cloneRaw(s.RankedLeads.MediumPriority),
			LowPriority:    cloneRaw(s.RankedLeads.LowPriority),
		}
		out.RankedLeads = &rl
	}
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func cloneRaw(in []json.RawMessage) []json.RawMessage {
	if in == nil {
		return nil
	}
	out := make([]json.RawMessage, len(in))
	copy(out, in)
	return out
}

// Stage identifies one step of the pipeline state machine.
type Stage int

const (
	StageStart Stage = iota
	StageEnhancing
	StageDiscovering
	StageRanking
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageStart:
		return "start"
	case StageEnhancing:
		return "enhancing"
	case StageDiscovering:
		return "discovering"
	case StageRanking:
		return "ranking"
	case StageDone:
		return "done"
	default:
		return "unknown"
	}
}

// next returns the successor in the linear chain. Guarded skips jump straight
// to StageDone via StageResult.Terminal instead.
func (s Stage) next() Stage {
	switch s {
	case StageStart:
		return StageEnhancing
	case StageEnhancing:
		return StageDiscovering
	case StageDiscovering:
		return StageRanking
	default:
		return StageDone
	}
}

// StageResult is a tagged stage outcome: Continue hands the updated state to
// the next stage, Terminate ends the run early with a reason, Degraded
// continues with whatever the stage salvaged after a recovered error.
type StageResult struct {
	State    State
	Terminal bool
	Reason   string
	Err      error
}

func Continue(state State) StageResult { return StageResult{State: state} }

func Terminate(state State, reason string) StageResult {
	return StageResult{State: state, Terminal: true, Reason: reason}
}

func Degraded(state State, err error) StageResult {
	return StageResult{State: state, Err: err}
}
