// Package pipeline runs the lead research workflow: enhance the product input
// into search queries, discover candidate organizations, then rank them. The
// stages form a strict linear state machine with two guarded skips; every
// stage failure degrades to empty output instead of aborting the run.
package pipeline

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"leadscout/config"
	"leadscout/internal/parse"
	"leadscout/internal/telemetry"
	"leadscout/models"
	"leadscout/provider"
	fetchmodels "leadscout/tools/web_fetch/models"
)

// Entry validation failures, the only errors Run reports upward.
var (
	ErrMissingProductName = errors.New("product_name is required")
	ErrMissingDescription = errors.New("description is required")
)

// Run statuses recorded through the Recorder.
const (
	RunStatusRunning   = "running"
	RunStatusSucceeded = "succeeded"
	RunStatusCancelled = "cancelled"
)

const defaultScrapePerQuery = 8

// Discoverer turns a batch of queries into candidates, one entry per unique
// query, failed queries mapping to empty lists.
type Discoverer interface {
	SearchMany(ctx context.Context, queries []string) map[string][]models.CandidateResult
}

// Scraper fetches rendered page text for the organic results of each query.
type Scraper interface {
	Collect(ctx context.Context, queries []string, perQuery int) []fetchmodels.Page
}

// Recorder archives run state for later review. All calls are best-effort
// from the orchestrator's point of view.
type Recorder interface {
	CreateRun(ctx context.Context, runID string, state State) error
	SaveStage(ctx context.Context, runID string, stage string, state State) error
	FinishRun(ctx context.Context, runID string, status string, errMsg *string) error
}

// LeadSink receives the ranked leads of completed runs, typically a search
// index. Best-effort, like the Recorder.
type LeadSink interface {
	AddRun(runID, product string, ranked models.RankedLeads) (int, error)
}

// Deps carries the collaborators a pipeline needs. LLM and Discovery are
// required; everything else degrades to a no-op when nil.
type Deps struct {
	LLM            provider.Generator
	Discovery      Discoverer
	Scraper        Scraper
	Recorder       Recorder
	Leads          LeadSink
	Artifacts      *ArtifactWriter
	Telemetry      *telemetry.Telemetry
	Logger         *log.Logger
	ScrapePerQuery int
}

// Orchestrator executes pipeline runs. One instance is shared process-wide;
// each run owns its own State so no locking is needed.
type Orchestrator struct {
	llm            provider.Generator
	discovery      Discoverer
	scraper        Scraper
	recorder       Recorder
	leads          LeadSink
	artifacts      *ArtifactWriter
	telemetry      *telemetry.Telemetry
	logger         *log.Logger
	scrapePerQuery int
}

func NewOrchestrator(deps Deps) (*Orchestrator, error) {
	if deps.LLM == nil {
		return nil, errors.New("pipeline: generation client is required")
	}
	if deps.Discovery == nil {
		return nil, errors.New("pipeline: discovery client is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = log.New(log.Writer(), "[PIPELINE] ", log.LstdFlags)
	}
	tele := deps.Telemetry
	if tele == nil {
		tele = telemetry.NewTelemetry(config.TelemetryConfig{})
	}
	perQuery := deps.ScrapePerQuery
	if perQuery <= 0 {
		perQuery = defaultScrapePerQuery
	}
	return &Orchestrator{
		llm:            deps.LLM,
		discovery:      deps.Discovery,
		scraper:        deps.Scraper,
		recorder:       deps.Recorder,
		leads:          deps.Leads,
		artifacts:      deps.Artifacts,
		telemetry:      tele,
		logger:         logger,
		scrapePerQuery: perQuery,
	}, nil
}

// Run executes the pipeline for one product and returns the accumulated
// state. It fails only on invalid input; every downstream error is recovered
// at the owning stage.
func (o *Orchestrator) Run(ctx context.Context, input State) (State, error) {
	if err := validateInput(input); err != nil {
		return State{}, err
	}

	runID := uuid.New().String()
	started := time.Now()
	state := input.Clone()
	if state.Features == nil {
		state.Features = []string{}
	}
	if state.Competitors == nil {
		state.Competitors = []string{}
	}

	o.logger.Printf("run %s started for product %q", runID, state.ProductName)
	o.createRun(ctx, runID, state)

	for stage := StageStart.next(); stage != StageDone; {
		stageStart := time.Now()
		var result StageResult
		switch stage {
		case StageEnhancing:
			result = o.enhance(ctx, runID, state)
		case StageDiscovering:
			result = o.discover(ctx, runID, state)
		case StageRanking:
			result = o.rank(ctx, runID, state)
		}

		outcome := telemetry.OutcomeOK
		switch {
		case result.Terminal:
			outcome = telemetry.OutcomeSkipped
		case result.Err != nil:
			outcome = telemetry.OutcomeError
		}
		o.recordStage(ctx, runID, stage, time.Since(stageStart), outcome, result.Err)

		state = result.State
		if result.Terminal {
			o.logger.Printf("run %s: %s", runID, result.Reason)
			break
		}
		o.saveStage(ctx, runID, stage, state)
		stage = stage.next()
	}

	status := RunStatusSucceeded
	if ctx.Err() != nil {
		status = RunStatusCancelled
	}
	// Detached context so the final status write survives caller cancellation.
	o.finishRun(context.Background(), runID, status)
	o.telemetry.RecordRunEvent(ctx, telemetry.RunEvent{
		ID:          runID,
		ProductName: state.ProductName,
		StartTime:   started,
		EndTime:     time.Now(),
		Duration:    time.Since(started),
		Success:     status == RunStatusSucceeded,
	})
	o.logger.Printf("run %s finished with status %s in %v", runID, status, time.Since(started))
	return state, nil
}

func validateInput(state State) error {
	if strings.TrimSpace(state.ProductName) == "" {
		return ErrMissingProductName
	}
	if strings.TrimSpace(state.Description) == "" {
		return ErrMissingDescription
	}
	return nil
}

// enhance asks the generation service for search queries and business domains
// and merges the parsed plan into the state.
func (o *Orchestrator) enhance(ctx context.Context, runID string, state State) StageResult {
	next := state.Clone()
	raw, err := o.llm.Generate(ctx, enhancePrompt(next))
	if err != nil {
		o.logger.Printf("run %s: query plan generation failed: %v", runID, err)
		next.SearchQueries = []string{}
		next.BusinessDomains = []string{}
		return Degraded(next, err)
	}

	plan := parse.ParseQueryPlan(raw)
	next.SearchQueries = plan.SearchQueries
	next.BusinessDomains = plan.BusinessDomains
	next.Messages = append(next.Messages, plan.Messages...)
	o.logger.Printf("run %s: %d search queries, %d business domains",
		runID, len(next.SearchQueries), len(next.BusinessDomains))
	return Continue(next)
}

// discover fans the queries out to the search backend. Guarded: with no
// queries there is nothing to discover, so the run ends here.
func (o *Orchestrator) discover(ctx context.Context, runID string, state State) StageResult {
	if len(state.SearchQueries) == 0 {
		return Terminate(state, "no search queries produced, skipping discovery and ranking")
	}

	next := state.Clone()
	next.ScrapedLeads = o.discovery.SearchMany(ctx, next.SearchQueries)

	total := 0
	for _, candidates := range next.ScrapedLeads {
		total += len(candidates)
	}
	o.telemetry.AddCandidatesFound(total)
	o.logger.Printf("run %s: discovery returned %d candidates across %d queries",
		runID, total, len(next.ScrapedLeads))
	o.artifacts.WriteDiscoveryResults(runID, next.ScrapedLeads)

	if o.scraper != nil {
		o.deepScrape(ctx, runID, next.SearchQueries)
	}
	return Continue(next)
}

// deepScrape renders and fetches organic result pages for the queries. Purely
// diagnostic: output lands in the raw_pages artifact, never in the state.
func (o *Orchestrator) deepScrape(ctx context.Context, runID string, queries []string) {
	pages := o.scraper.Collect(ctx, queries, o.scrapePerQuery)
	o.telemetry.AddPagesFetched(len(pages))
	o.logger.Printf("run %s: deep scrape fetched %d pages", runID, len(pages))
	o.artifacts.WriteRawPages(runID, pages)
}

// rank synthesizes the pitch fields and asks the generation service to tier
// the candidates. Guarded: with no candidates there is nothing to rank.
func (o *Orchestrator) rank(ctx context.Context, runID string, state State) StageResult {
	if !hasCandidates(state.ScrapedLeads) {
		return Terminate(state, "no candidates discovered, skipping ranking")
	}

	next := state.Clone()
	next.ValueProp = valueProp(next)
	next.CustomerProfile = customerProfile(next)

	prompt, err := rankPrompt(next)
	if err != nil {
		o.logger.Printf("run %s: building ranking prompt failed: %v", runID, err)
		next.RankedLeads = &models.RankedLeads{}
		return Degraded(next, err)
	}
	raw, err := o.llm.Generate(ctx, prompt)
	if err != nil {
		o.logger.Printf("run %s: lead ranking failed: %v", runID, err)
		next.RankedLeads = &models.RankedLeads{}
		return Degraded(next, err)
	}

	next.Messages = append(next.Messages, raw)
	ranked := parse.ParseRankedLeads(raw)
	next.RankedLeads = &ranked
	o.logger.Printf("run %s: ranked %d leads", runID, ranked.Total())
	o.artifacts.WriteRankedLeads(runID, ranked)
	o.indexLeads(runID, next.ProductName, ranked)
	return Continue(next)
}

func (o *Orchestrator) indexLeads(runID, product string, ranked models.RankedLeads) {
	if o.leads == nil || ranked.IsEmpty() {
		return
	}
	added, err := o.leads.AddRun(runID, product, ranked)
	if err != nil {
		o.logger.Printf("run %s: indexing ranked leads failed: %v", runID, err)
		return
	}
	o.logger.Printf("run %s: indexed %d leads", runID, added)
}

// hasCandidates reports whether at least one query mapped to a non-empty
// result list.
func hasCandidates(leads map[string][]models.CandidateResult) bool {
	for _, candidates := range leads {
		if len(candidates) > 0 {
			return true
		}
	}
	return false
}

func (o *Orchestrator) createRun(ctx context.Context, runID string, state State) {
	if o.recorder == nil {
		return
	}
	if err := o.recorder.CreateRun(ctx, runID, state); err != nil {
		o.logger.Printf("run %s: create run record failed: %v", runID, err)
	}
}

func (o *Orchestrator) saveStage(ctx context.Context, runID string, stage Stage, state State) {
	if o.recorder == nil {
		return
	}
	if err := o.recorder.SaveStage(ctx, runID, stage.String(), state); err != nil {
		o.logger.Printf("run %s: persisting %s output failed: %v", runID, stage, err)
	}
}

func (o *Orchestrator) finishRun(ctx context.Context, runID, status string) {
	if o.recorder == nil {
		return
	}
	if err := o.recorder.FinishRun(ctx, runID, status, nil); err != nil {
		o.logger.Printf("run %s: finishing run record failed: %v", runID, err)
	}
}

func (o *Orchestrator) recordStage(ctx context.Context, runID string, stage Stage, d time.Duration, outcome string, err error) {
	event := telemetry.StageEvent{
		RunID:    runID,
		Stage:    stage.String(),
		Duration: d,
		Outcome:  outcome,
	}
	if err != nil {
		event.Error = err.Error()
	}
	o.telemetry.RecordStageEvent(ctx, event)
}
