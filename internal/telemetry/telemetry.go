// Package telemetry records pipeline activity: Prometheus collectors served
// on /metrics plus an in-memory snapshot used for the shutdown report.
package telemetry

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"leadscout/config"
)

// Stage outcomes as recorded on stage events.
const (
	OutcomeOK      = "ok"
	OutcomeSkipped = "skipped"
	OutcomeError   = "error"
)

var (
	runsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadscout_pipeline_runs_total",
			Help: "Completed pipeline runs by final status",
		},
		[]string{"status"},
	)

	stageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "leadscout_stage_duration_seconds",
			Help:    "Duration of pipeline stages in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"stage", "outcome"},
	)

	candidatesFound = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "leadscout_candidates_found_total",
			Help: "Candidate results returned by web search across all runs",
		},
	)

	pagesFetched = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "leadscout_pages_fetched_total",
			Help: "Pages fetched while deep scraping",
		},
	)
)

// Telemetry tracks run and stage outcomes.
type Telemetry struct {
	config  config.TelemetryConfig
	logger  *log.Logger
	mu      sync.RWMutex
	metrics Metrics
}

// Metrics is an in-memory snapshot of pipeline activity.
type Metrics struct {
	TotalRuns      int64
	SucceededRuns  int64
	FailedRuns     int64
	AverageRunTime time.Duration

	StageExecutions   map[string]int64
	StageFailures     map[string]int64
	StageAverageTimes map[string]time.Duration

	CandidatesFound int64
	PagesFetched    int64
}

// RunEvent describes one completed pipeline run.
type RunEvent struct {
	ID          string
	ProductName string
	StartTime   time.Time
	EndTime     time.Time
	Duration    time.Duration
	Success     bool
	Error       string
}

// StageEvent describes one executed pipeline stage.
type StageEvent struct {
	RunID    string
	Stage    string
	Duration time.Duration
	Outcome  string
	Error    string
}

// NewTelemetry creates a new telemetry instance.
func NewTelemetry(cfg config.TelemetryConfig) *Telemetry {
	return &Telemetry{
		config: cfg,
		logger: log.New(log.Writer(), "[TELEMETRY] ", log.LstdFlags),
		metrics: Metrics{
			StageExecutions:   make(map[string]int64),
			StageFailures:     make(map[string]int64),
			StageAverageTimes: make(map[string]time.Duration),
		},
	}
}

// RecordRunEvent records a completed pipeline run.
func (t *Telemetry) RecordRunEvent(ctx context.Context, event RunEvent) {
	if !t.config.Enabled {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.metrics.TotalRuns++
	status := "succeeded"
	if event.Success {
		t.metrics.SucceededRuns++
	} else {
		t.metrics.FailedRuns++
		status = "failed"
	}
	runsTotal.WithLabelValues(status).Inc()

	if t.metrics.TotalRuns == 1 {
		t.metrics.AverageRunTime = event.Duration
	} else {
		total := t.metrics.AverageRunTime * time.Duration(t.metrics.TotalRuns-1)
		t.metrics.AverageRunTime = (total + event.Duration) / time.Duration(t.metrics.TotalRuns)
	}

	t.logger.Printf("Run Event: ID=%s, Product=%q, Success=%t, Duration=%v",
		event.ID, event.ProductName, event.Success, event.Duration)
}

// RecordStageEvent records one executed pipeline stage.
func (t *Telemetry) RecordStageEvent(ctx context.Context, event StageEvent) {
	if !t.config.Enabled {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.metrics.StageExecutions[event.Stage]++
	if event.Outcome == OutcomeError {
		t.metrics.StageFailures[event.Stage]++
	}

	executions := t.metrics.StageExecutions[event.Stage]
	currentAvg := t.metrics.StageAverageTimes[event.Stage]
	if executions == 1 {
		t.metrics.StageAverageTimes[event.Stage] = event.Duration
	} else {
		total := currentAvg * time.Duration(executions-1)
		t.metrics.StageAverageTimes[event.Stage] = (total + event.Duration) / time.Duration(executions)
	}

	stageDuration.WithLabelValues(event.Stage, event.Outcome).Observe(event.Duration.Seconds())

	t.logger.Printf("Stage Event: Run=%s, Stage=%s, Outcome=%s, Duration=%v",
		event.RunID, event.Stage, event.Outcome, event.Duration)
}

// AddCandidatesFound counts search results returned during discovery.
func (t *Telemetry) AddCandidatesFound(n int) {
	if !t.config.Enabled || n <= 0 {
		return
	}
	t.mu.Lock()
	t.metrics.CandidatesFound += int64(n)
	t.mu.Unlock()
	candidatesFound.Add(float64(n))
}

// AddPagesFetched counts pages fetched during deep scraping.
func (t *Telemetry) AddPagesFetched(n int) {
	if !t.config.Enabled || n <= 0 {
		return
	}
	t.mu.Lock()
	t.metrics.PagesFetched += int64(n)
	t.mu.Unlock()
	pagesFetched.Add(float64(n))
}

// GetMetrics returns a copy of the current metrics snapshot.
func (t *Telemetry) GetMetrics() Metrics {
	t.mu.RLock()
	defer t.mu.RUnlock()

	metrics := t.metrics
	metrics.StageExecutions = make(map[string]int64, len(t.metrics.StageExecutions))
	metrics.StageFailures = make(map[string]int64, len(t.metrics.StageFailures))
	metrics.StageAverageTimes = make(map[string]time.Duration, len(t.metrics.StageAverageTimes))
	for k, v := range t.metrics.StageExecutions {
		metrics.StageExecutions[k] = v
	}
	for k, v := range t.metrics.StageFailures {
		metrics.StageFailures[k] = v
	}
	for k, v := range t.metrics.StageAverageTimes {
		metrics.StageAverageTimes[k] = v
	}
	return metrics
}

// Shutdown logs a final activity report.
func (t *Telemetry) Shutdown() {
	metrics := t.GetMetrics()

	t.logger.Println("Shutting down telemetry...")
	t.logger.Printf("  Total Runs: %d", metrics.TotalRuns)
	if metrics.TotalRuns > 0 {
		t.logger.Printf("  Success Rate: %.2f%%", float64(metrics.SucceededRuns)/float64(metrics.TotalRuns)*100)
		t.logger.Printf("  Average Run Time: %v", metrics.AverageRunTime)
	}
	t.logger.Printf("  Candidates Found: %d", metrics.CandidatesFound)
	t.logger.Printf("  Pages Fetched: %d", metrics.PagesFetched)
	for stage, executions := range metrics.StageExecutions {
		t.logger.Printf("  Stage %s: %d executions, %d failures, %v avg time",
			stage, executions, metrics.StageFailures[stage], metrics.StageAverageTimes[stage])
	}
}
