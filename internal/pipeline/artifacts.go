package pipeline

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"

	"leadscout/models"
	fetchmodels "leadscout/tools/web_fetch/models"
)

// ArtifactWriter dumps per-run intermediate output under Dir/<run-id>/ for
// debugging. Every write is best-effort: failures are logged and swallowed.
type ArtifactWriter struct {
	Dir string
	Log *log.Logger
}

func (w *ArtifactWriter) WriteDiscoveryResults(runID string, results map[string][]models.CandidateResult) {
	w.write(runID, "discovery_results.json", results)
}

func (w *ArtifactWriter) WriteRankedLeads(runID string, ranked models.RankedLeads) {
	w.write(runID, "leads_ranked.json", ranked)
}

func (w *ArtifactWriter) WriteRawPages(runID string, pages []fetchmodels.Page) {
	w.write(runID, "raw_pages.json", pages)
}

func (w *ArtifactWriter) write(runID, name string, v interface{}) {
	if w == nil || w.Dir == "" {
		return
	}
	dir := filepath.Join(w.Dir, runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		w.logf("artifact dir %s: %v", dir, err)
		return
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		w.logf("artifact %s: %v", name, err)
		return
	}
	if err := os.WriteFile(filepath.Join(dir, name), b, 0o644); err != nil {
		w.logf("artifact %s: %v", name, err)
	}
}

func (w *ArtifactWriter) logf(format string, args ...interface{}) {
	if w.Log != nil {
		w.Log.Printf(format, args...)
	}
}
