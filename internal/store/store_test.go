package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"leadscout/internal/pipeline"
	"leadscout/models"
)

const testRunID = "5f0c3a1e-9f2d-4a7b-8c6d-1e2f3a4b5c6d"

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	return &Store{DB: db}, mock, func() { db.Close() }
}

func TestCreateRun(t *testing.T) {
	st, mock, done := newMock(t)
	defer done()

	mock.ExpectExec(`INSERT INTO runs \(id, status, product_name, description, features, competitors\) VALUES \(\$1,\$2,\$3,\$4,\$5,\$6\)`).
		WithArgs(testRunID, pipeline.RunStatusRunning, "FieldServe", "Dispatch software", []byte(`["gps"]`), []byte(`[]`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	state := pipeline.NewState("FieldServe", "Dispatch software", []string{"gps"}, nil)
	if err := st.CreateRun(context.Background(), testRunID, state); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSaveStagePerStageColumns(t *testing.T) {
	st, mock, done := newMock(t)
	defer done()

	state := pipeline.State{
		ProductName:     "FieldServe",
		Description:     "Dispatch software",
		SearchQueries:   []string{"plumbing companies"},
		BusinessDomains: []string{"plumbing"},
		ScrapedLeads: map[string][]models.CandidateResult{
			"plumbing companies": {{Title: "Acme", Snippet: "s", URL: "https://acme.example"}},
		},
		ValueProp:       "vp",
		CustomerProfile: "cp",
		RankedLeads:     &models.RankedLeads{},
		Messages:        []string{"raw"},
	}

	mock.ExpectExec(`UPDATE runs SET search_queries=\$1, business_domains=\$2, messages=\$3 WHERE id=\$4`).
		WithArgs([]byte(`["plumbing companies"]`), []byte(`["plumbing"]`), []byte(`["raw"]`), testRunID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	if err := st.SaveStage(context.Background(), testRunID, "enhancing", state); err != nil {
		t.Fatalf("SaveStage enhancing: %v", err)
	}

	mock.ExpectExec(`UPDATE runs SET scraped_leads=\$1, messages=\$2 WHERE id=\$3`).
		WithArgs(sqlmock.AnyArg(), []byte(`["raw"]`), testRunID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	if err := st.SaveStage(context.Background(), testRunID, "discovering", state); err != nil {
		t.Fatalf("SaveStage discovering: %v", err)
	}

	mock.ExpectExec(`UPDATE runs SET value_prop=\$1, customer_profile=\$2, ranked_leads=\$3, messages=\$4 WHERE id=\$5`).
		WithArgs("vp", "cp", sqlmock.AnyArg(), []byte(`["raw"]`), testRunID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	if err := st.SaveStage(context.Background(), testRunID, "ranking", state); err != nil {
		t.Fatalf("SaveStage ranking: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSaveStageUnknownStage(t *testing.T) {
	st := &Store{}
	err := st.SaveStage(context.Background(), testRunID, "bogus", pipeline.State{})
	if err == nil {
		t.Fatal("expected error for unknown stage")
	}
}

func TestFinishRun(t *testing.T) {
	st, mock, done := newMock(t)
	defer done()

	mock.ExpectExec(`UPDATE runs SET status=\$1, finished_at=NOW\(\), error=\$2 WHERE id=\$3`).
		WithArgs(pipeline.RunStatusSucceeded, nil, testRunID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := st.FinishRun(context.Background(), testRunID, pipeline.RunStatusSucceeded, nil); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func summaryRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "created_at", "product_name", "category",
		"evaluation_status", "evaluation_comment",
		"search_queries", "business_domains", "scraped_leads", "ranked_leads",
	})
}

func TestListRunsDefaultLimitAndNulls(t *testing.T) {
	st, mock, done := newMock(t)
	defer done()

	now := time.Now()
	rows := summaryRows().
		AddRow("run-1", now, "FieldServe", "saas", "approved", "good batch",
			[]byte(`["plumbing companies"]`), []byte(`["plumbing"]`),
			[]byte(`{"plumbing companies":[{"title":"Acme","snippet":"s","url":"u"}]}`),
			[]byte(`{"high_priority":[{"name":"Acme"}]}`)).
		AddRow("run-2", now, "PipeTrack", "", "", "", nil, nil, nil, nil)

	mock.ExpectQuery(`SELECT id, created_at, product_name, COALESCE\(category,''\).* FROM runs ORDER BY created_at DESC LIMIT \$1`).
		WithArgs(50).
		WillReturnRows(rows)

	runs, err := st.ListRuns(context.Background(), 0)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}

	first := runs[0]
	if first.ID != "run-1" || first.Category != "saas" || first.EvaluationStatus != "approved" {
		t.Fatalf("unexpected first run: %+v", first)
	}
	if len(first.SearchQueries) != 1 || first.SearchQueries[0] != "plumbing companies" {
		t.Fatalf("search queries not hydrated: %+v", first.SearchQueries)
	}
	if len(first.ScrapedLeads["plumbing companies"]) != 1 {
		t.Fatalf("scraped leads not hydrated: %+v", first.ScrapedLeads)
	}
	if first.RankedLeads == nil || len(first.RankedLeads.HighPriority) != 1 {
		t.Fatalf("ranked leads not hydrated: %+v", first.RankedLeads)
	}

	second := runs[1]
	if second.SearchQueries != nil || second.ScrapedLeads != nil || second.RankedLeads != nil {
		t.Fatalf("null columns should stay zero-valued: %+v", second)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListRunsByCategory(t *testing.T) {
	st, mock, done := newMock(t)
	defer done()

	rows := summaryRows().
		AddRow("run-9", time.Now(), "FieldServe", "plumbing", "", "", nil, nil, nil, nil)

	mock.ExpectQuery(`FROM runs WHERE category=\$1 ORDER BY created_at DESC`).
		WithArgs("plumbing").
		WillReturnRows(rows)

	runs, err := st.ListRunsByCategory(context.Background(), "plumbing")
	if err != nil {
		t.Fatalf("ListRunsByCategory: %v", err)
	}
	if len(runs) != 1 || runs[0].Category != "plumbing" {
		t.Fatalf("unexpected runs: %+v", runs)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetRunHydratesState(t *testing.T) {
	st, mock, done := newMock(t)
	defer done()

	now := time.Now()
	finished := now.Add(time.Minute)
	rows := sqlmock.NewRows([]string{
		"id", "created_at", "finished_at", "status", "error",
		"category", "evaluation_status", "evaluation_comment",
		"product_name", "description", "features", "competitors",
		"search_queries", "business_domains", "scraped_leads", "ranked_leads",
		"value_prop", "customer_profile", "messages",
	}).AddRow(
		testRunID, now, finished, "succeeded", nil,
		"saas", "approved", "fine",
		"FieldServe", "Dispatch software", []byte(`["gps"]`), []byte(`[]`),
		[]byte(`["q1"]`), []byte(`["d1"]`),
		[]byte(`{"q1":[{"title":"Acme","snippet":"s","url":"u"}]}`),
		[]byte(`{"high_priority":[{"name":"Acme"}]}`),
		"vp", "cp", []byte(`["raw"]`),
	)

	mock.ExpectQuery(`FROM runs WHERE id=\$1`).
		WithArgs(testRunID).
		WillReturnRows(rows)

	rec, err := st.GetRun(context.Background(), testRunID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if rec.Status != "succeeded" || rec.FinishedAt == nil {
		t.Fatalf("run meta not hydrated: %+v", rec)
	}
	if rec.State.ProductName != "FieldServe" || rec.State.ValueProp != "vp" {
		t.Fatalf("state not hydrated: %+v", rec.State)
	}
	if len(rec.State.Features) != 1 || rec.State.Features[0] != "gps" {
		t.Fatalf("features not hydrated: %+v", rec.State.Features)
	}
	if rec.State.RankedLeads == nil || len(rec.State.RankedLeads.HighPriority) != 1 {
		t.Fatalf("ranked leads not hydrated: %+v", rec.State.RankedLeads)
	}
	if len(rec.State.Messages) != 1 {
		t.Fatalf("messages not hydrated: %+v", rec.State.Messages)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetRunNotFound(t *testing.T) {
	st, mock, done := newMock(t)
	defer done()

	// malformed id short-circuits without touching the database
	if _, err := st.GetRun(context.Background(), "not-a-uuid"); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}

	mock.ExpectQuery(`FROM runs WHERE id=\$1`).
		WithArgs(testRunID).
		WillReturnError(sql.ErrNoRows)
	if _, err := st.GetRun(context.Background(), testRunID); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpdateCategory(t *testing.T) {
	st, mock, done := newMock(t)
	defer done()

	mock.ExpectExec(`UPDATE runs SET category=\$2 WHERE id=\$1`).
		WithArgs(testRunID, "plumbing").
		WillReturnResult(sqlmock.NewResult(0, 1))
	if err := st.UpdateCategory(context.Background(), testRunID, "plumbing"); err != nil {
		t.Fatalf("UpdateCategory: %v", err)
	}

	mock.ExpectExec(`UPDATE runs SET category=\$2 WHERE id=\$1`).
		WithArgs(testRunID, "plumbing").
		WillReturnResult(sqlmock.NewResult(0, 0))
	if err := st.UpdateCategory(context.Background(), testRunID, "plumbing"); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound for zero rows, got %v", err)
	}

	if err := st.UpdateCategory(context.Background(), "not-a-uuid", "x"); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound for malformed id, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpdateEvaluation(t *testing.T) {
	st, mock, done := newMock(t)
	defer done()

	comment := "solid leads"
	mock.ExpectExec(`UPDATE runs SET evaluation_status=\$2, evaluation_comment=\$3 WHERE id=\$1`).
		WithArgs(testRunID, "approved", "solid leads").
		WillReturnResult(sqlmock.NewResult(0, 1))
	if err := st.UpdateEvaluation(context.Background(), testRunID, "approved", &comment); err != nil {
		t.Fatalf("UpdateEvaluation: %v", err)
	}

	mock.ExpectExec(`UPDATE runs SET evaluation_status=\$2, evaluation_comment=\$3 WHERE id=\$1`).
		WithArgs(testRunID, "rejected", nil).
		WillReturnResult(sqlmock.NewResult(0, 0))
	if err := st.UpdateEvaluation(context.Background(), testRunID, "rejected", nil); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound for zero rows, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPruneRunsBefore(t *testing.T) {
	st, mock, done := newMock(t)
	defer done()

	cutoff := time.Now().Add(-30 * 24 * time.Hour)
	mock.ExpectExec(`DELETE FROM runs WHERE created_at < \$1`).
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 5))

	deleted, err := st.PruneRunsBefore(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("PruneRunsBefore: %v", err)
	}
	if deleted != 5 {
		t.Fatalf("expected 5 runs pruned, got %d", deleted)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
