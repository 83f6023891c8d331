// Package store archives pipeline runs in Postgres for later human review
// and evaluation.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"leadscout/internal/pipeline"
	"leadscout/models"
)

// ErrRunNotFound is returned by lookups and updates that matched no run row.
var ErrRunNotFound = errors.New("run not found")

const defaultListLimit = 50

type Store struct {
	DB *sql.DB
}

// New connects using DATABASE_URL, or the individual POSTGRES_* variables
// when it is unset.
func New(ctx context.Context) (*Store, error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		host := getenvDefault("POSTGRES_HOST", "localhost")
		port := getenvDefault("POSTGRES_PORT", "5432")
		user := os.Getenv("POSTGRES_USER")
		pass := os.Getenv("POSTGRES_PASSWORD")
		db := os.Getenv("POSTGRES_DB")
		ssl := getenvDefault("POSTGRES_SSLMODE", "disable")
		dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", user, pass, host, port, db, ssl)
	}
	return NewWithDSN(ctx, dsn)
}

func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

// RunRecord is a fully hydrated archived run.
type RunRecord struct {
	ID                string
	CreatedAt         time.Time
	FinishedAt        *time.Time
	Status            string
	Error             *string
	Category          string
	EvaluationStatus  string
	EvaluationComment string
	State             pipeline.State
}

// RunSummary is the evaluation view of a run served by the review API.
type RunSummary struct {
	ID                string                              `json:"id"`
	CreatedAt         time.Time                           `json:"created_at"`
	ProductName       string                              `json:"product_name"`
	Category          string                              `json:"category"`
	EvaluationStatus  string                              `json:"evaluation_status"`
	EvaluationComment string                              `json:"evaluation_comment"`
	SearchQueries     []string                            `json:"search_queries"`
	BusinessDomains   []string                            `json:"business_domains"`
	ScrapedLeads      map[string][]models.CandidateResult `json:"scraped_leads"`
	RankedLeads       *models.RankedLeads                 `json:"ranked_leads"`
}

// CreateRun inserts the initial row for a starting pipeline invocation.
func (s *Store) CreateRun(ctx context.Context, runID string, state pipeline.State) error {
	features, err := json.Marshal(state.Features)
	if err != nil {
		return err
	}
	competitors, err := json.Marshal(state.Competitors)
	if err != nil {
		return err
	}
	_, err = s.DB.ExecContext(ctx,
		`INSERT INTO runs (id, status, product_name, description, features, competitors) VALUES ($1,$2,$3,$4,$5,$6)`,
		runID, pipeline.RunStatusRunning, state.ProductName, state.Description, features, competitors)
	return err
}

// SaveStage archives the columns a finished stage owns.
func (s *Store) SaveStage(ctx context.Context, runID string, stage string, state pipeline.State) error {
	messages, err := json.Marshal(state.Messages)
	if err != nil {
		return err
	}
	switch stage {
	case pipeline.StageEnhancing.String():
		queries, err := json.Marshal(state.SearchQueries)
		if err != nil {
			return err
		}
		domains, err := json.Marshal(state.BusinessDomains)
		if err != nil {
			return err
		}
		_, err = s.DB.ExecContext(ctx,
			`UPDATE runs SET search_queries=$1, business_domains=$2, messages=$3 WHERE id=$4`,
			queries, domains, messages, runID)
		return err
	case pipeline.StageDiscovering.String():
		leads, err := json.Marshal(state.ScrapedLeads)
		if err != nil {
			return err
		}
		_, err = s.DB.ExecContext(ctx,
			`UPDATE runs SET scraped_leads=$1, messages=$2 WHERE id=$3`,
			leads, messages, runID)
		return err
	case pipeline.StageRanking.String():
		ranked, err := json.Marshal(state.RankedLeads)
		if err != nil {
			return err
		}
		_, err = s.DB.ExecContext(ctx,
			`UPDATE runs SET value_prop=$1, customer_profile=$2, ranked_leads=$3, messages=$4 WHERE id=$5`,
			state.ValueProp, state.CustomerProfile, ranked, messages, runID)
		return err
	default:
		return fmt.Errorf("unknown stage: %s", stage)
	}
}

func (s *Store) FinishRun(ctx context.Context, runID string, status string, errMsg *string) error {
	_, err := s.DB.ExecContext(ctx,
		`UPDATE runs SET status=$1, finished_at=NOW(), error=$2 WHERE id=$3`,
		status, errMsg, runID)
	return err
}

const summaryColumns = `id, created_at, product_name, COALESCE(category,''), COALESCE(evaluation_status,''), COALESCE(evaluation_comment,''), search_queries, business_domains, scraped_leads, ranked_leads`

// ListRuns returns the most recent runs, newest first. A non-positive limit
// means the default of 50.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+summaryColumns+` FROM runs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSummaries(rows)
}

// ListRunsByCategory returns runs labelled with the category, newest first.
func (s *Store) ListRunsByCategory(ctx context.Context, category string) ([]RunSummary, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+summaryColumns+` FROM runs WHERE category=$1 ORDER BY created_at DESC`, category)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSummaries(rows)
}

func collectSummaries(rows *sql.Rows) ([]RunSummary, error) {
	out := []RunSummary{}
	for rows.Next() {
		var r RunSummary
		var queries, domains, scraped, ranked []byte
		if err := rows.Scan(&r.ID, &r.CreatedAt, &r.ProductName, &r.Category,
			&r.EvaluationStatus, &r.EvaluationComment,
			&queries, &domains, &scraped, &ranked); err != nil {
			return nil, err
		}
		if err := unmarshalInto(queries, &r.SearchQueries); err != nil {
			return nil, err
		}
		if err := unmarshalInto(domains, &r.BusinessDomains); err != nil {
			return nil, err
		}
		if err := unmarshalInto(scraped, &r.ScrapedLeads); err != nil {
			return nil, err
		}
		if err := unmarshalInto(ranked, &r.RankedLeads); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetRun hydrates one archived run in full.
func (s *Store) GetRun(ctx context.Context, runID string) (RunRecord, error) {
	if _, err := uuid.Parse(runID); err != nil {
		return RunRecord{}, ErrRunNotFound
	}
	var (
		r                                 RunRecord
		features, competitors             []byte
		queries, domains, scraped, ranked []byte
		messages                          []byte
		valueProp, customerProfile        sql.NullString
	)
	err := s.DB.QueryRowContext(ctx, `
SELECT id, created_at, finished_at, status, error,
       COALESCE(category,''), COALESCE(evaluation_status,''), COALESCE(evaluation_comment,''),
       product_name, description, features, competitors,
       search_queries, business_domains, scraped_leads, ranked_leads,
       value_prop, customer_profile, messages
FROM runs WHERE id=$1`, runID).Scan(
		&r.ID, &r.CreatedAt, &r.FinishedAt, &r.Status, &r.Error,
		&r.Category, &r.EvaluationStatus, &r.EvaluationComment,
		&r.State.ProductName, &r.State.Description, &features, &competitors,
		&queries, &domains, &scraped, &ranked,
		&valueProp, &customerProfile, &messages)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, ErrRunNotFound
	}
	if err != nil {
		return RunRecord{}, err
	}

	r.State.ValueProp = valueProp.String
	r.State.CustomerProfile = customerProfile.String
	for _, pair := range []struct {
		raw []byte
		dst interface{}
	}{
		{features, &r.State.Features},
		{competitors, &r.State.Competitors},
		{queries, &r.State.SearchQueries},
		{domains, &r.State.BusinessDomains},
		{scraped, &r.State.ScrapedLeads},
		{ranked, &r.State.RankedLeads},
		{messages, &r.State.Messages},
	} {
		if err := unmarshalInto(pair.raw, pair.dst); err != nil {
			return RunRecord{}, err
		}
	}
	return r, nil
}

// UpdateCategory labels a run for the review UI.
func (s *Store) UpdateCategory(ctx context.Context, runID, category string) error {
	if _, err := uuid.Parse(runID); err != nil {
		return ErrRunNotFound
	}
	res, err := s.DB.ExecContext(ctx, `UPDATE runs SET category=$2 WHERE id=$1`, runID, category)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// UpdateEvaluation records a reviewer's verdict on a run.
func (s *Store) UpdateEvaluation(ctx context.Context, runID, status string, comment *string) error {
	if _, err := uuid.Parse(runID); err != nil {
		return ErrRunNotFound
	}
	res, err := s.DB.ExecContext(ctx,
		`UPDATE runs SET evaluation_status=$2, evaluation_comment=$3 WHERE id=$1`,
		runID, status, comment)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// PruneRunsBefore deletes runs created before the cutoff and reports how many
// rows went away.
func (s *Store) PruneRunsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM runs WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrRunNotFound
	}
	return nil
}

func unmarshalInto(raw []byte, dst interface{}) error {
	if raw == nil {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

func getenvDefault(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}
