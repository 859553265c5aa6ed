package archive

import (
	"context"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/medley-health/medley/pkg/adapter"
	"github.com/medley-health/medley/pkg/model"
)

// SessionRow is the analytics row of one session
type SessionRow struct {
	SessionID        string    `bigquery:"session_id"`
	UserID           string    `bigquery:"user_id"`
	CreatedAt        time.Time `bigquery:"created_at"`
	Status           string    `bigquery:"status"`
	CombinedSeverity float64   `bigquery:"combined_severity"`
	Domains          []string  `bigquery:"domains"`
	Unavailable      []string  `bigquery:"unavailable"`
	RiskFlags        int64     `bigquery:"risk_flags"`
	Recommendations  int64     `bigquery:"recommendations"`
}

// NewSessionRow flattens a session record
func NewSessionRow(session *model.SessionRecord) *SessionRow {
	row := &SessionRow{
		SessionID: string(session.ID),
		UserID:    session.UserID,
		CreatedAt: session.CreatedAt,
	}
	for _, f := range session.Findings {
		row.Domains = append(row.Domains, string(f.Domain))
	}
	for _, d := range session.Unavailable {
		row.Unavailable = append(row.Unavailable, string(d))
	}
	if a := session.Assessment; a != nil {
		row.Status = string(a.Status)
		row.CombinedSeverity = a.CombinedSeverity
		row.RiskFlags = int64(len(a.RiskFlags))
		row.Recommendations = int64(len(a.Recommendations))
	}
	return row
}

// BigQuery streams one row per session into a table created on first use
type BigQuery struct {
	client  adapter.BigQuery
	dataset string
	table   string

	mu    sync.Mutex
	ready bool
}

// NewBigQuery creates a sink for dataset.table
func NewBigQuery(client adapter.BigQuery, dataset, table string) *BigQuery {
	return &BigQuery{client: client, dataset: dataset, table: table}
}

func (b *BigQuery) Name() string {
	return "bigquery"
}

func (b *BigQuery) Export(ctx context.Context, session *model.SessionRecord) error {
	if err := b.ensureTable(ctx); err != nil {
		return err
	}

	if err := b.client.Insert(ctx, b.dataset, b.table, []*SessionRow{NewSessionRow(session)}); err != nil {
		return goerr.Wrap(err, "failed to insert session row",
			goerr.V("session_id", session.ID), goerr.V("table", b.table))
	}
	return nil
}

func (b *BigQuery) ensureTable(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ready {
		return nil
	}
	if err := b.client.EnsureTable(ctx, b.dataset, b.table, SessionRow{}); err != nil {
		return goerr.Wrap(err, "failed to prepare session table",
			goerr.V("dataset", b.dataset), goerr.V("table", b.table))
	}
	b.ready = true
	return nil
}
