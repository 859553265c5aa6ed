package adapter_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/medley-health/medley/pkg/adapter"
)

type testRow struct {
	SessionID string    `bigquery:"session_id"`
	Status    string    `bigquery:"status"`
	CreatedAt time.Time `bigquery:"created_at"`
}

func TestBigQuery(t *testing.T) {
	projectID := os.Getenv("TEST_BIGQUERY_PROJECT")
	if projectID == "" {
		t.Skip("TEST_BIGQUERY_PROJECT is not set")
	}

	datasetID := os.Getenv("TEST_BIGQUERY_DATASET")
	if datasetID == "" {
		t.Skip("TEST_BIGQUERY_DATASET is not set")
	}

	table := os.Getenv("TEST_BIGQUERY_TABLE")
	if table == "" {
		t.Skip("TEST_BIGQUERY_TABLE is not set")
	}

	ctx := context.Background()
	client, err := adapter.NewBigQuery(ctx, projectID)
	gt.NoError(t, err)

	row := &testRow{SessionID: "test-session", Status: "stable", CreatedAt: time.Now()}
	gt.NoError(t, client.EnsureTable(ctx, datasetID, table, row))
	gt.NoError(t, client.Insert(ctx, datasetID, table, []*testRow{row}))
}
