package tracker

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/pario-ai/chorus/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTracker(t *testing.T) *SQLiteTracker {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	tr, err := New(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tr.Close() })
	return tr
}

func record(task, model string, elapsed int64, total int, at time.Time) models.UsageRecord {
	return models.UsageRecord{
		TaskID:           task,
		Domain:           models.DomainMobile,
		Model:            model,
		ElapsedMs:        elapsed,
		PromptTokens:     total / 2,
		CompletionTokens: total - total/2,
		TotalTokens:      total,
		CreatedAt:        at,
	}
}

func TestRecordAndQueryByModel(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, tr.Record(ctx, record("t1", "gpt-4o-mini", 900, 150, now.Add(-2*time.Hour))))
	require.NoError(t, tr.Record(ctx, record("t2", "gpt-4o-mini", 700, 100, now)))
	require.NoError(t, tr.Record(ctx, record("t2", "gemini-2.5-flash", 500, 80, now)))

	records, err := tr.QueryByModel(ctx, "gpt-4o-mini", now.Add(-time.Minute))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "t2", records[0].TaskID)
	assert.Equal(t, models.DomainMobile, records[0].Domain)
	assert.Equal(t, 100, records[0].TotalTokens)
	assert.WithinDuration(t, now, records[0].CreatedAt, time.Second)
}

func TestTaskRecords(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()

	require.NoError(t, tr.Record(ctx, record("t1", "a", 1, 10, time.Time{})))
	require.NoError(t, tr.Record(ctx, record("t1", "b", 2, 20, time.Time{})))
	require.NoError(t, tr.Record(ctx, record("t2", "a", 3, 30, time.Time{})))

	records, err := tr.TaskRecords(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "a", records[0].Model)
	assert.Equal(t, "b", records[1].Model)
	assert.False(t, records[0].CreatedAt.IsZero())

	none, err := tr.TaskRecords(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSummary(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, tr.Record(ctx, record("t1", "a", 100, 10, now)))
	require.NoError(t, tr.Record(ctx, record("t2", "a", 300, 30, now)))
	require.NoError(t, tr.Record(ctx, record("t2", "b", 50, 5, now)))

	all, err := tr.Summary(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].Model)
	assert.Equal(t, 2, all[0].RequestCount)
	assert.InDelta(t, 200, all[0].AvgElapsedMs, 1e-9)
	assert.Equal(t, 40, all[0].TotalTokens)

	only, err := tr.Summary(ctx, "b")
	require.NoError(t, err)
	require.Len(t, only, 1)
	assert.Equal(t, 5, only[0].TotalTokens)
}
