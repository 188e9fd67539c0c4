package coordinator

import (
	"context"
	"testing"
	"time"

	"github.com/pario-ai/chorus/pkg/backend/fake"
	"github.com/pario-ai/chorus/pkg/config"
	"github.com/pario-ai/chorus/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(t *testing.T, events <-chan models.StreamEvent) []models.StreamEvent {
	t.Helper()
	var out []models.StreamEvent
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatal("stream did not close")
		}
	}
}

func TestStreamCall(t *testing.T) {
	f := newFixture(t, fake.New(fake.WithLatency(time.Millisecond, 10*time.Millisecond)))

	events, err := f.coord.StreamCall(context.Background(), call(models.DomainMobile, mobilePrompt, 3))
	require.NoError(t, err)
	got := drain(t, events)

	require.Len(t, got, 5)
	assert.Equal(t, models.StreamInit, got[0].Type)
	assert.Equal(t, 3, got[0].TotalModels)
	assert.Len(t, got[0].Models, 3)
	assert.False(t, got[0].CacheHit)

	for i, ev := range got[1:4] {
		assert.Equal(t, models.StreamResponse, ev.Type)
		require.NotNil(t, ev.Response)
		assert.Equal(t, got[0].TaskID, ev.TaskID)
		assert.Equal(t, ev.Response.ModelID, ev.Model)
		assert.Equal(t, (i+1)*100/3, ev.ProgressPercent)
	}

	last := got[4]
	assert.Equal(t, models.StreamComplete, last.Type)
	assert.Equal(t, 3, last.ResponseCount)
	assert.Contains(t, last.Summary, "(3 models)")
	require.NotNil(t, last.CacheStats)
	assert.Equal(t, 1, last.CacheStats.CurrentSize)
}

func TestStreamCallReplaysCache(t *testing.T) {
	f := newFixture(t, fake.New())
	ctx := context.Background()

	first, err := f.coord.Call(ctx, call(models.DomainMobile, mobilePrompt, 2))
	require.NoError(t, err)

	events, err := f.coord.StreamCall(ctx, call(models.DomainMobile, mobilePrompt, 2))
	require.NoError(t, err)
	got := drain(t, events)

	require.Len(t, got, 4)
	assert.True(t, got[0].CacheHit)
	for _, ev := range got[1:3] {
		require.NotNil(t, ev.Response)
		assert.True(t, ev.Response.ServedFromCache)
		assert.Equal(t, ev.Response.ModelID, ev.Model)
	}
	assert.Equal(t, models.StreamComplete, got[3].Type)
	assert.True(t, got[3].CacheHit)
	assert.Equal(t, first.Result.Summary, got[3].Summary)
	assert.Equal(t, 100, got[2].ProgressPercent)
	assert.Equal(t, 2, f.backend.CallCount())
}

func TestStreamCallAllFailed(t *testing.T) {
	backend := fake.New(
		fake.WithFailure(config.ModelGemini25Flash, errUpstream),
		fake.WithFailure(config.ModelGPT4oMini, errUpstream),
	)
	f := newFixture(t, backend)

	events, err := f.coord.StreamCall(context.Background(), call(models.DomainMobile, mobilePrompt, 2))
	require.NoError(t, err)
	got := drain(t, events)

	require.Len(t, got, 2)
	assert.Equal(t, models.StreamInit, got[0].Type)
	assert.Equal(t, models.StreamError, got[1].Type)
	assert.Contains(t, got[1].Error, "all backends failed")
	assert.Equal(t, 0, f.coord.CacheStats().CurrentSize)
}

func TestStreamCallInvalid(t *testing.T) {
	f := newFixture(t, fake.New())
	events, err := f.coord.StreamCall(context.Background(), call(models.DomainDev, "", 1))
	assert.ErrorIs(t, err, models.ErrInvalidRequest)
	assert.Nil(t, events)
}
