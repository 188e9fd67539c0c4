package dispatch_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pario-ai/chorus/pkg/backend/fake"
	"github.com/pario-ai/chorus/pkg/dispatch"
	"github.com/pario-ai/chorus/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errUpstream = errors.New("upstream 503")

func ids(responses []models.BackendResponse) []string {
	out := make([]string, len(responses))
	for i, r := range responses {
		out[i] = r.ModelID
	}
	return out
}

func TestRunParallelPartialFailure(t *testing.T) {
	backend := fake.New(fake.WithFailure("b", errUpstream))
	d := dispatch.New(backend)

	out := d.Run(context.Background(), dispatch.Request{
		Prompt:   "p",
		ModelIDs: []string{"a", "b", "c"},
		TaskID:   "task-1",
		Parallel: true,
	})

	require.Len(t, out.Responses, 2)
	assert.ElementsMatch(t, []string{"a", "c"}, ids(out.Responses))
	require.Len(t, out.Failures, 1)
	assert.Equal(t, "b", out.Failures[0].ModelID)
	assert.ErrorIs(t, out.Failures[0], errUpstream)
	assert.ErrorIs(t, out.Failures[0], models.ErrBackendInvocation)
	for _, r := range out.Responses {
		assert.Equal(t, "task-1", r.TaskID)
		assert.NotEmpty(t, r.Text)
		assert.False(t, r.ServedFromCache)
	}
}

func TestRunParallelArrivalOrder(t *testing.T) {
	backend := fake.New(
		fake.WithModelLatency("slow", 150*time.Millisecond),
		fake.WithModelLatency("mid", 75*time.Millisecond),
		fake.WithModelLatency("fast", 0),
	)
	d := dispatch.New(backend)

	got := d.RunParallel(context.Background(), "p", []string{"slow", "mid", "fast"}, "t")
	assert.Equal(t, []string{"fast", "mid", "slow"}, ids(got))
}

func TestRunParallelIsConcurrent(t *testing.T) {
	backend := fake.New(fake.WithLatency(100*time.Millisecond, 100*time.Millisecond))
	d := dispatch.New(backend)

	start := time.Now()
	got := d.RunParallel(context.Background(), "p", []string{"a", "b", "c", "d"}, "t")
	elapsed := time.Since(start)

	assert.Len(t, got, 4)
	assert.Less(t, elapsed, 350*time.Millisecond)
}

func TestRunSequentialInputOrder(t *testing.T) {
	backend := fake.New(
		fake.WithModelLatency("slow", 60*time.Millisecond),
		fake.WithFailure("broken", errUpstream),
	)
	d := dispatch.New(backend)

	got := d.RunSequential(context.Background(), "p", []string{"slow", "broken", "fast"}, "t")
	assert.Equal(t, []string{"slow", "fast"}, ids(got))

	calls := backend.Calls()
	require.Len(t, calls, 3, "continues past failures")
	assert.Equal(t, "slow", calls[0].ModelID)
	assert.Equal(t, "broken", calls[1].ModelID)
	assert.Equal(t, "fast", calls[2].ModelID)
}

func TestTimeoutIsAFailure(t *testing.T) {
	backend := fake.New(fake.WithHang("stuck"))
	d := dispatch.New(backend, dispatch.WithTimeout(50*time.Millisecond))

	out := d.Run(context.Background(), dispatch.Request{
		Prompt:   "p",
		ModelIDs: []string{"stuck", "ok"},
		Parallel: true,
	})

	assert.Equal(t, []string{"ok"}, ids(out.Responses))
	require.Len(t, out.Failures, 1)
	assert.ErrorIs(t, out.Failures[0], context.DeadlineExceeded)
	assert.GreaterOrEqual(t, out.Failures[0].ElapsedMs, int64(50))
}

func TestTimeoutWhenBackendIgnoresContext(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	backend := dispatch.BackendFunc(func(ctx context.Context, modelID, prompt string) (dispatch.Completion, error) {
		<-release
		return dispatch.Completion{Text: "late"}, nil
	})
	d := dispatch.New(backend, dispatch.WithTimeout(30*time.Millisecond))

	start := time.Now()
	out := d.Run(context.Background(), dispatch.Request{ModelIDs: []string{"deaf"}, Parallel: true})
	assert.Less(t, time.Since(start), time.Second)
	assert.Empty(t, out.Responses)
	require.Len(t, out.Failures, 1)
}

func TestPanicIsAFailure(t *testing.T) {
	backend := dispatch.BackendFunc(func(ctx context.Context, modelID, prompt string) (dispatch.Completion, error) {
		if modelID == "boom" {
			panic("nil map")
		}
		return dispatch.Completion{Text: "ok"}, nil
	})
	d := dispatch.New(backend)

	out := d.Run(context.Background(), dispatch.Request{ModelIDs: []string{"boom", "fine"}, Parallel: true})
	assert.Equal(t, []string{"fine"}, ids(out.Responses))
	require.Len(t, out.Failures, 1)
	assert.Contains(t, out.Failures[0].Error(), "panic")
}

func TestMaxConcurrency(t *testing.T) {
	var mu sync.Mutex
	active, peak := 0, 0
	backend := dispatch.BackendFunc(func(ctx context.Context, modelID, prompt string) (dispatch.Completion, error) {
		mu.Lock()
		active++
		peak = max(peak, active)
		mu.Unlock()
		time.Sleep(20 * time.Millisecond)
		mu.Lock()
		active--
		mu.Unlock()
		return dispatch.Completion{Text: modelID}, nil
	})
	d := dispatch.New(backend, dispatch.WithMaxConcurrency(2))

	got := d.RunParallel(context.Background(), "p", []string{"a", "b", "c", "d", "e"}, "t")
	assert.Len(t, got, 5)
	assert.LessOrEqual(t, peak, 2)
}

func TestOnResponseCalledPerSuccess(t *testing.T) {
	backend := fake.New(fake.WithFailure("b", errUpstream))
	d := dispatch.New(backend)

	var seen []string
	out := d.Run(context.Background(), dispatch.Request{
		ModelIDs:   []string{"a", "b", "c"},
		Parallel:   true,
		OnResponse: func(r models.BackendResponse) { seen = append(seen, r.ModelID) },
	})
	assert.Equal(t, ids(out.Responses), seen)
}

func TestElapsedMeasuredAroundCall(t *testing.T) {
	backend := fake.New(fake.WithModelLatency("m", 40*time.Millisecond))
	d := dispatch.New(backend, dispatch.WithModelNames(func(id string) string { return "Model " + id }))

	got := d.RunSequential(context.Background(), "p", []string{"m"}, "t")
	require.Len(t, got, 1)
	assert.GreaterOrEqual(t, got[0].ElapsedMs, int64(40))
	assert.Equal(t, "Model m", got[0].ModelName)
	require.NotNil(t, got[0].Usage)
	assert.Positive(t, got[0].Usage.TotalTokens)
}

func TestRateLimitPerModel(t *testing.T) {
	backend := fake.New()
	d := dispatch.New(backend, dispatch.WithRateLimit(20, 1))

	start := time.Now()
	for range 3 {
		d.RunSequential(context.Background(), "p", []string{"a"}, "t")
	}
	// burst 1 at 20/s: the second and third calls each wait ~50ms
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
	assert.Equal(t, 3, backend.CallCount())
}

func TestEmptyModelList(t *testing.T) {
	d := dispatch.New(fake.New())
	out := d.Run(context.Background(), dispatch.Request{Parallel: true})
	assert.Empty(t, out.Responses)
	assert.Empty(t, out.Failures)
}
