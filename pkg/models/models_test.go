package models

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallOptionsValidate(t *testing.T) {
	tests := []struct {
		name    string
		opts    CallOptions
		wantErr bool
	}{
		{"ok", CallOptions{Domain: DomainMobile, UserInput: "5G 切片"}, false},
		{"unknown domain ok", CallOptions{Domain: "SATELLITE", UserInput: "x"}, false},
		{"missing domain", CallOptions{UserInput: "x"}, true},
		{"blank input", CallOptions{Domain: DomainDev, UserInput: "  \n"}, true},
		{"negative count", CallOptions{Domain: DomainDev, UserInput: "x", ModelCount: -1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidRequest)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseDomain(t *testing.T) {
	assert.Equal(t, DomainAIData, ParseDomain(" ai_data "))
	assert.True(t, ParseDomain("security").Known())
	assert.False(t, ParseDomain("satellite").Known())
}

func TestAllBackendsFailedErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := error(&AllBackendsFailedError{
		TaskID:   "t1",
		Failures: []*InvocationError{{ModelID: "gpt-4o-mini", Err: cause}},
	})

	assert.ErrorIs(t, err, ErrAllBackendsFailed)
	assert.ErrorIs(t, err, ErrBackendInvocation)
	assert.ErrorIs(t, err, cause)

	var inv *InvocationError
	require.ErrorAs(t, err, &inv)
	assert.Equal(t, "gpt-4o-mini", inv.ModelID)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestCacheEntryExpired(t *testing.T) {
	now := time.Unix(1000, 0)
	e := CacheEntry[string]{ExpiresAt: now.Add(time.Second)}
	assert.False(t, e.Expired(now))
	assert.False(t, e.Expired(now.Add(time.Second)))
	assert.True(t, e.Expired(now.Add(time.Second+time.Millisecond)))
}

func TestComputeHitRate(t *testing.T) {
	assert.Zero(t, ComputeHitRate(0, 0))
	assert.InDelta(t, 0.75, ComputeHitRate(3, 1), 1e-9)
}

func TestAggregatedResultCloneDoesNotAlias(t *testing.T) {
	orig := AggregatedResult{
		Responses:   []BackendResponse{{ModelID: "a", Usage: &Usage{TotalTokens: 3}}},
		Divergences: []string{"d"},
	}
	cp := orig.Clone()
	cp.Responses[0].Text = "changed"
	cp.Responses[0].Usage.TotalTokens = 9
	cp.Divergences[0] = "x"

	assert.Empty(t, orig.Responses[0].Text)
	assert.Equal(t, 3, orig.Responses[0].Usage.TotalTokens)
	assert.Equal(t, "d", orig.Divergences[0])
}
