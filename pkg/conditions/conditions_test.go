package conditions

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cecil-the-coder/convoy/pkg/pipeline"
	"github.com/cecil-the-coder/convoy/pkg/stream"
	"github.com/cecil-the-coder/convoy/pkg/types"
)

func decide(t *testing.T, c pipeline.Condition, req *types.Request) (bool, error) {
	t.Helper()
	s := stream.From(context.Background(), c.ShouldHandle(context.Background(), pipeline.ConditionArgs{Request: req}))
	defer func() { _ = s.Close() }()
	return s.Next()
}

func mustDecide(t *testing.T, c pipeline.Condition, req *types.Request) bool {
	t.Helper()
	ok, err := decide(t, c, req)
	require.NoError(t, err)
	return ok
}

func TestMatchMethod(t *testing.T) {
	cond := MatchMethod(types.MethodGet, "head")

	assert.True(t, mustDecide(t, cond, types.NewRequest(types.MethodGet, "https://test.com")))
	assert.True(t, mustDecide(t, cond, types.NewRequest(types.MethodHead, "https://test.com")))
	assert.False(t, mustDecide(t, cond, types.NewRequest(types.MethodPost, "https://test.com")))
}

func TestMatchOrigin(t *testing.T) {
	cond := MatchOrigin("https://API.test.com", "not a url")

	tests := []struct {
		url  string
		want bool
	}{
		{url: "https://api.test.com/items?page=1", want: true},
		{url: "https://api.test.com", want: true},
		{url: "http://api.test.com/items", want: false},
		{url: "https://other.test.com/items", want: false},
		{url: "/relative", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, mustDecide(t, cond, types.NewRequest(types.MethodGet, tt.url)))
		})
	}
}

func TestMatchPath(t *testing.T) {
	cond := MatchPath("/api/*", "/health")

	assert.True(t, mustDecide(t, cond, types.NewRequest(types.MethodGet, "https://test.com/api/items")))
	assert.True(t, mustDecide(t, cond, types.NewRequest(types.MethodGet, "https://test.com/health")))
	assert.False(t, mustDecide(t, cond, types.NewRequest(types.MethodGet, "https://test.com/api/items/1")))
	assert.False(t, mustDecide(t, cond, types.NewRequest(types.MethodGet, "https://test.com/")))
}

func TestCombinators(t *testing.T) {
	get := MatchMethod(types.MethodGet)
	api := MatchOrigin("https://api.test.com")
	req := types.NewRequest(types.MethodGet, "https://api.test.com/items")
	post := types.NewRequest(types.MethodPost, "https://api.test.com/items")

	assert.True(t, mustDecide(t, All(get, api), req))
	assert.False(t, mustDecide(t, All(get, api), post))
	assert.True(t, mustDecide(t, All(), post))

	assert.True(t, mustDecide(t, Any(get, api), post))
	assert.False(t, mustDecide(t, Any(), req))

	assert.False(t, mustDecide(t, Not(get), req))
	assert.True(t, mustDecide(t, Not(get), post))
}

func TestCombinators_AsyncConditions(t *testing.T) {
	deferredTrue := pipeline.ConditionFunc(func(ctx context.Context, args pipeline.ConditionArgs) stream.Source[bool] {
		return stream.Deferred(func(ctx context.Context) (bool, error) { return true, nil })
	})
	req := types.NewRequest(types.MethodGet, "https://test.com")

	assert.True(t, mustDecide(t, All(deferredTrue, MatchMethod(types.MethodGet)), req))
}

func TestCombinators_PropagateFailures(t *testing.T) {
	boom := errors.New("boom")
	failing := pipeline.ConditionFunc(func(ctx context.Context, args pipeline.ConditionArgs) stream.Source[bool] {
		return stream.Failed[bool](boom)
	})
	empty := pipeline.ConditionFunc(func(ctx context.Context, args pipeline.ConditionArgs) stream.Source[bool] {
		return stream.Streaming(stream.Empty[bool]())
	})
	req := types.NewRequest(types.MethodGet, "https://test.com")

	_, err := decide(t, All(failing), req)
	assert.ErrorIs(t, err, boom)

	_, err = decide(t, Not(empty), req)
	assert.ErrorIs(t, err, pipeline.ErrConditionEmpty)
}
