package auth

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cecil-the-coder/convoy/pkg/stream"
	"github.com/cecil-the-coder/convoy/pkg/testutil"
	"github.com/cecil-the-coder/convoy/pkg/types"
)

func newTestPool(t *testing.T, now *time.Time, keys ...string) *KeyPool {
	t.Helper()
	pool, err := NewKeyPool(keys...)
	require.NoError(t, err)
	pool.now = func() time.Time { return *now }
	return pool
}

func nextKey(t *testing.T, pool *KeyPool) string {
	t.Helper()
	tok, err := pool.Token()
	require.NoError(t, err)
	assert.Equal(t, "Bearer", tok.Type())
	return tok.AccessToken
}

func TestKeyPool_RoundRobin(t *testing.T) {
	now := time.Now()
	pool := newTestPool(t, &now, "a", "b", "c")

	var got []string
	for i := 0; i < 6; i++ {
		got = append(got, nextKey(t, pool))
	}
	assert.Equal(t, []string{"a", "b", "c", "a", "b", "c"}, got)
}

func TestKeyPool_FailedKeysBackOff(t *testing.T) {
	now := time.Now()
	pool := newTestPool(t, &now, "a", "b")

	pool.ReportFailure("a")
	assert.Equal(t, 1, pool.Available())
	for i := 0; i < 4; i++ {
		assert.Equal(t, "b", nextKey(t, pool))
	}

	now = now.Add(time.Second)
	assert.Equal(t, 2, pool.Available())

	pool.ReportFailure("a")
	now = now.Add(time.Second)
	assert.Equal(t, 1, pool.Available(), "second failure backs off for 2s")

	pool.ReportSuccess("a")
	assert.Equal(t, 2, pool.Available())
}

func TestKeyPool_BackoffIsCapped(t *testing.T) {
	now := time.Now()
	pool := newTestPool(t, &now, "a")

	for i := 0; i < 20; i++ {
		pool.ReportFailure("a")
	}
	now = now.Add(59 * time.Second)
	assert.Equal(t, 0, pool.Available())
	now = now.Add(time.Second)
	assert.Equal(t, 1, pool.Available())
}

func TestKeyPool_AllKeysBackingOff(t *testing.T) {
	now := time.Now()
	pool := newTestPool(t, &now, "a", "b")
	pool.ReportFailure("a")
	pool.ReportFailure("b")

	_, err := pool.Token()
	assert.ErrorIs(t, err, ErrNoAvailableKey)

	pool.ReportFailure("unknown")
	_, err = NewKeyPool()
	assert.Error(t, err)
}

func TestAuth_KeyPoolRotatesAwayFromRejectedKeys(t *testing.T) {
	f := testutil.NewTestFixtures()
	now := time.Now()
	pool := newTestPool(t, &now, "revoked", "valid")

	terminal := testutil.NewMockTerminal()
	terminal.SetRespondFunc(func(req *types.Request) (*types.Response, error) {
		if value, _ := req.Header("Authorization"); value == "Bearer revoked" {
			return nil, f.UnauthorizedResponse
		}
		return f.OKResponse, nil
	})
	p := newPipeline(t, Config{TokenSource: pool})
	ctx := testutil.TestContext(t)

	_, err := stream.Collect(p.Handle(ctx, f.GetRequest, terminal))
	testutil.RequireErrorResponse(t, err, http.StatusUnauthorized)
	assert.Equal(t, 1, pool.Available())

	for i := 0; i < 3; i++ {
		got := testutil.Collect(t, p.Handle(ctx, f.GetRequest, terminal))
		require.Len(t, got, 1)
		value, _ := terminal.LastRequest().Header("Authorization")
		assert.Equal(t, "Bearer valid", value)
	}
}
