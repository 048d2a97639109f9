package testutil

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cecil-the-coder/convoy/pkg/stream"
	"github.com/cecil-the-coder/convoy/pkg/types"
)

// TestMockTerminalAnswersInOrder tests that responses are used in order and the last one repeats
func TestMockTerminalAnswersInOrder(t *testing.T) {
	terminal := NewMockTerminal(types.NewResponse([]byte("a")), types.NewResponse([]byte("b")))
	ctx := TestContext(t)
	req := types.NewRequest(types.MethodGet, "https://test.com")

	for _, want := range []string{"a", "b", "b"} {
		got := Collect(t, terminal.Handle(ctx, req))
		require.Len(t, got, 1)
		assert.Equal(t, want, string(got[0].Body))
	}

	assert.Equal(t, 3, terminal.CallCount())
	assert.Same(t, req, terminal.LastRequest())
}

// TestMockTerminalErrorResponses tests that error responses travel on the error channel
func TestMockTerminalErrorResponses(t *testing.T) {
	f := NewTestFixtures()
	terminal := NewMockTerminal(f.ServerErrorResponse)

	_, err := stream.Collect(terminal.Handle(TestContext(t), f.GetRequest))

	resp := RequireErrorResponse(t, err, http.StatusInternalServerError)
	AssertResponse(t, f.ServerErrorResponse, resp)
}

// TestMockTerminalSetError tests the configured failure
func TestMockTerminalSetError(t *testing.T) {
	boom := errors.New("boom")
	terminal := NewMockTerminal()
	terminal.SetError(boom)

	_, err := stream.Collect(terminal.Handle(TestContext(t), NewTestFixtures().GetRequest))
	assert.ErrorIs(t, err, boom)
}

// TestGatedTerminal tests that answers are held until Release
func TestGatedTerminal(t *testing.T) {
	terminal := NewGatedTerminal(types.NewResponse([]byte("late")))
	s := terminal.Handle(TestContext(t), NewTestFixtures().GetRequest)

	results := make(chan *types.Response, 1)
	go func() {
		resp, err := s.Next()
		if err == nil {
			results <- resp
		}
		close(results)
	}()

	select {
	case <-results:
		t.Fatal("gated terminal answered before Release")
	default:
	}

	terminal.Release()
	terminal.Release()
	resp, ok := <-results
	require.True(t, ok)
	assert.Equal(t, "late", string(resp.Body))
}

// TestSharedFixtures tests the shared fixtures
func TestSharedFixtures(t *testing.T) {
	f := NewTestFixtures()

	assert.Equal(t, types.MethodGet, f.GetRequest.Method)
	assert.Equal(t, types.MethodPost, f.PostRequest.Method)
	assert.True(t, f.ServerErrorResponse.IsServerOrUnknownError())
	assert.False(t, f.OKResponse.IsError())
	assert.Equal(t, f.FixedTime, f.Clock()())

	v, ok := f.AuthorizedGet.Header("authorization")
	assert.True(t, ok)
	assert.Equal(t, "Bearer test-token", v)
	_, ok = f.GetRequest.Header("Authorization")
	assert.False(t, ok)
}
