package testutil

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cecil-the-coder/convoy/pkg/stream"
	"github.com/cecil-the-coder/convoy/pkg/types"
)

// AssertStatusCode checks that the HTTP status code matches the expected value.
func AssertStatusCode(t *testing.T, expected, actual int, msgAndArgs ...interface{}) {
	t.Helper()
	if expected != actual {
		msg := fmt.Sprintf("Expected status code %d (%s), got %d (%s)",
			expected, http.StatusText(expected),
			actual, http.StatusText(actual))
		if len(msgAndArgs) > 0 {
			msg = fmt.Sprintf("%s: %v", msg, msgAndArgs[0])
		}
		t.Error(msg)
	}
}

// AssertResponse compares the fields of two responses that travel on the wire.
// Cache metadata is not compared.
func AssertResponse(t *testing.T, expected, actual *types.Response, msgAndArgs ...interface{}) {
	t.Helper()
	require.NotNil(t, actual, msgAndArgs...)
	AssertStatusCode(t, expected.Status, actual.Status, msgAndArgs...)
	assert.Equal(t, expected.StatusText, actual.StatusText, msgAndArgs...)
	assert.Equal(t, string(expected.Body), string(actual.Body), msgAndArgs...)
	if len(expected.Headers) > 0 {
		assert.Equal(t, expected.Headers, actual.Headers, msgAndArgs...)
	}
}

// RequireErrorResponse asserts that err carries an HTTP error response with
// the given status and returns it.
func RequireErrorResponse(t *testing.T, err error, status int) *types.Response {
	t.Helper()
	require.Error(t, err)
	resp, ok := types.AsResponse(err)
	require.True(t, ok, "expected an error response, got %v", err)
	AssertStatusCode(t, status, resp.Status)
	return resp
}

// Collect drains s and fails the test if the stream fails.
func Collect(t *testing.T, s stream.Stream[*types.Response]) []*types.Response {
	t.Helper()
	out, err := stream.Collect(s)
	require.NoError(t, err)
	return out
}

// RequireNext pulls one value from s and fails the test on any error.
func RequireNext(t *testing.T, s stream.Stream[*types.Response]) *types.Response {
	t.Helper()
	resp, err := s.Next()
	require.NoError(t, err)
	require.NotNil(t, resp)
	return resp
}
