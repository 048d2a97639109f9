package testutil

import (
	"net/http"
	"time"

	"github.com/cecil-the-coder/convoy/pkg/types"
)

// TestFixtures provides common test data and fixtures for use across tests.
type TestFixtures struct {
	// Requests
	GetRequest       *types.Request
	GetWithParams    *types.Request
	PostRequest      *types.Request
	AuthorizedGet    *types.Request
	ExpectedCacheKey string

	// Responses
	OKResponse           *types.Response
	CachedResponse       *types.Response
	UnauthorizedResponse *types.Response
	ServerErrorResponse  *types.Response
	UnavailableResponse  *types.Response

	// Time
	FixedTime time.Time
}

// NewTestFixtures creates a new TestFixtures instance with all standard test data.
// Every call returns fresh values so tests may mutate them.
func NewTestFixtures() *TestFixtures {
	f := &TestFixtures{
		FixedTime: time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC),
	}
	f.initRequests()
	f.initResponses()
	return f
}

func (f *TestFixtures) initRequests() {
	f.GetRequest = types.NewRequest(types.MethodGet, "https://test.com/items")

	f.GetWithParams = types.NewRequest(types.MethodGet, "https://test.com/items").
		WithParam("page", "2").
		WithParam("limit", "10")
	f.ExpectedCacheKey = "https://test.com/items_limit=10_page=2"

	f.PostRequest = types.NewRequest(types.MethodPost, "https://test.com/items").
		WithHeader("Content-Type", "application/json").
		WithBody([]byte(`{"name":"item"}`))

	f.AuthorizedGet = f.GetRequest.WithHeader("Authorization", "Bearer test-token")
}

func (f *TestFixtures) initResponses() {
	f.OKResponse = &types.Response{
		Status:     http.StatusOK,
		StatusText: "OK",
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       []byte(`{"answer":42}`),
	}

	f.CachedResponse = &types.Response{
		Status:     http.StatusOK,
		StatusText: "OK",
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       []byte(`{"answer":41}`),
	}

	f.UnauthorizedResponse = &types.Response{
		Status:     http.StatusUnauthorized,
		StatusText: "Unauthorized",
		Headers:    map[string]string{},
		Body:       []byte(`{"error":"token expired"}`),
	}

	f.ServerErrorResponse = &types.Response{
		Status:     http.StatusInternalServerError,
		StatusText: "Internal Server Error",
		Headers:    map[string]string{"X-Trace": "abc"},
		Body:       []byte(`{"error":"boom"}`),
	}

	f.UnavailableResponse = &types.Response{
		Status:     http.StatusServiceUnavailable,
		StatusText: "Service Unavailable",
		Headers:    map[string]string{"Retry-After": "0"},
		Body:       []byte(`unavailable`),
	}
}

// NewRequest creates a request for the given method and URL.
func (f *TestFixtures) NewRequest(method types.Method, url string) *types.Request {
	return types.NewRequest(method, url)
}

// NewResponse creates a 200 response with the given body.
func (f *TestFixtures) NewResponse(body string) *types.Response {
	return types.NewResponse([]byte(body))
}

// Clock returns a clock that always reports FixedTime.
func (f *TestFixtures) Clock() func() time.Time {
	return func() time.Time { return f.FixedTime }
}
