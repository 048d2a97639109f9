package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequest_DefaultsToGet(t *testing.T) {
	req := NewRequest("", "https://test.com")

	assert.Equal(t, MethodGet, req.Method)
	assert.Equal(t, "https://test.com", req.URL)
	assert.NotNil(t, req.Headers)
	assert.NotNil(t, req.Params)
}

func TestParseMethod(t *testing.T) {
	tests := []struct {
		in      string
		want    Method
		wantErr bool
	}{
		{in: "get", want: MethodGet},
		{in: " PATCH ", want: MethodPatch},
		{in: "options", want: MethodOptions},
		{in: "TRACE", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMethod(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRequest_WithHelpersDoNotMutateOriginal(t *testing.T) {
	orig := NewRequest(MethodGet, "https://test.com/items")
	orig.Headers["Accept"] = "application/json"
	orig.Params["page"] = "1"

	modified := orig.
		WithHeader("Authorization", "Bearer abc").
		WithParam("page", "2").
		WithMethod(MethodPost).
		WithBody([]byte(`{"a":1}`)).
		WithURL("https://test.com/other")

	assert.Equal(t, map[string]string{"Accept": "application/json"}, orig.Headers)
	assert.Equal(t, map[string]string{"page": "1"}, orig.Params)
	assert.Equal(t, MethodGet, orig.Method)
	assert.Nil(t, orig.Body)
	assert.Equal(t, "https://test.com/items", orig.URL)

	assert.Equal(t, "Bearer abc", modified.Headers["Authorization"])
	assert.Equal(t, "2", modified.Params["page"])
	assert.Equal(t, MethodPost, modified.Method)
	assert.Equal(t, []byte(`{"a":1}`), modified.Body)
	assert.Equal(t, "https://test.com/other", modified.URL)
}

func TestRequest_WithHeaderReplacesCaseInsensitively(t *testing.T) {
	req := NewRequest(MethodGet, "https://test.com").WithHeader("x-request-id", "a")

	req = req.WithHeader("X-Request-ID", "b")

	assert.Len(t, req.Headers, 1)
	v, ok := req.Header("x-request-id")
	assert.True(t, ok)
	assert.Equal(t, "b", v)
}

func TestResponse_ErrorClassification(t *testing.T) {
	tests := []struct {
		status           int
		isError          bool
		isServerOrUnkown bool
	}{
		{status: 0, isError: true, isServerOrUnkown: true},
		{status: 200, isError: false, isServerOrUnkown: false},
		{status: 304, isError: false, isServerOrUnkown: false},
		{status: 401, isError: true, isServerOrUnkown: false},
		{status: 500, isError: true, isServerOrUnkown: true},
		{status: 503, isError: true, isServerOrUnkown: true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status %d", tt.status), func(t *testing.T) {
			resp := NewStatusResponse(tt.status, nil)
			assert.Equal(t, tt.isError, resp.IsError())
			assert.Equal(t, tt.isServerOrUnkown, resp.IsServerOrUnknownError())
		})
	}
}

func TestResponse_TravelsAsError(t *testing.T) {
	resp := &Response{Status: 500, StatusText: "Server Error", Body: []byte("42")}
	wrapped := fmt.Errorf("downstream: %w", resp)

	got, ok := AsResponse(wrapped)
	require.True(t, ok)
	assert.Same(t, resp, got)
	assert.Equal(t, "http response 500 Server Error", resp.Error())

	_, ok = AsResponse(errors.New("plain"))
	assert.False(t, ok)
}

func TestNewUnknownErrorResponse(t *testing.T) {
	resp := NewUnknownErrorResponse(errors.New("connection refused"))

	assert.Equal(t, StatusUnknown, resp.Status)
	assert.Equal(t, "Unknown Error", resp.StatusText)
	assert.Equal(t, []byte("connection refused"), resp.Body)
	assert.True(t, resp.IsServerOrUnknownError())
}

func TestResponse_JSON(t *testing.T) {
	resp, err := NewJSONResponse(200, map[string]int{"answer": 42})
	require.NoError(t, err)
	assert.Equal(t, "application/json", resp.Headers["Content-Type"])

	var out struct {
		Answer int `json:"answer"`
	}
	require.NoError(t, resp.JSON(&out))
	assert.Equal(t, 42, out.Answer)
}

func TestResponse_CloneIsDeep(t *testing.T) {
	resp := NewResponse([]byte("body"))
	resp.Headers["ETag"] = "v1"
	resp.CacheMetadata = &CacheMetadata{}

	clone := resp.Clone()
	clone.Headers["ETag"] = "v2"
	clone.Body[0] = 'B'
	clone.CacheMetadata = nil

	assert.Equal(t, "v1", resp.Headers["ETag"])
	assert.Equal(t, []byte("body"), resp.Body)
	assert.NotNil(t, resp.CacheMetadata)
}

func TestResponse_Source(t *testing.T) {
	resp := NewResponse(nil)
	assert.Equal(t, "network", resp.Source())

	resp.CacheMetadata = &CacheMetadata{}
	assert.Equal(t, "cache", resp.Source())
}
