package requestid

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cecil-the-coder/convoy/pkg/pipeline"
	"github.com/cecil-the-coder/convoy/pkg/testutil"
)

func newPipeline(t *testing.T, plugin *Plugin) *pipeline.Pipeline {
	t.Helper()
	p, err := pipeline.New(pipeline.Config{Plugins: []pipeline.Plugin{plugin.AsPlugin()}})
	require.NoError(t, err)
	return p
}

func TestRequestID_AddsUUID(t *testing.T) {
	f := testutil.NewTestFixtures()
	terminal := testutil.NewMockTerminal(f.OKResponse)
	p := newPipeline(t, New(Config{}))

	testutil.Collect(t, p.Handle(testutil.TestContext(t), f.GetRequest, terminal))
	testutil.Collect(t, p.Handle(testutil.TestContext(t), f.GetRequest, terminal))

	requests := terminal.Requests()
	require.Len(t, requests, 2)
	first, ok := requests[0].Header(DefaultHeader)
	require.True(t, ok)
	_, err := uuid.Parse(first)
	assert.NoError(t, err)
	second, _ := requests[1].Header(DefaultHeader)
	assert.NotEqual(t, first, second)

	_, ok = f.GetRequest.Header(DefaultHeader)
	assert.False(t, ok)
}

func TestRequestID_KeepsExistingHeader(t *testing.T) {
	f := testutil.NewTestFixtures()
	terminal := testutil.NewMockTerminal(f.OKResponse)
	p := newPipeline(t, New(Config{}))

	req := f.GetRequest.WithHeader("x-request-id", "abc")
	testutil.Collect(t, p.Handle(testutil.TestContext(t), req, terminal))

	assert.Same(t, req, terminal.LastRequest())
}

func TestRequestID_CustomHeaderAndGenerator(t *testing.T) {
	f := testutil.NewTestFixtures()
	terminal := testutil.NewMockTerminal(f.OKResponse)
	p := newPipeline(t, New(Config{Header: "X-Correlation-ID", Generate: func() string { return "fixed" }}))

	testutil.Collect(t, p.Handle(testutil.TestContext(t), f.GetRequest, terminal))

	value, _ := terminal.LastRequest().Header("X-Correlation-ID")
	assert.Equal(t, "fixed", value)
}
