package logger

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cecil-the-coder/convoy/pkg/pipeline"
	"github.com/cecil-the-coder/convoy/pkg/stream"
	"github.com/cecil-the-coder/convoy/pkg/testutil"
)

// entries decodes the JSON lines written by zerolog
func entries(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	scanner := bufio.NewScanner(buf)
	for scanner.Scan() {
		var entry map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
		out = append(out, entry)
	}
	return out
}

func setup(t *testing.T, cfg Config) (*pipeline.Pipeline, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)
	cfg.Logger = &logger
	p, err := pipeline.New(pipeline.Config{Plugins: []pipeline.Plugin{New(cfg).AsPlugin()}})
	require.NoError(t, err)
	return p, &buf
}

func TestLogger_LogsRequestAndResponse(t *testing.T) {
	f := testutil.NewTestFixtures()
	p, buf := setup(t, Config{})

	testutil.Collect(t, p.Handle(testutil.TestContext(t), f.GetWithParams, testutil.NewMockTerminal(f.OKResponse)))

	logs := entries(t, buf)
	require.Len(t, logs, 3)

	assert.Equal(t, "Request", logs[0]["message"])
	assert.Equal(t, "info", logs[0]["level"])
	assert.Equal(t, "GET", logs[0]["method"])
	assert.Equal(t, f.GetWithParams.URL, logs[0]["url"])
	assert.Equal(t, map[string]any{"page": "2", "limit": "10"}, logs[0]["params"])
	assert.NotContains(t, logs[0], "headers")

	assert.Equal(t, "Response", logs[1]["message"])
	assert.Equal(t, float64(http.StatusOK), logs[1]["status"])
	assert.Equal(t, "network", logs[1]["source"])
	assert.Contains(t, logs[1], "latency")

	assert.Equal(t, "Request completed", logs[2]["message"])
	assert.Equal(t, float64(1), logs[2]["responses"])
}

func TestLogger_Failures(t *testing.T) {
	f := testutil.NewTestFixtures()

	tests := []struct {
		name      string
		terminal  *testutil.MockTerminal
		wantLevel string
		status    any
	}{
		{"client error", testutil.NewMockTerminal(f.UnauthorizedResponse), "warn", float64(http.StatusUnauthorized)},
		{"server error", testutil.NewMockTerminal(f.ServerErrorResponse), "error", float64(http.StatusInternalServerError)},
		{"plain error", func() *testutil.MockTerminal {
			m := testutil.NewMockTerminal()
			m.SetError(errors.New("boom"))
			return m
		}(), "error", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, buf := setup(t, Config{})

			_, err := stream.Collect(p.Handle(testutil.TestContext(t), f.GetRequest, tt.terminal))
			require.Error(t, err)

			logs := entries(t, buf)
			require.Len(t, logs, 2)
			last := logs[1]
			assert.Equal(t, "Request failed", last["message"])
			assert.Equal(t, tt.wantLevel, last["level"])
			assert.Equal(t, tt.status, last["status"])
		})
	}
}

func TestLogger_Cancelled(t *testing.T) {
	f := testutil.NewTestFixtures()
	p, buf := setup(t, Config{})
	terminal := testutil.NewGatedTerminal(f.OKResponse)

	responses := p.Handle(testutil.TestContext(t), f.GetRequest, terminal)
	go func() {
		<-terminal.Handled()
		_ = responses.Close()
	}()
	_, _ = responses.Next()
	_ = responses.Close()

	logs := entries(t, buf)
	require.Len(t, logs, 2)
	assert.Equal(t, "Request cancelled", logs[1]["message"])
}

func TestLogger_LevelAndHeaders(t *testing.T) {
	f := testutil.NewTestFixtures()
	level := zerolog.DebugLevel
	p, buf := setup(t, Config{Level: &level, LogHeaders: true})

	testutil.Collect(t, p.Handle(testutil.TestContext(t), f.AuthorizedGet, testutil.NewMockTerminal(f.OKResponse)))

	logs := entries(t, buf)
	require.NotEmpty(t, logs)
	assert.Equal(t, "debug", logs[0]["level"])
	assert.Contains(t, logs[0], "headers")
}
