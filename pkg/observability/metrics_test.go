package observability_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Hooks(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := observability.NewMetrics(reg)
	hooks := m.Hooks()
	ctx := context.Background()
	weather := domain.HandlerIdentity{ID: "weather", Version: domain.Version{Major: 1}}

	hooks.OnTurnStart(ctx, &domain.TurnEvent{TraceID: "t1"})
	hooks.OnTrigger(ctx, &domain.TriggerEvent{Handler: weather, Signal: domain.BoostUp})
	hooks.OnHandlerResult(ctx, &domain.HandlerEvent{Handler: weather, Code: domain.ResultSuccess, Duration: time.Millisecond})
	hooks.OnDisambiguation(ctx, &domain.TurnEvent{TraceID: "t1"})
	hooks.OnTurnEnd(ctx, &domain.TurnEvent{TraceID: "t1", Result: &domain.TurnResult{Code: domain.ResultSuccess}, Duration: time.Millisecond})

	hooks.OnTurnStart(ctx, &domain.TurnEvent{TraceID: "t2"})
	hooks.OnTurnEnd(ctx, &domain.TurnEvent{
		TraceID: "t2",
		Err:     &domain.OrchestrationError{Op: "invoked action", Err: domain.ErrInvalidInvokedAction},
	})

	expected := `
# HELP parley_turns_total Turns processed, by result code.
# TYPE parley_turns_total counter
parley_turns_total{code="error"} 1
parley_turns_total{code="success"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "parley_turns_total"))

	expected = `
# HELP parley_orchestration_errors_total Turns aborted by an orchestration error, by operation.
# TYPE parley_orchestration_errors_total counter
parley_orchestration_errors_total{op="invoked action"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "parley_orchestration_errors_total"))

	expected = `
# HELP parley_handler_executions_total Handler executions, by handler and result code.
# TYPE parley_handler_executions_total counter
parley_handler_executions_total{code="success",handler="weather"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "parley_handler_executions_total"))

	expected = `
# HELP parley_trigger_signals_total Trigger outcomes, by handler and signal.
# TYPE parley_trigger_signals_total counter
parley_trigger_signals_total{handler="weather",signal="boost"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "parley_trigger_signals_total"))

	expected = `
# HELP parley_turns_in_flight Turns currently being processed.
# TYPE parley_turns_in_flight gauge
parley_turns_in_flight 0
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "parley_turns_in_flight"))
}

func TestMetrics_Handler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := observability.NewMetrics(reg)
	m.Hooks().OnDisambiguation(context.Background(), &domain.TurnEvent{})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "parley_disambiguations_total 1")
}

func TestLogHooks(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	hooks := observability.LogHooks(logger)
	ctx := context.Background()

	hooks.OnHandlerResult(ctx, &domain.HandlerEvent{TraceID: "t1", Domain: "weather", Intent: "forecast", Code: domain.ResultSkip})
	hooks.OnTurnEnd(ctx, &domain.TurnEvent{TraceID: "t1", Err: errors.New("boom")})

	out := buf.String()
	assert.Contains(t, out, `"msg":"Handler executed"`)
	assert.Contains(t, out, `"code":"skip"`)
	assert.Contains(t, out, `"msg":"Turn failed"`)
	assert.Contains(t, out, `"err":"boom"`)
}
