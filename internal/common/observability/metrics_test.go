package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestStartSpan_RecordsError(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	obs := New("test-service",
		WithRegisterer(promclient.NewRegistry()),
		WithSpanProcessor(recorder),
		WithoutGlobal(),
	)
	defer obs.Shutdown()

	_, span := obs.StartSpan(context.Background(), "search-products", attribute.String("query", "creatine"))
	EndSpan(span, errors.New("upstream 503"))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "search-products", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Contains(t, spans[0].Attributes(), attribute.String("query", "creatine"))
}

func TestRecordMetrics_Exported(t *testing.T) {
	reg := promclient.NewRegistry()
	obs := New("test-service", WithRegisterer(reg), WithoutGlobal())
	defer obs.Shutdown()

	ctx := context.Background()
	obs.RecordTurn(ctx, "greeting", "ok")
	obs.RecordStageDuration(ctx, "classify-intent", 120*time.Millisecond, "ok")

	families, err := reg.Gather()
	require.NoError(t, err)

	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "assistant_turns_total")
	assert.Contains(t, names, "assistant_stage_duration_milliseconds")
	for _, name := range names {
		assert.NotContains(t, name, ".", name)
	}
}

func TestNilObservability_IsSafe(t *testing.T) {
	var obs *Observability
	ctx, span := obs.StartSpan(context.Background(), "noop")
	assert.NotNil(t, ctx)
	EndSpan(span, nil)
	obs.RecordTurn(ctx, "greeting", "ok")
	obs.Shutdown()
}
