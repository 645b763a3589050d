// internal/common/observability/metrics_test.go
package observability

import (
	"context"
	"testing"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestObservability_RecordTicket(t *testing.T) {
	reg := promclient.NewRegistry()
	obs, err := New("ticket-responder-test", reg)
	require.NoError(t, err)
	defer obs.Shutdown()

	obs.RecordTicket(context.Background(), "PUBLISHED", 1500*time.Millisecond)
	obs.RecordTicket(context.Background(), "FAILED", 20*time.Millisecond)

	families, err := reg.Gather()
	require.NoError(t, err)

	var names []string
	for _, mf := range families {
		names = append(names, mf.GetName())
	}
	// Counters gain _total and the ms unit becomes a _milliseconds suffix on export.
	assert.Contains(t, names, "pipeline_tickets_total")
	assert.Contains(t, names, "pipeline_ticket_duration_milliseconds")
}

func TestObservability_Tracer(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	obs, err := New("ticket-responder-test", promclient.NewRegistry(), sdktrace.WithSpanProcessor(recorder))
	require.NoError(t, err)
	defer obs.Shutdown()

	_, span := obs.Tracer().Start(context.Background(), "stage.select")
	span.End()

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "stage.select", ended[0].Name())
}
