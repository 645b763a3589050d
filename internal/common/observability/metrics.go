// internal/common/observability/metrics.go
package observability

import (
	"context"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Observability owns the otel meter and tracer providers for the process.
type Observability struct {
	meterProvider  *metric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	meter          otelmetric.Meter
	tracer         trace.Tracer
	ticketCounter  otelmetric.Int64Counter
	ticketDuration otelmetric.Float64Histogram
}

// New wires a prometheus-exporting meter provider into reg (the default registry when nil)
// and a tracer provider built from traceOpts.
func New(serviceName string, reg promclient.Registerer, traceOpts ...sdktrace.TracerProviderOption) (*Observability, error) {
	exporterOpts := []prometheus.Option{}
	if reg != nil {
		exporterOpts = append(exporterOpts, prometheus.WithRegisterer(reg))
	}
	exporter, err := prometheus.New(exporterOpts...)
	if err != nil {
		return nil, err
	}

	meterProvider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(meterProvider)

	tracerProvider := sdktrace.NewTracerProvider(traceOpts...)
	otel.SetTracerProvider(tracerProvider)

	meter := meterProvider.Meter(serviceName)

	ticketCounter, err := meter.Int64Counter(
		"pipeline_tickets",
		otelmetric.WithDescription("Number of tickets that reached a terminal state"),
	)
	if err != nil {
		return nil, err
	}

	ticketDuration, err := meter.Float64Histogram(
		"pipeline_ticket_duration",
		otelmetric.WithDescription("Ticket pipeline duration"),
		otelmetric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &Observability{
		meterProvider:  meterProvider,
		tracerProvider: tracerProvider,
		meter:          meter,
		tracer:         tracerProvider.Tracer(serviceName),
		ticketCounter:  ticketCounter,
		ticketDuration: ticketDuration,
	}, nil
}

// Tracer returns the process tracer.
func (o *Observability) Tracer() trace.Tracer {
	return o.tracer
}

// RecordTicket records one terminal ticket outcome.
func (o *Observability) RecordTicket(ctx context.Context, state string, duration time.Duration) {
	attrs := otelmetric.WithAttributes(attribute.String("state", state))
	o.ticketCounter.Add(ctx, 1, attrs)
	o.ticketDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
}

// Shutdown flushes both providers.
func (o *Observability) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = o.tracerProvider.Shutdown(ctx)
	_ = o.meterProvider.Shutdown(ctx)
}
