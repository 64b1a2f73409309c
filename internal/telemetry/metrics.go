package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ServerMetrics holds metric instruments for HTTP server telemetry.
// Initialize once at server startup and reuse throughout the application lifecycle.
type ServerMetrics struct {
	RequestCounter  metric.Int64Counter     // Total HTTP requests
	RequestDuration metric.Float64Histogram // HTTP request latency
	ErrorCounter    metric.Int64Counter     // Total HTTP errors (5xx)
}

// NewServerMetrics creates a new ServerMetrics instance with pre-configured instruments.
func NewServerMetrics() (*ServerMetrics, error) {
	meter := otel.Meter("authplane/http")

	requestCounter, err := meter.Int64Counter(
		"http.server.request.count",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	// Histogram: HTTP request duration in milliseconds
	// Use for: Latency percentiles (p50, p95, p99)
	requestDuration, err := meter.Float64Histogram(
		"http.server.request.duration",
		metric.WithDescription("HTTP request duration"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000),
	)
	if err != nil {
		return nil, err
	}

	errorCounter, err := meter.Int64Counter(
		"http.server.error.count",
		metric.WithDescription("Total number of HTTP server errors (5xx)"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	return &ServerMetrics{
		RequestCounter:  requestCounter,
		RequestDuration: requestDuration,
		ErrorCounter:    errorCounter,
	}, nil
}

// RecordRequest records an HTTP request with method, route, status, and duration.
func (m *ServerMetrics) RecordRequest(ctx context.Context, method, route, status string, durationMs float64) {
	attrs := metric.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("http.route", route),
		attribute.String("http.status_code", status),
	)

	m.RequestCounter.Add(ctx, 1, attrs)
	m.RequestDuration.Record(ctx, durationMs, attrs)

	if len(status) > 0 && status[0] == '5' {
		m.ErrorCounter.Add(ctx, 1, attrs)
	}
}

// DispatchMetrics holds metric instruments for the command/query bus and the
// enforcer reload path.
type DispatchMetrics struct {
	DispatchCounter  metric.Int64Counter     // Total dispatched messages
	DispatchDuration metric.Float64Histogram // Handler latency
	DispatchErrors   metric.Int64Counter     // Failed dispatches
	ReloadCounter    metric.Int64Counter     // Enforcer reloads by outcome
}

// NewDispatchMetrics creates metric instruments for bus telemetry.
func NewDispatchMetrics() (*DispatchMetrics, error) {
	meter := otel.Meter("authplane/bus")

	dispatchCounter, err := meter.Int64Counter(
		"bus.dispatch.count",
		metric.WithDescription("Total number of dispatched commands and queries"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, err
	}

	dispatchDuration, err := meter.Float64Histogram(
		"bus.dispatch.duration",
		metric.WithDescription("Command/query handler duration"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 25, 50, 100, 250, 500, 1000, 2000),
	)
	if err != nil {
		return nil, err
	}

	dispatchErrors, err := meter.Int64Counter(
		"bus.dispatch.error.count",
		metric.WithDescription("Total number of failed dispatches"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	reloadCounter, err := meter.Int64Counter(
		"enforcer.reload.count",
		metric.WithDescription("Enforcer reload attempts by outcome"),
		metric.WithUnit("{reload}"),
	)
	if err != nil {
		return nil, err
	}

	return &DispatchMetrics{
		DispatchCounter:  dispatchCounter,
		DispatchDuration: dispatchDuration,
		DispatchErrors:   dispatchErrors,
		ReloadCounter:    reloadCounter,
	}, nil
}

// RecordDispatch records one bus dispatch with its kind ("command"/"query"),
// message name, and outcome.
func (d *DispatchMetrics) RecordDispatch(ctx context.Context, kind, name string, durationMs float64, err error) {
	attrs := metric.WithAttributes(
		attribute.String("dispatch.kind", kind),
		attribute.String("dispatch.name", name),
	)

	d.DispatchCounter.Add(ctx, 1, attrs)
	d.DispatchDuration.Record(ctx, durationMs, attrs)

	if err != nil {
		d.DispatchErrors.Add(ctx, 1, attrs)
	}
}

// RecordReload records one enforcer reload outcome.
func (d *DispatchMetrics) RecordReload(ctx context.Context, ok bool) {
	d.ReloadCounter.Add(ctx, 1, metric.WithAttributes(attribute.Bool("reload.ok", ok)))
}

// AuthMetrics holds metric instruments for authentication operations.
type AuthMetrics struct {
	AuthAttempts metric.Int64Counter // Total auth attempts
	AuthFailures metric.Int64Counter // Failed auth attempts
	AuthDuration metric.Float64Histogram
}

// NewAuthMetrics creates metric instruments for authentication telemetry.
func NewAuthMetrics() (*AuthMetrics, error) {
	meter := otel.Meter("authplane/auth")

	authAttempts, err := meter.Int64Counter(
		"auth.attempt.count",
		metric.WithDescription("Total number of authentication attempts"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, err
	}

	authFailures, err := meter.Int64Counter(
		"auth.failure.count",
		metric.WithDescription("Total number of failed authentication attempts"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return nil, err
	}

	authDuration, err := meter.Float64Histogram(
		"auth.duration",
		metric.WithDescription("Authentication operation duration"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(5, 10, 25, 50, 100, 250, 500, 1000),
	)
	if err != nil {
		return nil, err
	}

	return &AuthMetrics{
		AuthAttempts: authAttempts,
		AuthFailures: authFailures,
		AuthDuration: authDuration,
	}, nil
}

// RecordAuth records an authentication attempt with result and duration.
func (a *AuthMetrics) RecordAuth(ctx context.Context, method string, success bool, durationMs float64) {
	attrs := metric.WithAttributes(
		attribute.String("auth.method", method), // password, refresh
		attribute.Bool("auth.success", success),
	)

	a.AuthAttempts.Add(ctx, 1, attrs)
	a.AuthDuration.Record(ctx, durationMs, attrs)

	if !success {
		a.AuthFailures.Add(ctx, 1, attrs)
	}
}
