package instrumentation

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all metric instruments. Record methods are safe on a nil
// receiver.
type Metrics struct {
	// Authorization server
	TokenIssued         metric.Int64Counter
	AuthorizationIssued metric.Int64Counter
	GrantErrors         metric.Int64Counter
	TokenRevoked        metric.Int64Counter
	RateLimitExceeded   metric.Int64Counter

	// Client session
	ClientTokenFetched     metric.Int64Counter
	ClientTokenRefreshed   metric.Int64Counter
	ClientTokenRevoked     metric.Int64Counter
	ClientProtectedRequest metric.Int64Counter
	ClientHTTPDuration     metric.Float64Histogram
}

func newMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
		unit string
	}{
		{&m.TokenIssued, "oauth.server.token.issued", "Number of access tokens issued", "{token}"},
		{&m.AuthorizationIssued, "oauth.server.authorization.issued", "Number of successful authorization responses", "{response}"},
		{&m.GrantErrors, "oauth.server.grant.errors", "Number of protocol errors returned by grants", "{error}"},
		{&m.TokenRevoked, "oauth.server.token.revoked", "Number of revocation requests served", "{revocation}"},
		{&m.RateLimitExceeded, "oauth.rate_limit.exceeded", "Number of rate limit violations", "{violation}"},
		{&m.ClientTokenFetched, "oauth.client.token.fetched", "Number of tokens obtained by client sessions", "{token}"},
		{&m.ClientTokenRefreshed, "oauth.client.token.refreshed", "Number of tokens refreshed by client sessions", "{refresh}"},
		{&m.ClientTokenRevoked, "oauth.client.token.revoked", "Number of revocation requests sent by client sessions", "{revocation}"},
		{&m.ClientProtectedRequest, "oauth.client.protected_requests", "Number of protected resource requests sent", "{request}"},
	}
	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name,
			metric.WithDescription(c.desc),
			metric.WithUnit(c.unit),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s counter: %w", c.name, err)
		}
		*c.dst = counter
	}

	var err error
	m.ClientHTTPDuration, err = meter.Float64Histogram(
		"oauth.client.http.duration",
		metric.WithDescription("Duration of client session HTTP calls in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create oauth.client.http.duration histogram: %w", err)
	}

	return m, nil
}

// RecordTokenIssued records a token issued by the token endpoint.
func (m *Metrics) RecordTokenIssued(ctx context.Context, grantType string) {
	if m == nil {
		return
	}
	m.TokenIssued.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrGrantType, grantType)))
}

// RecordAuthorizationIssued records a successful authorization endpoint response.
func (m *Metrics) RecordAuthorizationIssued(ctx context.Context, responseType string) {
	if m == nil {
		return
	}
	m.AuthorizationIssued.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrResponseType, responseType)))
}

// RecordGrantError records a protocol error served by endpoint.
func (m *Metrics) RecordGrantError(ctx context.Context, endpoint, code string) {
	if m == nil {
		return
	}
	m.GrantErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrEndpoint, endpoint),
		attribute.String(AttrError, code),
	))
}

// RecordTokenRevoked records a served revocation request.
func (m *Metrics) RecordTokenRevoked(ctx context.Context) {
	if m == nil {
		return
	}
	m.TokenRevoked.Add(ctx, 1)
}

// RecordRateLimitExceeded records a throttled request.
func (m *Metrics) RecordRateLimitExceeded(ctx context.Context) {
	if m == nil {
		return
	}
	m.RateLimitExceeded.Add(ctx, 1)
}

// RecordClientTokenFetched records a token obtained by a client session.
func (m *Metrics) RecordClientTokenFetched(ctx context.Context, grantType string) {
	if m == nil {
		return
	}
	m.ClientTokenFetched.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrGrantType, grantType)))
}

// RecordClientTokenRefreshed records a refresh performed by a client session.
func (m *Metrics) RecordClientTokenRefreshed(ctx context.Context) {
	if m == nil {
		return
	}
	m.ClientTokenRefreshed.Add(ctx, 1)
}

// RecordClientTokenRevoked records a revocation sent by a client session.
func (m *Metrics) RecordClientTokenRevoked(ctx context.Context) {
	if m == nil {
		return
	}
	m.ClientTokenRevoked.Add(ctx, 1)
}

// RecordProtectedRequest records a protected resource request.
func (m *Metrics) RecordProtectedRequest(ctx context.Context, placement string, refreshed bool) {
	if m == nil {
		return
	}
	m.ClientProtectedRequest.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrTokenPlacement, placement),
		attribute.Bool(AttrTokenRefreshed, refreshed),
	))
}

// RecordClientHTTP records the duration of one client session HTTP call.
// status is 0 when the transport failed before a response.
func (m *Metrics) RecordClientHTTP(ctx context.Context, operation string, status int, durationMs float64) {
	if m == nil {
		return
	}
	m.ClientHTTPDuration.Record(ctx, durationMs, metric.WithAttributes(
		attribute.String(AttrOperation, operation),
		attribute.Int(AttrHTTPStatusCode, status),
	))
}
