package testutil

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	oauth "github.com/giantswarm/oauth2-engine"
	"github.com/giantswarm/oauth2-engine/instrumentation"
	"github.com/giantswarm/oauth2-engine/storage"
)

// MockTime provides a controllable time source for deterministic testing
type MockTime struct {
	now time.Time
}

// NewMockTime creates a new mock time provider
func NewMockTime(t time.Time) *MockTime {
	return &MockTime{now: t}
}

// Now returns the current mock time
func (m *MockTime) Now() time.Time {
	return m.now
}

// Advance moves the mock time forward by the given duration
func (m *MockTime) Advance(d time.Duration) {
	m.now = m.now.Add(d)
}

// NewMockHTTPSServer starts a TLS test server; use srv.Client() to talk to it.
func NewMockHTTPSServer(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()
	srv := httptest.NewTLSServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

// GenerateRandomString returns a URL-safe random string of the given length.
func GenerateRandomString(length int) string {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(b)[:length]
}

// NewConfidentialClient returns a client record with a bcrypt-hashed secret.
func NewConfidentialClient(t *testing.T, id, secret string, grantTypes []string, scopes ...string) *storage.Client {
	t.Helper()
	c, err := storage.NewClient(id, secret, []string{"https://client.example.com/cb"}, grantTypes, scopes)
	if err != nil {
		t.Fatalf("storage.NewClient() error = %v", err)
	}
	return c
}

// NewPublicClient returns a client record without a secret.
func NewPublicClient(t *testing.T, id string, grantTypes []string, scopes ...string) *storage.Client {
	t.Helper()
	c, err := storage.NewClient(id, "", []string{"https://client.example.com/cb"}, grantTypes, scopes)
	if err != nil {
		t.Fatalf("storage.NewClient() error = %v", err)
	}
	return c
}

// ClientLookup returns a lookup function over a fixed set of clients. Unknown
// ids yield (nil, nil).
func ClientLookup(clients ...*storage.Client) func(context.Context, string) (oauth.Client, error) {
	byID := make(map[string]*storage.Client, len(clients))
	for _, c := range clients {
		byID[c.ID] = c
	}
	return func(_ context.Context, id string) (oauth.Client, error) {
		if c, ok := byID[id]; ok {
			return c, nil
		}
		return nil, nil
	}
}

// BasicAuth returns an Authorization header value for id and secret.
func BasicAuth(id, secret string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(id+":"+secret))
}

// Telemetry bundles an enabled Instrumentation with in-memory readers.
type Telemetry struct {
	Inst    *instrumentation.Instrumentation
	Metrics *sdkmetric.ManualReader
	Spans   *tracetest.SpanRecorder
}

// NewTelemetry returns instrumentation backed by an in-memory metric reader
// and span recorder.
func NewTelemetry(t *testing.T) *Telemetry {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	recorder := tracetest.NewSpanRecorder()
	inst, err := instrumentation.New(instrumentation.Config{
		Enabled:        true,
		ServiceName:    "test",
		MeterProvider:  sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)),
		TracerProvider: sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)),
	})
	if err != nil {
		t.Fatalf("instrumentation.New() error = %v", err)
	}
	return &Telemetry{Inst: inst, Metrics: reader, Spans: recorder}
}

// Counter sums all data points of the int64 counter called name.
func (tm *Telemetry) Counter(t *testing.T, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := tm.Metrics.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					total += dp.Value
				}
			}
		}
	}
	return total
}

// SpanNames returns the names of all ended spans, in end order.
func (tm *Telemetry) SpanNames() []string {
	ended := tm.Spans.Ended()
	names := make([]string, 0, len(ended))
	for _, s := range ended {
		names = append(names, s.Name())
	}
	return names
}
