package instrumentation_test

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/codes"

	"github.com/giantswarm/oauth2-engine/instrumentation"
	"github.com/giantswarm/oauth2-engine/internal/testutil"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name   string
		config instrumentation.Config
	}{
		{name: "disabled", config: instrumentation.Config{Enabled: false}},
		{name: "enabled with global providers", config: instrumentation.Config{Enabled: true}},
		{name: "with service name and version", config: instrumentation.Config{
			Enabled:        true,
			ServiceName:    "billing-api",
			ServiceVersion: "1.0.0",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst, err := instrumentation.New(tt.config)
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if inst.Metrics() == nil {
				t.Error("Metrics() returned nil")
			}
			if inst.Resource() == nil {
				t.Error("Resource() returned nil")
			}
			// Recording on a disabled instance must not panic.
			inst.Metrics().RecordTokenIssued(context.Background(), "client_credentials")
		})
	}
}

func TestNilInstrumentation(t *testing.T) {
	var inst *instrumentation.Instrumentation

	if inst.Metrics() != nil {
		t.Error("Metrics() on nil instrumentation should be nil")
	}
	_, span := inst.Tracer("server").Start(context.Background(), "noop")
	span.End()

	// Record methods on a nil *Metrics are no-ops.
	inst.Metrics().RecordClientTokenRefreshed(context.Background())
}

func TestMetrics_Recorded(t *testing.T) {
	tm := testutil.NewTelemetry(t)
	ctx := context.Background()
	m := tm.Inst.Metrics()

	m.RecordTokenIssued(ctx, "client_credentials")
	m.RecordTokenIssued(ctx, "password")
	m.RecordGrantError(ctx, "token", "invalid_client")
	m.RecordAuthorizationIssued(ctx, "code")
	m.RecordTokenRevoked(ctx)
	m.RecordRateLimitExceeded(ctx)
	m.RecordClientTokenFetched(ctx, "authorization_code")
	m.RecordClientTokenRefreshed(ctx)
	m.RecordClientTokenRevoked(ctx)
	m.RecordProtectedRequest(ctx, "headers", true)
	m.RecordClientHTTP(ctx, "fetch_token", 200, 12.5)

	tests := []struct {
		name string
		want int64
	}{
		{"oauth.server.token.issued", 2},
		{"oauth.server.grant.errors", 1},
		{"oauth.server.authorization.issued", 1},
		{"oauth.server.token.revoked", 1},
		{"oauth.rate_limit.exceeded", 1},
		{"oauth.client.token.fetched", 1},
		{"oauth.client.token.refreshed", 1},
		{"oauth.client.token.revoked", 1},
		{"oauth.client.protected_requests", 1},
	}
	for _, tt := range tests {
		if got := tm.Counter(t, tt.name); got != tt.want {
			t.Errorf("%s = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestTracingHelpers(t *testing.T) {
	tm := testutil.NewTelemetry(t)

	_, span := tm.Inst.Tracer("server").Start(context.Background(), "token")
	instrumentation.AddOAuthFlowAttributes(span, "client-1", "client_credentials", "")
	instrumentation.AddProtocolErrorAttributes(span, "invalid_scope", "")
	instrumentation.AddHTTPAttributes(span, "POST", 400)
	instrumentation.RecordError(span, errors.New("boom"))
	span.End()

	ended := tm.Spans.Ended()
	if len(ended) != 1 {
		t.Fatalf("ended spans = %d, want 1", len(ended))
	}
	got := ended[0]
	if got.Status().Code != codes.Error {
		t.Errorf("status = %v, want Error", got.Status().Code)
	}

	attrs := map[string]string{}
	for _, kv := range got.Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	want := map[string]string{
		instrumentation.AttrClientID:       "client-1",
		instrumentation.AttrGrantType:      "client_credentials",
		instrumentation.AttrError:          "invalid_scope",
		instrumentation.AttrHTTPStatusCode: "400",
	}
	for k, v := range want {
		if attrs[k] != v {
			t.Errorf("attribute %s = %q, want %q", k, attrs[k], v)
		}
	}
	if _, ok := attrs[instrumentation.AttrScope]; ok {
		t.Error("empty scope should not be recorded")
	}
}

func TestSetSpanSuccess(t *testing.T) {
	tm := testutil.NewTelemetry(t)
	_, span := tm.Inst.Tracer("client").Start(context.Background(), "fetch")
	instrumentation.SetSpanSuccess(span)
	span.End()

	if got := tm.Spans.Ended()[0].Status().Code; got != codes.Ok {
		t.Errorf("status = %v, want Ok", got)
	}
}
