// Package instrumentation provides OpenTelemetry metrics and tracing for the
// OAuth engine.
//
// Both the authorization server and the client session accept an optional
// *Instrumentation. A nil value, or one built with Enabled set to false,
// records nothing and costs nothing.
//
// # Quick Start
//
//	inst, err := instrumentation.New(instrumentation.Config{
//		ServiceName:    "billing-api",
//		ServiceVersion: "1.4.0",
//		Enabled:        true,
//		MeterProvider:  meterProvider,  // nil uses otel.GetMeterProvider()
//		TracerProvider: tracerProvider, // nil uses otel.GetTracerProvider()
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	srv, err := server.New(server.Config{
//		QueryClient:     store.QueryClient,
//		Instrumentation: inst,
//	}, server.NewClientCredentialsGrant(store.SaveToken))
//
// # Available Metrics
//
// Authorization server:
//   - oauth.server.token.issued{grant_type}
//   - oauth.server.authorization.issued{response_type}
//   - oauth.server.grant.errors{endpoint, error}
//   - oauth.server.token.revoked
//   - oauth.rate_limit.exceeded
//
// Client session:
//   - oauth.client.token.fetched{grant_type}
//   - oauth.client.token.refreshed
//   - oauth.client.token.revoked
//   - oauth.client.protected_requests{placement, refreshed}
//   - oauth.client.http.duration{operation, status} (ms)
//
// # Security
//
// Span attributes carry metadata only (client_id, grant type, scope, error
// code). Tokens, codes and secrets are never recorded.
package instrumentation
