package instrumentation

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span and metric attribute keys.
//
// SECURITY WARNING: never record access tokens, refresh tokens, codes or
// client secrets. Only metadata such as client_id, grant type or error code.
const (
	AttrClientID       = "oauth.client_id"
	AttrUserID         = "oauth.user_id"
	AttrScope          = "oauth.scope"
	AttrGrantType      = "oauth.grant_type"
	AttrResponseType   = "oauth.response_type"
	AttrTokenType      = "oauth.token_type" //nolint:gosec // the token type name, not a token
	AttrTokenTypeHint  = "oauth.token_type_hint"
	AttrTokenPlacement = "oauth.token.placement" //nolint:gosec // placement mode name
	AttrTokenRefreshed = "oauth.token.refreshed" //nolint:gosec // boolean flag
	AttrError          = "oauth.error"
	AttrErrorDesc      = "oauth.error_description"
	AttrEndpoint       = "oauth.endpoint"
	AttrOperation      = "oauth.operation"

	AttrHTTPMethod     = "http.method"
	AttrHTTPStatusCode = "http.status_code"
)

// RecordError records an error on a span with proper status codes (nil-safe)
func RecordError(span trace.Span, err error) {
	if span != nil && err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// SetSpanSuccess marks a span as successful (nil-safe)
func SetSpanSuccess(span trace.Span) {
	if span != nil {
		span.SetStatus(codes.Ok, "")
	}
}

// SetSpanAttributes sets attributes on a span (nil-safe)
func SetSpanAttributes(span trace.Span, attrs ...attribute.KeyValue) {
	if span != nil {
		span.SetAttributes(attrs...)
	}
}

// AddOAuthFlowAttributes adds common OAuth flow attributes to a span, skipping
// empty values.
func AddOAuthFlowAttributes(span trace.Span, clientID, grantType, scope string) {
	if clientID != "" {
		SetSpanAttributes(span, attribute.String(AttrClientID, clientID))
	}
	if grantType != "" {
		SetSpanAttributes(span, attribute.String(AttrGrantType, grantType))
	}
	if scope != "" {
		SetSpanAttributes(span, attribute.String(AttrScope, scope))
	}
}

// AddProtocolErrorAttributes records an OAuth error code on a span without
// marking the span failed; protocol errors are expected outcomes.
func AddProtocolErrorAttributes(span trace.Span, code, description string) {
	SetSpanAttributes(span, attribute.String(AttrError, code))
	if description != "" {
		SetSpanAttributes(span, attribute.String(AttrErrorDesc, description))
	}
}

// AddHTTPAttributes adds HTTP request attributes to a span (nil-safe)
func AddHTTPAttributes(span trace.Span, method string, statusCode int) {
	SetSpanAttributes(span,
		attribute.String(AttrHTTPMethod, method),
		attribute.Int(AttrHTTPStatusCode, statusCode),
	)
}
