// Package testutil provides test fixtures shared by the engine's packages: a
// controllable clock, TLS test servers, client records and OpenTelemetry
// readers for asserting recorded metrics and spans.
package testutil
