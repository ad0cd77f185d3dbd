package instrumentation

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const (
	// DefaultServiceName is used when Config.ServiceName is empty
	DefaultServiceName = "oauth2-engine"

	// DefaultServiceVersion is the default service version used when none is provided
	DefaultServiceVersion = "unknown"

	scopePrefix = "github.com/giantswarm/oauth2-engine/"
)

// Config holds instrumentation configuration
type Config struct {
	// ServiceName is the name of the service (e.g., "billing-api")
	ServiceName string

	// ServiceVersion is the version of the service
	ServiceVersion string

	// Enabled controls whether instrumentation is active.
	// When false, no-op providers are used.
	Enabled bool

	// MeterProvider receives the engine's metrics.
	// If nil and Enabled, the global otel MeterProvider is used.
	MeterProvider metric.MeterProvider

	// TracerProvider receives the engine's spans.
	// If nil and Enabled, the global otel TracerProvider is used.
	TracerProvider trace.TracerProvider

	// Resource allows custom resource attributes.
	// If nil, a resource with service name and version is created.
	Resource *resource.Resource
}

// Instrumentation provides OpenTelemetry instrumentation components.
// All methods are safe on a nil receiver.
type Instrumentation struct {
	config   Config
	resource *resource.Resource

	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider

	metrics *Metrics
}

// New creates a new instrumentation instance
func New(config Config) (*Instrumentation, error) {
	if config.ServiceName == "" {
		config.ServiceName = DefaultServiceName
	}
	if config.ServiceVersion == "" {
		config.ServiceVersion = DefaultServiceVersion
	}

	res := config.Resource
	if res == nil {
		var err error
		res, err = resource.New(
			context.Background(),
			resource.WithAttributes(
				semconv.ServiceName(config.ServiceName),
				semconv.ServiceVersion(config.ServiceVersion),
			),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create resource: %w", err)
		}
	}

	inst := &Instrumentation{
		config:   config,
		resource: res,
	}

	if config.Enabled {
		inst.meterProvider = config.MeterProvider
		if inst.meterProvider == nil {
			inst.meterProvider = otel.GetMeterProvider()
		}
		inst.tracerProvider = config.TracerProvider
		if inst.tracerProvider == nil {
			inst.tracerProvider = otel.GetTracerProvider()
		}
	} else {
		inst.meterProvider = noop.NewMeterProvider()
		inst.tracerProvider = tracenoop.NewTracerProvider()
	}

	metrics, err := newMetrics(inst.Meter("oauth"))
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}
	inst.metrics = metrics

	return inst, nil
}

// Meter returns a named meter for the given scope ("server", "client", ...).
func (i *Instrumentation) Meter(scope string) metric.Meter {
	if i == nil {
		return noop.NewMeterProvider().Meter(scopePrefix + scope)
	}
	return i.meterProvider.Meter(scopePrefix + scope)
}

// Tracer returns a named tracer for the given scope ("server", "client", ...).
func (i *Instrumentation) Tracer(scope string) trace.Tracer {
	if i == nil {
		return tracenoop.NewTracerProvider().Tracer(scopePrefix + scope)
	}
	return i.tracerProvider.Tracer(scopePrefix + scope)
}

// Metrics returns the metrics holder, nil when i is nil.
func (i *Instrumentation) Metrics() *Metrics {
	if i == nil {
		return nil
	}
	return i.metrics
}

// Resource returns the resource describing this service.
func (i *Instrumentation) Resource() *resource.Resource {
	if i == nil {
		return nil
	}
	return i.resource
}
