// Package observability wires the OpenTelemetry tracer provider.
package observability

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/Clark-Hu/store-ratings/internal/logger"
)

// TracerName is the instrumentation scope used by the service layer.
const TracerName = "github.com/Clark-Hu/store-ratings"

// Options selects the exporter and sampling.
type Options struct {
	// Exporter is none, stdout or otlp. otlp honours the standard
	// OTEL_EXPORTER_OTLP_* environment variables.
	Exporter    string
	ServiceName string
	SampleRatio float64
	// Writer receives stdout spans; nil means os.Stdout.
	Writer io.Writer
}

// Init installs a global tracer provider and W3C propagators and returns the
// provider's shutdown. With Exporter "none" spans are sampled but dropped.
func Init(ctx context.Context, opts Options, log *logger.Logger) (func(context.Context) error, error) {
	if log == nil {
		log = logger.NewNop()
	}
	serviceName := strings.TrimSpace(opts.ServiceName)
	if serviceName == "" {
		serviceName = "store-ratings"
	}

	res := resource.NewSchemaless(attribute.String("service.name", serviceName))

	providerOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(clampRatio(opts.SampleRatio)))),
		sdktrace.WithResource(res),
	}

	exporter, err := buildExporter(ctx, opts)
	if err != nil {
		return nil, err
	}
	if exporter != nil {
		providerOpts = append(providerOpts, sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(5*time.Second)))
	}

	tp := sdktrace.NewTracerProvider(providerOpts...)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	log.Info("otel tracing initialized", "service", serviceName, "exporter", opts.Exporter)
	return tp.Shutdown, nil
}

func buildExporter(ctx context.Context, opts Options) (sdktrace.SpanExporter, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Exporter)) {
	case "", "none":
		return nil, nil
	case "stdout":
		w := opts.Writer
		if w == nil {
			w = os.Stdout
		}
		return stdouttrace.New(stdouttrace.WithWriter(w))
	case "otlp":
		exp, err := otlptracehttp.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("otlp exporter: %w", err)
		}
		return exp, nil
	default:
		return nil, fmt.Errorf("unknown otel exporter %q", opts.Exporter)
	}
}

func clampRatio(r float64) float64 {
	if r < 0 {
		return 0
	}
	if r > 1 {
		return 1
	}
	return r
}
