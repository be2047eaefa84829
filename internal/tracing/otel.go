package tracing

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// ProviderOptions describes the process exporting spans.
type ProviderOptions struct {
	ServiceName    string
	ServiceVersion string
	// SessionsDir is recorded on the resource so spans from several
	// instances can be told apart.
	SessionsDir string
	// SampleRatio is the fraction of root spans kept. Values outside (0, 1]
	// sample everything.
	SampleRatio float64
}

var (
	providerOnce sync.Once
	providerMu   sync.RWMutex
	provider     *sdktrace.TracerProvider
	providerErr  error
)

// InitOpenTelemetry installs the process-wide tracer provider. Only the first
// call has any effect.
func InitOpenTelemetry(opts ProviderOptions) error {
	providerOnce.Do(func() {
		res, err := resource.New(context.Background(), resource.WithAttributes(resourceAttributes(opts)...))
		if err != nil {
			providerErr = err
			return
		}

		tp := sdktrace.NewTracerProvider(
			sdktrace.WithSampler(sdktrace.ParentBased(sampler(opts.SampleRatio))),
			sdktrace.WithResource(res),
		)

		providerMu.Lock()
		provider = tp
		providerMu.Unlock()

		otel.SetTracerProvider(tp)
	})

	return providerErr
}

func resourceAttributes(opts ProviderOptions) []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.String("service.name", opts.ServiceName)}
	if opts.ServiceVersion != "" {
		attrs = append(attrs, attribute.String("service.version", opts.ServiceVersion))
	}
	if opts.SessionsDir != "" {
		attrs = append(attrs, attribute.String("pointlog.sessions_dir", opts.SessionsDir))
	}
	return attrs
}

func sampler(ratio float64) sdktrace.Sampler {
	if ratio <= 0 || ratio >= 1 {
		return sdktrace.AlwaysSample()
	}
	return sdktrace.TraceIDRatioBased(ratio)
}

// ShutdownOpenTelemetry flushes and shuts down the global tracer provider.
func ShutdownOpenTelemetry(ctx context.Context) error {
	providerMu.RLock()
	tp := provider
	providerMu.RUnlock()
	if tp == nil {
		return nil
	}
	return tp.Shutdown(ctx)
}

// StartSpan starts a span tagged with the session id carried by ctx, and
// copies the span's trace id into ctx when the request did not bring one.
func StartSpan(ctx context.Context, tracerName, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if ctx == nil {
		ctx = context.Background()
	}

	if sessionID := GetSessionID(ctx); sessionID != "" && !hasKey(attrs, "session_id") {
		attrs = append(attrs, attribute.String("session_id", sessionID))
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, spanName, trace.WithAttributes(attrs...))

	if GetTraceID(ctx) == "" {
		if sc := span.SpanContext(); sc.IsValid() {
			ctx = WithTraceID(ctx, sc.TraceID().String())
		}
	}

	return ctx, span
}

func hasKey(attrs []attribute.KeyValue, key attribute.Key) bool {
	for _, kv := range attrs {
		if kv.Key == key {
			return true
		}
	}
	return false
}
