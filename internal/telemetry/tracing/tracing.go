package tracing

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/honeycombio/otel-config-go/otelconfig"
	log "github.com/sirupsen/logrus"
)

var GlobalTracer = otel.Tracer("fitlytics-backend")

// EndSpanWithErrCheck ends the span, recording the error on it if present
func EndSpanWithErrCheck(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// HoneycombSetup configures the OpenTelemetry SDK via the honeycomb
// otel-config distro. Returns a shutdown func which is safe to call
// even when tracing is disabled.
func HoneycombSetup(enabled bool, serviceName string) (func(), error) {
	if !enabled {
		log.Debugln("tracing disabled, otel sdk not configured")
		return func() {}, nil
	}

	otelShutdown, err := otelconfig.ConfigureOpenTelemetry(
		otelconfig.WithServiceName(serviceName),
	)
	if err != nil {
		return nil, err
	}

	return otelShutdown, nil
}
