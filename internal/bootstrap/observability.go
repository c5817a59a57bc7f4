package bootstrap

import (
	"io"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/kirillkom/legal-doc-agent/internal/observability/logging"
)

// InitObservability installs the JSON logger as the slog default and the W3C trace
// propagator used across HTTP and NATS hops.
func InitObservability(w io.Writer, service, level string) *slog.Logger {
	logger := logging.New(w, service, level)
	slog.SetDefault(logger)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return logger
}
