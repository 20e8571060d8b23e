package otelhelper

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SetError marks the span as failed and records err. Extra attributes
// land on the span itself so backends can facet on routing and change
// set identifiers.
func SetError(span trace.Span, err error, attrs ...attribute.KeyValue) {
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
