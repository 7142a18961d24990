// Package spans closes otel spans with a status derived from an error.
package spans

import (
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// End records err on span, sets the matching status and ends the span. It
// returns err unchanged so callers can end a span on their return line.
func End(span trace.Span, err error) error {
	defer span.End()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	span.SetStatus(codes.Ok, "")
	return nil
}
