package service

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	traceScope = "paywall.membership"

	traceAttrUserID    = "paywall.user_id"
	traceAttrLevelID   = "paywall.level_id"
	traceAttrContentID = "paywall.content_id"
	traceAttrPaymentID = "paywall.payment_id"
	traceAttrCode      = "paywall.discount_code"
	traceAttrStatus    = "paywall.status"
)

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(traceScope).Start(ctx, "paywall.membership."+name, trace.WithAttributes(attrs...))
}

// endSpan records err on span and ends it.
func endSpan(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String(traceAttrStatus, "error"))
	} else {
		span.SetStatus(codes.Ok, "")
		span.SetAttributes(attribute.String(traceAttrStatus, "success"))
	}
	span.End()
}
