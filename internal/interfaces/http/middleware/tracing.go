package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/procurement/backend/internal/infrastructure/logger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrorCodeKey is where handlers leave the code of a failed request
const ErrorCodeKey = "error_code"

// Tracing starts a server span per request, named after the route pattern
func Tracing(serviceName string, tp trace.TracerProvider) gin.HandlerFunc {
	opts := []otelgin.Option{}
	if tp != nil {
		opts = append(opts, otelgin.WithTracerProvider(tp))
	}
	return otelgin.Middleware(serviceName, opts...)
}

// TraceAttributes tags the request span with the request and actor ids. It
// runs after RequestID and Actor.
func TraceAttributes() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		if span.IsRecording() {
			if id := c.GetString(logger.GinRequestIDKey); id != "" {
				span.SetAttributes(attribute.String("request_id", id))
			}
			if actor, ok := ActorFrom(c); ok {
				span.SetAttributes(
					attribute.String("actor_id", actor.ID.String()),
					attribute.Bool("actor_admin", actor.Admin),
				)
			}
		}
		c.Next()
	}
}

// SpanErrorMarker records the error code on the span once the handler ran.
// Only 5xx responses mark the span as failed; business rejections are
// expected outcomes.
func SpanErrorMarker() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			return
		}
		status := c.Writer.Status()
		if code := c.GetString(ErrorCodeKey); code != "" {
			span.SetAttributes(attribute.String("error.code", code))
		}
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	}
}
