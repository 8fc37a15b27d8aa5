package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/procurement/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	attrMethod      = attribute.Key("http.method")
	attrRoute       = attribute.Key("http.route")
	attrStatusCode  = attribute.Key("http.status_code")
	attrStatusGroup = attribute.Key("http.status_group")
)

// httpDurationBuckets are request latency bounds in seconds
var httpDurationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

type httpMetrics struct {
	requests *telemetry.Counter
	duration *telemetry.Histogram
	active   metric.Int64UpDownCounter
}

// HTTPMetrics records request count, latency and in-flight requests per route.
// A nil meter disables it.
func HTTPMetrics(meter metric.Meter) (gin.HandlerFunc, error) {
	if meter == nil {
		return func(c *gin.Context) { c.Next() }, nil
	}
	requests, err := telemetry.NewCounter(meter, "http_server_request_total", "Total number of HTTP requests", "{request}")
	if err != nil {
		return nil, err
	}
	duration, err := telemetry.NewHistogram(meter, telemetry.HistogramOpts{
		Name:        "http_server_request_duration_seconds",
		Description: "HTTP request latency in seconds",
		Unit:        "s",
		Boundaries:  httpDurationBuckets,
	})
	if err != nil {
		return nil, err
	}
	active, err := meter.Int64UpDownCounter("http_server_active_requests",
		metric.WithDescription("Requests currently being served"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}
	m := &httpMetrics{requests: requests, duration: duration, active: active}
	return m.handle, nil
}

func (m *httpMetrics) handle(c *gin.Context) {
	start := time.Now()
	route := routePattern(c)
	ctx := c.Request.Context()
	inFlight := metric.WithAttributes(attrMethod.String(c.Request.Method), attrRoute.String(route))

	m.active.Add(ctx, 1, inFlight)
	defer m.active.Add(ctx, -1, inFlight)

	c.Next()

	status := c.Writer.Status()
	attrs := []attribute.KeyValue{
		attrMethod.String(c.Request.Method),
		attrRoute.String(route),
		attrStatusCode.Int(status),
		attrStatusGroup.String(StatusGroup(status)),
	}
	m.requests.Inc(ctx, attrs...)
	m.duration.RecordDuration(ctx, time.Since(start), attrs...)
}

// routePattern keeps metric cardinality bounded to registered routes
func routePattern(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return "unmatched"
}

// StatusGroup buckets a status code as 2xx, 3xx, 4xx or 5xx
func StatusGroup(status int) string {
	if status < 100 || status > 599 {
		return "unknown"
	}
	return strconv.Itoa(status/100) + "xx"
}
