package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/procurement/backend/internal/infrastructure/telemetry"
)

// ProfilingLabels tags the CPU and allocation samples of a request with its
// route pattern, method and actor role. Mount it after Actor.
func ProfilingLabels() gin.HandlerFunc {
	return func(c *gin.Context) {
		telemetry.WithProfilingLabels(c.Request.Context(), profilingLabels(c), func(ctx context.Context) {
			c.Request = c.Request.WithContext(ctx)
			c.Next()
		})
	}
}

func profilingLabels(c *gin.Context) map[string]string {
	labels := map[string]string{
		telemetry.ProfilingLabelRoute:  c.FullPath(),
		telemetry.ProfilingLabelMethod: c.Request.Method,
	}
	if actor, ok := ActorFrom(c); ok {
		labels[telemetry.ProfilingLabelRole] = "user"
		if actor.Admin {
			labels[telemetry.ProfilingLabelRole] = RoleAdmin
		}
	}
	return labels
}
