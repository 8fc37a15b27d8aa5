package router

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/procurement/backend/internal/infrastructure/config"
	"github.com/procurement/backend/internal/infrastructure/logger"
	"github.com/procurement/backend/internal/interfaces/http/dto"
	"github.com/procurement/backend/internal/interfaces/http/handler"
	"github.com/procurement/backend/internal/interfaces/http/middleware"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// EngineConfig holds what the engine needs beyond the handlers
type EngineConfig struct {
	ServiceName    string
	HTTP           config.HTTPConfig
	Logger         *zap.Logger
	TracerProvider trace.TracerProvider // nil uses the global provider
	Meter          metric.Meter         // nil disables HTTP metrics
	Health         *handler.HealthHandler
	Swagger        config.SwaggerConfig
	Profiling      bool // tag API samples with profiling labels
}

// NewEngine builds the gin engine with the middleware chain and every route.
// ctx bounds the background work of the rate limiter.
func NewEngine(ctx context.Context, cfg EngineConfig, h Handlers) (*gin.Engine, error) {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			return nil, fmt.Errorf("trusted proxies: %w", err)
		}
	}

	httpMetrics, err := middleware.HTTPMetrics(cfg.Meter)
	if err != nil {
		return nil, fmt.Errorf("http metrics: %w", err)
	}
	middleware.SetupValidator()

	engine.Use(
		logger.Recovery(cfg.Logger),
		middleware.RequestID(),
		middleware.Tracing(cfg.ServiceName, cfg.TracerProvider),
		middleware.SpanErrorMarker(),
		logger.GinMiddleware(cfg.Logger),
		httpMetrics,
		middleware.Secure(),
		middleware.CORS(middleware.CORSConfigFrom(cfg.HTTP)),
		middleware.BodyLimit(cfg.HTTP.MaxBodySize),
	)
	engine.NoRoute(func(c *gin.Context) {
		c.JSON(dto.HTTPStatus(dto.ErrCodeRouteNotFound), dto.NewErrorResponse(dto.ErrCodeRouteNotFound,
			"no route for "+c.Request.Method+" "+c.Request.URL.Path, c.GetString(logger.GinRequestIDKey)))
	})

	if cfg.Health != nil {
		engine.GET("/health", cfg.Health.Live)
		engine.GET("/health/ready", cfg.Health.Ready)
	}
	engine.GET("/swagger/*any", middleware.SwaggerProtection(cfg.Swagger), ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := []gin.HandlerFunc{middleware.Actor(), middleware.TraceAttributes()}
	if cfg.Profiling {
		api = append(api, middleware.ProfilingLabels())
	}
	if cfg.HTTP.RateLimit > 0 {
		limiter := middleware.NewRateLimiter(cfg.HTTP.RateLimit, cfg.HTTP.RateLimitWindow)
		go limiter.Run(ctx)
		api = append(api, middleware.RateLimit(limiter))
	}

	NewRouter(engine, WithMiddleware(api...)).Register(Routes(h)...).Setup()
	return engine, nil
}
