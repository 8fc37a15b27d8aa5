package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	_ "github.com/procurement/backend/docs"
	"github.com/procurement/backend/internal/infrastructure/config"
	"github.com/procurement/backend/internal/interfaces/http/handler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(engine *gin.Engine, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func pong(c *gin.Context) {
	c.String(http.StatusOK, "pong")
}

func TestNewRouter(t *testing.T) {
	r := NewRouter(gin.New())
	assert.Equal(t, "v1", r.apiVersion)
	assert.Empty(t, r.registrars)

	r = NewRouter(gin.New(), WithAPIVersion("v2"))
	assert.Equal(t, "v2", r.apiVersion)
}

func TestRouter_Setup(t *testing.T) {
	engine := gin.New()
	hits := 0
	counter := func(c *gin.Context) {
		hits++
		c.Next()
	}

	group := NewDomainGroup("test", "/test")
	group.GET("/ping", pong).POST("/ping", pong).DELETE("/ping", pong)
	group.Group("nested", "/nested").GET("", pong)
	NewRouter(engine, WithMiddleware(counter)).Register(group).Setup()

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/v1/test/ping"},
		{http.MethodPost, "/api/v1/test/ping"},
		{http.MethodDelete, "/api/v1/test/ping"},
		{http.MethodGet, "/api/v1/test/nested"},
	} {
		w := serve(engine, tc.method, tc.path, nil)
		assert.Equal(t, http.StatusOK, w.Code, tc.method+" "+tc.path)
		assert.Equal(t, "pong", w.Body.String())
	}
	assert.Equal(t, 4, hits, "API middleware runs on every route")

	w := serve(engine, http.MethodGet, "/test/ping", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDomainGroup_Use(t *testing.T) {
	engine := gin.New()
	group := NewDomainGroup("guarded", "/guarded").Use(func(c *gin.Context) {
		c.AbortWithStatus(http.StatusTeapot)
	})
	group.GET("", pong)
	NewRouter(engine).Register(group, NewDomainGroup("open", "/open").GET("", pong)).Setup()

	assert.Equal(t, http.StatusTeapot, serve(engine, http.MethodGet, "/api/v1/guarded", nil).Code)
	assert.Equal(t, http.StatusOK, serve(engine, http.MethodGet, "/api/v1/open", nil).Code)
	assert.Equal(t, "guarded", group.Name())
}

func TestRoutes_SkipsMissingHandlers(t *testing.T) {
	assert.Empty(t, Routes(Handlers{}))
	groups := Routes(Handlers{Caisse: &handler.CaisseHandler{}, Documents: &handler.DocumentHandler{}})
	require.Len(t, groups, 2)
	assert.Equal(t, "caisse", groups[0].(*DomainGroup).Name())
}

func newTestEngine(t *testing.T, httpCfg config.HTTPConfig) *gin.Engine {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	engine, err := NewEngine(ctx, EngineConfig{
		ServiceName: "procurement-test",
		HTTP:        httpCfg,
		Health:      handler.NewHealthHandler(nil),
	}, Handlers{Documents: &handler.DocumentHandler{}})
	require.NoError(t, err)
	return engine
}

func TestNewEngine(t *testing.T) {
	engine := newTestEngine(t, config.HTTPConfig{})

	w := serve(engine, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = serve(engine, http.MethodGet, "/nowhere", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "ROUTE_NOT_FOUND")

	w = serve(engine, http.MethodGet, "/api/v1/documents/download-url", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "ACTOR_REQUIRED")

	w = serve(engine, http.MethodGet, "/api/v1/documents/download-url", map[string]string{"X-Actor-ID": "nope"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(engine, http.MethodGet, "/api/v1/documents/download-url", map[string]string{"X-Actor-ID": uuid.NewString()})
	assert.Equal(t, http.StatusBadRequest, w.Code, "actor accepted, missing key rejected by the handler")
}

func TestNewEngine_RateLimit(t *testing.T) {
	engine := newTestEngine(t, config.HTTPConfig{RateLimit: 2, RateLimitWindow: time.Minute})
	actor := map[string]string{"X-Actor-ID": uuid.NewString()}

	for range 2 {
		w := serve(engine, http.MethodGet, "/api/v1/documents/download-url", actor)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	}
	w := serve(engine, http.MethodGet, "/api/v1/documents/download-url", actor)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "RATE_LIMITED")

	other := map[string]string{"X-Actor-ID": uuid.NewString()}
	assert.Equal(t, http.StatusBadRequest, serve(engine, http.MethodGet, "/api/v1/documents/download-url", other).Code)

	assert.Equal(t, http.StatusOK, serve(engine, http.MethodGet, "/health", nil).Code, "health is not rate limited")
}

func TestNewEngine_TrustedProxies(t *testing.T) {
	_, err := NewEngine(context.Background(), EngineConfig{HTTP: config.HTTPConfig{TrustedProxies: []string{"not-an-ip"}}}, Handlers{})
	assert.Error(t, err)
}

func TestNewEngine_Swagger(t *testing.T) {
	newEngine := func(cfg config.SwaggerConfig) *gin.Engine {
		engine, err := NewEngine(context.Background(), EngineConfig{Swagger: cfg}, Handlers{})
		require.NoError(t, err)
		return engine
	}

	t.Run("disabled", func(t *testing.T) {
		w := serve(newEngine(config.SwaggerConfig{}), http.MethodGet, "/swagger/index.html", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), "ROUTE_NOT_FOUND")
	})

	t.Run("serves the UI and the API description", func(t *testing.T) {
		engine := newEngine(config.SwaggerConfig{Enabled: true})

		w := serve(engine, http.MethodGet, "/swagger/index.html", nil)
		assert.Equal(t, http.StatusOK, w.Code)

		w = serve(engine, http.MethodGet, "/swagger/doc.json", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "/caisse/adjustments")
		assert.Contains(t, w.Body.String(), "X-Actor-ID")
	})

	t.Run("restricted to other networks", func(t *testing.T) {
		w := serve(newEngine(config.SwaggerConfig{Enabled: true, AllowedIPs: []string{"10.0.0.0/8"}}), http.MethodGet, "/swagger/index.html", nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}
