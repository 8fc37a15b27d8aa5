// Package handler maps the procurement API onto the application services.
package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	procapp "github.com/procurement/backend/internal/application/procurement"
	"github.com/procurement/backend/internal/domain/shared"
	"github.com/procurement/backend/internal/infrastructure/logger"
	"github.com/procurement/backend/internal/interfaces/http/dto"
	"github.com/procurement/backend/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

func getRequestID(c *gin.Context) string {
	return c.GetString(logger.GinRequestIDKey)
}

// Success sends a 200 response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// Created sends a 201 response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// SuccessList sends one page of items with its pagination meta
func (h *BaseHandler) SuccessList(c *gin.Context, items any, total int64, page, pageSize int) {
	c.JSON(http.StatusOK, dto.NewListResponse(items, total, page, pageSize))
}

// Fail sends an error response; the status follows the code
func (h *BaseHandler) Fail(c *gin.Context, code, message string) {
	c.Set(middleware.ErrorCodeKey, code)
	c.JSON(dto.HTTPStatus(code), dto.NewErrorResponse(code, message, getRequestID(c)))
}

// BadRequest sends a 400 response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Fail(c, dto.ErrCodeBadRequest, message)
}

// HandleError answers with the domain error code, or a 500 for anything else.
// Internal failures are logged and never leak their message.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		h.Fail(c, domainErr.Code, domainErr.Message)
		return
	}
	_ = c.Error(err)
	logger.FromGin(c).Error("request failed", zap.Error(err))
	h.Fail(c, dto.ErrCodeInternal, "An unexpected error occurred")
}

// actor returns the acting user. Routes are mounted behind middleware.Actor,
// so a missing actor is a wiring error answered with 401.
func (h *BaseHandler) actor(c *gin.Context) (shared.Actor, bool) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		h.Fail(c, dto.ErrCodeActorRequired, middleware.HeaderActorID+" header is required")
	}
	return actor, ok
}

// pathID parses a UUID path parameter
func (h *BaseHandler) pathID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		h.BadRequest(c, "Invalid "+name+" format")
		return uuid.Nil, false
	}
	return id, true
}

// bindJSON binds and validates the body, answering 400 on failure
func (h *BaseHandler) bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.Set(middleware.ErrorCodeKey, dto.ErrCodeValidation)
		middleware.HandleValidationError(c, err)
		return false
	}
	return true
}

// bindOptionalJSON binds the body when one was sent
func (h *BaseHandler) bindOptionalJSON(c *gin.Context, req any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	return h.bindJSON(c, req)
}

// bindQuery binds and validates query parameters
func (h *BaseHandler) bindQuery(c *gin.Context, req any) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		c.Set(middleware.ErrorCodeKey, dto.ErrCodeValidation)
		middleware.HandleValidationError(c, err)
		return false
	}
	return true
}

// page fills pagination defaults and caps the page size
func page(p, size *int) {
	if *p < 1 {
		*p = 1
	}
	if *size < 1 {
		*size = 20
	}
	*size = min(*size, 100)
}

// transition runs an actor driven state change on the :id resource
func transition[T any](h *BaseHandler, c *gin.Context, fn func(context.Context, uuid.UUID, shared.Actor) (T, error)) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	resp, err := fn(c.Request.Context(), id, actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// transitionWithReason is transition for changes that record a reason
func transitionWithReason[T any](h *BaseHandler, c *gin.Context, fn func(context.Context, uuid.UUID, shared.Actor, string) (T, error)) {
	var req procapp.ReasonRequest
	if !h.bindOptionalJSON(c, &req) {
		return
	}
	transition(h, c, func(ctx context.Context, id uuid.UUID, actor shared.Actor) (T, error) {
		return fn(ctx, id, actor, req.Reason)
	})
}
