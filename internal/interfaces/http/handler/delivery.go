package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/procurement/backend/internal/application/event"
	"github.com/procurement/backend/internal/domain/shared"
)

// DeliveryHandler exposes the outbox dead letters to operators
type DeliveryHandler struct {
	BaseHandler
	service *event.DeliveryService
}

// NewDeliveryHandler creates a new DeliveryHandler
func NewDeliveryHandler(service *event.DeliveryService) *DeliveryHandler {
	return &DeliveryHandler{service: service}
}

type pageQuery struct {
	Page     int `form:"page"`
	PageSize int `form:"page_size"`
}

// DeadLetters handles GET /deliveries/dead
// @Summary      List undeliverable events
// @Tags         deliveries
// @Produce      json
// @Param        page query integer false "Page number"
// @Param        page_size query integer false "Page size (max 100)"
// @Success      200 {object} dto.Response{data=[]event.DeliveryEntryResponse,meta=dto.Meta}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     ActorID
// @Router       /deliveries/dead [get]
func (h *DeliveryHandler) DeadLetters(c *gin.Context) {
	var q pageQuery
	if !h.bindQuery(c, &q) {
		return
	}
	page(&q.Page, &q.PageSize)

	filter := shared.DefaultFilter()
	filter.Page, filter.PageSize = q.Page, q.PageSize
	entries, total, err := h.service.DeadLetters(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessList(c, entries, total, q.Page, q.PageSize)
}

// Stats handles GET /deliveries/stats
// @Summary      Event delivery counters
// @Tags         deliveries
// @Produce      json
// @Success      200 {object} dto.Response{data=event.DeliveryStatsResponse}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     ActorID
// @Router       /deliveries/stats [get]
func (h *DeliveryHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, stats)
}

// Redeliver handles POST /deliveries/:id/redeliver
// @Summary      Requeue one dead event (admin)
// @Tags         deliveries
// @Produce      json
// @Param        X-Actor-Role header string false "admin unlocks the admin gates"
// @Param        id path string true "Resource ID" format(uuid)
// @Success      200 {object} dto.Response{data=event.DeliveryEntryResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     ActorID
// @Router       /deliveries/{id}/redeliver [post]
func (h *DeliveryHandler) Redeliver(c *gin.Context) {
	transition(&h.BaseHandler, c, h.service.Redeliver)
}

// RedeliverAll handles POST /deliveries/redeliver
// @Summary      Requeue every dead event (admin)
// @Tags         deliveries
// @Produce      json
// @Param        X-Actor-Role header string false "admin unlocks the admin gates"
// @Success      200 {object} dto.Response{data=object}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     ActorID
// @Router       /deliveries/redeliver [post]
func (h *DeliveryHandler) RedeliverAll(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	count, err := h.service.RedeliverAll(c.Request.Context(), actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, gin.H{"requeued": count})
}
