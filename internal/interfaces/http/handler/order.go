package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	procapp "github.com/procurement/backend/internal/application/procurement"
)

// OrderHandler handles purchase order endpoints
type OrderHandler struct {
	BaseHandler
	service *procapp.OrderService
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(service *procapp.OrderService) *OrderHandler {
	return &OrderHandler{service: service}
}

// Create handles POST /orders
// @Summary      Create a purchase order
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        request body procurement.CreateOrderRequest true "Order creation request"
// @Success      201 {object} dto.Response{data=procurement.OrderResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     ActorID
// @Router       /orders [post]
func (h *OrderHandler) Create(c *gin.Context) {
	var req procapp.CreateOrderRequest
	if !h.bindJSON(c, &req) {
		return
	}
	order, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, order)
}

// GetByID handles GET /orders/:id
// @Summary      Get a purchase order by ID
// @Tags         orders
// @Produce      json
// @Param        id path string true "Resource ID" format(uuid)
// @Success      200 {object} dto.Response{data=procurement.OrderResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     ActorID
// @Router       /orders/{id} [get]
func (h *OrderHandler) GetByID(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	order, err := h.service.GetByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, order)
}

// GetByNumber handles GET /orders/by-number?number=CMD/2026/10/0001
// @Summary      Get a purchase order by number
// @Tags         orders
// @Produce      json
// @Param        number query string true "Human readable number"
// @Success      200 {object} dto.Response{data=procurement.OrderResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     ActorID
// @Router       /orders/by-number [get]
func (h *OrderHandler) GetByNumber(c *gin.Context) {
	number := c.Query("number")
	if number == "" {
		h.BadRequest(c, "number is required")
		return
	}
	order, err := h.service.GetByNumber(c.Request.Context(), number)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, order)
}

// List handles GET /orders
// @Summary      List purchase orders
// @Tags         orders
// @Produce      json
// @Param        status query string false "Status filter"
// @Param        requester_id query string false "Requester filter" format(uuid)
// @Param        team query string false "Team filter"
// @Param        search query string false "Number or team search"
// @Param        include_deleted query boolean false "Include soft deleted orders"
// @Param        page query integer false "Page number"
// @Param        page_size query integer false "Page size (max 100)"
// @Success      200 {object} dto.Response{data=[]procurement.OrderResponse,meta=dto.Meta}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     ActorID
// @Router       /orders [get]
func (h *OrderHandler) List(c *gin.Context) {
	var filter procapp.OrderListFilter
	if !h.bindQuery(c, &filter) {
		return
	}
	page(&filter.Page, &filter.PageSize)

	orders, total, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessList(c, orders, total, filter.Page, filter.PageSize)
}

// AttachProforma handles POST /orders/:id/proformas
// @Summary      Attach a supplier proforma
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        X-Actor-Role header string false "admin unlocks the admin gates"
// @Param        id path string true "Resource ID" format(uuid)
// @Param        request body procurement.AttachProformaRequest true "Proforma"
// @Success      201 {object} dto.Response{data=procurement.OrderResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     ActorID
// @Router       /orders/{id}/proformas [post]
func (h *OrderHandler) AttachProforma(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req procapp.AttachProformaRequest
	if !h.bindJSON(c, &req) {
		return
	}
	order, err := h.service.AttachProforma(c.Request.Context(), id, actor, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, order)
}

// ValidateProforma handles POST /orders/:id/proformas/:index/validate
// @Summary      Validate a proforma (admin)
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        X-Actor-Role header string false "admin unlocks the admin gates"
// @Param        id path string true "Resource ID" format(uuid)
// @Param        index path integer true "Proforma position"
// @Param        request body procurement.ValidateProformaRequest false "Validation comment"
// @Success      200 {object} dto.Response{data=procurement.OrderResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     ActorID
// @Router       /orders/{id}/proformas/{index}/validate [post]
func (h *OrderHandler) ValidateProforma(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	index, ok := h.proformaIndex(c)
	if !ok {
		return
	}
	var req procapp.ValidateProformaRequest
	if !h.bindOptionalJSON(c, &req) {
		return
	}
	req.Index = index

	order, err := h.service.ValidateProforma(c.Request.Context(), id, actor, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, order)
}

// RemoveProforma handles DELETE /orders/:id/proformas/:index
// @Summary      Remove an unvalidated proforma
// @Tags         orders
// @Produce      json
// @Param        X-Actor-Role header string false "admin unlocks the admin gates"
// @Param        id path string true "Resource ID" format(uuid)
// @Param        index path integer true "Proforma position"
// @Success      200 {object} dto.Response{data=procurement.OrderResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     ActorID
// @Router       /orders/{id}/proformas/{index} [delete]
func (h *OrderHandler) RemoveProforma(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	index, ok := h.proformaIndex(c)
	if !ok {
		return
	}
	order, err := h.service.RemoveProforma(c.Request.Context(), id, actor, index)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, order)
}

// proformaIndex parses the :index parameter. Range checks stay in the domain
// so an out of range index answers INVALID_INDEX.
func (h *OrderHandler) proformaIndex(c *gin.Context) (int, bool) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		h.BadRequest(c, "Invalid index format")
		return 0, false
	}
	return index, true
}

// Authorize handles POST /orders/:id/authorize
// @Summary      Authorize a purchase order (admin)
// @Tags         orders
// @Produce      json
// @Param        X-Actor-Role header string false "admin unlocks the admin gates"
// @Param        id path string true "Resource ID" format(uuid)
// @Success      200 {object} dto.Response{data=procurement.OrderResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     ActorID
// @Router       /orders/{id}/authorize [post]
func (h *OrderHandler) Authorize(c *gin.Context) {
	transition(&h.BaseHandler, c, h.service.Authorize)
}

// Validate handles POST /orders/:id/validate
// @Summary      Validate a purchase order (admin)
// @Tags         orders
// @Produce      json
// @Param        X-Actor-Role header string false "admin unlocks the admin gates"
// @Param        id path string true "Resource ID" format(uuid)
// @Success      200 {object} dto.Response{data=procurement.OrderResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     ActorID
// @Router       /orders/{id}/validate [post]
func (h *OrderHandler) Validate(c *gin.Context) {
	transition(&h.BaseHandler, c, h.service.Validate)
}

// Reject handles POST /orders/:id/reject
// @Summary      Reject a purchase order (admin)
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        X-Actor-Role header string false "admin unlocks the admin gates"
// @Param        id path string true "Resource ID" format(uuid)
// @Param        request body procurement.ReasonRequest false "Reason"
// @Success      200 {object} dto.Response{data=procurement.OrderResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     ActorID
// @Router       /orders/{id}/reject [post]
func (h *OrderHandler) Reject(c *gin.Context) {
	transitionWithReason(&h.BaseHandler, c, h.service.Reject)
}

// Delete handles POST /orders/:id/delete. Orders are soft deleted; the record
// stays readable with its deletion metadata.
// @Summary      Soft delete a purchase order (admin)
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        X-Actor-Role header string false "admin unlocks the admin gates"
// @Param        id path string true "Resource ID" format(uuid)
// @Param        request body procurement.ReasonRequest false "Reason"
// @Success      200 {object} dto.Response{data=procurement.OrderResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     ActorID
// @Router       /orders/{id}/delete [post]
func (h *OrderHandler) Delete(c *gin.Context) {
	transitionWithReason(&h.BaseHandler, c, h.service.Delete)
}

// SubmitPayment handles POST /orders/:id/payments
// @Summary      Submit a payment against an order
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        X-Actor-Role header string false "admin unlocks the admin gates"
// @Param        id path string true "Resource ID" format(uuid)
// @Param        request body procurement.SubmitPaymentRequest true "Payment"
// @Success      201 {object} dto.Response{data=procurement.PaymentResult}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     ActorID
// @Router       /orders/{id}/payments [post]
func (h *OrderHandler) SubmitPayment(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req procapp.SubmitPaymentRequest
	if !h.bindJSON(c, &req) {
		return
	}
	result, err := h.service.SubmitPayment(c.Request.Context(), id, actor, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, result)
}

// CorrectPayment handles POST /orders/:id/payments/:paymentId/correct
// @Summary      Correct or void an order payment (admin)
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        X-Actor-Role header string false "admin unlocks the admin gates"
// @Param        id path string true "Resource ID" format(uuid)
// @Param        paymentId path string true "Payment ID" format(uuid)
// @Param        request body procurement.CorrectPaymentRequest true "Correction"
// @Success      200 {object} dto.Response{data=procurement.PaymentResult}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     ActorID
// @Router       /orders/{id}/payments/{paymentId}/correct [post]
func (h *OrderHandler) CorrectPayment(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	paymentID, ok := h.pathID(c, "paymentId")
	if !ok {
		return
	}
	var req procapp.CorrectPaymentRequest
	if !h.bindJSON(c, &req) {
		return
	}
	result, err := h.service.CorrectPayment(c.Request.Context(), id, paymentID, actor, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}
