package handler

import (
	"github.com/gin-gonic/gin"
	procapp "github.com/procurement/backend/internal/application/procurement"
)

// PaymentRequestHandler handles payment request endpoints
type PaymentRequestHandler struct {
	BaseHandler
	service *procapp.PaymentRequestService
}

// NewPaymentRequestHandler creates a new PaymentRequestHandler
func NewPaymentRequestHandler(service *procapp.PaymentRequestService) *PaymentRequestHandler {
	return &PaymentRequestHandler{service: service}
}

// Create handles POST /payment-requests
// @Summary      Create a payment request
// @Tags         payment-requests
// @Accept       json
// @Produce      json
// @Param        request body procurement.CreatePaymentRequestRequest true "Payment request creation request"
// @Success      201 {object} dto.Response{data=procurement.PaymentRequestResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     ActorID
// @Router       /payment-requests [post]
func (h *PaymentRequestHandler) Create(c *gin.Context) {
	var req procapp.CreatePaymentRequestRequest
	if !h.bindJSON(c, &req) {
		return
	}
	pr, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, pr)
}

// GetByID handles GET /payment-requests/:id
// @Summary      Get a payment request by ID
// @Tags         payment-requests
// @Produce      json
// @Param        id path string true "Resource ID" format(uuid)
// @Success      200 {object} dto.Response{data=procurement.PaymentRequestResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     ActorID
// @Router       /payment-requests/{id} [get]
func (h *PaymentRequestHandler) GetByID(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	pr, err := h.service.GetByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, pr)
}

// GetByNumber handles GET /payment-requests/by-number?number=PAY/2026/10/0001
// @Summary      Get a payment request by number
// @Tags         payment-requests
// @Produce      json
// @Param        number query string true "Human readable number"
// @Success      200 {object} dto.Response{data=procurement.PaymentRequestResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     ActorID
// @Router       /payment-requests/by-number [get]
func (h *PaymentRequestHandler) GetByNumber(c *gin.Context) {
	number := c.Query("number")
	if number == "" {
		h.BadRequest(c, "number is required")
		return
	}
	pr, err := h.service.GetByNumber(c.Request.Context(), number)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, pr)
}

// List handles GET /payment-requests
// @Summary      List payment requests
// @Tags         payment-requests
// @Produce      json
// @Param        status query string false "Status filter"
// @Param        requester_id query string false "Requester filter" format(uuid)
// @Param        order_reference query string false "Order reference filter"
// @Param        search query string false "Number or reason search"
// @Param        include_deleted query boolean false "Include soft deleted requests"
// @Param        page query integer false "Page number"
// @Param        page_size query integer false "Page size (max 100)"
// @Success      200 {object} dto.Response{data=[]procurement.PaymentRequestResponse,meta=dto.Meta}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     ActorID
// @Router       /payment-requests [get]
func (h *PaymentRequestHandler) List(c *gin.Context) {
	var filter procapp.PaymentRequestListFilter
	if !h.bindQuery(c, &filter) {
		return
	}
	page(&filter.Page, &filter.PageSize)

	requests, total, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessList(c, requests, total, filter.Page, filter.PageSize)
}

// Authorize handles POST /payment-requests/:id/authorize
// @Summary      Authorize a payment request (admin)
// @Tags         payment-requests
// @Produce      json
// @Param        X-Actor-Role header string false "admin unlocks the admin gates"
// @Param        id path string true "Resource ID" format(uuid)
// @Success      200 {object} dto.Response{data=procurement.PaymentRequestResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     ActorID
// @Router       /payment-requests/{id}/authorize [post]
func (h *PaymentRequestHandler) Authorize(c *gin.Context) {
	transition(&h.BaseHandler, c, h.service.Authorize)
}

// Validate handles POST /payment-requests/:id/validate
// @Summary      Validate a payment request (admin)
// @Tags         payment-requests
// @Produce      json
// @Param        X-Actor-Role header string false "admin unlocks the admin gates"
// @Param        id path string true "Resource ID" format(uuid)
// @Success      200 {object} dto.Response{data=procurement.PaymentRequestResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     ActorID
// @Router       /payment-requests/{id}/validate [post]
func (h *PaymentRequestHandler) Validate(c *gin.Context) {
	transition(&h.BaseHandler, c, h.service.Validate)
}

// Reject handles POST /payment-requests/:id/reject
// @Summary      Reject a payment request (admin)
// @Tags         payment-requests
// @Accept       json
// @Produce      json
// @Param        X-Actor-Role header string false "admin unlocks the admin gates"
// @Param        id path string true "Resource ID" format(uuid)
// @Param        request body procurement.ReasonRequest false "Reason"
// @Success      200 {object} dto.Response{data=procurement.PaymentRequestResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     ActorID
// @Router       /payment-requests/{id}/reject [post]
func (h *PaymentRequestHandler) Reject(c *gin.Context) {
	transitionWithReason(&h.BaseHandler, c, h.service.Reject)
}

// Cancel handles POST /payment-requests/:id/cancel
// @Summary      Cancel a payment request
// @Tags         payment-requests
// @Accept       json
// @Produce      json
// @Param        X-Actor-Role header string false "admin unlocks the admin gates"
// @Param        id path string true "Resource ID" format(uuid)
// @Param        request body procurement.ReasonRequest false "Reason"
// @Success      200 {object} dto.Response{data=procurement.PaymentRequestResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     ActorID
// @Router       /payment-requests/{id}/cancel [post]
func (h *PaymentRequestHandler) Cancel(c *gin.Context) {
	transitionWithReason(&h.BaseHandler, c, h.service.Cancel)
}

// Delete handles POST /payment-requests/:id/delete
// @Summary      Soft delete a payment request (admin)
// @Tags         payment-requests
// @Accept       json
// @Produce      json
// @Param        X-Actor-Role header string false "admin unlocks the admin gates"
// @Param        id path string true "Resource ID" format(uuid)
// @Param        request body procurement.ReasonRequest false "Reason"
// @Success      200 {object} dto.Response{data=procurement.PaymentRequestResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     ActorID
// @Router       /payment-requests/{id}/delete [post]
func (h *PaymentRequestHandler) Delete(c *gin.Context) {
	transitionWithReason(&h.BaseHandler, c, h.service.Delete)
}

// SubmitPayment handles POST /payment-requests/:id/payments
// @Summary      Submit a payment against a payment request
// @Tags         payment-requests
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
// @Router       /payment-requests/{id}/payments [post]
func (h *PaymentRequestHandler) SubmitPayment(c *gin.Context) {
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

// CorrectPayment handles POST /payment-requests/:id/payments/:paymentId/correct
// @Summary      Correct or void a payment request payment (admin)
// @Tags         payment-requests
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
// @Router       /payment-requests/{id}/payments/{paymentId}/correct [post]
func (h *PaymentRequestHandler) CorrectPayment(c *gin.Context) {
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
