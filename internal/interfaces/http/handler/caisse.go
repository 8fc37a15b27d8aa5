package handler

import (
	"github.com/gin-gonic/gin"
	caisseapp "github.com/procurement/backend/internal/application/caisse"
)

// CaisseHandler handles the cash register and funding request endpoints
type CaisseHandler struct {
	BaseHandler
	service *caisseapp.Service
}

// NewCaisseHandler creates a new CaisseHandler
func NewCaisseHandler(service *caisseapp.Service) *CaisseHandler {
	return &CaisseHandler{service: service}
}

// Balances handles GET /caisse/balances. With ?currency= it returns that
// single balance.
// @Summary      Register balances
// @Tags         caisse
// @Produce      json
// @Param        currency query string false "Single currency"
// @Success      200 {object} dto.Response{data=[]caisse.BalanceResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     ActorID
// @Router       /caisse/balances [get]
func (h *CaisseHandler) Balances(c *gin.Context) {
	if code := c.Query("currency"); code != "" {
		balance, err := h.service.Balance(c.Request.Context(), code)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		h.Success(c, balance)
		return
	}
	balances, err := h.service.Balances(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, balances)
}

// Transactions handles GET /caisse/transactions
// @Summary      Register transaction log
// @Tags         caisse
// @Produce      json
// @Param        currency query string false "Currency filter"
// @Param        type query string false "Transaction type filter"
// @Param        source_type query string false "Source entity type"
// @Param        source_id query string false "Source entity ID" format(uuid)
// @Param        page query integer false "Page number"
// @Param        page_size query integer false "Page size (max 100)"
// @Success      200 {object} dto.Response{data=[]caisse.TransactionResponse,meta=dto.Meta}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     ActorID
// @Router       /caisse/transactions [get]
func (h *CaisseHandler) Transactions(c *gin.Context) {
	var filter caisseapp.TransactionListFilter
	if !h.bindQuery(c, &filter) {
		return
	}
	page(&filter.Page, &filter.PageSize)

	txs, total, err := h.service.Transactions(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessList(c, txs, total, filter.Page, filter.PageSize)
}

// Reconcile handles GET /caisse/reconcile
// @Summary      Compare balances with the transaction log
// @Tags         caisse
// @Produce      json
// @Success      200 {object} dto.Response{data=caisse.ReconcileResponse}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     ActorID
// @Router       /caisse/reconcile [get]
func (h *CaisseHandler) Reconcile(c *gin.Context) {
	report, err := h.service.Reconcile(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, report)
}

// Adjust handles POST /caisse/adjustments
// @Summary      Adjust a register balance (admin)
// @Tags         caisse
// @Accept       json
// @Produce      json
// @Param        X-Actor-Role header string false "admin unlocks the admin gates"
// @Param        request body caisse.AdjustBalanceRequest true "Adjustment"
// @Success      201 {object} dto.Response{data=caisse.TransactionResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     ActorID
// @Router       /caisse/adjustments [post]
func (h *CaisseHandler) Adjust(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req caisseapp.AdjustBalanceRequest
	if !h.bindJSON(c, &req) {
		return
	}
	tx, err := h.service.AdminAdjust(c.Request.Context(), actor, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, tx)
}

// CreateFundingRequest handles POST /caisse/funding-requests
// @Summary      Create a funding request
// @Tags         caisse
// @Accept       json
// @Produce      json
// @Param        request body caisse.CreateFundingRequestRequest true "Funding request"
// @Success      201 {object} dto.Response{data=caisse.FundingRequestResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     ActorID
// @Router       /caisse/funding-requests [post]
func (h *CaisseHandler) CreateFundingRequest(c *gin.Context) {
	var req caisseapp.CreateFundingRequestRequest
	if !h.bindJSON(c, &req) {
		return
	}
	fr, err := h.service.CreateFundingRequest(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, fr)
}

// GetFundingRequest handles GET /caisse/funding-requests/:id
// @Summary      Get a funding request by ID
// @Tags         caisse
// @Produce      json
// @Param        id path string true "Resource ID" format(uuid)
// @Success      200 {object} dto.Response{data=caisse.FundingRequestResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     ActorID
// @Router       /caisse/funding-requests/{id} [get]
func (h *CaisseHandler) GetFundingRequest(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	fr, err := h.service.GetFundingRequest(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, fr)
}

// GetFundingRequestByNumber handles GET /caisse/funding-requests/by-number?number=FUND/2026/10/0001
// @Summary      Get a funding request by number
// @Tags         caisse
// @Produce      json
// @Param        number query string true "Human readable number"
// @Success      200 {object} dto.Response{data=caisse.FundingRequestResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     ActorID
// @Router       /caisse/funding-requests/by-number [get]
func (h *CaisseHandler) GetFundingRequestByNumber(c *gin.Context) {
	number := c.Query("number")
	if number == "" {
		h.BadRequest(c, "number is required")
		return
	}
	fr, err := h.service.GetFundingRequestByNumber(c.Request.Context(), number)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, fr)
}

// ListFundingRequests handles GET /caisse/funding-requests
// @Summary      List funding requests
// @Tags         caisse
// @Produce      json
// @Param        stage query string false "Stage filter"
// @Param        requester_id query string false "Requester filter" format(uuid)
// @Param        search query string false "Number or reason search"
// @Param        page query integer false "Page number"
// @Param        page_size query integer false "Page size (max 100)"
// @Success      200 {object} dto.Response{data=[]caisse.FundingRequestResponse,meta=dto.Meta}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     ActorID
// @Router       /caisse/funding-requests [get]
func (h *CaisseHandler) ListFundingRequests(c *gin.Context) {
	var filter caisseapp.FundingRequestListFilter
	if !h.bindQuery(c, &filter) {
		return
	}
	page(&filter.Page, &filter.PageSize)

	requests, total, err := h.service.ListFundingRequests(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessList(c, requests, total, filter.Page, filter.PageSize)
}

// TransitionFundingRequest handles POST /caisse/funding-requests/:id/transition
// @Summary      Move a funding request to its next stage
// @Tags         caisse
// @Accept       json
// @Produce      json
// @Param        X-Actor-Role header string false "admin unlocks the admin gates"
// @Param        id path string true "Resource ID" format(uuid)
// @Param        request body caisse.TransitionRequest true "Transition"
// @Success      200 {object} dto.Response{data=caisse.TransitionResult}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     ActorID
// @Router       /caisse/funding-requests/{id}/transition [post]
func (h *CaisseHandler) TransitionFundingRequest(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req caisseapp.TransitionRequest
	if !h.bindJSON(c, &req) {
		return
	}
	result, err := h.service.Transition(c.Request.Context(), id, actor, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}
