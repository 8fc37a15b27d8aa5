package router

import (
	"github.com/procurement/backend/internal/interfaces/http/handler"
)

// Handlers are the API handlers mounted by Routes. A nil handler leaves its
// routes out.
type Handlers struct {
	Orders          *handler.OrderHandler
	PaymentRequests *handler.PaymentRequestHandler
	Caisse          *handler.CaisseHandler
	Documents       *handler.DocumentHandler
	Deliveries      *handler.DeliveryHandler
}

// Routes builds the domain groups of the API
func Routes(h Handlers) []RouteRegistrar {
	var groups []RouteRegistrar

	if o := h.Orders; o != nil {
		g := NewDomainGroup("orders", "/orders")
		g.POST("", o.Create).
			GET("", o.List).
			GET("/by-number", o.GetByNumber).
			GET("/:id", o.GetByID).
			POST("/:id/proformas", o.AttachProforma).
			POST("/:id/proformas/:index/validate", o.ValidateProforma).
			DELETE("/:id/proformas/:index", o.RemoveProforma).
			POST("/:id/authorize", o.Authorize).
			POST("/:id/validate", o.Validate).
			POST("/:id/reject", o.Reject).
			POST("/:id/delete", o.Delete).
			POST("/:id/payments", o.SubmitPayment).
			POST("/:id/payments/:paymentId/correct", o.CorrectPayment)
		groups = append(groups, g)
	}

	if p := h.PaymentRequests; p != nil {
		g := NewDomainGroup("payment-requests", "/payment-requests")
		g.POST("", p.Create).
			GET("", p.List).
			GET("/by-number", p.GetByNumber).
			GET("/:id", p.GetByID).
			POST("/:id/authorize", p.Authorize).
			POST("/:id/validate", p.Validate).
			POST("/:id/reject", p.Reject).
			POST("/:id/cancel", p.Cancel).
			POST("/:id/delete", p.Delete).
			POST("/:id/payments", p.SubmitPayment).
			POST("/:id/payments/:paymentId/correct", p.CorrectPayment)
		groups = append(groups, g)
	}

	if c := h.Caisse; c != nil {
		g := NewDomainGroup("caisse", "/caisse")
		g.GET("/balances", c.Balances).
			GET("/transactions", c.Transactions).
			GET("/reconcile", c.Reconcile).
			POST("/adjustments", c.Adjust)
		g.Group("funding-requests", "/funding-requests").
			POST("", c.CreateFundingRequest).
			GET("", c.ListFundingRequests).
			GET("/by-number", c.GetFundingRequestByNumber).
			GET("/:id", c.GetFundingRequest).
			POST("/:id/transition", c.TransitionFundingRequest)
		groups = append(groups, g)
	}

	if d := h.Documents; d != nil {
		g := NewDomainGroup("documents", "/documents")
		g.POST("/upload-url", d.UploadURL).
			GET("/download-url", d.DownloadURL)
		groups = append(groups, g)
	}

	if d := h.Deliveries; d != nil {
		g := NewDomainGroup("deliveries", "/deliveries")
		g.GET("/dead", d.DeadLetters).
			GET("/stats", d.Stats).
			POST("/redeliver", d.RedeliverAll).
			POST("/:id/redeliver", d.Redeliver)
		groups = append(groups, g)
	}

	return groups
}
