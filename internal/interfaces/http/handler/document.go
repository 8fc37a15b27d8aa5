package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/procurement/backend/internal/application/document"
)

// DocumentHandler issues presigned URLs for payment proofs
type DocumentHandler struct {
	BaseHandler
	service *document.Service
}

// NewDocumentHandler creates a new DocumentHandler
func NewDocumentHandler(service *document.Service) *DocumentHandler {
	return &DocumentHandler{service: service}
}

// UploadURL handles POST /documents/upload-url
// @Summary      Presigned upload URL for a proof
// @Tags         documents
// @Accept       json
// @Produce      json
// @Param        X-Actor-Role header string false "admin unlocks the admin gates"
// @Param        request body document.UploadURLRequest true "Upload target"
// @Success      201 {object} dto.Response{data=document.URLResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      503 {object} dto.Response{error=dto.ErrorInfo}
// @Security     ActorID
// @Router       /documents/upload-url [post]
func (h *DocumentHandler) UploadURL(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req document.UploadURLRequest
	if !h.bindJSON(c, &req) {
		return
	}
	resp, err := h.service.RequestUploadURL(c.Request.Context(), actor, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// DownloadURL handles GET /documents/download-url?key=proofs/...
// @Summary      Presigned download URL for a proof
// @Tags         documents
// @Produce      json
// @Param        key query string true "Storage key"
// @Success      200 {object} dto.Response{data=document.URLResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      503 {object} dto.Response{error=dto.ErrorInfo}
// @Security     ActorID
// @Router       /documents/download-url [get]
func (h *DocumentHandler) DownloadURL(c *gin.Context) {
	key := c.Query("key")
	if key == "" {
		h.BadRequest(c, "key is required")
		return
	}
	resp, err := h.service.DownloadURL(c.Request.Context(), key)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}
