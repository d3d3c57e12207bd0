package notification

import (
	"log/slog"
	"net/http"

	"smartmsg/internal/common"

	"github.com/gin-gonic/gin"
)

// Handler handles HTTP requests for the dispatch domain.
type Handler struct {
	service *Service
}

// NewHandler creates a new dispatch handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Send handles POST /api/v1/send
// Enqueues a dispatch for async processing and returns 202 Accepted.
func (h *Handler) Send(c *gin.Context) {
	var req SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Error(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	resp, err := h.service.Enqueue(c.Request.Context(), &req)
	if err != nil {
		slog.Error("enqueue dispatch failed",
			"error", err,
			"chat_id", req.ChatID,
			"smart", req.Smart != nil,
		)
		common.HandleError(c, err)
		return
	}

	common.Success(c, http.StatusAccepted, resp)
}

// GetDispatch handles GET /api/v1/dispatches/:id
func (h *Handler) GetDispatch(c *gin.Context) {
	id := c.Param("id")

	dispatchLog, err := h.service.GetDispatch(c.Request.Context(), id)
	if err != nil {
		common.HandleError(c, err)
		return
	}

	common.Success(c, http.StatusOK, dispatchLog)
}

// ListDispatches handles GET /api/v1/dispatches
func (h *Handler) ListDispatches(c *gin.Context) {
	var filter ListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		common.Error(c, http.StatusBadRequest, "invalid query parameters: "+err.Error())
		return
	}

	resp, err := h.service.ListDispatches(c.Request.Context(), filter)
	if err != nil {
		common.HandleError(c, err)
		return
	}

	common.Success(c, http.StatusOK, resp)
}

// RegisterRoutes registers dispatch routes to the given router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/send", h.Send)
	rg.GET("/dispatches", h.ListDispatches)
	rg.GET("/dispatches/:id", h.GetDispatch)
}
