package httpHandler

import (
	"net/http"

	"relay-server/entities"
	"relay-server/usecases"

	"github.com/gin-gonic/gin"
)

type DebugHandler struct {
	statusUC *usecases.StatusUseCase
	cmdUC    *usecases.CommandsUseCase
}

func NewDebugHandler(statusUC *usecases.StatusUseCase, cmdUC *usecases.CommandsUseCase) *DebugHandler {
	return &DebugHandler{statusUC: statusUC, cmdUC: cmdUC}
}

// GET /api/debug
func (h *DebugHandler) Errors(c *gin.Context) {
	log, err := h.statusUC.Errors(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, log)
}

type errorUpload struct {
	Errors []entities.ErrorReport `json:"errors"`
}

// POST /api/debug
// Older firmware uploads its error log separately from the heartbeat.
func (h *DebugHandler) Upload(c *gin.Context) {
	var req errorUpload
	if err := c.ShouldBindJSON(&req); err != nil || req.Errors == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid error log format"})
		return
	}
	if err := h.statusUC.ReplaceErrors(c.Request.Context(), req.Errors); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"message":    "Error log received",
		"errorCount": len(req.Errors),
	})
}

// DELETE /api/debug
// Asks the device to clear its log; the stored copy empties on its next report.
func (h *DebugHandler) Clear(c *gin.Context) {
	if _, err := h.cmdUC.ClearErrors(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Clear errors command queued"})
}
