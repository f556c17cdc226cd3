package httpHandler

import (
	"net/http"
	"strconv"

	"relay-server/entities"
	"relay-server/usecases"

	"github.com/gin-gonic/gin"
)

type StatusHandler struct {
	statusUC *usecases.StatusUseCase
}

func NewStatusHandler(uc *usecases.StatusUseCase) *StatusHandler {
	return &StatusHandler{statusUC: uc}
}

// POST /api/status
// Device heartbeat carrying relay state, schedule and optionally its error log.
func (h *StatusHandler) Report(c *gin.Context) {
	var report entities.StateReport
	if err := c.ShouldBindJSON(&report); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid state report", "details": err.Error()})
		return
	}
	if err := h.statusUC.Report(c.Request.Context(), report); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// GET /api/status?includeErrors=true
func (h *StatusHandler) Get(c *gin.Context) {
	includeErrors, _ := strconv.ParseBool(c.DefaultQuery("includeErrors", "false"))
	view, err := h.statusUC.Get(c.Request.Context(), includeErrors)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}
