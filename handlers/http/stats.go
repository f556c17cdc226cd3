package httpHandler

import (
	"net/http"

	"relay-server/entities"
	"relay-server/usecases"

	"github.com/gin-gonic/gin"
)

type StatsHandler struct {
	statsUC *usecases.StatsUseCase
}

func NewStatsHandler(uc *usecases.StatsUseCase) *StatsHandler {
	return &StatsHandler{statsUC: uc}
}

type statsEventReq struct {
	EventType   string         `json:"eventType"`
	CommandType string         `json:"commandType"`
	CommandData map[string]any `json:"commandData"`
}

// GET /api/stats
func (h *StatsHandler) Query(c *gin.Context) {
	report, err := h.statsUC.Query(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// POST /api/stats
func (h *StatsHandler) Record(c *gin.Context) {
	var req statsEventReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid eventType (must be \"login\" or \"command\")"})
		return
	}
	userAgent := c.GetHeader("User-Agent")
	if userAgent == "" {
		userAgent = "unknown"
	}
	event := entities.StatsEvent{
		EventType:   req.EventType,
		CommandType: req.CommandType,
		CommandData: req.CommandData,
	}
	if req.EventType == entities.EventLogin {
		event.UserAgent = userAgent
	}
	if err := h.statsUC.Record(c.Request.Context(), event); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// DELETE /api/stats
func (h *StatsHandler) Clear(c *gin.Context) {
	if err := h.statsUC.Clear(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Statistics cleared"})
}

// GET /api/stats/debug
func (h *StatsHandler) Dump(c *gin.Context) {
	dump, err := h.statsUC.Dump(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dump)
}
