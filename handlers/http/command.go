package httpHandler

import (
	"net/http"

	"relay-server/entities"
	"relay-server/usecases"

	"github.com/gin-gonic/gin"
)

type CommandHandler struct {
	cmdUC *usecases.CommandsUseCase
}

func NewCommandHandler(uc *usecases.CommandsUseCase) *CommandHandler {
	return &CommandHandler{cmdUC: uc}
}

// POST /api/command
// The panel queues a command, replacing any one still pending.
func (h *CommandHandler) Submit(c *gin.Context) {
	var cmd entities.Command
	if err := c.ShouldBindJSON(&cmd); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid command", "details": err.Error()})
		return
	}
	if _, err := h.cmdUC.Submit(c.Request.Context(), cmd); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Command queued"})
}

// GET /api/command
// The device claims the pending command; the slot is cleared.
func (h *CommandHandler) Claim(c *gin.Context) {
	cmd, err := h.cmdUC.Claim(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cmd)
}
