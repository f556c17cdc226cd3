package httpHandler

import (
	"net/http"

	"relay-server/logs"
	"relay-server/usecases"

	"github.com/gin-gonic/gin"
)

// respondError maps use case errors to status codes. Validation problems are
// the caller's fault; everything else is reported as a server error.
func respondError(c *gin.Context, err error) {
	if usecases.IsValidation(err) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	logs.Logger.WithError(err).WithField("path", c.FullPath()).Error("request failed")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error", "message": err.Error()})
}
