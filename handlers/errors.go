package handlers

import (
	"errors"
	"net/http"

	"loyalty-engine/middleware"
	"loyalty-engine/services"
	"loyalty-engine/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// respondError writes err with the status matching its kind. Internal errors
// are logged and replaced with a generic message.
func respondError(c *gin.Context, err error) {
	switch services.KindOf(err) {
	case services.KindUnauthorized:
		c.JSON(http.StatusUnauthorized, gin.H{"error": message(err)})
	case services.KindValidation:
		c.JSON(http.StatusBadRequest, gin.H{"error": message(err)})
	case services.KindNotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": message(err)})
	case services.KindConflict:
		c.JSON(http.StatusConflict, gin.H{"error": message(err)})
	default:
		utils.Log.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

func message(err error) string {
	var e *services.Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// businessID reads the caller's business, answering 401 when it is missing.
func businessID(c *gin.Context) (int64, bool) {
	id, ok := middleware.BusinessID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return 0, false
	}
	return id, true
}
