package handlers

import (
	"net/http"

	"loyalty-engine/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type RecomputeHandler struct {
	Maintainer *services.TierLadderMaintainer
}

// StartRecompute re-derives every customer's tier for the caller's business
// and returns the finished job.
func (h *RecomputeHandler) StartRecompute(c *gin.Context) {
	bizID, ok := businessID(c)
	if !ok {
		return
	}

	job, err := h.Maintainer.RecomputeAllCustomers(c.Request.Context(), bizID, "manual")
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

func (h *RecomputeHandler) GetJob(c *gin.Context) {
	bizID, ok := businessID(c)
	if !ok {
		return
	}

	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid job ID"})
		return
	}

	job, err := h.Maintainer.GetJob(c.Request.Context(), bizID, jobID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}
