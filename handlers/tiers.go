package handlers

import (
	"net/http"

	"loyalty-engine/dtos"
	"loyalty-engine/models"
	"loyalty-engine/services"
	"loyalty-engine/utils"

	"github.com/gin-gonic/gin"
)

type TierHandler struct {
	Catalog *services.CatalogService
}

func (h *TierHandler) GetProgram(c *gin.Context) {
	bizID, ok := businessID(c)
	if !ok {
		return
	}

	program, err := h.Catalog.GetProgram(c.Request.Context(), bizID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, program)
}

func (h *TierHandler) AddTier(c *gin.Context) {
	bizID, ok := businessID(c)
	if !ok {
		return
	}

	var req dtos.AddTierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": utils.SanitizeValidationError(err)})
		return
	}

	in := services.TierInput{
		Name:           req.Tier.Name,
		PointsToUnlock: req.Tier.PointsToUnlock,
		Rewards:        make([]models.Reward, len(req.Tier.Rewards)),
	}
	for i, r := range req.Tier.Rewards {
		in.Rewards[i] = r.ToModel()
	}

	change, err := h.Catalog.AddTier(c.Request.Context(), bizID, in, req.PointsRate)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ladderChangeResponse(change))
}

// RemoveTier removes one reward from a tier when the body names a reward, and
// the whole tier otherwise.
func (h *TierHandler) RemoveTier(c *gin.Context) {
	bizID, ok := businessID(c)
	if !ok {
		return
	}

	var req dtos.RemoveTierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": utils.SanitizeValidationError(err)})
		return
	}

	var (
		change *services.LadderChange
		err    error
	)
	if req.Reward != nil {
		change, err = h.Catalog.RemoveReward(c.Request.Context(), bizID, req.TierName, req.Reward.ToModel())
	} else {
		change, err = h.Catalog.RemoveTier(c.Request.Context(), bizID, req.TierName)
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ladderChangeResponse(change))
}

func ladderChangeResponse(change *services.LadderChange) dtos.LadderChangeResponse {
	return dtos.LadderChangeResponse{
		Message:      change.Message,
		Program:      change.Program,
		RecomputeJob: change.Job,
	}
}
