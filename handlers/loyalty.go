package handlers

import (
	"net/http"
	"strconv"

	"loyalty-engine/dtos"
	"loyalty-engine/models"
	"loyalty-engine/services"
	"loyalty-engine/utils"

	"github.com/gin-gonic/gin"
)

type LoyaltyHandler struct {
	Ledger  *services.LedgerService
	Catalog *services.CatalogService
}

func (h *LoyaltyHandler) Redeem(c *gin.Context) {
	bizID, ok := businessID(c)
	if !ok {
		return
	}

	var req dtos.RedeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": utils.SanitizeValidationError(err)})
		return
	}

	in := services.PurchaseInput{
		CustomerID: req.CustomerID,
		BusinessID: bizID,
		BillAmount: *req.BillAmount,
	}
	if req.RedeemablePointsUsed != nil {
		in.RedeemablePointsUsed = *req.RedeemablePointsUsed
	}
	for _, r := range req.RedeemedRewards {
		in.RedeemedRewards = append(in.RedeemedRewards, services.RedeemedReward{
			RewardID:   r.RewardID,
			RewardType: models.RewardType(r.RewardType),
			Value:      r.Value,
		})
	}

	receipt, err := h.Ledger.ProcessPurchase(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dtos.RedeemResponse{
		TransactionID:    receipt.TransactionID,
		PointsAwarded:    receipt.PointsAwarded,
		TotalDiscount:    receipt.TotalDiscount,
		FinalAmount:      receipt.FinalAmount,
		CashbackEarned:   receipt.CashbackEarned,
		NewPoints:        receipt.NewPoints,
		RedeemablePoints: receipt.RedeemablePoints,
		Tier:             receipt.TierName,
		TierUpgraded:     receipt.TierUpgraded,
	})
}

func (h *LoyaltyHandler) EnrollCustomer(c *gin.Context) {
	bizID, ok := businessID(c)
	if !ok {
		return
	}

	var req dtos.EnrollCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": utils.SanitizeValidationError(err)})
		return
	}

	account, created, err := h.Ledger.EnsureCustomer(c.Request.Context(), req.CustomerID, bizID)
	if err != nil {
		respondError(c, err)
		return
	}

	resp, err := h.customerResponse(c, account)
	if err != nil {
		respondError(c, err)
		return
	}
	resp.Created = created
	c.JSON(http.StatusOK, resp)
}

func (h *LoyaltyHandler) GetCustomer(c *gin.Context) {
	bizID, ok := businessID(c)
	if !ok {
		return
	}
	customerID, ok := customerIDParam(c)
	if !ok {
		return
	}

	account, err := h.Ledger.GetCustomer(c.Request.Context(), customerID, bizID)
	if err != nil {
		respondError(c, err)
		return
	}

	resp, err := h.customerResponse(c, account)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *LoyaltyHandler) ListTransactions(c *gin.Context) {
	bizID, ok := businessID(c)
	if !ok {
		return
	}
	customerID, ok := customerIDParam(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))

	if _, err := h.Ledger.GetCustomer(c.Request.Context(), customerID, bizID); err != nil {
		respondError(c, err)
		return
	}
	txns, err := h.Ledger.ListTransactions(c.Request.Context(), customerID, bizID, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dtos.TransactionListResponse{Transactions: txns})
}

func (h *LoyaltyHandler) customerResponse(c *gin.Context, account *models.CustomerLoyalty) (*dtos.CustomerResponse, error) {
	resp := &dtos.CustomerResponse{
		CustomerID:       account.CustomerID,
		BusinessID:       account.BusinessID,
		Points:           account.Points,
		RedeemablePoints: account.RedeemablePoints,
		Tier:             account.CurrentTierName,
		UpdatedAt:        account.UpdatedAt,
	}

	program, err := h.Catalog.GetProgram(c.Request.Context(), account.BusinessID)
	if services.IsKind(err, services.KindNotFound) {
		return resp, nil
	}
	if err != nil {
		return nil, err
	}
	if next := services.NextTier(account.Points, program.Tiers); next != nil {
		name := next.Name
		remaining := next.PointsToUnlock - account.Points
		resp.NextTier = &name
		resp.PointsToNextTier = &remaining
	}
	return resp, nil
}

func customerIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("customer_id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid customer_id"})
		return 0, false
	}
	return id, true
}
