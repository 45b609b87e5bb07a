package routes

import (
	"fmt"
	"net/http"

	"loyalty-engine/handlers"
	"loyalty-engine/middleware"
	"loyalty-engine/utils"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

type Handlers struct {
	Loyalty   *handlers.LoyaltyHandler
	Tiers     *handlers.TierHandler
	Recompute *handlers.RecomputeHandler
}

// RegisterValidators installs the custom binding rules on gin's validator.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("unexpected validator engine %T", binding.Validator.Engine())
	}
	return utils.RegisterValidators(v)
}

func SetupRoutes(r *gin.Engine, h Handlers, limiter *middleware.RateLimiter) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	loyalty := r.Group("/loyalty")
	loyalty.Use(middleware.AuthMiddleware())
	loyalty.Use(middleware.BusinessMiddleware())
	if limiter != nil {
		loyalty.Use(limiter.Middleware())
	}
	{
		loyalty.POST("/redeem", h.Loyalty.Redeem)

		// Program and tier ladder
		loyalty.GET("/program", h.Tiers.GetProgram)
		loyalty.POST("/tiers", h.Tiers.AddTier)
		loyalty.DELETE("/tiers", h.Tiers.RemoveTier)

		// Customers
		loyalty.POST("/customers", h.Loyalty.EnrollCustomer)
		loyalty.GET("/customers/:customer_id", h.Loyalty.GetCustomer)
		loyalty.GET("/customers/:customer_id/transactions", h.Loyalty.ListTransactions)

		// Tier recompute
		loyalty.POST("/recompute", h.Recompute.StartRecompute)
		loyalty.GET("/recompute-jobs/:id", h.Recompute.GetJob)
	}
}
