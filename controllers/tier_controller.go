package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/postapi/postapi/middleware"
	"github.com/postapi/postapi/services"
	"github.com/postapi/postapi/utils"
)

type TierController struct {
	tiers *services.TierService
}

func NewTierController(tiers *services.TierService) *TierController {
	return &TierController{tiers: tiers}
}

// InUse lists the reader tiers assigned to at least one user.
func (t *TierController) InUse(ctx *gin.Context) {
	tiers, err := t.tiers.InUse(ctx.Request.Context())
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"items": tiers})
}

func (t *TierController) CreateTier(ctx *gin.Context) {
	var req struct {
		Name        string `json:"name" binding:"required"`
		Description string `json:"description"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40080, "invalid request payload")
		return
	}
	tier, err := t.tiers.Create(ctx.Request.Context(), middleware.PrincipalFrom(ctx), req.Name, req.Description)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Created(ctx, gin.H{"tier": tier})
}
