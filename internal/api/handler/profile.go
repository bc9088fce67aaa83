package handler

import (
	"collective/backend/internal/profile"
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *Handler) GetCompanyProfile(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	p, err := h.Profiles.GetCompany(ctx, c.DefaultQuery("userId", currentIdentity(c).ID))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": p})
}

func (h *Handler) PutCompanyProfile(c *gin.Context) {
	var in profile.CompanyInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	p, err := h.Profiles.UpsertCompany(ctx, currentIdentity(c), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": p})
}

func (h *Handler) GetInvestorProfile(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	p, err := h.Profiles.GetInvestor(ctx, c.DefaultQuery("userId", currentIdentity(c).ID))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": p})
}

func (h *Handler) PutInvestorProfile(c *gin.Context) {
	var in profile.InvestorInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	p, err := h.Profiles.UpsertInvestor(ctx, currentIdentity(c), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": p})
}
