package handler

import (
	"collective/backend/internal/config"
	"collective/backend/internal/logger"
	"collective/backend/internal/models"
	"collective/backend/internal/profile"
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

type setRoleRequest struct {
	Role models.Role `json:"role" binding:"required"`
}

func (h *Handler) AdminListUsers(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	users, err := h.Accounts.ListUsers(ctx, currentIdentity(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

func (h *Handler) AdminSetRole(c *gin.Context) {
	var req setRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	user, err := h.Accounts.SetRole(ctx, currentIdentity(c), c.Param("id"), req.Role)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.revokeSessions(ctx, c, user.ID)
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// AdminGetUser returns the account and, when one exists, its company or investor profile.
func (h *Handler) AdminGetUser(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	user, err := h.Accounts.Get(ctx, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	var p any
	if user.Role != models.RoleAdmin {
		p, err = h.Profiles.Get(ctx, user.ID)
		if err != nil && !errors.Is(err, profile.ErrNotFound) {
			h.fail(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"user": user, "profile": p})
}

// AdminDeleteUser removes an account with its profiles, conversations and messages.
func (h *Handler) AdminDeleteUser(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	id := c.Param("id")
	if err := h.Accounts.Delete(ctx, currentIdentity(c), id); err != nil {
		h.fail(c, err)
		return
	}
	h.revokeSessions(ctx, c, id)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// revokeSessions logs userID out everywhere. Errors are logged, not returned.
func (h *Handler) revokeSessions(ctx context.Context, c *gin.Context, userID string) {
	if err := h.Sessions.RevokeUser(ctx, userID); err != nil {
		logger.FromContext(c).WithError(err).WithField("user_id", userID).Warn("failed to revoke sessions")
	}
}

// AdminRecentMessages is the message monitor. ?limit caps the result at config.MonitorMessageLimit.
func (h *Handler) AdminRecentMessages(c *gin.Context) {
	limit := config.MonitorMessageLimit
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	msgs, err := h.Messages.Recent(ctx, currentIdentity(c), limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}
