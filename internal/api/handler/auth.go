package handler

import (
	"collective/backend/internal/models"
	"net/http"

	"github.com/gin-gonic/gin"
)

type signupRequest struct {
	Email    string      `json:"email" binding:"required"`
	Password string      `json:"password" binding:"required"`
	Role     models.Role `json:"role" binding:"required"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// startSession issues a session for user and sets the cookie.
func (h *Handler) startSession(c *gin.Context, user *models.User) bool {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	token, err := h.Sessions.Issue(ctx, user.Identity())
	if err != nil {
		h.fail(c, err)
		return false
	}
	h.setCookie(c, token, int(h.Config.Session.TTL.Seconds()))
	return true
}

func (h *Handler) setCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(h.Config.Session.CookieName, value, maxAge, "/", "", h.Config.Session.CookieSecure, true)
}

// Signup creates a COMPANY or INVESTOR account and logs it in.
func (h *Handler) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	user, err := h.Accounts.Signup(ctx, req.Email, req.Password, req.Role)
	if err != nil {
		h.fail(c, err)
		return
	}
	if !h.startSession(c, user) {
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": user})
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	user, err := h.Accounts.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	if !h.startSession(c, user) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user.Identity()})
}

func (h *Handler) Logout(c *gin.Context) {
	token, _ := c.Cookie(h.Config.Session.CookieName)

	ctx, cancel := h.requestContext(c)
	defer cancel()

	if err := h.Sessions.Revoke(ctx, token); err != nil {
		h.fail(c, err)
		return
	}
	h.setCookie(c, "", -1)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Session reports whether the caller is logged in. It never fails with 401.
func (h *Handler) Session(c *gin.Context) {
	token, _ := c.Cookie(h.Config.Session.CookieName)

	ctx, cancel := h.requestContext(c)
	defer cancel()

	identity, err := h.Sessions.Resolve(ctx, token)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"isLoggedIn": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"isLoggedIn": true, "user": identity})
}
