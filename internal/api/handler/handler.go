package handler

import (
	"collective/backend/internal/account"
	"collective/backend/internal/config"
	"collective/backend/internal/logger"
	"collective/backend/internal/messaging"
	"collective/backend/internal/models"
	"collective/backend/internal/profile"
	"collective/backend/internal/session"
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

const identityKey = "identity"

// Handler holds the services behind the HTTP API.
type Handler struct {
	Conversations *messaging.ConversationService
	Messages      *messaging.MessageService
	Accounts      *account.Service
	Profiles      *profile.Service
	Sessions      *session.Manager
	Config        config.Config
}

func NewHandler(
	conversations *messaging.ConversationService,
	messages *messaging.MessageService,
	accounts *account.Service,
	profiles *profile.Service,
	sessions *session.Manager,
	cfg config.Config,
) *Handler {
	return &Handler{
		Conversations: conversations,
		Messages:      messages,
		Accounts:      accounts,
		Profiles:      profiles,
		Sessions:      sessions,
		Config:        cfg,
	}
}

// Register mounts every route on r.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	api := r.Group("/api")

	auth := api.Group("/auth")
	auth.POST("/signup", h.Signup)
	auth.POST("/login", h.Login)
	auth.POST("/logout", h.Logout)
	auth.GET("/session", h.Session)

	msg := api.Group("/messaging", h.RequireAuth())
	msg.GET("/conversations", h.ListConversations)
	msg.POST("/conversations", h.CreateConversation)
	msg.GET("/conversations/:id/messages", h.GetMessages)
	msg.POST("/conversations/:id/messages", h.SendMessage)

	profiles := api.Group("/profiles", h.RequireAuth())
	profiles.GET("/company", h.GetCompanyProfile)
	profiles.PUT("/company", h.PutCompanyProfile)
	profiles.GET("/investor", h.GetInvestorProfile)
	profiles.PUT("/investor", h.PutInvestorProfile)

	admin := api.Group("/admin", h.RequireAuth(), h.RequireAdmin())
	admin.GET("/users", h.AdminListUsers)
	admin.GET("/users/:id", h.AdminGetUser)
	admin.PATCH("/users/:id", h.AdminSetRole)
	admin.PUT("/users/:id", h.AdminSetRole)
	admin.DELETE("/users/:id", h.AdminDeleteUser)
	admin.GET("/messages", h.AdminRecentMessages)
}

// RequireAuth resolves the session cookie and stores the caller's identity on the context.
func (h *Handler) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie(h.Config.Session.CookieName)
		ctx, cancel := h.requestContext(c)
		defer cancel()

		identity, err := h.Sessions.Resolve(ctx, token)
		if err != nil {
			h.fail(c, err)
			c.Abort()
			return
		}
		c.Set(identityKey, identity)
		c.Next()
	}
}

// RequireAdmin must run after RequireAuth. The role is read again from the account store,
// so a demotion takes effect even for sessions issued before it.
func (h *Handler) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := currentIdentity(c)
		if !identity.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
			return
		}

		ctx, cancel := h.requestContext(c)
		defer cancel()
		user, err := h.Accounts.Get(ctx, identity.ID)
		if errors.Is(err, account.ErrUserNotFound) {
			err = session.ErrNoSession
		}
		if err != nil {
			h.fail(c, err)
			c.Abort()
			return
		}
		if user.Role != models.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
			return
		}
		c.Next()
	}
}

func currentIdentity(c *gin.Context) models.Identity {
	v, _ := c.Get(identityKey)
	identity, _ := v.(models.Identity)
	return identity
}

func (h *Handler) requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), h.Config.RequestTimeout)
}

// fail maps service errors onto HTTP statuses. Internal failures are logged and hidden.
func (h *Handler) fail(c *gin.Context, err error) {
	var ve *profile.ValidationError
	switch {
	case errors.Is(err, session.ErrNoSession):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
	case errors.Is(err, account.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
	case errors.Is(err, messaging.ErrNotParticipant):
		c.JSON(http.StatusForbidden, gin.H{"error": "You are not a participant in this conversation"})
	case errors.Is(err, messaging.ErrForbidden), errors.Is(err, account.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
	case errors.Is(err, profile.ErrWrongRole):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "details": ve.Fields})
	case errors.Is(err, account.ErrSelfDelete):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot delete your own account"})
	case errors.Is(err, messaging.ErrInvalidContent),
		errors.Is(err, messaging.ErrSelfConversation),
		errors.Is(err, account.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, messaging.ErrParticipantNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Participant not found"})
	case errors.Is(err, account.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
	case errors.Is(err, profile.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Profile not found"})
	case errors.Is(err, account.ErrEmailTaken):
		c.JSON(http.StatusConflict, gin.H{"error": "User with this email already exists"})
	case errors.Is(err, context.DeadlineExceeded):
		logger.FromContext(c).WithError(err).Error("request timed out")
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "Request timed out"})
	default:
		logger.FromContext(c).WithError(err).Error("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "details": err.Error()})
}
