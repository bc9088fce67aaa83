package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type createConversationRequest struct {
	ParticipantID  string `json:"participantId" binding:"required,uuid"`
	InitialMessage string `json:"initialMessage"`
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

func (h *Handler) ListConversations(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	conversations, err := h.Conversations.List(ctx, currentIdentity(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": conversations})
}

// CreateConversation finds or opens the conversation with participantId.
func (h *Handler) CreateConversation(c *gin.Context) {
	var req createConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	id, err := h.Conversations.FindOrCreate(ctx, currentIdentity(c), req.ParticipantID, req.InitialMessage)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"conversationId": id})
}

// GetMessages returns the conversation and marks the caller's incoming messages read.
func (h *Handler) GetMessages(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	msgs, err := h.Messages.Fetch(ctx, c.Param("id"), currentIdentity(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

func (h *Handler) SendMessage(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	msg, err := h.Messages.Send(ctx, c.Param("id"), currentIdentity(c), req.Content)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": msg})
}
