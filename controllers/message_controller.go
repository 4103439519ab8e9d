package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/postapi/postapi/middleware"
	"github.com/postapi/postapi/services"
	"github.com/postapi/postapi/utils"
)

// MessageController serves direct messages. Every route requires a principal.
type MessageController struct {
	messages *services.MessageService
}

func NewMessageController(messages *services.MessageService) *MessageController {
	return &MessageController{messages: messages}
}

func (m *MessageController) Send(ctx *gin.Context) {
	var req struct {
		Receiver string `json:"receiver" binding:"required"`
		Content  string `json:"content" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40070, "invalid request payload")
		return
	}
	msg, err := m.messages.Send(ctx.Request.Context(), middleware.PrincipalFrom(ctx), req.Receiver, req.Content)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Created(ctx, gin.H{"message": msg})
}

// GetMessage opens a message and marks it read. Receiver only.
func (m *MessageController) GetMessage(ctx *gin.Context) {
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	msg, err := m.messages.Get(ctx.Request.Context(), middleware.PrincipalFrom(ctx), id)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"message": msg})
}

func (m *MessageController) Inbox(ctx *gin.Context) {
	msgs, err := m.messages.Inbox(ctx.Request.Context(), middleware.PrincipalFrom(ctx))
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"items": msgs})
}

// Conversation lists the messages between the caller and :username.
func (m *MessageController) Conversation(ctx *gin.Context) {
	p := middleware.PrincipalFrom(ctx)
	page, pageSize := pagination(ctx)
	msgs, err := m.messages.Conversation(ctx.Request.Context(), p, p.Username, ctx.Param("username"), page, pageSize)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, paged(msgs, page, pageSize))
}

func (m *MessageController) Correspondents(ctx *gin.Context) {
	users, err := m.messages.Correspondents(ctx.Request.Context(), middleware.PrincipalFrom(ctx))
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"items": users})
}
