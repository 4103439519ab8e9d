package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/postapi/postapi/middleware"
	"github.com/postapi/postapi/services"
	"github.com/postapi/postapi/utils"
)

// CommentController serves comments and comment subtrees.
type CommentController struct {
	comments *services.CommentService
}

func NewCommentController(comments *services.CommentService) *CommentController {
	return &CommentController{comments: comments}
}

// CreateComment adds a comment to a post, optionally as a reply.
func (c *CommentController) CreateComment(ctx *gin.Context) {
	postID, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	var req struct {
		Content  string `json:"content" binding:"required"`
		ParentID *uint  `json:"parent_comment_id"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40050, "invalid request payload")
		return
	}
	comment, err := c.comments.Create(ctx.Request.Context(), middleware.PrincipalFrom(ctx), services.CreateCommentInput{
		PostID:   postID,
		ParentID: req.ParentID,
		Content:  req.Content,
	})
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Created(ctx, gin.H{"comment": comment})
}

// GetComment returns a comment with all of its replies nested.
func (c *CommentController) GetComment(ctx *gin.Context) {
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	tree, err := c.comments.CommentTree(ctx.Request.Context(), middleware.PrincipalFrom(ctx), id, services.ParseThreadOrder(ctx.Query("order")))
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"comment": tree})
}

func (c *CommentController) ListUserComments(ctx *gin.Context) {
	page, pageSize := pagination(ctx)
	list, err := c.comments.ListByUsername(ctx.Request.Context(), middleware.PrincipalFrom(ctx), ctx.Param("username"), page, pageSize)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, paged(list, page, pageSize))
}

func (c *CommentController) UpdateComment(ctx *gin.Context) {
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40051, "invalid request payload")
		return
	}
	comment, err := c.comments.Update(ctx.Request.Context(), middleware.PrincipalFrom(ctx), id, req.Content)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"comment": comment})
}

// DeleteComment removes the comment and its replies. Author or admin.
func (c *CommentController) DeleteComment(ctx *gin.Context) {
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	if err := c.comments.Delete(ctx.Request.Context(), middleware.PrincipalFrom(ctx), id); err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"deleted": true})
}
