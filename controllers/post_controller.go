package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/postapi/postapi/middleware"
	"github.com/postapi/postapi/services"
	"github.com/postapi/postapi/utils"
)

// PostController serves posts and their comment threads.
type PostController struct {
	posts    *services.PostService
	comments *services.CommentService
}

// NewPostController creates a new PostController instance.
func NewPostController(posts *services.PostService, comments *services.CommentService) *PostController {
	return &PostController{posts: posts, comments: comments}
}

// CreatePost accepts multipart (content, group_id, images[]) or JSON.
func (p *PostController) CreatePost(ctx *gin.Context) {
	var req struct {
		Content string `form:"content" json:"content"`
		GroupID *uint  `form:"group_id" json:"group_id"`
	}
	if err := ctx.ShouldBind(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40040, "invalid request payload")
		return
	}
	// an empty form value binds as 0
	if req.GroupID != nil && *req.GroupID == 0 {
		req.GroupID = nil
	}
	files, done, err := formFiles(ctx, "images")
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40042, "unreadable image")
		return
	}
	defer done()

	post, err := p.posts.Create(ctx.Request.Context(), middleware.PrincipalFrom(ctx), services.CreatePostInput{
		GroupID: req.GroupID,
		Content: req.Content,
		Files:   files,
	})
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Created(ctx, gin.H{"post": post})
}

// ListPosts returns a page of posts. Group posts the caller cannot read come
// back with allowed=false and no content.
func (p *PostController) ListPosts(ctx *gin.Context) {
	page, pageSize := pagination(ctx)
	posts, err := p.posts.List(ctx.Request.Context(), middleware.PrincipalFrom(ctx), page, pageSize)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, paged(posts, page, pageSize))
}

func (p *PostController) ListUserPosts(ctx *gin.Context) {
	page, pageSize := pagination(ctx)
	posts, err := p.posts.ListByUsername(ctx.Request.Context(), middleware.PrincipalFrom(ctx), ctx.Param("username"), page, pageSize)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, paged(posts, page, pageSize))
}

// GetPost returns one post with images and its full comment thread.
func (p *PostController) GetPost(ctx *gin.Context) {
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	post, err := p.posts.Get(ctx.Request.Context(), middleware.PrincipalFrom(ctx), id, services.ParseThreadOrder(ctx.Query("order")))
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"post": post})
}

// GetThread returns only the comment forest of a post.
func (p *PostController) GetThread(ctx *gin.Context) {
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	thread, err := p.comments.ThreadForPost(ctx.Request.Context(), middleware.PrincipalFrom(ctx), id, services.ParseThreadOrder(ctx.Query("order")))
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"comments": thread})
}

// UpdatePost replaces the content and appends uploaded images. Author or admin.
func (p *PostController) UpdatePost(ctx *gin.Context) {
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	var req struct {
		Content *string `form:"content" json:"content"`
	}
	if err := ctx.ShouldBind(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40043, "invalid request payload")
		return
	}
	files, done, err := formFiles(ctx, "images")
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40042, "unreadable image")
		return
	}
	defer done()

	post, err := p.posts.Update(ctx.Request.Context(), middleware.PrincipalFrom(ctx), id, services.UpdatePostInput{
		Content: req.Content,
		Files:   files,
	})
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"post": post})
}

// DeletePost removes the post with its comments and images. Author or admin.
func (p *PostController) DeletePost(ctx *gin.Context) {
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	if err := p.posts.Delete(ctx.Request.Context(), middleware.PrincipalFrom(ctx), id); err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"deleted": true})
}
