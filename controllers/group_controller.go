package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/postapi/postapi/middleware"
	"github.com/postapi/postapi/services"
	"github.com/postapi/postapi/utils"
)

// GroupController serves groups, their membership and their posts.
type GroupController struct {
	groups *services.GroupService
}

func NewGroupController(groups *services.GroupService) *GroupController {
	return &GroupController{groups: groups}
}

// CreateGroup accepts multipart (name, description, picture) or JSON.
func (g *GroupController) CreateGroup(ctx *gin.Context) {
	var req struct {
		Name        string `form:"name" json:"name" binding:"required"`
		Description string `form:"description" json:"description" binding:"required"`
	}
	if err := ctx.ShouldBind(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40060, "invalid request payload")
		return
	}
	picture, done, err := formFile(ctx, "picture")
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40061, "unreadable picture")
		return
	}
	defer done()

	group, err := g.groups.Create(ctx.Request.Context(), middleware.PrincipalFrom(ctx), services.CreateGroupInput{
		Name:        req.Name,
		Description: req.Description,
		Picture:     picture,
	})
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Created(ctx, gin.H{"group": group})
}

func (g *GroupController) ListGroups(ctx *gin.Context) {
	groups, err := g.groups.List(ctx.Request.Context())
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"items": groups})
}

func (g *GroupController) GetGroup(ctx *gin.Context) {
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	group, err := g.groups.Get(ctx.Request.Context(), id)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"group": group})
}

// Exists answers whether a group name is taken.
func (g *GroupController) Exists(ctx *gin.Context) {
	name := strings.TrimSpace(ctx.Query("name"))
	if name == "" {
		utils.Error(ctx, http.StatusBadRequest, 40062, "name required")
		return
	}
	exists, err := g.groups.Exists(ctx.Request.Context(), name)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"exists": exists})
}

func (g *GroupController) UpdateGroup(ctx *gin.Context) {
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	var req struct {
		Name        *string `form:"name" json:"name"`
		Description *string `form:"description" json:"description"`
	}
	if err := ctx.ShouldBind(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40063, "invalid request payload")
		return
	}
	picture, done, err := formFile(ctx, "picture")
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40061, "unreadable picture")
		return
	}
	defer done()

	group, err := g.groups.Update(ctx.Request.Context(), middleware.PrincipalFrom(ctx), id, services.UpdateGroupInput{
		Name:        req.Name,
		Description: req.Description,
		Picture:     picture,
	})
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"group": group})
}

func (g *GroupController) DeleteGroup(ctx *gin.Context) {
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	if err := g.groups.Delete(ctx.Request.Context(), middleware.PrincipalFrom(ctx), id); err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"deleted": true})
}

func (g *GroupController) Join(ctx *gin.Context) {
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	if err := g.groups.Join(ctx.Request.Context(), middleware.PrincipalFrom(ctx), id); err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"joined": true})
}

func (g *GroupController) Leave(ctx *gin.Context) {
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	if err := g.groups.Leave(ctx.Request.Context(), middleware.PrincipalFrom(ctx), id); err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"left": true})
}

// ListPosts returns the group's posts; non-members see them withheld.
func (g *GroupController) ListPosts(ctx *gin.Context) {
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	page, pageSize := pagination(ctx)
	posts, err := g.groups.Posts(ctx.Request.Context(), middleware.PrincipalFrom(ctx), id, page, pageSize)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, paged(posts, page, pageSize))
}
