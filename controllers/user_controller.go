package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/postapi/postapi/middleware"
	"github.com/postapi/postapi/services"
	"github.com/postapi/postapi/utils"
)

// UserController serves user profiles and account administration.
type UserController struct {
	users *services.UserService
}

func NewUserController(users *services.UserService) *UserController {
	return &UserController{users: users}
}

func (u *UserController) ListUsers(ctx *gin.Context) {
	page, pageSize := pagination(ctx)
	users, err := u.users.List(ctx.Request.Context(), page, pageSize)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, paged(users, page, pageSize))
}

func (u *UserController) GetUser(ctx *gin.Context) {
	user, err := u.users.GetPublic(ctx.Request.Context(), ctx.Param("username"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"user": user})
}

// Exists answers whether a username or an email is taken.
func (u *UserController) Exists(ctx *gin.Context) {
	username := strings.TrimSpace(ctx.Query("username"))
	email := strings.TrimSpace(ctx.Query("email"))
	var (
		exists bool
		err    error
	)
	switch {
	case username != "":
		exists, err = u.users.Exists(ctx.Request.Context(), username)
	case email != "":
		exists, err = u.users.EmailExists(ctx.Request.Context(), email)
	default:
		utils.Error(ctx, http.StatusBadRequest, 40030, "username or email required")
		return
	}
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"exists": exists})
}

type updateUserRequest struct {
	FirstName *string `form:"first_name" json:"first_name"`
	LastName  *string `form:"last_name" json:"last_name"`
	Email     *string `form:"email" json:"email"`
	Password  *string `form:"password" json:"password"`
	Gender    *string `form:"gender" json:"gender"`
	Bio       *string `form:"bio" json:"bio"`
	Status    *string `form:"status" json:"status"`
	Birthday  *string `form:"birthday" json:"birthday"`
}

// UpdateMe changes the caller's own profile; absent fields stay unchanged.
func (u *UserController) UpdateMe(ctx *gin.Context) {
	var req updateUserRequest
	if err := ctx.ShouldBind(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40031, "invalid request payload")
		return
	}
	in := services.UpdateUserInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
		Gender:    req.Gender,
		Bio:       req.Bio,
		Status:    req.Status,
	}
	if req.Birthday != nil {
		b, ok := parseBirthday(ctx, *req.Birthday)
		if !ok {
			return
		}
		in.Birthday = b
	}
	picture, done, err := formFile(ctx, "picture")
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40032, "unreadable picture")
		return
	}
	defer done()
	in.Picture = picture

	user, err := u.users.Update(ctx.Request.Context(), middleware.PrincipalFrom(ctx), in)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"user": user})
}

// DeleteUser removes an account. Self or admin.
func (u *UserController) DeleteUser(ctx *gin.Context) {
	if err := u.users.Delete(ctx.Request.Context(), middleware.PrincipalFrom(ctx), ctx.Param("username")); err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"deleted": true})
}

// AssignTier sets or clears (tier_id null) a user's reader tier. Admin only.
func (u *UserController) AssignTier(ctx *gin.Context) {
	var req struct {
		TierID *uint `json:"tier_id"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40033, "invalid request payload")
		return
	}
	user, err := u.users.AssignTier(ctx.Request.Context(), middleware.PrincipalFrom(ctx), ctx.Param("username"), req.TierID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"user": user})
}
