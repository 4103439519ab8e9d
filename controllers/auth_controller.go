package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/postapi/postapi/config"
	"github.com/postapi/postapi/middleware"
	"github.com/postapi/postapi/models"
	"github.com/postapi/postapi/services"
	"github.com/postapi/postapi/utils"
)

// AuthController handles registration, login and the session endpoints.
type AuthController struct {
	users *services.UserService
}

// NewAuthController creates a new AuthController instance.
func NewAuthController(users *services.UserService) *AuthController {
	return &AuthController{users: users}
}

type registerRequest struct {
	Username      string `form:"username" json:"username" binding:"required"`
	Email         string `form:"email" json:"email" binding:"required"`
	Password      string `form:"password" json:"password" binding:"required"`
	FirstName     string `form:"first_name" json:"first_name"`
	LastName      string `form:"last_name" json:"last_name"`
	Gender        string `form:"gender" json:"gender"`
	Bio           string `form:"bio" json:"bio"`
	Birthday      string `form:"birthday" json:"birthday"`
	CaptchaID     string `form:"captcha_id" json:"captcha_id"`
	CaptchaAnswer string `form:"captcha_answer" json:"captcha_answer"`
}

// Register creates an account. Accepts JSON or multipart with an optional
// "picture" file.
func (a *AuthController) Register(ctx *gin.Context) {
	var req registerRequest
	if err := ctx.ShouldBind(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid request payload")
		return
	}
	if config.Get().RegisterCaptchaEnabled && !utils.VerifyCaptcha(req.CaptchaID, strings.TrimSpace(req.CaptchaAnswer)) {
		utils.Error(ctx, http.StatusBadRequest, 40021, "invalid captcha")
		return
	}
	birthday, ok := parseBirthday(ctx, req.Birthday)
	if !ok {
		return
	}

	picture, done, err := formFile(ctx, "picture")
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40022, "unreadable picture")
		return
	}
	defer done()

	user, err := a.users.Register(ctx.Request.Context(), services.RegisterInput{
		Username:  req.Username,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
		Gender:    req.Gender,
		Bio:       req.Bio,
		Birthday:  birthday,
		Picture:   picture,
	})
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Created(ctx, gin.H{"user": user})
}

// Captcha issues a digit captcha for the registration form.
func (a *AuthController) Captcha(ctx *gin.Context) {
	id, b64, err := utils.GenerateCaptcha()
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50020, "failed to generate captcha")
		return
	}
	utils.Success(ctx, gin.H{"captcha_id": id, "image": b64})
}

// Login checks credentials and returns a bearer token.
func (a *AuthController) Login(ctx *gin.Context) {
	var req struct {
		Username string `form:"username" json:"username" binding:"required"`
		Password string `form:"password" json:"password" binding:"required"`
	}
	if err := ctx.ShouldBind(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40023, "invalid request payload")
		return
	}

	user, err := a.users.Authenticate(ctx.Request.Context(), req.Username, req.Password)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ttl := utils.TokenTTL()
	token, err := utils.GenerateToken(user.ID, user.Username, user.Role, ttl)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50021, "failed to issue token")
		return
	}
	utils.Sugar.Infow("user logged in", "user_id", user.ID, "ip", ctx.ClientIP())
	utils.Success(ctx, gin.H{
		"token":      token,
		"expires_at": time.Now().Add(ttl),
		"user": gin.H{
			"id":       user.ID,
			"username": user.Username,
			"role":     user.Role,
			"is_admin": user.Role == models.RoleAdmin || config.Get().IsAdminUsername(user.Username),
		},
	})
}

// Logout revokes the bearer token until it would have expired.
func (a *AuthController) Logout(ctx *gin.Context) {
	token, expires, ok := middleware.TokenFrom(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	if expires.IsZero() {
		expires = time.Now().Add(utils.TokenTTL())
	}
	utils.RevokeToken(ctx.Request.Context(), token, expires)
	utils.Success(ctx, gin.H{"message": "logged out"})
}

// Me returns the caller's own profile.
func (a *AuthController) Me(ctx *gin.Context) {
	user, err := a.users.Me(ctx.Request.Context(), middleware.PrincipalFrom(ctx))
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"user": user})
}

func parseBirthday(ctx *gin.Context, s string) (*time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, true
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40024, "birthday must be YYYY-MM-DD")
		return nil, false
	}
	return &t, true
}
