package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/postapi/postapi/config"
	"github.com/postapi/postapi/controllers"
	"github.com/postapi/postapi/middleware"
	"github.com/postapi/postapi/services"
	"github.com/postapi/postapi/utils"
)

// pageViewRoutes are the content routes whose GETs are counted.
var pageViewRoutes = []string{
	"/api/v1/posts/:id",
	"/api/v1/groups/:id",
	"/api/v1/users/:username",
}

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(db *gorm.DB, svc *services.Services) *gin.Engine {
	cfg := config.Get()
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	accessLog := utils.Logger
	if gin.Mode() != gin.TestMode {
		accessLog = utils.NewRollingFileLogger(cfg, cfg.GinPath)
	}
	r.Use(utils.Ginzap(accessLog, time.RFC3339, true))
	r.Use(utils.RecoveryWithZap(accessLog, false))

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))
	r.Use(middleware.PageViewRecorder(db, pageViewRoutes...))

	if cfg.Storage == "local" {
		r.Static(cfg.UploadPublicPath, cfg.UploadDir)
	}

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})

	authController := controllers.NewAuthController(svc.Users)
	userController := controllers.NewUserController(svc.Users)
	postController := controllers.NewPostController(svc.Posts, svc.Comments)
	commentController := controllers.NewCommentController(svc.Comments)
	groupController := controllers.NewGroupController(svc.Groups)
	messageController := controllers.NewMessageController(svc.Messages)
	tierController := controllers.NewTierController(svc.Tiers)
	statsController := controllers.NewStatsController(db)

	required := middleware.AuthRequired()
	optional := middleware.AuthOptional()

	api := r.Group("/api/v1")
	api.Use(middleware.RateLimitMiddleware())

	authGroup := api.Group("/auth")
	authGroup.POST("/register", authController.Register)
	authGroup.POST("/login", authController.Login)
	authGroup.GET("/captcha", authController.Captcha)
	authGroup.POST("/logout", required, authController.Logout)
	authGroup.GET("/me", required, authController.Me)

	users := api.Group("/users")
	users.GET("", userController.ListUsers)
	users.GET("/exists", userController.Exists)
	users.GET("/:username", userController.GetUser)
	users.GET("/:username/posts", optional, postController.ListUserPosts)
	users.GET("/:username/comments", optional, commentController.ListUserComments)
	users.PATCH("/me", required, userController.UpdateMe)
	users.DELETE("/:username", required, userController.DeleteUser)
	users.PUT("/:username/tier", required, userController.AssignTier)

	posts := api.Group("/posts")
	posts.GET("", optional, postController.ListPosts)
	posts.GET("/:id", optional, postController.GetPost)
	posts.GET("/:id/comments", optional, postController.GetThread)
	posts.GET("/:id/stats", statsController.GetPostStats)
	posts.POST("", required, postController.CreatePost)
	posts.PUT("/:id", required, postController.UpdatePost)
	posts.DELETE("/:id", required, postController.DeletePost)
	posts.POST("/:id/comments", optional, commentController.CreateComment)

	comments := api.Group("/comments")
	comments.GET("/:id", optional, commentController.GetComment)
	comments.PUT("/:id", required, commentController.UpdateComment)
	comments.DELETE("/:id", required, commentController.DeleteComment)

	groups := api.Group("/groups")
	groups.GET("", groupController.ListGroups)
	groups.GET("/exists", groupController.Exists)
	groups.GET("/:id", groupController.GetGroup)
	groups.GET("/:id/posts", optional, groupController.ListPosts)
	groups.POST("", required, groupController.CreateGroup)
	groups.PUT("/:id", required, groupController.UpdateGroup)
	groups.DELETE("/:id", required, groupController.DeleteGroup)
	groups.POST("/:id/join", required, groupController.Join)
	groups.POST("/:id/leave", required, groupController.Leave)

	messages := api.Group("/messages", required)
	messages.POST("", messageController.Send)
	messages.GET("", messageController.Inbox)
	messages.GET("/correspondents", messageController.Correspondents)
	messages.GET("/with/:username", messageController.Conversation)
	messages.GET("/:id", messageController.GetMessage)

	tiers := api.Group("/tiers")
	tiers.GET("", tierController.InUse)
	tiers.POST("", required, tierController.CreateTier)

	api.GET("/stats", statsController.GetStats)

	r.NoRoute(func(ctx *gin.Context) {
		if strings.HasPrefix(ctx.Request.URL.Path, "/api/") {
			utils.Error(ctx, http.StatusNotFound, 40400, "api route not found")
			return
		}
		utils.Error(ctx, http.StatusNotFound, 40401, "not found")
	})

	return r
}
