package controllers

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/postapi/postapi/middleware"
	"github.com/postapi/postapi/models"
	"github.com/postapi/postapi/utils"
)

// StatsController provides site statistics such as counts and today's page views.
type StatsController struct {
	db *gorm.DB
}

// NewStatsController creates a new StatsController instance.
func NewStatsController(db *gorm.DB) *StatsController {
	return &StatsController{db: db}
}

// GetStats returns aggregate counts. A failing count reports 0 instead of
// failing the whole endpoint.
func (s *StatsController) GetStats(ctx *gin.Context) {
	db := s.db.WithContext(ctx.Request.Context())
	count := func(model interface{}) int64 {
		var n int64
		if err := db.Model(model).Count(&n).Error; err != nil {
			utils.Sugar.Warnw("stats count failed", "err", err)
			return 0
		}
		return n
	}

	var todayViews int64
	today := middleware.Midnight(time.Now().In(time.Local))
	if err := db.Model(&models.PageView{}).
		Where("date = ?", today).
		Select("COALESCE(SUM(count),0)").
		Scan(&todayViews).Error; err != nil {
		todayViews = 0
	}

	utils.Success(ctx, gin.H{
		"user_count":       count(&models.User{}),
		"post_count":       count(&models.Post{}),
		"comment_count":    count(&models.Comment{}),
		"group_count":      count(&models.Group{}),
		"message_count":    count(&models.Message{}),
		"page_views_today": todayViews,
	})
}

// GetPostStats returns page views and comment count for one post.
func (s *StatsController) GetPostStats(ctx *gin.Context) {
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	db := s.db.WithContext(ctx.Request.Context())

	var pv int64
	if err := db.Model(&models.PageView{}).
		Where("path = ?", "/api/v1/posts/"+strconv.FormatUint(uint64(id), 10)).
		Select("COALESCE(SUM(count),0)").
		Scan(&pv).Error; err != nil {
		pv = 0
	}
	var comments int64
	if err := db.Model(&models.Comment{}).Where("post_id = ?", id).Count(&comments).Error; err != nil {
		comments = 0
	}
	utils.Success(ctx, gin.H{"pv": pv, "comments_count": comments})
}
