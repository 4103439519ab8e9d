package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/postapi/postapi/models"
	"github.com/postapi/postapi/utils"
)

// PageViewRecorder counts successful GET requests per day and path for the
// given route templates, e.g. "/api/v1/posts/:id".
func PageViewRecorder(db *gorm.DB, routes ...string) gin.HandlerFunc {
	tracked := make(map[string]bool, len(routes))
	for _, r := range routes {
		tracked[r] = true
	}
	return func(c *gin.Context) {
		c.Next()

		if c.Request.Method != "GET" || !tracked[c.FullPath()] {
			return
		}
		status := c.Writer.Status()
		if status < 200 || status >= 300 {
			return
		}

		now := time.Now().In(time.Local)
		err := db.WithContext(c.Request.Context()).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "date"}, {Name: "path"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"count": gorm.Expr("count + 1"), "updated_at": now}),
		}).Create(&models.PageView{Date: Midnight(now), Path: c.Request.URL.Path, Count: 1}).Error
		if err != nil {
			utils.Sugar.Warnw("record page view failed", "path", c.Request.URL.Path, "err", err)
		}
	}
}

// Midnight truncates t to the start of its day in t's location.
func Midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
