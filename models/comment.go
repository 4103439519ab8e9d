package models

import (
	"time"

	"gorm.io/gorm"
)

// Comment is a reply to a post or to another comment. Comments without a UserID
// were posted anonymously.
type Comment struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	UserID          *uint     `gorm:"index" json:"user_id"`
	PostID          uint      `gorm:"index;not null" json:"post_id"`
	ParentCommentID *uint     `gorm:"index" json:"parent_comment_id"`
	Content         string    `gorm:"size:255;not null" json:"content"`
	Anonymous       bool      `gorm:"not null;default:false" json:"anonymous"`
	CreatedAt       time.Time `json:"created"`
	UpdatedAt       time.Time `json:"modified"`
}

// BeforeSave keeps the anonymous flag in sync with the author reference.
func (c *Comment) BeforeSave(tx *gorm.DB) error {
	c.Anonymous = c.UserID == nil
	return nil
}
