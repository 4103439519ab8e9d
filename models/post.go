package models

import "time"

// Post is a status update. Posts with a GroupID are only readable by the group's members.
type Post struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	GroupID   *uint     `gorm:"index" json:"group_id"`
	Content   string    `gorm:"size:255;not null" json:"content"`
	CreatedAt time.Time `json:"created"`
	UpdatedAt time.Time `json:"modified"`
}

// Image is an uploaded picture attached to a post.
type Image struct {
	ID     uint   `gorm:"primaryKey" json:"id"`
	PostID uint   `gorm:"index;not null" json:"post_id"`
	UserID uint   `gorm:"index;not null" json:"user_id"`
	URL    string `gorm:"size:1024;not null" json:"url"`
}
