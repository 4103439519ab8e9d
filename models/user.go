package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is a registered account. Passwords are stored as bcrypt hashes only.
type User struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	Username       string     `gorm:"size:16;uniqueIndex;not null" json:"username"`
	FirstName      string     `gorm:"size:64" json:"first_name"`
	LastName       string     `gorm:"size:64" json:"last_name"`
	Email          string     `gorm:"size:128;uniqueIndex;not null" json:"email"`
	Role           string     `gorm:"size:16;not null;default:'user'" json:"role"`
	PasswordHash   string     `gorm:"size:255" json:"-"`
	Gender         string     `gorm:"size:20" json:"gender"`
	Birthday       *time.Time `json:"birthday"`
	ProfilePicture *string    `gorm:"size:255" json:"profile_picture"`
	Bio            string     `gorm:"size:255" json:"bio"`
	Status         string     `gorm:"size:20" json:"status"`
	LastLogin      *time.Time `json:"last_login"`
	TierID         *uint      `gorm:"index" json:"tier_id"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// BeforeCreate hook ensures timestamps are set even when not provided.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	now := time.Now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	if u.Role == "" {
		u.Role = RoleUser
	}
	return nil
}

// BeforeUpdate ensures the UpdatedAt timestamp is refreshed.
func (u *User) BeforeUpdate(tx *gorm.DB) error {
	u.UpdatedAt = time.Now()
	return nil
}

// ReaderTier is a subscription tier a user may be assigned to.
type ReaderTier struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Name        string `gorm:"size:64;not null" json:"name"`
	Description string `gorm:"size:255" json:"description"`
}
