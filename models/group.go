package models

// Group is a private space owned by one user. Its posts are visible to members only.
type Group struct {
	ID          uint    `gorm:"primaryKey" json:"id"`
	Name        string  `gorm:"size:255;uniqueIndex;not null" json:"name"`
	Description string  `gorm:"size:255" json:"description"`
	OwnerID     uint    `gorm:"index;not null" json:"owner_id"`
	Picture     *string `gorm:"size:1024" json:"picture"`
}

// GroupMember is one row of the user/group membership relation.
type GroupMember struct {
	ID      uint `gorm:"primaryKey" json:"id"`
	UserID  uint `gorm:"index;not null" json:"user_id"`
	GroupID uint `gorm:"index;not null" json:"group_id"`
}

// TableName avoids the reserved word GROUPS on MySQL 8.
func (Group) TableName() string { return "user_groups" }
