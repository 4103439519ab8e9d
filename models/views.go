package models

import "time"

// Placeholders used when a referenced author row is missing.
const (
	AnonymousAuthor  = "Anonymous"
	NoProfilePicture = "No picture"
)

// CommentView is a comment joined with its author and its reply tree.
type CommentView struct {
	ID              uint           `json:"comment_id"`
	UserID          *uint          `json:"user_id"`
	PostID          uint           `json:"post_id"`
	ParentCommentID *uint          `json:"parent_comment_id"`
	Content         string         `json:"content"`
	Created         time.Time      `json:"created"`
	Modified        time.Time      `json:"modified"`
	Anonymous       bool           `json:"anonymous"`
	Author          string         `json:"author"`
	ProfilePicture  string         `json:"profile_picture"`
	Replies         int            `json:"replies"`
	ChildComments   []*CommentView `json:"child_comments"`
}

// ImageView is an image joined with the username of its uploader.
type ImageView struct {
	ID     uint   `json:"image_id"`
	PostID uint   `json:"post_id"`
	UserID uint   `json:"user_id"`
	URL    string `json:"image_url"`
	Author string `json:"author"`
}

// PostView is a post joined with author, group and aggregate data.
// When Allowed is false the content fields are withheld.
type PostView struct {
	ID             uint           `json:"post_id"`
	UserID         uint           `json:"user_id"`
	Author         string         `json:"author"`
	FirstName      string         `json:"first_name"`
	LastName       string         `json:"last_name"`
	ProfilePicture string         `json:"profile_picture"`
	GroupID        *uint          `json:"group_id"`
	GroupName      string         `json:"group_name,omitempty"`
	GroupPicture   string         `json:"group_picture,omitempty"`
	Created        time.Time      `json:"created"`
	Modified       time.Time      `json:"modified"`
	Content        string         `json:"content,omitempty"`
	Comments       int            `json:"comments"`
	Images         []ImageView    `json:"images,omitempty"`
	Thread         []*CommentView `json:"thread,omitempty"`
	Allowed        bool           `json:"allowed"`
}

// UserLimited is the public card of a user.
type UserLimited struct {
	ID             uint   `json:"user_id"`
	Username       string `json:"username"`
	ProfilePicture string `json:"profile_picture"`
}

// GroupView is a group with its owner and its members. The owner is never listed in Members.
type GroupView struct {
	ID           uint          `json:"group_id"`
	Name         string        `json:"group_name"`
	Description  string        `json:"group_description"`
	OwnerID      uint          `json:"group_owner"`
	Picture      string        `json:"group_picture"`
	Owner        *UserLimited  `json:"owner"`
	Members      []UserLimited `json:"members"`
	MembersCount int           `json:"members_count"`
}

// MessageView is a message joined with both participants.
type MessageView struct {
	ID                     uint      `json:"message_id"`
	SenderID               uint      `json:"sender"`
	SenderUsername         string    `json:"sender_username"`
	SenderProfilePicture   string    `json:"sender_profile_picture"`
	ReceiverID             uint      `json:"receiver"`
	ReceiverUsername       string    `json:"receiver_username"`
	ReceiverProfilePicture string    `json:"receiver_profile_picture"`
	Content                string    `json:"content"`
	Timestamp              time.Time `json:"timestamp"`
	IsRead                 bool      `json:"is_read"`
}

// UserView is the read model of a user. It never carries the password hash.
type UserView struct {
	ID             uint       `json:"user_id"`
	Username       string     `json:"username"`
	FirstName      string     `json:"first_name"`
	LastName       string     `json:"last_name"`
	Email          string     `json:"email,omitempty"`
	Role           string     `json:"role"`
	Gender         string     `json:"gender"`
	ProfilePicture string     `json:"profile_picture"`
	Bio            string     `json:"bio"`
	Status         string     `json:"status"`
	Created        time.Time  `json:"created"`
	LastLogin      *time.Time `json:"last_login"`
	TierID         *uint      `json:"tier_id"`
	TierName       string     `json:"tier_name"`
}
