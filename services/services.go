// Package services holds the domain logic: comment threads, visibility rules
// and the read views handed to the HTTP layer.
package services

import (
	"gorm.io/gorm"

	"github.com/postapi/postapi/storage"
	"github.com/postapi/postapi/utils"
)

// Services bundles every service sharing one database handle.
type Services struct {
	Resolver *Resolver
	Comments *CommentService
	Posts    *PostService
	Groups   *GroupService
	Messages *MessageService
	Users    *UserService
	Tiers    *TierService
}

// New wires the services. images and tierCache may be nil.
func New(db *gorm.DB, images storage.ImageStore, tierCache *utils.RedisCache) *Services {
	resolver := NewResolver(db)
	comments := NewCommentService(db, resolver)
	posts := NewPostService(db, resolver, comments, images)
	return &Services{
		Resolver: resolver,
		Comments: comments,
		Posts:    posts,
		Groups:   NewGroupService(db, resolver, posts, images),
		Messages: NewMessageService(db, resolver),
		Users:    NewUserService(db, images, tierCache),
		Tiers:    NewTierService(db, tierCache),
	}
}
