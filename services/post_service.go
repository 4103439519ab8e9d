package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/postapi/postapi/models"
	"github.com/postapi/postapi/storage"
	"github.com/postapi/postapi/utils"
)

// PostService creates posts and returns visibility-resolved post views.
type PostService struct {
	db       *gorm.DB
	resolver *Resolver
	comments *CommentService
	images   storage.ImageStore
}

func NewPostService(db *gorm.DB, resolver *Resolver, comments *CommentService, images storage.ImageStore) *PostService {
	return &PostService{db: db, resolver: resolver, comments: comments, images: images}
}

// CreatePostInput carries a new post. A nil GroupID makes the post public.
type CreatePostInput struct {
	GroupID *uint
	Content string
	Files   []storage.FileUpload
}

// UpdatePostInput changes a post. Nil Content keeps the current text; Files are appended.
type UpdatePostInput struct {
	Content *string
	Files   []storage.FileUpload
}

func (s *PostService) Create(ctx context.Context, p Principal, in CreatePostInput) (*models.PostView, error) {
	if !p.Authenticated() {
		return nil, ErrUnauthenticated
	}
	content := utils.Sanitize(in.Content)
	if err := checkField("content", content, ruleContent); err != nil {
		return nil, err
	}
	if in.GroupID != nil && *in.GroupID == 0 {
		in.GroupID = nil
	}
	if in.GroupID != nil {
		var g models.Group
		if err := s.db.WithContext(ctx).First(&g, *in.GroupID).Error; err != nil {
			return nil, wrap("get group", err)
		}
		ok, err := s.resolver.CanViewGroupPost(ctx, p, g.ID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("post to group %d: %w", g.ID, ErrForbidden)
		}
	}

	urls, err := uploadImages(ctx, s.images, in.Files)
	if err != nil {
		return nil, err
	}

	post := models.Post{UserID: p.UserID, GroupID: in.GroupID, Content: content}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&post).Error; err != nil {
			return wrap("create post", err)
		}
		return attachImages(tx, post.ID, p.UserID, urls)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, p, post.ID, OrderNewest)
}

// Get returns one post with images and comment thread when the principal may read it.
func (s *PostService) Get(ctx context.Context, p Principal, postID uint, order ThreadOrder) (*models.PostView, error) {
	views, err := loadPostViews(ctx, s.db, func(q *gorm.DB) *gorm.DB {
		return q.Where("p.id = ?", postID)
	})
	if err != nil {
		return nil, wrap("get post", err)
	}
	if len(views) == 0 {
		return nil, fmt.Errorf("post %d: %w", postID, ErrNotFound)
	}
	view := views[0]
	if err := s.resolver.ResolvePostVisibility(ctx, p, view); err != nil {
		return nil, err
	}
	if !view.Allowed {
		return view, nil
	}
	if err := s.attachImageViews(ctx, views); err != nil {
		return nil, err
	}
	thread, err := s.comments.thread(ctx, s.db, view.ID, order)
	if err != nil {
		return nil, err
	}
	view.Thread = thread
	return view, nil
}

// List returns a page of all posts, newest first.
func (s *PostService) List(ctx context.Context, p Principal, page, size int) ([]*models.PostView, error) {
	return s.list(ctx, p, page, size, nil)
}

// ListByUsername returns a page of one author's posts, newest first.
func (s *PostService) ListByUsername(ctx context.Context, p Principal, username string, page, size int) ([]*models.PostView, error) {
	var author models.User
	if err := s.db.WithContext(ctx).Where("username = ?", strings.ToLower(username)).First(&author).Error; err != nil {
		return nil, wrap("get author", err)
	}
	return s.list(ctx, p, page, size, func(q *gorm.DB) *gorm.DB {
		return q.Where("p.user_id = ?", author.ID)
	})
}

// ListByGroup returns a page of a group's posts. Non-members get locked placeholders.
func (s *PostService) ListByGroup(ctx context.Context, p Principal, groupID uint, page, size int) ([]*models.PostView, error) {
	var g models.Group
	if err := s.db.WithContext(ctx).First(&g, groupID).Error; err != nil {
		return nil, wrap("get group", err)
	}
	return s.list(ctx, p, page, size, func(q *gorm.DB) *gorm.DB {
		return q.Where("p.group_id = ?", g.ID)
	})
}

func (s *PostService) list(ctx context.Context, p Principal, page, size int, filter Scope) ([]*models.PostView, error) {
	scopes := []Scope{
		func(q *gorm.DB) *gorm.DB { return q.Order("p.created_at DESC").Order("p.id DESC") },
		paginate(page, size),
	}
	if filter != nil {
		scopes = append(scopes, filter)
	}
	views, err := loadPostViews(ctx, s.db, scopes...)
	if err != nil {
		return nil, wrap("list posts", err)
	}
	if err := s.resolver.resolveAll(ctx, p, views); err != nil {
		return nil, err
	}
	if err := s.attachImageViews(ctx, views); err != nil {
		return nil, err
	}
	return views, nil
}

func (s *PostService) attachImageViews(ctx context.Context, views []*models.PostView) error {
	ids := make([]uint, 0, len(views))
	for _, v := range views {
		if v.Allowed {
			ids = append(ids, v.ID)
		}
	}
	images, err := loadImageViews(ctx, s.db, ids)
	if err != nil {
		return wrap("load images", err)
	}
	for _, v := range views {
		if v.Allowed {
			v.Images = images[v.ID]
		}
	}
	return nil
}

// Update changes the content and appends images. Only the author or an admin may update.
func (s *PostService) Update(ctx context.Context, p Principal, postID uint, in UpdatePostInput) (*models.PostView, error) {
	if !p.Authenticated() {
		return nil, ErrUnauthenticated
	}
	var content string
	if in.Content != nil {
		content = utils.Sanitize(*in.Content)
		if err := checkField("content", content, ruleContent); err != nil {
			return nil, err
		}
	}
	var post models.Post
	if err := s.db.WithContext(ctx).First(&post, postID).Error; err != nil {
		return nil, wrap("get post", err)
	}
	if !p.mayModify(&post.UserID) {
		return nil, fmt.Errorf("update post %d: %w", postID, ErrForbidden)
	}

	urls, err := uploadImages(ctx, s.images, in.Files)
	if err != nil {
		return nil, err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		changes := map[string]interface{}{"updated_at": time.Now()}
		if in.Content != nil {
			changes["content"] = content
		}
		if err := tx.Model(&models.Post{}).Where("id = ?", post.ID).UpdateColumns(changes).Error; err != nil {
			return wrap("update post", err)
		}
		return attachImages(tx, post.ID, p.UserID, urls)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, p, post.ID, OrderNewest)
}

// Delete removes the post with its comments and images in one transaction.
func (s *PostService) Delete(ctx context.Context, p Principal, postID uint) error {
	if !p.Authenticated() {
		return ErrUnauthenticated
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var post models.Post
		if err := tx.First(&post, postID).Error; err != nil {
			return wrap("get post", err)
		}
		if !p.mayModify(&post.UserID) {
			return fmt.Errorf("delete post %d: %w", postID, ErrForbidden)
		}
		if err := deletePosts(tx, []uint{post.ID}); err != nil {
			return err
		}
		utils.Sugar.Infow("post deleted", "post_id", post.ID, "by", p.UserID)
		return nil
	})
}

func attachImages(tx *gorm.DB, postID, userID uint, urls []string) error {
	if len(urls) == 0 {
		return nil
	}
	images := make([]models.Image, 0, len(urls))
	for _, u := range urls {
		images = append(images, models.Image{PostID: postID, UserID: userID, URL: u})
	}
	if err := tx.Create(&images).Error; err != nil {
		return wrap("attach images", err)
	}
	return nil
}

// deletePosts removes posts and everything that depends on them. It must run inside a transaction.
func deletePosts(tx *gorm.DB, postIDs []uint) error {
	if len(postIDs) == 0 {
		return nil
	}
	if err := tx.Where("post_id IN ?", postIDs).Delete(&models.Comment{}).Error; err != nil {
		return wrap("delete comments", err)
	}
	if err := tx.Where("post_id IN ?", postIDs).Delete(&models.Image{}).Error; err != nil {
		return wrap("delete images", err)
	}
	if err := tx.Where("id IN ?", postIDs).Delete(&models.Post{}).Error; err != nil {
		return wrap("delete posts", err)
	}
	return nil
}
