package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/postapi/postapi/models"
	"github.com/postapi/postapi/utils"
)

// CommentService assembles comment threads and applies comment mutations.
type CommentService struct {
	db       *gorm.DB
	resolver *Resolver
}

func NewCommentService(db *gorm.DB, resolver *Resolver) *CommentService {
	return &CommentService{db: db, resolver: resolver}
}

// CreateCommentInput carries a new comment. ParentID nil means top level.
type CreateCommentInput struct {
	PostID   uint
	ParentID *uint
	Content  string
}

// ThreadForPost returns the post's top-level comments with their replies nested to full depth.
func (s *CommentService) ThreadForPost(ctx context.Context, p Principal, postID uint, order ThreadOrder) ([]*models.CommentView, error) {
	post, err := s.readablePost(ctx, p, postID)
	if err != nil {
		return nil, err
	}
	return s.thread(ctx, s.db, post.ID, order)
}

func (s *CommentService) thread(ctx context.Context, db *gorm.DB, postID uint, order ThreadOrder) ([]*models.CommentView, error) {
	nodes, err := loadCommentViews(ctx, db, func(q *gorm.DB) *gorm.DB {
		return q.Where("c.post_id = ?", postID)
	})
	if err != nil {
		return nil, wrap("load thread", err)
	}
	return newThreadIndex(nodes, order).forest()
}

// CommentTree returns one comment with its descendants.
func (s *CommentService) CommentTree(ctx context.Context, p Principal, commentID uint, order ThreadOrder) (*models.CommentView, error) {
	var c models.Comment
	if err := s.db.WithContext(ctx).First(&c, commentID).Error; err != nil {
		return nil, wrap("get comment", err)
	}
	if _, err := s.readablePost(ctx, p, c.PostID); err != nil {
		return nil, err
	}
	nodes, err := loadCommentViews(ctx, s.db, func(q *gorm.DB) *gorm.DB {
		return q.Where("c.post_id = ?", c.PostID)
	})
	if err != nil {
		return nil, wrap("load thread", err)
	}
	return newThreadIndex(nodes, order).subtree(commentID)
}

// ListByUsername returns a page of the user's top-level comments, newest first,
// each with its replies. Comments on posts the principal cannot read are left
// out before paging.
func (s *CommentService) ListByUsername(ctx context.Context, p Principal, username string, page, size int) ([]*models.CommentView, error) {
	var author models.User
	if err := s.db.WithContext(ctx).Where("username = ?", strings.ToLower(username)).First(&author).Error; err != nil {
		return nil, wrap("get author", err)
	}

	var tops []models.Comment
	err := s.db.WithContext(ctx).
		Table("comments AS c").
		Select("c.*").
		Joins("JOIN posts AS p ON p.id = c.post_id").
		Where("c.user_id = ? AND c.parent_comment_id IS NULL", author.ID).
		Scopes(s.resolver.readablePosts(p, "p")).
		Order("c.created_at DESC").Order("c.id DESC").
		Scopes(paginate(page, size)).
		Find(&tops).Error
	if err != nil {
		return nil, wrap("list comments", err)
	}
	if len(tops) == 0 {
		return []*models.CommentView{}, nil
	}

	postIDs := make([]uint, 0, len(tops))
	for _, c := range tops {
		postIDs = append(postIDs, c.PostID)
	}
	postIDs = utils.Unique(postIDs)

	nodes, err := loadCommentViews(ctx, s.db, func(q *gorm.DB) *gorm.DB {
		return q.Where("c.post_id IN ?", postIDs)
	})
	if err != nil {
		return nil, wrap("load threads", err)
	}
	ix := newThreadIndex(nodes, OrderNewest)
	out := make([]*models.CommentView, 0, len(tops))
	for _, c := range tops {
		view, err := ix.subtree(c.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, view)
	}
	return out, nil
}

// Create stores a comment. Anonymous principals may comment on public posts.
func (s *CommentService) Create(ctx context.Context, p Principal, in CreateCommentInput) (*models.CommentView, error) {
	content := utils.Sanitize(in.Content)
	if err := checkField("content", content, ruleContent); err != nil {
		return nil, err
	}
	if _, err := s.readablePost(ctx, p, in.PostID); err != nil {
		return nil, err
	}
	if in.ParentID != nil && *in.ParentID == 0 {
		in.ParentID = nil
	}
	if in.ParentID != nil {
		var parent models.Comment
		if err := s.db.WithContext(ctx).First(&parent, *in.ParentID).Error; err != nil {
			return nil, wrap("get parent comment", err)
		}
		if parent.PostID != in.PostID {
			return nil, &ValidationError{Field: "parent_comment_id", Rule: "same_post"}
		}
	}

	comment := models.Comment{
		PostID:          in.PostID,
		ParentCommentID: in.ParentID,
		Content:         content,
	}
	if p.Authenticated() {
		uid := p.UserID
		comment.UserID = &uid
	}
	if err := s.db.WithContext(ctx).Create(&comment).Error; err != nil {
		return nil, wrap("create comment", err)
	}
	return s.CommentTree(ctx, p, comment.ID, OrderNewest)
}

// Update replaces the content of a comment. Only its author or an admin may do so.
func (s *CommentService) Update(ctx context.Context, p Principal, commentID uint, content string) (*models.CommentView, error) {
	if !p.Authenticated() {
		return nil, ErrUnauthenticated
	}
	content = utils.Sanitize(content)
	if err := checkField("content", content, ruleContent); err != nil {
		return nil, err
	}
	var c models.Comment
	if err := s.db.WithContext(ctx).First(&c, commentID).Error; err != nil {
		return nil, wrap("get comment", err)
	}
	if !p.mayModify(c.UserID) {
		return nil, fmt.Errorf("update comment %d: %w", commentID, ErrForbidden)
	}
	err := s.db.WithContext(ctx).Model(&models.Comment{}).
		Where("id = ?", c.ID).
		UpdateColumns(map[string]interface{}{"content": content, "updated_at": time.Now()}).Error
	if err != nil {
		return nil, wrap("update comment", err)
	}
	return s.CommentTree(ctx, p, c.ID, OrderNewest)
}

// Delete removes a comment and its whole reply subtree in one transaction.
func (s *CommentService) Delete(ctx context.Context, p Principal, commentID uint) error {
	if !p.Authenticated() {
		return ErrUnauthenticated
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c models.Comment
		if err := tx.First(&c, commentID).Error; err != nil {
			return wrap("get comment", err)
		}
		if !p.mayModify(c.UserID) {
			return fmt.Errorf("delete comment %d: %w", commentID, ErrForbidden)
		}
		var all []*models.CommentView
		var links []models.Comment
		if err := tx.Select("id", "parent_comment_id", "post_id").Where("post_id = ?", c.PostID).Find(&links).Error; err != nil {
			return wrap("load thread", err)
		}
		for _, l := range links {
			all = append(all, &models.CommentView{ID: l.ID, PostID: l.PostID, ParentCommentID: l.ParentCommentID})
		}
		ids := newThreadIndex(all, OrderNewest).descendants(c.ID)
		if err := tx.Where("id IN ?", ids).Delete(&models.Comment{}).Error; err != nil {
			return wrap("delete comments", err)
		}
		utils.Sugar.Infow("comment deleted", "comment_id", c.ID, "removed", len(ids), "by", p.UserID)
		return nil
	})
}

// readablePost loads a post and checks the principal may read it.
func (s *CommentService) readablePost(ctx context.Context, p Principal, postID uint) (*models.Post, error) {
	var post models.Post
	if err := s.db.WithContext(ctx).First(&post, postID).Error; err != nil {
		return nil, wrap("get post", err)
	}
	if post.GroupID == nil {
		return &post, nil
	}
	ok, err := s.resolver.CanViewGroupPost(ctx, p, *post.GroupID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("post %d: %w", postID, ErrForbidden)
	}
	return &post, nil
}
