package services

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/postapi/postapi/models"
	"github.com/postapi/postapi/storage"
	"github.com/postapi/postapi/utils"
)

// GroupService manages groups and the membership relation.
type GroupService struct {
	db       *gorm.DB
	resolver *Resolver
	posts    *PostService
	images   storage.ImageStore
}

func NewGroupService(db *gorm.DB, resolver *Resolver, posts *PostService, images storage.ImageStore) *GroupService {
	return &GroupService{db: db, resolver: resolver, posts: posts, images: images}
}

type CreateGroupInput struct {
	Name        string
	Description string
	Picture     storage.FileUpload
}

// UpdateGroupInput changes only the fields that are set.
type UpdateGroupInput struct {
	Name        *string
	Description *string
	Picture     storage.FileUpload
}

// Create stores the group and makes its owner the first member.
func (s *GroupService) Create(ctx context.Context, p Principal, in CreateGroupInput) (*models.GroupView, error) {
	if !p.Authenticated() {
		return nil, ErrUnauthenticated
	}
	name := utils.PlainText(in.Name)
	desc := utils.PlainText(in.Description)
	if err := checkFields(
		checkField("group_name", name, ruleGroupText),
		checkField("group_description", desc, ruleGroupText),
	); err != nil {
		return nil, err
	}
	exists, err := s.Exists(ctx, name)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("group %q: %w", name, ErrConflict)
	}

	picture, err := uploadImage(ctx, s.images, in.Picture)
	if err != nil {
		return nil, err
	}
	group := models.Group{Name: name, Description: desc, OwnerID: p.UserID}
	if picture != "" {
		group.Picture = &picture
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&group).Error; err != nil {
			return wrap("create group", err)
		}
		if err := tx.Create(&models.GroupMember{UserID: p.UserID, GroupID: group.ID}).Error; err != nil {
			return wrap("add owner membership", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, group.ID)
}

func (s *GroupService) Get(ctx context.Context, groupID uint) (*models.GroupView, error) {
	views, err := loadGroupViews(ctx, s.db, func(q *gorm.DB) *gorm.DB {
		return q.Where("g.id = ?", groupID)
	})
	if err != nil {
		return nil, wrap("get group", err)
	}
	if len(views) == 0 {
		return nil, fmt.Errorf("group %d: %w", groupID, ErrNotFound)
	}
	return &views[0], nil
}

func (s *GroupService) List(ctx context.Context) ([]models.GroupView, error) {
	views, err := loadGroupViews(ctx, s.db, func(q *gorm.DB) *gorm.DB {
		return q.Order("g.id ASC")
	})
	if err != nil {
		return nil, wrap("list groups", err)
	}
	return views, nil
}

// Exists reports whether a group with this exact name exists.
func (s *GroupService) Exists(ctx context.Context, name string) (bool, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.Group{}).Where("name = ?", name).Count(&n).Error; err != nil {
		return false, wrap("group exists", err)
	}
	return n > 0, nil
}

// Update changes name, description or picture. Only the owner may update.
func (s *GroupService) Update(ctx context.Context, p Principal, groupID uint, in UpdateGroupInput) (*models.GroupView, error) {
	if !p.Authenticated() {
		return nil, ErrUnauthenticated
	}
	var g models.Group
	if err := s.db.WithContext(ctx).First(&g, groupID).Error; err != nil {
		return nil, wrap("get group", err)
	}
	if !p.Is(g.OwnerID) {
		return nil, fmt.Errorf("update group %d: %w", groupID, ErrForbidden)
	}

	changes := map[string]interface{}{}
	if in.Name != nil {
		name := utils.PlainText(*in.Name)
		if err := checkField("group_name", name, ruleGroupText); err != nil {
			return nil, err
		}
		if name != g.Name {
			var n int64
			if err := s.db.WithContext(ctx).Model(&models.Group{}).Where("name = ? AND id <> ?", name, g.ID).Count(&n).Error; err != nil {
				return nil, wrap("group exists", err)
			}
			if n > 0 {
				return nil, fmt.Errorf("group %q: %w", name, ErrConflict)
			}
			changes["name"] = name
		}
	}
	if in.Description != nil {
		desc := utils.PlainText(*in.Description)
		if err := checkField("group_description", desc, ruleGroupText); err != nil {
			return nil, err
		}
		changes["description"] = desc
	}
	picture, err := uploadImage(ctx, s.images, in.Picture)
	if err != nil {
		return nil, err
	}
	if picture != "" {
		changes["picture"] = picture
	}
	if len(changes) > 0 {
		if err := s.db.WithContext(ctx).Model(&models.Group{}).Where("id = ?", g.ID).UpdateColumns(changes).Error; err != nil {
			return nil, wrap("update group", err)
		}
	}
	return s.Get(ctx, g.ID)
}

// Delete removes the group, its posts with their comments and images, and its
// memberships in one transaction. Owner or admin only.
func (s *GroupService) Delete(ctx context.Context, p Principal, groupID uint) error {
	if !p.Authenticated() {
		return ErrUnauthenticated
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var g models.Group
		if err := tx.First(&g, groupID).Error; err != nil {
			return wrap("get group", err)
		}
		if !p.Is(g.OwnerID) && !p.IsAdmin() {
			return fmt.Errorf("delete group %d: %w", groupID, ErrForbidden)
		}
		var postIDs []uint
		if err := tx.Model(&models.Post{}).Where("group_id = ?", g.ID).Pluck("id", &postIDs).Error; err != nil {
			return wrap("list group posts", err)
		}
		if err := deletePosts(tx, postIDs); err != nil {
			return err
		}
		if err := tx.Where("group_id = ?", g.ID).Delete(&models.GroupMember{}).Error; err != nil {
			return wrap("delete memberships", err)
		}
		if err := tx.Delete(&models.Group{}, g.ID).Error; err != nil {
			return wrap("delete group", err)
		}
		utils.Sugar.Infow("group deleted", "group_id", g.ID, "posts", len(postIDs), "by", p.UserID)
		return nil
	})
}

// Join adds the principal to the group. An existing membership yields
// ErrAlreadyMember and leaves the relation unchanged.
func (s *GroupService) Join(ctx context.Context, p Principal, groupID uint) error {
	if !p.Authenticated() {
		return ErrUnauthenticated
	}
	var g models.Group
	if err := s.db.WithContext(ctx).First(&g, groupID).Error; err != nil {
		return wrap("get group", err)
	}
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.GroupMember{}).
		Where("user_id = ? AND group_id = ?", p.UserID, g.ID).
		Count(&n).Error; err != nil {
		return wrap("check membership", err)
	}
	if n > 0 {
		return fmt.Errorf("join group %d: %w", g.ID, ErrAlreadyMember)
	}
	if err := s.db.WithContext(ctx).Create(&models.GroupMember{UserID: p.UserID, GroupID: g.ID}).Error; err != nil {
		return wrap("join group", err)
	}
	return nil
}

// Leave removes every membership row of the principal in the group. Leaving a
// group one is not a member of succeeds.
func (s *GroupService) Leave(ctx context.Context, p Principal, groupID uint) error {
	if !p.Authenticated() {
		return ErrUnauthenticated
	}
	var g models.Group
	if err := s.db.WithContext(ctx).First(&g, groupID).Error; err != nil {
		return wrap("get group", err)
	}
	res := s.db.WithContext(ctx).Where("user_id = ? AND group_id = ?", p.UserID, g.ID).Delete(&models.GroupMember{})
	if res.Error != nil {
		return wrap("leave group", res.Error)
	}
	utils.Sugar.Debugw("left group", "group_id", g.ID, "user_id", p.UserID, "rows", res.RowsAffected)
	return nil
}

// Posts lists the group's posts as seen by the principal.
func (s *GroupService) Posts(ctx context.Context, p Principal, groupID uint, page, size int) ([]*models.PostView, error) {
	return s.posts.ListByGroup(ctx, p, groupID, page, size)
}
