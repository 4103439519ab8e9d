package services

import (
	"context"

	"gorm.io/gorm"

	"github.com/postapi/postapi/models"
)

// Resolver decides what a principal may read. Group content is readable by the
// group owner and by users holding a membership row; messages are readable by
// their receiver; conversations by either participant.
type Resolver struct {
	db *gorm.DB
}

func NewResolver(db *gorm.DB) *Resolver {
	return &Resolver{db: db}
}

// CanViewGroupPost reports whether p owns or belongs to the group.
func (r *Resolver) CanViewGroupPost(ctx context.Context, p Principal, groupID uint) (bool, error) {
	visible, err := r.visibleGroups(ctx, p, []uint{groupID})
	if err != nil {
		return false, err
	}
	return visible[groupID], nil
}

// visibleGroups answers CanViewGroupPost for many groups with two queries.
func (r *Resolver) visibleGroups(ctx context.Context, p Principal, groupIDs []uint) (map[uint]bool, error) {
	out := make(map[uint]bool, len(groupIDs))
	if !p.Authenticated() || len(groupIDs) == 0 {
		return out, nil
	}
	db := r.db.WithContext(ctx)

	var owned []uint
	if err := db.Model(&models.Group{}).
		Where("id IN ? AND owner_id = ?", groupIDs, p.UserID).
		Pluck("id", &owned).Error; err != nil {
		return nil, wrap("resolve owned groups", err)
	}
	var joined []uint
	if err := db.Model(&models.GroupMember{}).
		Where("group_id IN ? AND user_id = ?", groupIDs, p.UserID).
		Pluck("group_id", &joined).Error; err != nil {
		return nil, wrap("resolve memberships", err)
	}
	for _, id := range owned {
		out[id] = true
	}
	for _, id := range joined {
		out[id] = true
	}
	return out, nil
}

// readablePosts narrows a query joined on posts (aliased as table) to the
// posts p may read: public posts plus posts in groups p owns or belongs to.
func (r *Resolver) readablePosts(p Principal, table string) Scope {
	col := table + ".group_id"
	return func(q *gorm.DB) *gorm.DB {
		if !p.Authenticated() {
			return q.Where(col + " IS NULL")
		}
		owned := r.db.Model(&models.Group{}).Select("id").Where("owner_id = ?", p.UserID)
		joined := r.db.Model(&models.GroupMember{}).Select("group_id").Where("user_id = ?", p.UserID)
		return q.Where("("+col+" IS NULL OR "+col+" IN (?) OR "+col+" IN (?))", owned, joined)
	}
}

// CanViewMessage reports whether p may open (and mark read) the message.
func (r *Resolver) CanViewMessage(p Principal, m models.Message) bool {
	return p.Is(m.ReceiverID)
}

// CanViewConversation reports whether p takes part in the a/b conversation.
func (r *Resolver) CanViewConversation(p Principal, a, b uint) bool {
	return p.Is(a) || p.Is(b)
}

// ResolvePostVisibility sets Allowed on view and withholds its content when
// the principal may not read it. Group name and picture stay visible.
func (r *Resolver) ResolvePostVisibility(ctx context.Context, p Principal, view *models.PostView) error {
	return r.resolveAll(ctx, p, []*models.PostView{view})
}

func (r *Resolver) resolveAll(ctx context.Context, p Principal, views []*models.PostView) error {
	var groupIDs []uint
	for _, v := range views {
		if v.GroupID != nil {
			groupIDs = append(groupIDs, *v.GroupID)
		}
	}
	visible, err := r.visibleGroups(ctx, p, groupIDs)
	if err != nil {
		return err
	}
	for _, v := range views {
		if v.GroupID == nil {
			v.Allowed = true
			continue
		}
		v.Allowed = visible[*v.GroupID]
		if !v.Allowed {
			withhold(v)
		}
	}
	return nil
}

func withhold(v *models.PostView) {
	v.Content = ""
	v.Images = nil
	v.Comments = 0
	v.Thread = nil
}
