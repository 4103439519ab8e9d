package services

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/postapi/postapi/models"
)

// Row types below are scanned from LEFT JOIN projections. Author columns are
// pointers because the joined user row may not exist.

type commentRow struct {
	ID              uint
	UserID          *uint
	PostID          uint
	ParentCommentID *uint
	Content         string
	Anonymous       bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Username        *string
	ProfilePicture  *string
}

type postRow struct {
	ID             uint
	UserID         uint
	GroupID        *uint
	Content        string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Username       *string
	FirstName      *string
	LastName       *string
	ProfilePicture *string
	GroupName      *string
	GroupPicture   *string
	CommentCount   int64
}

type imageRow struct {
	ID       uint
	PostID   uint
	UserID   uint
	URL      string
	Username *string
}

type messageRow struct {
	ID                     uint
	SenderID               uint
	ReceiverID             uint
	Content                string
	IsRead                 bool
	CreatedAt              time.Time
	SenderUsername         *string
	SenderProfilePicture   *string
	ReceiverUsername       *string
	ReceiverProfilePicture *string
}

type groupRow struct {
	ID                  uint
	Name                string
	Description         string
	OwnerID             uint
	Picture             *string
	OwnerUsername       *string
	OwnerProfilePicture *string
}

type memberRow struct {
	GroupID        uint
	UserID         uint
	Username       *string
	ProfilePicture *string
}

type userRow struct {
	ID             uint
	Username       string
	FirstName      string
	LastName       string
	Email          string
	Role           string
	Gender         string
	ProfilePicture *string
	Bio            string
	Status         string
	CreatedAt      time.Time
	LastLogin      *time.Time
	TierID         *uint
	TierName       *string
}

func authorName(username *string) string {
	if username == nil || *username == "" {
		return models.AnonymousAuthor
	}
	return *username
}

func pictureOrDefault(p *string) string {
	if p == nil || *p == "" {
		return models.NoProfilePicture
	}
	return *p
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func commentViewFromRow(r commentRow) *models.CommentView {
	v := &models.CommentView{
		ID:              r.ID,
		UserID:          r.UserID,
		PostID:          r.PostID,
		ParentCommentID: r.ParentCommentID,
		Content:         r.Content,
		Created:         r.CreatedAt,
		Modified:        r.UpdatedAt,
		Anonymous:       r.UserID == nil,
		Author:          authorName(r.Username),
		ProfilePicture:  pictureOrDefault(r.ProfilePicture),
		ChildComments:   []*models.CommentView{},
	}
	if r.UserID == nil {
		v.Author = models.AnonymousAuthor
		v.ProfilePicture = models.NoProfilePicture
	}
	return v
}

func postViewFromRow(r postRow) *models.PostView {
	return &models.PostView{
		ID:             r.ID,
		UserID:         r.UserID,
		Author:         authorName(r.Username),
		FirstName:      deref(r.FirstName),
		LastName:       deref(r.LastName),
		ProfilePicture: pictureOrDefault(r.ProfilePicture),
		GroupID:        r.GroupID,
		GroupName:      deref(r.GroupName),
		GroupPicture:   deref(r.GroupPicture),
		Created:        r.CreatedAt,
		Modified:       r.UpdatedAt,
		Content:        r.Content,
		Comments:       int(r.CommentCount),
		Allowed:        true,
	}
}

func imageViewFromRow(r imageRow) models.ImageView {
	return models.ImageView{
		ID:     r.ID,
		PostID: r.PostID,
		UserID: r.UserID,
		URL:    r.URL,
		Author: authorName(r.Username),
	}
}

func messageViewFromRow(r messageRow) models.MessageView {
	return models.MessageView{
		ID:                     r.ID,
		SenderID:               r.SenderID,
		SenderUsername:         authorName(r.SenderUsername),
		SenderProfilePicture:   pictureOrDefault(r.SenderProfilePicture),
		ReceiverID:             r.ReceiverID,
		ReceiverUsername:       authorName(r.ReceiverUsername),
		ReceiverProfilePicture: pictureOrDefault(r.ReceiverProfilePicture),
		Content:                r.Content,
		Timestamp:              r.CreatedAt,
		IsRead:                 r.IsRead,
	}
}

// groupViewFrom lists every member once and never lists the owner, who is
// reported in Owner and counted exactly once in MembersCount.
func groupViewFrom(g groupRow, members []memberRow) models.GroupView {
	view := models.GroupView{
		ID:          g.ID,
		Name:        g.Name,
		Description: g.Description,
		OwnerID:     g.OwnerID,
		Picture:     pictureOrDefault(g.Picture),
		Owner: &models.UserLimited{
			ID:             g.OwnerID,
			Username:       authorName(g.OwnerUsername),
			ProfilePicture: pictureOrDefault(g.OwnerProfilePicture),
		},
		Members: []models.UserLimited{},
	}
	seen := map[uint]bool{g.OwnerID: true}
	for _, m := range members {
		if m.GroupID != g.ID || seen[m.UserID] {
			continue
		}
		seen[m.UserID] = true
		view.Members = append(view.Members, models.UserLimited{
			ID:             m.UserID,
			Username:       authorName(m.Username),
			ProfilePicture: pictureOrDefault(m.ProfilePicture),
		})
	}
	view.MembersCount = len(view.Members) + 1
	return view
}

func userViewFrom(r userRow, withEmail bool) models.UserView {
	v := models.UserView{
		ID:             r.ID,
		Username:       r.Username,
		FirstName:      r.FirstName,
		LastName:       r.LastName,
		Role:           r.Role,
		Gender:         r.Gender,
		ProfilePicture: pictureOrDefault(r.ProfilePicture),
		Bio:            r.Bio,
		Status:         r.Status,
		Created:        r.CreatedAt,
		LastLogin:      r.LastLogin,
		TierID:         r.TierID,
		TierName:       deref(r.TierName),
	}
	if withEmail {
		v.Email = r.Email
	}
	return v
}

// Scope narrows a projection query, for example with Where, Order or paging.
type Scope = func(*gorm.DB) *gorm.DB

func loadCommentViews(ctx context.Context, db *gorm.DB, scopes ...Scope) ([]*models.CommentView, error) {
	var rows []commentRow
	err := db.WithContext(ctx).
		Table("comments AS c").
		Select("c.id, c.user_id, c.post_id, c.parent_comment_id, c.content, c.anonymous, c.created_at, c.updated_at, u.username, u.profile_picture").
		Joins("LEFT JOIN users u ON u.id = c.user_id").
		Scopes(scopes...).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	views := make([]*models.CommentView, 0, len(rows))
	for _, r := range rows {
		views = append(views, commentViewFromRow(r))
	}
	return views, nil
}

func loadPostViews(ctx context.Context, db *gorm.DB, scopes ...Scope) ([]*models.PostView, error) {
	var rows []postRow
	err := db.WithContext(ctx).
		Table("posts AS p").
		Select("p.id, p.user_id, p.group_id, p.content, p.created_at, p.updated_at, " +
			"u.username, u.first_name, u.last_name, u.profile_picture, " +
			"g.name AS group_name, g.picture AS group_picture, " +
			"(SELECT COUNT(*) FROM comments c WHERE c.post_id = p.id) AS comment_count").
		Joins("LEFT JOIN users u ON u.id = p.user_id").
		Joins("LEFT JOIN user_groups g ON g.id = p.group_id").
		Scopes(scopes...).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	views := make([]*models.PostView, 0, len(rows))
	for _, r := range rows {
		views = append(views, postViewFromRow(r))
	}
	return views, nil
}

// loadImageViews returns the images of the given posts keyed by post id.
func loadImageViews(ctx context.Context, db *gorm.DB, postIDs []uint) (map[uint][]models.ImageView, error) {
	out := make(map[uint][]models.ImageView, len(postIDs))
	if len(postIDs) == 0 {
		return out, nil
	}
	var rows []imageRow
	err := db.WithContext(ctx).
		Table("images AS i").
		Select("i.id, i.post_id, i.user_id, i.url, u.username").
		Joins("LEFT JOIN users u ON u.id = i.user_id").
		Where("i.post_id IN ?", postIDs).
		Order("i.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.PostID] = append(out[r.PostID], imageViewFromRow(r))
	}
	return out, nil
}

func loadMessageViews(ctx context.Context, db *gorm.DB, scopes ...Scope) ([]models.MessageView, error) {
	var rows []messageRow
	err := db.WithContext(ctx).
		Table("messages AS m").
		Select("m.id, m.sender_id, m.receiver_id, m.content, m.is_read, m.created_at, " +
			"s.username AS sender_username, s.profile_picture AS sender_profile_picture, " +
			"r.username AS receiver_username, r.profile_picture AS receiver_profile_picture").
		Joins("LEFT JOIN users s ON s.id = m.sender_id").
		Joins("LEFT JOIN users r ON r.id = m.receiver_id").
		Scopes(scopes...).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	views := make([]models.MessageView, 0, len(rows))
	for _, r := range rows {
		views = append(views, messageViewFromRow(r))
	}
	return views, nil
}

func loadGroupViews(ctx context.Context, db *gorm.DB, scopes ...Scope) ([]models.GroupView, error) {
	var groups []groupRow
	err := db.WithContext(ctx).
		Table("user_groups AS g").
		Select("g.id, g.name, g.description, g.owner_id, g.picture, " +
			"o.username AS owner_username, o.profile_picture AS owner_profile_picture").
		Joins("LEFT JOIN users o ON o.id = g.owner_id").
		Scopes(scopes...).
		Scan(&groups).Error
	if err != nil {
		return nil, err
	}
	if len(groups) == 0 {
		return []models.GroupView{}, nil
	}

	ids := make([]uint, 0, len(groups))
	for _, g := range groups {
		ids = append(ids, g.ID)
	}
	var members []memberRow
	err = db.WithContext(ctx).
		Table("group_members AS gm").
		Select("gm.group_id, gm.user_id, u.username, u.profile_picture").
		Joins("LEFT JOIN users u ON u.id = gm.user_id").
		Where("gm.group_id IN ?", ids).
		Order("gm.id ASC").
		Scan(&members).Error
	if err != nil {
		return nil, err
	}
	byGroup := make(map[uint][]memberRow, len(groups))
	for _, m := range members {
		byGroup[m.GroupID] = append(byGroup[m.GroupID], m)
	}

	views := make([]models.GroupView, 0, len(groups))
	for _, g := range groups {
		views = append(views, groupViewFrom(g, byGroup[g.ID]))
	}
	return views, nil
}

func loadUserViews(ctx context.Context, db *gorm.DB, withEmail bool, scopes ...Scope) ([]models.UserView, error) {
	var rows []userRow
	err := db.WithContext(ctx).
		Table("users AS u").
		Select("u.id, u.username, u.first_name, u.last_name, u.email, u.role, u.gender, u.profile_picture, " +
			"u.bio, u.status, u.created_at, u.last_login, u.tier_id, t.name AS tier_name").
		Joins("LEFT JOIN reader_tiers t ON t.id = u.tier_id").
		Scopes(scopes...).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	views := make([]models.UserView, 0, len(rows))
	for _, r := range rows {
		views = append(views, userViewFrom(r, withEmail))
	}
	return views, nil
}

// paginate mirrors the request defaults: page 1, size 10, at most 100.
func paginate(page, size int) Scope {
	page, size = normalizePage(page, size)
	return func(db *gorm.DB) *gorm.DB {
		return db.Offset((page - 1) * size).Limit(size)
	}
}

func normalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 10
	}
	if size > 100 {
		size = 100
	}
	return page, size
}
