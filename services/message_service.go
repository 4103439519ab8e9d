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

// MessageService sends and reads direct messages.
type MessageService struct {
	db       *gorm.DB
	resolver *Resolver
}

func NewMessageService(db *gorm.DB, resolver *Resolver) *MessageService {
	return &MessageService{db: db, resolver: resolver}
}

// Send delivers a message to the named user and refreshes the sender's last-seen time.
func (s *MessageService) Send(ctx context.Context, p Principal, receiverUsername, content string) (*models.MessageView, error) {
	if !p.Authenticated() {
		return nil, ErrUnauthenticated
	}
	content = utils.Sanitize(content)
	if err := checkField("content", content, ruleMessage); err != nil {
		return nil, err
	}
	receiver, err := s.userByName(ctx, receiverUsername)
	if err != nil {
		return nil, err
	}

	msg := models.Message{SenderID: p.UserID, ReceiverID: receiver.ID, Content: content}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&msg).Error; err != nil {
			return wrap("send message", err)
		}
		now := time.Now()
		if err := tx.Model(&models.User{}).Where("id = ?", p.UserID).UpdateColumn("last_login", &now).Error; err != nil {
			return wrap("touch sender", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.view(ctx, msg.ID)
}

// Get opens a message. Only its receiver may do so; opening marks it read.
func (s *MessageService) Get(ctx context.Context, p Principal, messageID uint) (*models.MessageView, error) {
	if !p.Authenticated() {
		return nil, ErrUnauthenticated
	}
	var msg models.Message
	if err := s.db.WithContext(ctx).First(&msg, messageID).Error; err != nil {
		return nil, wrap("get message", err)
	}
	if !s.resolver.CanViewMessage(p, msg) {
		return nil, fmt.Errorf("message %d: %w", messageID, ErrForbidden)
	}
	if !msg.IsRead {
		if err := s.db.WithContext(ctx).Model(&models.Message{}).Where("id = ?", msg.ID).UpdateColumn("is_read", true).Error; err != nil {
			return nil, wrap("mark read", err)
		}
	}
	return s.view(ctx, msg.ID)
}

// Inbox lists the messages the principal received, newest first.
func (s *MessageService) Inbox(ctx context.Context, p Principal) ([]models.MessageView, error) {
	if !p.Authenticated() {
		return nil, ErrUnauthenticated
	}
	views, err := loadMessageViews(ctx, s.db, func(q *gorm.DB) *gorm.DB {
		return q.Where("m.receiver_id = ?", p.UserID).Order("m.created_at DESC").Order("m.id DESC")
	})
	if err != nil {
		return nil, wrap("inbox", err)
	}
	return views, nil
}

// Conversation returns one page of messages exchanged between two users. The
// page holds the most recent messages, returned oldest first. Only a
// participant may list it.
func (s *MessageService) Conversation(ctx context.Context, p Principal, userA, userB string, page, size int) ([]models.MessageView, error) {
	if !p.Authenticated() {
		return nil, ErrUnauthenticated
	}
	a, err := s.userByName(ctx, userA)
	if err != nil {
		return nil, err
	}
	b, err := s.userByName(ctx, userB)
	if err != nil {
		return nil, err
	}
	if !s.resolver.CanViewConversation(p, a.ID, b.ID) {
		return nil, fmt.Errorf("conversation %s/%s: %w", a.Username, b.Username, ErrForbidden)
	}

	views, err := loadMessageViews(ctx, s.db, func(q *gorm.DB) *gorm.DB {
		return q.Where("(m.sender_id = ? AND m.receiver_id = ?) OR (m.sender_id = ? AND m.receiver_id = ?)", a.ID, b.ID, b.ID, a.ID).
			Order("m.created_at DESC").Order("m.id DESC")
	}, paginate(page, size))
	if err != nil {
		return nil, wrap("conversation", err)
	}
	for i, j := 0, len(views)-1; i < j; i, j = i+1, j-1 {
		views[i], views[j] = views[j], views[i]
	}
	return views, nil
}

// Correspondents lists the users who have messaged the principal, most recent
// exchange first. The principal is never listed.
func (s *MessageService) Correspondents(ctx context.Context, p Principal) ([]models.UserLimited, error) {
	if !p.Authenticated() {
		return nil, ErrUnauthenticated
	}
	db := s.db.WithContext(ctx)

	var senders []uint
	if err := db.Model(&models.Message{}).
		Where("receiver_id = ? AND sender_id <> ?", p.UserID, p.UserID).
		Distinct("sender_id").Pluck("sender_id", &senders).Error; err != nil {
		return nil, wrap("list senders", err)
	}
	if len(senders) == 0 {
		return []models.UserLimited{}, nil
	}
	wrote := make(map[uint]bool, len(senders))
	for _, id := range senders {
		wrote[id] = true
	}

	var exchanges []models.Message
	if err := db.Select("sender_id", "receiver_id").
		Where("(receiver_id = ? AND sender_id IN ?) OR (sender_id = ? AND receiver_id IN ?)", p.UserID, senders, p.UserID, senders).
		Order("created_at DESC").Order("id DESC").
		Find(&exchanges).Error; err != nil {
		return nil, wrap("list exchanges", err)
	}
	order := make([]uint, 0, len(senders))
	for _, m := range exchanges {
		other := m.SenderID
		if other == p.UserID {
			other = m.ReceiverID
		}
		if wrote[other] {
			order = append(order, other)
		}
	}
	order = utils.Unique(order)

	var users []models.User
	if err := db.Select("id", "username", "profile_picture").Where("id IN ?", order).Find(&users).Error; err != nil {
		return nil, wrap("load correspondents", err)
	}
	byID := make(map[uint]models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	out := make([]models.UserLimited, 0, len(order))
	for _, id := range order {
		u, ok := byID[id]
		if !ok {
			continue
		}
		out = append(out, models.UserLimited{ID: u.ID, Username: u.Username, ProfilePicture: pictureOrDefault(u.ProfilePicture)})
	}
	return out, nil
}

func (s *MessageService) view(ctx context.Context, messageID uint) (*models.MessageView, error) {
	views, err := loadMessageViews(ctx, s.db, func(q *gorm.DB) *gorm.DB {
		return q.Where("m.id = ?", messageID)
	})
	if err != nil {
		return nil, wrap("get message", err)
	}
	if len(views) == 0 {
		return nil, fmt.Errorf("message %d: %w", messageID, ErrNotFound)
	}
	return &views[0], nil
}

func (s *MessageService) userByName(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).Where("username = ?", strings.ToLower(strings.TrimSpace(username))).First(&u).Error; err != nil {
		return nil, wrap(fmt.Sprintf("user %q", username), err)
	}
	return &u, nil
}
