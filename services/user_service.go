package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/postapi/postapi/models"
	"github.com/postapi/postapi/storage"
	"github.com/postapi/postapi/utils"
)

// UserService handles accounts and user projections.
type UserService struct {
	db        *gorm.DB
	images    storage.ImageStore
	tierCache *utils.RedisCache
}

func NewUserService(db *gorm.DB, images storage.ImageStore, tierCache *utils.RedisCache) *UserService {
	return &UserService{db: db, images: images, tierCache: tierCache}
}

type RegisterInput struct {
	Username  string
	FirstName string
	LastName  string
	Email     string
	Password  string
	Gender    string
	Bio       string
	Birthday  *time.Time
	Picture   storage.FileUpload
}

// UpdateUserInput changes only the fields that are set.
type UpdateUserInput struct {
	FirstName *string
	LastName  *string
	Email     *string
	Password  *string
	Gender    *string
	Bio       *string
	Status    *string
	Birthday  *time.Time
	Picture   storage.FileUpload
}

func normalizeName(s string) string  { return strings.ToLower(strings.TrimSpace(s)) }
func normalizeEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.UserView, error) {
	username := normalizeName(in.Username)
	email := normalizeEmail(in.Email)
	first := utils.PlainText(in.FirstName)
	last := utils.PlainText(in.LastName)
	bio := utils.PlainText(in.Bio)
	gender := strings.ToLower(strings.TrimSpace(in.Gender))
	if err := checkFields(
		checkField("username", username, ruleUsername),
		checkField("email", email, ruleEmail),
		checkField("password", in.Password, rulePassword),
		checkField("first_name", first, ruleDisplayName),
		checkField("last_name", last, ruleDisplayName),
		checkField("gender", gender, ruleGender),
		checkField("bio", bio, ruleShortText),
	); err != nil {
		return nil, err
	}

	if taken, err := s.Exists(ctx, username); err != nil {
		return nil, err
	} else if taken {
		return nil, fmt.Errorf("username %q: %w", username, ErrConflict)
	}
	if taken, err := s.EmailExists(ctx, email); err != nil {
		return nil, err
	} else if taken {
		return nil, fmt.Errorf("email %q: %w", email, ErrConflict)
	}

	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	picture, err := uploadImage(ctx, s.images, in.Picture)
	if err != nil {
		return nil, err
	}

	user := models.User{
		Username:     username,
		FirstName:    first,
		LastName:     last,
		Email:        email,
		Role:         models.RoleUser,
		PasswordHash: hash,
		Gender:       gender,
		Birthday:     in.Birthday,
		Bio:          bio,
		Status:       "active",
	}
	if picture != "" {
		user.ProfilePicture = &picture
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, wrap("create user", err)
	}
	utils.Sugar.Infow("user registered", "user_id", user.ID, "username", user.Username)
	return s.view(ctx, user.ID, true)
}

// Authenticate checks credentials and records the login time. Unknown users and
// wrong passwords both yield ErrUnauthenticated.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).Where("username = ?", normalizeName(username)).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("login: %w", ErrUnauthenticated)
		}
		return nil, wrap("login", err)
	}
	if !utils.CheckPassword(u.PasswordHash, password) {
		return nil, fmt.Errorf("login: %w", ErrUnauthenticated)
	}
	now := time.Now()
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", u.ID).UpdateColumn("last_login", &now).Error; err != nil {
		return nil, wrap("record login", err)
	}
	u.LastLogin = &now
	return &u, nil
}

// Me returns the principal's own view including email.
func (s *UserService) Me(ctx context.Context, p Principal) (*models.UserView, error) {
	if !p.Authenticated() {
		return nil, ErrUnauthenticated
	}
	return s.view(ctx, p.UserID, true)
}

// GetPublic returns a user's public view. Email is withheld.
func (s *UserService) GetPublic(ctx context.Context, username string) (*models.UserView, error) {
	views, err := loadUserViews(ctx, s.db, false, func(q *gorm.DB) *gorm.DB {
		return q.Where("u.username = ?", normalizeName(username))
	})
	if err != nil {
		return nil, wrap("get user", err)
	}
	if len(views) == 0 {
		return nil, fmt.Errorf("user %q: %w", username, ErrNotFound)
	}
	return &views[0], nil
}

// List returns a page of public user views ordered by id.
func (s *UserService) List(ctx context.Context, page, size int) ([]models.UserView, error) {
	views, err := loadUserViews(ctx, s.db, false, func(q *gorm.DB) *gorm.DB {
		return q.Order("u.id ASC")
	}, paginate(page, size))
	if err != nil {
		return nil, wrap("list users", err)
	}
	return views, nil
}

// Update changes the principal's own profile.
func (s *UserService) Update(ctx context.Context, p Principal, in UpdateUserInput) (*models.UserView, error) {
	if !p.Authenticated() {
		return nil, ErrUnauthenticated
	}
	var u models.User
	if err := s.db.WithContext(ctx).First(&u, p.UserID).Error; err != nil {
		return nil, wrap("get user", err)
	}

	changes := map[string]interface{}{}
	setText := func(field, column string, value *string, rules string, clean func(string) string) error {
		if value == nil {
			return nil
		}
		v := clean(*value)
		if err := checkField(field, v, rules); err != nil {
			return err
		}
		changes[column] = v
		return nil
	}
	lower := func(v string) string { return strings.ToLower(strings.TrimSpace(v)) }
	if err := checkFields(
		setText("first_name", "first_name", in.FirstName, ruleDisplayName, utils.PlainText),
		setText("last_name", "last_name", in.LastName, ruleDisplayName, utils.PlainText),
		setText("gender", "gender", in.Gender, ruleGender, lower),
		setText("bio", "bio", in.Bio, ruleShortText, utils.PlainText),
		setText("status", "status", in.Status, "omitempty,max=20", utils.PlainText),
		setText("email", "email", in.Email, ruleEmail, normalizeEmail),
	); err != nil {
		return nil, err
	}
	if email, ok := changes["email"].(string); ok && email != u.Email {
		var n int64
		if err := s.db.WithContext(ctx).Model(&models.User{}).Where("email = ? AND id <> ?", email, u.ID).Count(&n).Error; err != nil {
			return nil, wrap("email exists", err)
		}
		if n > 0 {
			return nil, fmt.Errorf("email %q: %w", email, ErrConflict)
		}
	}
	if in.Password != nil {
		if err := checkField("password", *in.Password, rulePassword); err != nil {
			return nil, err
		}
		hash, err := utils.HashPassword(*in.Password)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		changes["password_hash"] = hash
	}
	if in.Birthday != nil {
		changes["birthday"] = in.Birthday
	}
	picture, err := uploadImage(ctx, s.images, in.Picture)
	if err != nil {
		return nil, err
	}
	if picture != "" {
		changes["profile_picture"] = picture
	}

	if len(changes) > 0 {
		changes["updated_at"] = time.Now()
		if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", u.ID).UpdateColumns(changes).Error; err != nil {
			return nil, wrap("update user", err)
		}
	}
	return s.view(ctx, u.ID, true)
}

// Delete removes a user and their memberships. Authored posts, comments,
// messages and owned groups stay and project as anonymous. Self or admin only.
func (s *UserService) Delete(ctx context.Context, p Principal, username string) error {
	if !p.Authenticated() {
		return ErrUnauthenticated
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var u models.User
		if err := tx.Where("username = ?", normalizeName(username)).First(&u).Error; err != nil {
			return wrap("get user", err)
		}
		if !p.Is(u.ID) && !p.IsAdmin() {
			return fmt.Errorf("delete user %q: %w", u.Username, ErrForbidden)
		}
		if err := tx.Where("user_id = ?", u.ID).Delete(&models.GroupMember{}).Error; err != nil {
			return wrap("delete memberships", err)
		}
		if err := tx.Delete(&models.User{}, u.ID).Error; err != nil {
			return wrap("delete user", err)
		}
		utils.Sugar.Infow("user deleted", "user_id", u.ID, "by", p.UserID)
		return nil
	})
	if err != nil {
		return err
	}
	s.tierCache.Invalidate(ctx)
	return nil
}

// AssignTier sets or clears a user's reader tier. Admin only.
func (s *UserService) AssignTier(ctx context.Context, p Principal, username string, tierID *uint) (*models.UserView, error) {
	if !p.Authenticated() {
		return nil, ErrUnauthenticated
	}
	if !p.IsAdmin() {
		return nil, fmt.Errorf("assign tier: %w", ErrForbidden)
	}
	var u models.User
	if err := s.db.WithContext(ctx).Where("username = ?", normalizeName(username)).First(&u).Error; err != nil {
		return nil, wrap("get user", err)
	}
	if tierID != nil {
		var t models.ReaderTier
		if err := s.db.WithContext(ctx).First(&t, *tierID).Error; err != nil {
			return nil, wrap("get tier", err)
		}
	}
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", u.ID).UpdateColumn("tier_id", tierID).Error; err != nil {
		return nil, wrap("assign tier", err)
	}
	s.tierCache.Invalidate(ctx)
	return s.view(ctx, u.ID, true)
}

func (s *UserService) Exists(ctx context.Context, username string) (bool, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("username = ?", normalizeName(username)).Count(&n).Error; err != nil {
		return false, wrap("username exists", err)
	}
	return n > 0, nil
}

func (s *UserService) EmailExists(ctx context.Context, email string) (bool, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", normalizeEmail(email)).Count(&n).Error; err != nil {
		return false, wrap("email exists", err)
	}
	return n > 0, nil
}

func (s *UserService) view(ctx context.Context, userID uint, withEmail bool) (*models.UserView, error) {
	views, err := loadUserViews(ctx, s.db, withEmail, func(q *gorm.DB) *gorm.DB {
		return q.Where("u.id = ?", userID)
	})
	if err != nil {
		return nil, wrap("get user", err)
	}
	if len(views) == 0 {
		return nil, fmt.Errorf("user %d: %w", userID, ErrNotFound)
	}
	return &views[0], nil
}
