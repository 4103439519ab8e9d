package services

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/postapi/postapi/models"
	"github.com/postapi/postapi/utils"
)

const tiersInUseKey = "in_use"

// TierService lists reader tiers. The in-use list is cached and invalidated
// whenever a tier assignment may have changed.
type TierService struct {
	db    *gorm.DB
	cache *utils.RedisCache
}

func NewTierService(db *gorm.DB, cache *utils.RedisCache) *TierService {
	return &TierService{db: db, cache: cache}
}

// InUse returns only the tiers assigned to at least one user.
func (s *TierService) InUse(ctx context.Context) ([]models.ReaderTier, error) {
	var tiers []models.ReaderTier
	if s.cache.GetJSON(ctx, tiersInUseKey, &tiers) {
		return tiers, nil
	}
	used := s.db.Model(&models.User{}).Select("tier_id").Where("tier_id IS NOT NULL")
	if err := s.db.WithContext(ctx).Where("id IN (?)", used).Order("id ASC").Find(&tiers).Error; err != nil {
		return nil, wrap("list tiers", err)
	}
	s.cache.SetJSON(ctx, tiersInUseKey, tiers)
	return tiers, nil
}

// Create adds a tier. Admin only.
func (s *TierService) Create(ctx context.Context, p Principal, name, description string) (*models.ReaderTier, error) {
	if !p.Authenticated() {
		return nil, ErrUnauthenticated
	}
	if !p.IsAdmin() {
		return nil, fmt.Errorf("create tier: %w", ErrForbidden)
	}
	name = utils.PlainText(name)
	description = utils.PlainText(description)
	if err := checkFields(
		checkField("tier_name", name, "required,max=64"),
		checkField("tier_description", description, ruleShortText),
	); err != nil {
		return nil, err
	}
	tier := models.ReaderTier{Name: name, Description: description}
	if err := s.db.WithContext(ctx).Create(&tier).Error; err != nil {
		return nil, wrap("create tier", err)
	}
	return &tier, nil
}
