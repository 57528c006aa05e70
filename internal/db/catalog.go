package db

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/RomanRochniak/CapstoneGym/internal/model"
)

// CatalogStore reads users, trainers, programs and memberships.
type CatalogStore struct {
	db *gorm.DB
}

// NewCatalogStore creates a catalog store.
func NewCatalogStore(db *gorm.DB) *CatalogStore {
	return &CatalogStore{db: db}
}

// UserByID returns the user, or nil if there is none.
func (c *CatalogStore) UserByID(ctx context.Context, id uint) (*model.User, error) {
	var user model.User
	err := c.db.WithContext(ctx).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("db: load user %d: %w", id, err)
	}
	return &user, nil
}

// LatestMembership returns the user's membership with the latest end date
// (ties broken by latest start date), or nil if the user has none.
// Status and today's date are not considered.
func (c *CatalogStore) LatestMembership(ctx context.Context, userID uint) (*model.Membership, error) {
	var m model.Membership
	err := c.db.WithContext(ctx).
		Preload("Program").
		Preload("Program.Trainer").
		Where("user_id = ?", userID).
		Order("end_date DESC").
		Order("start_date DESC").
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("db: load membership for user %d: %w", userID, err)
	}
	return &m, nil
}

// Trainers returns up to limit trainers by ascending id.
func (c *CatalogStore) Trainers(ctx context.Context, limit int) ([]model.Trainer, error) {
	var trainers []model.Trainer
	if err := c.db.WithContext(ctx).Order("id ASC").Limit(limit).Find(&trainers).Error; err != nil {
		return nil, fmt.Errorf("db: list trainers: %w", err)
	}
	return trainers, nil
}

// Programs returns up to limit programs by ascending id, with trainers loaded.
func (c *CatalogStore) Programs(ctx context.Context, limit int) ([]model.TrainingProgram, error) {
	var programs []model.TrainingProgram
	if err := c.db.WithContext(ctx).Preload("Trainer").Order("id ASC").Limit(limit).Find(&programs).Error; err != nil {
		return nil, fmt.Errorf("db: list programs: %w", err)
	}
	return programs, nil
}
