package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/foliowatch/foliowatch-go/internal/datastore/entities"
	"github.com/foliowatch/foliowatch-go/internal/errors"
)

// PreferenceRepository handles notification preference persistence.
type PreferenceRepository interface {
	// GetByOwner returns the owner's preference, or the default
	// preference when none has been configured.
	GetByOwner(ctx context.Context, ownerID string) (*entities.NotificationPreference, error)

	// Upsert creates or replaces the owner's preference.
	Upsert(ctx context.Context, pref *entities.NotificationPreference) error

	// UnsubscribeByToken records an opt-out looked up by unsubscribe
	// token. Returns ErrPreferenceNotFound for unknown tokens.
	UnsubscribeByToken(ctx context.Context, token string, at time.Time) error
}

// preferenceRepository implements PreferenceRepository.
type preferenceRepository struct {
	db *gorm.DB
}

// NewPreferenceRepository creates a new PreferenceRepository.
func NewPreferenceRepository(db *gorm.DB) PreferenceRepository {
	return &preferenceRepository{db: db}
}

// GetByOwner returns the stored preference, or defaults when missing.
func (r *preferenceRepository) GetByOwner(ctx context.Context, ownerID string) (*entities.NotificationPreference, error) {
	var pref entities.NotificationPreference
	if err := r.db.WithContext(ctx).First(&pref, "owner_id = ?", ownerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.DefaultPreference(ownerID), nil
		}
		return nil, fmt.Errorf("failed to get preference for owner %s: %w", ownerID, err)
	}
	return &pref, nil
}

// Upsert creates or replaces the owner's preference row.
func (r *preferenceRepository) Upsert(ctx context.Context, pref *entities.NotificationPreference) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "owner_id"}},
		UpdateAll: true,
	}).Create(pref).Error
	if err != nil {
		return fmt.Errorf("failed to upsert preference for owner %s: %w", pref.OwnerID, err)
	}
	return nil
}

// UnsubscribeByToken records an opt-out for the matching preference.
func (r *preferenceRepository) UnsubscribeByToken(ctx context.Context, token string, at time.Time) error {
	if token == "" {
		return ErrPreferenceNotFound
	}
	result := r.db.WithContext(ctx).Model(&entities.NotificationPreference{}).
		Where("unsubscribe_token = ?", token).
		Update("unsubscribed_at", at)
	if result.Error != nil {
		return fmt.Errorf("failed to unsubscribe by token: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrPreferenceNotFound
	}
	return nil
}
