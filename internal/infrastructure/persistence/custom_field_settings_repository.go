package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/erp/commerce-recurly/internal/domain/gateway"
	"github.com/erp/commerce-recurly/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormCustomFieldSettingsRepository implements gateway.CustomFieldSettingsRepository using GORM
type GormCustomFieldSettingsRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormCustomFieldSettingsRepository creates a new repository
func NewGormCustomFieldSettingsRepository(db *gorm.DB) *GormCustomFieldSettingsRepository {
	return &GormCustomFieldSettingsRepository{db: db, now: time.Now}
}

// Get returns the stored mappings, or empty mappings when none are stored
func (r *GormCustomFieldSettingsRepository) Get(ctx context.Context) (gateway.CustomFieldMappings, error) {
	var model models.CustomFieldSettingsModel
	err := r.db.WithContext(ctx).Where("settings_key = ?", models.CustomFieldSettingsKey).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return gateway.CustomFieldMappings{}.Normalize(), nil
	}
	if err != nil {
		return gateway.CustomFieldMappings{}, err
	}
	return model.ToDomain(), nil
}

// Save replaces the stored mappings
func (r *GormCustomFieldSettingsRepository) Save(ctx context.Context, mappings gateway.CustomFieldMappings) error {
	model := models.CustomFieldSettingsModelFromDomain(mappings, r.now().UTC())
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "settings_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"account_fields", "subscription_fields", "item_fields", "updated_at"}),
		}).
		Create(model).Error
}

var _ gateway.CustomFieldSettingsRepository = (*GormCustomFieldSettingsRepository)(nil)
