package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/erp/commerce-recurly/internal/domain/gateway"
	"github.com/erp/commerce-recurly/internal/infrastructure/persistence/models"
	"github.com/erp/commerce-recurly/internal/infrastructure/secret"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormGatewayConfigurationRepository implements gateway.ConfigurationRepository using GORM
type GormGatewayConfigurationRepository struct {
	db  *gorm.DB
	box *secret.Box
}

// NewGormGatewayConfigurationRepository creates a new repository. box seals
// private keys at rest; a nil box stores them as given.
func NewGormGatewayConfigurationRepository(db *gorm.DB, box *secret.Box) *GormGatewayConfigurationRepository {
	if box == nil {
		box = secret.NewBox(nil)
	}
	return &GormGatewayConfigurationRepository{db: db, box: box}
}

// FindByGatewayID loads the configuration of a gateway. A row that fails
// validation is returned inside a *gateway.StoredConfigurationError.
func (r *GormGatewayConfigurationRepository) FindByGatewayID(ctx context.Context, gatewayID string) (*gateway.Configuration, error) {
	var model models.GatewayConfigurationModel
	if err := r.db.WithContext(ctx).Where("gateway_id = ?", gatewayID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, gateway.ErrConfigurationNotFound
		}
		return nil, err
	}

	cfg := model.ToDomain()
	key, err := r.box.Open(model.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("open private key of gateway %q: %w", gatewayID, err)
	}
	cfg.PrivateKey = key

	if err := cfg.Validate(); err != nil {
		return nil, &gateway.StoredConfigurationError{Configuration: cfg, Err: err}
	}
	return cfg, nil
}

// Save inserts or replaces the configuration keyed by gateway ID
func (r *GormGatewayConfigurationRepository) Save(ctx context.Context, cfg *gateway.Configuration) error {
	model := models.GatewayConfigurationModelFromDomain(cfg)

	sealed, err := r.box.Seal(cfg.PrivateKey)
	if err != nil {
		return err
	}
	model.PrivateKey = sealed

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "gateway_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"label", "mode", "subdomain", "private_key", "public_key",
				"use_shared_credentials", "account_id_patterns", "plan_variation_types", "updated_at",
			}),
		}).
		Create(model).Error
}

var _ gateway.ConfigurationRepository = (*GormGatewayConfigurationRepository)(nil)
