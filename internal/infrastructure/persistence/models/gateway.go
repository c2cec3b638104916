package models

import (
	"time"

	"github.com/erp/commerce-recurly/internal/domain/gateway"
)

// GatewayConfigurationModel is the persistence model for a gateway configuration.
// PrivateKey holds the sealed key; the repository seals and opens it.
type GatewayConfigurationModel struct {
	BaseModel
	GatewayID            string                    `gorm:"type:varchar(100);not null;uniqueIndex"`
	Label                string                    `gorm:"type:varchar(255);not null;default:''"`
	Mode                 string                    `gorm:"type:varchar(10);not null;default:'test'"`
	Subdomain            string                    `gorm:"type:varchar(100);not null"`
	PrivateKey           string                    `gorm:"type:text;not null"`
	PublicKey            string                    `gorm:"type:varchar(255);not null"`
	UseSharedCredentials bool                      `gorm:"not null;default:false"`
	AccountIDPatterns    gateway.AccountIDPatterns `gorm:"type:jsonb;serializer:json;not null"`
	PlanVariationTypes   []string                  `gorm:"type:jsonb;serializer:json;not null"`
}

// TableName returns the table name for GORM
func (GatewayConfigurationModel) TableName() string {
	return "gateway_configurations"
}

// ToDomain converts the model to a domain configuration. The private key is
// copied as stored.
func (m *GatewayConfigurationModel) ToDomain() *gateway.Configuration {
	types := m.PlanVariationTypes
	if types == nil {
		types = []string{}
	}
	return &gateway.Configuration{
		ID:                   m.ID,
		GatewayID:            m.GatewayID,
		Label:                m.Label,
		Mode:                 gateway.Mode(m.Mode),
		Subdomain:            m.Subdomain,
		PrivateKey:           m.PrivateKey,
		PublicKey:            m.PublicKey,
		UseSharedCredentials: m.UseSharedCredentials,
		AccountIDPatterns:    m.AccountIDPatterns,
		PlanVariationTypes:   types,
		CreatedAt:            m.CreatedAt,
		UpdatedAt:            m.UpdatedAt,
	}
}

// GatewayConfigurationModelFromDomain converts a domain configuration to a model.
func GatewayConfigurationModelFromDomain(c *gateway.Configuration) *GatewayConfigurationModel {
	return &GatewayConfigurationModel{
		BaseModel: BaseModel{
			ID:        c.ID,
			CreatedAt: c.CreatedAt,
			UpdatedAt: c.UpdatedAt,
		},
		GatewayID:            c.GatewayID,
		Label:                c.Label,
		Mode:                 string(c.Mode),
		Subdomain:            c.Subdomain,
		PrivateKey:           c.PrivateKey,
		PublicKey:            c.PublicKey,
		UseSharedCredentials: c.UseSharedCredentials,
		AccountIDPatterns:    c.AccountIDPatterns,
		PlanVariationTypes:   c.PlanVariationTypes,
	}
}

// CustomFieldSettingsKey is the key of the single settings row.
const CustomFieldSettingsKey = "default"

// CustomFieldSettingsModel stores the site-wide custom field mappings.
type CustomFieldSettingsModel struct {
	Key                string            `gorm:"column:settings_key;type:varchar(50);primaryKey"`
	AccountFields      map[string]string `gorm:"type:jsonb;serializer:json;not null"`
	SubscriptionFields map[string]string `gorm:"type:jsonb;serializer:json;not null"`
	ItemFields         map[string]string `gorm:"type:jsonb;serializer:json;not null"`
	UpdatedAt          time.Time         `gorm:"not null"`
}

// TableName returns the table name for GORM
func (CustomFieldSettingsModel) TableName() string {
	return "custom_field_settings"
}

// ToDomain converts the model to domain mappings
func (m *CustomFieldSettingsModel) ToDomain() gateway.CustomFieldMappings {
	return gateway.CustomFieldMappings{
		Account:      m.AccountFields,
		Subscription: m.SubscriptionFields,
		Item:         m.ItemFields,
	}.Normalize()
}

// CustomFieldSettingsModelFromDomain converts domain mappings to the settings row
func CustomFieldSettingsModelFromDomain(m gateway.CustomFieldMappings, now time.Time) *CustomFieldSettingsModel {
	n := m.Normalize()
	return &CustomFieldSettingsModel{
		Key:                CustomFieldSettingsKey,
		AccountFields:      n.Account,
		SubscriptionFields: n.Subscription,
		ItemFields:         n.Item,
		UpdatedAt:          now,
	}
}
