package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/erp/commerce-recurly/internal/domain/billing"
	"github.com/erp/commerce-recurly/internal/domain/gateway"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SaveConfigurationInput is the admin form for one gateway.
type SaveConfigurationInput struct {
	Label                string
	Mode                 gateway.Mode
	Subdomain            string
	// PrivateKey left empty keeps the stored key
	PrivateKey           string
	PublicKey            string
	UseSharedCredentials bool
	AccountIDPatterns    gateway.AccountIDPatterns
	PlanVariationTypes   []string
}

// ConfigurationService manages gateway settings and the site-wide custom
// field mappings.
type ConfigurationService struct {
	configs      gateway.ConfigurationRepository
	customFields gateway.CustomFieldSettingsRepository
	shared       billing.Credentials
	templates    gateway.TemplateInspector
	now          func() time.Time
	logger       *zap.Logger
}

// ConfigurationServiceConfig holds dependencies for the configuration service
type ConfigurationServiceConfig struct {
	Configurations gateway.ConfigurationRepository
	CustomFields   gateway.CustomFieldSettingsRepository
	// SharedCredentials are used by gateways that opt into them
	SharedCredentials billing.Credentials
	// Templates rejects patterns with unknown tokens when set
	Templates gateway.TemplateInspector
	Logger    *zap.Logger
}

// NewConfigurationService creates a new ConfigurationService
func NewConfigurationService(config ConfigurationServiceConfig) *ConfigurationService {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConfigurationService{
		configs:      config.Configurations,
		customFields: config.CustomFields,
		shared:       config.SharedCredentials,
		templates:    config.Templates,
		now:          time.Now,
		logger:       logger,
	}
}

// GetConfiguration returns the stored configuration of a gateway.
func (s *ConfigurationService) GetConfiguration(ctx context.Context, gatewayID string) (*gateway.Configuration, error) {
	gatewayID = strings.TrimSpace(gatewayID)
	if gatewayID == "" {
		return nil, gateway.ErrInvalidGatewayID
	}
	return s.configs.FindByGatewayID(ctx, gatewayID)
}

// SaveConfiguration validates input, fills empty patterns with their
// fallbacks and stores the result.
func (s *ConfigurationService) SaveConfiguration(ctx context.Context, gatewayID string, input SaveConfigurationInput) (*gateway.Configuration, error) {
	gatewayID = strings.TrimSpace(gatewayID)
	if gatewayID == "" {
		return nil, gateway.ErrInvalidGatewayID
	}

	existing, err := s.configs.FindByGatewayID(ctx, gatewayID)
	var stored *gateway.StoredConfigurationError
	switch {
	case errors.As(err, &stored):
		// Saving over an invalid row repairs it.
		s.logger.Warn("Replacing invalid gateway configuration",
			zap.String("gateway_id", gatewayID),
			zap.Error(stored.Err))
		existing = stored.Configuration
	case err != nil && !errors.Is(err, gateway.ErrConfigurationNotFound):
		return nil, fmt.Errorf("load gateway configuration: %w", err)
	}

	now := s.now().UTC()
	cfg := &gateway.Configuration{
		ID:        uuid.New(),
		GatewayID: gatewayID,
		CreatedAt: now,
	}
	if existing != nil {
		cfg.ID = existing.ID
		cfg.CreatedAt = existing.CreatedAt
	}

	cfg.Label = strings.TrimSpace(input.Label)
	cfg.Mode = input.Mode
	if cfg.Mode == "" {
		cfg.Mode = gateway.ModeTest
	}
	cfg.UseSharedCredentials = input.UseSharedCredentials
	cfg.AccountIDPatterns = input.AccountIDPatterns.Normalize()
	cfg.PlanVariationTypes = gateway.NormalizePlanVariationTypes(input.PlanVariationTypes)
	cfg.UpdatedAt = now

	fields := make(map[string]string)
	if input.UseSharedCredentials {
		s.applySharedCredentials(cfg, fields)
	} else {
		cfg.Subdomain = strings.TrimSpace(input.Subdomain)
		cfg.PublicKey = strings.TrimSpace(input.PublicKey)
		cfg.PrivateKey = strings.TrimSpace(input.PrivateKey)
		if cfg.PrivateKey == "" && existing != nil && !existing.UseSharedCredentials {
			cfg.PrivateKey = existing.PrivateKey
		}
		requireField(fields, "subdomain", cfg.Subdomain)
		requireField(fields, "private_key", cfg.PrivateKey)
		requireField(fields, "public_key", cfg.PublicKey)
	}

	if cfg.AccountIDPatterns.Default == "" {
		fields["account_id_patterns.default"] = "The default account ID pattern is required."
	}
	s.checkPatternTokens(input.AccountIDPatterns, fields)
	if !cfg.Mode.IsValid() {
		fields["mode"] = fmt.Sprintf("Unknown mode %q.", input.Mode)
	}
	if len(fields) > 0 {
		return nil, &gateway.ConfigurationValidationError{Fields: fields}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := s.configs.Save(ctx, cfg); err != nil {
		return nil, fmt.Errorf("save gateway configuration: %w", err)
	}

	s.logger.Info("Gateway configuration saved",
		zap.String("gateway_id", gatewayID),
		zap.String("mode", string(cfg.Mode)),
		zap.Bool("use_shared_credentials", cfg.UseSharedCredentials))

	return cfg, nil
}

// applySharedCredentials copies the service credentials into cfg and records
// every one that is missing.
func (s *ConfigurationService) applySharedCredentials(cfg *gateway.Configuration, fields map[string]string) {
	cfg.Subdomain = s.shared.Subdomain
	cfg.PrivateKey = s.shared.PrivateKey
	cfg.PublicKey = s.shared.PublicKey

	if cfg.PrivateKey == "" {
		fields["private_key"] = "The shared Recurly private key is not configured."
	}
	if cfg.PublicKey == "" {
		fields["public_key"] = "The shared Recurly public key is not configured."
	}
	if cfg.Subdomain == "" {
		fields["subdomain"] = "The shared Recurly subdomain is not configured."
	}
}

// checkPatternTokens records every pattern using a token that cannot be rendered.
func (s *ConfigurationService) checkPatternTokens(patterns gateway.AccountIDPatterns, fields map[string]string) {
	if s.templates == nil {
		return
	}
	for _, key := range gateway.PatternKeys {
		if unknown := s.templates.UnknownTokens(patterns.Get(key)); len(unknown) > 0 {
			fields["account_id_patterns."+key.String()] = fmt.Sprintf("Unknown token %s.", strings.Join(unknown, ", "))
		}
	}
}

func requireField(fields map[string]string, name, value string) {
	if value == "" {
		fields[name] = "This value is required."
	}
}

// GetCustomFields returns the custom field mappings.
func (s *ConfigurationService) GetCustomFields(ctx context.Context) (gateway.CustomFieldMappings, error) {
	return s.customFields.Get(ctx)
}

// SaveCustomFields drops incomplete rows and stores the mappings.
func (s *ConfigurationService) SaveCustomFields(ctx context.Context, mappings gateway.CustomFieldMappings) (gateway.CustomFieldMappings, error) {
	normalized := mappings.Normalize()
	if err := s.customFields.Save(ctx, normalized); err != nil {
		return gateway.CustomFieldMappings{}, fmt.Errorf("save custom field settings: %w", err)
	}

	s.logger.Info("Custom field settings saved",
		zap.Int("account_fields", len(normalized.Account)),
		zap.Int("subscription_fields", len(normalized.Subscription)),
		zap.Int("item_fields", len(normalized.Item)))

	return normalized, nil
}
