package gateway

import (
	"context"

	"github.com/erp/commerce-recurly/internal/domain/commerce"
)

// ConfigurationRepository persists gateway configurations.
type ConfigurationRepository interface {
	// FindByGatewayID returns ErrConfigurationNotFound when nothing is stored.
	FindByGatewayID(ctx context.Context, gatewayID string) (*Configuration, error)
	Save(ctx context.Context, cfg *Configuration) error
}

// CustomFieldSettingsRepository persists the site-wide custom field mappings.
type CustomFieldSettingsRepository interface {
	// Get returns empty mappings when nothing is stored.
	Get(ctx context.Context) (CustomFieldMappings, error)
	Save(ctx context.Context, mappings CustomFieldMappings) error
}

// TemplateRenderer replaces tokens in a template with values taken from an order.
type TemplateRenderer interface {
	Render(ctx context.Context, template string, order *commerce.Order) (string, error)
}

// TemplateInspector reports the tokens of a template that cannot be rendered.
type TemplateInspector interface {
	UnknownTokens(template string) []string
}

// UserMessenger surfaces messages to the customer in the host framework.
type UserMessenger interface {
	AddError(ctx context.Context, message string)
}

// UserMessengerFunc adapts a function to UserMessenger.
type UserMessengerFunc func(ctx context.Context, message string)

// AddError calls f(ctx, message).
func (f UserMessengerFunc) AddError(ctx context.Context, message string) {
	f(ctx, message)
}
