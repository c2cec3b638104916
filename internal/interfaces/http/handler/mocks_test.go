package handler

import (
	"context"

	appgateway "github.com/erp/commerce-recurly/internal/application/gateway"
	"github.com/erp/commerce-recurly/internal/domain/commerce"
	"github.com/erp/commerce-recurly/internal/domain/gateway"
	"github.com/erp/commerce-recurly/internal/infrastructure/persistence"
	"github.com/stretchr/testify/mock"
)

// MockReturnProcessor is a mock implementation of ReturnProcessor
type MockReturnProcessor struct {
	mock.Mock
	// Messages are raised through Messenger before the call returns
	Messages  []string
	Messenger gateway.UserMessenger
}

func (m *MockReturnProcessor) OnReturn(ctx context.Context, gatewayID string, order *commerce.Order, token string) (*appgateway.PurchaseResult, error) {
	for _, msg := range m.Messages {
		m.Messenger.AddError(ctx, msg)
	}
	args := m.Called(ctx, gatewayID, order, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appgateway.PurchaseResult), args.Error(1)
}

// MockOffsiteFormBuilder is a mock implementation of OffsiteFormBuilder
type MockOffsiteFormBuilder struct {
	mock.Mock
}

func (m *MockOffsiteFormBuilder) BuildOffsiteForm(ctx context.Context, gatewayID string, order *commerce.Order, returnURL, cancelURL string) (*appgateway.OffsiteForm, error) {
	args := m.Called(ctx, gatewayID, order, returnURL, cancelURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appgateway.OffsiteForm), args.Error(1)
}

// MockConfigurationManager is a mock implementation of ConfigurationManager
type MockConfigurationManager struct {
	mock.Mock
}

func (m *MockConfigurationManager) GetConfiguration(ctx context.Context, gatewayID string) (*gateway.Configuration, error) {
	args := m.Called(ctx, gatewayID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.Configuration), args.Error(1)
}

func (m *MockConfigurationManager) SaveConfiguration(ctx context.Context, gatewayID string, input appgateway.SaveConfigurationInput) (*gateway.Configuration, error) {
	args := m.Called(ctx, gatewayID, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.Configuration), args.Error(1)
}

func (m *MockConfigurationManager) GetCustomFields(ctx context.Context) (gateway.CustomFieldMappings, error) {
	args := m.Called(ctx)
	return args.Get(0).(gateway.CustomFieldMappings), args.Error(1)
}

func (m *MockConfigurationManager) SaveCustomFields(ctx context.Context, mappings gateway.CustomFieldMappings) (gateway.CustomFieldMappings, error) {
	args := m.Called(ctx, mappings)
	return args.Get(0).(gateway.CustomFieldMappings), args.Error(1)
}

// MockNotificationHandler is a mock implementation of NotificationHandler
type MockNotificationHandler struct {
	mock.Mock
}

func (m *MockNotificationHandler) HandleNotification(ctx context.Context, payload []byte) (*appgateway.Notification, error) {
	args := m.Called(ctx, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appgateway.Notification), args.Error(1)
}

// fakeDatabase implements DatabaseChecker
type fakeDatabase struct {
	pingErr error
	stats   persistence.ConnectionStats
}

func (f *fakeDatabase) Ping() error { return f.pingErr }

func (f *fakeDatabase) Stats() (persistence.ConnectionStats, error) { return f.stats, nil }
