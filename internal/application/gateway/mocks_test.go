package gateway

import (
	"context"
	"fmt"
	"regexp"
	"sync"

	"github.com/erp/commerce-recurly/internal/domain/billing"
	"github.com/erp/commerce-recurly/internal/domain/commerce"
	"github.com/erp/commerce-recurly/internal/domain/gateway"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// =============================================================================
// Mock Billing Client
// =============================================================================

type MockClient struct {
	mock.Mock
}

func (m *MockClient) GetAccount(ctx context.Context, accountID string) (*billing.Account, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Account), args.Error(1)
}

func (m *MockClient) CreateAccount(ctx context.Context, body billing.AccountCreate) (*billing.Account, error) {
	args := m.Called(ctx, body)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Account), args.Error(1)
}

func (m *MockClient) UpdateBillingInfo(ctx context.Context, accountID string, body billing.BillingInfoUpdate) (*billing.BillingInfo, error) {
	args := m.Called(ctx, accountID, body)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.BillingInfo), args.Error(1)
}

func (m *MockClient) ListCustomFieldDefinitions(ctx context.Context, relatedType billing.RelatedType) ([]billing.CustomFieldDefinition, error) {
	args := m.Called(ctx, relatedType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]billing.CustomFieldDefinition), args.Error(1)
}

func (m *MockClient) CreatePurchase(ctx context.Context, body billing.PurchaseCreate) (*billing.InvoiceCollection, error) {
	args := m.Called(ctx, body)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.InvoiceCollection), args.Error(1)
}

// =============================================================================
// Mock Repositories
// =============================================================================

type MockConfigurationRepository struct {
	mock.Mock
}

func (m *MockConfigurationRepository) FindByGatewayID(ctx context.Context, gatewayID string) (*gateway.Configuration, error) {
	args := m.Called(ctx, gatewayID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.Configuration), args.Error(1)
}

func (m *MockConfigurationRepository) Save(ctx context.Context, cfg *gateway.Configuration) error {
	args := m.Called(ctx, cfg)
	return args.Error(0)
}

type MockCustomFieldSettingsRepository struct {
	mock.Mock
}

func (m *MockCustomFieldSettingsRepository) Get(ctx context.Context) (gateway.CustomFieldMappings, error) {
	args := m.Called(ctx)
	return args.Get(0).(gateway.CustomFieldMappings), args.Error(1)
}

func (m *MockCustomFieldSettingsRepository) Save(ctx context.Context, mappings gateway.CustomFieldMappings) error {
	args := m.Called(ctx, mappings)
	return args.Error(0)
}

// =============================================================================
// Test doubles
// =============================================================================

var tokenPattern = regexp.MustCompile(`\[[^\]]+\]`)

// stubRenderer replaces known tokens and fails on unknown ones.
type stubRenderer struct {
	values map[string]func(*commerce.Order) string
}

func newStubRenderer() *stubRenderer {
	return &stubRenderer{values: map[string]func(*commerce.Order) string{
		"[commerce_order:uid:target_id]": func(o *commerce.Order) string { return o.Customer.ID },
		"[commerce_order:mail]":          func(o *commerce.Order) string { return o.MailAddress() },
		"[commerce_order:order_id]":      func(o *commerce.Order) string { return o.ID.String() },
		"[commerce_order:billing_profile:address:locality]": func(o *commerce.Order) string {
			return o.BillingProfile.Address.Locality
		},
	}}
}

func (r *stubRenderer) Render(_ context.Context, template string, order *commerce.Order) (string, error) {
	var unknown string
	out := tokenPattern.ReplaceAllStringFunc(template, func(tok string) string {
		if fn, ok := r.values[tok]; ok {
			return fn(order)
		}
		unknown = tok
		return tok
	})
	if unknown != "" {
		return "", &gateway.TemplateRenderError{Template: template, Reason: fmt.Sprintf("unknown token %s", unknown)}
	}
	return out, nil
}

// recordingMessenger captures customer-facing messages.
type recordingMessenger struct {
	mu       sync.Mutex
	messages []string
}

func (m *recordingMessenger) AddError(_ context.Context, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, message)
}

func (m *recordingMessenger) Messages() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.messages...)
}

// =============================================================================
// Fixtures
// =============================================================================

func testConfiguration() *gateway.Configuration {
	return &gateway.Configuration{
		ID:         uuid.New(),
		GatewayID:  "recurly",
		Mode:       gateway.ModeTest,
		Subdomain:  "acme",
		PrivateKey: "priv",
		PublicKey:  "pub",
		AccountIDPatterns: gateway.AccountIDPatterns{
			Default:         "user-[commerce_order:uid:target_id]",
			Plan:            "plan-[commerce_order:uid:target_id]",
			NonPlan:         "shop-[commerce_order:uid:target_id]",
			PlanPlusNonPlan: "mixed-[commerce_order:uid:target_id]",
		},
		PlanVariationTypes: []string{gateway.PlanVariationType},
	}
}

func testItem(variationType, price, currencyCode string, quantity int64) commerce.OrderItem {
	return commerce.OrderItem{
		Title:           variationType + " item",
		PurchasedEntity: commerce.PurchasedEntity{ID: "1", VariationType: variationType},
		UnitPrice:       commerce.Price{Number: decimal.RequireFromString(price), CurrencyCode: currencyCode},
		Quantity:        decimal.NewFromInt(quantity),
	}
}

func testOrder(items ...commerce.OrderItem) *commerce.Order {
	return &commerce.Order{
		ID:       uuid.New(),
		Customer: commerce.Customer{ID: "42", Email: "jane@example.com"},
		BillingProfile: commerce.BillingProfile{Address: commerce.Address{
			GivenName:          "Jane",
			FamilyName:         "Doe",
			AddressLine1:       "1 Main St",
			Locality:           "Springfield",
			AdministrativeArea: "IL",
			PostalCode:         "62701",
			CountryCode:        "US",
		}},
		Items: items,
	}
}

func notFoundError() error {
	return &billing.APIError{StatusCode: 404, Type: billing.ErrorTypeNotFound, Message: "Couldn't find Account"}
}

func validationError(message string, params ...billing.ErrorParam) error {
	return &billing.APIError{StatusCode: 422, Type: billing.ErrorTypeValidation, Message: message, Params: params}
}

func singleFactory(client billing.Client) billing.ClientFactory {
	return billing.ClientFactoryFunc(func(billing.Credentials) (billing.Client, error) {
		return client, nil
	})
}
