package gateway

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/erp/commerce-recurly/internal/domain/billing"
	"github.com/erp/commerce-recurly/internal/domain/commerce"
	"github.com/erp/commerce-recurly/internal/domain/gateway"
	"go.uber.org/zap"
)

// DefaultCallTimeout bounds each remote billing call.
const DefaultCallTimeout = 30 * time.Second

// ResolvedAccount is the outcome of account resolution.
type ResolvedAccount struct {
	Account *billing.Account
	Code    string
	Created bool
}

// AccountResolver renders account codes and get-or-creates remote accounts.
type AccountResolver struct {
	renderer     gateway.TemplateRenderer
	customFields gateway.CustomFieldSettingsRepository
	callTimeout  time.Duration
	logger       *zap.Logger
}

// AccountResolverConfig holds dependencies for the resolver
type AccountResolverConfig struct {
	Renderer     gateway.TemplateRenderer
	CustomFields gateway.CustomFieldSettingsRepository
	CallTimeout  time.Duration
	Logger       *zap.Logger
}

// NewAccountResolver creates a new AccountResolver
func NewAccountResolver(config AccountResolverConfig) *AccountResolver {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := config.CallTimeout
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}

	return &AccountResolver{
		renderer:     config.Renderer,
		customFields: config.CustomFields,
		callTimeout:  timeout,
		logger:       logger,
	}
}

// RenderAccountCode renders the pattern selected by key into an account code.
func (r *AccountResolver) RenderAccountCode(ctx context.Context, patterns gateway.AccountIDPatterns, key gateway.PatternKey, order *commerce.Order) (string, error) {
	pattern, ok := patterns.Resolve(key)
	if !ok {
		return "", &gateway.TemplateRenderError{
			Reason: fmt.Sprintf("no account ID pattern configured for %q", key),
		}
	}

	code, err := r.renderer.Render(ctx, pattern, order)
	if err != nil {
		var renderErr *gateway.TemplateRenderError
		if errors.As(err, &renderErr) {
			return "", err
		}
		return "", &gateway.TemplateRenderError{Template: pattern, Err: err}
	}

	code = strings.TrimSpace(code)
	if code == "" {
		return "", &gateway.TemplateRenderError{Template: pattern, Reason: "rendered account code is empty"}
	}

	return code, nil
}

// Resolve returns the account with the given code, creating it from the order
// when it does not exist yet.
func (r *AccountResolver) Resolve(ctx context.Context, client billing.Client, code string, order *commerce.Order) (*ResolvedAccount, error) {
	account, err := r.getAccount(ctx, client, code)
	if err == nil {
		r.logger.Debug("Found existing Recurly account", zap.String("account_code", code))
		return &ResolvedAccount{Account: account, Code: code}, nil
	}
	if !billing.IsNotFound(err) {
		return nil, &gateway.AccountLookupError{AccountCode: code, Err: err}
	}

	account, err = r.createAccount(ctx, client, code, order)
	if err == nil {
		return &ResolvedAccount{Account: account, Code: code, Created: true}, nil
	}

	if billing.IsDuplicateAccountCode(err) {
		// Another request created the account between lookup and creation.
		r.logger.Info("Recurly account created concurrently, fetching it",
			zap.String("account_code", code))
		account, lookupErr := r.getAccount(ctx, client, code)
		if lookupErr != nil {
			return nil, &gateway.AccountLookupError{AccountCode: code, Err: lookupErr}
		}
		return &ResolvedAccount{Account: account, Code: code}, nil
	}

	return nil, err
}

func (r *AccountResolver) getAccount(ctx context.Context, client billing.Client, code string) (*billing.Account, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
	defer cancel()
	return client.GetAccount(callCtx, billing.AccountRef(code))
}

func (r *AccountResolver) createAccount(ctx context.Context, client billing.Client, code string, order *commerce.Order) (*billing.Account, error) {
	address := order.BillingProfile.Address
	body := billing.AccountCreate{
		Code:      code,
		Email:     strings.TrimSpace(order.Customer.Email),
		FirstName: strings.TrimSpace(address.GivenName),
		LastName:  strings.TrimSpace(address.FamilyName),
	}

	fields, err := r.accountCustomFields(ctx, client, order)
	if err != nil {
		return nil, err
	}
	body.CustomFields = fields

	callCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
	defer cancel()

	account, err := client.CreateAccount(callCtx, body)
	if err != nil {
		if billing.IsDuplicateAccountCode(err) {
			return nil, err
		}
		if billing.IsValidation(err) {
			var apiErr *billing.APIError
			errors.As(err, &apiErr)
			return nil, &gateway.AccountCreationError{AccountCode: code, Reason: apiErr.Message, Err: err}
		}
		return nil, fmt.Errorf("create Recurly account %q: %w", code, err)
	}

	r.logger.Info("Created Recurly account",
		zap.String("account_code", code),
		zap.Int("custom_fields", len(fields)))

	return account, nil
}

// accountCustomFields renders the configured account custom fields that are
// also defined remotely. Fields unknown to the billing site are skipped.
func (r *AccountResolver) accountCustomFields(ctx context.Context, client billing.Client, order *commerce.Order) ([]billing.CustomField, error) {
	if r.customFields == nil {
		return nil, nil
	}

	mappings, err := r.customFields.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("load custom field settings: %w", err)
	}
	configured := mappings.ForRelatedType(billing.RelatedTypeAccount)
	if len(configured) == 0 {
		return nil, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
	defer cancel()

	definitions, err := client.ListCustomFieldDefinitions(callCtx, billing.RelatedTypeAccount)
	if err != nil {
		return nil, fmt.Errorf("list Recurly custom field definitions: %w", err)
	}

	defined := make(map[string]struct{}, len(definitions))
	for _, d := range definitions {
		defined[d.Name] = struct{}{}
	}

	names := make([]string, 0, len(configured))
	for name := range configured {
		names = append(names, name)
	}
	slices.Sort(names)

	fields := make([]billing.CustomField, 0, len(names))
	for _, name := range names {
		if _, ok := defined[name]; !ok {
			r.logger.Debug("Skipping custom field not defined in Recurly", zap.String("field", name))
			continue
		}
		value, err := r.renderer.Render(ctx, configured[name], order)
		if err != nil {
			return nil, err
		}
		fields = append(fields, billing.CustomField{Name: name, Value: value})
	}

	return fields, nil
}
