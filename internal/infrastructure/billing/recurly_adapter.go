package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	domain "github.com/erp/commerce-recurly/internal/domain/billing"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// RecurlyClientFactory creates Recurly API clients bound to site credentials.
// Clients created for the same subdomain share a circuit breaker.
type RecurlyClientFactory struct {
	config     *RecurlyConfig
	logger     *zap.Logger
	httpClient *http.Client

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[[]byte]
}

// FactoryOption configures the factory
type FactoryOption func(*RecurlyClientFactory)

// WithHTTPClient replaces the instrumented default HTTP client
func WithHTTPClient(client *http.Client) FactoryOption {
	return func(f *RecurlyClientFactory) {
		f.httpClient = client
	}
}

// NewRecurlyClientFactory creates a new client factory
func NewRecurlyClientFactory(config *RecurlyConfig, logger *zap.Logger, opts ...FactoryOption) (*RecurlyClientFactory, error) {
	if config == nil {
		config = DefaultRecurlyConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	f := &RecurlyClientFactory{
		config: config,
		logger: logger,
		httpClient: &http.Client{
			Timeout:   config.RequestTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		breakers: make(map[string]*gobreaker.CircuitBreaker[[]byte]),
	}

	for _, opt := range opts {
		opt(f)
	}

	return f, nil
}

// NewClient implements domain.ClientFactory
func (f *RecurlyClientFactory) NewClient(creds domain.Credentials) (domain.Client, error) {
	if strings.TrimSpace(creds.PrivateKey) == "" {
		return nil, domain.ErrClientNotConfigured
	}

	return &RecurlyAdapter{
		config:     f.config,
		creds:      creds,
		httpClient: f.httpClient,
		breaker:    f.breaker(creds.Subdomain),
		logger:     f.logger.With(zap.String("recurly_subdomain", creds.Subdomain)),
	}, nil
}

// breaker returns the circuit breaker for a site, creating it on first use
func (f *RecurlyClientFactory) breaker(subdomain string) *gobreaker.CircuitBreaker[[]byte] {
	f.mu.Lock()
	defer f.mu.Unlock()

	if cb, ok := f.breakers[subdomain]; ok {
		return cb
	}

	maxFailures := f.config.BreakerMaxFailures
	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "recurly:" + subdomain,
		MaxRequests: f.config.BreakerHalfOpenRequests,
		Timeout:     f.config.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			// Rejected payloads and missing resources say nothing about the
			// remote service's health.
			return err == nil || domain.IsClientError(err) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			f.logger.Warn("Recurly circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	f.breakers[subdomain] = cb
	return cb
}

// RecurlyAdapter implements domain.Client over the Recurly v3 REST API
type RecurlyAdapter struct {
	config     *RecurlyConfig
	creds      domain.Credentials
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[[]byte]
	logger     *zap.Logger
}

// GetAccount fetches an account by ID or "code-" reference
func (a *RecurlyAdapter) GetAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	a.logger.Debug("Getting Recurly account", zap.String("account_id", accountID))

	body, err := a.doRequest(ctx, http.MethodGet, "/accounts/"+url.PathEscape(accountID), nil, nil)
	if err != nil {
		if !domain.IsNotFound(err) {
			a.logger.Error("Failed to get Recurly account",
				zap.String("account_id", accountID),
				zap.Error(err))
		}
		return nil, err
	}

	return a.decodeAccount(body)
}

// CreateAccount creates an account
func (a *RecurlyAdapter) CreateAccount(ctx context.Context, input domain.AccountCreate) (*domain.Account, error) {
	a.logger.Debug("Creating Recurly account",
		zap.String("account_code", input.Code),
		zap.Int("custom_fields", len(input.CustomFields)))

	body, err := a.doRequest(ctx, http.MethodPost, "/accounts", nil, input)
	if err != nil {
		a.logger.Error("Failed to create Recurly account",
			zap.String("account_code", input.Code),
			zap.Error(err))
		return nil, err
	}

	account, err := a.decodeAccount(body)
	if err != nil {
		return nil, err
	}

	a.logger.Info("Created Recurly account",
		zap.String("account_code", account.Code),
		zap.String("account_id", account.ID))

	return account, nil
}

// UpdateBillingInfo attaches a payment token to an account
func (a *RecurlyAdapter) UpdateBillingInfo(ctx context.Context, accountID string, input domain.BillingInfoUpdate) (*domain.BillingInfo, error) {
	a.logger.Debug("Updating Recurly billing info", zap.String("account_id", accountID))

	body, err := a.doRequest(ctx, http.MethodPut, "/accounts/"+url.PathEscape(accountID)+"/billing_info", nil, input)
	if err != nil {
		a.logger.Error("Failed to update Recurly billing info",
			zap.String("account_id", accountID),
			zap.Error(err))
		return nil, err
	}

	var info domain.BillingInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("%w: billing info: %w", domain.ErrInvalidResponse, err)
	}
	return &info, nil
}

// ListCustomFieldDefinitions lists custom field definitions, following pages
func (a *RecurlyAdapter) ListCustomFieldDefinitions(ctx context.Context, relatedType domain.RelatedType) ([]domain.CustomFieldDefinition, error) {
	a.logger.Debug("Listing Recurly custom field definitions", zap.String("related_type", relatedType.String()))

	query := url.Values{}
	query.Set("related_type", relatedType.String())
	query.Set("limit", strconv.Itoa(a.config.ListPageSize))

	var definitions []domain.CustomFieldDefinition
	path := "/custom_field_definitions"
	for path != "" {
		body, err := a.doRequest(ctx, http.MethodGet, path, query, nil)
		if err != nil {
			a.logger.Error("Failed to list Recurly custom field definitions",
				zap.String("related_type", relatedType.String()),
				zap.Error(err))
			return nil, err
		}

		var page recurlyList
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("%w: custom field definitions: %w", domain.ErrInvalidResponse, err)
		}
		for _, raw := range page.Data {
			var def domain.CustomFieldDefinition
			if err := json.Unmarshal(raw, &def); err != nil {
				return nil, fmt.Errorf("%w: custom field definition: %w", domain.ErrInvalidResponse, err)
			}
			definitions = append(definitions, def)
		}

		path = ""
		if page.HasMore && page.Next != "" {
			// next already carries the cursor and the original filters
			path, query = page.Next, nil
		}
	}

	return definitions, nil
}

// CreatePurchase submits a purchase
func (a *RecurlyAdapter) CreatePurchase(ctx context.Context, input domain.PurchaseCreate) (*domain.InvoiceCollection, error) {
	a.logger.Debug("Creating Recurly purchase",
		zap.String("account_code", input.Account.Code),
		zap.String("currency", input.Currency),
		zap.Int("line_items", len(input.LineItems)))

	body, err := a.doRequest(ctx, http.MethodPost, "/purchases", nil, input)
	if err != nil {
		a.logger.Error("Failed to create Recurly purchase",
			zap.String("account_code", input.Account.Code),
			zap.Error(err))
		return nil, err
	}

	var coll domain.InvoiceCollection
	if err := json.Unmarshal(body, &coll); err != nil {
		return nil, fmt.Errorf("%w: invoice collection: %w", domain.ErrInvalidResponse, err)
	}

	fields := []zap.Field{zap.String("account_code", input.Account.Code)}
	if coll.ChargeInvoice != nil {
		fields = append(fields,
			zap.String("invoice_number", coll.ChargeInvoice.Number),
			zap.String("invoice_state", coll.ChargeInvoice.State))
	}
	a.logger.Info("Created Recurly purchase", fields...)

	return &coll, nil
}

// decodeAccount parses an account and fills in the admin link
func (a *RecurlyAdapter) decodeAccount(body []byte) (*domain.Account, error) {
	var account domain.Account
	if err := json.Unmarshal(body, &account); err != nil {
		return nil, fmt.Errorf("%w: account: %w", domain.ErrInvalidResponse, err)
	}
	account.AdminURL = a.config.adminURL(a.creds.Subdomain, account.Code)
	return &account, nil
}

// resolveURL joins an API path, possibly already carrying a query, with the base URL
func (a *RecurlyAdapter) resolveURL(path string, query url.Values) (string, error) {
	base, err := url.Parse(a.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("recurly: invalid base URL: %w", err)
	}
	ref, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("recurly: invalid path %q: %w", path, err)
	}
	u := base.ResolveReference(ref)
	if len(query) > 0 {
		q := u.Query()
		for k, vs := range query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// doRequest performs one API call through the circuit breaker. Non-2xx
// responses are returned as *domain.APIError.
func (a *RecurlyAdapter) doRequest(ctx context.Context, method, path string, query url.Values, payload any) ([]byte, error) {
	endpoint, err := a.resolveURL(path, query)
	if err != nil {
		return nil, err
	}

	var reqBody []byte
	if payload != nil {
		reqBody, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("recurly: failed to encode request: %w", err)
		}
	}

	body, err := a.breaker.Execute(func() ([]byte, error) {
		var bodyReader io.Reader
		if reqBody != nil {
			bodyReader = bytes.NewReader(reqBody)
		}

		req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
		if err != nil {
			return nil, fmt.Errorf("recurly: failed to create request: %w", err)
		}
		req.SetBasicAuth(a.creds.PrivateKey, "")
		req.Header.Set("Accept", a.config.acceptHeader())
		if reqBody != nil {
			req.Header.Set("Content-Type", "application/json; charset=utf-8")
		}

		resp, err := a.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrServiceUnavailable, err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("recurly: failed to read response: %w", err)
		}

		if resp.StatusCode >= 400 {
			return nil, parseAPIError(resp.StatusCode, respBody)
		}

		return respBody, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %w", domain.ErrServiceUnavailable, err)
	}
	return body, err
}

// parseAPIError builds an APIError from an error response body
func parseAPIError(status int, body []byte) error {
	var envelope recurlyErrorEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil || envelope.Error == nil {
		return &domain.APIError{
			StatusCode: status,
			Type:       strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_")),
			Message:    fmt.Sprintf("recurly: HTTP %d", status),
		}
	}
	envelope.Error.StatusCode = status
	return envelope.Error
}
