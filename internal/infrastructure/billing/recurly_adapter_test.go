package billing

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	domain "github.com/erp/commerce-recurly/internal/domain/billing"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig(baseURL string) *RecurlyConfig {
	cfg := DefaultRecurlyConfig()
	cfg.BaseURL = baseURL
	cfg.RequestTimeout = 5 * time.Second
	cfg.BreakerMaxFailures = 2
	cfg.BreakerOpenTimeout = time.Minute
	return cfg
}

func testLogger() *zap.Logger {
	return zap.NewNop()
}

func testCreds() domain.Credentials {
	return domain.Credentials{Subdomain: "acme", PrivateKey: "priv_key", PublicKey: "ewr1-pub"}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) domain.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	factory, err := NewRecurlyClientFactory(testConfig(srv.URL), testLogger(), WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	client, err := factory.NewClient(testCreds())
	require.NoError(t, err)
	return client
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

// ===========================================================================
// Config & factory
// ===========================================================================

func TestRecurlyConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *RecurlyConfig)
		wantErr bool
	}{
		{"default", func(c *RecurlyConfig) {}, false},
		{"missing base url", func(c *RecurlyConfig) { c.BaseURL = "" }, true},
		{"relative base url", func(c *RecurlyConfig) { c.BaseURL = "v3.recurly.com" }, true},
		{"missing api version", func(c *RecurlyConfig) { c.APIVersion = "" }, true},
		{"zero timeout", func(c *RecurlyConfig) { c.RequestTimeout = 0 }, true},
		{"zero breaker failures", func(c *RecurlyConfig) { c.BreakerMaxFailures = 0 }, true},
		{"page size too large", func(c *RecurlyConfig) { c.ListPageSize = 500 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultRecurlyConfig()
			tt.mutate(cfg)
			if tt.wantErr {
				assert.Error(t, cfg.Validate())
			} else {
				assert.NoError(t, cfg.Validate())
			}
		})
	}
}

func TestRecurlyClientFactory_NewClient(t *testing.T) {
	factory, err := NewRecurlyClientFactory(nil, nil)
	require.NoError(t, err)

	t.Run("requires a private key", func(t *testing.T) {
		_, err := factory.NewClient(domain.Credentials{Subdomain: "acme"})
		assert.ErrorIs(t, err, domain.ErrClientNotConfigured)
	})

	t.Run("shares breakers per subdomain", func(t *testing.T) {
		c1, err := factory.NewClient(testCreds())
		require.NoError(t, err)
		c2, err := factory.NewClient(testCreds())
		require.NoError(t, err)
		other, err := factory.NewClient(domain.Credentials{Subdomain: "other", PrivateKey: "k"})
		require.NoError(t, err)

		assert.Same(t, c1.(*RecurlyAdapter).breaker, c2.(*RecurlyAdapter).breaker)
		assert.NotSame(t, c1.(*RecurlyAdapter).breaker, other.(*RecurlyAdapter).breaker)
	})
}

// ===========================================================================
// Accounts
// ===========================================================================

func TestRecurlyAdapter_GetAccount(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/accounts/code-user-42", r.URL.Path)
		assert.Equal(t, "application/vnd.recurly.v2021-02-25+json", r.Header.Get("Accept"))
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "priv_key", user)
		assert.Empty(t, pass)

		writeJSON(w, http.StatusOK, `{"id":"a1","object":"account","code":"user-42","email":"jane@example.com","state":"active"}`)
	})

	account, err := client.GetAccount(context.Background(), domain.AccountRef("user-42"))
	require.NoError(t, err)
	assert.Equal(t, "a1", account.ID)
	assert.Equal(t, "user-42", account.Code)
	assert.Equal(t, "https://acme.recurly.com/accounts/user-42", account.AdminURL)
}

func TestRecurlyAdapter_GetAccount_NotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, `{"error":{"type":"not_found","message":"Couldn't find Account with code = user-42"}}`)
	})

	_, err := client.GetAccount(context.Background(), domain.AccountRef("user-42"))
	require.Error(t, err)
	assert.True(t, domain.IsNotFound(err))
	assert.Contains(t, err.Error(), "Couldn't find Account")
}

func TestRecurlyAdapter_CreateAccount(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/accounts", r.URL.Path)
		assert.Contains(t, r.Header.Get("Content-Type"), "application/json")

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "user-42", body["code"])
		assert.Equal(t, "Jane", body["first_name"])
		assert.NotContains(t, body, "last_name")
		assert.Equal(t, []any{map[string]any{"name": "drupal_uid", "value": "42"}}, body["custom_fields"])

		writeJSON(w, http.StatusCreated, `{"id":"a1","code":"user-42","first_name":"Jane"}`)
	})

	account, err := client.CreateAccount(context.Background(), domain.AccountCreate{
		Code:         "user-42",
		FirstName:    "Jane",
		CustomFields: []domain.CustomField{{Name: "drupal_uid", Value: "42"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "a1", account.ID)
}

func TestRecurlyAdapter_CreateAccount_Validation(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnprocessableEntity,
			`{"error":{"type":"validation","message":"Email is invalid","params":[{"param":"email","message":"is invalid"}]}}`)
	})

	_, err := client.CreateAccount(context.Background(), domain.AccountCreate{Code: "user-42", Email: "bad"})
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))

	var apiErr *domain.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.Equal(t, []domain.ErrorParam{{Param: "email", Message: "is invalid"}}, apiErr.Params)
}

// ===========================================================================
// Billing info & purchases
// ===========================================================================

func TestRecurlyAdapter_UpdateBillingInfo(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/accounts/code-user-42/billing_info", r.URL.Path)

		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]string{"token_id": "tok_123"}, body)

		writeJSON(w, http.StatusOK, `{"id":"b1","account_id":"a1","valid":true,"payment_method":{"card_type":"Visa","last_four":"1111"}}`)
	})

	info, err := client.UpdateBillingInfo(context.Background(), domain.AccountRef("user-42"), domain.BillingInfoUpdate{TokenID: "tok_123"})
	require.NoError(t, err)
	assert.True(t, info.Valid)
	assert.Equal(t, "1111", info.PaymentMethod.LastFour)
}

func TestRecurlyAdapter_CreatePurchase(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/purchases", r.URL.Path)

		raw, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.JSONEq(t, `{
			"currency":"USD",
			"account":{"code":"user-42","billing_info":{"token_id":"tok_123"}},
			"line_items":[{"currency":"USD","unit_amount":10.5,"quantity":2,"type":"charge"}]
		}`, string(raw))

		writeJSON(w, http.StatusCreated, `{"object":"invoice_collection","charge_invoice":{"id":"i1","number":"1001","state":"paid","currency":"USD","total":21}}`)
	})

	coll, err := client.CreatePurchase(context.Background(), domain.PurchaseCreate{
		Currency: "USD",
		Account:  domain.PurchaseAccount{Code: "user-42", BillingInfo: domain.PurchaseBillingInfo{TokenID: "tok_123"}},
		LineItems: []domain.LineItem{{
			Currency: "USD", UnitAmount: decimal.RequireFromString("10.50"), Quantity: 2, Type: domain.LineItemTypeCharge,
		}},
	})
	require.NoError(t, err)
	require.NotNil(t, coll.ChargeInvoice)
	assert.Equal(t, "1001", coll.ChargeInvoice.Number)
	assert.True(t, coll.ChargeInvoice.Total.Equal(decimal.NewFromInt(21)))
}

// ===========================================================================
// Custom field definitions
// ===========================================================================

func TestRecurlyAdapter_ListCustomFieldDefinitions_FollowsPages(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/custom_field_definitions", r.URL.Path)
		assert.Equal(t, "account", r.URL.Query().Get("related_type"))

		switch atomic.AddInt32(&calls, 1) {
		case 1:
			assert.Equal(t, "200", r.URL.Query().Get("limit"))
			writeJSON(w, http.StatusOK, `{"object":"list","has_more":true,
				"next":"/custom_field_definitions?cursor=c2&limit=200&related_type=account",
				"data":[{"id":"f1","related_type":"account","name":"drupal_uid"}]}`)
		default:
			assert.Equal(t, "c2", r.URL.Query().Get("cursor"))
			writeJSON(w, http.StatusOK, `{"object":"list","has_more":false,"next":null,
				"data":[{"id":"f2","related_type":"account","name":"company_size"}]}`)
		}
	})

	defs, err := client.ListCustomFieldDefinitions(context.Background(), domain.RelatedTypeAccount)
	require.NoError(t, err)
	require.Len(t, defs, 2)
	assert.Equal(t, "drupal_uid", defs[0].Name)
	assert.Equal(t, "company_size", defs[1].Name)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

// ===========================================================================
// Failure handling
// ===========================================================================

func TestRecurlyAdapter_ServerErrorWithoutEnvelope(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, "<html>bad gateway</html>")
	})

	_, err := client.GetAccount(context.Background(), "code-x")
	var apiErr *domain.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "bad_gateway", apiErr.Type)
}

func TestRecurlyAdapter_BreakerOpensOnServerErrors(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeJSON(w, http.StatusInternalServerError, `{"error":{"type":"internal_server_error","message":"boom"}}`)
	})
	ctx := context.Background()

	for range 2 {
		_, err := client.GetAccount(ctx, "code-x")
		require.Error(t, err)
	}

	_, err := client.GetAccount(ctx, "code-x")
	assert.ErrorIs(t, err, domain.ErrServiceUnavailable)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestRecurlyAdapter_BreakerIgnoresClientErrors(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeJSON(w, http.StatusNotFound, `{"error":{"type":"not_found","message":"missing"}}`)
	})
	ctx := context.Background()

	for range 4 {
		_, err := client.GetAccount(ctx, "code-x")
		assert.True(t, domain.IsNotFound(err))
	}
	assert.EqualValues(t, 4, atomic.LoadInt32(&calls))
}

func TestRecurlyAdapter_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	factory, err := NewRecurlyClientFactory(testConfig(url), testLogger())
	require.NoError(t, err)
	client, err := factory.NewClient(testCreds())
	require.NoError(t, err)

	_, err = client.GetAccount(context.Background(), "code-x")
	assert.ErrorIs(t, err, domain.ErrServiceUnavailable)
}
