package billing

import (
	"context"
)

// Client is the subset of the billing API used by the gateway (Ports & Adapters).
// Account identifiers passed to it are already in API form, see AccountRef.
type Client interface {
	// GetAccount fetches an account. A missing account yields an *APIError
	// for which IsNotFound reports true.
	GetAccount(ctx context.Context, accountID string) (*Account, error)

	// CreateAccount creates a new account.
	CreateAccount(ctx context.Context, body AccountCreate) (*Account, error)

	// UpdateBillingInfo attaches a payment token to an account.
	UpdateBillingInfo(ctx context.Context, accountID string, body BillingInfoUpdate) (*BillingInfo, error)

	// ListCustomFieldDefinitions lists the custom fields defined remotely for
	// the given related type, following pagination to the end.
	ListCustomFieldDefinitions(ctx context.Context, relatedType RelatedType) ([]CustomFieldDefinition, error)

	// CreatePurchase submits a purchase and returns the resulting invoices.
	CreatePurchase(ctx context.Context, body PurchaseCreate) (*InvoiceCollection, error)
}

// Credentials identify a billing site.
type Credentials struct {
	Subdomain  string
	PrivateKey string
	PublicKey  string
}

// ClientFactory builds a Client bound to one site's credentials. The gateway
// creates a client per request since credentials come from gateway configuration.
type ClientFactory interface {
	NewClient(creds Credentials) (Client, error)
}

// ClientFactoryFunc adapts a function to ClientFactory.
type ClientFactoryFunc func(creds Credentials) (Client, error)

// NewClient calls f(creds).
func (f ClientFactoryFunc) NewClient(creds Credentials) (Client, error) {
	return f(creds)
}
