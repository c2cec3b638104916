package billing

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// accountRefPrefix marks an account identifier as an account code rather than
// a remote ID.
const accountRefPrefix = "code-"

// AccountRef returns the API identifier addressing an account by its code.
func AccountRef(code string) string {
	return accountRefPrefix + code
}

// RelatedType is the entity a custom field definition applies to.
type RelatedType string

const (
	RelatedTypeAccount      RelatedType = "account"
	RelatedTypeSubscription RelatedType = "subscription"
	RelatedTypeItem         RelatedType = "item"
)

// String returns the string representation of RelatedType
func (t RelatedType) String() string {
	return string(t)
}

// LineItemTypeCharge is the only line item type the gateway submits.
const LineItemTypeCharge = "charge"

// CustomField is a name/value pair attached to a remote entity.
type CustomField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Account is a remote billing account.
type Account struct {
	ID           string        `json:"id"`
	Object       string        `json:"object,omitempty"`
	Code         string        `json:"code"`
	State        string        `json:"state,omitempty"`
	Email        string        `json:"email,omitempty"`
	FirstName    string        `json:"first_name,omitempty"`
	LastName     string        `json:"last_name,omitempty"`
	CustomFields []CustomField `json:"custom_fields,omitempty"`
	CreatedAt    *time.Time    `json:"created_at,omitempty"`

	// AdminURL links to the account in the billing site's admin UI. It is
	// filled in by the client, not returned by the API.
	AdminURL string `json:"-"`
}

// AccountCreate is the payload for creating an account. Empty optional fields
// are omitted from the request.
type AccountCreate struct {
	Code         string        `json:"code"`
	Email        string        `json:"email,omitempty"`
	FirstName    string        `json:"first_name,omitempty"`
	LastName     string        `json:"last_name,omitempty"`
	CustomFields []CustomField `json:"custom_fields,omitempty"`
}

// BillingInfoUpdate attaches a tokenized payment method to an account.
type BillingInfoUpdate struct {
	TokenID string `json:"token_id"`
}

// PaymentMethod summarizes the stored payment method.
type PaymentMethod struct {
	Object   string `json:"object,omitempty"`
	CardType string `json:"card_type,omitempty"`
	LastFour string `json:"last_four,omitempty"`
}

// BillingInfo is the billing information stored on an account.
type BillingInfo struct {
	ID            string        `json:"id"`
	AccountID     string        `json:"account_id,omitempty"`
	FirstName     string        `json:"first_name,omitempty"`
	LastName      string        `json:"last_name,omitempty"`
	Valid         bool          `json:"valid"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	UpdatedAt     *time.Time    `json:"updated_at,omitempty"`
}

// CustomFieldDefinition describes a custom field configured on the billing site.
type CustomFieldDefinition struct {
	ID          string      `json:"id"`
	RelatedType RelatedType `json:"related_type"`
	Name        string      `json:"name"`
	DisplayName string      `json:"display_name,omitempty"`
	UserAccess  string      `json:"user_access,omitempty"`
}

// PurchaseBillingInfo carries the payment token inside a purchase.
type PurchaseBillingInfo struct {
	TokenID string `json:"token_id"`
}

// PurchaseAccount identifies the purchasing account.
type PurchaseAccount struct {
	Code        string              `json:"code"`
	BillingInfo PurchaseBillingInfo `json:"billing_info"`
}

// LineItem is a one-time charge in a purchase. UnitAmount is in major currency
// units.
type LineItem struct {
	Currency   string          `json:"currency"`
	UnitAmount decimal.Decimal `json:"unit_amount"`
	Quantity   int64           `json:"quantity"`
	Type       string          `json:"type"`
}

// MarshalJSON encodes UnitAmount as a JSON number.
func (l LineItem) MarshalJSON() ([]byte, error) {
	type lineItem struct {
		Currency   string      `json:"currency"`
		UnitAmount json.Number `json:"unit_amount"`
		Quantity   int64       `json:"quantity"`
		Type       string      `json:"type"`
	}
	return json.Marshal(lineItem{
		Currency:   l.Currency,
		UnitAmount: json.Number(l.UnitAmount.String()),
		Quantity:   l.Quantity,
		Type:       l.Type,
	})
}

// PurchaseCreate is the payload for a purchase.
type PurchaseCreate struct {
	Currency  string          `json:"currency"`
	Account   PurchaseAccount `json:"account"`
	LineItems []LineItem      `json:"line_items"`
}

// Invoice is a remote invoice.
type Invoice struct {
	ID       string          `json:"id"`
	Number   string          `json:"number,omitempty"`
	State    string          `json:"state,omitempty"`
	Currency string          `json:"currency,omitempty"`
	Subtotal decimal.Decimal `json:"subtotal"`
	Total    decimal.Decimal `json:"total"`
	Paid     decimal.Decimal `json:"paid"`
}

// InvoiceCollection is the result of a purchase.
type InvoiceCollection struct {
	ChargeInvoice  *Invoice  `json:"charge_invoice,omitempty"`
	CreditInvoices []Invoice `json:"credit_invoices,omitempty"`
}
