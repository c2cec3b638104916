// Package commerce models the host framework's order as seen by the payment
// gateway: items, prices, the billing profile and the customer.
package commerce

import (
	"github.com/erp/commerce-recurly/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var ErrOrderMissing = shared.NewDomainError(shared.CodeInvalidInput, "Order is missing")

// Order is a completed checkout handed to the gateway on return from the
// offsite payment page. ID is optional; hosts that omit it get no duplicate
// return protection.
type Order struct {
	ID             uuid.UUID      `json:"id"`
	OrderNumber    string         `json:"order_number,omitempty"`
	StoreID        string         `json:"store_id,omitempty"`
	Customer       Customer       `json:"customer"`
	Email          string         `json:"email,omitempty"`
	BillingProfile BillingProfile `json:"billing_profile"`
	Items          []OrderItem    `json:"items"`
}

// Customer is the user who placed the order. ID is empty for anonymous checkouts.
type Customer struct {
	ID    string `json:"id,omitempty"`
	Email string `json:"email,omitempty"`
}

// BillingProfile holds the billing address entered at checkout.
type BillingProfile struct {
	Address Address `json:"address"`
}

// Address follows the host framework's address field names.
type Address struct {
	GivenName          string `json:"given_name,omitempty"`
	FamilyName         string `json:"family_name,omitempty"`
	Organization       string `json:"organization,omitempty"`
	AddressLine1       string `json:"address_line1,omitempty"`
	AddressLine2       string `json:"address_line2,omitempty"`
	Locality           string `json:"locality,omitempty"`
	AdministrativeArea string `json:"administrative_area,omitempty"`
	PostalCode         string `json:"postal_code,omitempty"`
	CountryCode        string `json:"country_code,omitempty"`
}

// OrderItem is a single line of the order.
type OrderItem struct {
	Title           string          `json:"title,omitempty"`
	PurchasedEntity PurchasedEntity `json:"purchased_entity"`
	UnitPrice       Price           `json:"unit_price"`
	Quantity        decimal.Decimal `json:"quantity"`
}

// PurchasedEntity is the product variation referenced by an order item.
type PurchasedEntity struct {
	ID            string `json:"id,omitempty"`
	SKU           string `json:"sku,omitempty"`
	VariationType string `json:"variation_type"`
}

// Price is an amount in major currency units.
type Price struct {
	Number       decimal.Decimal `json:"number"`
	CurrencyCode string          `json:"currency_code"`
}

// MailAddress returns the order email, falling back to the customer's email.
func (o *Order) MailAddress() string {
	if o.Email != "" {
		return o.Email
	}
	return o.Customer.Email
}

// HasID reports whether the host sent an order ID.
func (o *Order) HasID() bool {
	return o.ID != uuid.Nil
}
