// Package billing describes the remote subscription-billing service the gateway
// talks to (Recurly API v3).
//
// The package only declares the capability the gateway needs:
//   - Looking up and creating billing accounts
//   - Attaching a tokenized payment method to an account
//   - Listing custom field definitions
//   - Submitting one-time purchases
//
// Value Objects:
//   - Account, AccountCreate: remote account state and creation payload
//   - PurchaseCreate, LineItem: transient purchase payload
//   - APIError: structured failure returned by the remote service
//
// Concrete HTTP clients live in the infrastructure layer.
package billing
