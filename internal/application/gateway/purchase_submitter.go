package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/erp/commerce-recurly/internal/domain/billing"
	"github.com/erp/commerce-recurly/internal/domain/commerce"
	"github.com/erp/commerce-recurly/internal/domain/gateway"
	"go.uber.org/zap"
	"golang.org/x/text/currency"
)

// PurchaseSubmitter attaches billing info to an account and submits purchases.
type PurchaseSubmitter struct {
	callTimeout time.Duration
	logger      *zap.Logger
}

// PurchaseSubmitterConfig holds configuration for the submitter
type PurchaseSubmitterConfig struct {
	CallTimeout time.Duration
	Logger      *zap.Logger
}

// NewPurchaseSubmitter creates a new PurchaseSubmitter
func NewPurchaseSubmitter(config PurchaseSubmitterConfig) *PurchaseSubmitter {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := config.CallTimeout
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	return &PurchaseSubmitter{callTimeout: timeout, logger: logger}
}

// BuildLineItems converts order items into charge line items. Quantities are
// truncated to whole units; negative quantities and unknown currencies are
// rejected.
func (s *PurchaseSubmitter) BuildLineItems(items []commerce.OrderItem) ([]billing.LineItem, error) {
	if len(items) == 0 {
		return nil, &gateway.PurchaseValidationError{
			Message: "Order has no items to purchase",
			Params:  []billing.ErrorParam{{Param: "line_items", Message: "cannot be empty"}},
		}
	}

	lineItems := make([]billing.LineItem, 0, len(items))
	for i, item := range items {
		if item.Quantity.IsNegative() {
			return nil, &gateway.PurchaseValidationError{
				Message: "Invalid line item quantity",
				Params: []billing.ErrorParam{{
					Param:   fmt.Sprintf("line_items[%d].quantity", i),
					Message: "cannot be negative",
				}},
			}
		}

		code := strings.ToUpper(strings.TrimSpace(item.UnitPrice.CurrencyCode))
		unit, err := currency.ParseISO(code)
		if err != nil {
			return nil, &gateway.PurchaseValidationError{
				Message: "Invalid line item currency",
				Params: []billing.ErrorParam{{
					Param:   fmt.Sprintf("line_items[%d].currency", i),
					Message: fmt.Sprintf("%q is not an ISO 4217 currency code", item.UnitPrice.CurrencyCode),
				}},
				Err: err,
			}
		}

		lineItems = append(lineItems, billing.LineItem{
			Currency:   unit.String(),
			UnitAmount: item.UnitPrice.Number,
			Quantity:   item.Quantity.IntPart(),
			Type:       billing.LineItemTypeCharge,
		})
	}

	for i := 1; i < len(lineItems); i++ {
		if lineItems[i].Currency != lineItems[0].Currency {
			s.logger.Warn("Order mixes currencies, purchase uses the first item's currency",
				zap.String("purchase_currency", lineItems[0].Currency),
				zap.String("item_currency", lineItems[i].Currency),
				zap.Int("item_index", i))
		}
	}

	return lineItems, nil
}

// AttachBillingInfo stores the payment token on the account.
func (s *PurchaseSubmitter) AttachBillingInfo(ctx context.Context, client billing.Client, accountCode, token string) error {
	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	if _, err := client.UpdateBillingInfo(callCtx, billing.AccountRef(accountCode), billing.BillingInfoUpdate{TokenID: token}); err != nil {
		return classifySubmitError("Recurly billing info not updated", err)
	}

	s.logger.Debug("Attached billing info to Recurly account", zap.String("account_code", accountCode))
	return nil
}

// Submit creates the purchase. The purchase currency is the first line item's.
func (s *PurchaseSubmitter) Submit(ctx context.Context, client billing.Client, accountCode, token string, lineItems []billing.LineItem) (*billing.InvoiceCollection, error) {
	if len(lineItems) == 0 {
		return nil, &gateway.PurchaseValidationError{
			Message: "Order has no items to purchase",
			Params:  []billing.ErrorParam{{Param: "line_items", Message: "cannot be empty"}},
		}
	}

	purchase := billing.PurchaseCreate{
		Currency: lineItems[0].Currency,
		Account: billing.PurchaseAccount{
			Code:        accountCode,
			BillingInfo: billing.PurchaseBillingInfo{TokenID: token},
		},
		LineItems: lineItems,
	}

	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	invoices, err := client.CreatePurchase(callCtx, purchase)
	if err != nil {
		return nil, classifySubmitError("Recurly purchase not created", err)
	}

	return invoices, nil
}

// classifySubmitError turns remote validation failures into
// PurchaseValidationError and everything else into PurchaseSubmissionError.
func classifySubmitError(step string, err error) error {
	if billing.IsValidation(err) {
		var apiErr *billing.APIError
		errors.As(err, &apiErr)
		return &gateway.PurchaseValidationError{
			Message: apiErr.Message,
			Params:  apiErr.Params,
			Err:     err,
		}
	}
	return &gateway.PurchaseSubmissionError{Step: step, Err: err}
}
