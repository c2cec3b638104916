package gateway

import (
	"fmt"
	"sort"
	"strings"

	"github.com/erp/commerce-recurly/internal/domain/billing"
)

// UserMessagePrefix starts every payment failure message shown to the customer.
const UserMessagePrefix = "Purchase could not be completed: "

// TemplateRenderError reports a pattern that could not be turned into a value.
type TemplateRenderError struct {
	Template string
	Reason   string
	Err      error
}

func (e *TemplateRenderError) Error() string {
	msg := fmt.Sprintf("could not render template %q", e.Template)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TemplateRenderError) Unwrap() error { return e.Err }

// ConfigurationValidationError lists the configuration form fields that
// failed validation, keyed by their JSON names.
type ConfigurationValidationError struct {
	Fields map[string]string
}

func (e *ConfigurationValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+e.Fields[name])
	}
	return "invalid gateway configuration: " + strings.Join(parts, "; ")
}

// StoredConfigurationError reports a persisted configuration that no longer
// validates. Configuration holds the decoded row so it can be repaired.
type StoredConfigurationError struct {
	Configuration *Configuration
	Err           error
}

func (e *StoredConfigurationError) Error() string {
	return fmt.Sprintf("stored configuration of gateway %q is invalid: %v", e.Configuration.GatewayID, e.Err)
}

func (e *StoredConfigurationError) Unwrap() error { return e.Err }

// AccountLookupError reports a failed account fetch other than not-found.
type AccountLookupError struct {
	AccountCode string
	Err         error
}

func (e *AccountLookupError) Error() string {
	return fmt.Sprintf("Recurly account %q could not be fetched: %v", e.AccountCode, e.Err)
}

func (e *AccountLookupError) Unwrap() error { return e.Err }

// AccountCreationError reports an account rejected by the billing service.
type AccountCreationError struct {
	AccountCode string
	Reason      string
	Err         error
}

func (e *AccountCreationError) Error() string {
	return "Recurly account not created. Reason: " + e.Reason
}

func (e *AccountCreationError) Unwrap() error { return e.Err }

// PurchaseValidationError reports a purchase rejected for invalid data.
type PurchaseValidationError struct {
	Message string
	Params  []billing.ErrorParam
	Err     error
}

func (e *PurchaseValidationError) Error() string {
	if len(e.Params) == 0 {
		return e.Message
	}
	fields := make([]string, 0, len(e.Params))
	for _, p := range e.Params {
		fields = append(fields, p.Param+" "+p.Message)
	}
	return e.Message + " (" + strings.Join(fields, "; ") + ")"
}

func (e *PurchaseValidationError) Unwrap() error { return e.Err }

// PurchaseSubmissionError reports any other failure while attaching billing
// info or submitting the purchase. Step describes what did not happen.
type PurchaseSubmissionError struct {
	Step string
	Err  error
}

func (e *PurchaseSubmissionError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *PurchaseSubmissionError) Unwrap() error { return e.Err }

// PaymentGatewayError is the single error the return workflow hands back to
// the host framework. Message carries the underlying failure message.
type PaymentGatewayError struct {
	Message string
	Err     error
}

func (e *PaymentGatewayError) Error() string {
	return e.Message
}

func (e *PaymentGatewayError) Unwrap() error { return e.Err }

// UserMessage is the text surfaced to the customer.
func (e *PaymentGatewayError) UserMessage() string {
	return UserMessagePrefix + e.Message
}

// NewPaymentGatewayError wraps err into a PaymentGatewayError.
func NewPaymentGatewayError(err error) *PaymentGatewayError {
	return &PaymentGatewayError{Message: err.Error(), Err: err}
}
