package billing

import (
	"encoding/json"

	domain "github.com/erp/commerce-recurly/internal/domain/billing"
)

// recurlyErrorEnvelope is the body of every non-2xx response
type recurlyErrorEnvelope struct {
	Error *domain.APIError `json:"error"`
}

// recurlyList is the body of list endpoints
type recurlyList struct {
	Object  string            `json:"object"`
	HasMore bool              `json:"has_more"`
	Next    string            `json:"next"`
	Data    []json.RawMessage `json:"data"`
}
