package gateway

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/erp/commerce-recurly/internal/domain/commerce"
	"github.com/erp/commerce-recurly/internal/domain/gateway"
)

// OffsiteAddress prefills the billing address fields of the checkout form.
type OffsiteAddress struct {
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Address1   string `json:"address1"`
	Address2   string `json:"address2"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// OffsiteForm is the data the host renders into its Recurly.js checkout form.
type OffsiteForm struct {
	PublicKey string         `json:"public_key"`
	Address   OffsiteAddress `json:"address"`
	ReturnURL string         `json:"return_url"`
	CancelURL string         `json:"cancel_url"`
}

// OffsiteFormService builds checkout form data for a gateway.
type OffsiteFormService struct {
	configs gateway.ConfigurationRepository
}

// NewOffsiteFormService creates a new OffsiteFormService
func NewOffsiteFormService(configs gateway.ConfigurationRepository) *OffsiteFormService {
	return &OffsiteFormService{configs: configs}
}

// BuildOffsiteForm returns the checkout form data for order.
func (s *OffsiteFormService) BuildOffsiteForm(ctx context.Context, gatewayID string, order *commerce.Order, returnURL, cancelURL string) (*OffsiteForm, error) {
	if order == nil {
		return nil, commerce.ErrOrderMissing
	}
	for name, raw := range map[string]string{"return_url": returnURL, "cancel_url": cancelURL} {
		u, err := url.Parse(raw)
		if err != nil || !u.IsAbs() {
			return nil, fmt.Errorf("offsite form: %s must be an absolute URL", name)
		}
	}

	cfg, err := s.configs.FindByGatewayID(ctx, gatewayID)
	if err != nil {
		return nil, err
	}

	a := order.BillingProfile.Address
	return &OffsiteForm{
		PublicKey: cfg.PublicKey,
		Address: OffsiteAddress{
			FirstName:  strings.TrimSpace(a.GivenName),
			LastName:   strings.TrimSpace(a.FamilyName),
			Address1:   strings.TrimSpace(a.AddressLine1),
			Address2:   strings.TrimSpace(a.AddressLine2),
			City:       strings.TrimSpace(a.Locality),
			State:      strings.TrimSpace(a.AdministrativeArea),
			PostalCode: strings.TrimSpace(a.PostalCode),
			Country:    strings.TrimSpace(a.CountryCode),
		},
		ReturnURL: returnURL,
		CancelURL: cancelURL,
	}, nil
}
