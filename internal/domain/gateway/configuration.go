package gateway

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/erp/commerce-recurly/internal/domain/billing"
	"github.com/erp/commerce-recurly/internal/domain/shared"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// PlanVariationType is always treated as a plan, whatever else is configured.
const PlanVariationType = "recurly_plan_variation"

// DefaultAccountIDPattern is the pattern a new gateway starts with.
const DefaultAccountIDPattern = "user-[commerce_order:uid:target_id]"

var (
	ErrConfigurationNotFound  = shared.NewDomainError(shared.CodeNotFound, "Gateway configuration not found")
	ErrDefaultPatternRequired = shared.NewDomainError(shared.CodeInvalidInput, "Default account ID pattern is required")
	ErrInvalidGatewayID       = shared.NewDomainError(shared.CodeInvalidInput, "Invalid gateway ID")
	ErrInvalidMode            = shared.NewDomainError(shared.CodeInvalidInput, "Invalid mode")
)

// Mode is the operator-facing environment label. It does not change API calls.
type Mode string

const (
	ModeTest Mode = "test"
	ModeLive Mode = "live"
)

// IsValid returns true if the mode is known
func (m Mode) IsValid() bool {
	return m == ModeTest || m == ModeLive
}

// AccountIDPatterns holds the token templates used to build account codes.
type AccountIDPatterns struct {
	Default         string `json:"default" validate:"required"`
	Plan            string `json:"plan,omitempty"`
	NonPlan         string `json:"nonplan,omitempty"`
	PlanPlusNonPlan string `json:"plan_plus_nonplan,omitempty"`
}

// Get returns the pattern stored under key without applying fallbacks.
func (p AccountIDPatterns) Get(key PatternKey) string {
	switch key {
	case PatternPlan:
		return p.Plan
	case PatternNonPlan:
		return p.NonPlan
	case PatternPlanPlusNonPlan:
		return p.PlanPlusNonPlan
	default:
		return p.Default
	}
}

// Resolve returns the pattern for key, falling back the same way the
// configuration form fills empty entries: plan_plus_nonplan to plan to
// default, plan and nonplan to default. The second result is false when no
// non-blank pattern is found.
func (p AccountIDPatterns) Resolve(key PatternKey) (string, bool) {
	var chain []PatternKey
	switch key {
	case PatternPlanPlusNonPlan:
		chain = []PatternKey{PatternPlanPlusNonPlan, PatternPlan, PatternDefault}
	case PatternPlan, PatternNonPlan:
		chain = []PatternKey{key, PatternDefault}
	default:
		chain = []PatternKey{PatternDefault}
	}
	for _, k := range chain {
		if pattern := strings.TrimSpace(p.Get(k)); pattern != "" {
			return pattern, true
		}
	}
	return "", false
}

// Normalize fills every empty pattern with its fallback so the stored
// configuration never depends on resolution-time fallbacks.
func (p AccountIDPatterns) Normalize() AccountIDPatterns {
	out := AccountIDPatterns{Default: strings.TrimSpace(p.Default)}
	out.PlanPlusNonPlan, _ = p.Resolve(PatternPlanPlusNonPlan)
	out.Plan, _ = p.Resolve(PatternPlan)
	out.NonPlan, _ = p.Resolve(PatternNonPlan)
	return out
}

// Configuration is the persisted state of one gateway instance.
type Configuration struct {
	ID                   uuid.UUID         `json:"id"`
	GatewayID            string            `json:"gateway_id" validate:"required,max=100"`
	Label                string            `json:"label,omitempty" validate:"max=255"`
	Mode                 Mode              `json:"mode" validate:"required,oneof=test live"`
	Subdomain            string            `json:"subdomain" validate:"required,max=100"`
	PrivateKey           string            `json:"-" form:"private_key" validate:"required"`
	PublicKey            string            `json:"public_key" validate:"required"`
	UseSharedCredentials bool              `json:"use_shared_credentials"`
	AccountIDPatterns    AccountIDPatterns `json:"account_id_patterns" validate:"required"`
	PlanVariationTypes   []string          `json:"plan_product_variations"`
	CreatedAt            time.Time         `json:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at"`
}

var configValidator = newConfigValidator()

// newConfigValidator reports fields by their JSON name, or by the form tag
// for fields that are never serialized.
func newConfigValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" || name == "" {
			return f.Tag.Get("form")
		}
		return name
	})
	return v
}

// Validate checks the configuration. The default pattern is mandatory.
// Struct rule failures come back as a ConfigurationValidationError.
func (c *Configuration) Validate() error {
	if strings.TrimSpace(c.AccountIDPatterns.Default) == "" {
		return ErrDefaultPatternRequired
	}
	if strings.TrimSpace(c.GatewayID) == "" {
		return ErrInvalidGatewayID
	}
	if !c.Mode.IsValid() {
		return ErrInvalidMode
	}

	err := configValidator.Struct(c)
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		// Namespace is "Configuration.account_id_patterns.default".
		_, name, _ := strings.Cut(fe.Namespace(), ".")
		fields[name] = ruleMessage(fe)
	}
	return &ConfigurationValidationError{Fields: fields}
}

func ruleMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This value is required."
	case "max":
		return fmt.Sprintf("This value must be at most %s characters long.", fe.Param())
	case "oneof":
		return fmt.Sprintf("This value must be one of: %s.", fe.Param())
	default:
		return fmt.Sprintf("This value is invalid (%s).", fe.Tag())
	}
}

// Credentials returns the billing credentials for this gateway.
func (c *Configuration) Credentials() billing.Credentials {
	return billing.Credentials{
		Subdomain:  c.Subdomain,
		PrivateKey: c.PrivateKey,
		PublicKey:  c.PublicKey,
	}
}

// IsPlanVariation reports whether variationType is treated as a plan.
func (c *Configuration) IsPlanVariation(variationType string) bool {
	return variationType == PlanVariationType || slices.Contains(c.PlanVariationTypes, variationType)
}

// NormalizePlanVariationTypes returns selected prefixed with the built-in plan
// variation type, without blanks or duplicates, preserving order.
func NormalizePlanVariationTypes(selected []string) []string {
	out := []string{PlanVariationType}
	for _, t := range selected {
		t = strings.TrimSpace(t)
		if t == "" || slices.Contains(out, t) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// CustomFieldMappings maps remote custom field names to token templates, per
// remote entity type.
type CustomFieldMappings struct {
	Account      map[string]string `json:"account_fields"`
	Subscription map[string]string `json:"subscription_fields"`
	Item         map[string]string `json:"item_fields"`
}

// Normalize drops entries with an empty field name or an empty pattern.
func (m CustomFieldMappings) Normalize() CustomFieldMappings {
	return CustomFieldMappings{
		Account:      compactMapping(m.Account),
		Subscription: compactMapping(m.Subscription),
		Item:         compactMapping(m.Item),
	}
}

// ForRelatedType returns the mapping section for a remote entity type.
func (m CustomFieldMappings) ForRelatedType(t billing.RelatedType) map[string]string {
	switch t {
	case billing.RelatedTypeAccount:
		return m.Account
	case billing.RelatedTypeSubscription:
		return m.Subscription
	case billing.RelatedTypeItem:
		return m.Item
	default:
		return nil
	}
}

func compactMapping(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for name, pattern := range in {
		name = strings.TrimSpace(name)
		if name == "" || strings.TrimSpace(pattern) == "" {
			continue
		}
		out[name] = pattern
	}
	return out
}
