package billing

import (
	"fmt"
	"net/url"
	"time"
)

const (
	// DefaultRecurlyBaseURL is the US API endpoint
	DefaultRecurlyBaseURL = "https://v3.recurly.com"
	// DefaultRecurlyAPIVersion is sent in the Accept header
	DefaultRecurlyAPIVersion = "v2021-02-25"
)

// RecurlyConfig holds configuration shared by every Recurly client the
// factory creates. Site credentials come from the gateway configuration.
type RecurlyConfig struct {
	// BaseURL is the API endpoint (https://v3.recurly.com or https://v3.eu.recurly.com)
	BaseURL string `json:"base_url" mapstructure:"base_url"`

	// APIVersion selects the API version through the Accept header
	APIVersion string `json:"api_version" mapstructure:"api_version"`

	// RequestTimeout bounds a single HTTP round trip
	RequestTimeout time.Duration `json:"request_timeout" mapstructure:"request_timeout"`

	// BreakerMaxFailures is the number of consecutive failures that opens the breaker
	BreakerMaxFailures uint32 `json:"breaker_max_failures" mapstructure:"breaker_max_failures"`

	// BreakerOpenTimeout is how long the breaker stays open before probing
	BreakerOpenTimeout time.Duration `json:"breaker_open_timeout" mapstructure:"breaker_open_timeout"`

	// BreakerHalfOpenRequests is the number of probe requests allowed while half-open
	BreakerHalfOpenRequests uint32 `json:"breaker_half_open_requests" mapstructure:"breaker_half_open_requests"`

	// AdminURLFormat builds links to accounts in the Recurly admin UI from the
	// site subdomain and the account code
	AdminURLFormat string `json:"admin_url_format" mapstructure:"admin_url_format"`

	// ListPageSize is the page size requested from list endpoints
	ListPageSize int `json:"list_page_size" mapstructure:"list_page_size"`
}

// DefaultRecurlyConfig returns a default configuration
func DefaultRecurlyConfig() *RecurlyConfig {
	return &RecurlyConfig{
		BaseURL:                 DefaultRecurlyBaseURL,
		APIVersion:              DefaultRecurlyAPIVersion,
		RequestTimeout:          30 * time.Second,
		BreakerMaxFailures:      5,
		BreakerOpenTimeout:      30 * time.Second,
		BreakerHalfOpenRequests: 1,
		AdminURLFormat:          "https://%s.recurly.com/accounts/%s",
		ListPageSize:            200,
	}
}

// Validate validates the Recurly configuration
func (c *RecurlyConfig) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("recurly: base URL is required")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("recurly: invalid base URL %q", c.BaseURL)
	}
	if c.APIVersion == "" {
		return fmt.Errorf("recurly: API version is required")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("recurly: request timeout must be positive")
	}
	if c.BreakerMaxFailures == 0 {
		return fmt.Errorf("recurly: breaker max failures must be positive")
	}
	if c.ListPageSize <= 0 || c.ListPageSize > 200 {
		return fmt.Errorf("recurly: list page size must be between 1 and 200")
	}
	return nil
}

// acceptHeader returns the versioned media type
func (c *RecurlyConfig) acceptHeader() string {
	return "application/vnd.recurly." + c.APIVersion + "+json"
}

// adminURL returns the admin UI link for an account, or "" without a subdomain
func (c *RecurlyConfig) adminURL(subdomain, code string) string {
	if subdomain == "" || c.AdminURLFormat == "" {
		return ""
	}
	return fmt.Sprintf(c.AdminURLFormat, subdomain, url.PathEscape(code))
}
