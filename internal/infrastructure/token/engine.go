// Package token replaces bracketed tokens such as [commerce_order:uid:target_id]
// in account ID patterns and custom field templates with values from an order.
package token

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/erp/commerce-recurly/internal/domain/commerce"
	"github.com/erp/commerce-recurly/internal/domain/gateway"
)

// Resolver returns the value of one token for an order.
type Resolver func(order *commerce.Order) string

// tokenPattern matches [type:name] and [type:name:sub...].
var tokenPattern = regexp.MustCompile(`\[([a-z_]+)((?::[a-zA-Z0-9_-]+)+)\]`)

// Engine renders token templates against an order. Unknown tokens fail.
type Engine struct {
	resolvers map[string]Resolver
}

// NewEngine creates an engine with the order and user tokens registered
func NewEngine() *Engine {
	e := &Engine{}

	e.resolvers = map[string]Resolver{
		// Order
		"commerce_order:order_id":     func(o *commerce.Order) string { return o.ID.String() },
		"commerce_order:uuid":         func(o *commerce.Order) string { return o.ID.String() },
		"commerce_order:order_number": func(o *commerce.Order) string { return o.OrderNumber },
		"commerce_order:store_id":     func(o *commerce.Order) string { return o.StoreID },
		"commerce_order:mail":         func(o *commerce.Order) string { return o.MailAddress() },

		// Customer
		"commerce_order:uid":                 customerID,
		"commerce_order:uid:target_id":       customerID,
		"commerce_order:uid:entity:uid":      customerID,
		"commerce_order:customer_id":         customerID,
		"commerce_order:uid:entity:mail":     customerMail,
		"commerce_order:customer:mail":       customerMail,
		"user:id":                            customerID,
		"user:uid":                           customerID,
		"user:mail":                          customerMail,
		"commerce_order:billing_profile:uid": customerID,
	}

	for field, get := range addressFields {
		r := addressResolver(get)
		e.resolvers["commerce_order:billing_profile:address:"+field] = r
		e.resolvers["commerce_order:billing_profile:entity:address:"+field] = r
	}

	return e
}

// Render implements gateway.TemplateRenderer.
func (e *Engine) Render(ctx context.Context, template string, order *commerce.Order) (string, error) {
	if order == nil {
		return "", &gateway.TemplateRenderError{Template: template, Reason: "order is nil"}
	}

	var unknown []string
	out := tokenPattern.ReplaceAllStringFunc(template, func(match string) string {
		name := match[1 : len(match)-1]
		r, ok := e.resolvers[name]
		if !ok {
			unknown = append(unknown, match)
			return match
		}
		return r(order)
	})

	if len(unknown) > 0 {
		return "", &gateway.TemplateRenderError{
			Template: template,
			Reason:   fmt.Sprintf("unknown token %s", strings.Join(unknown, ", ")),
		}
	}

	return out, nil
}

// UnknownTokens implements gateway.TemplateInspector.
func (e *Engine) UnknownTokens(template string) []string {
	var unknown []string
	for _, match := range scan(template) {
		if _, ok := e.resolvers[match[1:len(match)-1]]; !ok {
			unknown = append(unknown, match)
		}
	}
	return unknown
}

// scan returns the tokens found in template, in order of appearance.
func scan(template string) []string {
	return tokenPattern.FindAllString(template, -1)
}

func customerID(o *commerce.Order) string {
	return o.Customer.ID
}

func customerMail(o *commerce.Order) string {
	return o.Customer.Email
}

var addressFields = map[string]func(a commerce.Address) string{
	"given_name":          func(a commerce.Address) string { return a.GivenName },
	"family_name":         func(a commerce.Address) string { return a.FamilyName },
	"organization":        func(a commerce.Address) string { return a.Organization },
	"address_line1":       func(a commerce.Address) string { return a.AddressLine1 },
	"address_line2":       func(a commerce.Address) string { return a.AddressLine2 },
	"locality":            func(a commerce.Address) string { return a.Locality },
	"administrative_area": func(a commerce.Address) string { return a.AdministrativeArea },
	"postal_code":         func(a commerce.Address) string { return a.PostalCode },
	"country_code":        func(a commerce.Address) string { return a.CountryCode },
}

func addressResolver(get func(a commerce.Address) string) Resolver {
	return func(o *commerce.Order) string {
		return get(o.BillingProfile.Address)
	}
}
