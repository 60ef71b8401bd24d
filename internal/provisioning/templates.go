/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package provisioning

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

// DefaultPartnerAnchor is the template text after which the partner id member
// is inserted for data-center services.
const DefaultPartnerAnchor = `"NaaS ExternalApi",`

// Template placeholders.
const (
	PlaceholderCustomerNumber = "{Customer Number}"
	PlaceholderSiteID         = "{MasterSiteId}"
	PlaceholderBandwidth      = "{Bandwidth}"
	PlaceholderQuoteID        = "{QuoteId}"
	PlaceholderServiceID      = "{ServiceId}"
	PlaceholderAccountName    = "{AccountName}"
	PlaceholderAccountNumber  = "{AccountNumber}"
	PlaceholderCalendarItemID = "{CalendarItemId}"
	PlaceholderExternalID     = "{ExternalId}"
)

// ErrTemplate indicates a payload template could not be loaded or rendered.
var ErrTemplate = errors.New("payload template error")

// Templates holds the quote and order request bodies.
type Templates struct {
	Quote         string
	Order         string
	PartnerAnchor string
}

// LoadTemplates reads both templates from disk. An empty anchor selects
// DefaultPartnerAnchor.
func LoadTemplates(quotePath, orderPath, anchor string) (*Templates, error) {
	quote, err := os.ReadFile(quotePath)
	if err != nil {
		return nil, fmt.Errorf("%w: read quote template: %v", ErrTemplate, err)
	}
	order, err := os.ReadFile(orderPath)
	if err != nil {
		return nil, fmt.Errorf("%w: read order template: %v", ErrTemplate, err)
	}
	return NewTemplates(string(quote), string(order), anchor), nil
}

// NewTemplates builds Templates from in-memory bodies.
func NewTemplates(quote, order, anchor string) *Templates {
	if anchor == "" {
		anchor = DefaultPartnerAnchor
	}
	return &Templates{Quote: quote, Order: order, PartnerAnchor: anchor}
}

// RenderQuote fills the quote template. A non-empty PartnerID is injected
// after the partner anchor.
func (t *Templates) RenderQuote(customerNumber string, f QuoteFields) (string, error) {
	body := t.Quote
	if f.PartnerID != "" {
		if !strings.Contains(body, t.PartnerAnchor) {
			return "", fmt.Errorf("%w: quote template has no partner anchor %q", ErrTemplate, t.PartnerAnchor)
		}
		member := t.PartnerAnchor + "\n    \"PartnerId\": \"" + jsonEscape(f.PartnerID) + "\","
		body = strings.Replace(body, t.PartnerAnchor, member, 1)
	}

	r := strings.NewReplacer(
		PlaceholderCustomerNumber, jsonEscape(customerNumber),
		PlaceholderSiteID, jsonEscape(f.SiteID),
		PlaceholderBandwidth, jsonEscape(f.Bandwidth),
	)
	return finish("quote", r.Replace(body))
}

// RenderOrder fills the order template.
func (t *Templates) RenderOrder(f OrderFields) (string, error) {
	r := strings.NewReplacer(
		PlaceholderQuoteID, jsonEscape(f.QuoteID),
		PlaceholderServiceID, jsonEscape(f.ServiceID),
		PlaceholderAccountName, jsonEscape(f.AccountName),
		PlaceholderAccountNumber, jsonEscape(f.AccountNumber),
		PlaceholderCalendarItemID, jsonEscape(f.CalendarItemID),
		PlaceholderExternalID, jsonEscape(f.ExternalID),
	)
	return finish("order", r.Replace(t.Order))
}

func finish(name, body string) (string, error) {
	if strings.TrimSpace(body) == "" {
		return "", fmt.Errorf("%w: %s template is empty", ErrTemplate, name)
	}
	if !json.Valid([]byte(body)) {
		return "", fmt.Errorf("%w: rendered %s body is not valid JSON", ErrTemplate, name)
	}
	return body, nil
}

// jsonEscape returns s encoded for use inside a JSON string literal.
func jsonEscape(s string) string {
	b, _ := json.Marshal(s)
	return string(b[1 : len(b)-1])
}
