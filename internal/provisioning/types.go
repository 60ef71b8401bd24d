/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package provisioning

import (
	"encoding/json"
	"strings"
)

const characteristicBandwidth = "Bandwidth"

// Product statuses reported by the inventory.
const (
	StatusActive        = "Active"
	StatusChangePending = "Change pending"
)

// Inventory is the subset of a service inventory record needed to quote and
// order a bandwidth change.
type Inventory struct {
	Status        string
	AccountNumber string
	AccountName   string
	SiteID        string
	DataCenter    bool
	PartnerID     string // set only for data-center services
}

// ServiceStatus is the product status and provisioned bandwidth of a service.
type ServiceStatus struct {
	Status       string
	Bandwidth    string
	HasBandwidth bool
}

// QuoteFields are the values substituted into the quote template.
type QuoteFields struct {
	SiteID    string
	Bandwidth string
	PartnerID string
}

// OrderFields are the values substituted into the order template.
type OrderFields struct {
	QuoteID        string
	ServiceID      string
	AccountName    string
	AccountNumber  string
	CalendarItemID string
	ExternalID     string
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

type quoteResponse struct {
	ID string `json:"id"`
}

type inventoryResponse struct {
	ServiceInventory []inventoryRecord `json:"serviceInventory"`
}

type inventoryRecord struct {
	Product struct {
		Status          string           `json:"status"`
		Characteristics []characteristic `json:"productCharacteristic"`
	} `json:"product"`
	BillingAccount struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"billingAccount"`
	Location struct {
		MasterSiteID string `json:"masterSiteid"`
	} `json:"location"`
	LocationProfile struct {
		DataCenter   bool `json:"dataCenter"`
		RelatedParty struct {
			ID string `json:"id"`
		} `json:"relatedParty"`
	} `json:"locationProfile"`
}

type characteristic struct {
	Name  string          `json:"name"`
	Value json.RawMessage `json:"value"`
}

// stringValue renders the characteristic value as text. The API sends
// bandwidth either as a JSON string or as a bare number.
func (c characteristic) stringValue() string {
	raw := strings.TrimSpace(string(c.Value))
	if raw == "" || raw == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(c.Value, &s); err == nil {
		return s
	}
	return raw
}
