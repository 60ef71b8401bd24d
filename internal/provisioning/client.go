/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package provisioning is a client for the Lumen Internet-on-Demand API used
// to look up services, price bandwidth changes and submit change orders.
package provisioning

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/friendsincode/iod_scheduler/internal/telemetry"
)

// API paths relative to the configured base URL.
const (
	pathToken     = "/oauth/v2/token"
	pathInventory = "/ProductInventory/v1/inventory"
	pathQuote     = "/Product/v1/priceRequest"
	pathOrder     = "/Customer/v3/Ordering/orderRequest"
)

const maxErrorBody = 512

var (
	// ErrAuth indicates the token request was rejected or returned no token.
	ErrAuth = errors.New("provisioning authentication failed")

	// ErrNotFound indicates the service id is unknown to the inventory.
	ErrNotFound = errors.New("service not found")

	// ErrProtocol indicates a failed call or a response of unexpected shape.
	ErrProtocol = errors.New("provisioning protocol error")
)

// Config holds the provisioning API connection settings.
type Config struct {
	BaseURL        string
	Secret         string // pre-encoded client credentials for the Basic auth header
	CustomerNumber string // tenant identifier sent on every call
	Timeout        time.Duration
}

// Client performs stateless provisioning calls. It never retries; every
// operation may be repeated by the caller.
type Client struct {
	cfg        Config
	templates  *Templates
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates a provisioning client with a traced HTTP transport.
func NewClient(cfg Config, templates *Templates, logger zerolog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Client{
		cfg:       cfg,
		templates: templates,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger.With().Str("component", "provisioning").Logger(),
	}
}

// Authenticate requests a bearer token with the client-credentials grant.
func (c *Client) Authenticate(ctx context.Context) (Token, error) {
	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+pathToken, strings.NewReader(form.Encode()))
	if err != nil {
		return Token{}, fmt.Errorf("%w: build token request: %v", ErrAuth, err)
	}
	req.Header.Set("Authorization", "Basic "+c.cfg.Secret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var resp tokenResponse
	status, body, err := c.send(req, "authenticate")
	if err != nil {
		return Token{}, fmt.Errorf("%w: %v", ErrAuth, err)
	}
	if !isSuccess(status) {
		return Token{}, fmt.Errorf("%w: status %d: %s", ErrAuth, status, truncate(body))
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return Token{}, fmt.Errorf("%w: parse token response: %v", ErrAuth, err)
	}
	if resp.AccessToken == "" {
		return Token{}, fmt.Errorf("%w: response carried no access_token", ErrAuth)
	}

	return newToken(resp, time.Now()), nil
}

// FetchInventory looks up the billing and location details of a service.
func (c *Client) FetchInventory(ctx context.Context, token Token, serviceID string) (Inventory, error) {
	record, err := c.inventory(ctx, token, serviceID, "fetch_inventory")
	if err != nil {
		return Inventory{}, err
	}

	inv := Inventory{
		Status:        record.Product.Status,
		AccountNumber: record.BillingAccount.ID,
		AccountName:   record.BillingAccount.Name,
		SiteID:        record.Location.MasterSiteID,
		DataCenter:    record.LocationProfile.DataCenter,
	}
	if inv.DataCenter {
		inv.PartnerID = record.LocationProfile.RelatedParty.ID
		if inv.PartnerID == "" {
			return Inventory{}, fmt.Errorf("%w: data center service %s has no related party id", ErrProtocol, serviceID)
		}
	}
	return inv, nil
}

// CreateQuote requests a price quote for the bandwidth change and returns its id.
func (c *Client) CreateQuote(ctx context.Context, token Token, fields QuoteFields) (string, error) {
	body, err := c.templates.RenderQuote(c.cfg.CustomerNumber, fields)
	if err != nil {
		return "", err
	}

	req, err := c.newRequest(ctx, token, http.MethodPost, pathQuote, strings.NewReader(body))
	if err != nil {
		return "", err
	}

	status, respBody, err := c.send(req, "create_quote")
	if err != nil {
		return "", fmt.Errorf("%w: create quote: %v", ErrProtocol, err)
	}
	if !isSuccess(status) {
		return "", fmt.Errorf("%w: create quote: status %d: %s", ErrProtocol, status, truncate(respBody))
	}

	var resp quoteResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", fmt.Errorf("%w: parse quote response: %v", ErrProtocol, err)
	}
	if strings.TrimSpace(resp.ID) == "" {
		return "", fmt.Errorf("%w: quote response carried no id", ErrProtocol)
	}
	return resp.ID, nil
}

// SubmitOrder places the change order for a quote. Only success or failure is reported.
func (c *Client) SubmitOrder(ctx context.Context, token Token, fields OrderFields) error {
	body, err := c.templates.RenderOrder(fields)
	if err != nil {
		return err
	}

	req, err := c.newRequest(ctx, token, http.MethodPost, pathOrder, strings.NewReader(body))
	if err != nil {
		return err
	}

	status, respBody, err := c.send(req, "submit_order")
	if err != nil {
		return fmt.Errorf("%w: submit order: %v", ErrProtocol, err)
	}
	if !isSuccess(status) {
		return fmt.Errorf("%w: submit order: status %d: %s", ErrProtocol, status, truncate(respBody))
	}
	return nil
}

// CheckStatus re-reads the service inventory to report the product status and
// the bandwidth currently provisioned.
func (c *Client) CheckStatus(ctx context.Context, token Token, serviceID string) (ServiceStatus, error) {
	record, err := c.inventory(ctx, token, serviceID, "check_status")
	if err != nil {
		return ServiceStatus{}, err
	}

	st := ServiceStatus{Status: record.Product.Status}
	for _, ch := range record.Product.Characteristics {
		if ch.Name == characteristicBandwidth {
			st.Bandwidth = ch.stringValue()
			st.HasBandwidth = true
			break
		}
	}
	return st, nil
}

func (c *Client) inventory(ctx context.Context, token Token, serviceID, operation string) (inventoryRecord, error) {
	path := pathInventory + "?" + url.Values{"serviceId": {serviceID}}.Encode()
	req, err := c.newRequest(ctx, token, http.MethodGet, path, nil)
	if err != nil {
		return inventoryRecord{}, err
	}

	status, body, err := c.send(req, operation)
	if err != nil {
		return inventoryRecord{}, fmt.Errorf("%w: inventory %s: %v", ErrProtocol, serviceID, err)
	}
	if status == http.StatusNotFound {
		return inventoryRecord{}, fmt.Errorf("%w: %s", ErrNotFound, serviceID)
	}
	if !isSuccess(status) {
		return inventoryRecord{}, fmt.Errorf("%w: inventory %s: status %d: %s", ErrProtocol, serviceID, status, truncate(body))
	}

	var resp inventoryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return inventoryRecord{}, fmt.Errorf("%w: parse inventory %s: %v", ErrProtocol, serviceID, err)
	}
	if len(resp.ServiceInventory) == 0 {
		return inventoryRecord{}, fmt.Errorf("%w: %s", ErrNotFound, serviceID)
	}
	return resp.ServiceInventory[0], nil
}

func (c *Client) newRequest(ctx context.Context, token Token, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrProtocol, err)
	}
	req.Header.Set("Authorization", "Bearer "+token.Value)
	req.Header.Set("x-customer-number", c.cfg.CustomerNumber)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// send performs the request and returns status and body. Non-2xx statuses are
// returned to the caller, not converted into errors.
func (c *Client) send(req *http.Request, operation string) (int, []byte, error) {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		telemetry.ProvisioningRequestDuration.WithLabelValues(operation, "error").Observe(time.Since(start).Seconds())
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	result := "ok"
	if !isSuccess(resp.StatusCode) {
		result = "http_" + strconv.Itoa(resp.StatusCode)
	}
	telemetry.ProvisioningRequestDuration.WithLabelValues(operation, result).Observe(time.Since(start).Seconds())
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}

	c.logger.Debug().
		Str("operation", operation).
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("provisioning request")

	return resp.StatusCode, body, nil
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

func truncate(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBody {
		return s[:maxErrorBody] + "..."
	}
	return s
}
