/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package provisioning

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderQuoteWithoutPartner(t *testing.T) {
	tpl := NewTemplates(testQuoteTemplate, testOrderTemplate, "")

	body, err := tpl.RenderQuote("CUST-1", QuoteFields{SiteID: "SITE-9", Bandwidth: "50Mbps"})
	require.NoError(t, err)

	var got map[string]string
	require.NoError(t, json.Unmarshal([]byte(body), &got))
	assert.Equal(t, "CUST-1", got["customerNumber"])
	assert.Equal(t, "SITE-9", got["siteId"])
	assert.Equal(t, "50Mbps", got["bandwidth"])
	assert.NotContains(t, got, "PartnerId")
}

func TestRenderQuoteInjectsPartnerOnce(t *testing.T) {
	tpl := NewTemplates(testQuoteTemplate, testOrderTemplate, "")

	body, err := tpl.RenderQuote("CUST-1", QuoteFields{SiteID: "S", Bandwidth: "1", PartnerID: "P-1"})
	require.NoError(t, err)

	var got map[string]string
	require.NoError(t, json.Unmarshal([]byte(body), &got))
	assert.Equal(t, "P-1", got["PartnerId"])
	assert.Equal(t, 1, strings.Count(body, `"PartnerId"`))
}

func TestRenderQuoteMissingAnchor(t *testing.T) {
	tpl := NewTemplates(`{"siteId":"{MasterSiteId}"}`, testOrderTemplate, "")

	_, err := tpl.RenderQuote("C", QuoteFields{SiteID: "S", PartnerID: "P"})
	require.ErrorIs(t, err, ErrTemplate)
}

func TestRenderQuoteCustomAnchor(t *testing.T) {
	tpl := NewTemplates(`{"a": 1, "siteId":"{MasterSiteId}"}`, testOrderTemplate, `"a": 1,`)

	body, err := tpl.RenderQuote("C", QuoteFields{SiteID: "S", PartnerID: "P"})
	require.NoError(t, err)
	assert.Contains(t, body, `"PartnerId": "P"`)
}

func TestRenderEscapesValues(t *testing.T) {
	tpl := NewTemplates(testQuoteTemplate, testOrderTemplate, "")

	body, err := tpl.RenderOrder(OrderFields{AccountName: "Quote \" and \\ slash\nnewline"})
	require.NoError(t, err)

	var got map[string]string
	require.NoError(t, json.Unmarshal([]byte(body), &got))
	assert.Equal(t, "Quote \" and \\ slash\nnewline", got["accountName"])
}

func TestRenderRejectsInvalidJSON(t *testing.T) {
	tpl := NewTemplates(`{"siteId": {MasterSiteId}}`, ``, "")

	_, err := tpl.RenderQuote("C", QuoteFields{SiteID: "S"})
	require.ErrorIs(t, err, ErrTemplate)

	_, err = tpl.RenderOrder(OrderFields{})
	require.ErrorIs(t, err, ErrTemplate)
}

func TestLoadTemplates(t *testing.T) {
	dir := t.TempDir()
	quote := filepath.Join(dir, "quote.json")
	order := filepath.Join(dir, "order.json")
	require.NoError(t, os.WriteFile(quote, []byte(testQuoteTemplate), 0o600))
	require.NoError(t, os.WriteFile(order, []byte(testOrderTemplate), 0o600))

	tpl, err := LoadTemplates(quote, order, "")
	require.NoError(t, err)
	assert.Equal(t, DefaultPartnerAnchor, tpl.PartnerAnchor)
	assert.Equal(t, testOrderTemplate, tpl.Order)

	_, err = LoadTemplates(filepath.Join(dir, "missing.json"), order, "")
	require.ErrorIs(t, err, ErrTemplate)
}
