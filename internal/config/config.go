/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrConfig indicates missing or invalid settings. It is fatal at startup.
var ErrConfig = errors.New("invalid configuration")

// CalendarSource selects where calendar entries come from.
type CalendarSource string

const (
	CalendarGraph CalendarSource = "graph"
	CalendarFile  CalendarSource = "file"
)

// DefaultPath is the settings document read when no path is given.
const DefaultPath = "settings.yaml"

// Config is the settings document plus environment overrides.
type Config struct {
	Environment string `yaml:"environment"`

	// Microsoft Graph app registration and mailbox.
	TenantID     string `yaml:"tenant_id"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	UserAccount  string `yaml:"user_account"`
	CalendarID   string `yaml:"calendar_id"`

	CalendarSource CalendarSource `yaml:"calendar_source"`
	CalendarFile   string         `yaml:"calendar_file"`

	TimeWindowMinutes int    `yaml:"time_window_minutes"`
	SubjectRegex      string `yaml:"subject_regex"`

	// Internet-on-Demand provisioning API.
	IoDURL                string `yaml:"iod_url"`
	IoDSecret             string `yaml:"iod_secret"`
	CustomerNumber        string `yaml:"customer_number"`
	QuoteTemplate         string `yaml:"quote_template"`
	OrderTemplate         string `yaml:"order_template"`
	PartnerAnchor         string `yaml:"partner_anchor"`
	WaitForUpdatesMinutes int    `yaml:"wait_for_updates_minutes"`
	HTTPTimeoutSeconds    int    `yaml:"http_timeout_seconds"`

	LogLocation string `yaml:"log_location"`
	MetricsBind string `yaml:"metrics_bind"`
	NATSURL     string `yaml:"nats_url"`

	// Tracing configuration
	TracingEnabled    bool    `yaml:"tracing_enabled"`
	OTLPEndpoint      string  `yaml:"otlp_endpoint"`
	TracingSampleRate float64 `yaml:"tracing_sample_rate"`
}

// Load reads the settings document at path, merges the optional
// settings.<environment>.yaml overlay next to it, applies IOD_* environment
// overrides and defaults, and validates the calendar side of the result.
// Provisioning settings are checked separately by ValidateProvisioning.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	cfg := &Config{}
	if err := decodeFile(path, cfg); err != nil {
		return nil, err
	}

	env := getEnvAny([]string{"IOD_ENV"}, cfg.Environment)
	if env != "" {
		overlay := filepath.Join(filepath.Dir(path), "settings."+env+".yaml")
		if _, err := os.Stat(overlay); err == nil {
			if err := decodeFile(overlay, cfg); err != nil {
				return nil, err
			}
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults(filepath.Dir(path))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: read %s: %v", ErrConfig, path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("%w: parse %s: %v", ErrConfig, path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Environment = getEnvAny([]string{"IOD_ENV"}, c.Environment)
	c.TenantID = getEnvAny([]string{"IOD_TENANT_ID", "AZURE_TENANT_ID"}, c.TenantID)
	c.ClientID = getEnvAny([]string{"IOD_CLIENT_ID", "AZURE_CLIENT_ID"}, c.ClientID)
	c.ClientSecret = getEnvAny([]string{"IOD_CLIENT_SECRET", "AZURE_CLIENT_SECRET"}, c.ClientSecret)
	c.UserAccount = getEnvAny([]string{"IOD_USER_ACCOUNT"}, c.UserAccount)
	c.CalendarID = getEnvAny([]string{"IOD_CALENDAR_ID"}, c.CalendarID)
	c.IoDURL = getEnvAny([]string{"IOD_URL"}, c.IoDURL)
	c.IoDSecret = getEnvAny([]string{"IOD_SECRET"}, c.IoDSecret)
	c.CustomerNumber = getEnvAny([]string{"IOD_CUSTOMER_NUMBER"}, c.CustomerNumber)
	c.LogLocation = getEnvAny([]string{"IOD_LOG_LOCATION"}, c.LogLocation)
	c.MetricsBind = getEnvAny([]string{"IOD_METRICS_BIND"}, c.MetricsBind)
	c.NATSURL = getEnvAny([]string{"IOD_NATS_URL", "NATS_URL"}, c.NATSURL)
	c.TracingEnabled = getEnvBoolAny([]string{"IOD_TRACING_ENABLED"}, c.TracingEnabled)
	c.OTLPEndpoint = getEnvAny([]string{"IOD_OTLP_ENDPOINT"}, c.OTLPEndpoint)
	c.TracingSampleRate = getEnvFloatAny([]string{"IOD_TRACING_SAMPLE_RATE"}, c.TracingSampleRate)
}

func (c *Config) applyDefaults(baseDir string) {
	if c.Environment == "" {
		c.Environment = "production"
	}
	if c.CalendarSource == "" {
		c.CalendarSource = CalendarGraph
	}
	if c.TimeWindowMinutes == 0 {
		c.TimeWindowMinutes = 60
	}
	if c.WaitForUpdatesMinutes == 0 {
		c.WaitForUpdatesMinutes = 5
	}
	if c.HTTPTimeoutSeconds == 0 {
		c.HTTPTimeoutSeconds = 30
	}
	if c.QuoteTemplate == "" {
		c.QuoteTemplate = filepath.Join("templates", "createQuote.json")
	}
	if c.OrderTemplate == "" {
		c.OrderTemplate = filepath.Join("templates", "bandwidthUpdate.json")
	}
	if c.OTLPEndpoint == "" {
		c.OTLPEndpoint = "localhost:4317"
	}
	if c.TracingSampleRate == 0 {
		c.TracingSampleRate = 1.0
	}

	c.QuoteTemplate = resolve(baseDir, c.QuoteTemplate)
	c.OrderTemplate = resolve(baseDir, c.OrderTemplate)
	if c.CalendarFile != "" {
		c.CalendarFile = resolve(baseDir, c.CalendarFile)
	}
}

// resolve makes relative paths relative to the settings document.
func resolve(baseDir, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(baseDir, p)
}

// Validate checks everything needed to read and resolve the calendar.
func (c *Config) Validate() error {
	var problems []string

	switch c.CalendarSource {
	case CalendarGraph:
		problems = appendMissing(problems, map[string]string{
			"tenant_id":     c.TenantID,
			"client_id":     c.ClientID,
			"client_secret": c.ClientSecret,
			"user_account":  c.UserAccount,
			"calendar_id":   c.CalendarID,
		})
	case CalendarFile:
		problems = appendMissing(problems, map[string]string{"calendar_file": c.CalendarFile})
	default:
		problems = append(problems, fmt.Sprintf("calendar_source %q is not one of graph, file", c.CalendarSource))
	}

	if c.SubjectRegex == "" {
		problems = append(problems, "subject_regex is required")
	} else if _, err := regexp.Compile(c.SubjectRegex); err != nil {
		problems = append(problems, fmt.Sprintf("subject_regex does not compile: %v", err))
	}
	if c.TimeWindowMinutes < 0 {
		problems = append(problems, "time_window_minutes must be positive")
	}
	if c.TracingSampleRate < 0 || c.TracingSampleRate > 1 {
		problems = append(problems, "tracing_sample_rate must be between 0 and 1")
	}

	return joinProblems(problems)
}

// ValidateProvisioning checks the settings needed to talk to the
// provisioning API.
func (c *Config) ValidateProvisioning() error {
	problems := appendMissing(nil, map[string]string{
		"iod_url":         c.IoDURL,
		"iod_secret":      c.IoDSecret,
		"customer_number": c.CustomerNumber,
	})
	if c.WaitForUpdatesMinutes < 0 {
		problems = append(problems, "wait_for_updates_minutes must not be negative")
	}
	if c.HTTPTimeoutSeconds < 0 {
		problems = append(problems, "http_timeout_seconds must not be negative")
	}
	return joinProblems(problems)
}

// TimeWindow is the length of the monitoring window.
func (c *Config) TimeWindow() time.Duration {
	return time.Duration(c.TimeWindowMinutes) * time.Minute
}

// GracePeriod is the wait between ordering and verifying.
func (c *Config) GracePeriod() time.Duration {
	return time.Duration(c.WaitForUpdatesMinutes) * time.Minute
}

// HTTPTimeout bounds every provisioning request.
func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}

func appendMissing(problems []string, required map[string]string) []string {
	var missing []string
	for key, val := range required {
		if strings.TrimSpace(val) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) == 0 {
		return problems
	}
	slices.Sort(missing)
	return append(problems, "missing "+strings.Join(missing, ", "))
}

func joinProblems(problems []string) error {
	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrConfig, strings.Join(problems, "; "))
}

// getEnvAny returns the first non-empty environment variable value from keys, or def if none set.
func getEnvAny(keys []string, def string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

// getEnvBoolAny returns the first set boolean environment variable value from keys, or def.
func getEnvBoolAny(keys []string, def bool) bool {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			v = strings.ToLower(strings.TrimSpace(v))
			if v == "true" || v == "1" || v == "yes" {
				return true
			}
			if v == "false" || v == "0" || v == "no" {
				return false
			}
		}
	}
	return def
}

// getEnvFloatAny returns the first set float environment variable value from keys, or def.
func getEnvFloatAny(keys []string, def float64) float64 {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.ParseFloat(v, 64); err == nil {
				return parsed
			}
		}
	}
	return def
}
