/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	defaultGraphURL = "https://graph.microsoft.com/v1.0"
	graphScope      = "https://graph.microsoft.com/.default"
	graphSelect     = "subject,start,end,location,categories,iCalUId"
	graphTimeLayout = "2006-01-02T15:04:05.9999999"
	maxPages        = 100
)

// GraphConfig identifies the app registration and the calendar to read.
type GraphConfig struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	UserAccount  string
	CalendarID   string

	// Overrides for sovereign clouds and tests. Empty means public cloud.
	BaseURL  string
	TokenURL string
	Timeout  time.Duration
}

// GraphSource reads a calendar view from Microsoft Graph with app-only
// credentials.
type GraphSource struct {
	cfg    GraphConfig
	client *http.Client
	logger zerolog.Logger
}

// NewGraphSource creates a Graph-backed source. Tokens are fetched and cached
// by the oauth2 client-credentials flow.
func NewGraphSource(cfg GraphConfig, logger zerolog.Logger) *GraphSource {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultGraphURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.TokenURL == "" {
		cfg.TokenURL = "https://login.microsoftonline.com/" + url.PathEscape(cfg.TenantID) + "/oauth2/v2.0/token"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	base := &http.Client{
		Timeout:   cfg.Timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
		Scopes:       []string{graphScope},
	}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)

	return &GraphSource{
		cfg:    cfg,
		client: cc.Client(ctx),
		logger: logger.With().Str("component", "calendar").Str("source", "graph").Logger(),
	}
}

type graphEventPage struct {
	Value    []graphEvent `json:"value"`
	NextLink string       `json:"@odata.nextLink"`
}

type graphEvent struct {
	ICalUID    string        `json:"iCalUId"`
	Subject    string        `json:"subject"`
	Start      graphDateTime `json:"start"`
	End        graphDateTime `json:"end"`
	Location   graphLocation `json:"location"`
	Categories []string      `json:"categories"`
}

type graphDateTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

type graphLocation struct {
	DisplayName string `json:"displayName"`
}

// Events pages through the calendar view for [start, end). A response without
// a value collection yields no items.
func (s *GraphSource) Events(ctx context.Context, start, end time.Time) ([]Item, error) {
	query := url.Values{}
	query.Set("startDateTime", start.UTC().Format(time.RFC3339))
	query.Set("endDateTime", end.UTC().Format(time.RFC3339))
	query.Set("$select", graphSelect)
	query.Set("$orderby", "start/dateTime")

	next := fmt.Sprintf("%s/users/%s/calendars/%s/calendarView?%s",
		s.cfg.BaseURL, url.PathEscape(s.cfg.UserAccount), url.PathEscape(s.cfg.CalendarID), query.Encode())

	items := []Item{}
	for page := 0; next != ""; page++ {
		if page == maxPages {
			return nil, fmt.Errorf("%w: more than %d pages", ErrCalendar, maxPages)
		}

		events, link, err := s.fetchPage(ctx, next)
		if err != nil {
			return nil, err
		}
		for _, ev := range events {
			item, err := ev.item()
			if err != nil {
				return nil, err
			}
			items = append(items, item)
		}
		next = link
	}

	s.logger.Debug().Int("items", len(items)).Time("start", start).Time("end", end).Msg("calendar view read")
	return items, nil
}

func (s *GraphSource) fetchPage(ctx context.Context, pageURL string) ([]graphEvent, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("%w: build request: %v", ErrCalendar, err)
	}
	req.Header.Set("Prefer", `outlook.timezone="UTC"`)
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrCalendar, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("%w: read response: %v", ErrCalendar, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("%w: graph returned status %d: %s", ErrCalendar, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var page graphEventPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, "", fmt.Errorf("%w: parse calendar view: %v", ErrCalendar, err)
	}
	return page.Value, page.NextLink, nil
}

func (e graphEvent) item() (Item, error) {
	start, err := e.Start.parse()
	if err != nil {
		return Item{}, fmt.Errorf("%w: event %q start: %v", ErrCalendar, e.ICalUID, err)
	}
	end, err := e.End.parse()
	if err != nil {
		return Item{}, fmt.Errorf("%w: event %q end: %v", ErrCalendar, e.ICalUID, err)
	}
	return Item{
		ID:         e.ICalUID,
		Subject:    e.Subject,
		Location:   e.Location.DisplayName,
		Start:      start,
		End:        end,
		Categories: e.Categories,
	}, nil
}

// parse reads a Graph dateTimeTimeZone. Times are requested in UTC; other
// zones are honoured when Graph ignores the preference.
func (d graphDateTime) parse() (time.Time, error) {
	loc := time.UTC
	if d.TimeZone != "" && !strings.EqualFold(d.TimeZone, "UTC") {
		l, err := time.LoadLocation(d.TimeZone)
		if err != nil {
			return time.Time{}, fmt.Errorf("unknown time zone %q", d.TimeZone)
		}
		loc = l
	}
	t, err := time.ParseInLocation(graphTimeLayout, d.DateTime, loc)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
