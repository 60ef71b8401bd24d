/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package calendar

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	_ "time/tzdata"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGraphServer(t *testing.T, pages func(srvURL string, r *http.Request) (int, string)) (*GraphSource, *int32) {
	t.Helper()
	var tokenCalls int32

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	mux.HandleFunc("POST /tenant/token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&tokenCalls, 1)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		assert.Equal(t, "https://graph.microsoft.com/.default", r.PostForm.Get("scope"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"access_token":"graph-token","token_type":"Bearer","expires_in":3600}`)
	})
	mux.HandleFunc("GET /v1.0/users/{user}/calendars/{cal}/calendarView", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer graph-token", r.Header.Get("Authorization"))
		assert.Equal(t, `outlook.timezone="UTC"`, r.Header.Get("Prefer"))
		assert.Equal(t, "sched@example.com", r.PathValue("user"))
		assert.Equal(t, "cal-1", r.PathValue("cal"))
		status, body := pages(srv.URL, r)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	})

	src := NewGraphSource(GraphConfig{
		TenantID:     "tenant",
		ClientID:     "client",
		ClientSecret: "secret",
		UserAccount:  "sched@example.com",
		CalendarID:   "cal-1",
		BaseURL:      srv.URL + "/v1.0",
		TokenURL:     srv.URL + "/tenant/token",
	}, zerolog.Nop())
	return src, &tokenCalls
}

func TestGraphSourceFollowsNextLink(t *testing.T) {
	src, tokenCalls := newGraphServer(t, func(srvURL string, r *http.Request) (int, string) {
		if r.URL.Query().Get("page") == "2" {
			return http.StatusOK, `{"value":[
				{"iCalUId":"ical-2","subject":"BW 300-400","start":{"dateTime":"2026-10-16T10:30:00.0000000","timeZone":"UTC"},
				 "end":{"dateTime":"2026-10-16T12:00:00.0000000","timeZone":"UTC"},"location":{"displayName":"SVC1"},"categories":["a","b"]}
			]}`
		}
		assert.Equal(t, "2026-10-16T09:00:00Z", r.URL.Query().Get("startDateTime"))
		assert.Equal(t, "2026-10-16T13:00:00Z", r.URL.Query().Get("endDateTime"))
		assert.Equal(t, "subject,start,end,location,categories,iCalUId", r.URL.Query().Get("$select"))
		next := fmt.Sprintf("%s/v1.0/users/sched@example.com/calendars/cal-1/calendarView?page=2", srvURL)
		return http.StatusOK, `{"value":[
			{"iCalUId":"ical-1","subject":"BW 100-200","start":{"dateTime":"2026-10-16T10:00:00","timeZone":"UTC"},
			 "end":{"dateTime":"2026-10-16T11:00:00","timeZone":"UTC"},"location":{"displayName":"SVC1"},"categories":["a"]}
		],"@odata.nextLink":"` + next + `"}`
	})

	items, err := src.Events(context.Background(), at(9, 0), at(13, 0))
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, Item{
		ID:         "ical-1",
		Subject:    "BW 100-200",
		Location:   "SVC1",
		Start:      at(10, 0),
		End:        at(11, 0),
		Categories: []string{"a"},
	}, items[0])
	assert.Equal(t, "ical-2", items[1].ID)
	assert.Equal(t, at(10, 30), items[1].Start)
	assert.Equal(t, int32(1), atomic.LoadInt32(tokenCalls), "token should be cached across pages")
}

func TestGraphSourceNullCollection(t *testing.T) {
	src, _ := newGraphServer(t, func(string, *http.Request) (int, string) {
		return http.StatusOK, `{"value":null}`
	})

	items, err := src.Events(context.Background(), at(9, 0), at(10, 0))
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestGraphSourceConvertsTimeZones(t *testing.T) {
	src, _ := newGraphServer(t, func(string, *http.Request) (int, string) {
		return http.StatusOK, `{"value":[{"iCalUId":"tz","start":{"dateTime":"2026-10-16T12:00:00","timeZone":"Europe/Berlin"},
			"end":{"dateTime":"2026-10-16T13:00:00","timeZone":"Europe/Berlin"},"location":{"displayName":"SVC1"}}]}`
	})

	items, err := src.Events(context.Background(), at(9, 0), at(13, 0))
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, at(10, 0), items[0].Start)
}

func TestGraphSourceErrorStatus(t *testing.T) {
	src, _ := newGraphServer(t, func(string, *http.Request) (int, string) {
		return http.StatusForbidden, `{"error":{"code":"ErrorAccessDenied"}}`
	})

	_, err := src.Events(context.Background(), at(9, 0), at(10, 0))
	require.ErrorIs(t, err, ErrCalendar)
	assert.Contains(t, err.Error(), "ErrorAccessDenied")
}
