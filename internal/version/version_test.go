/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package version

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCompareVersions(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"0.4.0", "0.4.0", 0},
		{"0.4.0", "v0.5.0", -1},
		{"1.0.10", "1.0.9", 1},
		{"1.2", "1.2.0", 0},
	}
	for _, tt := range tests {
		if got := compareVersions(tt.a, tt.b); got != tt.want {
			t.Errorf("compareVersions(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestTruncateNotes(t *testing.T) {
	if got := truncateNotes("first line\nsecond", 100); got != "first line" {
		t.Fatalf("got %q", got)
	}
	if got := truncateNotes(strings.Repeat("x", 20), 10); got != "xxxxxxx..." {
		t.Fatalf("got %q", got)
	}
}

func TestCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/"+GitHubRepo+"/releases/latest" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"tag_name":"v99.0.0","html_url":"https://example.com/r","body":"Faster verification\nmore"}`))
	}))
	defer srv.Close()

	c := NewChecker()
	c.apiURL = srv.URL

	info, err := c.Check(context.Background())
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !info.UpdateAvailable || info.LatestVersion != "99.0.0" || info.ReleaseNotes != "Faster verification" {
		t.Fatalf("unexpected info %+v", info)
	}
}

func TestCheckBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewChecker()
	c.apiURL = srv.URL
	if _, err := c.Check(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
