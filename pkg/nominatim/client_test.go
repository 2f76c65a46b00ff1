package nominatim

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(
		WithBaseURL(srv.URL),
		WithHTTPClient(srv.Client()),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithRetry(3, time.Millisecond),
	)
}

func TestStreetName(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"road", `{"address":{"road":"Main Street","footway":"Path"}}`, "Main Street"},
		{"footway fallback", `{"address":{"footway":"Riverside Path","pedestrian":"Plaza"}}`, "Riverside Path"},
		{"pedestrian fallback", `{"address":{"pedestrian":"Market Square"}}`, "Market Square"},
		{"no street component", `{"address":{"city":"Berlin"}}`, ""},
		{"unable to geocode", `{"error":"Unable to geocode"}`, ""},
		{"malformed json", `{"address":`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				_, _ = io.WriteString(w, tt.body) //nolint:errcheck // test server
			})
			if got := c.StreetName(context.Background(), 52.52, 13.405); got != tt.want {
				t.Errorf("StreetName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestReverseRequest(t *testing.T) {
	var gotPath, gotUA string
	var gotQuery map[string][]string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query()
		gotUA = r.Header.Get("User-Agent")
		_, _ = io.WriteString(w, `{"display_name":"Main Street, Berlin","address":{"road":"Main Street","city":"Berlin"}}`) //nolint:errcheck // test server
	})

	addr, err := c.Reverse(context.Background(), 52.52, 13.405)
	if err != nil {
		t.Fatalf("Reverse() error = %v", err)
	}
	if addr.City != "Berlin" || addr.DisplayName != "Main Street, Berlin" {
		t.Errorf("Reverse() = %+v", addr)
	}
	if gotPath != "/reverse" {
		t.Errorf("path = %q, want /reverse", gotPath)
	}
	if gotUA != DefaultUserAgent {
		t.Errorf("User-Agent = %q, want %q", gotUA, DefaultUserAgent)
	}
	for k, want := range map[string]string{"lat": "52.52", "lon": "13.405", "format": "jsonv2"} {
		if got := gotQuery[k]; len(got) != 1 || got[0] != want {
			t.Errorf("query %s = %v, want %q", k, got, want)
		}
	}
}

func TestStreetNameNonSuccessStatus(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusForbidden)
	})
	if got := c.StreetName(context.Background(), 1, 2); got != "" {
		t.Errorf("StreetName() = %q, want empty", got)
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("requests = %d, want 1 (client errors are not retried)", got)
	}
}

func TestServerErrorsAreRetried(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = io.WriteString(w, `{"address":{"road":"Main Street"}}`) //nolint:errcheck // test server
	})
	if got := c.StreetName(context.Background(), 1, 2); got != "Main Street" {
		t.Errorf("StreetName() = %q, want %q", got, "Main Street")
	}
	if got := hits.Load(); got != 3 {
		t.Errorf("requests = %d, want 3", got)
	}
}

func TestStreetNameUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c := New(WithBaseURL(base), WithRetry(1, time.Millisecond),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if got := c.StreetName(context.Background(), 1, 2); got != "" {
		t.Errorf("StreetName() = %q, want empty", got)
	}
}

func TestCacheable(t *testing.T) {
	tests := []struct {
		body string
		want bool
	}{
		{`{"address":{"road":"Main Street"}}`, true},
		{`{"error":"Unable to geocode"}`, true},
		{`{"address":`, false},
		{`<html>busy</html>`, false},
	}
	for _, tt := range tests {
		if got := Cacheable([]byte(tt.body)); got != tt.want {
			t.Errorf("Cacheable(%s) = %v, want %v", tt.body, got, tt.want)
		}
	}
}
