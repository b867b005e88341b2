package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/zalepa/medicmap/filters"
)

func TestBaseURL(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"http://localhost:8000", "http://localhost:8000/api/v1/map/"},
		{"http://localhost:8000/", "http://localhost:8000/api/v1/map/"},
		{"http://localhost:8000/api", "http://localhost:8000/api/v1/map/"},
		{"http://localhost:8000/api/", "http://localhost:8000/api/v1/map/"},
		{"https://example.org/backend", "https://example.org/backend/api/v1/map/"},
	}
	for _, tt := range tests {
		if got := BaseURL(tt.input); got != tt.want {
			t.Errorf("BaseURL(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func newBackend(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewClient(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestFetchOptions(t *testing.T) {
	var gotPath, gotTopic string
	var hasTopic bool
	c := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotTopic = r.URL.Query().Get("topic")
		_, hasTopic = r.URL.Query()["topic"]
		w.Write([]byte(`{"topics":["Heart Disease","Stroke"],"indicators":["Rate A"],"years":[2019,2020],"demographics":["Overall"]}`))
	})

	opts, err := c.FetchOptions(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	if gotPath != "/api/v1/map/options/" {
		t.Errorf("path = %q", gotPath)
	}
	if hasTopic {
		t.Error("empty topic was sent as a query parameter")
	}
	if len(opts.Topics) != 2 || opts.Years[1] != 2020 || opts.Demographics[0] != "Overall" {
		t.Errorf("opts = %+v", opts)
	}

	if _, err := c.FetchOptions(context.Background(), "Stroke"); err != nil {
		t.Fatal(err)
	}
	if gotTopic != "Stroke" {
		t.Errorf("topic = %q, want Stroke", gotTopic)
	}
}

func TestFetchOptionsRejectsDuplicates(t *testing.T) {
	c := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"topics":["Stroke","Stroke"],"indicators":[],"years":[],"demographics":[]}`))
	})
	_, err := c.FetchOptions(context.Background(), "")
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
}

func TestFetchMapDataIncompleteSelection(t *testing.T) {
	var calls int32
	c := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(`[]`))
	})
	for _, sel := range []filters.Selection{{}, {Topic: "Stroke"}, {Year: 2023, Indicator: "Rate A"}} {
		if _, err := c.FetchMapData(context.Background(), sel); !errors.Is(err, ErrIncompleteSelection) {
			t.Errorf("FetchMapData(%+v) err = %v, want ErrIncompleteSelection", sel, err)
		}
	}
	if calls != 0 {
		t.Errorf("backend called %d times for incomplete selections", calls)
	}
}

func TestFetchMapData(t *testing.T) {
	var query string
	c := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/map/map-data/" {
			http.NotFound(w, r)
			return
		}
		query = r.URL.RawQuery
		w.Write([]byte(`[
			{"id":1,"year":2023,"state_abbr":"CA","state_name":"California","topic":"Stroke","indicator":"Rate A","value":10,"unit":"per 100,000","demographic":"Overall"},
			{"id":2,"year":2023,"state_abbr":" TX ","state_name":"Texas","topic":"Stroke","indicator":"Rate A","value":30.5,"unit":"per 100,000","demographic":"Overall"}
		]`))
	})

	items, err := c.FetchMapData(context.Background(), filters.Selection{Topic: "Stroke", Year: 2023})
	if err != nil {
		t.Fatal(err)
	}
	if query != "topic=Stroke&year=2023" {
		t.Errorf("query = %q", query)
	}
	if len(items) != 2 || items[1].Value != 30.5 || items[0].StateName != "California" {
		t.Errorf("items = %+v", items)
	}
}

func TestFetchMapDataValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"null value", `[{"state_abbr":"CA","state_name":"California","value":null}]`},
		{"bad code", `[{"state_abbr":"Calif","state_name":"California","value":1}]`},
		{"missing name", `[{"state_abbr":"CA","state_name":"","value":1}]`},
		{"duplicate state", `[{"state_abbr":"CA","state_name":"California","value":1},{"state_abbr":"ca","state_name":"California","value":2}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			})
			_, err := c.FetchMapData(context.Background(), filters.Selection{Topic: "Stroke", Year: 2020})
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Errorf("err = %v, want ValidationError", err)
			}
		})
	}
}

func TestFetchStatusError(t *testing.T) {
	c := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})
	_, err := c.FetchOptions(context.Background(), "")
	var serr *StatusError
	if !errors.As(err, &serr) || serr.Code != http.StatusBadGateway {
		t.Fatalf("err = %v, want StatusError 502", err)
	}
}

func TestFetchMalformedJSON(t *testing.T) {
	c := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"topics":`))
	})
	if _, err := c.FetchOptions(context.Background(), ""); err == nil {
		t.Fatal("FetchOptions accepted truncated JSON")
	}
}

func TestCacheAvoidsSecondRequest(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(`{"topics":["Stroke"],"indicators":["Rate A"],"years":[2020],"demographics":["Overall"]}`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, WithCache(NewMemoryCache(), time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if _, err := c.FetchOptions(context.Background(), "Stroke"); err != nil {
			t.Fatal(err)
		}
	}
	if calls != 1 {
		t.Errorf("backend called %d times, want 1", calls)
	}
	if _, err := c.FetchOptions(context.Background(), "Heart"); err != nil {
		t.Fatal(err)
	}
	if calls != 2 {
		t.Errorf("backend called %d times after new topic, want 2", calls)
	}
}

func TestMemoryCacheExpires(t *testing.T) {
	m := NewMemoryCache()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	m.Set(ctx, "k", []byte("v"), time.Minute)
	if _, ok := m.Get(ctx, "k"); !ok {
		t.Fatal("fresh entry missing")
	}
	now = now.Add(2 * time.Minute)
	if _, ok := m.Get(ctx, "k"); ok {
		t.Error("expired entry returned")
	}
}

func TestNewClientRejectsBadScheme(t *testing.T) {
	if _, err := NewClient("ftp://example.org"); err == nil {
		t.Error("NewClient accepted ftp scheme")
	}
}

func TestInvalidResponseIsNotCached(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Write([]byte(`{"topics":["Stroke","Stroke"],"indicators":[],"years":[2020],"demographics":[]}`))
			return
		}
		w.Write([]byte(`{"topics":["Stroke"],"indicators":["Rate A"],"years":[2020],"demographics":["Overall"]}`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, WithCache(NewMemoryCache(), time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.FetchOptions(context.Background(), "Stroke"); err == nil {
		t.Fatal("duplicate topics accepted")
	}
	opts, err := c.FetchOptions(context.Background(), "Stroke")
	if err != nil {
		t.Fatalf("second fetch after backend recovered: %v", err)
	}
	if len(opts.Topics) != 1 || calls != 2 {
		t.Errorf("opts = %+v, backend calls = %d", opts, calls)
	}
}

func TestInvalidMapDataIsNotCached(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Write([]byte(`[{"state_abbr":"CA","state_name":"California","value":null}]`))
			return
		}
		w.Write([]byte(`[{"state_abbr":"CA","state_name":"California","value":12.5}]`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, WithCache(NewMemoryCache(), time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	sel := filters.Selection{Topic: "Stroke", Year: 2020}
	if _, err := c.FetchMapData(context.Background(), sel); err == nil {
		t.Fatal("null value accepted")
	}
	items, err := c.FetchMapData(context.Background(), sel)
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if len(items) != 1 || items[0].Value != 12.5 {
		t.Errorf("items = %+v", items)
	}
}

func TestZeroTTLDisablesCache(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(`{"topics":["Stroke"],"indicators":["Rate A"],"years":[2020],"demographics":["Overall"]}`))
	}))
	defer srv.Close()

	cache := NewMemoryCache()
	c, err := NewClient(srv.URL, WithCache(cache, 0))
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		if _, err := c.FetchOptions(context.Background(), "Stroke"); err != nil {
			t.Fatal(err)
		}
	}
	if calls != 2 {
		t.Errorf("backend called %d times, want 2", calls)
	}
	if len(cache.entries) != 0 {
		t.Errorf("cache holds %d entries with caching disabled", len(cache.entries))
	}
}

func TestMemoryCacheDropsExpiredEntries(t *testing.T) {
	m := NewMemoryCache()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	m.Set(ctx, "options:a", []byte("a"), time.Minute)
	m.Set(ctx, "options:b", []byte("b"), time.Minute)
	now = now.Add(2 * time.Minute)

	if _, ok := m.Get(ctx, "options:a"); ok {
		t.Fatal("expired entry returned")
	}
	if _, ok := m.entries["options:a"]; ok {
		t.Error("expired entry kept after Get")
	}

	m.Set(ctx, "options:c", []byte("c"), time.Minute)
	if len(m.entries) != 1 {
		t.Errorf("entries = %d after Set, want only the fresh one", len(m.entries))
	}
	if _, ok := m.Get(ctx, "options:c"); !ok {
		t.Error("fresh entry missing")
	}
}
