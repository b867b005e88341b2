package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/zalepa/medicmap/filters"
)

const (
	optionsRoute = "options/"
	mapDataRoute = "map-data/"
)

// ErrIncompleteSelection is returned by FetchMapData when topic or year is
// unset. No request is issued in that case.
var ErrIncompleteSelection = errors.New("selection incomplete: topic and year are required")

// StatusError is returned for any non-2xx backend response.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.Code, e.URL)
}

// Client talks to the map backend. Construct it once and share it; it holds
// no per-request state.
type Client struct {
	base  *url.URL
	http  *http.Client
	cache Cache
	ttl   time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithCache stores successful responses in cache for ttl, keyed by request
// identity. A ttl of zero or less disables caching.
func WithCache(cache Cache, ttl time.Duration) Option {
	return func(c *Client) {
		if ttl <= 0 {
			c.cache, c.ttl = nil, 0
			return
		}
		c.cache = cache
		c.ttl = ttl
	}
}

// BaseURL turns a backend host such as "http://localhost:8000/api/" into the
// versioned map API root "http://localhost:8000/api/v1/map/".
func BaseURL(host string) string {
	host = strings.TrimRight(strings.TrimSpace(host), "/")
	host = strings.TrimSuffix(host, "/api")
	host = strings.TrimRight(host, "/")
	return host + "/api/v1/map/"
}

// NewClient returns a Client for the backend at host.
func NewClient(host string, opts ...Option) (*Client, error) {
	base, err := url.Parse(BaseURL(host))
	if err != nil {
		return nil, fmt.Errorf("parsing api url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("api url %q: scheme must be http or https", host)
	}
	c := &Client{
		base: base,
		http: &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// FetchOptions returns the filter options for topic. An empty topic asks the
// backend for all topics.
func (c *Client) FetchOptions(ctx context.Context, topic string) (FilterOptions, error) {
	q := url.Values{}
	if topic != "" {
		q.Set("topic", topic)
	}

	var opts FilterOptions
	err := c.getJSON(ctx, optionsRoute, q, "options:"+topic, &opts, func() error {
		return validateOptions(opts)
	})
	if err != nil {
		return FilterOptions{}, fmt.Errorf("fetching options: %w", err)
	}
	return opts, nil
}

// wireItem mirrors MapDataItem with a nullable value so a null from the
// backend fails validation instead of decoding as zero.
type wireItem struct {
	ID          int      `json:"id"`
	Year        int      `json:"year"`
	StateAbbr   string   `json:"state_abbr"`
	StateName   string   `json:"state_name"`
	Topic       string   `json:"topic"`
	Indicator   string   `json:"indicator"`
	Value       *float64 `json:"value"`
	Unit        string   `json:"unit"`
	Demographic string   `json:"demographic"`
}

// FetchMapData returns the records matching sel. It never issues a request
// for a selection without topic and year.
func (c *Client) FetchMapData(ctx context.Context, sel filters.Selection) ([]MapDataItem, error) {
	if !sel.Ready() {
		return nil, ErrIncompleteSelection
	}

	var (
		wire  []wireItem
		items []MapDataItem
	)
	err := c.getJSON(ctx, mapDataRoute, sel.Query(), "map-data:"+sel.Key(), &wire, func() error {
		var err error
		items, err = fromWire(wire)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("fetching map data: %w", err)
	}
	return items, nil
}

func fromWire(wire []wireItem) ([]MapDataItem, error) {
	items := make([]MapDataItem, len(wire))
	for i, w := range wire {
		if w.Value == nil {
			return nil, &ValidationError{Field: fmt.Sprintf("[%d].value", i), Reason: "null"}
		}
		items[i] = MapDataItem{
			ID:          w.ID,
			Year:        w.Year,
			StateAbbr:   w.StateAbbr,
			StateName:   w.StateName,
			Topic:       w.Topic,
			Indicator:   w.Indicator,
			Value:       *w.Value,
			Unit:        w.Unit,
			Demographic: w.Demographic,
		}
	}
	if err := validateMapData(items); err != nil {
		return nil, err
	}
	return items, nil
}

// getJSON decodes the response for route into out and runs validate on it.
// Only responses that pass validate are cached.
func (c *Client) getJSON(ctx context.Context, route string, q url.Values, cacheKey string, out any, validate func() error) error {
	if c.cache != nil {
		if data, ok := c.cache.Get(ctx, cacheKey); ok {
			if err := json.Unmarshal(data, out); err == nil && validate() == nil {
				return nil
			}
			log.Printf("[api] discarding unreadable cache entry %s", cacheKey)
		}
	}

	u := c.base.ResolveReference(&url.URL{Path: route, RawQuery: q.Encode()})
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Code: resp.StatusCode, URL: u.String()}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	if err := validate(); err != nil {
		return err
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, cacheKey, data, c.ttl); err != nil {
			log.Printf("[api] cache set %s: %v", cacheKey, err)
		}
	}
	return nil
}
