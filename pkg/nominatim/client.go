// Package nominatim reverse-geocodes coordinates to street names using the
// OpenStreetMap Nominatim API.
package nominatim

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/codeGROOVE-dev/retry"
)

const (
	// DefaultBaseURL is the public OpenStreetMap Nominatim instance.
	DefaultBaseURL = "https://nominatim.openstreetmap.org"
	// DefaultUserAgent identifies the client, as the Nominatim usage policy requires.
	DefaultUserAgent = "gpxstreets/1.0 (+https://github.com/codeGROOVE-dev/gpxstreets)"

	defaultTimeout = 10 * time.Second
)

// HTTPClient interface for making HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Address holds the address components of a reverse lookup that matter here.
type Address struct {
	Road        string `json:"road"`
	Footway     string `json:"footway"`
	Pedestrian  string `json:"pedestrian"`
	Suburb      string `json:"suburb"`
	City        string `json:"city"`
	Country     string `json:"country"`
	DisplayName string `json:"-"`
}

// Street returns the road name, falling back to footway and then pedestrian way.
func (a *Address) Street() string {
	switch {
	case a.Road != "":
		return a.Road
	case a.Footway != "":
		return a.Footway
	default:
		return a.Pedestrian
	}
}

// Client is a Nominatim reverse geocoder.
type Client struct {
	httpClient    HTTPClient
	logger        *slog.Logger
	baseURL       string
	userAgent     string
	timeout       time.Duration
	retryDelay    time.Duration
	retryAttempts uint
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another Nominatim instance.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = u
		}
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithHTTPClient sets the transport, for example a caching client.
func WithHTTPClient(hc HTTPClient) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithTimeout bounds each lookup, retries included.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithRetry sets how many times a failed request is attempted and the base backoff delay.
func WithRetry(attempts uint, delay time.Duration) Option {
	return func(c *Client) {
		c.retryAttempts = max(attempts, 1)
		c.retryDelay = delay
	}
}

// New creates a Nominatim client.
func New(opts ...Option) *Client {
	c := &Client{
		httpClient:    http.DefaultClient,
		logger:        slog.Default(),
		baseURL:       DefaultBaseURL,
		userAgent:     DefaultUserAgent,
		timeout:       defaultTimeout,
		retryAttempts: 3,
		retryDelay:    time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Cacheable reports whether a 200 response body is worth caching. Nominatim
// signals "nothing here" with a JSON error object, which is a stable answer;
// only truncated or non-JSON bodies are rejected.
func Cacheable(body []byte) bool {
	return json.Valid(body)
}

// StreetName returns the street at lat/lon, or "" when Nominatim has none or
// the lookup failed. Failures are logged, never returned.
func (c *Client) StreetName(ctx context.Context, lat, lon float64) string {
	addr, err := c.Reverse(ctx, lat, lon)
	if err != nil {
		c.logger.Warn("nominatim lookup failed", "lat", lat, "lon", lon, "error", err)
		return ""
	}
	return addr.Street()
}

// Reverse looks up the address at lat/lon.
func (c *Client) Reverse(ctx context.Context, lat, lon float64) (*Address, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	u = u.JoinPath("reverse")
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("format", "jsonv2")
	u.RawQuery = q.Encode()

	body, err := c.get(ctx, u.String())
	if err != nil {
		return nil, err
	}

	var result struct {
		Address     Address `json:"address"`
		DisplayName string  `json:"display_name"`
		Error       string  `json:"error"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse reverse response: %w", err)
	}
	if result.Error != "" {
		c.logger.Debug("nominatim found no address", "lat", lat, "lon", lon, "reason", result.Error)
	}
	result.Address.DisplayName = result.DisplayName
	return &result.Address, nil
}

// get fetches apiURL, retrying transport errors and 5xx responses with
// backoff and jitter. 429 is not retried; pacing is the caller's job.
func (c *Client) get(ctx context.Context, apiURL string) ([]byte, error) {
	var body []byte
	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, http.NoBody)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			req.Header.Set("User-Agent", c.userAgent)
			req.Header.Set("Accept", "application/json")

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer func() {
				if err := resp.Body.Close(); err != nil {
					c.logger.Debug("failed to close response body", "error", err)
				}
			}()

			data, err := io.ReadAll(resp.Body)
			if err != nil {
				return err
			}
			switch {
			case resp.StatusCode == http.StatusOK:
				body = data
				return nil
			case resp.StatusCode >= http.StatusInternalServerError:
				return fmt.Errorf("nominatim returned status %d", resp.StatusCode)
			default:
				return retry.Unrecoverable(fmt.Errorf("nominatim returned status %d", resp.StatusCode))
			}
		},
		retry.Context(ctx),
		retry.Attempts(c.retryAttempts),
		retry.Delay(c.retryDelay),
		retry.MaxDelay(30*time.Second),
		retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Debug("retrying nominatim request", "attempt", n+1, "error", err)
		}),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}
	if body == nil {
		return nil, errors.New("nominatim returned no body")
	}
	return body, nil
}
