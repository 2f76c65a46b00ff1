// Package googlemaps reverse-geocodes coordinates to street names using the
// Google Geocoding API.
package googlemaps

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"time"

	"github.com/codeGROOVE-dev/retry"
)

// DefaultBaseURL is the Google Maps API endpoint.
const DefaultBaseURL = "https://maps.googleapis.com"

// HTTPClient interface for making HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client handles Google Maps API operations.
type Client struct {
	httpClient    HTTPClient
	logger        *slog.Logger
	apiKey        string
	baseURL       string
	timeout       time.Duration
	retryDelay    time.Duration
	retryAttempts uint
}

// NewClient creates a new Google Maps API client.
func NewClient(apiKey string, httpClient HTTPClient, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		apiKey:        apiKey,
		httpClient:    httpClient,
		logger:        logger,
		baseURL:       DefaultBaseURL,
		timeout:       10 * time.Second,
		retryAttempts: 3,
		retryDelay:    time.Second,
	}
}

// SetBaseURL overrides the API endpoint.
func (c *Client) SetBaseURL(u string) {
	c.baseURL = u
}

// SetRetry sets how many times a failed request is attempted and the base backoff delay.
func (c *Client) SetRetry(attempts uint, delay time.Duration) {
	c.retryAttempts = max(attempts, 1)
	c.retryDelay = delay
}

type addressComponent struct {
	LongName string   `json:"long_name"`
	Types    []string `json:"types"`
}

type geocodeResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Results      []struct {
		AddressComponents []addressComponent `json:"address_components"`
	} `json:"results"`
}

// Cacheable reports whether a 200 response body is a real answer. Google
// reports quota, key and server failures inside 200 bodies; those must not be
// cached.
func Cacheable(body []byte) bool {
	var r geocodeResponse
	if err := json.Unmarshal(body, &r); err != nil {
		return false
	}
	return r.Status == "OK" || r.Status == "ZERO_RESULTS"
}

// StreetName returns the route name at lat/lng, or "" when there is none or
// the request failed.
func (c *Client) StreetName(ctx context.Context, lat, lng float64) string {
	name, err := c.ReverseGeocodeStreet(ctx, lat, lng)
	if err != nil {
		c.logger.Warn("reverse geocoding failed", "lat", lat, "lng", lng, "error", err)
		return ""
	}
	return name
}

// ReverseGeocodeStreet returns the long name of the first "route" address
// component found at lat/lng. ZERO_RESULTS is not an error. Transport
// errors, 5xx responses and UNKNOWN_ERROR are retried.
func (c *Client) ReverseGeocodeStreet(ctx context.Context, lat, lng float64) (string, error) {
	if c.apiKey == "" {
		return "", errors.New("google Maps API key not configured")
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	q := url.Values{}
	q.Set("latlng", strconv.FormatFloat(lat, 'f', -1, 64)+","+strconv.FormatFloat(lng, 'f', -1, 64))
	q.Set("result_type", "route")
	q.Set("key", c.apiKey)
	apiURL := c.baseURL + "/maps/api/geocode/json?" + q.Encode()

	var result geocodeResponse
	err := retry.Do(
		func() error {
			var err error
			result, err = c.fetch(ctx, apiURL)
			if err != nil {
				return err
			}
			switch result.Status {
			case "OK", "ZERO_RESULTS":
				return nil
			case "UNKNOWN_ERROR":
				return errors.New("geocoding failed with status: UNKNOWN_ERROR")
			default:
				if result.ErrorMessage != "" {
					return retry.Unrecoverable(fmt.Errorf("geocoding failed: %s: %s", result.Status, result.ErrorMessage))
				}
				return retry.Unrecoverable(fmt.Errorf("geocoding failed with status: %s", result.Status))
			}
		},
		retry.Context(ctx),
		retry.Attempts(c.retryAttempts),
		retry.Delay(c.retryDelay),
		retry.MaxDelay(30*time.Second),
		retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Debug("retrying geocoding request", "attempt", n+1, "error", err)
		}),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return "", err
	}

	if result.Status == "ZERO_RESULTS" {
		c.logger.Debug("no route at coordinates", "lat", lat, "lng", lng)
		return "", nil
	}
	for _, r := range result.Results {
		for _, comp := range r.AddressComponents {
			if slices.Contains(comp.Types, "route") {
				return comp.LongName, nil
			}
		}
	}
	return "", nil
}

func (c *Client) fetch(ctx context.Context, apiURL string) (geocodeResponse, error) {
	var result geocodeResponse

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, http.NoBody)
	if err != nil {
		return result, retry.Unrecoverable(err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return result, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Debug("failed to close response body", "error", err)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return result, err
	}

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return result, fmt.Errorf("geocoding API returned status %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return result, retry.Unrecoverable(fmt.Errorf("geocoding API returned status %d", resp.StatusCode))
	}

	if err := json.Unmarshal(body, &result); err != nil {
		return result, retry.Unrecoverable(fmt.Errorf("failed to parse geocoding response: %w", err))
	}
	return result, nil
}
