package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"k8s.io/klog/v2"
)

const (
	nominatimURL     = "https://nominatim.openstreetmap.org/reverse"
	defaultUserAgent = "ordna/1.0 (+https://github.com/tstromberg/ordna)"
)

// Geocoder resolves a coordinate to a country name.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat float64, lon float64) (string, error)
}

// Client reverse-geocodes against a Nominatim endpoint. Requests are
// limited to one per second per the public service's usage policy, and
// transient failures are retried a couple of times before giving up.
type Client struct {
	base      string
	userAgent string
	hc        *http.Client
	limiter   *rate.Limiter
	retries   int
	retryWait time.Duration
}

// NewClient returns a Client for the given endpoint. Empty arguments
// select the public Nominatim service and a default user agent.
func NewClient(base string, userAgent string) *Client {
	if base == "" {
		base = nominatimURL
	}
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	return &Client{
		base:      base,
		userAgent: userAgent,
		hc:        &http.Client{Timeout: 10 * time.Second},
		limiter:   rate.NewLimiter(rate.Every(time.Second), 1),
		retries:   2,
		retryWait: 2 * time.Second,
	}
}

type nominatimResponse struct {
	DisplayName string `json:"display_name"`
	Address     struct {
		Country     string `json:"country"`
		CountryCode string `json:"country_code"`
	} `json:"address"`
}

// ReverseGeocode names the country containing a coordinate.
func (c *Client) ReverseGeocode(ctx context.Context, lat float64, lon float64) (string, error) {
	var lastErr error

	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			klog.V(1).Infof("retrying %.4f,%.4f (attempt %d): %v", lat, lon, attempt, lastErr)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(c.retryWait):
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return "", err
		}

		country, err := c.lookup(ctx, lat, lon)
		if err == nil {
			return country, nil
		}
		lastErr = err
	}

	return "", lastErr
}

func (c *Client) lookup(ctx context.Context, lat float64, lon float64) (string, error) {
	q := url.Values{}
	q.Set("lat", fmt.Sprintf("%f", lat))
	q.Set("lon", fmt.Sprintf("%f", lon))
	q.Set("format", "json")
	q.Set("addressdetails", "1")
	q.Set("accept-language", "en")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %s", resp.Status)
	}

	var nr nominatimResponse
	if err := json.NewDecoder(resp.Body).Decode(&nr); err != nil {
		return "", fmt.Errorf("decode: %w", err)
	}

	switch {
	case nr.Address.Country != "":
		return nr.Address.Country, nil
	case nr.Address.CountryCode != "":
		return strings.ToUpper(nr.Address.CountryCode), nil
	case nr.DisplayName != "":
		return nr.DisplayName, nil
	}

	return Unknown, nil
}
