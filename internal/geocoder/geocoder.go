// Package geocoder resolves postal codes to coordinates.
package geocoder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/fieldops/dispatch-service/internal/config"
	"github.com/fieldops/dispatch-service/internal/domain"
)

// ErrNotFound is returned when the provider has no match for the postal code.
var ErrNotFound = errors.New("no results found for the given postal code")

// Result is a resolved postal code.
type Result struct {
	Location       domain.Location `json:"location"`
	DisplayAddress string          `json:"display_address"`
}

// Geocoder maps a postal code to a location.
type Geocoder interface {
	Resolve(ctx context.Context, postalCode string) (*Result, error)
}

type nominatimPlace struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// NominatimClient queries an OpenStreetMap Nominatim search endpoint.
type NominatimClient struct {
	baseURL    string
	userAgent  string
	timeout    time.Duration
	httpClient *http.Client
}

// NewNominatimClient builds a client from config.
func NewNominatimClient(cfg config.GeocoderConfig) *NominatimClient {
	return &NominatimClient{
		baseURL:    cfg.BaseURL,
		userAgent:  cfg.UserAgent,
		timeout:    cfg.Timeout(),
		httpClient: &http.Client{},
	}
}

// Resolve returns the first match for postalCode. The request is bounded by the
// configured timeout on top of any deadline already on ctx.
func (c *NominatimClient) Resolve(ctx context.Context, postalCode string) (*Result, error) {
	postalCode = strings.TrimSpace(postalCode)
	if postalCode == "" {
		return nil, ErrNotFound
	}
	if c.baseURL == "" {
		return nil, fmt.Errorf("geocoder URL is not configured")
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid geocoder URL: %w", err)
	}
	q := u.Query()
	q.Set("format", "json")
	q.Set("q", postalCode)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geocoder request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geocoder returned status %d: %s", resp.StatusCode, string(body))
	}

	var places []nominatimPlace
	if err := json.Unmarshal(body, &places); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(places) == 0 {
		return nil, ErrNotFound
	}

	first := places[0]
	return &Result{
		Location: domain.Location{
			Latitude:  parseCoordinate(first.Lat),
			Longitude: parseCoordinate(first.Lon),
		},
		DisplayAddress: first.DisplayName,
	}, nil
}

// parseCoordinate returns NaN for values that are not numbers.
func parseCoordinate(raw string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return math.NaN()
	}
	return v
}
