// Package geocode resolves GPS coordinates to place names through a
// Nominatim-compatible reverse geocoding endpoint.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"lumina/internal/config"
	"lumina/internal/services"
)

// Location is the resolved place for a coordinate pair.
type Location struct {
	Country     string `json:"country,omitempty"`
	City        string `json:"city,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
}

// Client calls a Nominatim-style /reverse endpoint.
type Client struct {
	baseURL   string
	language  string
	userAgent string
	http      *http.Client
}

// NewClient builds a client from the geocoding config section.
func NewClient(cfg config.Geocoding) *Client {
	timeout := time.Duration(cfg.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:   cfg.BaseURL,
		language:  cfg.Language,
		userAgent: "lumina/1.0",
		http:      &http.Client{Timeout: timeout},
	}
}

type reverseResponse struct {
	DisplayName string `json:"display_name"`
	Address     struct {
		Country      string `json:"country"`
		City         string `json:"city"`
		Town         string `json:"town"`
		Village      string `json:"village"`
		Municipality string `json:"municipality"`
	} `json:"address"`
	Error string `json:"error"`
}

// Reverse resolves coordinates to a location. Coordinates the service does
// not know return (nil, nil); transport and service failures are errors.
func (c *Client) Reverse(ctx context.Context, latitude, longitude float64) (*Location, error) {
	query := url.Values{
		"format": {"jsonv2"},
		"lat":    {strconv.FormatFloat(latitude, 'f', -1, 64)},
		"lon":    {strconv.FormatFloat(longitude, 'f', -1, 64)},
	}
	if c.language != "" {
		query.Set("accept-language", c.language)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/reverse?"+query.Encode(), nil)
	if err != nil {
		return nil, services.Wrap(services.ErrProviderUnavailable, "geocode", "reverse", "build request", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrProviderUnavailable, "geocode", "reverse", "call geocoder", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, services.Wrap(services.ErrProviderUnavailable, "geocode", "reverse", fmt.Sprintf("geocoder returned status %d", resp.StatusCode), nil)
	}

	var decoded reverseResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, services.Wrap(services.ErrProviderUnavailable, "geocode", "reverse", "decode geocoder response", err)
	}
	// Nominatim reports unknown coordinates inside a 200 body.
	if decoded.Error != "" {
		return nil, nil
	}

	city := decoded.Address.City
	if city == "" {
		city = decoded.Address.Town
	}
	if city == "" {
		city = decoded.Address.Village
	}
	if city == "" {
		city = decoded.Address.Municipality
	}

	return &Location{
		Country:     decoded.Address.Country,
		City:        city,
		DisplayName: decoded.DisplayName,
	}, nil
}
