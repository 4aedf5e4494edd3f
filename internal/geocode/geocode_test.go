package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"lumina/internal/config"
	"lumina/internal/services"
)

func newTestClient(baseURL string) *Client {
	return NewClient(config.Geocoding{
		Enabled:        true,
		BaseURL:        baseURL,
		Language:       "en",
		RequestTimeout: 5,
	})
}

func TestReverseResolvesLocation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/reverse" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("lat") != "48.8584" {
			t.Fatalf("unexpected lat %q", r.URL.Query().Get("lat"))
		}
		if r.URL.Query().Get("accept-language") != "en" {
			t.Fatalf("language not forwarded")
		}
		json.NewEncoder(w).Encode(map[string]any{
			"display_name": "Tour Eiffel, Paris, France",
			"address": map[string]any{
				"country": "France",
				"city":    "Paris",
			},
		})
	}))
	defer server.Close()

	location, err := newTestClient(server.URL).Reverse(context.Background(), 48.8584, 2.2945)
	if err != nil {
		t.Fatalf("Reverse: %v", err)
	}
	if location == nil {
		t.Fatal("expected location")
	}
	if location.Country != "France" || location.City != "Paris" {
		t.Fatalf("unexpected location %+v", location)
	}
}

func TestReverseFallsBackThroughCityAliases(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"display_name": "somewhere rural",
			"address": map[string]any{
				"country": "Norway",
				"village": "Flam",
			},
		})
	}))
	defer server.Close()

	location, err := newTestClient(server.URL).Reverse(context.Background(), 60.8622, 7.1130)
	if err != nil {
		t.Fatalf("Reverse: %v", err)
	}
	if location.City != "Flam" {
		t.Fatalf("expected village fallback, got %+v", location)
	}
}

func TestReverseUnknownCoordinatesReturnsAbsent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"error": "Unable to geocode"})
	}))
	defer server.Close()

	location, err := newTestClient(server.URL).Reverse(context.Background(), 0, 0)
	if err != nil {
		t.Fatalf("Reverse: %v", err)
	}
	if location != nil {
		t.Fatalf("expected nil for unknown coordinates, got %+v", location)
	}
}

func TestReverseSurfacesServiceFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Reverse(context.Background(), 1, 1)
	if !errors.Is(err, services.ErrProviderUnavailable) {
		t.Fatalf("expected provider-unavailable error, got %v", err)
	}
}
