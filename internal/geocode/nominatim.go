// Package geocode resolves free-text locations into coordinates via the
// OpenStreetMap Nominatim API. Resolution is strictly best-effort: any
// failure degrades to null coordinates and never blocks a report.
package geocode

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"reliefnet/internal/metrics"
	"reliefnet/internal/models"
)

// Resolver is what report handlers and the backfill poller depend on.
type Resolver interface {
	Resolve(ctx context.Context, location string) models.Coordinates
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type nominatimResult struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// Resolve looks location up and returns its coordinates, or null
// coordinates when the lookup fails for any reason. It never returns an
// error: a failed geocode is a degraded Alert, not a failed request.
func (c *Client) Resolve(ctx context.Context, location string) models.Coordinates {
	u := c.baseURL + "/search?format=json&q=" + url.QueryEscape(location)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return c.miss(location, "error creating request", err)
	}
	// Nominatim's usage policy requires an identifying agent
	req.Header.Set("User-Agent", "reliefnet/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.miss(location, "error while doing request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.miss(location, "unexpected status code "+strconv.Itoa(resp.StatusCode), nil)
	}

	var results []nominatimResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return c.miss(location, "error decoding resp.Body", err)
	}
	if len(results) == 0 {
		return c.miss(location, "no results", nil)
	}

	lat, latErr := strconv.ParseFloat(results[0].Lat, 64)
	lng, lngErr := strconv.ParseFloat(results[0].Lon, 64)
	if latErr != nil || lngErr != nil {
		return c.miss(location, "unparseable coordinates", nil)
	}

	return models.NewCoordinates(lat, lng)
}

func (c *Client) miss(location, reason string, err error) models.Coordinates {
	metrics.GeocodeFailures.Inc()
	slog.Warn("geocode failed", "location", location, "reason", reason, "error", err)
	return models.Coordinates{}
}
