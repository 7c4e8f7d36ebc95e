// Package weather proxies current conditions and severe-weather alerts from
// weatherapi.com. It is entirely independent of the disaster broadcast core.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type Conditions struct {
	City      string
	Country   string
	TempC     float64
	Humidity  int
	WindKph   float64
	Condition string
	Icon      string
}

type Alert struct {
	Event       string `json:"event"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
	Start       int64  `json:"start"`
	End         int64  `json:"end"`
}

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type apiResponse struct {
	Location struct {
		Name    string `json:"name"`
		Country string `json:"country"`
	} `json:"location"`
	Current struct {
		TempC     float64 `json:"temp_c"`
		Humidity  int     `json:"humidity"`
		WindKph   float64 `json:"wind_kph"`
		Condition struct {
			Text string `json:"text"`
			Icon string `json:"icon"`
		} `json:"condition"`
	} `json:"current"`
	Alerts struct {
		Alert []struct {
			Headline       string `json:"headline"`
			Desc           string `json:"desc"`
			Severity       string `json:"severity"`
			EffectiveEpoch int64  `json:"effective_epoch"`
			ExpiresEpoch   int64  `json:"expires_epoch"`
		} `json:"alert"`
	} `json:"alerts"`
}

// Current fetches present conditions at the given point.
func (c *Client) Current(ctx context.Context, lat, lng string) (*Conditions, error) {
	var data apiResponse
	if err := c.get(ctx, "/v1/current.json", lat, lng, "", &data); err != nil {
		return nil, err
	}

	return &Conditions{
		City:      data.Location.Name,
		Country:   data.Location.Country,
		TempC:     data.Current.TempC,
		Humidity:  data.Current.Humidity,
		WindKph:   data.Current.WindKph,
		Condition: data.Current.Condition.Text,
		// Request the larger icon variant the frontend displays
		Icon: strings.Replace(data.Current.Condition.Icon, "64x64", "128x128", 1),
	}, nil
}

// Alerts fetches active severe-weather alerts at the given point. An empty
// slice means no alerts, not an error.
func (c *Client) Alerts(ctx context.Context, lat, lng string) ([]Alert, error) {
	var data apiResponse
	if err := c.get(ctx, "/v1/forecast.json", lat, lng, "&days=2&alerts=yes", &data); err != nil {
		return nil, err
	}

	alerts := make([]Alert, 0, len(data.Alerts.Alert))
	for _, a := range data.Alerts.Alert {
		alerts = append(alerts, Alert{
			Event:       a.Headline,
			Description: a.Desc,
			Severity:    a.Severity,
			Start:       a.EffectiveEpoch,
			End:         a.ExpiresEpoch,
		})
	}
	return alerts, nil
}

func (c *Client) get(ctx context.Context, path, lat, lng, extra string, out *apiResponse) error {
	u := fmt.Sprintf("%s%s?key=%s&q=%s%s",
		c.baseURL, path, url.QueryEscape(c.apiKey), url.QueryEscape(lat+","+lng), extra)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("error while doing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d - status: %s", resp.StatusCode, resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("error decoding resp.Body: %w", err)
	}
	return nil
}
