package weather

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCurrent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/current.json" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("q"); got != "12.3,45.6" {
			t.Errorf("expected q=12.3,45.6, got %s", got)
		}
		if got := r.URL.Query().Get("key"); got != "test-key" {
			t.Errorf("expected key=test-key, got %s", got)
		}
		w.Write([]byte(`{
			"location": {"name": "Riverdale", "country": "Testland"},
			"current": {
				"temp_c": 21.5, "humidity": 80, "wind_kph": 14.0,
				"condition": {"text": "Heavy rain", "icon": "//cdn/64x64/rain.png"}
			}
		}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key")
	got, err := c.Current(context.Background(), "12.3", "45.6")
	if err != nil {
		t.Fatalf("Current failed: %v", err)
	}

	if got.City != "Riverdale" || got.Country != "Testland" {
		t.Errorf("unexpected location: %+v", got)
	}
	if got.TempC != 21.5 || got.Humidity != 80 || got.WindKph != 14.0 {
		t.Errorf("unexpected readings: %+v", got)
	}
	if got.Icon != "//cdn/128x128/rain.png" {
		t.Errorf("expected upscaled icon, got %s", got.Icon)
	}
}

func TestAlerts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/forecast.json" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("alerts"); got != "yes" {
			t.Errorf("expected alerts=yes, got %s", got)
		}
		w.Write([]byte(`{
			"alerts": {"alert": [
				{"headline": "Flood warning", "desc": "River rising", "severity": "Severe",
				 "effective_epoch": 1700000000, "expires_epoch": 1700086400}
			]}
		}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key")
	got, err := c.Alerts(context.Background(), "12.3", "45.6")
	if err != nil {
		t.Fatalf("Alerts failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(got))
	}
	if got[0].Event != "Flood warning" || got[0].Severity != "Severe" {
		t.Errorf("unexpected alert: %+v", got[0])
	}
}

func TestAlerts_None(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"alerts": {"alert": []}}`))
	}))
	defer srv.Close()

	got, err := NewClient(srv.URL, "k").Alerts(context.Background(), "1", "2")
	if err != nil {
		t.Fatalf("Alerts failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no alerts, got %d", len(got))
	}
}

func TestCurrent_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	if _, err := NewClient(srv.URL, "bad-key").Current(context.Background(), "1", "2"); err == nil {
		t.Error("expected error on upstream failure")
	}
}
