package weather

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func stubForecast(t *testing.T, hits *atomic.Int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if got := r.URL.Query().Get("timezone"); got != "auto" {
			t.Errorf("timezone = %q", got)
		}
		payload := map[string]any{
			"current": map[string]any{
				"time":                 "2026-08-25T12:00",
				"temperature_2m":       21.5,
				"relative_humidity_2m": 60.0,
				"pressure_msl":         1013.2,
				"wind_speed_10m":       12.0,
				"precipitation":        0.0,
			},
			"daily": map[string]any{
				"sunrise": []string{"2026-08-25T06:12"},
				"sunset":  []string{"2026-08-25T20:03"},
			},
		}
		json.NewEncoder(w).Encode(payload)
	}))
}

func TestSnapshotFetchAndShape(t *testing.T) {
	var hits atomic.Int64
	srv := stubForecast(t, &hits)
	defer srv.Close()

	c := NewClient(time.Minute, WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	snap, err := c.Snapshot(context.Background(), 52.52, 13.405)
	if err != nil {
		t.Fatalf("Snapshot error: %v", err)
	}

	if snap.Cached {
		t.Error("first fetch reported cached")
	}
	if snap.Location.Lat != 52.52 || snap.Location.Lon != 13.405 {
		t.Errorf("location = %+v", snap.Location)
	}
	if snap.TS != "2026-08-25T12:00" {
		t.Errorf("ts = %q", snap.TS)
	}
	if snap.Outside.TempC == nil || *snap.Outside.TempC != 21.5 {
		t.Errorf("temp = %v", snap.Outside.TempC)
	}
	if snap.Daylight.Sunrise != "2026-08-25T06:12" || snap.Daylight.Sunset != "2026-08-25T20:03" {
		t.Errorf("daylight = %+v", snap.Daylight)
	}
}

func TestSnapshotCacheHit(t *testing.T) {
	var hits atomic.Int64
	srv := stubForecast(t, &hits)
	defer srv.Close()

	c := NewClient(time.Minute, WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	ctx := context.Background()

	if _, err := c.Snapshot(ctx, 52.52, 13.405); err != nil {
		t.Fatal(err)
	}
	// Sub-rounding coordinate jitter maps to the same cache key.
	snap, err := c.Snapshot(ctx, 52.52002, 13.40501)
	if err != nil {
		t.Fatal(err)
	}
	if !snap.Cached {
		t.Error("second fetch was not served from cache")
	}
	if hits.Load() != 1 {
		t.Errorf("upstream hits = %d, want 1", hits.Load())
	}
}

func TestSnapshotCacheMissOnNewLocation(t *testing.T) {
	var hits atomic.Int64
	srv := stubForecast(t, &hits)
	defer srv.Close()

	c := NewClient(time.Minute, WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	ctx := context.Background()

	if _, err := c.Snapshot(ctx, 52.52, 13.405); err != nil {
		t.Fatal(err)
	}
	snap, err := c.Snapshot(ctx, 48.8566, 2.3522)
	if err != nil {
		t.Fatal(err)
	}
	if snap.Cached {
		t.Error("different location served from cache")
	}
	if hits.Load() != 2 {
		t.Errorf("upstream hits = %d, want 2", hits.Load())
	}
}

func TestSnapshotUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(time.Minute, WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	if _, err := c.Snapshot(context.Background(), 1, 2); err == nil {
		t.Fatal("upstream error not surfaced")
	}
}
