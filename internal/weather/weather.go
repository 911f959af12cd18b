// Package weather fetches an outdoor conditions snapshot from Open-Meteo for
// the plant's location, cached so the frontend can poll freely.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"sync"
	"time"
)

const (
	// DefaultBaseURL is the Open-Meteo forecast endpoint.
	DefaultBaseURL = "https://api.open-meteo.com/v1/forecast"

	DefaultTTL     = 10 * time.Minute
	requestTimeout = 6 * time.Second
)

// Snapshot is the condensed weather report served to the frontend.
type Snapshot struct {
	Location Location `json:"location"`
	TS       string   `json:"ts"`
	Outside  Outside  `json:"outside"`
	Daylight Daylight `json:"daylight"`
	Cached   bool     `json:"cached"`
}

type Location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type Outside struct {
	TempC           *float64 `json:"temp_c"`
	HumidityPercent *float64 `json:"humidity_percent"`
	PressureHPa     *float64 `json:"pressure_hpa"`
	WindKph         *float64 `json:"wind_kph"`
	PrecipMm        *float64 `json:"precip_mm"`
}

type Daylight struct {
	Sunrise string `json:"sunrise"`
	Sunset  string `json:"sunset"`
}

// Client caches one snapshot at a time, keyed by the rounded coordinates, for
// TTL. Concurrent callers share the cached value.
type Client struct {
	baseURL string
	http    *http.Client
	ttl     time.Duration

	mu       sync.Mutex
	cacheKey cacheKey
	cacheAt  time.Time
	cached   *Snapshot
}

type cacheKey struct {
	lat, lon float64
}

// Option mutates the client; used by tests to point at a stub server.
type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func NewClient(ttl time.Duration, opts ...Option) *Client {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Client{
		baseURL: DefaultBaseURL,
		http:    &http.Client{Timeout: requestTimeout},
		ttl:     ttl,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Snapshot returns current conditions for lat/lon, served from cache when the
// previous fetch for the same (rounded) coordinates is still fresh.
func (c *Client) Snapshot(ctx context.Context, lat, lon float64) (*Snapshot, error) {
	key := cacheKey{lat: round4(lat), lon: round4(lon)}

	c.mu.Lock()
	if c.cached != nil && c.cacheKey == key && time.Since(c.cacheAt) < c.ttl {
		snap := *c.cached
		snap.Cached = true
		c.mu.Unlock()
		return &snap, nil
	}
	c.mu.Unlock()

	snap, err := c.fetch(ctx, lat, lon)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.cacheKey = key
	c.cacheAt = time.Now()
	c.cached = snap
	c.mu.Unlock()

	out := *snap
	return &out, nil
}

// forecastResponse covers the slice of the Open-Meteo payload we use.
type forecastResponse struct {
	Current struct {
		Time             string   `json:"time"`
		Temperature2m    *float64 `json:"temperature_2m"`
		RelativeHumidity *float64 `json:"relative_humidity_2m"`
		PressureMsl      *float64 `json:"pressure_msl"`
		WindSpeed10m     *float64 `json:"wind_speed_10m"`
		Precipitation    *float64 `json:"precipitation"`
	} `json:"current"`
	Daily struct {
		Sunrise []string `json:"sunrise"`
		Sunset  []string `json:"sunset"`
	} `json:"daily"`
}

func (c *Client) fetch(ctx context.Context, lat, lon float64) (*Snapshot, error) {
	q := url.Values{}
	q.Set("latitude", fmt.Sprintf("%g", lat))
	q.Set("longitude", fmt.Sprintf("%g", lon))
	q.Set("current", "temperature_2m,relative_humidity_2m,pressure_msl,wind_speed_10m,precipitation")
	q.Set("daily", "sunrise,sunset")
	q.Set("timezone", "auto")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("weather request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("weather request: status %d", resp.StatusCode)
	}

	var body forecastResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode weather response: %w", err)
	}

	snap := &Snapshot{
		Location: Location{Lat: lat, Lon: lon},
		TS:       body.Current.Time,
		Outside: Outside{
			TempC:           body.Current.Temperature2m,
			HumidityPercent: body.Current.RelativeHumidity,
			PressureHPa:     body.Current.PressureMsl,
			WindKph:         body.Current.WindSpeed10m,
			PrecipMm:        body.Current.Precipitation,
		},
	}
	if len(body.Daily.Sunrise) > 0 {
		snap.Daylight.Sunrise = body.Daily.Sunrise[0]
	}
	if len(body.Daily.Sunset) > 0 {
		snap.Daylight.Sunset = body.Daily.Sunset[0]
	}
	return snap, nil
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
