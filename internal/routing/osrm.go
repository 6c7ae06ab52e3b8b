// Package routing provides a client for the OSRM route service.
package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/EyasDmour/vehicle-tracker/internal/httputil"
)

// Point is a WGS84 coordinate.
type Point struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Route is the drive estimate between two points.
type Route struct {
	DistanceMeters  float64 `json:"distance_meters"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// Client queries an OSRM-compatible route service.
type Client struct {
	baseURL string
	http    httputil.HTTPClient
	timeout time.Duration
}

// NewClient creates a routing client. A nil httpClient uses the default
// client; a zero timeout disables the per-request bound.
func NewClient(baseURL string, httpClient httputil.HTTPClient, timeout time.Duration) *Client {
	if httpClient == nil {
		httpClient = httputil.NewStandardClient(nil)
	}
	return &Client{baseURL: baseURL, http: httpClient, timeout: timeout}
}

// osrmResponse mirrors the fields of the OSRM /route response we use.
type osrmResponse struct {
	Code   string `json:"code"`
	Routes []struct {
		Distance float64 `json:"distance"`
		Duration float64 `json:"duration"`
	} `json:"routes"`
}

// Route returns the driving distance and duration from one point to another.
// OSRM orders coordinates longitude first.
func (c *Client) Route(ctx context.Context, from, to Point) (Route, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	url := fmt.Sprintf("%s/route/v1/driving/%f,%f;%f,%f",
		c.baseURL, from.Longitude, from.Latitude, to.Longitude, to.Latitude)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Route{}, fmt.Errorf("failed to build route request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Route{}, fmt.Errorf("route request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Route{}, fmt.Errorf("route service returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Route{}, fmt.Errorf("failed to read route response: %w", err)
	}

	var parsed osrmResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Route{}, fmt.Errorf("failed to parse route response: %w", err)
	}

	if len(parsed.Routes) == 0 {
		return Route{}, fmt.Errorf("no route found")
	}

	return Route{
		DistanceMeters:  parsed.Routes[0].Distance,
		DurationSeconds: parsed.Routes[0].Duration,
	}, nil
}
