package routing

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/EyasDmour/vehicle-tracker/internal/httputil"
)

const routeBody = `{"code":"Ok","routes":[{"distance":4521.3,"duration":612.4}]}`

func TestRouteSuccess(t *testing.T) {
	mock := httputil.NewMockHTTPClient()
	mock.AddResponse(http.StatusOK, routeBody)

	client := NewClient("https://router.example.test", mock, time.Second)
	route, err := client.Route(context.Background(),
		Point{Latitude: 31.95, Longitude: 35.91},
		Point{Latitude: 31.98, Longitude: 35.87})
	if err != nil {
		t.Fatalf("Route failed: %v", err)
	}

	want := Route{DistanceMeters: 4521.3, DurationSeconds: 612.4}
	if diff := cmp.Diff(want, route); diff != "" {
		t.Errorf("route mismatch (-want +got):\n%s", diff)
	}

	// OSRM expects longitude,latitude ordering.
	req := mock.GetRequest(0)
	if req == nil {
		t.Fatal("no request recorded")
	}
	if !strings.Contains(req.URL.Path, "/route/v1/driving/35.910000,31.950000;35.870000,31.980000") {
		t.Errorf("unexpected request path: %s", req.URL.Path)
	}
}

func TestRouteNon200(t *testing.T) {
	mock := httputil.NewMockHTTPClient()
	mock.AddResponse(http.StatusTooManyRequests, "")

	client := NewClient("https://router.example.test", mock, time.Second)
	if _, err := client.Route(context.Background(), Point{}, Point{}); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}

func TestRouteEmptyRoutes(t *testing.T) {
	mock := httputil.NewMockHTTPClient()
	mock.AddResponse(http.StatusOK, `{"code":"NoRoute","routes":[]}`)

	client := NewClient("https://router.example.test", mock, time.Second)
	if _, err := client.Route(context.Background(), Point{}, Point{}); err == nil {
		t.Fatal("expected error for empty routes")
	}
}

func TestRouteTransportError(t *testing.T) {
	mock := httputil.NewMockHTTPClient()
	mock.AddErrorResponse(errors.New("connection reset"))

	client := NewClient("https://router.example.test", mock, time.Second)
	if _, err := client.Route(context.Background(), Point{}, Point{}); err == nil {
		t.Fatal("expected error for transport failure")
	}
}

func TestRouteMalformedJSON(t *testing.T) {
	mock := httputil.NewMockHTTPClient()
	mock.AddResponse(http.StatusOK, `{"routes": [`)

	client := NewClient("https://router.example.test", mock, time.Second)
	if _, err := client.Route(context.Background(), Point{}, Point{}); err == nil {
		t.Fatal("expected error for malformed response")
	}
}
