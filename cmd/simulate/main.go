// Command simulate drives fake vehicles along real road routes and reports
// their positions to a running tracker server. It asks OSRM for a route
// between two random points around the configured center, then walks the
// geometry at roughly the requested speed.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"
)

var (
	serverURL = flag.String("server", "http://localhost:8080", "Tracker server base URL")
	osrmURL   = flag.String("osrm", "https://router.project-osrm.org", "OSRM base URL")
	vehicles  = flag.String("vehicles", "1", "Comma-separated vehicle IDs to simulate")
	interval  = flag.Duration("interval", 2*time.Second, "Reporting interval")
	speedKMPH = flag.Float64("speed", 50, "Target cruise speed in km/h")
	centerLat = flag.Float64("lat", 31.9539, "Center latitude for random trips")
	centerLon = flag.Float64("lon", 35.9106, "Center longitude for random trips")
)

type osrmRouteResponse struct {
	Code   string `json:"code"`
	Routes []struct {
		Geometry struct {
			Coordinates [][]float64 `json:"coordinates"` // [lon, lat]
		} `json:"geometry"`
	} `json:"routes"`
}

// fetchRoute asks OSRM for the road geometry between two points.
func fetchRoute(client *http.Client, from, to [2]float64) ([][2]float64, error) {
	url := fmt.Sprintf("%s/route/v1/driving/%f,%f;%f,%f?overview=full&geometries=geojson",
		*osrmURL, from[1], from[0], to[1], to[0])

	resp, err := client.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("osrm returned status %d", resp.StatusCode)
	}

	var decoded osrmRouteResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode osrm response: %w", err)
	}
	if decoded.Code != "Ok" || len(decoded.Routes) == 0 {
		return nil, fmt.Errorf("no route found (code %q)", decoded.Code)
	}

	coords := decoded.Routes[0].Geometry.Coordinates
	points := make([][2]float64, len(coords))
	for i, c := range coords {
		points[i] = [2]float64{c[1], c[0]}
	}
	return points, nil
}

// bearing returns the initial compass bearing from a to b in degrees.
func bearing(a, b [2]float64) float64 {
	lat1 := a[0] * math.Pi / 180
	lat2 := b[0] * math.Pi / 180
	dLon := (b[1] - a[1]) * math.Pi / 180

	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)
	deg := math.Atan2(y, x) * 180 / math.Pi
	return math.Mod(deg+360, 360)
}

func randomPoint(rng *rand.Rand) [2]float64 {
	// roughly a 5km box around the center
	return [2]float64{
		*centerLat + (rng.Float64()-0.5)*0.09,
		*centerLon + (rng.Float64()-0.5)*0.09,
	}
}

func report(client *http.Client, vehicleID int, lat, lon, speed, heading float64) error {
	payload, err := json.Marshal(map[string]any{
		"vehicle_id": vehicleID,
		"latitude":   lat,
		"longitude":  lon,
		"speed_kmph": speed,
		"heading":    heading,
	})
	if err != nil {
		return err
	}

	resp, err := client.Post(*serverURL+"/api/livetracking", "application/json", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned status %d", resp.StatusCode)
	}
	return nil
}

// drive walks one vehicle along random routes until the context signals stop.
func drive(done <-chan struct{}, client *http.Client, vehicleID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(vehicleID)))

	for {
		from := randomPoint(rng)
		to := randomPoint(rng)

		points, err := fetchRoute(client, from, to)
		if err != nil {
			log.Printf("vehicle %d: route fetch failed: %v (retrying in 10s)", vehicleID, err)
			select {
			case <-time.After(10 * time.Second):
				continue
			case <-done:
				return
			}
		}
		log.Printf("vehicle %d: starting trip with %d points", vehicleID, len(points))

		for i, p := range points {
			speed := *speedKMPH * (0.8 + 0.4*rng.Float64())
			heading := 0.0
			if i+1 < len(points) {
				heading = bearing(p, points[i+1])
			}
			if err := report(client, vehicleID, p[0], p[1], speed, heading); err != nil {
				log.Printf("vehicle %d: report failed: %v", vehicleID, err)
			}

			select {
			case <-time.After(*interval):
			case <-done:
				return
			}
		}
		log.Printf("vehicle %d: trip complete", vehicleID)
	}
}

func main() {
	flag.Parse()

	ids := make([]int, 0)
	for _, raw := range strings.Split(*vehicles, ",") {
		id, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || id < 1 {
			log.Fatalf("invalid vehicle ID %q", raw)
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		log.Fatal("at least one vehicle ID is required")
	}

	client := &http.Client{Timeout: 30 * time.Second}

	done := make(chan struct{})
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	for _, id := range ids {
		go drive(done, client, id)
	}

	<-sigs
	close(done)
	log.Print("simulation stopped")
}
