package api

import (
	"math"
	"net/http"
	"testing"
	"time"

	"github.com/EyasDmour/vehicle-tracker/internal/config"
	"github.com/EyasDmour/vehicle-tracker/internal/playback"
)

// loadTrail seeds a vehicle with a straight four-sample run and loads it
// into the playback session.
func loadTrail(t *testing.T, ts *testServer) int {
	t.Helper()

	id := ts.createVehicle(t, "40-50001", "online")
	base := ts.clock.Now().Add(-time.Hour)
	for i := 0; i < 4; i++ {
		ts.reportPosition(t, id, 31.90+float64(i)*0.01, 35.90, 40, base.Add(time.Duration(i)*time.Minute))
	}

	rec := ts.do(t, http.MethodPost, "/api/playback/load", map[string]any{
		"vehicle_id": id,
		"from":       base.Add(-time.Minute).Format(time.RFC3339),
		"to":         base.Add(10 * time.Minute).Format(time.RFC3339),
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("load status = %d, body %q", rec.Code, rec.Body.String())
	}

	var result playback.LoadResult
	decodeJSON(t, rec, &result)
	if result.Outcome != playback.LoadInstalled {
		t.Fatalf("load outcome = %q, want installed", result.Outcome)
	}
	if result.SampleCount != 4 {
		t.Fatalf("SampleCount = %d, want 4", result.SampleCount)
	}
	return id
}

func TestPlaybackLoadAndStatus(t *testing.T) {
	ts := newTestServer(t, nil)

	id := loadTrail(t, ts)

	rec := ts.do(t, http.MethodGet, "/api/playback/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status endpoint = %d", rec.Code)
	}
	var status playbackStatusResponse
	decodeJSON(t, rec, &status)
	if !status.Loaded {
		t.Fatal("Loaded = false after load")
	}
	if status.VehicleID != id {
		t.Errorf("VehicleID = %d, want %d", status.VehicleID, id)
	}
	if status.Playing {
		t.Error("Playing = true, want paused after load")
	}
	if status.Position == nil {
		t.Fatal("Position = nil, want trail start")
	}
	if math.Abs(status.Position.Latitude-31.90) > 1e-9 {
		t.Errorf("start latitude = %v, want 31.90", status.Position.Latitude)
	}
}

func TestPlaybackLoadInsufficientData(t *testing.T) {
	ts := newTestServer(t, nil)

	id := ts.createVehicle(t, "40-50002", "online")
	ts.reportPosition(t, id, 31.90, 35.90, 40, ts.clock.Now().Add(-time.Minute))

	rec := ts.do(t, http.MethodPost, "/api/playback/load", map[string]any{
		"vehicle_id": id,
		"from":       ts.clock.Now().Add(-time.Hour).Format(time.RFC3339),
		"to":         ts.clock.Now().Format(time.RFC3339),
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("load status = %d", rec.Code)
	}
	var result playback.LoadResult
	decodeJSON(t, rec, &result)
	if result.Outcome != playback.LoadInsufficient {
		t.Errorf("outcome = %q, want insufficient_data", result.Outcome)
	}
}

func TestPlaybackLoadUnknownVehicle(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodPost, "/api/playback/load", map[string]any{
		"vehicle_id": 404,
		"from":       ts.clock.Now().Add(-time.Hour).Format(time.RFC3339),
		"to":         ts.clock.Now().Format(time.RFC3339),
	})
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestPlaybackControlsRequireTrail(t *testing.T) {
	ts := newTestServer(t, nil)

	for _, path := range []string{"/api/playback/play", "/api/playback/pause", "/api/playback/stop"} {
		rec := ts.do(t, http.MethodPost, path, nil)
		if rec.Code != http.StatusConflict {
			t.Errorf("%s status = %d, want 409", path, rec.Code)
		}
	}
}

func TestPlaybackPlayPauseStop(t *testing.T) {
	ts := newTestServer(t, nil)

	loadTrail(t, ts)

	rec := ts.do(t, http.MethodPost, "/api/playback/play", nil)
	var status playbackStatusResponse
	decodeJSON(t, rec, &status)
	if !status.Playing {
		t.Error("Playing = false after play")
	}

	rec = ts.do(t, http.MethodPost, "/api/playback/pause", nil)
	decodeJSON(t, rec, &status)
	if status.Playing {
		t.Error("Playing = true after pause")
	}

	rec = ts.do(t, http.MethodPost, "/api/playback/stop", nil)
	decodeJSON(t, rec, &status)
	if status.Playing {
		t.Error("Playing = true after stop")
	}
	if status.Position == nil || math.Abs(status.Position.Latitude-31.90) > 1e-9 {
		t.Errorf("stop should rewind to trail start, got %+v", status.Position)
	}
}

func TestPlaybackSeek(t *testing.T) {
	ts := newTestServer(t, nil)

	loadTrail(t, ts)

	rec := ts.do(t, http.MethodPost, "/api/playback/seek", map[string]any{"position": 1.0})
	if rec.Code != http.StatusOK {
		t.Fatalf("seek status = %d", rec.Code)
	}
	var status playbackStatusResponse
	decodeJSON(t, rec, &status)
	if status.Position == nil {
		t.Fatal("Position = nil after seek")
	}
	if math.Abs(status.Position.Latitude-31.93) > 1e-6 {
		t.Errorf("end latitude = %v, want 31.93", status.Position.Latitude)
	}
}

func TestPlaybackSkip(t *testing.T) {
	ts := newTestServer(t, nil)

	loadTrail(t, ts)

	rec := ts.do(t, http.MethodPost, "/api/playback/skip",
		map[string]any{"direction": "forward", "fraction": 1.0})
	var status playbackStatusResponse
	decodeJSON(t, rec, &status)
	if status.Position == nil || math.Abs(status.Position.Latitude-31.93) > 1e-6 {
		t.Errorf("skip to end position = %+v, want latitude 31.93", status.Position)
	}

	rec = ts.do(t, http.MethodPost, "/api/playback/skip",
		map[string]any{"direction": "backward", "fraction": 1.0})
	decodeJSON(t, rec, &status)
	if status.Position == nil || math.Abs(status.Position.Latitude-31.90) > 1e-9 {
		t.Errorf("skip to start position = %+v, want latitude 31.90", status.Position)
	}

	rec = ts.do(t, http.MethodPost, "/api/playback/skip",
		map[string]any{"direction": "sideways"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad direction status = %d, want 400", rec.Code)
	}
}

func TestPlaybackRateExplicit(t *testing.T) {
	ts := newTestServer(t, nil)

	scale := playback.DefaultRateScale()

	rec := ts.do(t, http.MethodPost, "/api/playback/rate", map[string]any{"rate": 4.0})
	if rec.Code != http.StatusOK {
		t.Fatalf("rate status = %d", rec.Code)
	}
	var status playbackStatusResponse
	decodeJSON(t, rec, &status)
	if status.Rate != 4.0 {
		t.Errorf("Rate = %v, want 4.0", status.Rate)
	}

	// Out-of-range rates clamp to the scale bounds.
	rec = ts.do(t, http.MethodPost, "/api/playback/rate", map[string]any{"rate": 1e9})
	decodeJSON(t, rec, &status)
	if status.Rate != scale.MaxRate() {
		t.Errorf("Rate = %v, want max %v", status.Rate, scale.MaxRate())
	}
}

func TestPlaybackRateRangeFromConfig(t *testing.T) {
	minRate, maxRate, snap := 0.25, 16.0, 2.0
	cfg := config.Default()
	cfg.MinPlaybackRate = &minRate
	cfg.MaxPlaybackRate = &maxRate
	cfg.SnapThreshold = &snap
	ts := newTestServerWithConfig(t, nil, cfg)

	rec := ts.do(t, http.MethodGet, "/api/config", nil)
	var shown struct {
		MinRate float64 `json:"min_rate"`
		MaxRate float64 `json:"max_rate"`
	}
	decodeJSON(t, rec, &shown)
	if shown.MinRate != 0.25 || shown.MaxRate != 16 {
		t.Errorf("config range = [%v, %v], want [0.25, 16]", shown.MinRate, shown.MaxRate)
	}

	// Clamping honors the configured ceiling, not the built-in one.
	rec = ts.do(t, http.MethodPost, "/api/playback/rate", map[string]any{"rate": 1e9})
	if rec.Code != http.StatusOK {
		t.Fatalf("rate status = %d", rec.Code)
	}
	var status playbackStatusResponse
	decodeJSON(t, rec, &status)
	if status.Rate != 16 {
		t.Errorf("Rate = %v, want 16", status.Rate)
	}
}

func TestPlaybackRateFromSlider(t *testing.T) {
	ts := newTestServer(t, nil)

	scale := playback.DefaultRateScale()

	rec := ts.do(t, http.MethodPost, "/api/playback/rate", map[string]any{"slider_position": 0.0})
	if rec.Code != http.StatusOK {
		t.Fatalf("rate status = %d", rec.Code)
	}
	var status playbackStatusResponse
	decodeJSON(t, rec, &status)
	if status.Rate != scale.MinRate() {
		t.Errorf("Rate = %v, want min %v", status.Rate, scale.MinRate())
	}

	rec = ts.do(t, http.MethodPost, "/api/playback/rate", map[string]any{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty body status = %d, want 400", rec.Code)
	}
}

func TestPlaybackReloadSwitchesVehicle(t *testing.T) {
	ts := newTestServer(t, nil)

	loadTrail(t, ts)

	other := ts.createVehicle(t, "40-50003", "online")
	base := ts.clock.Now().Add(-30 * time.Minute)
	for i := 0; i < 3; i++ {
		ts.reportPosition(t, other, 32.00, 36.00+float64(i)*0.01, 50, base.Add(time.Duration(i)*time.Minute))
	}

	rec := ts.do(t, http.MethodPost, "/api/playback/load", map[string]any{
		"vehicle_id": other,
		"from":       base.Add(-time.Minute).Format(time.RFC3339),
		"to":         base.Add(10 * time.Minute).Format(time.RFC3339),
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("reload status = %d, body %q", rec.Code, rec.Body.String())
	}

	rec = ts.do(t, http.MethodGet, "/api/playback/status", nil)
	var status playbackStatusResponse
	decodeJSON(t, rec, &status)
	if status.VehicleID != other {
		t.Errorf("VehicleID = %d, want %d", status.VehicleID, other)
	}
	if status.SampleCount != 3 {
		t.Errorf("SampleCount = %d, want 3", status.SampleCount)
	}
}
