package api

import (
	"bytes"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/gonum/stat"

	"github.com/EyasDmour/vehicle-tracker/internal/db"
)

// historyPoint is the API shape of one telemetry sample. Speed is rendered
// in the server's configured units.
type historyPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Latitude  *float64  `json:"latitude"`
	Longitude *float64  `json:"longitude"`
	Speed     *float64  `json:"speed"`
	Heading   *float64  `json:"heading"`
}

func (s *Server) historyPoints(points []db.LocationPoint) []historyPoint {
	out := make([]historyPoint, len(points))
	for i, p := range points {
		out[i] = historyPoint{
			Timestamp: p.RecordedAt,
			Latitude:  p.Latitude,
			Longitude: p.Longitude,
			Heading:   p.Heading,
		}
		if p.SpeedKMPH != nil {
			converted := s.convertSpeed(*p.SpeedKMPH)
			out[i].Speed = &converted
		}
	}
	return out
}

// historyRange parses the from/to query parameters, defaulting to the
// configured trailing window ending now.
func (s *Server) historyRange(r *http.Request) (from, to time.Time, err error) {
	now := s.clock.Now()
	to = now
	from = now.Add(-time.Duration(s.cfg.GetHistoryWindowHours()) * time.Hour)

	if raw := r.URL.Query().Get("from"); raw != "" {
		from, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			return from, to, fmt.Errorf("invalid 'from' parameter: %v", err)
		}
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		to, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			return from, to, fmt.Errorf("invalid 'to' parameter: %v", err)
		}
	}
	if to.Before(from) {
		return from, to, fmt.Errorf("'to' must not precede 'from'")
	}
	return from, to, nil
}

func (s *Server) showLocationHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	id, ok := pathID(r)
	if !ok {
		s.writeJSONError(w, http.StatusBadRequest, "Invalid vehicle ID")
		return
	}

	from, to, err := s.historyRange(r)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	points, err := s.db.GetLocationHistory(r.Context(), id, from, to)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve history: %v", err))
		return
	}

	s.writeJSON(w, s.historyPoints(points))
}

func (s *Server) showTodayHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	id, ok := pathID(r)
	if !ok {
		s.writeJSONError(w, http.StatusBadRequest, "Invalid vehicle ID")
		return
	}

	now := s.clock.Now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	points, err := s.db.GetLocationHistory(r.Context(), id, midnight, now)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve history: %v", err))
		return
	}

	s.writeJSON(w, s.historyPoints(points))
}

type historySummary struct {
	VehicleID   int       `json:"vehicle_id"`
	From        time.Time `json:"from"`
	To          time.Time `json:"to"`
	SampleCount int       `json:"sample_count"`
	Units       string    `json:"units"`
	MeanSpeed   float64   `json:"mean_speed"`
	MaxSpeed    float64   `json:"max_speed"`
	P85Speed    float64   `json:"p85_speed"`
}

func (s *Server) showHistorySummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	id, ok := pathID(r)
	if !ok {
		s.writeJSONError(w, http.StatusBadRequest, "Invalid vehicle ID")
		return
	}

	from, to, err := s.historyRange(r)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	speeds, err := s.db.GetLocationSpeeds(r.Context(), id, from, to)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve speeds: %v", err))
		return
	}

	summary := historySummary{
		VehicleID:   id,
		From:        from,
		To:          to,
		SampleCount: len(speeds),
		Units:       s.units,
	}

	if len(speeds) > 0 {
		for i := range speeds {
			speeds[i] = s.convertSpeed(speeds[i])
		}
		sorted := append([]float64(nil), speeds...)
		sort.Float64s(sorted)

		summary.MeanSpeed = stat.Mean(speeds, nil)
		summary.MaxSpeed = sorted[len(sorted)-1]
		summary.P85Speed = stat.Quantile(0.85, stat.Empirical, sorted, nil)
	}

	s.writeJSON(w, summary)
}

// showHistoryChart renders a speed-over-time line chart (HTML) for quick
// inspection without the frontend.
func (s *Server) showHistoryChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	id, ok := pathID(r)
	if !ok {
		s.writeJSONError(w, http.StatusBadRequest, "Invalid vehicle ID")
		return
	}

	from, to, err := s.historyRange(r)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	points, err := s.db.GetLocationHistory(r.Context(), id, from, to)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve history: %v", err))
		return
	}

	timestamps := make([]string, 0, len(points))
	speeds := make([]opts.LineData, 0, len(points))
	for _, p := range points {
		if p.SpeedKMPH == nil {
			continue
		}
		timestamps = append(timestamps, p.RecordedAt.Format("15:04:05"))
		speeds = append(speeds, opts.LineData{Value: s.convertSpeed(*p.SpeedKMPH)})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: fmt.Sprintf("Vehicle %d Speed", id),
			Width:     "1200px",
			Height:    "500px",
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("Vehicle %d", id),
			Subtitle: fmt.Sprintf("speed (%s), %d samples", s.units, len(speeds)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	line.SetXAxis(timestamps)
	line.AddSeries("speed", speeds,
		charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}))

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("failed to render chart: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
