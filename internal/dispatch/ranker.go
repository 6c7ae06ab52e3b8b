// Package dispatch ranks available vehicles by estimated travel time to an
// incident and drives the operator selection flow to assignment.
package dispatch

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/EyasDmour/vehicle-tracker/internal/monitoring"
	"github.com/EyasDmour/vehicle-tracker/internal/routing"
)

// Router is the routing collaborator used to estimate travel times.
type Router interface {
	Route(ctx context.Context, from, to routing.Point) (routing.Route, error)
}

// Vehicle is a fleet vehicle as reported by the live position source.
// Position is nil when the vehicle has never reported a location.
type Vehicle struct {
	ID          int
	PlateNumber string
	Make        string
	Model       string
	DriverName  string
	Status      string
	Position    *routing.Point
}

// Candidate is a vehicle considered for dispatch. Distance and duration are
// nil when the routing lookup failed; such candidates are retained and sort
// after all routed ones.
type Candidate struct {
	VehicleID       int           `json:"vehicle_id"`
	PlateNumber     string        `json:"plate_number"`
	Make            string        `json:"make"`
	Model           string        `json:"model"`
	DriverName      string        `json:"driver_name,omitempty"`
	Position        routing.Point `json:"position"`
	DistanceMeters  *float64      `json:"distance_meters"`
	DurationSeconds *float64      `json:"duration_seconds"`
	Recommended     bool          `json:"recommended"`
}

// Dispatchable statuses. Vehicles report either depending on the telemetry
// path.
func statusEligible(status string) bool {
	return status == "available" || status == "online"
}

// EligibleCandidates filters the fleet snapshot down to vehicles with a
// known position and a dispatchable status, preserving snapshot order.
func EligibleCandidates(fleet []Vehicle) []Candidate {
	var out []Candidate
	for _, v := range fleet {
		if v.Position == nil || !statusEligible(v.Status) {
			continue
		}
		out = append(out, Candidate{
			VehicleID:   v.ID,
			PlateNumber: v.PlateNumber,
			Make:        v.Make,
			Model:       v.Model,
			DriverName:  v.DriverName,
			Position:    *v.Position,
		})
	}
	return out
}

// Rank resolves a route for every candidate concurrently, then sorts by
// duration ascending with unrouted candidates last, ties and unrouted
// candidates keeping their original order. The fastest candidate is flagged
// recommended only when its duration is known and strictly below
// urgencySeconds.
//
// Each lookup writes to its own slot, so completion order is irrelevant.
// A failed lookup only nils that candidate's estimate; it never fails the
// ranking.
func Rank(ctx context.Context, router Router, incident routing.Point, candidates []Candidate, urgencySeconds float64) []Candidate {
	ranked := make([]Candidate, len(candidates))
	copy(ranked, candidates)

	g, gctx := errgroup.WithContext(ctx)
	for i := range ranked {
		g.Go(func() error {
			route, err := router.Route(gctx, ranked[i].Position, incident)
			if err != nil {
				monitoring.Logf("routing failed for vehicle %d: %v", ranked[i].VehicleID, err)
				ranked[i].DistanceMeters = nil
				ranked[i].DurationSeconds = nil
				return nil
			}
			distance := route.DistanceMeters
			duration := route.DurationSeconds
			ranked[i].DistanceMeters = &distance
			ranked[i].DurationSeconds = &duration
			return nil
		})
	}
	// Workers never return errors; Wait only orders the slot writes.
	_ = g.Wait()

	sort.SliceStable(ranked, func(a, b int) bool {
		da, db := ranked[a].DurationSeconds, ranked[b].DurationSeconds
		if da == nil {
			return false
		}
		if db == nil {
			return true
		}
		return *da < *db
	})

	if len(ranked) > 0 {
		top := &ranked[0]
		top.Recommended = top.DurationSeconds != nil && *top.DurationSeconds < urgencySeconds
	}

	return ranked
}
