// Package units provides shared constants and validation for speed units
package units

// Unit constants
const (
	KMPH = "kmph"
	KPH  = "kph"
	MPH  = "mph"
	MPS  = "mps"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{KMPH, KPH, MPH, MPS}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return "kmph, kph, mph, mps"
}

// ConvertSpeed converts a speed from kilometres per hour to the target units.
// Telemetry and the database store speeds in km/h.
func ConvertSpeed(speedKMPH float64, targetUnits string) float64 {
	switch targetUnits {
	case MPH:
		return speedKMPH * 0.621371 // km/h to mph
	case MPS:
		return speedKMPH / 3.6 // km/h to m/s
	case KMPH, KPH:
		return speedKMPH // no conversion needed
	default:
		return speedKMPH // default to km/h if unknown unit
	}
}
