// Package geo provides the navigation math shared by the airport database,
// the OOOI capture monitor, and the track exporters.
package geo

import (
	"math"
	"time"

	"github.com/westphae/geomag/pkg/egm96"
	"github.com/westphae/geomag/pkg/wmm"
)

// Constants
const (
	EarthRadiusM = 6371000.0 // Mean earth radius (m)
	MetersPerNM  = 1852.0    // Meters per nautical mile
	KnotsToMs    = 0.514444  // Conversion factor from Knots to m/s
	MsToKnots    = 1.94384   // Conversion factor from m/s to Knots
	FeetToMeters = 0.3048
)

// Haversine returns the great-circle distance in meters between two points
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusM * c
}

// MetersToNM converts meters to nautical miles
func MetersToNM(meters float64) float64 {
	return meters / MetersPerNM
}

// NMToMeters converts nautical miles to meters
func NMToMeters(nm float64) float64 {
	return nm * MetersPerNM
}

// InitialBearing returns the initial great-circle bearing in degrees (0-360)
// from point 1 to point 2
func InitialBearing(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	y := math.Sin(dLambda) * math.Cos(phi2)
	x := math.Cos(phi1)*math.Sin(phi2) - math.Sin(phi1)*math.Cos(phi2)*math.Cos(dLambda)

	bearing := math.Atan2(y, x) * 180 / math.Pi
	if bearing < 0 {
		bearing += 360
	}
	return bearing
}

// GroundSpeedKts derives ground speed in knots from two successive fixes.
// Returns 0 when the fixes are not strictly ordered in time.
func GroundSpeedKts(lat1, lon1 float64, t1 time.Time, lat2, lon2 float64, t2 time.Time) float64 {
	dt := t2.Sub(t1).Seconds()
	if dt <= 0 {
		return 0
	}
	distM := Haversine(lat1, lon1, lat2, lon2)
	return (distM / dt) * MsToKnots
}

// MagneticVariation calculates the magnetic declination for a given position
// and time. Returns declination in degrees (+East, -West).
func MagneticVariation(lat, lon, altFt float64, date time.Time) float64 {
	altM := altFt * FeetToMeters

	loc := egm96.NewLocationGeodetic(lat, lon, altM)

	mag, err := wmm.CalculateWMMMagneticField(loc, date)
	if err != nil {
		// Return 0 for safety if calculation fails
		return 0.0
	}

	return mag.D()
}

// TrueToMagnetic converts a true track to a magnetic track for the given
// position and time, normalized to 0-360.
func TrueToMagnetic(trueTrack, lat, lon, altFt float64, date time.Time) float64 {
	mag := trueTrack - MagneticVariation(lat, lon, altFt, date)
	for mag < 0 {
		mag += 360
	}
	for mag >= 360 {
		mag -= 360
	}
	return mag
}
