package geo

import "math"

// EarthRadiusMeters is the mean Earth radius used by the haversine formula.
const EarthRadiusMeters = 6371000.0

// Distance returns the great-circle distance in meters between two
// latitude/longitude pairs (haversine).
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	rlat1 := lat1 * math.Pi / 180
	rlat2 := lat2 * math.Pi / 180
	dlat := (lat2 - lat1) * math.Pi / 180
	dlon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(rlat1)*math.Cos(rlat2)*math.Sin(dlon/2)*math.Sin(dlon/2)
	return 2 * EarthRadiusMeters * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// WithinRadius reports whether the user position is inside the circle of
// radiusMeters around the event position.
func WithinRadius(eventLat, eventLon, userLat, userLon, radiusMeters float64) bool {
	return Distance(eventLat, eventLon, userLat, userLon) <= radiusMeters
}

// Eligible decides check-in eligibility for an event geofence.
// Events without a configured geofence admit unconditionally. A caller that
// could not obtain device coordinates must pass hasUserPos=false, which fails
// closed.
func Eligible(eventLat, eventLon *float64, radiusMeters *float64, enabled bool, userLat, userLon float64, hasUserPos bool) bool {
	if !enabled || eventLat == nil || eventLon == nil || radiusMeters == nil || *radiusMeters <= 0 {
		return true
	}
	if !hasUserPos {
		return false
	}
	return WithinRadius(*eventLat, *eventLon, userLat, userLon, *radiusMeters)
}
