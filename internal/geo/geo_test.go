package geo

import (
	"math"
	"testing"
)

func TestDistance(t *testing.T) {
	tests := []struct {
		name                   string
		lat1, lon1, lat2, lon2 float64
		want                   float64
		tolerance              float64
	}{
		{"identical point", 16.8175, 100.26082, 16.8175, 100.26082, 0, 0.001},
		{"one degree of latitude", 0, 0, 1, 0, 111195, 50},
		{"bangkok to chiang mai", 13.7563, 100.5018, 18.7883, 98.9853, 580000, 10000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Distance(tt.lat1, tt.lon1, tt.lat2, tt.lon2)
			if math.Abs(got-tt.want) > tt.tolerance {
				t.Errorf("Distance() = %.1f m, want %.1f ± %.1f", got, tt.want, tt.tolerance)
			}
		})
	}
}

func TestWithinRadius(t *testing.T) {
	if !WithinRadius(16.8175, 100.26082, 16.8175, 100.26082, 1) {
		t.Error("identical point must be within any positive radius")
	}
	// ~111 km apart, 100 m radius.
	if WithinRadius(0, 0, 1, 0, 100) {
		t.Error("points a degree apart must not be within 100 m")
	}
}

func TestEligible(t *testing.T) {
	lat, lon := 16.8175, 100.26082
	radius := 500.0

	tests := []struct {
		name             string
		eventLat         *float64
		eventLon         *float64
		radius           *float64
		enabled          bool
		userLat, userLon float64
		hasUserPos       bool
		want             bool
	}{
		{"geofence disabled", &lat, &lon, &radius, false, 0, 0, false, true},
		{"missing event coords", nil, nil, &radius, true, lat, lon, true, true},
		{"missing radius", &lat, &lon, nil, true, lat, lon, true, true},
		{"no device position fails closed", &lat, &lon, &radius, true, 0, 0, false, false},
		{"inside radius", &lat, &lon, &radius, true, lat, lon, true, true},
		{"outside radius", &lat, &lon, &radius, true, lat + 1, lon, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Eligible(tt.eventLat, tt.eventLon, tt.radius, tt.enabled, tt.userLat, tt.userLon, tt.hasUserPos)
			if got != tt.want {
				t.Errorf("Eligible() = %v, want %v", got, tt.want)
			}
		})
	}
}
