package geo

import (
	"math"
	"testing"
)

func TestEcefGeodeticRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		p    Position
	}{
		{"equator", Position{0, 0, 0}},
		{"mid latitude", Position{45.76, 2.96, 1465.0}},
		{"southern", Position{-33.5, -70.6, 520.0}},
		{"high altitude", Position{10.0, 120.0, 35e3}},
		{"negative height", Position{60.0, 5.0, -500.0}},
		{"near pole", Position{89.9, 45.0, 100.0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := EcefFromGeodetic(tt.p)
			q := EcefToGeodetic(r)

			if math.Abs(q.Latitude-tt.p.Latitude) > 1e-9 {
				t.Errorf("latitude: got %.12f, want %.12f", q.Latitude, tt.p.Latitude)
			}
			if math.Abs(q.Longitude-tt.p.Longitude) > 1e-9 {
				t.Errorf("longitude: got %.12f, want %.12f", q.Longitude, tt.p.Longitude)
			}
			if math.Abs(q.Height-tt.p.Height) > 1e-5 {
				t.Errorf("height: got %.6f, want %.6f", q.Height, tt.p.Height)
			}
		})
	}
}

func TestEcefGeodeticConverges(t *testing.T) {
	// The latitude iteration must tighten beyond the single
	// closed-form step, even at the domain extremes.
	tests := []struct {
		name string
		p    Position
	}{
		{"atmosphere top", Position{45.0, 3.0, 120e3}},
		{"world bottom", Position{-45.0, 3.0, -11e3}},
		{"steep latitude", Position{80.0, -120.0, 120e3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := EcefToGeodetic(EcefFromGeodetic(tt.p))
			if math.Abs(q.Latitude-tt.p.Latitude) > 1e-12 {
				t.Errorf("latitude: got %.15f, want %.15f", q.Latitude, tt.p.Latitude)
			}
			if math.Abs(q.Height-tt.p.Height) > 1e-7 {
				t.Errorf("height: got %.9f, want %.9f", q.Height, tt.p.Height)
			}
		})
	}
}

func TestHorizontalRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		d    Direction
	}{
		{"north", Direction{0, 0}},
		{"up east", Direction{90, 45}},
		{"south low", Direction{180, 10}},
		{"west down", Direction{270, -30}},
		{"oblique", Direction{123.4, 67.8}},
	}

	const lat, lon = 45.76, 2.96
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := EcefFromHorizontal(lat, lon, tt.d)
			if math.Abs(v.Norm()-1.0) > 1e-12 {
				t.Fatalf("direction is not a unit vector: |v| = %v", v.Norm())
			}
			d := EcefToHorizontal(lat, lon, v)
			if math.Abs(d.Elevation-tt.d.Elevation) > 1e-9 {
				t.Errorf("elevation: got %v, want %v", d.Elevation, tt.d.Elevation)
			}
			da := math.Mod(d.Azimuth-tt.d.Azimuth+540.0, 360.0) - 180.0
			if math.Abs(da) > 1e-9 {
				t.Errorf("azimuth: got %v, want %v", d.Azimuth, tt.d.Azimuth)
			}
		})
	}
}

func TestVerticalDirectionPointsUp(t *testing.T) {
	p := Position{Latitude: 45.0, Longitude: 3.0, Height: 0.0}
	r0 := EcefFromGeodetic(p)
	v := EcefFromHorizontal(p.Latitude, p.Longitude, Direction{Azimuth: 0, Elevation: 90})

	p.Height = 1000.0
	r1 := EcefFromGeodetic(p)

	got := r0.Add(v.Scale(1000.0))
	if d := got.Sub(r1).Norm(); d > 1e-6 {
		t.Errorf("vertical displacement mismatch: %v m", d)
	}
}

func TestEcefFromENU(t *testing.T) {
	// Upward in the local frame matches the vertical direction.
	up := EcefFromENU(12.0, 34.0, ENU{Upward: 1})
	want := EcefFromHorizontal(12.0, 34.0, Direction{Elevation: 90})
	if d := up.Sub(want).Norm(); d > 1e-12 {
		t.Errorf("ENU up != horizontal zenith: %v", d)
	}
}
