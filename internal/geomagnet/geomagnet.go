// Package geomagnet provides snapshots of the Earth magnetic field, as
// sampled by the fluxmeter's atmosphere locals callback.
package geomagnet

import (
	"fmt"
	"math"

	"github.com/san-kum/muflux/internal/geo"
)

// Model samples the geomagnetic field in the local tangent frame, in T.
// Implementations return a zero field on sampling failure.
type Model interface {
	Field(p geo.Position) geo.ENU
	HeightRange() (min, max float64)
}

// Snapshot is a centred tilted-dipole field evaluated at a fixed date.
// The dipole coefficients are the degree-1 terms of the IGRF-13 2020
// epoch, extrapolated with their secular variation.
type Snapshot struct {
	Model string
	Day   int
	Month int
	Year  int

	m  geo.Ecef // dipole direction, unit
	b0 float64  // field scale at the equatorial surface, T
}

// IGRF-13 degree-1 coefficients (nT) at epoch 2020.0, and their secular
// variation (nT/yr).
const (
	g10, g10dot = -29404.8, 5.7
	g11, g11dot = -1450.9, 7.4
	h11, h11dot = 4652.5, -25.9
)

// Validity range of the snapshot, in m above the ellipsoid.
const (
	heightMin = -1e3
	heightMax = 600e3
)

// NewSnapshot creates a field snapshot for the given date.
func NewSnapshot(day, month, year int) (*Snapshot, error) {
	if day < 1 || day > 31 || month < 1 || month > 12 {
		return nil, fmt.Errorf("geomagnet: bad date (%02d/%02d/%04d)",
			day, month, year)
	}
	if year < 1965 || year > 2030 {
		return nil, fmt.Errorf("geomagnet: no data for year %d", year)
	}

	dt := float64(year) + (float64(month)-1.0)/12.0 - 2020.0
	g0 := (g10 + g10dot*dt) * 1e-9
	g1 := (g11 + g11dot*dt) * 1e-9
	h1 := (h11 + h11dot*dt) * 1e-9

	b0 := math.Sqrt(g0*g0 + g1*g1 + h1*h1)

	// Dipole moment direction in ECEF. With the Gauss coefficient
	// convention g10 is negative, so the raw vector already points
	// towards the geographic south.
	m := geo.Ecef{g1, h1, g0}.Scale(1.0 / b0)

	return &Snapshot{
		Model: "igrf13-dipole",
		Day:   day,
		Month: month,
		Year:  year,
		m:     m,
		b0:    b0,
	}, nil
}

func (s *Snapshot) HeightRange() (min, max float64) {
	return heightMin, heightMax
}

// Field returns the dipole field at the given position, in the local
// ENU frame. Out-of-range queries yield a zero field.
func (s *Snapshot) Field(p geo.Position) geo.ENU {
	if p.Height < heightMin || p.Height > heightMax {
		return geo.ENU{}
	}

	r := geo.EcefFromGeodetic(p)
	rn := r.Norm()
	if rn <= 0 {
		return geo.ENU{}
	}
	rhat := r.Scale(1.0 / rn)

	// B = B0 (a/r)^3 [3 (m.r) r - m]
	scale := s.b0 * math.Pow(geo.SemiMajorAxis/rn, 3.0)
	mr := s.m.Dot(rhat)
	b := rhat.Scale(3.0 * mr).Sub(s.m).Scale(scale)

	east, north, up := geo.LocalFrame(p.Latitude, p.Longitude)
	return geo.ENU{
		East:   b.Dot(east),
		North:  b.Dot(north),
		Upward: b.Dot(up),
	}
}
