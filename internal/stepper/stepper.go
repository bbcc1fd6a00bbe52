// Package stepper resolves the medium occupied by a particle within an
// ordered stack of horizontal or terrain-following interfaces, and the
// distance to the nearest boundary.
package stepper

import (
	"math"

	"github.com/san-kum/muflux/internal/dem"
	"github.com/san-kum/muflux/internal/geo"
)

// Interface is a single boundary surface, sampled as an ellipsoidal
// height at a geodetic location.
type Interface interface {
	Height(latitude, longitude float64) float64
}

// Flat is a horizontal interface at a constant height, in m.
type Flat float64

func (f Flat) Height(latitude, longitude float64) float64 { return float64(f) }

// Terrain is a topography-following interface, offset vertically from
// its elevation model. Outside of the map domain the interface falls
// back to a fixed height.
type Terrain struct {
	Map      *dem.Map
	Offset   float64
	Fallback float64
}

func (t Terrain) Height(latitude, longitude float64) float64 {
	x, y := t.Map.Projection.Project(latitude, longitude)
	z, inside := t.Map.Elevation(x, y)
	if !inside {
		return t.Fallback
	}
	return z + t.Offset
}

// DefaultResolution is the smallest geometric step, in m. It bounds the
// step from below so that a particle sitting exactly on a boundary
// still advances.
const DefaultResolution = 1e-2

// Stepper locates media within a stack of interfaces ordered by
// increasing height. Medium index i spans the slab between interface
// i-1 and interface i, with index 0 below the bottom interface and
// index Size() above the top one.
type Stepper struct {
	interfaces []Interface
	resolution float64
}

func New(interfaces ...Interface) *Stepper {
	return &Stepper{
		interfaces: interfaces,
		resolution: DefaultResolution,
	}
}

func (s *Stepper) Size() int { return len(s.interfaces) }

// SetResolution overrides the minimum geometric step, in m.
func (s *Stepper) SetResolution(r float64) {
	if r > 0 {
		s.resolution = r
	}
}

// Locate returns the medium index at the given position: the number of
// interfaces lying at or below it.
func (s *Stepper) Locate(p geo.Position) int {
	index := 0
	for _, surface := range s.interfaces {
		if surface.Height(p.Latitude, p.Longitude) <= p.Height {
			index++
		}
	}
	return index
}

// Step returns the vertical distance to the nearest interface together
// with the medium indices on each side of it. Coincident interfaces
// are crossed one at a time, lowest first, so that zero-thickness
// layers are still reported.
func (s *Stepper) Step(p geo.Position) (step float64, media [2]int) {
	nearest := math.Inf(1)
	crossed := -1
	for i, surface := range s.interfaces {
		d := math.Abs(surface.Height(p.Latitude, p.Longitude) - p.Height)
		if d < nearest {
			nearest, crossed = d, i
		}
	}
	if crossed < 0 {
		return math.Inf(1), [2]int{0, 0}
	}
	if nearest < s.resolution {
		nearest = s.resolution
	}
	return nearest, [2]int{crossed, crossed + 1}
}
