package fluxmeter

import (
	"fmt"

	"github.com/san-kum/muflux/internal/dem"
	"github.com/san-kum/muflux/internal/geo"
	"github.com/san-kum/muflux/internal/transport"
)

// Vertical extent of the layered geometry, m.
const (
	ZMin = -11e3
	ZMax = 120e3
)

// Layer is one topographic stratum: a material filling the space from
// the surface of the layer below up to this layer's own surface. The
// surface is an elevation model shifted by a vertical offset, or an
// infinite flat plane at the offset when no model is given.
type Layer struct {
	material *transport.Material
	model    *dem.Map
	offset   float64

	// Density overrides the material bulk density, in kg/m3.
	Density float64
}

// NewLayer creates a layer of a registered material. A nil model
// denotes a flat plane at the given offset.
func NewLayer(material string, model *dem.Map, offset float64) (*Layer, error) {
	m, ok := transport.MaterialByName(material)
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrMaterial, material)
	}
	return &Layer{
		material: m,
		model:    model,
		offset:   offset,
		Density:  m.Density,
	}, nil
}

func (l *Layer) Material() *transport.Material { return l.material }
func (l *Layer) Model() *dem.Map               { return l.model }
func (l *Layer) Offset() float64               { return l.offset }

// Height samples the layer surface at map coordinates (x, y). Outside
// of the model domain the surface drops to the geometry bottom.
func (l *Layer) Height(x, y float64) float64 {
	if l.model == nil {
		return l.offset
	}
	z, inside := l.model.Elevation(x, y)
	if !inside {
		return ZMin
	}
	return z + l.offset
}

// Gradient returns the surface slope at map coordinates (x, y). A flat
// layer, or a point outside of the model domain, has none.
func (l *Layer) Gradient(x, y float64) (gx, gy float64) {
	if l.model == nil {
		return 0, 0
	}
	gx, gy, inside := l.model.Gradient(x, y)
	if !inside {
		return 0, 0
	}
	return gx, gy
}

// Position converts map coordinates to the geodetic surface location.
func (l *Layer) Position(x, y float64) geo.Position {
	var latitude, longitude float64
	if l.model == nil {
		latitude, longitude = y, x
	} else {
		latitude, longitude = l.model.Projection.Unproject(x, y)
	}
	return geo.Position{
		Latitude:  latitude,
		Longitude: longitude,
		Height:    l.Height(x, y),
	}
}

// Project is the inverse of Position, mapping a geodetic location to
// map coordinates.
func (l *Layer) Project(latitude, longitude float64) (x, y float64) {
	if l.model == nil {
		return longitude, latitude
	}
	return l.model.Projection.Project(latitude, longitude)
}

// HeightRange bounds the layer surface altitude.
func (l *Layer) HeightRange() (zmin, zmax float64) {
	if l.model == nil {
		return l.offset, l.offset
	}
	return l.model.Zmin() + l.offset, l.model.Zmax() + l.offset
}
