package fluxmeter

import "github.com/san-kum/muflux/internal/geomagnet"

// Geometry is an ordered stack of layers, listed bottom-up, with an
// optional geomagnetic field. The geometry borrows its layers: callers
// keep ownership and may tune their densities between queries.
type Geometry struct {
	Layers    []*Layer
	Geomagnet geomagnet.Model
}

func NewGeometry(layers ...*Layer) *Geometry {
	return &Geometry{Layers: layers}
}

func (g *Geometry) Size() int { return len(g.Layers) }

// topmost returns the highest surface altitude over all layers, or the
// geometry bottom for an empty stack.
func (g *Geometry) topmost() float64 {
	zmax := ZMin
	for _, l := range g.Layers {
		if _, z := l.HeightRange(); z > zmax {
			zmax = z
		}
	}
	return zmax
}
