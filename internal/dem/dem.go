// Package dem provides in-memory digital elevation models sampled on a
// regular grid, together with the map projections binding grid
// coordinates to geodetic ones.
package dem

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
)

var ErrFormat = errors.New("dem: bad map format")

// Projection maps geodetic coordinates to map-local (x, y) ones.
type Projection interface {
	Name() string
	Project(latitude, longitude float64) (x, y float64)
	Unproject(x, y float64) (latitude, longitude float64)
}

// Geographic is the identity projection: x is the longitude and y the
// latitude, both in deg.
type Geographic struct{}

func (Geographic) Name() string { return "geographic" }

func (Geographic) Project(latitude, longitude float64) (x, y float64) {
	return longitude, latitude
}

func (Geographic) Unproject(x, y float64) (latitude, longitude float64) {
	return y, x
}

// Local is a flat metric projection centered on an origin, with x
// pointing East and y pointing North, in m. It is accurate for maps
// spanning a few tens of km.
type Local struct {
	Latitude  float64 // deg, origin
	Longitude float64 // deg, origin
}

const metersPerDeg = 6378137.0 * math.Pi / 180.0

func (Local) Name() string { return "local" }

func (p Local) Project(latitude, longitude float64) (x, y float64) {
	x = (longitude - p.Longitude) * metersPerDeg *
		math.Cos(p.Latitude*math.Pi/180.0)
	y = (latitude - p.Latitude) * metersPerDeg
	return x, y
}

func (p Local) Unproject(x, y float64) (latitude, longitude float64) {
	latitude = p.Latitude + y/metersPerDeg
	longitude = p.Longitude + x/(metersPerDeg*
		math.Cos(p.Latitude*math.Pi/180.0))
	return latitude, longitude
}

// Map is a topography model on a regular (x, y) grid. Nodes are stored
// row by row, y varying slowest.
type Map struct {
	Projection Projection

	nx, ny     int
	xmin, xmax float64
	ymin, ymax float64
	zmin, zmax float64
	nodes      []float64
}

// New wraps a grid of elevation nodes as a Map. The nodes slice must
// have nx*ny entries. A nil projection defaults to Geographic.
func New(projection Projection, nx, ny int, xmin, xmax, ymin, ymax float64, nodes []float64) (*Map, error) {
	if nx < 2 || ny < 2 {
		return nil, fmt.Errorf("%w: grid is %dx%d, need at least 2x2", ErrFormat, nx, ny)
	}
	if len(nodes) != nx*ny {
		return nil, fmt.Errorf("%w: expected %d nodes, got %d", ErrFormat, nx*ny, len(nodes))
	}
	if projection == nil {
		projection = Geographic{}
	}

	zmin, zmax := nodes[0], nodes[0]
	for _, z := range nodes {
		if z < zmin {
			zmin = z
		}
		if z > zmax {
			zmax = z
		}
	}

	return &Map{
		Projection: projection,
		nx:         nx,
		ny:         ny,
		xmin:       xmin,
		xmax:       xmax,
		ymin:       ymin,
		ymax:       ymax,
		zmin:       zmin,
		zmax:       zmax,
		nodes:      nodes,
	}, nil
}

func (m *Map) Nx() int       { return m.nx }
func (m *Map) Ny() int       { return m.ny }
func (m *Map) Xmin() float64 { return m.xmin }
func (m *Map) Xmax() float64 { return m.xmax }
func (m *Map) Ymin() float64 { return m.ymin }
func (m *Map) Ymax() float64 { return m.ymax }
func (m *Map) Zmin() float64 { return m.zmin }
func (m *Map) Zmax() float64 { return m.zmax }

func (m *Map) index(x, y float64) (ix, iy int, hx, hy float64, inside bool) {
	dx := (m.xmax - m.xmin) / float64(m.nx-1)
	dy := (m.ymax - m.ymin) / float64(m.ny-1)

	fx := (x - m.xmin) / dx
	fy := (y - m.ymin) / dy
	if fx < 0 || fx > float64(m.nx-1) || fy < 0 || fy > float64(m.ny-1) {
		return 0, 0, 0, 0, false
	}

	ix = int(fx)
	if ix > m.nx-2 {
		ix = m.nx - 2
	}
	iy = int(fy)
	if iy > m.ny-2 {
		iy = m.ny - 2
	}
	return ix, iy, fx - float64(ix), fy - float64(iy), true
}

// Elevation returns the bilinearly interpolated node elevation at map
// coordinates (x, y). Outside of the grid inside is false.
func (m *Map) Elevation(x, y float64) (z float64, inside bool) {
	ix, iy, hx, hy, inside := m.index(x, y)
	if !inside {
		return 0, false
	}
	z00 := m.nodes[iy*m.nx+ix]
	z10 := m.nodes[iy*m.nx+ix+1]
	z01 := m.nodes[(iy+1)*m.nx+ix]
	z11 := m.nodes[(iy+1)*m.nx+ix+1]

	z = z00*(1-hx)*(1-hy) + z10*hx*(1-hy) + z01*(1-hx)*hy + z11*hx*hy
	return z, true
}

// Gradient returns the (dz/dx, dz/dy) slope of the interpolated
// surface at map coordinates (x, y).
func (m *Map) Gradient(x, y float64) (gx, gy float64, inside bool) {
	ix, iy, hx, hy, inside := m.index(x, y)
	if !inside {
		return 0, 0, false
	}
	dx := (m.xmax - m.xmin) / float64(m.nx-1)
	dy := (m.ymax - m.ymin) / float64(m.ny-1)

	z00 := m.nodes[iy*m.nx+ix]
	z10 := m.nodes[iy*m.nx+ix+1]
	z01 := m.nodes[(iy+1)*m.nx+ix]
	z11 := m.nodes[(iy+1)*m.nx+ix+1]

	gx = ((z10-z00)*(1-hy) + (z11-z01)*hy) / dx
	gy = ((z01-z00)*(1-hx) + (z11-z10)*hx) / dy
	return gx, gy, true
}

// Binary map format: a header of two 64-bit integers (nx, ny) and four
// 64-bit floats (xmin, xmax, ymin, ymax), followed by nx*ny 32-bit
// float nodes, y varying slowest. Little-endian throughout.

// Load reads a map from its binary serialisation. A short or malformed
// file fails with ErrFormat and no partial map is returned.
func Load(path string, projection Projection) (*Map, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(bufio.NewReader(f), projection)
}

// Read decodes a binary map from r.
func Read(r io.Reader, projection Projection) (*Map, error) {
	var shape [2]int64
	if err := binary.Read(r, binary.LittleEndian, &shape); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	var bounds [4]float64
	if err := binary.Read(r, binary.LittleEndian, &bounds); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}

	nx, ny := int(shape[0]), int(shape[1])
	if nx < 2 || ny < 2 || nx*ny > 1<<28 {
		return nil, fmt.Errorf("%w: bad shape %dx%d", ErrFormat, nx, ny)
	}

	raw := make([]float32, nx*ny)
	if err := binary.Read(r, binary.LittleEndian, raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}

	nodes := make([]float64, len(raw))
	for i, v := range raw {
		nodes[i] = float64(v)
	}
	return New(projection, nx, ny, bounds[0], bounds[1], bounds[2], bounds[3], nodes)
}

// Write serialises the map in its binary format.
func (m *Map) Write(w io.Writer) error {
	if err := binary.Write(w, binary.LittleEndian, [2]int64{int64(m.nx), int64(m.ny)}); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, [4]float64{m.xmin, m.xmax, m.ymin, m.ymax}); err != nil {
		return err
	}
	raw := make([]float32, len(m.nodes))
	for i, v := range m.nodes {
		raw[i] = float32(v)
	}
	return binary.Write(w, binary.LittleEndian, raw)
}
