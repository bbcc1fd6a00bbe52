// Package scan rasterizes muon flux over grids of observation
// directions or energies, fanning the work across CPU workers.
package scan

import (
	"errors"
	"math"
	"runtime"
	"sync"

	"github.com/san-kum/muflux/internal/fluxmeter"
	"github.com/san-kum/muflux/internal/geo"
	"github.com/san-kum/muflux/internal/reference"
)

var ErrEmptyGrid = errors.New("scan: empty grid")

// Grid is a rectangular raster of observation directions. Azimuth is
// the fast axis.
type Grid struct {
	AzimuthMin   float64
	AzimuthMax   float64
	Azimuths     int
	ElevationMin float64
	ElevationMax float64
	Elevations   int
}

func (g Grid) Cells() int { return g.Azimuths * g.Elevations }

// Azimuth returns the azimuth of column i, in deg.
func (g Grid) Azimuth(i int) float64 {
	if g.Azimuths <= 1 {
		return g.AzimuthMin
	}
	return g.AzimuthMin + (g.AzimuthMax-g.AzimuthMin)*float64(i)/float64(g.Azimuths-1)
}

// Elevation returns the elevation of row j, in deg.
func (g Grid) Elevation(j int) float64 {
	if g.Elevations <= 1 {
		return g.ElevationMin
	}
	return g.ElevationMin + (g.ElevationMax-g.ElevationMin)*float64(j)/float64(g.Elevations-1)
}

// Map holds per-direction flux samples for one observation energy.
// Values are indexed as j*Azimuths+i, matching Grid.
type Map struct {
	Grid
	Energy      float64
	Values      []float64
	Asymmetries []float64
}

func NewMap(grid Grid, energy float64) *Map {
	n := grid.Cells()
	return &Map{
		Grid:        grid,
		Energy:      energy,
		Values:      make([]float64, n),
		Asymmetries: make([]float64, n),
	}
}

// At returns the flux sample at column i, row j.
func (m *Map) At(i, j int) reference.Flux {
	k := j*m.Azimuths + i
	return reference.Flux{Value: m.Values[k], Asymmetry: m.Asymmetries[k]}
}

// Range returns the extreme flux values of the map.
func (m *Map) Range() (lo, hi float64) {
	if len(m.Values) == 0 {
		return 0, 0
	}
	lo, hi = m.Values[0], m.Values[0]
	for _, v := range m.Values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

// Row returns the flux values of elevation row j.
func (m *Map) Row(j int) []float64 {
	return m.Values[j*m.Azimuths : (j+1)*m.Azimuths]
}

// Scanner computes flux rasters with a pool of workers, each holding
// its own clone of the prototype fluxmeter.
type Scanner struct {
	meter   *fluxmeter.Fluxmeter
	workers int

	// OnCell, when set, is called after every completed cell with the
	// number of cells done so far. Calls are serialized.
	OnCell func(done, total int)
}

// New returns a scanner over meter. workers <= 0 selects one worker
// per CPU.
func New(meter *fluxmeter.Fluxmeter, workers int) *Scanner {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Scanner{meter: meter, workers: workers}
}

// Scan rasterizes the flux seen from position over the direction grid.
// Rows are chunked over workers; worker w transports with the seed
// seed+w so that runs are reproducible for a fixed worker count.
func (s *Scanner) Scan(position geo.Position, energy float64, pid fluxmeter.PID, grid Grid, seed uint64) (*Map, error) {
	total := grid.Cells()
	if total == 0 {
		return nil, ErrEmptyGrid
	}
	result := NewMap(grid, energy)

	workers := s.workers
	if workers > grid.Elevations {
		workers = grid.Elevations
	}
	chunk := (grid.Elevations + workers - 1) / workers

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		done     int
		firstErr error
	)
	report := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil && firstErr == nil {
			firstErr = err
		}
		done++
		if s.OnCell != nil {
			s.OnCell(done, total)
		}
	}

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()

			meter := s.meter.Clone(seed + uint64(worker))
			start := worker * chunk
			end := start + chunk
			if end > grid.Elevations {
				end = grid.Elevations
			}

			for j := start; j < end; j++ {
				for i := 0; i < grid.Azimuths; i++ {
					state := fluxmeter.State{
						PID:      pid,
						Position: position,
						Direction: geo.Direction{
							Azimuth:   grid.Azimuth(i),
							Elevation: grid.Elevation(j),
						},
						Energy: energy,
						Weight: 1,
					}
					flux, err := meter.Flux(state)
					k := j*grid.Azimuths + i
					result.Values[k] = flux.Value
					result.Asymmetries[k] = flux.Asymmetry
					report(err)
				}
			}
		}(w)
	}

	wg.Wait()
	return result, firstErr
}

// Spectrum computes the flux at a fixed direction for each energy.
// Energies are chunked over workers.
func (s *Scanner) Spectrum(position geo.Position, direction geo.Direction, pid fluxmeter.PID, energies []float64, seed uint64) ([]reference.Flux, error) {
	n := len(energies)
	if n == 0 {
		return nil, ErrEmptyGrid
	}
	result := make([]reference.Flux, n)

	workers := s.workers
	if workers > n {
		workers = n
	}
	chunk := (n + workers - 1) / workers

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		done     int
		firstErr error
	)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()

			meter := s.meter.Clone(seed + uint64(worker))
			start := worker * chunk
			end := start + chunk
			if end > n {
				end = n
			}

			for i := start; i < end; i++ {
				flux, err := meter.Flux(fluxmeter.State{
					PID:       pid,
					Position:  position,
					Direction: direction,
					Energy:    energies[i],
					Weight:    1,
				})
				result[i] = flux

				mu.Lock()
				if err != nil && firstErr == nil {
					firstErr = err
				}
				done++
				if s.OnCell != nil {
					s.OnCell(done, n)
				}
				mu.Unlock()
			}
		}(w)
	}

	wg.Wait()
	return result, firstErr
}

// LogEnergies returns n energies spaced geometrically over [lo, hi].
func LogEnergies(lo, hi float64, n int) []float64 {
	if n <= 1 {
		return []float64{lo}
	}
	energies := make([]float64, n)
	ratio := hi / lo
	for i := range energies {
		energies[i] = lo * math.Pow(ratio, float64(i)/float64(n-1))
	}
	return energies
}
