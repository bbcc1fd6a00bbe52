package reference

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
)

var ErrTableFormat = errors.New("reference: bad table format")

// Table is a reference flux tabulated over a 3d grid of log kinetic
// energy, cos(zenith) and altitude, with two charge channels sampled at
// each node. The grid is serialised as three 64-bit integers (shape:
// n_energy, n_coszenith, n_altitude), six 64-bit floats (ranges), then
// 2*n_energy*n_coszenith*n_altitude 32-bit floats with the energy axis
// varying fastest. Little-endian throughout.
type Table struct {
	nK, nC, nH int
	kMin, kMax float64
	cMin, cMax float64
	hMin, hMax float64
	data       []float32
}

// LoadTable reads a tabulated reference flux from a file. A short or
// malformed file fails with ErrTableFormat and no partial table is
// returned.
func LoadTable(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	t, err := ReadTable(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("%w (%s)", err, path)
	}
	return t, nil
}

// ReadTable decodes a tabulated reference flux from r.
func ReadTable(r io.Reader) (*Table, error) {
	var shape [3]int64
	if err := binary.Read(r, binary.LittleEndian, &shape); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTableFormat, err)
	}
	var ranges [6]float64
	if err := binary.Read(r, binary.LittleEndian, &ranges); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTableFormat, err)
	}

	nK, nC, nH := int(shape[0]), int(shape[1]), int(shape[2])
	if nK < 2 || nC < 2 || nH < 1 || nK*nC*nH > 1<<28 {
		return nil, fmt.Errorf("%w: bad shape %dx%dx%d", ErrTableFormat, nK, nC, nH)
	}

	data := make([]float32, 2*nK*nC*nH)
	if err := binary.Read(r, binary.LittleEndian, data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTableFormat, err)
	}

	return &Table{
		nK: nK, nC: nC, nH: nH,
		kMin: ranges[0], kMax: ranges[1],
		cMin: ranges[2], cMax: ranges[3],
		hMin: ranges[4], hMax: ranges[5],
		data: data,
	}, nil
}

// NewTable wraps raw grid data as a Table. The data slice holds two
// charge channels per node, energy varying fastest.
func NewTable(nK, nC, nH int, kMin, kMax, cMin, cMax, hMin, hMax float64, data []float32) (*Table, error) {
	if nK < 2 || nC < 2 || nH < 1 {
		return nil, fmt.Errorf("%w: bad shape %dx%dx%d", ErrTableFormat, nK, nC, nH)
	}
	if len(data) != 2*nK*nC*nH {
		return nil, fmt.Errorf("%w: expected %d samples, got %d",
			ErrTableFormat, 2*nK*nC*nH, len(data))
	}
	return &Table{
		nK: nK, nC: nC, nH: nH,
		kMin: kMin, kMax: kMax,
		cMin: cMin, cMax: cMax,
		hMin: hMin, hMax: hMax,
		data: data,
	}, nil
}

// Write serialises the table in its binary format.
func (t *Table) Write(w io.Writer) error {
	shape := [3]int64{int64(t.nK), int64(t.nC), int64(t.nH)}
	if err := binary.Write(w, binary.LittleEndian, shape); err != nil {
		return err
	}
	ranges := [6]float64{t.kMin, t.kMax, t.cMin, t.cMax, t.hMin, t.hMax}
	if err := binary.Write(w, binary.LittleEndian, ranges); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, t.data)
}

func (t *Table) Shape() (nK, nC, nH int)         { return t.nK, t.nC, t.nH }
func (t *Table) EnergyRange() (min, max float64) { return t.kMin, t.kMax }
func (t *Table) HeightRange() (min, max float64) { return t.hMin, t.hMax }

func (t *Table) at(ik, ic, ih, channel int) float64 {
	return float64(t.data[2*((ih*t.nC+ic)*t.nK+ik)+channel])
}

// blend interpolates between two endpoints, geometrically when both are
// strictly positive and linearly otherwise. Log-space blending
// preserves the exponential falloff of the flux while degrading
// gracefully around empty bins.
func blend(f0, f1, h float64) float64 {
	if f0 <= 0 || f1 <= 0 {
		return f0*(1.0-h) + f1*h
	}
	return math.Exp(math.Log(f0)*(1.0-h) + math.Log(f1)*h)
}

// axisIndex splits a fractional grid coordinate into a cell index and
// an interpolation weight. The domain bounds are inclusive: a tiny
// overshoot of the last node from rounding is clamped rather than
// rejected.
func axisIndex(h float64, n int) (i int, frac float64, inside bool) {
	const tol = 1e-9
	last := float64(n - 1)
	if h < 0 || h > last+tol {
		return 0, 0, false
	}
	if h > last {
		h = last
	}
	i = int(h)
	if i > n-2 {
		i = n - 2
	}
	return i, h - float64(i), true
}

// Flux interpolates the two charge channels at the given query point.
// Out-of-domain queries on any axis return a zero flux; there is no
// extrapolation.
func (t *Table) Flux(height, elevation, energy float64) Flux {
	// Energy axis, log-spaced.
	dlk := math.Log(t.kMax/t.kMin) / float64(t.nK-1)
	ik, hk, inside := axisIndex(math.Log(energy/t.kMin)/dlk, t.nK)
	if !inside {
		return Flux{}
	}

	// Cos(zenith) axis.
	c := math.Cos((90.0 - elevation) * math.Pi / 180.0)
	dc := (t.cMax - t.cMin) / float64(t.nC-1)
	ic, hc, inside := axisIndex((c-t.cMin)/dc, t.nC)
	if !inside {
		return Flux{}
	}

	// Altitude axis, possibly degenerate.
	var ih int
	var hh float64
	if t.nH > 1 {
		dh := (t.hMax - t.hMin) / float64(t.nH-1)
		var ok bool
		ih, hh, ok = axisIndex((height-t.hMin)/dh, t.nH)
		if !ok {
			return Flux{}
		}
	}

	ik1, ic1 := ik+1, ic+1
	ih1 := ih
	if t.nH > 1 {
		ih1 = ih + 1
	}

	var flux [2]float64
	for i := 0; i < 2; i++ {
		// Linear interpolation along cos(theta).
		g00 := t.at(ik, ic, ih, i)*(1.0-hc) + t.at(ik, ic1, ih, i)*hc
		g10 := t.at(ik1, ic, ih, i)*(1.0-hc) + t.at(ik1, ic1, ih, i)*hc
		g01 := t.at(ik, ic, ih1, i)*(1.0-hc) + t.at(ik, ic1, ih1, i)*hc
		g11 := t.at(ik1, ic, ih1, i)*(1.0-hc) + t.at(ik1, ic1, ih1, i)*hc

		// Log or linear along log(kinetic), then along altitude.
		g0 := blend(g00, g10, hk)
		g1 := blend(g01, g11, hk)
		flux[i] = blend(g0, g1, hh)
	}

	sum := flux[0] + flux[1]
	if sum <= 0 {
		return Flux{}
	}
	return Flux{
		Value:     sum,
		Asymmetry: (flux[0] - flux[1]) / sum,
	}
}
