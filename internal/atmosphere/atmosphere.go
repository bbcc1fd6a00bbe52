// Package atmosphere models the vertical density profile of the Earth
// atmosphere, as queried by the transport engine's locals callback.
package atmosphere

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/interp"
)

// Profile yields the local bulk density (kg/m^3) and the characteristic
// length (m) over which the density varies by O(1).
type Profile interface {
	Density(height float64) (rho, lambda float64)
}

// USStandard is the CORSIKA parameterisation of the US standard
// atmosphere: four exponential bands keyed by altitude.
type USStandard struct{}

var (
	usHeights = [4]float64{4e3, 1e4, 4e4, 1e5}
	usB       = [4]float64{1222.6562, 1144.9069, 1305.5948, 540.1778}
	usC       = [4]float64{994186.38, 878153.55, 636143.04, 772170.16}
)

func usDensity(height, lambda, b float64) float64 {
	return 1e1 * b / lambda * math.Exp(-height/lambda)
}

func (USStandard) Density(height float64) (rho, lambda float64) {
	for i, hc := range usHeights {
		if height < hc {
			lambda = usC[i] * 1e-2
			return usDensity(height, lambda, usB[i]), lambda
		}
	}
	lambda = usC[3] * 1e-2
	return usDensity(usHeights[3], lambda, usB[3]), lambda
}

// Tabulated interpolates a (height, density) table, exponentially
// within each bin. Heights must be strictly increasing and densities
// strictly positive.
type Tabulated struct {
	pl      interp.PiecewiseLinear
	heights []float64
	logRho  []float64
	zmin    float64
	zmax    float64
}

// NewTabulated fits an exponential-in-bin profile to the given table.
func NewTabulated(heights, densities []float64) (*Tabulated, error) {
	if len(heights) != len(densities) {
		return nil, fmt.Errorf("atmosphere: %d heights for %d densities",
			len(heights), len(densities))
	}
	if len(heights) < 2 {
		return nil, fmt.Errorf("atmosphere: expected 2 or more samples, got %d",
			len(heights))
	}

	logRho := make([]float64, len(densities))
	for i, rho := range densities {
		if rho <= 0 {
			return nil, fmt.Errorf(
				"atmosphere: expected a strictly positive density, got %g", rho)
		}
		if i > 0 && heights[i] <= heights[i-1] {
			return nil, fmt.Errorf(
				"atmosphere: expected strictly increasing heights, got %g, %g",
				heights[i-1], heights[i])
		}
		logRho[i] = math.Log(rho)
	}

	t := &Tabulated{
		heights: heights,
		logRho:  logRho,
		zmin:    heights[0],
		zmax:    heights[len(heights)-1],
	}
	if err := t.pl.Fit(heights, logRho); err != nil {
		return nil, fmt.Errorf("atmosphere: %v", err)
	}
	return t, nil
}

// slope returns the log-density gradient of the bin containing h.
func (t *Tabulated) slope(h float64) float64 {
	i := sort.SearchFloat64s(t.heights, h)
	if i < 1 {
		i = 1
	} else if i > len(t.heights)-1 {
		i = len(t.heights) - 1
	}
	return (t.logRho[i] - t.logRho[i-1]) / (t.heights[i] - t.heights[i-1])
}

func (t *Tabulated) Density(height float64) (rho, lambda float64) {
	h := height
	if h < t.zmin {
		h = t.zmin
	} else if h > t.zmax {
		h = t.zmax
	}
	rho = math.Exp(t.pl.Predict(h))

	slope := t.slope(h)
	if slope == 0 {
		lambda = t.zmax - t.zmin
	} else {
		lambda = math.Abs(1.0 / slope)
	}
	return rho, lambda
}
