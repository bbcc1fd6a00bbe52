package reference

import (
	"math"
	"testing"
)

func TestOpenSkyMonotonicInEnergy(t *testing.T) {
	m := Default()
	for _, elevation := range []float64{0.0, 10.0, 45.0, 90.0} {
		prev := math.Inf(1)
		for _, energy := range []float64{0.1, 1, 10, 100, 1e3, 1e4} {
			f := m.Flux(0, elevation, energy)
			if f.Value > prev {
				t.Errorf("flux increases with energy at elevation %v: %v > %v",
					elevation, f.Value, prev)
			}
			prev = f.Value
		}
	}
}

func TestOpenSkyBelowHorizon(t *testing.T) {
	// cos(zenith) < 0 yields a zero Gaisser flux.
	if f := fluxGaisser(-0.1, 10); f != 0 {
		t.Errorf("below horizon: got %v, want 0", f)
	}
}

func TestOpenSkyPositiveAboveHorizon(t *testing.T) {
	m := Default()
	f := m.Flux(0, 90, 10)
	if f.Value <= 0 || math.IsInf(f.Value, 0) || math.IsNaN(f.Value) {
		t.Errorf("vertical flux at 10 GeV: %v", f.Value)
	}
	if f.Asymmetry < -1 || f.Asymmetry > 1 {
		t.Errorf("asymmetry out of range: %v", f.Asymmetry)
	}
}

func TestOpenSkyOutsideHeightDomain(t *testing.T) {
	m := Default() // height domain is [0, 0]
	if f := m.Flux(100, 45, 10); f.Value != 0 {
		t.Errorf("flux above height domain: got %v, want 0", f.Value)
	}
	if f := m.Flux(-1, 45, 10); f.Value != 0 {
		t.Errorf("flux below height domain: got %v, want 0", f.Value)
	}
}

func TestOpenSkyChargeAsymmetryConstant(t *testing.T) {
	m := Default()
	want := (ChargeRatio - 1.0) / (ChargeRatio + 1.0)
	f := m.Flux(0, 30, 5)
	if math.Abs(f.Asymmetry-want) > 1e-12 {
		t.Errorf("asymmetry: got %v, want %v", f.Asymmetry, want)
	}
}

func TestCosThetaStarNearVertical(t *testing.T) {
	// The Earth curvature correction is small for vertical tracks.
	if cs := cosThetaStar(1.0); math.Abs(cs-1.0) > 0.02 {
		t.Errorf("cos(theta*) at cos(theta)=1: %v", cs)
	}
	if cs := cosThetaStar(0.0); cs <= 0 {
		t.Errorf("cos(theta*) at the horizon: %v", cs)
	}
}
