package fluxmeter

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/san-kum/muflux/internal/geo"
	"github.com/san-kum/muflux/internal/geomagnet"
)

// twoLayers is a flat geometry with rock below a zero-thickness water
// table, both surfaces at 0 m.
func twoLayers(t *testing.T) *Geometry {
	t.Helper()
	rock, err := NewLayer("Rock", nil, 0)
	if err != nil {
		t.Fatalf("NewLayer: %v", err)
	}
	water, err := NewLayer("Water", nil, 0)
	if err != nil {
		t.Fatalf("NewLayer: %v", err)
	}
	return NewGeometry(rock, water)
}

func testFluxmeter(t *testing.T) *Fluxmeter {
	t.Helper()
	f := New(twoLayers(t))
	f.Random = NewRandomStream(42)
	return f
}

func TestIntersectReportsWaterTable(t *testing.T) {
	f := testFluxmeter(t)
	position := geo.Position{Latitude: 45, Longitude: 3, Height: -30}
	direction := geo.Direction{Azimuth: 0, Elevation: 90}

	hit := f.Intersect(position, direction)
	if hit.Layer != 1 {
		t.Fatalf("layer = %d, want 1 (water)", hit.Layer)
	}
	if math.Abs(hit.Position.Height) > 1e-4 {
		t.Errorf("crossing height = %g, want 0 within 1e-4", hit.Position.Height)
	}
}

func TestIntersectMissesLookingDown(t *testing.T) {
	f := testFluxmeter(t)
	position := geo.Position{Latitude: 45, Longitude: 3, Height: -30}
	direction := geo.Direction{Azimuth: 0, Elevation: -90}

	if hit := f.Intersect(position, direction); hit.Layer != -1 {
		t.Errorf("layer = %d, want -1 below the geometry", hit.Layer)
	}
}

func TestUpwardFluxEither(t *testing.T) {
	f := testFluxmeter(t)
	state := State{
		PID:       Either,
		Position:  geo.Position{Latitude: 45, Longitude: 3, Height: -30},
		Direction: geo.Direction{Azimuth: 0, Elevation: 90},
		Energy:    10,
	}
	flux, err := f.Flux(state)
	if err != nil {
		t.Fatalf("Flux: %v", err)
	}
	if !(flux.Value > 0) || math.IsInf(flux.Value, 0) {
		t.Fatalf("flux = %g, want strictly positive and finite", flux.Value)
	}
	if flux.Asymmetry < -1 || flux.Asymmetry > 1 {
		t.Errorf("asymmetry = %g, want within [-1, 1]", flux.Asymmetry)
	}
}

func TestEitherFluxIsChargeSum(t *testing.T) {
	f := testFluxmeter(t)
	base := State{
		Position:  geo.Position{Latitude: 45, Longitude: 3, Height: -30},
		Direction: geo.Direction{Azimuth: 0, Elevation: 90},
		Energy:    10,
	}

	either := base
	either.PID = Either
	total, err := f.Flux(either)
	if err != nil {
		t.Fatalf("Flux(either): %v", err)
	}

	muon := base
	muon.PID = Muon
	minus, err := f.Flux(muon)
	if err != nil {
		t.Fatalf("Flux(muon): %v", err)
	}
	anti := base
	anti.PID = Antimuon
	plus, err := f.Flux(anti)
	if err != nil {
		t.Fatalf("Flux(antimuon): %v", err)
	}

	sum := minus.Value + plus.Value
	if rel := math.Abs(total.Value-sum) / sum; rel > 1e-9 {
		t.Errorf("flux(either) = %g, want the charge sum %g (rel %g)",
			total.Value, sum, rel)
	}
}

func TestZeroEnergyRejected(t *testing.T) {
	f := testFluxmeter(t)
	var sunk error
	f.Errors = func(err error) { sunk = err }

	state := State{
		PID:       Muon,
		Position:  geo.Position{Latitude: 45, Longitude: 3, Height: -30},
		Direction: geo.Direction{Azimuth: 0, Elevation: 90},
		Energy:    0,
	}
	flux, err := f.Flux(state)
	if flux.Value != 0 || flux.Asymmetry != 0 {
		t.Errorf("flux = %+v, want the zero value", flux)
	}
	if !errors.Is(err, ErrKineticEnergy) {
		t.Fatalf("err = %v, want ErrKineticEnergy", err)
	}
	if sunk == nil || !strings.Contains(sunk.Error(), "kinetic energy") {
		t.Errorf("error sink got %v, want a kinetic energy message", sunk)
	}
}

func TestGrammageAdditivity(t *testing.T) {
	f := testFluxmeter(t)
	position := geo.Position{Latitude: 45, Longitude: 3, Height: -50}
	direction := geo.Direction{Azimuth: 0, Elevation: 90}

	total, perMedium := f.Grammage(position, direction)
	if len(perMedium) != 3 {
		t.Fatalf("per-medium slots = %d, want 3", len(perMedium))
	}
	sum := 0.0
	for _, g := range perMedium {
		sum += g
	}
	if math.Abs(total-sum) > 1e-9*total {
		t.Errorf("total = %g but per-medium sum = %g", total, sum)
	}

	want := 2650.0 * 50.0 // rock column up to the surface
	if rel := math.Abs(perMedium[0]-want) / want; rel > 1e-3 {
		t.Errorf("rock grammage = %g, want %g", perMedium[0], want)
	}
}

func TestWhereAmI(t *testing.T) {
	f := testFluxmeter(t)
	tests := []struct {
		name   string
		height float64
		want   int
	}{
		{"below the geometry", -12e3, -1},
		{"inside rock", -30, 0},
		{"above the surface", 10, 2},
		{"above the atmosphere", 130e3, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := geo.Position{Latitude: 45, Longitude: 3, Height: tt.height}
			if got := f.WhereAmI(p); got != tt.want {
				t.Errorf("WhereAmI(h=%g) = %d, want %d", tt.height, got, tt.want)
			}
		})
	}
}

func TestTransportClimbsToReference(t *testing.T) {
	f := testFluxmeter(t)
	state := State{
		PID:       Muon,
		Position:  geo.Position{Latitude: 45, Longitude: 3, Height: -30},
		Direction: geo.Direction{Azimuth: 0, Elevation: 90},
		Energy:    10,
	}
	result, err := f.Transport(state)
	if err != nil {
		t.Fatalf("Transport: %v", err)
	}
	if result.PID != Muon {
		t.Errorf("pid = %v, want muon", result.PID)
	}
	if math.Abs(result.Position.Height) > 1e-4 {
		t.Errorf("height = %g, want the 0 m reference", result.Position.Height)
	}
	if result.Energy <= state.Energy {
		t.Errorf("energy = %g, want above the observed %g after 30 m of rock",
			result.Energy, state.Energy)
	}
	if !(result.Weight > 0) {
		t.Errorf("weight = %g, want strictly positive", result.Weight)
	}
	if math.Abs(result.Direction.Elevation-90) > 1e-6 {
		t.Errorf("elevation = %g, want 90", result.Direction.Elevation)
	}
}

func TestDetailedModeFlux(t *testing.T) {
	f := testFluxmeter(t)
	f.Mode = Detailed
	state := State{
		PID:       Either,
		Position:  geo.Position{Latitude: 45, Longitude: 3, Height: -10},
		Direction: geo.Direction{Azimuth: 0, Elevation: 90},
		Energy:    5,
	}
	flux, err := f.Flux(state)
	if err != nil {
		t.Fatalf("Flux: %v", err)
	}
	if math.IsNaN(flux.Value) || flux.Value < 0 {
		t.Errorf("flux = %g, want finite and non-negative", flux.Value)
	}
}

func TestGeomagneticEitherFlux(t *testing.T) {
	snapshot, err := geomagnet.NewSnapshot(1, 1, 2020)
	if err != nil {
		t.Fatalf("NewSnapshot: %v", err)
	}
	f := testFluxmeter(t)
	f.Geometry.Geomagnet = snapshot

	state := State{
		PID:       Either,
		Position:  geo.Position{Latitude: 45, Longitude: 3, Height: -30},
		Direction: geo.Direction{Azimuth: 0, Elevation: 90},
		Energy:    10,
	}
	flux, err := f.Flux(state)
	if err != nil {
		t.Fatalf("Flux: %v", err)
	}
	if !(flux.Value > 0) {
		t.Fatalf("flux = %g, want strictly positive", flux.Value)
	}
	if flux.Asymmetry < -1 || flux.Asymmetry > 1 {
		t.Errorf("asymmetry = %g, want within [-1, 1]", flux.Asymmetry)
	}
}

func TestTransportEitherRejectedUnderFieldCSDA(t *testing.T) {
	snapshot, err := geomagnet.NewSnapshot(1, 1, 2020)
	if err != nil {
		t.Fatalf("NewSnapshot: %v", err)
	}
	f := testFluxmeter(t)
	f.Geometry.Geomagnet = snapshot

	state := State{
		PID:       Either,
		Position:  geo.Position{Latitude: 45, Longitude: 3, Height: -30},
		Direction: geo.Direction{Azimuth: 0, Elevation: 90},
		Energy:    10,
	}
	if _, err := f.Transport(state); !errors.Is(err, ErrPID) {
		t.Errorf("err = %v, want ErrPID", err)
	}
}

func TestLayerSurfaceQueries(t *testing.T) {
	rock, err := NewLayer("Rock", nil, 25)
	if err != nil {
		t.Fatalf("NewLayer: %v", err)
	}
	if h := rock.Height(12, 34); h != 25 {
		t.Errorf("flat height = %g, want the 25 m offset", h)
	}
	if gx, gy := rock.Gradient(12, 34); gx != 0 || gy != 0 {
		t.Errorf("flat gradient = (%g, %g), want zero", gx, gy)
	}
	zmin, zmax := rock.HeightRange()
	if zmin != 25 || zmax != 25 {
		t.Errorf("height range = [%g, %g], want [25, 25]", zmin, zmax)
	}

	if _, err := NewLayer("Unobtainium", nil, 0); !errors.Is(err, ErrMaterial) {
		t.Errorf("err = %v, want ErrMaterial", err)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	f := testFluxmeter(t)
	clone := f.Clone(7)
	if clone.Geometry != f.Geometry {
		t.Error("clone must share the geometry")
	}
	if clone.Random == f.Random {
		t.Error("clone must own its random stream")
	}

	state := State{
		PID:       Muon,
		Position:  geo.Position{Latitude: 45, Longitude: 3, Height: -30},
		Direction: geo.Direction{Azimuth: 0, Elevation: 90},
		Energy:    10,
	}
	a, err := f.Flux(state)
	if err != nil {
		t.Fatalf("Flux: %v", err)
	}
	b, err := clone.Flux(state)
	if err != nil {
		t.Fatalf("clone Flux: %v", err)
	}
	if math.Abs(a.Value-b.Value) > 1e-12*a.Value {
		t.Errorf("deterministic flux differs between clone and original: %g vs %g",
			a.Value, b.Value)
	}
}
