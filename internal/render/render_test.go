package render

import (
	"strings"
	"testing"

	"github.com/san-kum/muflux/internal/scan"
)

func testMap() *scan.Map {
	grid := scan.Grid{
		AzimuthMin: 0, AzimuthMax: 180, Azimuths: 10,
		ElevationMin: 0, ElevationMax: 90, Elevations: 4,
	}
	m := scan.NewMap(grid, 10)
	for j := 0; j < grid.Elevations; j++ {
		for i := 0; i < grid.Azimuths; i++ {
			// spans several decades, brightest at the zenith row
			m.Values[j*grid.Azimuths+i] = 1e-6 * float64(uint(1)<<uint(j*3+i/4))
		}
	}
	return m
}

func TestCanvasSetAndString(t *testing.T) {
	c := NewCanvas(4, 2)
	c.Set(0, 0)
	c.Set(7, 7)
	out := c.String()
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if lines[0][:3] == "⠀" {
		t.Error("first cell not lit")
	}
	c.Clear()
	for _, row := range c.Grid {
		for _, r := range row {
			if r != 0x2800 {
				t.Fatal("Clear left pixels set")
			}
		}
	}
}

func TestCanvasBounds(t *testing.T) {
	c := NewCanvas(2, 2)
	// out-of-range coordinates must be ignored
	c.Set(-1, 0)
	c.Set(0, -4)
	c.Set(100, 0)
	c.Set(0, 100)
	for _, row := range c.Grid {
		for _, r := range row {
			if r != 0x2800 {
				t.Fatal("out-of-range Set modified the canvas")
			}
		}
	}
}

func TestDrawProfile(t *testing.T) {
	c := NewCanvas(20, 5)
	c.DrawProfile([]float64{0, 1, 4, 9, 16, 9, 4, 1, 0})
	lit := 0
	for _, row := range c.Grid {
		for _, r := range row {
			if r != 0x2800 {
				lit++
			}
		}
	}
	if lit == 0 {
		t.Error("profile drew nothing")
	}
}

func TestSkyMapOutput(t *testing.T) {
	out := SkyMap(testMap(), ThemeMinimal)
	if !strings.Contains(out, "flux at 10 GeV") {
		t.Error("missing header")
	}
	if !strings.Contains(out, "90.0") {
		t.Error("missing top elevation label")
	}
	if !strings.Contains(out, "█") {
		t.Error("missing bright cells")
	}
	if !strings.Contains(out, "range") {
		t.Error("missing legend")
	}
}

func TestFluxScale(t *testing.T) {
	s := newFluxScale(1e-6, 1e-2)
	tests := []struct {
		name string
		v    float64
		want float64
	}{
		{"bottom", 1e-6, 0},
		{"top", 1e-2, 1},
		{"middle", 1e-4, 0.5},
		{"below", 1e-9, 0},
		{"zero", 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.normalize(tt.v)
			if diff := got - tt.want; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("normalize(%g) = %g, want %g", tt.v, got, tt.want)
			}
		})
	}
}

func TestFlatScale(t *testing.T) {
	s := newFluxScale(2e-3, 2e-3)
	if got := s.normalize(2e-3); got != 1 {
		t.Errorf("flat normalize = %g, want 1", got)
	}
}

func TestSpectrumPlot(t *testing.T) {
	energies := []float64{1, 10, 100}
	values := []float64{1e-1, 1e-3, 1e-6}
	out := Spectrum(energies, values, 5, 30)
	if !strings.Contains(out, "log10 flux") {
		t.Error("missing caption")
	}
}

func TestElevationProfilePlot(t *testing.T) {
	out := ElevationProfile(testMap(), 0, 4, 20)
	if !strings.Contains(out, "azimuth 0") {
		t.Error("missing caption")
	}
}

func TestThemes(t *testing.T) {
	if GetTheme("retro").Name != "retro" {
		t.Error("GetTheme retro")
	}
	if GetTheme("nope").Name != ThemeInferno.Name {
		t.Error("fallback theme")
	}
	names := ThemeNames()
	if len(names) != len(Themes) {
		t.Errorf("ThemeNames = %v", names)
	}
	SetTheme("minimal")
	if CurrentTheme.Name != "minimal" {
		t.Error("SetTheme")
	}
	SetTheme("inferno")
}
