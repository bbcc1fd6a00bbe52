package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/san-kum/muflux/internal/dem"
	"github.com/san-kum/muflux/internal/fluxmeter"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Mode != DefaultMode {
		t.Errorf("Mode = %s, want %s", cfg.Mode, DefaultMode)
	}
	if cfg.Energy != DefaultEnergy {
		t.Errorf("Energy = %g, want %g", cfg.Energy, DefaultEnergy)
	}
	if cfg.Direction.Elevation != DefaultElevation {
		t.Errorf("Elevation = %g, want %g", cfg.Direction.Elevation, DefaultElevation)
	}
	if cfg.Scan.Azimuths == 0 || cfg.Scan.Elevations == 0 {
		t.Error("default scan grid is empty")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenario.yaml")

	cfg := DefaultConfig()
	cfg.Mode = "mixed"
	cfg.Seed = 7
	cfg.Observer = ObserverConfig{Latitude: 45.5, Longitude: 2.75, Height: -120}
	cfg.Layers = []LayerConfig{
		{Material: "Rock", Offset: 0},
		{Material: "Water", Offset: -30, Density: 1030},
	}

	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if loaded.Mode != "mixed" || loaded.Seed != 7 {
		t.Errorf("loaded mode %s seed %d", loaded.Mode, loaded.Seed)
	}
	if loaded.Observer.Height != -120 {
		t.Errorf("observer height = %g, want -120", loaded.Observer.Height)
	}
	if len(loaded.Layers) != 2 || loaded.Layers[1].Density != 1030 {
		t.Errorf("layers = %+v", loaded.Layers)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "minimal.yaml")
	minimal := "observer:\n  latitude: 10\n"
	if err := os.WriteFile(path, []byte(minimal), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Observer.Latitude != 10 {
		t.Errorf("latitude = %g, want 10", loaded.Observer.Latitude)
	}
	if loaded.Scan.Azimuths == 0 {
		t.Error("scan grid not defaulted")
	}
	if loaded.Mode != DefaultMode {
		t.Errorf("mode = %s, want %s", loaded.Mode, DefaultMode)
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		name    string
		want    fluxmeter.Mode
		wantErr bool
	}{
		{"csda", fluxmeter.CSDA, false},
		{"", fluxmeter.CSDA, false},
		{"mixed", fluxmeter.Mixed, false},
		{"detailed", fluxmeter.Detailed, false},
		{"bogus", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMode(tt.name)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseMode: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBuildFromPreset(t *testing.T) {
	cfg := GetPreset("water-table")
	if cfg == nil {
		t.Fatal("missing preset")
	}
	meter, err := cfg.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if meter.Geometry.Size() != 2 {
		t.Errorf("geometry size = %d, want 2", meter.Geometry.Size())
	}
	if meter.Mode != fluxmeter.CSDA {
		t.Errorf("mode = %v, want CSDA", meter.Mode)
	}
}

func TestBuildWithTerrainModel(t *testing.T) {
	model, err := dem.New(dem.Geographic{}, 2, 2, 2.0, 4.0, 44.0, 46.0,
		[]float64{10, 12, 14, 16})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	path := filepath.Join(t.TempDir(), "terrain.dem")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := model.Write(f); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	cfg := DefaultConfig()
	cfg.Layers = []LayerConfig{{Material: "Rock", Model: path}}
	meter, err := cfg.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if meter.Geometry.Size() != 1 {
		t.Errorf("geometry size = %d, want 1", meter.Geometry.Size())
	}
}

func TestBuildRejectsBadMaterial(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Layers = []LayerConfig{{Material: "Unobtainium"}}
	if _, err := cfg.Build(); err == nil {
		t.Fatal("expected error for unknown material")
	}
}

func TestPresetLayersBottomUp(t *testing.T) {
	// Layers are listed bottom-up, so surface offsets must not
	// decrease within a preset.
	for name, cfg := range Presets {
		t.Run(name, func(t *testing.T) {
			for i := 1; i < len(cfg.Layers); i++ {
				lo, hi := cfg.Layers[i-1], cfg.Layers[i]
				if hi.Offset < lo.Offset {
					t.Errorf("layer %s at %g below layer %s at %g",
						hi.Material, hi.Offset, lo.Material, lo.Offset)
				}
			}
		})
	}
}

func TestGetPresetNotFound(t *testing.T) {
	if GetPreset("nope") != nil {
		t.Error("expected nil for unknown preset")
	}
}

func TestListPresets(t *testing.T) {
	names := ListPresets()
	if len(names) == 0 {
		t.Fatal("no presets")
	}
	seen := map[string]bool{}
	for _, n := range names {
		seen[n] = true
	}
	for _, want := range []string{"opensky", "rock-shield", "water-table", "geomagnetic"} {
		if !seen[want] {
			t.Errorf("missing preset %s", want)
		}
	}
}
