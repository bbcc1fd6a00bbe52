// Package config loads and saves observation scenarios: the observer
// site, the layered geometry, the reference flux, and the scan raster.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/muflux/internal/atmosphere"
	"github.com/san-kum/muflux/internal/dem"
	"github.com/san-kum/muflux/internal/fluxmeter"
	"github.com/san-kum/muflux/internal/geomagnet"
	"github.com/san-kum/muflux/internal/reference"
)

const (
	DefaultMode      = "csda"
	DefaultAccuracy  = 1e-2
	DefaultEnergy    = 10.0
	DefaultAzimuth   = 0.0
	DefaultElevation = 90.0
)

type Config struct {
	Mode      string          `yaml:"mode"`
	Accuracy  float64         `yaml:"accuracy"`
	Seed      uint64          `yaml:"seed"`
	Energy    float64         `yaml:"energy"`
	Observer  ObserverConfig  `yaml:"observer"`
	Direction DirectionConfig `yaml:"direction"`
	Layers    []LayerConfig   `yaml:"layers"`
	Reference ReferenceConfig `yaml:"reference"`
	Geomagnet GeomagnetConfig `yaml:"geomagnet"`
	Scan      ScanConfig      `yaml:"scan"`
}

type ObserverConfig struct {
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
	Height    float64 `yaml:"height"`
}

type DirectionConfig struct {
	Azimuth   float64 `yaml:"azimuth"`
	Elevation float64 `yaml:"elevation"`
}

type LayerConfig struct {
	Material string  `yaml:"material"`
	Model    string  `yaml:"model"`
	Offset   float64 `yaml:"offset"`
	Density  float64 `yaml:"density"`
}

type ReferenceConfig struct {
	Table string `yaml:"table"`
}

type GeomagnetConfig struct {
	Enabled bool `yaml:"enabled"`
	Day     int  `yaml:"day"`
	Month   int  `yaml:"month"`
	Year    int  `yaml:"year"`
}

type ScanConfig struct {
	AzimuthMin   float64 `yaml:"azimuth_min"`
	AzimuthMax   float64 `yaml:"azimuth_max"`
	Azimuths     int     `yaml:"azimuths"`
	ElevationMin float64 `yaml:"elevation_min"`
	ElevationMax float64 `yaml:"elevation_max"`
	Elevations   int     `yaml:"elevations"`
}

func DefaultConfig() *Config {
	return &Config{
		Mode:     DefaultMode,
		Accuracy: DefaultAccuracy,
		Energy:   DefaultEnergy,
		Direction: DirectionConfig{
			Azimuth:   DefaultAzimuth,
			Elevation: DefaultElevation,
		},
		Geomagnet: GeomagnetConfig{Day: 1, Month: 1, Year: 2020},
		Scan: ScanConfig{
			AzimuthMin: 0, AzimuthMax: 360, Azimuths: 73,
			ElevationMin: 0, ElevationMax: 90, Elevations: 19,
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ParseMode maps the scheme name to a fluxmeter mode.
func ParseMode(name string) (fluxmeter.Mode, error) {
	switch name {
	case "csda", "":
		return fluxmeter.CSDA, nil
	case "mixed":
		return fluxmeter.Mixed, nil
	case "detailed":
		return fluxmeter.Detailed, nil
	}
	return 0, fmt.Errorf("unknown mode: %s", name)
}

// Build assembles a fluxmeter from the scenario. Terrain models and
// flux tables are loaded from the referenced files.
func (c *Config) Build() (*fluxmeter.Fluxmeter, error) {
	mode, err := ParseMode(c.Mode)
	if err != nil {
		return nil, err
	}

	layers := make([]*fluxmeter.Layer, 0, len(c.Layers))
	for _, lc := range c.Layers {
		var model *dem.Map
		if lc.Model != "" {
			model, err = dem.Load(lc.Model, dem.Geographic{})
			if err != nil {
				return nil, fmt.Errorf("layer %s: %w", lc.Material, err)
			}
		}
		layer, err := fluxmeter.NewLayer(lc.Material, model, lc.Offset)
		if err != nil {
			return nil, err
		}
		if lc.Density > 0 {
			layer.Density = lc.Density
		}
		layers = append(layers, layer)
	}

	geometry := fluxmeter.NewGeometry(layers...)
	if c.Geomagnet.Enabled {
		snapshot, err := geomagnet.NewSnapshot(c.Geomagnet.Day, c.Geomagnet.Month, c.Geomagnet.Year)
		if err != nil {
			return nil, err
		}
		geometry.Geomagnet = snapshot
	}

	meter := fluxmeter.New(geometry)
	meter.Mode = mode
	meter.Atmosphere = atmosphere.USStandard{}
	if c.Accuracy > 0 {
		meter.Accuracy = c.Accuracy
	}
	if c.Reference.Table != "" {
		table, err := reference.LoadTable(c.Reference.Table)
		if err != nil {
			return nil, err
		}
		meter.Reference = table
	}
	meter.Random = fluxmeter.NewRandomStream(c.Seed)
	return meter, nil
}
