package config

import "sort"

// Presets are ready-made observation scenarios.
var Presets = map[string]*Config{
	"opensky": {
		Mode: "csda", Accuracy: DefaultAccuracy, Energy: 10,
		Observer:  ObserverConfig{Latitude: 45.0, Longitude: 3.0, Height: 0},
		Direction: DirectionConfig{Azimuth: 0, Elevation: 90},
		Scan: ScanConfig{
			AzimuthMin: 0, AzimuthMax: 360, Azimuths: 73,
			ElevationMin: 0, ElevationMax: 90, Elevations: 19,
		},
	},
	"rock-shield": {
		Mode: "csda", Accuracy: DefaultAccuracy, Energy: 10,
		Observer:  ObserverConfig{Latitude: 45.0, Longitude: 3.0, Height: -100},
		Direction: DirectionConfig{Azimuth: 0, Elevation: 90},
		Layers:    []LayerConfig{{Material: "Rock", Offset: 0}},
		Scan: ScanConfig{
			AzimuthMin: 0, AzimuthMax: 360, Azimuths: 37,
			ElevationMin: 10, ElevationMax: 90, Elevations: 9,
		},
	},
	"water-table": {
		Mode: "csda", Accuracy: DefaultAccuracy, Energy: 5,
		Observer:  ObserverConfig{Latitude: 45.0, Longitude: 3.0, Height: -40},
		Direction: DirectionConfig{Azimuth: 0, Elevation: 90},
		Layers: []LayerConfig{
			{Material: "Water", Offset: -30},
			{Material: "Rock", Offset: 0},
		},
		Scan: ScanConfig{
			AzimuthMin: 0, AzimuthMax: 360, Azimuths: 37,
			ElevationMin: 30, ElevationMax: 90, Elevations: 7,
		},
	},
	"geomagnetic": {
		Mode: "csda", Accuracy: DefaultAccuracy, Energy: 2,
		Observer:  ObserverConfig{Latitude: 45.0, Longitude: 3.0, Height: 0},
		Direction: DirectionConfig{Azimuth: 90, Elevation: 30},
		Geomagnet: GeomagnetConfig{Enabled: true, Day: 1, Month: 1, Year: 2020},
		Scan: ScanConfig{
			AzimuthMin: 0, AzimuthMax: 360, Azimuths: 37,
			ElevationMin: 10, ElevationMax: 90, Elevations: 9,
		},
	},
}

func GetPreset(name string) *Config {
	return Presets[name]
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
