// Package storage persists scan runs: a metadata.json per run plus a
// flux.csv raster, under a common base directory.
package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/san-kum/muflux/internal/geo"
	"github.com/san-kum/muflux/internal/scan"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID        string       `json:"id"`
	Label     string       `json:"label"`
	Timestamp time.Time    `json:"timestamp"`
	Mode      string       `json:"mode"`
	Seed      uint64       `json:"seed"`
	Energy    float64      `json:"energy"`
	Observer  geo.Position `json:"observer"`
	Grid      scan.Grid    `json:"grid"`
	Elapsed   float64      `json:"elapsed_s"`
}

// Save writes a completed scan under a fresh run directory and
// returns the run id.
func (s *Store) Save(meta RunMetadata, m *scan.Map) (string, error) {
	runID := fmt.Sprintf("%s_%d", meta.Label, time.Now().Unix())
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta.ID = runID
	meta.Timestamp = time.Now()
	meta.Energy = m.Energy
	meta.Grid = m.Grid

	metaFile, err := os.Create(filepath.Join(runDir, "metadata.json"))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	csvFile, err := os.Create(filepath.Join(runDir, "flux.csv"))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	if err := writeMap(csvFile, m); err != nil {
		return "", err
	}
	return runID, nil
}

func writeMap(w io.Writer, m *scan.Map) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write([]string{"azimuth", "elevation", "flux", "asymmetry"}); err != nil {
		return err
	}
	for j := 0; j < m.Elevations; j++ {
		for i := 0; i < m.Azimuths; i++ {
			f := m.At(i, j)
			row := []string{
				strconv.FormatFloat(m.Azimuth(i), 'f', 3, 64),
				strconv.FormatFloat(m.Elevation(j), 'f', 3, 64),
				strconv.FormatFloat(f.Value, 'e', 6, 64),
				strconv.FormatFloat(f.Asymmetry, 'f', 6, 64),
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}
	return cw.Error()
}

// List returns the metadata of every stored run.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, "metadata.json"))
	if err != nil {
		return nil, err
	}
	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// LoadMap rebuilds the flux raster of a stored run.
func (s *Store) LoadMap(runID string) (*scan.Map, error) {
	meta, err := s.Load(runID)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(filepath.Join(s.baseDir, runID, "flux.csv"))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 1 {
		return nil, fmt.Errorf("storage: empty flux table in %s", runID)
	}

	m := scan.NewMap(meta.Grid, meta.Energy)
	records = records[1:]
	if len(records) != m.Cells() {
		return nil, fmt.Errorf("storage: %s has %d samples, grid wants %d",
			runID, len(records), m.Cells())
	}
	for k, record := range records {
		if len(record) < 4 {
			return nil, fmt.Errorf("storage: short row %d in %s", k+1, runID)
		}
		if m.Values[k], err = strconv.ParseFloat(record[2], 64); err != nil {
			return nil, err
		}
		if m.Asymmetries[k], err = strconv.ParseFloat(record[3], 64); err != nil {
			return nil, err
		}
	}
	return m, nil
}

type ExportData struct {
	RunMetadata
	Azimuths    []float64 `json:"azimuths"`
	Elevations  []float64 `json:"elevations"`
	Values      []float64 `json:"values"`
	Asymmetries []float64 `json:"asymmetries"`
}

// ExportJSON writes a run, raster included, as a single JSON document.
func ExportJSON(w io.Writer, meta *RunMetadata, m *scan.Map) error {
	data := ExportData{
		RunMetadata: *meta,
		Azimuths:    make([]float64, m.Azimuths),
		Elevations:  make([]float64, m.Elevations),
		Values:      m.Values,
		Asymmetries: m.Asymmetries,
	}
	for i := range data.Azimuths {
		data.Azimuths[i] = m.Azimuth(i)
	}
	for j := range data.Elevations {
		data.Elevations[j] = m.Elevation(j)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}
