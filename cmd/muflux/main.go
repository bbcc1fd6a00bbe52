package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/san-kum/muflux/internal/config"
	"github.com/san-kum/muflux/internal/export"
	"github.com/san-kum/muflux/internal/fluxmeter"
	"github.com/san-kum/muflux/internal/geo"
	"github.com/san-kum/muflux/internal/render"
	"github.com/san-kum/muflux/internal/scan"
	"github.com/san-kum/muflux/internal/storage"
	"github.com/san-kum/muflux/internal/transport"
	"github.com/san-kum/muflux/internal/tui"
)

var (
	dataDir    string
	configFile string
	preset     string
	mode       string
	accuracy   float64
	seed       uint64
	// observation
	latitude  float64
	longitude float64
	height    float64
	azimuth   float64
	elevation float64
	energy    float64
	pidName   string
	// geomagnetic field
	geomagnetOn   bool
	geomagnetYear int
	// scan raster
	azimuths   int
	elevations int
	label      string
	live       bool
	workers    int
	themeName  string
	// spectrum
	energyMin float64
	energyMax float64
	samples   int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "muflux",
		Short: "muon flux engine for layered geometries",
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".muflux", "data directory")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "scenario file (yaml)")
	rootCmd.PersistentFlags().StringVar(&preset, "preset", "", "scenario preset")
	rootCmd.PersistentFlags().StringVar(&mode, "mode", "", "energy loss scheme: csda, mixed, detailed")
	rootCmd.PersistentFlags().Float64Var(&accuracy, "accuracy", 0, "transport accuracy")
	rootCmd.PersistentFlags().Uint64Var(&seed, "seed", 0, "random seed (0 picks one)")
	rootCmd.PersistentFlags().Float64Var(&latitude, "latitude", 0, "observer latitude, deg")
	rootCmd.PersistentFlags().Float64Var(&longitude, "longitude", 0, "observer longitude, deg")
	rootCmd.PersistentFlags().Float64Var(&height, "height", 0, "observer height, m")
	rootCmd.PersistentFlags().BoolVar(&geomagnetOn, "geomagnet", false, "enable the geomagnetic field")
	rootCmd.PersistentFlags().IntVar(&geomagnetYear, "year", 2020, "geomagnetic field epoch")

	fluxCmd := &cobra.Command{
		Use:   "flux",
		Short: "compute the flux for one observation state",
		RunE:  runFlux,
	}
	addObservationFlags(fluxCmd)

	transportCmd := &cobra.Command{
		Use:   "transport",
		Short: "transport an observation state to the reference height",
		RunE:  runTransport,
	}
	addObservationFlags(transportCmd)

	intersectCmd := &cobra.Command{
		Use:   "intersect",
		Short: "first layer crossed along a line of sight",
		RunE:  runIntersect,
	}
	addDirectionFlags(intersectCmd)

	grammageCmd := &cobra.Command{
		Use:   "grammage",
		Short: "column depth along a line of sight, per layer",
		RunE:  runGrammage,
	}
	addDirectionFlags(grammageCmd)

	whereamiCmd := &cobra.Command{
		Use:   "whereami",
		Short: "layer containing the observer",
		RunE:  runWhereAmI,
	}

	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "raster the flux over a grid of directions",
		RunE:  runScan,
	}
	scanCmd.Flags().Float64Var(&energy, "energy", 0, "kinetic energy, GeV")
	scanCmd.Flags().StringVar(&pidName, "pid", "either", "muon, antimuon or either")
	scanCmd.Flags().IntVar(&azimuths, "azimuths", 0, "azimuth samples")
	scanCmd.Flags().IntVar(&elevations, "elevations", 0, "elevation samples")
	scanCmd.Flags().StringVar(&label, "label", "scan", "run label")
	scanCmd.Flags().BoolVar(&live, "live", false, "show live progress")
	scanCmd.Flags().IntVar(&workers, "workers", 0, "worker count (0 = all CPUs)")
	scanCmd.Flags().StringVar(&themeName, "theme", "inferno", "sky map theme")

	spectrumCmd := &cobra.Command{
		Use:   "spectrum",
		Short: "flux against energy at a fixed direction",
		RunE:  runSpectrum,
	}
	addDirectionFlags(spectrumCmd)
	spectrumCmd.Flags().StringVar(&pidName, "pid", "either", "muon, antimuon or either")
	spectrumCmd.Flags().Float64Var(&energyMin, "energy-min", 1e-1, "lowest energy, GeV")
	spectrumCmd.Flags().Float64Var(&energyMax, "energy-max", 1e3, "highest energy, GeV")
	spectrumCmd.Flags().IntVar(&samples, "samples", 41, "energy samples")
	spectrumCmd.Flags().IntVar(&workers, "workers", 0, "worker count (0 = all CPUs)")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		RunE:  listRuns,
	}

	showCmd := &cobra.Command{
		Use:   "show [run_id]",
		Short: "render a stored sky map",
		Args:  cobra.ExactArgs(1),
		RunE:  showRun,
	}
	showCmd.Flags().StringVar(&themeName, "theme", "inferno", "sky map theme")

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export a run as JSON to stdout",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}

	exportSVGCmd := &cobra.Command{
		Use:   "export-svg [run_id] [file]",
		Short: "export a run as an SVG heat map",
		Args:  cobra.ExactArgs(2),
		RunE:  exportSVG,
	}

	materialsCmd := &cobra.Command{
		Use:   "materials",
		Short: "list the registered materials",
		RunE:  listMaterials,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list the scenario presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range config.ListPresets() {
				fmt.Println(name)
			}
			return nil
		},
	}

	rootCmd.AddCommand(fluxCmd, transportCmd, intersectCmd, grammageCmd,
		whereamiCmd, scanCmd, spectrumCmd, listCmd, showCmd, exportCmd,
		exportSVGCmd, materialsCmd, presetsCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func addDirectionFlags(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&azimuth, "azimuth", 0, "azimuth, deg clockwise from North")
	cmd.Flags().Float64Var(&elevation, "elevation", 0, "elevation above the horizontal, deg")
}

func addObservationFlags(cmd *cobra.Command) {
	addDirectionFlags(cmd)
	cmd.Flags().Float64Var(&energy, "energy", 0, "kinetic energy, GeV")
	cmd.Flags().StringVar(&pidName, "pid", "either", "muon, antimuon or either")
}

// scenario resolves preset, config file and flag overrides, in that
// order of increasing precedence.
func scenario(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if preset != "" {
		p := config.GetPreset(preset)
		if p == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
		cfg = p
	}
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load scenario: %w", err)
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("mode") {
		cfg.Mode = mode
	}
	if flags.Changed("accuracy") {
		cfg.Accuracy = accuracy
	}
	if flags.Changed("seed") {
		cfg.Seed = seed
	}
	if flags.Changed("latitude") {
		cfg.Observer.Latitude = latitude
	}
	if flags.Changed("longitude") {
		cfg.Observer.Longitude = longitude
	}
	if flags.Changed("height") {
		cfg.Observer.Height = height
	}
	if flags.Changed("azimuth") {
		cfg.Direction.Azimuth = azimuth
	}
	if flags.Changed("elevation") {
		cfg.Direction.Elevation = elevation
	}
	if flags.Changed("energy") {
		cfg.Energy = energy
	}
	if flags.Changed("geomagnet") {
		cfg.Geomagnet.Enabled = geomagnetOn
	}
	if flags.Changed("year") {
		cfg.Geomagnet.Year = geomagnetYear
	}
	if flags.Changed("azimuths") {
		cfg.Scan.Azimuths = azimuths
	}
	if flags.Changed("elevations") {
		cfg.Scan.Elevations = elevations
	}
	return cfg, nil
}

func parsePID(name string) (fluxmeter.PID, error) {
	switch name {
	case "muon":
		return fluxmeter.Muon, nil
	case "antimuon":
		return fluxmeter.Antimuon, nil
	case "either", "":
		return fluxmeter.Either, nil
	}
	return 0, fmt.Errorf("unknown pid: %s", name)
}

func observation(cfg *config.Config) (fluxmeter.State, error) {
	pid, err := parsePID(pidName)
	if err != nil {
		return fluxmeter.State{}, err
	}
	return fluxmeter.State{
		PID: pid,
		Position: geo.Position{
			Latitude:  cfg.Observer.Latitude,
			Longitude: cfg.Observer.Longitude,
			Height:    cfg.Observer.Height,
		},
		Direction: geo.Direction{
			Azimuth:   cfg.Direction.Azimuth,
			Elevation: cfg.Direction.Elevation,
		},
		Energy: cfg.Energy,
		Weight: 1,
	}, nil
}

func runFlux(cmd *cobra.Command, args []string) error {
	cfg, err := scenario(cmd)
	if err != nil {
		return err
	}
	meter, err := cfg.Build()
	if err != nil {
		return err
	}
	state, err := observation(cfg)
	if err != nil {
		return err
	}

	flux, err := meter.Flux(state)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "energy\t%g GeV\n", state.Energy)
	fmt.Fprintf(w, "azimuth\t%g deg\n", state.Direction.Azimuth)
	fmt.Fprintf(w, "elevation\t%g deg\n", state.Direction.Elevation)
	fmt.Fprintf(w, "flux\t%.6e /GeV/m2/s/sr\n", flux.Value)
	fmt.Fprintf(w, "asymmetry\t%.4f\n", flux.Asymmetry)
	return w.Flush()
}

func runTransport(cmd *cobra.Command, args []string) error {
	cfg, err := scenario(cmd)
	if err != nil {
		return err
	}
	meter, err := cfg.Build()
	if err != nil {
		return err
	}
	state, err := observation(cfg)
	if err != nil {
		return err
	}

	final, err := meter.Transport(state)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "pid\t%s\n", final.PID)
	fmt.Fprintf(w, "latitude\t%.6f deg\n", final.Position.Latitude)
	fmt.Fprintf(w, "longitude\t%.6f deg\n", final.Position.Longitude)
	fmt.Fprintf(w, "height\t%.3f m\n", final.Position.Height)
	fmt.Fprintf(w, "azimuth\t%.3f deg\n", final.Direction.Azimuth)
	fmt.Fprintf(w, "elevation\t%.3f deg\n", final.Direction.Elevation)
	fmt.Fprintf(w, "energy\t%.6g GeV\n", final.Energy)
	fmt.Fprintf(w, "weight\t%.6e\n", final.Weight)
	return w.Flush()
}

func runIntersect(cmd *cobra.Command, args []string) error {
	cfg, err := scenario(cmd)
	if err != nil {
		return err
	}
	meter, err := cfg.Build()
	if err != nil {
		return err
	}

	position := geo.Position{Latitude: cfg.Observer.Latitude, Longitude: cfg.Observer.Longitude, Height: cfg.Observer.Height}
	direction := geo.Direction{Azimuth: cfg.Direction.Azimuth, Elevation: cfg.Direction.Elevation}
	hit := meter.Intersect(position, direction)

	if hit.Layer < 0 {
		fmt.Println("no layer crossed")
		return nil
	}
	layer := meter.Geometry.Layers[hit.Layer]
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "layer\t%d (%s)\n", hit.Layer, layer.Material().Name)
	fmt.Fprintf(w, "latitude\t%.6f deg\n", hit.Position.Latitude)
	fmt.Fprintf(w, "longitude\t%.6f deg\n", hit.Position.Longitude)
	fmt.Fprintf(w, "height\t%.3f m\n", hit.Position.Height)
	return w.Flush()
}

func runGrammage(cmd *cobra.Command, args []string) error {
	cfg, err := scenario(cmd)
	if err != nil {
		return err
	}
	meter, err := cfg.Build()
	if err != nil {
		return err
	}

	position := geo.Position{Latitude: cfg.Observer.Latitude, Longitude: cfg.Observer.Longitude, Height: cfg.Observer.Height}
	direction := geo.Direction{Azimuth: cfg.Direction.Azimuth, Elevation: cfg.Direction.Elevation}
	total, perLayer := meter.Grammage(position, direction)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "LAYER\tMATERIAL\tGRAMMAGE (kg/m2)")
	for i, g := range perLayer {
		name := "Atmosphere"
		if i < meter.Geometry.Size() {
			name = meter.Geometry.Layers[i].Material().Name
		}
		fmt.Fprintf(w, "%d\t%s\t%.6e\n", i, name, g)
	}
	fmt.Fprintf(w, "\ttotal\t%.6e\n", total)
	return w.Flush()
}

func runWhereAmI(cmd *cobra.Command, args []string) error {
	cfg, err := scenario(cmd)
	if err != nil {
		return err
	}
	meter, err := cfg.Build()
	if err != nil {
		return err
	}

	index := meter.WhereAmI(geo.Position{
		Latitude:  cfg.Observer.Latitude,
		Longitude: cfg.Observer.Longitude,
		Height:    cfg.Observer.Height,
	})
	switch {
	case index < 0:
		fmt.Println("outside the geometry")
	case index < meter.Geometry.Size():
		fmt.Printf("layer %d (%s)\n", index, meter.Geometry.Layers[index].Material().Name)
	default:
		fmt.Println("atmosphere")
	}
	return nil
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := scenario(cmd)
	if err != nil {
		return err
	}
	meter, err := cfg.Build()
	if err != nil {
		return err
	}
	pid, err := parsePID(pidName)
	if err != nil {
		return err
	}

	position := geo.Position{Latitude: cfg.Observer.Latitude, Longitude: cfg.Observer.Longitude, Height: cfg.Observer.Height}
	grid := scan.Grid{
		AzimuthMin: cfg.Scan.AzimuthMin, AzimuthMax: cfg.Scan.AzimuthMax,
		Azimuths:     cfg.Scan.Azimuths,
		ElevationMin: cfg.Scan.ElevationMin, ElevationMax: cfg.Scan.ElevationMax,
		Elevations: cfg.Scan.Elevations,
	}
	scanner := scan.New(meter, workers)

	start := time.Now()
	var result *scan.Map
	if live {
		result, err = tui.Run(scanner, label, position, cfg.Energy, pid, grid, cfg.Seed, render.GetTheme(themeName))
		if result == nil && err == nil {
			return nil // aborted
		}
	} else {
		result, err = scanner.Scan(position, cfg.Energy, pid, grid, cfg.Seed)
	}
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}
	runID, err := st.Save(storage.RunMetadata{
		Label:    label,
		Mode:     cfg.Mode,
		Seed:     cfg.Seed,
		Observer: position,
		Elapsed:  elapsed.Seconds(),
	}, result)
	if err != nil {
		return err
	}

	if !live {
		fmt.Println(render.SkyMap(result, render.GetTheme(themeName)))
	}
	fmt.Printf("\ncompleted in %v\n", elapsed.Truncate(time.Millisecond))
	fmt.Printf("run id: %s\n", runID)
	return nil
}

func runSpectrum(cmd *cobra.Command, args []string) error {
	cfg, err := scenario(cmd)
	if err != nil {
		return err
	}
	meter, err := cfg.Build()
	if err != nil {
		return err
	}
	pid, err := parsePID(pidName)
	if err != nil {
		return err
	}

	energies := scan.LogEnergies(energyMin, energyMax, samples)
	scanner := scan.New(meter, workers)
	fluxes, err := scanner.Spectrum(
		geo.Position{Latitude: cfg.Observer.Latitude, Longitude: cfg.Observer.Longitude, Height: cfg.Observer.Height},
		geo.Direction{Azimuth: cfg.Direction.Azimuth, Elevation: cfg.Direction.Elevation},
		pid, energies, cfg.Seed,
	)
	if err != nil {
		return err
	}

	values := make([]float64, len(fluxes))
	for i, f := range fluxes {
		values[i] = f.Value
	}
	fmt.Println(render.Spectrum(energies, values, 15, 80))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\nENERGY (GeV)\tFLUX (/GeV/m2/s/sr)\tASYMMETRY")
	for i, f := range fluxes {
		fmt.Fprintf(w, "%.4g\t%.6e\t%.4f\n", energies[i], f.Value, f.Asymmetry)
	}
	return w.Flush()
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTIME\tMODE\tENERGY\tCELLS\tELAPSED")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%g GeV\t%d\t%.1fs\n",
			run.ID,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Mode,
			run.Energy,
			run.Grid.Cells(),
			run.Elapsed,
		)
	}
	return w.Flush()
}

func showRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	m, err := st.LoadMap(args[0])
	if err != nil {
		return err
	}
	fmt.Println(render.SkyMap(m, render.GetTheme(themeName)))
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	m, err := st.LoadMap(args[0])
	if err != nil {
		return err
	}
	return storage.ExportJSON(os.Stdout, meta, m)
}

func exportSVG(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	m, err := st.LoadMap(args[0])
	if err != nil {
		return err
	}
	svg := export.MapToSVG(m, 12)
	if err := os.WriteFile(args[1], []byte(svg), 0644); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", args[1])
	return nil
}

func listMaterials(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tA (GeV m2/kg)\tB (m2/kg)\tX0 (kg/m2)\tZ/A\tDENSITY (kg/m3)")
	for _, m := range transport.Materials() {
		fmt.Fprintf(w, "%s\t%.3e\t%.3e\t%.1f\t%.5f\t%.0f\n",
			m.Name, m.A, m.B, m.X0, m.ZA, m.Density)
	}
	return w.Flush()
}
