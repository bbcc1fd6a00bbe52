// Package fluxmeter computes atmospheric muon fluxes through a layered
// Earth geometry. Observations are transported backward to the top of
// the geometry, then bridged to the reference flux altitude under
// continuous energy loss, folding in decay, detailed-balance and
// charge-asymmetry weights.
package fluxmeter

import (
	"fmt"
	"math"

	"github.com/san-kum/muflux/internal/atmosphere"
	"github.com/san-kum/muflux/internal/geo"
	"github.com/san-kum/muflux/internal/geomagnet"
	"github.com/san-kum/muflux/internal/reference"
	"github.com/san-kum/muflux/internal/stepper"
	"github.com/san-kum/muflux/internal/transport"
)

// Mode selects the physics fidelity of the backward transport.
type Mode int

const (
	// CSDA transports with deterministic continuous energy loss.
	CSDA Mode = iota
	// Mixed adds randomised catastrophic losses.
	Mixed
	// Detailed picks the loss and scattering scheme per kinetic
	// energy band, re-evaluated while the energy climbs.
	Detailed
)

func (m Mode) String() string {
	switch m {
	case CSDA:
		return "csda"
	case Mixed:
		return "mixed"
	case Detailed:
		return "detailed"
	}
	return "unknown"
}

const (
	// altitudeTolerance bounds the altitude error of boundary
	// landings and checkpoint verifications, in m.
	altitudeTolerance = 1e-4
	// magnetCacheRadius is how far the particle may drift before the
	// cached geomagnetic field is resampled, in m.
	magnetCacheRadius = 1e3
	// epsilon guards strict altitude and energy comparisons.
	epsilon = 1.1920929e-7
)

// Intersection is the first crossing of a line of sight with the
// geometry. Layer is the index of the medium entered at the crossing,
// with Geometry.Size() standing for the atmosphere and -1 for none.
type Intersection struct {
	Layer    int
	Position geo.Position
}

// Fluxmeter measures muon fluxes through a geometry. It is not safe
// for concurrent use; workers should operate on clones.
type Fluxmeter struct {
	Mode       Mode
	Geometry   *Geometry
	Reference  reference.Model
	Atmosphere atmosphere.Profile
	Random     Prng

	// Accuracy tunes the step bound applied around the cached
	// geomagnetic field.
	Accuracy float64

	// Errors, when set, observes every rejected operation.
	Errors func(error)

	// Stepper cache, keyed on the reference altitude window.
	built            bool
	zrefMin, zrefMax float64
	ztop, zref       float64
	layered          *stepper.Stepper
	opensky          *stepper.Stepper
	useExternalLayer bool

	// Geomagnetic field cache.
	magnet      geomagnet.Model
	magnetField geo.Ecef
	magnetAt    geo.Ecef
	magnetFresh bool
	useMagnet   bool
}

// New creates a fluxmeter over the given geometry, with the open-sky
// reference flux, the US standard atmosphere and a time-seeded random
// stream.
func New(geometry *Geometry) *Fluxmeter {
	return &Fluxmeter{
		Geometry:   geometry,
		Reference:  reference.Default(),
		Atmosphere: atmosphere.USStandard{},
		Random:     NewRandomStream(0),
		Accuracy:   1e-2,
	}
}

// Clone returns an independent fluxmeter sharing the geometry and the
// reference model, for use by a concurrent worker. The clone gets its
// own stepper and field caches and a fresh random stream.
func (f *Fluxmeter) Clone(seed uint64) *Fluxmeter {
	return &Fluxmeter{
		Mode:       f.Mode,
		Geometry:   f.Geometry,
		Reference:  f.Reference,
		Atmosphere: f.Atmosphere,
		Random:     NewRandomStream(seed),
		Accuracy:   f.Accuracy,
		Errors:     f.Errors,
	}
}

// Ztop returns the top altitude of the layered geometry, from which
// the open-sky bridge towards the reference altitude starts.
func (f *Fluxmeter) Ztop() float64 {
	f.updateSteppers()
	return f.ztop
}

// Zref returns the altitude the reference flux is sampled at.
func (f *Fluxmeter) Zref() float64 {
	f.updateSteppers()
	return f.zref
}

func (f *Fluxmeter) fail(err error) {
	if f.Errors != nil {
		f.Errors(err)
	}
}

// updateSteppers rebuilds the layered and open-sky steppers when the
// reference altitude window has changed since the last build.
func (f *Fluxmeter) updateSteppers() {
	hmin, hmax := f.Reference.HeightRange()
	if f.built && hmin == f.zrefMin && hmax == f.zrefMax {
		return
	}
	f.built = true
	f.zrefMin, f.zrefMax = hmin, hmax

	lo, hi := hmin, hmax
	if lo > hi {
		lo, hi = hi, lo
	}
	zmax := f.Geometry.topmost()
	switch {
	case zmax <= lo:
		f.ztop, f.zref = lo, lo
	case zmax <= hi:
		f.ztop, f.zref = zmax, zmax
	default:
		f.ztop, f.zref = zmax, hi
	}

	interfaces := make([]stepper.Interface, 0, len(f.Geometry.Layers)+3)
	interfaces = append(interfaces, stepper.Flat(ZMin))
	for _, l := range f.Geometry.Layers {
		if l.model == nil {
			interfaces = append(interfaces, stepper.Flat(l.offset))
		} else {
			interfaces = append(interfaces, stepper.Terrain{
				Map:      l.model,
				Offset:   l.offset,
				Fallback: ZMin,
			})
		}
	}
	interfaces = append(interfaces, stepper.Flat(f.ztop), stepper.Flat(ZMax))
	f.layered = stepper.New(interfaces...)
	f.opensky = stepper.New(stepper.Flat(f.zref), stepper.Flat(ZMax))
}

// prepare refreshes the cached steppers and geomagnetic state before
// an operation starting at the given altitude.
func (f *Fluxmeter) prepare(height float64, withMagnet bool) {
	f.updateSteppers()
	if f.Geometry.Geomagnet != f.magnet {
		f.magnet = f.Geometry.Geomagnet
		f.magnetField = geo.Ecef{}
		f.magnetFresh = false
	}
	f.useMagnet = withMagnet && f.magnet != nil
	f.useExternalLayer = height >= f.ztop+epsilon
}

// mediumLayer maps a layered stepper index to a geometry layer index:
// 0..Size()-1 for layers, Size() for the atmosphere, -1 outside.
func (f *Fluxmeter) mediumLayer(index int) int {
	size := f.Geometry.Size()
	switch {
	case index >= 1 && index <= size:
		return index - 1
	case index == size+1:
		return size
	case index == size+2 && f.useExternalLayer:
		return size
	}
	return -1
}

func (f *Fluxmeter) locateLayered(r geo.Ecef) int {
	return f.layered.Locate(geo.EcefToGeodetic(r))
}

func (f *Fluxmeter) stepLayered(r geo.Ecef) (float64, [2]int) {
	return f.layered.Step(geo.EcefToGeodetic(r))
}

func (f *Fluxmeter) locateOpensky(r geo.Ecef) int {
	return f.opensky.Locate(geo.EcefToGeodetic(r))
}

func (f *Fluxmeter) stepOpensky(r geo.Ecef) (float64, [2]int) {
	return f.opensky.Step(geo.EcefToGeodetic(r))
}

// layeredLocals resolves a layered stepper index into the local bulk
// properties at the particle's state.
func (f *Fluxmeter) layeredLocals(index int, s *transport.State) (transport.Medium, error) {
	layer := f.mediumLayer(index)
	size := f.Geometry.Size()
	switch {
	case layer < 0:
		return transport.Medium{}, nil
	case layer < size:
		l := f.Geometry.Layers[layer]
		return transport.Medium{Material: l.material, Density: l.Density}, nil
	}
	return f.atmosphereLocals(s)
}

func (f *Fluxmeter) openskyLocals(index int, s *transport.State) (transport.Medium, error) {
	if index != 1 {
		return transport.Medium{}, nil
	}
	return f.atmosphereLocals(s)
}

// atmosphereLocals samples the atmospheric density profile, bounding
// the step to a fraction of the local density scale height along the
// trajectory. The geomagnetic field is cached and resampled once the
// particle drifts away from the cached location.
func (f *Fluxmeter) atmosphereLocals(s *transport.State) (transport.Medium, error) {
	p := geo.EcefToGeodetic(s.Position)
	rho, lambda := f.Atmosphere.Density(p.Height)

	d := geo.EcefToHorizontal(p.Latitude, p.Longitude, s.Direction)
	c := math.Abs(math.Sin(d.Elevation * math.Pi / 180.0))
	if c < 0.1 {
		c = 0.1
	}
	med := transport.Medium{
		Material: transport.Air,
		Density:  rho,
		StepMax:  lambda / c,
	}
	if !f.useMagnet {
		return med, nil
	}

	if !f.magnetFresh ||
		s.Position.Sub(f.magnetAt).Norm() > magnetCacheRadius {
		enu := f.magnet.Field(p)
		f.magnetField = geo.EcefFromENU(p.Latitude, p.Longitude, enu)
		f.magnetAt = s.Position
		f.magnetFresh = true
	}
	med.Field = f.magnetField
	if g := magnetCacheRadius / f.accuracy(); g < med.StepMax {
		med.StepMax = g
	}
	return med, nil
}

func (f *Fluxmeter) accuracy() float64 {
	if f.Accuracy > 0 {
		return f.Accuracy
	}
	return 1e-2
}

// initEvent validates an observation and converts it to a transport
// state. The direction is reversed: the observation points to where
// the muon comes from while the state carries its momentum.
func (f *Fluxmeter) initEvent(pid PID, s State) (transport.State, error) {
	if s.Energy <= 0 {
		return transport.State{}, fmt.Errorf("%w (%g)", ErrKineticEnergy, s.Energy)
	}
	st := transport.State{
		Energy:   s.Energy,
		Weight:   1,
		Position: geo.EcefFromGeodetic(s.Position),
		Direction: geo.EcefFromHorizontal(
			s.Position.Latitude, s.Position.Longitude, s.Direction).Scale(-1),
	}
	switch pid {
	case Either:
		// Unbiased charge sampling: pick one of the two charges
		// and double the weight.
		if f.Random.Uniform01() <= 0.5 {
			st.Charge = -1
		} else {
			st.Charge = 1
		}
		st.Weight = 2
	case Antimuon:
		st.Charge = 1
	default:
		st.Charge = -1
	}
	return st, nil
}

// applyScheme configures the transport context for the fluxmeter mode
// and, in detailed mode, for the current kinetic energy band.
func (f *Fluxmeter) applyScheme(ctx *transport.Context, energy, energyMax float64) {
	ctx.EnergyLimit = energyMax
	switch f.Mode {
	case CSDA:
		ctx.Mode = transport.ModeCSDA
		ctx.Scattering = transport.ScatterNone
	case Mixed:
		ctx.Mode = transport.ModeMixed
		ctx.Scattering = transport.ScatterNone
	default:
		switch {
		case energy <= 10.0-epsilon:
			ctx.Mode = transport.ModeStraggled
			ctx.Scattering = transport.ScatterHighland
			ctx.EnergyLimit = 10.0
		case energy <= 100.0-epsilon:
			ctx.Mode = transport.ModeMixed
			ctx.Scattering = transport.ScatterHighland
			ctx.EnergyLimit = 100.0
		default:
			ctx.Mode = transport.ModeMixed
			ctx.Scattering = transport.ScatterNone
		}
	}
}

// transportEvent drives a state backward through the layered geometry
// up to the geometry top, then bridges it to the reference altitude
// under continuous loss. It returns the reference state and whether
// the transport concluded; any failure discards the sample.
func (f *Fluxmeter) transportEvent(st *transport.State, observer geo.Position) (State, bool) {
	position := observer
	energyMin, energyMax := f.Reference.EnergyRange()

	if position.Height < f.ztop-epsilon {
		ctx := &transport.Context{
			Flow:      transport.Backward,
			Locate:    f.locateLayered,
			Step:      f.stepLayered,
			Locals:    f.layeredLocals,
			Rand:      f.Random.Uniform01,
			Tolerance: altitudeTolerance,
		}
		f.applyScheme(ctx, st.Energy, energyMax)

	backward:
		for {
			event, err := ctx.Transport(st)
			if err != nil {
				f.fail(err)
				return State{}, false
			}
			switch event {
			case transport.EventBoundary:
				continue
			case transport.EventExit:
				break backward
			case transport.EventLimit:
				if f.Mode != Detailed {
					return State{}, false
				}
				// Re-evaluate the energy band after a ceiling.
				switch {
				case st.Energy >= energyMax-epsilon:
					return State{}, false
				case st.Energy >= 100.0-epsilon:
					ctx.Mode = transport.ModeMixed
					ctx.Scattering = transport.ScatterNone
					ctx.EnergyLimit = energyMax
				default:
					ctx.Mode = transport.ModeMixed
					ctx.Scattering = transport.ScatterHighland
					ctx.EnergyLimit = 100.0
				}
			default:
				return State{}, false
			}
		}

		position = geo.EcefToGeodetic(st.Position)
		if math.Abs(position.Height-f.ztop) > altitudeTolerance {
			return State{}, false
		}
		// Absorb the boundary overshoot, as for the reference altitude
		// below. A leftover of a few nm would otherwise fall outside
		// the reference height domain when zref equals ztop.
		position.Height = f.ztop
	}

	if _, hmax := f.Reference.HeightRange(); position.Height > hmax+epsilon {
		// Bridge down to the reference altitude with continuous
		// loss, reweighting by the stopping-power Jacobian. The
		// bridge retraces a segment the reference flux already
		// accounts for, so its proper time is taken out.
		t0, e0 := st.Time, st.Energy
		st.Time = 0

		ctx := &transport.Context{
			Flow:        transport.Forward,
			Mode:        transport.ModeCSDA,
			Locate:      f.locateOpensky,
			Step:        f.stepOpensky,
			Locals:      f.openskyLocals,
			EnergyLimit: energyMin,
			Tolerance:   altitudeTolerance,
		}
	bridge:
		for {
			event, err := ctx.Transport(st)
			if err != nil {
				f.fail(err)
				return State{}, false
			}
			switch event {
			case transport.EventBoundary:
				continue
			case transport.EventExit:
				break bridge
			default:
				return State{}, false
			}
		}

		position = geo.EcefToGeodetic(st.Position)
		if math.Abs(position.Height-f.zref) > altitudeTolerance {
			return State{}, false
		}
		position.Height = f.zref

		st.Time = t0 - st.Time
		dedx0 := transport.Air.StoppingPower(transport.ModeCSDA, e0)
		dedx1 := transport.Air.StoppingPower(transport.ModeCSDA, st.Energy)
		if dedx0 <= 0 || dedx1 <= 0 {
			return State{}, false
		}
		st.Weight *= dedx1 / dedx0
	}

	direction := geo.EcefToHorizontal(
		position.Latitude, position.Longitude, st.Direction.Scale(-1))
	decay := math.Exp(-st.Time / transport.MuonCTau)

	pid := Muon
	if st.Charge > 0 {
		pid = Antimuon
	}
	return State{
		PID:       pid,
		Position:  position,
		Direction: direction,
		Energy:    st.Energy,
		Weight:    decay * st.Weight,
	}, true
}

// Flux measures the muon flux for the given observation. Discarded
// samples yield a zero flux without error; only invalid observations
// fail.
func (f *Fluxmeter) Flux(initial State) (reference.Flux, error) {
	f.prepare(initial.Position.Height, true)
	st, err := f.initEvent(Muon, initial)
	if err != nil {
		f.fail(err)
		return reference.Flux{}, err
	}

	if initial.PID == Either {
		if f.Geometry.Geomagnet == nil {
			// Without a field the transport is charge symmetric:
			// one deterministic-charge transport samples the
			// combined flux exactly.
			result, ok := f.transportEvent(&st, initial.Position)
			if !ok || result.Weight <= 0 {
				return reference.Flux{}, nil
			}
			result.PID = Either
			return StateFlux(result, f.Reference), nil
		}

		// The field breaks charge symmetry: transport both charges
		// and recombine.
		minus := st
		minus.Charge = -1
		var r0, r1 reference.Flux
		if result, ok := f.transportEvent(&minus, initial.Position); ok {
			r0 = StateFlux(result, f.Reference)
		}
		plus := st
		plus.Charge = 1
		if result, ok := f.transportEvent(&plus, initial.Position); ok {
			r1 = StateFlux(result, f.Reference)
		}
		sum := r0.Value + r1.Value
		if sum <= 0 {
			return reference.Flux{}, nil
		}
		return reference.Flux{
			Value:     sum,
			Asymmetry: (r1.Value - r0.Value) / sum,
		}, nil
	}

	if initial.PID == Antimuon {
		st.Charge = 1
	} else {
		st.Charge = -1
	}
	result, ok := f.transportEvent(&st, initial.Position)
	if !ok || result.Weight <= 0 {
		return reference.Flux{}, nil
	}
	return StateFlux(result, f.Reference), nil
}

// Transport maps an observation to its reference state at the top of
// the atmosphere. For an unresolved charge the identity is sampled,
// except under deterministic CSDA transport where it is irrelevant,
// unless a geomagnetic field makes the charges diverge.
func (f *Fluxmeter) Transport(initial State) (State, error) {
	pid := initial.PID
	if pid == Either && f.Mode == CSDA {
		if f.Geometry.Geomagnet != nil {
			err := fmt.Errorf("%w (%d)", ErrPID, int(initial.PID))
			f.fail(err)
			return State{}, err
		}
		pid = Muon
	}

	f.prepare(initial.Position.Height, true)
	st, err := f.initEvent(pid, initial)
	if err != nil {
		f.fail(err)
		return State{}, err
	}
	result, ok := f.transportEvent(&st, initial.Position)
	if !ok {
		return State{}, nil
	}
	if initial.PID == Either && f.Mode == CSDA {
		result.PID = Either
	}
	return result, nil
}

// Intersect reports the first crossing of a line of sight with the
// geometry, or a -1 layer when there is none.
func (f *Fluxmeter) Intersect(position geo.Position, direction geo.Direction) Intersection {
	f.prepare(position.Height, false)
	st := transport.State{
		Charge:   1,
		Energy:   1,
		Weight:   1,
		Position: geo.EcefFromGeodetic(position),
		Direction: geo.EcefFromHorizontal(
			position.Latitude, position.Longitude, direction),
	}
	ctx := &transport.Context{
		Flow:      transport.Forward,
		Mode:      transport.ModeDisabled,
		Locate:    f.locateLayered,
		Step:      f.stepLayered,
		Locals:    f.layeredLocals,
		Tolerance: altitudeTolerance,
	}

	intersection := Intersection{Layer: -1}
	for {
		before := f.mediumLayer(f.locateLayered(st.Position))
		event, err := ctx.Transport(&st)
		if err != nil {
			f.fail(err)
			return intersection
		}
		if event != transport.EventBoundary {
			return intersection
		}
		entered := f.enteredMedium(st.Media, before)
		if entered == before {
			// A virtual interface inside one medium.
			continue
		}
		intersection.Position = geo.EcefToGeodetic(st.Position)
		intersection.Layer = entered
		return intersection
	}
}

// enteredMedium resolves which side of the last crossed boundary the
// particle moved into, as a geometry layer index.
func (f *Fluxmeter) enteredMedium(media [2]int, before int) int {
	low, high := f.mediumLayer(media[0]), f.mediumLayer(media[1])
	if low == before {
		return high
	}
	return low
}

// Grammage integrates the column depth along a line of sight, total
// and split by medium. The last slot of the per-medium slice holds the
// atmosphere contribution.
func (f *Fluxmeter) Grammage(position geo.Position, direction geo.Direction) (float64, []float64) {
	f.prepare(position.Height, false)
	st := transport.State{
		Charge:   1,
		Energy:   1,
		Weight:   1,
		Position: geo.EcefFromGeodetic(position),
		Direction: geo.EcefFromHorizontal(
			position.Latitude, position.Longitude, direction),
	}
	ctx := &transport.Context{
		Flow:      transport.Forward,
		Mode:      transport.ModeDisabled,
		Locate:    f.locateLayered,
		Step:      f.stepLayered,
		Locals:    f.layeredLocals,
		Tolerance: altitudeTolerance,
	}

	perMedium := make([]float64, f.Geometry.Size()+1)
	last := 0.0
	for {
		before := f.mediumLayer(f.locateLayered(st.Position))
		event, err := ctx.Transport(&st)
		if err != nil {
			f.fail(err)
			return 0, perMedium
		}
		if before >= 0 {
			perMedium[before] += st.Grammage - last
		}
		last = st.Grammage
		if event != transport.EventBoundary {
			return st.Grammage, perMedium
		}
	}
}

// WhereAmI returns the geometry layer index at the given location, per
// the mediumLayer convention.
func (f *Fluxmeter) WhereAmI(position geo.Position) int {
	f.prepare(position.Height, false)
	return f.mediumLayer(f.layered.Locate(position))
}
