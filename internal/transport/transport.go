// Package transport integrates charged-particle trajectories through a
// piecewise-homogeneous geometry, forward or backward, under a
// selectable energy-loss and scattering scheme. The geometry itself is
// abstract: callers describe it through locator and local-properties
// callbacks.
package transport

import (
	"errors"
	"math"

	"github.com/san-kum/muflux/internal/geo"
)

// Muon constants, in GeV and m.
const (
	MuonMass = 0.10566
	MuonCTau = 658.654
)

// larmor converts momentum and field to curvature, in GeV/(T m) per
// unit charge.
const larmor = 0.299792458

// Mode selects the energy-loss scheme.
type Mode int

const (
	// ModeCSDA is deterministic continuous slowing down.
	ModeCSDA Mode = iota
	// ModeMixed adds randomised catastrophic losses on top of the
	// soft continuous component.
	ModeMixed
	// ModeStraggled further fluctuates the soft component.
	ModeStraggled
	// ModeDisabled turns the energy loss off, for purely geometric
	// transport.
	ModeDisabled
)

func (m Mode) String() string {
	switch m {
	case ModeCSDA:
		return "csda"
	case ModeMixed:
		return "mixed"
	case ModeStraggled:
		return "straggled"
	case ModeDisabled:
		return "disabled"
	}
	return "unknown"
}

// Scattering selects the angular diffusion scheme.
type Scattering int

const (
	ScatterNone Scattering = iota
	// ScatterHighland applies Gaussian multiple scattering with the
	// Highland width.
	ScatterHighland
)

// Flow is the integration direction along the trajectory. Backward
// transport reconstructs where the particle came from, moving opposite
// to its momentum.
type Flow int

const (
	Forward Flow = iota
	Backward
)

// Event reports why a transport call returned.
type Event int

const (
	EventNone Event = iota
	// EventBoundary means the particle landed on a medium boundary,
	// just past it on the new-medium side.
	EventBoundary
	// EventLimit means the configured energy or distance limit was
	// reached.
	EventLimit
	// EventStop means the particle ran out of kinetic energy.
	EventStop
	// EventExit means the particle left the geometry.
	EventExit
)

func (e Event) String() string {
	switch e {
	case EventNone:
		return "none"
	case EventBoundary:
		return "boundary"
	case EventLimit:
		return "limit"
	case EventStop:
		return "stop"
	case EventExit:
		return "exit"
	}
	return "unknown"
}

var (
	ErrBadEnergy  = errors.New("transport: non-positive kinetic energy")
	ErrBadContext = errors.New("transport: incomplete context")
	ErrStuck      = errors.New("transport: step budget exhausted")
)

// State is one particle along its trajectory. Direction points along
// the momentum regardless of the transport flow. Time accumulates the
// proper time multiplied by c, in m.
type State struct {
	Charge    float64
	Position  geo.Ecef
	Direction geo.Ecef
	Energy    float64 // kinetic, GeV
	Weight    float64
	Distance  float64 // path length, m
	Grammage  float64 // kg/m2
	Time      float64 // c * proper time, m
	Media     [2]int  // sides of the last crossed boundary
}

// Medium is the local environment returned by a Locals callback. A nil
// Material flags the exterior of the geometry.
type Medium struct {
	Material *Material
	Density  float64  // kg/m3
	Field    geo.Ecef // magnetic field, T
	StepMax  float64  // local step bound, m; 0 means none
}

// Context drives transport calls. Locate and Step describe the
// geometry, Locals its bulk properties. Rand feeds the stochastic
// schemes and may be nil for pure CSDA transport.
type Context struct {
	Mode       Mode
	Scattering Scattering
	Flow       Flow

	Locate func(r geo.Ecef) int
	Step   func(r geo.Ecef) (step float64, media [2]int)
	Locals func(index int, s *State) (Medium, error)
	Rand   func() float64

	EnergyLimit   float64 // kinetic ceiling (backward) or floor (forward), 0 disables
	DistanceLimit float64 // path length bound, m, 0 disables
	Tolerance     float64 // boundary landing tolerance, m
}

const (
	defaultTolerance = 1e-4
	maxLossFraction  = 0.05
	energyFloor      = 1e-6
	maxSteps         = 1000000
	// hardLossMin is the smallest fractional catastrophic loss that
	// is sampled discretely.
	hardLossMin = 1e-2
)

// Transport advances the state until a boundary, a limit, a stop or
// the geometry exterior. The position after EventBoundary sits within
// the tolerance past the boundary, on the new-medium side.
func (c *Context) Transport(s *State) (Event, error) {
	if c.Locate == nil || c.Step == nil || c.Locals == nil {
		return EventNone, ErrBadContext
	}
	if s.Energy <= 0 {
		return EventNone, ErrBadEnergy
	}
	tol := c.Tolerance
	if tol <= 0 {
		tol = defaultTolerance
	}

	sign := 1.0
	if c.Flow == Backward {
		sign = -1.0
	}

	for n := 0; n < maxSteps; n++ {
		index := c.Locate(s.Position)
		med, err := c.Locals(index, s)
		if err != nil {
			return EventNone, err
		}
		if med.Material == nil {
			return EventExit, nil
		}
		a, b := med.Material.lossCoefficients(c.Mode)

		// Geometric step, bounded by the local medium hint.
		ds, stepMedia := c.Step(s.Position)
		if med.StepMax > 0 && med.StepMax < ds {
			ds = med.StepMax
		}

		// Bound the continuous loss per step.
		dedx := (a + b*s.Energy) * med.Density
		if dedx > 0 {
			dsE := maxLossFraction * s.Energy / dedx
			if dsE < tol {
				dsE = tol
			}
			if dsE < ds {
				ds = dsE
			}
		}

		distanceHit := false
		if c.DistanceLimit > 0 {
			remaining := c.DistanceLimit - s.Distance
			if remaining <= 0 {
				return EventLimit, nil
			}
			if remaining <= ds {
				ds = remaining
				distanceHit = true
			}
		}

		// Straight trial displacement; land on the boundary if the
		// medium changes along it.
		boundaryHit := false
		trial := displaced(s.Position, s.Direction, sign*ds)
		if c.Locate(trial) != index {
			ds = c.land(s.Position, s.Direction, sign, ds, index, tol)
			s.Media = stepMedia
			boundaryHit = true
			distanceHit = false
		}

		// Continuous energy evolution over the travelled column. The
		// backward flow gains energy while tracing the trajectory
		// upstream.
		dX := med.Density * ds
		e0 := s.Energy
		e1 := energyAfter(a, b, e0, -sign*dX)

		event := EventNone
		if c.Flow == Forward && e1 <= energyFloor {
			// Ranges out inside this step.
			stop := columnBetween(a, b, 0, e0) / med.Density
			if stop < ds {
				ds = stop
				dX = med.Density * ds
			}
			e1 = 0
			event = EventStop
			boundaryHit, distanceHit = false, false
		}

		// Stochastic pieces.
		if event == EventNone && c.Rand != nil && c.Mode != ModeCSDA {
			if c.Mode == ModeStraggled {
				sigma := math.Sqrt(1.569e-8 * med.Material.ZA * dX)
				e1 += sigma * c.gauss()
			}
			e1 = c.hardLoss(med.Material, e1, dX)
			if e1 < 0 {
				e1 = 0
				if c.Flow == Forward {
					event = EventStop
					boundaryHit, distanceHit = false, false
				}
			}
		}

		// Energy limit crossing.
		if c.EnergyLimit > 0 && event == EventNone {
			if c.Flow == Backward && e1 >= c.EnergyLimit {
				if e1 > c.EnergyLimit {
					lim := med.Material.GrammageRange(c.Mode, e0, c.EnergyLimit) / med.Density
					if lim < ds && !boundaryHit {
						ds = lim
						dX = med.Density * ds
					}
				}
				e1 = c.EnergyLimit
				event = EventLimit
				distanceHit = false
			} else if c.Flow == Forward && e1 <= c.EnergyLimit {
				if e1 < c.EnergyLimit {
					lim := med.Material.GrammageRange(c.Mode, c.EnergyLimit, e0) / med.Density
					if lim < ds && !boundaryHit {
						ds = lim
						dX = med.Density * ds
					}
				}
				e1 = c.EnergyLimit
				event = EventLimit
				distanceHit = false
			}
		}

		// Detailed balance of the continuous loss: the backward
		// flow reweights by the ratio of stopping powers between
		// the step's endpoints.
		if c.Flow == Backward {
			if d0 := a + b*e0; d0 > 0 {
				s.Weight *= (a + b*e1) / d0
			}
		}

		// Advance the state.
		eMid := 0.5 * (e0 + e1)
		p := math.Sqrt(eMid * (eMid + 2*MuonMass))
		s.Position = displaced(s.Position, s.Direction, sign*ds)
		s.Energy = e1
		s.Distance += ds
		s.Grammage += dX
		if p > 0 {
			s.Time += ds * MuonMass / p
		}

		// Deflections apply to the momentum direction.
		if p > 0 {
			if f := med.Field.Norm(); f > 0 {
				kick := s.Direction.Cross(med.Field).
					Scale(sign * ds * s.Charge * larmor / p)
				s.Direction = s.Direction.Add(kick).Unit()
			}
			if c.Scattering == ScatterHighland && c.Rand != nil && dX > 0 {
				c.scatter(s, med.Material, p, dX)
			}
		}

		switch {
		case event != EventNone:
			return event, nil
		case boundaryHit:
			return EventBoundary, nil
		case distanceHit:
			return EventLimit, nil
		}
	}
	return EventNone, ErrStuck
}

// land bisects the last displacement so that the returned path length
// ends within tol past the first medium change.
func (c *Context) land(r, u geo.Ecef, sign, ds float64, index int, tol float64) float64 {
	lo, hi := 0.0, ds
	for hi-lo > tol {
		mid := 0.5 * (lo + hi)
		if c.Locate(displaced(r, u, sign*mid)) == index {
			lo = mid
		} else {
			hi = mid
		}
	}
	return hi
}

func displaced(r, u geo.Ecef, ds float64) geo.Ecef {
	return r.Add(u.Scale(ds))
}

// hardLoss samples at most one catastrophic loss over the column dX,
// with the fractional loss log-uniform above hardLossMin. The sampling
// rate is tuned so that the mean loss matches the hard component of
// the stopping power.
func (c *Context) hardLoss(m *Material, e, dX float64) float64 {
	if e <= 0 {
		return e
	}
	bHard := m.B * (1 - softFraction)
	rate := bHard * dX * math.Log(1/hardLossMin) / (1 - hardLossMin)
	if c.Rand() >= rate {
		return e
	}
	nu := math.Pow(hardLossMin, c.Rand())
	if c.Flow == Backward {
		// The particle had a higher energy before the loss.
		return e / (1 - nu)
	}
	return e * (1 - nu)
}

// scatter applies Gaussian multiple scattering with the Highland width
// over the column dX.
func (c *Context) scatter(s *State, m *Material, p, dX float64) {
	t := dX / m.X0
	if t <= 0 {
		return
	}
	beta := p / (s.Energy + MuonMass)
	if beta <= 0 {
		return
	}
	theta0 := 13.6e-3 / (p * beta) * math.Sqrt(t) * (1 + 0.038*math.Log(t))
	if theta0 <= 0 {
		return
	}

	// Orthonormal frame transverse to the momentum.
	u := s.Direction
	ref := geo.Ecef{1, 0, 0}
	if math.Abs(u[0]) > 0.9 {
		ref = geo.Ecef{0, 1, 0}
	}
	t1 := u.Cross(ref).Unit()
	t2 := u.Cross(t1)

	dx := theta0 * c.gauss()
	dy := theta0 * c.gauss()
	s.Direction = u.Add(t1.Scale(dx)).Add(t2.Scale(dy)).Unit()
}

func (c *Context) gauss() float64 {
	u := c.Rand()
	if u <= 0 {
		u = math.SmallestNonzeroFloat64
	}
	return math.Sqrt(-2*math.Log(u)) * math.Cos(2*math.Pi*c.Rand())
}
