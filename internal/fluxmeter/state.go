package fluxmeter

import (
	"math/rand"
	"time"

	"github.com/san-kum/muflux/internal/geo"
	"github.com/san-kum/muflux/internal/reference"
)

// PID identifies the observed particle. Either stands for an
// unresolved charge: the flux of muons and antimuons combined.
type PID int

const (
	Either   PID = 0
	Muon     PID = 13
	Antimuon PID = -13
)

func (p PID) String() string {
	switch p {
	case Either:
		return "either"
	case Muon:
		return "muon"
	case Antimuon:
		return "antimuon"
	}
	return "unknown"
}

// State is an observation, or the reference state resulting from its
// transport. The direction follows the observer convention: it points
// towards where the particle comes from.
type State struct {
	PID       PID
	Position  geo.Position
	Direction geo.Direction
	Energy    float64 // kinetic, GeV
	Weight    float64
}

// StateFlux folds a transported reference state into a reference flux
// model. For a resolved charge only the matching flux fraction is
// sampled.
func StateFlux(s State, model reference.Model) reference.Flux {
	result := model.Flux(s.Position.Height, s.Direction.Elevation, s.Energy)
	if s.PID != Either {
		charge := -1.0
		if s.PID == Antimuon {
			charge = 1.0
		}
		result.Value *= 0.5 * (1.0 + charge*result.Asymmetry)
		result.Asymmetry = charge
	}
	result.Value *= s.Weight
	return result
}

// Prng is the pseudo-random stream consumed by the stochastic
// transport schemes.
type Prng interface {
	Uniform01() float64
}

// RandomStream is the default Prng, a seedable uniform generator.
type RandomStream struct {
	rng  *rand.Rand
	seed uint64
}

// NewRandomStream creates a random stream. A zero seed picks one from
// the wall clock.
func NewRandomStream(seed uint64) *RandomStream {
	s := &RandomStream{}
	s.SetSeed(seed)
	return s
}

func (s *RandomStream) Uniform01() float64 { return s.rng.Float64() }

func (s *RandomStream) Seed() uint64 { return s.seed }

func (s *RandomStream) SetSeed(seed uint64) {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	s.seed = seed
	s.rng = rand.New(rand.NewSource(int64(seed)))
}
