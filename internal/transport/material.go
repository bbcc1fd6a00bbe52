package transport

import (
	"math"
	"sort"
)

// Material bundles the continuous energy-loss parametrisation and the
// radiation length of a bulk medium. The mean stopping power per unit
// column density follows dE/dX = A + B*E with E the kinetic energy.
type Material struct {
	Name    string
	A       float64 // GeV m2/kg
	B       float64 // m2/kg
	X0      float64 // radiation length, kg/m2
	ZA      float64 // mean charge over mass number
	Density float64 // default bulk density, kg/m3
}

// In the stochastic schemes the radiative component of the energy loss
// is split evenly between a continuous soft part and randomised
// catastrophic losses.
const softFraction = 0.5

var (
	StandardRock = &Material{Name: "Rock", A: 2.37e-4, B: 3.9e-7, X0: 265.4, ZA: 0.5, Density: 2650}
	Air          = &Material{Name: "Air", A: 2.18e-4, B: 3.2e-7, X0: 366.2, ZA: 0.49919, Density: 1.205}
	Water        = &Material{Name: "Water", A: 2.26e-4, B: 2.8e-7, X0: 360.8, ZA: 0.55509, Density: 1000}
	Concrete     = &Material{Name: "Concrete", A: 2.32e-4, B: 3.8e-7, X0: 265.7, ZA: 0.50274, Density: 2300}
	Iron         = &Material{Name: "Iron", A: 1.76e-4, B: 5.4e-7, X0: 138.4, ZA: 0.46557, Density: 7874}
	Lead         = &Material{Name: "Lead", A: 1.46e-4, B: 6.8e-7, X0: 63.7, ZA: 0.39575, Density: 11350}
)

var materials = map[string]*Material{
	"Rock":     StandardRock,
	"Air":      Air,
	"Water":    Water,
	"Concrete": Concrete,
	"Iron":     Iron,
	"Lead":     Lead,
}

// MaterialByName resolves a registered material.
func MaterialByName(name string) (*Material, bool) {
	m, ok := materials[name]
	return m, ok
}

// RegisterMaterial adds or replaces a material in the registry.
func RegisterMaterial(m *Material) {
	materials[m.Name] = m
}

// Materials lists the registered materials sorted by name.
func Materials() []*Material {
	names := make([]string, 0, len(materials))
	for name := range materials {
		names = append(names, name)
	}
	sort.Strings(names)
	list := make([]*Material, len(names))
	for i, name := range names {
		list[i] = materials[name]
	}
	return list
}

func (m *Material) lossCoefficients(mode Mode) (a, b float64) {
	switch mode {
	case ModeCSDA:
		return m.A, m.B
	case ModeDisabled:
		return 0, 0
	}
	return m.A, m.B * softFraction
}

// StoppingPower returns the continuous dE/dX at kinetic energy e, in
// GeV m2/kg, for the given energy-loss scheme. In the stochastic
// schemes only the soft component contributes.
func (m *Material) StoppingPower(mode Mode, e float64) float64 {
	a, b := m.lossCoefficients(mode)
	return a + b*e
}

// GrammageRange returns the column density traversed while the kinetic
// energy drops from eHigh to eLow under continuous loss, in kg/m2.
func (m *Material) GrammageRange(mode Mode, eLow, eHigh float64) float64 {
	a, b := m.lossCoefficients(mode)
	return columnBetween(a, b, eLow, eHigh)
}

// energyAfter integrates dE/dX = a + b*E over a signed column depth.
// A positive column raises the energy, a negative one lowers it.
func energyAfter(a, b, e, dX float64) float64 {
	if b <= 0 {
		return e + a*dX
	}
	return ((a+b*e)*math.Exp(b*dX) - a) / b
}

func columnBetween(a, b, eLow, eHigh float64) float64 {
	if b <= 0 {
		return (eHigh - eLow) / a
	}
	return math.Log((a+b*eHigh)/(a+b*eLow)) / b
}
