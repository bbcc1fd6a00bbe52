// Package reference provides opensky muon flux models, used as the
// boundary condition of the backward transport.
package reference

import "math"

// MuonMass is the muon rest mass, in GeV/c^2.
const MuonMass = 0.10566

// Flux is a differential muon flux sample, in GeV^-1 m^-2 s^-1 sr^-1,
// together with its charge asymmetry.
type Flux struct {
	Value     float64
	Asymmetry float64
}

// Model is a reference flux parameterisation. Queries outside of the
// energy or altitude domain return a zero flux.
type Model interface {
	EnergyRange() (min, max float64)
	HeightRange() (min, max float64)
	Flux(height, elevation, energy float64) Flux
}

// OpenSky is the closed-form reference model: Gaisser's flux with the
// Guan et al. high-energy correction and Volkova's Earth-curvature
// corrected zenith angle, with a constant charge ratio.
type OpenSky struct {
	EnergyMin float64
	EnergyMax float64
	HeightMin float64
	HeightMax float64
}

// Default returns the default reference model: the opensky flux at sea
// level.
func Default() *OpenSky {
	return &OpenSky{
		EnergyMin: 1e-4,
		EnergyMax: 1e21,
		HeightMin: 0.0,
		HeightMax: 0.0,
	}
}

func (m *OpenSky) EnergyRange() (min, max float64) { return m.EnergyMin, m.EnergyMax }
func (m *OpenSky) HeightRange() (min, max float64) { return m.HeightMin, m.HeightMax }

// ChargeRatio is the constant mu+ over mu- flux ratio.
// Ref: CMS (https://arxiv.org/abs/1005.5332).
const ChargeRatio = 1.2766

func (m *OpenSky) Flux(height, elevation, energy float64) Flux {
	if height < m.HeightMin || height > m.HeightMax {
		return Flux{}
	}
	cosTheta := math.Cos((90.0 - elevation) * math.Pi / 180.0)
	f := chargeFraction(1)
	return Flux{
		Value:     fluxGCCLY(cosTheta, energy),
		Asymmetry: 2.0*f - 1.0,
	}
}

// fluxGaisser is Gaisser's flux model, in GeV^-1 m^-2 s^-1 sr^-1.
// Ref: see e.g. ch. 30 of the PDG (https://pdglive.lbl.gov).
func fluxGaisser(cosTheta, energy float64) float64 {
	if cosTheta < 0 {
		return 0
	}
	emu := energy + MuonMass
	ec := 1.1 * emu * cosTheta
	rpi := 1.0 + ec/115.0
	rk := 1.0 + ec/850.0
	return 1.4e3 * math.Pow(emu, -2.7) * (1.0/rpi + 0.054/rk)
}

// cosThetaStar is Volkova's parameterisation of cos(theta*), a
// correction for the Earth curvature relevant close to the horizon.
func cosThetaStar(cosTheta float64) float64 {
	p := [5]float64{0.102573, -0.068287, 0.958633, 0.0407253, 0.817285}
	cs2 := (cosTheta*cosTheta +
		p[0]*p[0] +
		p[1]*math.Pow(cosTheta, p[2]) +
		p[3]*math.Pow(cosTheta, p[4])) /
		(1.0 + p[0]*p[0] + p[1] + p[3])
	if cs2 <= 0 {
		return 0
	}
	return math.Sqrt(cs2)
}

// fluxGCCLY is the Guan et al. parameterisation of the sea level flux
// of atmospheric muons. Ref: https://arxiv.org/abs/1509.06176.
func fluxGCCLY(cosTheta, energy float64) float64 {
	emu := energy + MuonMass
	cs := cosThetaStar(cosTheta)
	return math.Pow(1.0+3.64/(emu*math.Pow(cs, 1.29)), -2.7) *
		fluxGaisser(cs, energy)
}

// chargeFraction is the fraction of the total flux carried by the
// given charge.
func chargeFraction(charge float64) float64 {
	if charge < 0 {
		return 1.0 / (1.0 + ChargeRatio)
	}
	return ChargeRatio / (1.0 + ChargeRatio)
}
