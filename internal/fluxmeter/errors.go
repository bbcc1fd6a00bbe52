package fluxmeter

import "errors"

var (
	// ErrKineticEnergy flags a non-positive observation energy.
	ErrKineticEnergy = errors.New("fluxmeter: bad kinetic energy")
	// ErrPID flags a particle identity the requested operation does
	// not support.
	ErrPID = errors.New("fluxmeter: bad pid")
	// ErrMaterial flags an unknown layer material.
	ErrMaterial = errors.New("fluxmeter: unknown material")
)
