package simulation

import "errors"

var (
	ErrInvalidParameter   = errors.New("invalid parameter")
	ErrMissingInput       = errors.New("missing input")
	ErrInvalidEquation    = errors.New("invalid controller equation")
	ErrInvalidLossModel   = errors.New("invalid heat loss model")
	ErrUnknownScenario    = errors.New("unknown scenario")
	ErrBelowAbsoluteZero  = errors.New("temperature below absolute zero")
	ErrSimulationTooLong  = errors.New("simulation time exceeds limit")
	ErrNonFiniteParameter = errors.New("parameter is not a finite number")
	ErrUnstableTimeStep   = errors.New("room reacts faster than the simulation step")
)
