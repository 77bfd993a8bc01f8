package simulation

import "fmt"

// ControllerEquation selects how the PID gains are applied.
type ControllerEquation int

const (
	EquationUnknown ControllerEquation = iota
	// EquationGainScaledAll: kp*e + (kp/ti)*I + kp*td*d
	EquationGainScaledAll
	// EquationGainScaledPartial: kp*(e + (1/ti)*I + td*d)
	EquationGainScaledPartial
)

func (c ControllerEquation) Valid() bool {
	return c == EquationGainScaledAll || c == EquationGainScaledPartial
}

func (c ControllerEquation) String() string {
	switch c {
	case EquationGainScaledAll:
		return "gain-scaled-all"
	case EquationGainScaledPartial:
		return "gain-scaled-partial"
	default:
		return "unknown"
	}
}

func ParseControllerEquation(s string) (ControllerEquation, error) {
	switch s {
	case "gain-scaled-all":
		return EquationGainScaledAll, nil
	case "gain-scaled-partial":
		return EquationGainScaledPartial, nil
	default:
		return EquationUnknown, fmt.Errorf("%w: %q", ErrInvalidEquation, s)
	}
}

// LossModel selects how the exposed wall area is obtained.
type LossModel int

const (
	LossModelUnknown LossModel = iota
	// LossModelCube derives the wall area from the room volume: V^(2/3) * exposed walls.
	LossModelCube
	// LossModelFlat takes the wall area as given.
	LossModelFlat
)

func (m LossModel) Valid() bool {
	return m == LossModelCube || m == LossModelFlat
}

func (m LossModel) String() string {
	switch m {
	case LossModelCube:
		return "cube"
	case LossModelFlat:
		return "flat"
	default:
		return "unknown"
	}
}

func ParseLossModel(s string) (LossModel, error) {
	switch s {
	case "cube":
		return LossModelCube, nil
	case "flat":
		return LossModelFlat, nil
	default:
		return LossModelUnknown, fmt.Errorf("%w: %q", ErrInvalidLossModel, s)
	}
}
