package simulation

import (
	"fmt"
	"math"
	"strings"
)

const (
	// DerivativeLimit bounds the derivative term when Params.DerivativeClamp is set.
	DerivativeLimit = 2.0
	// MaxSimulationMinutes caps a single run to one week of simulated time.
	MaxSimulationMinutes = 7 * 24 * 60
	// MaxHeaterStep is the largest temperature rise in K that full heater
	// power may cause within one step.
	MaxHeaterStep = 1.0
)

// Params is the immutable input of one simulation run.
type Params struct {
	StartTemperature    float64 // °C
	SetpointTemperature float64 // °C
	OutsideTemperature  float64 // °C
	SimulationMinutes   int

	RoomVolume   float64 // m³
	WallArea     float64 // m², flat loss model only
	ExposedWalls int     // cube loss model only
	LossModel    LossModel

	HeaterMaxPower      float64 // W
	HeatLossCoefficient float64

	Kp, Ti, Td      float64
	Equation        ControllerEquation
	ErrorClamp      *float64 // nil: error is not clamped
	DerivativeClamp bool
}

func (p Params) TotalSteps() int {
	return p.SimulationMinutes * 60
}

// EffectiveWallArea is the surface used by the heat loss term.
func (p Params) EffectiveWallArea() float64 {
	if p.LossModel == LossModelFlat {
		return p.WallArea
	}
	return WallArea(p.RoomVolume, p.ExposedWalls)
}

func invalid(field, reason string) error {
	return fmt.Errorf("%w: %s %s", ErrInvalidParameter, field, reason)
}

func (p Params) Validate() error {
	finite := []struct {
		name string
		v    float64
	}{
		{"start_temperature", p.StartTemperature},
		{"setpoint_temperature", p.SetpointTemperature},
		{"outside_temperature", p.OutsideTemperature},
		{"room_volume", p.RoomVolume},
		{"wall_area", p.WallArea},
		{"heater_max_power", p.HeaterMaxPower},
		{"heat_loss_coefficient", p.HeatLossCoefficient},
		{"kp", p.Kp},
		{"ti", p.Ti},
		{"td", p.Td},
	}
	if p.ErrorClamp != nil {
		finite = append(finite, struct {
			name string
			v    float64
		}{"error_clamp", *p.ErrorClamp})
	}
	for _, f := range finite {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return fmt.Errorf("%w: %w: %s", ErrInvalidParameter, ErrNonFiniteParameter, f.name)
		}
	}

	if !p.Equation.Valid() {
		return fmt.Errorf("%w: %w", ErrInvalidParameter, ErrInvalidEquation)
	}
	if !p.LossModel.Valid() {
		return fmt.Errorf("%w: %w", ErrInvalidParameter, ErrInvalidLossModel)
	}
	if p.Ti == 0 {
		return invalid("ti", "must be non-zero")
	}
	if p.RoomVolume <= 0 {
		return invalid("room_volume", "must be greater than zero")
	}
	if p.SimulationMinutes < 0 {
		return invalid("simulation_minutes", "must not be negative")
	}
	if p.SimulationMinutes > MaxSimulationMinutes {
		return fmt.Errorf("%w: %w: %d > %d minutes", ErrInvalidParameter, ErrSimulationTooLong, p.SimulationMinutes, MaxSimulationMinutes)
	}
	if p.HeaterMaxPower < 0 {
		return invalid("heater_max_power", "must not be negative")
	}
	if p.HeatLossCoefficient < 0 {
		return invalid("heat_loss_coefficient", "must not be negative")
	}
	if p.ErrorClamp != nil && *p.ErrorClamp <= 0 {
		return invalid("error_clamp", "must be greater than zero")
	}
	switch p.LossModel {
	case LossModelCube:
		if p.ExposedWalls < 1 {
			return invalid("exposed_walls", "must be at least 1")
		}
	case LossModelFlat:
		if p.WallArea < 0 {
			return invalid("wall_area", "must not be negative")
		}
	}
	for _, f := range finite[:3] {
		if f.v <= AbsoluteZeroCelsius {
			return fmt.Errorf("%w: %w: %s=%g", ErrInvalidParameter, ErrBelowAbsoluteZero, f.name, f.v)
		}
	}
	return p.validateStep()
}

// validateStep rejects rooms whose temperature would move too far in a
// single step. With a loss ratio below 1 every step lands between the
// current temperature and the equilibrium for the applied power, so the
// series stays within [min(start, outside), ceiling].
func (p Params) validateStep() error {
	dt := TimeStep.Seconds()
	reference := math.Max(p.StartTemperature, math.Max(p.SetpointTemperature, p.OutsideTemperature))

	if rise := p.HeaterMaxPower * dt / ThermalMass(reference, p.RoomVolume); rise > MaxHeaterStep {
		return fmt.Errorf("%w: %w: heater raises %.3g K per step, limit %g K",
			ErrInvalidParameter, ErrUnstableTimeStep, rise, MaxHeaterStep)
	}

	ua := p.HeatLossCoefficient * p.EffectiveWallArea()
	if ua == 0 {
		return nil
	}
	ceiling := math.Max(p.StartTemperature, p.OutsideTemperature+p.HeaterMaxPower/ua)
	if ratio := ua * dt / ThermalMass(ceiling, p.RoomVolume); ratio >= 1 {
		return fmt.Errorf("%w: %w: heat loss ratio %.3g per step, must stay below 1",
			ErrInvalidParameter, ErrUnstableTimeStep, ratio)
	}
	return nil
}

// Input is the possibly incomplete form state supplied by a caller.
// Nil fields are treated as absent.
type Input struct {
	StartTemperature    *float64 `json:"start_temperature,omitempty"`
	SetpointTemperature *float64 `json:"setpoint_temperature,omitempty"`
	OutsideTemperature  *float64 `json:"outside_temperature,omitempty"`
	SimulationMinutes   *int     `json:"simulation_minutes,omitempty"`

	RoomVolume   *float64 `json:"room_volume,omitempty"`
	WallArea     *float64 `json:"wall_area,omitempty"`
	ExposedWalls *int     `json:"exposed_walls,omitempty"`
	LossModel    *string  `json:"loss_model,omitempty"`

	HeaterMaxPower      *float64 `json:"heater_max_power,omitempty"`
	HeatLossCoefficient *float64 `json:"heat_loss_coefficient,omitempty"`

	Kp              *float64 `json:"kp,omitempty"`
	Ti              *float64 `json:"ti,omitempty"`
	Td              *float64 `json:"td,omitempty"`
	Equation        *string  `json:"equation,omitempty"`
	ErrorClamp      *float64 `json:"error_clamp,omitempty"`
	DerivativeClamp *bool    `json:"derivative_clamp,omitempty"`
}

// Merge returns a copy of in where every non-nil field of override wins.
// The result shares no pointers with either argument.
func (in Input) Merge(override Input) Input {
	var out Input
	for _, src := range []Input{in, override} {
		pick(&out.StartTemperature, src.StartTemperature)
		pick(&out.SetpointTemperature, src.SetpointTemperature)
		pick(&out.OutsideTemperature, src.OutsideTemperature)
		pick(&out.SimulationMinutes, src.SimulationMinutes)
		pick(&out.RoomVolume, src.RoomVolume)
		pick(&out.WallArea, src.WallArea)
		pick(&out.ExposedWalls, src.ExposedWalls)
		pick(&out.LossModel, src.LossModel)
		pick(&out.HeaterMaxPower, src.HeaterMaxPower)
		pick(&out.HeatLossCoefficient, src.HeatLossCoefficient)
		pick(&out.Kp, src.Kp)
		pick(&out.Ti, src.Ti)
		pick(&out.Td, src.Td)
		pick(&out.Equation, src.Equation)
		pick(&out.ErrorClamp, src.ErrorClamp)
		pick(&out.DerivativeClamp, src.DerivativeClamp)
	}
	return out
}

func pick[T any](dst **T, src *T) {
	if src != nil {
		v := *src
		*dst = &v
	}
}

// Params resolves the input into validated run parameters. Absent required
// fields are reported together as ErrMissingInput.
func (in Input) Params() (Params, error) {
	var missing []string
	need := func(name string, present bool) {
		if !present {
			missing = append(missing, name)
		}
	}
	need("start_temperature", in.StartTemperature != nil)
	need("setpoint_temperature", in.SetpointTemperature != nil)
	need("outside_temperature", in.OutsideTemperature != nil)
	need("simulation_minutes", in.SimulationMinutes != nil)
	need("room_volume", in.RoomVolume != nil)
	need("heater_max_power", in.HeaterMaxPower != nil)
	need("heat_loss_coefficient", in.HeatLossCoefficient != nil)
	need("kp", in.Kp != nil)
	need("ti", in.Ti != nil)
	need("td", in.Td != nil)

	lossModel := LossModelCube
	if in.LossModel != nil {
		m, err := ParseLossModel(*in.LossModel)
		if err != nil {
			return Params{}, fmt.Errorf("%w: %w", ErrInvalidParameter, err)
		}
		lossModel = m
	}
	switch lossModel {
	case LossModelCube:
		need("exposed_walls", in.ExposedWalls != nil)
	case LossModelFlat:
		need("wall_area", in.WallArea != nil)
	}
	if len(missing) > 0 {
		return Params{}, fmt.Errorf("%w: %s", ErrMissingInput, strings.Join(missing, ", "))
	}

	equation := EquationGainScaledAll
	if in.Equation != nil {
		eq, err := ParseControllerEquation(*in.Equation)
		if err != nil {
			return Params{}, fmt.Errorf("%w: %w", ErrInvalidParameter, err)
		}
		equation = eq
	}

	p := Params{
		StartTemperature:    *in.StartTemperature,
		SetpointTemperature: *in.SetpointTemperature,
		OutsideTemperature:  *in.OutsideTemperature,
		SimulationMinutes:   *in.SimulationMinutes,
		RoomVolume:          *in.RoomVolume,
		LossModel:           lossModel,
		HeaterMaxPower:      *in.HeaterMaxPower,
		HeatLossCoefficient: *in.HeatLossCoefficient,
		Kp:                  *in.Kp,
		Ti:                  *in.Ti,
		Td:                  *in.Td,
		Equation:            equation,
	}
	if in.WallArea != nil {
		p.WallArea = *in.WallArea
	}
	if in.ExposedWalls != nil {
		p.ExposedWalls = *in.ExposedWalls
	}
	if in.ErrorClamp != nil {
		c := *in.ErrorClamp
		p.ErrorClamp = &c
	}
	if in.DerivativeClamp != nil {
		p.DerivativeClamp = *in.DerivativeClamp
	}

	if err := p.Validate(); err != nil {
		return Params{}, err
	}
	return p, nil
}

// Float and Int return pointers for building an Input literal.
func Float(v float64) *float64 { return &v }
func Int(v int) *int           { return &v }
func Bool(v bool) *bool        { return &v }
func String(v string) *string  { return &v }
