package simulation

import "time"

// Regulator is a discrete PID controller with error clamping, optional
// derivative clamping and output saturation to [0, HeaterMaxPower].
type Regulator struct {
	kp, ti, td      float64
	equation        ControllerEquation
	errorClamp      *float64
	derivativeClamp bool
	maxOutput       float64

	integral  float64
	prevError float64
}

func NewRegulator(p Params) *Regulator {
	return &Regulator{
		kp:              p.Kp,
		ti:              p.Ti,
		td:              p.Td,
		equation:        p.Equation,
		errorClamp:      p.ErrorClamp,
		derivativeClamp: p.DerivativeClamp,
		maxOutput:       p.HeaterMaxPower,
	}
}

// Update advances the controller by dt and returns the saturated heater
// power together with the (possibly clamped) error it acted on.
func (r *Regulator) Update(setpoint, measured float64, dt time.Duration) (output, err float64) {
	seconds := dt.Seconds()

	err = setpoint - measured
	if r.errorClamp != nil {
		err = clamp(err, -*r.errorClamp, *r.errorClamp)
	}

	r.integral += err * seconds
	derivative := (err - r.prevError) / seconds
	if r.derivativeClamp {
		derivative = clamp(derivative, -DerivativeLimit, DerivativeLimit)
	}
	r.prevError = err

	output = clamp(r.pid(err, r.integral, derivative), 0, r.maxOutput)
	return output, err
}

func (r *Regulator) pid(e, integral, derivative float64) float64 {
	switch r.equation {
	case EquationGainScaledPartial:
		return r.kp * (e + (1/r.ti)*integral + r.td*derivative)
	default:
		return r.kp*e + (r.kp/r.ti)*integral + r.kp*r.td*derivative
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
