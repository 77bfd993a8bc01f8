package simulation

import "math"

// Summary condenses a result into the figures shown next to the charts.
type Summary struct {
	Steps              int     `json:"steps"`
	FinalTemperature   float64 `json:"final_temperature"`
	MinTemperature     float64 `json:"min_temperature"`
	MaxTemperature     float64 `json:"max_temperature"`
	FinalError         float64 `json:"final_error"`
	MaxControlOutput   float64 `json:"max_control_output"`
	MeanControlOutput  float64 `json:"mean_control_output"`
	EnergyKWh          float64 `json:"energy_kwh"`
	SaturatedSeconds   int     `json:"saturated_seconds"`
	SettledAfterSecond int     `json:"settled_after_second"` // -1 if never settled
}

// Summarize computes the summary of r. band is the tolerance around the
// setpoint used for the settling time; the run counts as settled from the
// first second after which |error| never again exceeds band.
func (r *Result) Summarize(maxPower, band float64) Summary {
	s := Summary{Steps: r.Len(), SettledAfterSecond: -1}
	if s.Steps == 0 {
		return s
	}

	s.MinTemperature = math.Inf(1)
	s.MaxTemperature = math.Inf(-1)
	var sum float64
	for i, t := range r.Temperature {
		s.MinTemperature = math.Min(s.MinTemperature, t)
		s.MaxTemperature = math.Max(s.MaxTemperature, t)

		u := r.ControlOutput[i]
		sum += u
		s.MaxControlOutput = math.Max(s.MaxControlOutput, u)
		if maxPower > 0 && u >= maxPower {
			s.SaturatedSeconds++
		}
	}
	last := s.Steps - 1
	s.FinalTemperature = r.Temperature[last]
	s.FinalError = r.Error[last]
	s.MeanControlOutput = sum / float64(s.Steps)
	s.EnergyKWh = sum * TimeStep.Seconds() / 3.6e6

	for i := last; i >= 0; i-- {
		if math.Abs(r.Error[i]) > band {
			break
		}
		s.SettledAfterSecond = i
	}
	return s
}
