package simulation

// Result holds the index-aligned series of one run; index i is simulated
// second i. Temperature[i] is the temperature observed before step i was
// applied.
type Result struct {
	Temperature   []float64 `json:"temperature"`
	ControlOutput []float64 `json:"control_output"`
	Error         []float64 `json:"error"`
	AirDensity    []float64 `json:"air_density"`
}

func (r *Result) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Temperature)
}

// Minutes converts a step index to elapsed minutes for plotting.
func Minutes(i int) float64 {
	return float64(i) / 60
}

// Run validates params and simulates the room for params.TotalSteps()
// seconds. Nothing is returned if validation fails.
func Run(params Params) (*Result, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	steps := params.TotalSteps()
	result := &Result{
		Temperature:   make([]float64, 0, steps),
		ControlOutput: make([]float64, 0, steps),
		Error:         make([]float64, 0, steps),
		AirDensity:    make([]float64, 0, steps),
	}

	wallArea := params.EffectiveWallArea()
	reg := NewRegulator(params)
	dt := TimeStep.Seconds()
	current := params.StartTemperature

	for range steps {
		density := AirDensity(current)
		loss := HeatLoss(current, params.OutsideTemperature, wallArea, params.HeatLossCoefficient)

		output, err := reg.Update(params.SetpointTemperature, current, TimeStep)

		result.Temperature = append(result.Temperature, current)
		result.ControlOutput = append(result.ControlOutput, output)
		result.Error = append(result.Error, err)
		result.AirDensity = append(result.AirDensity, density)

		current += (output - loss) * dt / ThermalMass(current, params.RoomVolume)
	}

	return result, nil
}
