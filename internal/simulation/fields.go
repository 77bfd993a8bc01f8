package simulation

func clearField(in *Input, field string) {
	switch field {
	case "start_temperature":
		in.StartTemperature = nil
	case "setpoint_temperature":
		in.SetpointTemperature = nil
	case "outside_temperature":
		in.OutsideTemperature = nil
	case "simulation_minutes":
		in.SimulationMinutes = nil
	case "room_volume":
		in.RoomVolume = nil
	case "wall_area":
		in.WallArea = nil
	case "exposed_walls":
		in.ExposedWalls = nil
	case "loss_model":
		in.LossModel = nil
	case "heater_max_power":
		in.HeaterMaxPower = nil
	case "heat_loss_coefficient":
		in.HeatLossCoefficient = nil
	case "kp":
		in.Kp = nil
	case "ti":
		in.Ti = nil
	case "td":
		in.Td = nil
	case "equation":
		in.Equation = nil
	case "error_clamp":
		in.ErrorClamp = nil
	case "derivative_clamp":
		in.DerivativeClamp = nil
	}
}

// IsSet reports whether the named field (snake_case, as in JSON) is present.
func (in Input) IsSet(field string) bool {
	switch field {
	case "start_temperature":
		return in.StartTemperature != nil
	case "setpoint_temperature":
		return in.SetpointTemperature != nil
	case "outside_temperature":
		return in.OutsideTemperature != nil
	case "simulation_minutes":
		return in.SimulationMinutes != nil
	case "room_volume":
		return in.RoomVolume != nil
	case "wall_area":
		return in.WallArea != nil
	case "exposed_walls":
		return in.ExposedWalls != nil
	case "loss_model":
		return in.LossModel != nil
	case "heater_max_power":
		return in.HeaterMaxPower != nil
	case "heat_loss_coefficient":
		return in.HeatLossCoefficient != nil
	case "kp":
		return in.Kp != nil
	case "ti":
		return in.Ti != nil
	case "td":
		return in.Td != nil
	case "equation":
		return in.Equation != nil
	case "error_clamp":
		return in.ErrorClamp != nil
	case "derivative_clamp":
		return in.DerivativeClamp != nil
	}
	return false
}
