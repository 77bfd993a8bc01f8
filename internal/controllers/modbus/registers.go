package modbusctrl

import (
	"fmt"

	"github.com/Agrid-Dev/thermopid/internal/simulation"
)

// Holding register map. Temperatures, volume, area, loss coefficient, kp,
// td and the error clamp are signed and scaled by Scale. Power, ti, minutes
// and wall count are unsigned whole numbers. Enums use their numeric value.
const (
	HoldingStartTemperature = iota
	HoldingSetpointTemperature
	HoldingOutsideTemperature
	HoldingSimulationMinutes
	HoldingRoomVolume
	HoldingWallArea
	HoldingExposedWalls
	HoldingHeaterMaxPower
	HoldingHeatLossCoefficient
	HoldingKp
	HoldingTi
	HoldingTd
	HoldingErrorClamp
	HoldingEquation
	HoldingLossModel
)

type holding struct {
	name  string
	read  func(simulation.Input) uint16
	write func(uint16) (simulation.Input, error)
}

var holdingRegisters = []holding{
	HoldingStartTemperature:    scaledFloat("start_temperature", func(in *simulation.Input) **float64 { return &in.StartTemperature }),
	HoldingSetpointTemperature: scaledFloat("setpoint_temperature", func(in *simulation.Input) **float64 { return &in.SetpointTemperature }),
	HoldingOutsideTemperature:  scaledFloat("outside_temperature", func(in *simulation.Input) **float64 { return &in.OutsideTemperature }),
	HoldingSimulationMinutes:   wholeInt("simulation_minutes", func(in *simulation.Input) **int { return &in.SimulationMinutes }),
	HoldingRoomVolume:          scaledFloat("room_volume", func(in *simulation.Input) **float64 { return &in.RoomVolume }),
	HoldingWallArea:            scaledFloat("wall_area", func(in *simulation.Input) **float64 { return &in.WallArea }),
	HoldingExposedWalls:        wholeInt("exposed_walls", func(in *simulation.Input) **int { return &in.ExposedWalls }),
	HoldingHeaterMaxPower:      wholeFloat("heater_max_power", func(in *simulation.Input) **float64 { return &in.HeaterMaxPower }),
	HoldingHeatLossCoefficient: scaledFloat("heat_loss_coefficient", func(in *simulation.Input) **float64 { return &in.HeatLossCoefficient }),
	HoldingKp:                  scaledFloat("kp", func(in *simulation.Input) **float64 { return &in.Kp }),
	HoldingTi:                  wholeFloat("ti", func(in *simulation.Input) **float64 { return &in.Ti }),
	HoldingTd:                  scaledFloat("td", func(in *simulation.Input) **float64 { return &in.Td }),
	HoldingErrorClamp:          errorClamp(),
	HoldingEquation:            equation(),
	HoldingLossModel:           lossModel(),
}

func scaledFloat(name string, field func(*simulation.Input) **float64) holding {
	return holding{
		name: name,
		read: func(in simulation.Input) uint16 {
			if p := *field(&in); p != nil {
				return encodeScaled(*p)
			}
			return 0
		},
		write: func(v uint16) (simulation.Input, error) {
			var in simulation.Input
			f := decodeScaled(v)
			*field(&in) = &f
			return in, nil
		},
	}
}

func wholeFloat(name string, field func(*simulation.Input) **float64) holding {
	return holding{
		name: name,
		read: func(in simulation.Input) uint16 {
			if p := *field(&in); p != nil {
				return encodeUnsigned(*p)
			}
			return 0
		},
		write: func(v uint16) (simulation.Input, error) {
			var in simulation.Input
			f := float64(v)
			*field(&in) = &f
			return in, nil
		},
	}
}

func wholeInt(name string, field func(*simulation.Input) **int) holding {
	return holding{
		name: name,
		read: func(in simulation.Input) uint16 {
			if p := *field(&in); p != nil {
				return encodeUnsigned(float64(*p))
			}
			return 0
		},
		write: func(v uint16) (simulation.Input, error) {
			var in simulation.Input
			i := int(v)
			*field(&in) = &i
			return in, nil
		},
	}
}

// errorClamp reads 0 when the error is not clamped. Writing 0 is rejected
// since the clamp cannot be removed once set.
func errorClamp() holding {
	h := scaledFloat("error_clamp", func(in *simulation.Input) **float64 { return &in.ErrorClamp })
	write := h.write
	h.write = func(v uint16) (simulation.Input, error) {
		if int16(v) <= 0 {
			return simulation.Input{}, fmt.Errorf("%w: error_clamp must be greater than zero", simulation.ErrInvalidParameter)
		}
		return write(v)
	}
	return h
}

func equation() holding {
	return holding{
		name: "equation",
		read: func(in simulation.Input) uint16 {
			if in.Equation == nil {
				return 0
			}
			eq, _ := simulation.ParseControllerEquation(*in.Equation)
			return uint16(eq)
		},
		write: func(v uint16) (simulation.Input, error) {
			eq := simulation.ControllerEquation(v)
			if !eq.Valid() {
				return simulation.Input{}, fmt.Errorf("%w: %d", simulation.ErrInvalidEquation, v)
			}
			name := eq.String()
			return simulation.Input{Equation: &name}, nil
		},
	}
}

func lossModel() holding {
	return holding{
		name: "loss_model",
		read: func(in simulation.Input) uint16 {
			if in.LossModel == nil {
				return 0
			}
			m, _ := simulation.ParseLossModel(*in.LossModel)
			return uint16(m)
		},
		write: func(v uint16) (simulation.Input, error) {
			m := simulation.LossModel(v)
			if !m.Valid() {
				return simulation.Input{}, fmt.Errorf("%w: %d", simulation.ErrInvalidLossModel, v)
			}
			name := m.String()
			return simulation.Input{LossModel: &name}, nil
		},
	}
}
