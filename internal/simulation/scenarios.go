package simulation

import (
	"fmt"
	"sort"
)

// Scenario is a named preset of the room, heater and controller.
type Scenario struct {
	Name        string
	Description string
	// Locked lists the Input fields the scenario does not let a caller change.
	Locked   []string
	defaults Input
}

// Input returns a fresh copy of the scenario defaults.
func (s Scenario) Input() Input {
	return Input{}.Merge(s.defaults)
}

// Apply overlays the caller's values on the defaults, ignoring locked fields.
func (s Scenario) Apply(in Input) Input {
	for _, f := range s.Locked {
		clearField(&in, f)
	}
	return s.Input().Merge(in)
}

func (s Scenario) IsLocked(field string) bool {
	for _, f := range s.Locked {
		if f == field {
			return true
		}
	}
	return false
}

var scenarios = map[string]Scenario{
	"custom": {
		Name:        "custom",
		Description: "free-hanging cube exposed to outside air on all six sides, every knob editable",
		defaults: Input{
			StartTemperature:    Float(15),
			SetpointTemperature: Float(25),
			OutsideTemperature:  Float(0),
			SimulationMinutes:   Int(300),
			RoomVolume:          Float(32),
			ExposedWalls:        Int(6),
			LossModel:           String(LossModelCube.String()),
			HeaterMaxPower:      Float(1200),
			HeatLossCoefficient: Float(0.2),
			Kp:                  Float(8.2),
			Ti:                  Float(200),
			Td:                  Float(1),
			Equation:            String(EquationGainScaledPartial.String()),
			ErrorClamp:          Float(2),
			DerivativeClamp:     Bool(false),
		},
	},
	"fictional": {
		Name:        "fictional",
		Description: "34 m³ cube exposed on all six sides with fixed, aggressive gains",
		Locked: []string{
			"simulation_minutes", "room_volume", "exposed_walls", "loss_model",
			"heater_max_power", "heat_loss_coefficient", "kp", "ti", "td",
			"equation", "error_clamp",
		},
		defaults: Input{
			StartTemperature:    Float(15),
			SetpointTemperature: Float(25),
			OutsideTemperature:  Float(0),
			SimulationMinutes:   Int(300),
			RoomVolume:          Float(34),
			ExposedWalls:        Int(6),
			LossModel:           String(LossModelCube.String()),
			HeaterMaxPower:      Float(1200),
			HeatLossCoefficient: Float(0.2),
			Kp:                  Float(80),
			Ti:                  Float(450),
			Td:                  Float(100),
			Equation:            String(EquationGainScaledAll.String()),
			ErrorClamp:          Float(2),
			DerivativeClamp:     Bool(false),
		},
	},
	"real": {
		Name:        "real",
		Description: "34 m³ cube with a single wall facing outside, remaining walls lossless",
		Locked: []string{
			"room_volume", "exposed_walls", "loss_model", "heater_max_power",
			"heat_loss_coefficient", "kp", "ti", "td", "equation", "error_clamp",
		},
		defaults: Input{
			StartTemperature:    Float(15),
			SetpointTemperature: Float(25),
			OutsideTemperature:  Float(0),
			SimulationMinutes:   Int(300),
			RoomVolume:          Float(34),
			ExposedWalls:        Int(1),
			LossModel:           String(LossModelCube.String()),
			HeaterMaxPower:      Float(1200),
			HeatLossCoefficient: Float(0.2),
			Kp:                  Float(40),
			Ti:                  Float(600),
			Td:                  Float(1),
			Equation:            String(EquationGainScaledPartial.String()),
			ErrorClamp:          Float(2),
			DerivativeClamp:     Bool(false),
		},
	},
	"legacy": {
		Name:        "legacy",
		Description: "flat loss model: wall area is entered directly and the error is not clamped",
		Locked:      []string{"loss_model", "heat_loss_coefficient", "error_clamp", "equation"},
		defaults: Input{
			StartTemperature:    Float(15),
			SetpointTemperature: Float(15),
			OutsideTemperature:  Float(0),
			SimulationMinutes:   Int(1),
			RoomVolume:          Float(32),
			WallArea:            Float(60),
			LossModel:           String(LossModelFlat.String()),
			HeaterMaxPower:      Float(1200),
			HeatLossCoefficient: Float(0.3),
			Kp:                  Float(1),
			Ti:                  Float(1),
			Td:                  Float(1),
			Equation:            String(EquationGainScaledPartial.String()),
			DerivativeClamp:     Bool(false),
		},
	},
}

const DefaultScenario = "custom"

func ParseScenario(name string) (Scenario, error) {
	s, ok := scenarios[name]
	if !ok {
		return Scenario{}, fmt.Errorf("%w: %q (available: %v)", ErrUnknownScenario, name, ListScenarios())
	}
	return s, nil
}

func ListScenarios() []string {
	names := make([]string, 0, len(scenarios))
	for name := range scenarios {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
