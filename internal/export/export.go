package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/Agrid-Dev/thermopid/internal/simulation"
)

var csvHeader = []string{"second", "minute", "temperature", "control_output", "error", "air_density"}

// WriteCSV writes one row per simulated second.
func WriteCSV(w io.Writer, r *simulation.Result) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for i := range r.Len() {
		row := []string{
			strconv.Itoa(i),
			formatFloat(simulation.Minutes(i)),
			formatFloat(r.Temperature[i]),
			formatFloat(r.ControlOutput[i]),
			formatFloat(r.Error[i]),
			formatFloat(r.AirDensity[i]),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row %d: %w", i, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

// Document is the JSON export of a run.
type Document struct {
	Scenario string             `json:"scenario,omitempty"`
	Params   *ParamsDocument    `json:"params,omitempty"`
	Summary  simulation.Summary `json:"summary"`
	Result   *simulation.Result `json:"result"`
}

// ParamsDocument mirrors simulation.Params with its enums spelled out.
type ParamsDocument struct {
	StartTemperature    float64  `json:"start_temperature"`
	SetpointTemperature float64  `json:"setpoint_temperature"`
	OutsideTemperature  float64  `json:"outside_temperature"`
	SimulationMinutes   int      `json:"simulation_minutes"`
	RoomVolume          float64  `json:"room_volume"`
	WallArea            float64  `json:"wall_area"`
	ExposedWalls        int      `json:"exposed_walls,omitempty"`
	LossModel           string   `json:"loss_model"`
	HeaterMaxPower      float64  `json:"heater_max_power"`
	HeatLossCoefficient float64  `json:"heat_loss_coefficient"`
	Kp                  float64  `json:"kp"`
	Ti                  float64  `json:"ti"`
	Td                  float64  `json:"td"`
	Equation            string   `json:"equation"`
	ErrorClamp          *float64 `json:"error_clamp,omitempty"`
	DerivativeClamp     bool     `json:"derivative_clamp"`
}

func NewParamsDocument(p simulation.Params) *ParamsDocument {
	return &ParamsDocument{
		StartTemperature:    p.StartTemperature,
		SetpointTemperature: p.SetpointTemperature,
		OutsideTemperature:  p.OutsideTemperature,
		SimulationMinutes:   p.SimulationMinutes,
		RoomVolume:          p.RoomVolume,
		WallArea:            p.EffectiveWallArea(),
		ExposedWalls:        p.ExposedWalls,
		LossModel:           p.LossModel.String(),
		HeaterMaxPower:      p.HeaterMaxPower,
		HeatLossCoefficient: p.HeatLossCoefficient,
		Kp:                  p.Kp,
		Ti:                  p.Ti,
		Td:                  p.Td,
		Equation:            p.Equation.String(),
		ErrorClamp:          p.ErrorClamp,
		DerivativeClamp:     p.DerivativeClamp,
	}
}

// WriteJSON writes the run, the parameters it used and its summary as one
// indented document.
func WriteJSON(w io.Writer, scenario string, r *simulation.Result, p simulation.Params) error {
	band := 0.5
	if p.ErrorClamp != nil {
		band = *p.ErrorClamp
	}
	doc := Document{
		Scenario: scenario,
		Params:   NewParamsDocument(p),
		Summary:  r.Summarize(p.HeaterMaxPower, band),
		Result:   r,
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	return nil
}
