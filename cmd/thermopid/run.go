package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/Agrid-Dev/thermopid/internal/export"
	"github.com/Agrid-Dev/thermopid/internal/render"
	"github.com/Agrid-Dev/thermopid/internal/session"
	"github.com/Agrid-Dev/thermopid/internal/simulation"
)

var runFlags struct {
	scenario string
	format   string
	output   string
	height   int
	width    int

	minutes  int
	setpoint float64
	start    float64
	outside  float64
	kp       float64
	ti       float64
	td       float64
	clamp    float64
	equation string
	dclamp   bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one simulation and print the result",
	Long: `Runs one simulation with the configured scenario and overrides, then
prints a chart, a summary, or the per-second series as CSV or JSON.
Flags override the configuration file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		scenario := cfg.Simulation.Scenario
		if cmd.Flags().Changed("scenario") {
			scenario = runFlags.scenario
		}
		sess, err := session.New(scenario, cfg.Input())
		if err != nil {
			return err
		}
		if err := sess.Update(flagOverrides(cmd)); err != nil {
			return err
		}

		res, err := sess.Run(context.Background())
		if err != nil {
			return err
		}

		write := func(w io.Writer) error { return writeResult(w, sess, res) }
		if runFlags.output == "" {
			return write(cmd.OutOrStdout())
		}
		f, err := os.Create(runFlags.output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		return writeAndClose(f, write)
	},
}

// writeAndClose reports a failed Close as well, since a buffered write may
// only surface there.
func writeAndClose(wc io.WriteCloser, write func(io.Writer) error) error {
	err := write(wc)
	if cerr := wc.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("failed to close output file: %w", cerr)
	}
	return err
}

func init() {
	f := runCmd.Flags()
	f.StringVarP(&runFlags.scenario, "scenario", "s", "", "scenario preset (see 'thermopid scenarios')")
	f.StringVarP(&runFlags.format, "format", "f", "chart", "output format: chart, summary, csv or json")
	f.StringVarP(&runFlags.output, "output", "o", "", "write to file instead of stdout")
	f.IntVar(&runFlags.height, "height", render.DefaultOptions().Height, "chart height in lines")
	f.IntVar(&runFlags.width, "width", render.DefaultOptions().Width, "chart width in columns")

	f.IntVarP(&runFlags.minutes, "minutes", "m", 0, "simulated time in minutes")
	f.Float64Var(&runFlags.setpoint, "setpoint", 0, "setpoint temperature in °C")
	f.Float64Var(&runFlags.start, "start", 0, "start temperature in °C")
	f.Float64Var(&runFlags.outside, "outside", 0, "outside temperature in °C")
	f.Float64Var(&runFlags.kp, "kp", 0, "proportional gain")
	f.Float64Var(&runFlags.ti, "ti", 0, "integral time in seconds")
	f.Float64Var(&runFlags.td, "td", 0, "derivative time in seconds")
	f.Float64Var(&runFlags.clamp, "error-clamp", 0, "error clamp in °C")
	f.StringVar(&runFlags.equation, "equation", "", "controller equation: gain-scaled-all or gain-scaled-partial")
	f.BoolVar(&runFlags.dclamp, "derivative-clamp", false, "clamp the derivative term to ±2")
}

// flagOverrides collects only the flags given on the command line.
func flagOverrides(cmd *cobra.Command) simulation.Input {
	var in simulation.Input
	changed := cmd.Flags().Changed
	if changed("minutes") {
		in.SimulationMinutes = simulation.Int(runFlags.minutes)
	}
	if changed("setpoint") {
		in.SetpointTemperature = simulation.Float(runFlags.setpoint)
	}
	if changed("start") {
		in.StartTemperature = simulation.Float(runFlags.start)
	}
	if changed("outside") {
		in.OutsideTemperature = simulation.Float(runFlags.outside)
	}
	if changed("kp") {
		in.Kp = simulation.Float(runFlags.kp)
	}
	if changed("ti") {
		in.Ti = simulation.Float(runFlags.ti)
	}
	if changed("td") {
		in.Td = simulation.Float(runFlags.td)
	}
	if changed("error-clamp") {
		in.ErrorClamp = simulation.Float(runFlags.clamp)
	}
	if changed("equation") {
		in.Equation = simulation.String(runFlags.equation)
	}
	if changed("derivative-clamp") {
		in.DerivativeClamp = simulation.Bool(runFlags.dclamp)
	}
	return in
}

func writeResult(w io.Writer, sess *session.Session, res *simulation.Result) error {
	st := sess.Get()
	switch runFlags.format {
	case "csv":
		return export.WriteCSV(w, res)
	case "json":
		return export.WriteJSON(w, st.Scenario, res, *st.LatestParams)
	case "summary":
		sum, err := sess.Summary()
		if err != nil {
			return err
		}
		return printSummary(w, st.Scenario, sum)
	case "chart":
		setpoint := st.LatestParams.SetpointTemperature
		chart, err := render.Chart(res, nil, render.Options{
			Height:   runFlags.height,
			Width:    runFlags.width,
			Setpoint: &setpoint,
		})
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, chart)
		return err
	default:
		return fmt.Errorf("unknown format %q", runFlags.format)
	}
}

func printSummary(w io.Writer, scenario string, s simulation.Summary) error {
	settled := "never"
	if s.SettledAfterSecond >= 0 {
		settled = fmt.Sprintf("%.1f min", simulation.Minutes(s.SettledAfterSecond))
	}
	data := pterm.TableData{
		{"scenario", scenario},
		{"simulated", fmt.Sprintf("%.0f min", simulation.Minutes(s.Steps))},
		{"final temperature", fmt.Sprintf("%.2f °C", s.FinalTemperature)},
		{"min / max", fmt.Sprintf("%.2f / %.2f °C", s.MinTemperature, s.MaxTemperature)},
		{"final error", fmt.Sprintf("%.3f °C", s.FinalError)},
		{"heater peak / mean", fmt.Sprintf("%.0f / %.0f W", s.MaxControlOutput, s.MeanControlOutput)},
		{"energy", fmt.Sprintf("%.3f kWh", s.EnergyKWh)},
		{"saturated", fmt.Sprintf("%d s", s.SaturatedSeconds)},
		{"settled after", settled},
	}
	table, err := pterm.DefaultTable.WithData(data).Srender()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, table)
	return err
}
