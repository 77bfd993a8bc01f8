package render

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/guptarohit/asciigraph"

	"github.com/Agrid-Dev/thermopid/internal/simulation"
)

var ErrEmptyResult = errors.New("nothing to plot")

type Options struct {
	Height int
	Width  int
	// Setpoint is drawn as a flat line on the temperature panel.
	Setpoint *float64
}

func DefaultOptions() Options {
	return Options{Height: 15, Width: 100}
}

// Chart renders temperature, heater output and error panels for latest,
// with previous overlaid when not nil. Series are sampled once per simulated
// minute so the x axis reads in minutes.
func Chart(latest, previous *simulation.Result, opts Options) (string, error) {
	if latest.Len() == 0 {
		return "", ErrEmptyResult
	}
	if opts.Height <= 0 {
		opts.Height = DefaultOptions().Height
	}

	panels := []struct {
		caption string
		pick    func(*simulation.Result) []float64
		unit    string
	}{
		{"temperature", func(r *simulation.Result) []float64 { return r.Temperature }, "°C"},
		{"heater output", func(r *simulation.Result) []float64 { return r.ControlOutput }, "W"},
		{"error", func(r *simulation.Result) []float64 { return r.Error }, "°C"},
	}

	var sb strings.Builder
	for i, p := range panels {
		n := latest.Len()
		if previous.Len() > n {
			n = previous.Len()
		}
		series := [][]float64{PerMinute(p.pick(latest), n)}
		colors := []asciigraph.AnsiColor{asciigraph.Red}
		if previous.Len() > 0 {
			series = append(series, PerMinute(p.pick(previous), n))
			colors = append(colors, asciigraph.Blue)
		}
		if i == 0 && opts.Setpoint != nil {
			series = append(series, constant(*opts.Setpoint, len(series[0])))
			colors = append(colors, asciigraph.Green)
		}

		graphOpts := []asciigraph.Option{
			asciigraph.Height(opts.Height),
			asciigraph.SeriesColors(colors...),
			asciigraph.Caption(caption(p.caption, p.unit, previous.Len() > 0)),
		}
		if opts.Width > 0 && opts.Width < len(series[0]) {
			graphOpts = append(graphOpts, asciigraph.Width(opts.Width))
		}
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(asciigraph.PlotMany(series, graphOpts...))
	}
	return sb.String(), nil
}

func caption(name, unit string, withPrevious bool) string {
	c := fmt.Sprintf("%s [%s] over time [min]", name, unit)
	if withPrevious {
		c += " (red: current, blue: previous)"
	}
	return c
}

// PerMinute samples values at every full minute of an n second run, plus
// the last second. Positions beyond len(values) are NaN so runs of different
// lengths share one x axis.
func PerMinute(values []float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	out := make([]float64, 0, (n-1)/60+2)
	at := func(i int) float64 {
		if i < len(values) {
			return values[i]
		}
		return math.NaN()
	}
	for i := 0; i < n; i += 60 {
		out = append(out, at(i))
	}
	if (n-1)%60 != 0 {
		out = append(out, at(n-1))
	}
	return out
}

func constant(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}
