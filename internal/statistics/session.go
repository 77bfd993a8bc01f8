package statistics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Agrid-Dev/thermopid/internal/ports"
)

const sessionSubsystem = "session"

type SessionCollector struct {
	svc      ports.SimulatorService
	deviceID string

	runs            *prometheus.Desc
	failedRuns      *prometheus.Desc
	resets          *prometheus.Desc
	lastRunDuration *prometheus.Desc
	lastRunSteps    *prometheus.Desc

	finalTemperature *prometheus.Desc
	maxControlOutput *prometheus.Desc
	energy           *prometheus.Desc
}

func NewSessionCollector(svc ports.SimulatorService, deviceID string) *SessionCollector {
	labels := []string{"device_id"}
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, sessionSubsystem, name), help, labels, nil)
	}
	return &SessionCollector{
		svc:      svc,
		deviceID: deviceID,

		runs:            desc("runs_total", "Number of completed simulation runs"),
		failedRuns:      desc("failed_runs_total", "Number of runs rejected by parameter validation"),
		resets:          desc("resets_total", "Number of times the stored results were cleared"),
		lastRunDuration: desc("last_run_duration_seconds", "Wall clock time of the latest run"),
		lastRunSteps:    desc("last_run_steps", "Simulated seconds of the latest run"),

		finalTemperature: desc("latest_final_temperature_celsius", "Room temperature at the end of the latest run"),
		maxControlOutput: desc("latest_max_control_output_watts", "Peak heater power of the latest run"),
		energy:           desc("latest_energy_kwh", "Heater energy used by the latest run"),
	}
}

func (c *SessionCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.runs
	ch <- c.failedRuns
	ch <- c.resets
	ch <- c.lastRunDuration
	ch <- c.lastRunSteps
	ch <- c.finalTemperature
	ch <- c.maxControlOutput
	ch <- c.energy
}

// Collect implements required collect function for all prometheus collectors
func (c *SessionCollector) Collect(ch chan<- prometheus.Metric) {
	st := c.svc.Stats()
	ch <- prometheus.MustNewConstMetric(c.runs, prometheus.CounterValue, float64(st.Runs), c.deviceID)
	ch <- prometheus.MustNewConstMetric(c.failedRuns, prometheus.CounterValue, float64(st.FailedRuns), c.deviceID)
	ch <- prometheus.MustNewConstMetric(c.resets, prometheus.CounterValue, float64(st.Resets), c.deviceID)
	ch <- prometheus.MustNewConstMetric(c.lastRunDuration, prometheus.GaugeValue, st.LastRunDuration.Seconds(), c.deviceID)
	ch <- prometheus.MustNewConstMetric(c.lastRunSteps, prometheus.GaugeValue, float64(st.LastRunSteps), c.deviceID)

	sum, err := c.svc.Summary()
	if err != nil {
		return
	}
	ch <- prometheus.MustNewConstMetric(c.finalTemperature, prometheus.GaugeValue, sum.FinalTemperature, c.deviceID)
	ch <- prometheus.MustNewConstMetric(c.maxControlOutput, prometheus.GaugeValue, sum.MaxControlOutput, c.deviceID)
	ch <- prometheus.MustNewConstMetric(c.energy, prometheus.GaugeValue, sum.EnergyKWh, c.deviceID)
}
