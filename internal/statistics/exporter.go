package statistics

import "github.com/prometheus/client_golang/prometheus"

const (
	namespace = "thermopid"
)

// NewRegistry returns a registry holding the Go runtime collectors and the
// given collectors.
func NewRegistry(collectors ...prometheus.Collector) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	reg.MustRegister(collectors...)
	return reg
}
