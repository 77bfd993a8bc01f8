package ports

import (
	"context"

	"github.com/Agrid-Dev/thermopid/internal/session"
	"github.com/Agrid-Dev/thermopid/internal/simulation"
)

// SimulatorService is the control-plane port used by controllers (HTTP/MQTT/etc).
type SimulatorService interface {
	Get() session.State
	Stats() session.Stats
	Update(simulation.Input) error
	SetScenario(string) error
	Run(context.Context) (*simulation.Result, error)
	Reset()
	Summary() (simulation.Summary, error)
}
