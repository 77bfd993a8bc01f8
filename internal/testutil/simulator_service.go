package testutil

import (
	"context"

	"github.com/Agrid-Dev/thermopid/internal/session"
	"github.com/Agrid-Dev/thermopid/internal/simulation"
)

// FakeSimulatorService is a reusable fake implementing ports.SimulatorService.
// Put ONLY what multiple test packages need here.
type FakeSimulatorService struct {
	S     session.State
	Stat  session.Stats
	Sum   simulation.Summary
	Locks []string

	UpdateCalled bool
	UpdateArg    simulation.Input
	UpdateErr    error

	SetScenarioCalled bool
	SetScenarioArg    string
	SetScenarioErr    error

	RunCalled bool
	RunResult *simulation.Result
	RunErr    error

	ResetCalled bool

	SummaryErr error
}

func NewFakeSimulatorService() *FakeSimulatorService {
	sc, _ := simulation.ParseScenario(simulation.DefaultScenario)
	return &FakeSimulatorService{
		S: session.State{
			Scenario: sc.Name,
			Input:    sc.Input(),
		},
		RunResult: &simulation.Result{
			Temperature:   []float64{15, 15.5, 16},
			ControlOutput: []float64{1200, 1200, 900},
			Error:         []float64{2, 2, 2},
			AirDensity:    []float64{1.22, 1.22, 1.21},
		},
		Sum: simulation.Summary{Steps: 3, FinalTemperature: 16, MaxControlOutput: 1200, SettledAfterSecond: -1},
	}
}

func (f *FakeSimulatorService) Get() session.State   { return f.S }
func (f *FakeSimulatorService) Stats() session.Stats { return f.Stat }

func (f *FakeSimulatorService) Update(in simulation.Input) error {
	f.UpdateCalled = true
	f.UpdateArg = in
	if f.UpdateErr != nil {
		return f.UpdateErr
	}
	f.S.Input = f.S.Input.Merge(in)
	return nil
}

func (f *FakeSimulatorService) SetScenario(name string) error {
	f.SetScenarioCalled = true
	f.SetScenarioArg = name
	if f.SetScenarioErr != nil {
		return f.SetScenarioErr
	}
	f.S.Scenario = name
	return nil
}

func (f *FakeSimulatorService) Run(context.Context) (*simulation.Result, error) {
	f.RunCalled = true
	if f.RunErr != nil {
		return nil, f.RunErr
	}
	f.S.Previous = f.S.Latest
	f.S.Latest = f.RunResult
	f.Stat.Runs++
	return f.RunResult, nil
}

func (f *FakeSimulatorService) Reset() {
	f.ResetCalled = true
	f.S.Latest = nil
	f.S.Previous = nil
}

func (f *FakeSimulatorService) Summary() (simulation.Summary, error) {
	if f.SummaryErr != nil {
		return simulation.Summary{}, f.SummaryErr
	}
	if f.S.Latest == nil {
		return simulation.Summary{}, session.ErrNoResult
	}
	return f.Sum, nil
}
