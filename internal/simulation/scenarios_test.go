package simulation

import (
	"errors"
	"slices"
	"testing"
)

func TestListScenarios(t *testing.T) {
	want := []string{"custom", "fictional", "legacy", "real"}
	if got := ListScenarios(); !slices.Equal(got, want) {
		t.Fatalf("ListScenarios() = %v, want %v", got, want)
	}
}

func TestParseScenarioUnknown(t *testing.T) {
	if _, err := ParseScenario("attic"); !errors.Is(err, ErrUnknownScenario) {
		t.Fatalf("expected ErrUnknownScenario, got %v", err)
	}
}

func TestScenarioDefaultsAreRunnable(t *testing.T) {
	for _, name := range ListScenarios() {
		t.Run(name, func(t *testing.T) {
			s, _ := ParseScenario(name)
			p, err := s.Input().Params()
			if err != nil {
				t.Fatalf("default input of %s invalid: %v", name, err)
			}
			if _, err := Run(p); err != nil {
				t.Fatalf("Run() failed: %v", err)
			}
		})
	}
}

func TestScenarioApplyKeepsLockedFields(t *testing.T) {
	s, _ := ParseScenario("real")
	in := s.Apply(Input{
		Kp:                  Float(1),
		ExposedWalls:        Int(6),
		SetpointTemperature: Float(21),
	})

	if *in.Kp != 40 {
		t.Errorf("kp = %v, want locked 40", *in.Kp)
	}
	if *in.ExposedWalls != 1 {
		t.Errorf("exposed walls = %v, want locked 1", *in.ExposedWalls)
	}
	if *in.SetpointTemperature != 21 {
		t.Errorf("setpoint = %v, want 21", *in.SetpointTemperature)
	}
	if !s.IsLocked("kp") || s.IsLocked("setpoint_temperature") {
		t.Error("IsLocked() disagrees with the scenario lock list")
	}
}

func TestScenarioInputIsACopy(t *testing.T) {
	s, _ := ParseScenario("custom")
	in := s.Input()
	*in.Kp = 1000

	again := s.Input()
	if *again.Kp != 8.2 {
		t.Fatalf("scenario defaults were modified through Input(): kp=%v", *again.Kp)
	}
}

func TestFictionalScenarioSaturatesOnFirstStep(t *testing.T) {
	s, _ := ParseScenario("fictional")
	p, _ := s.Input().Params()
	p.SimulationMinutes = 1
	res, err := Run(p)
	if err != nil {
		t.Fatal(err)
	}
	if res.ControlOutput[0] != 1200 {
		t.Fatalf("first output = %v, want 1200", res.ControlOutput[0])
	}
	// derivative kick gone, P + I only: 80*2 + 80/450*4
	if !almostEqual(res.ControlOutput[1], 160+80.0/450*4, 1e-9) {
		t.Fatalf("second output = %v", res.ControlOutput[1])
	}
}

func TestRealScenarioWarmsMonotonically(t *testing.T) {
	s, _ := ParseScenario("real")
	p, _ := s.Input().Params()
	res, err := Run(p)
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i < 3000; i++ {
		if res.Temperature[i] < res.Temperature[i-1] {
			t.Fatalf("temperature dropped at second %d: %v -> %v", i, res.Temperature[i-1], res.Temperature[i])
		}
	}
	final := res.Temperature[res.Len()-1]
	if !almostEqual(final, p.SetpointTemperature, *p.ErrorClamp) {
		t.Fatalf("final temperature %v not within clamp of %v", final, p.SetpointTemperature)
	}
}

func TestLegacyScenarioDoesNotClampError(t *testing.T) {
	s, _ := ParseScenario("legacy")
	p, err := s.Apply(Input{SetpointTemperature: Float(25)}).Params()
	if err != nil {
		t.Fatal(err)
	}
	res, err := Run(p)
	if err != nil {
		t.Fatal(err)
	}
	if res.Error[0] != 10 {
		t.Fatalf("first error = %v, want unclamped 10", res.Error[0])
	}
	if res.Len() != 60 {
		t.Fatalf("Len() = %d, want 60", res.Len())
	}
}
