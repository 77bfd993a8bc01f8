package simulation

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scenarioA is the free-hanging 32 m³ cube heated from 15 to 25 °C.
func scenarioA(opts ...func(*Params)) Params {
	return newTestParams(opts...)
}

func amplitude(series []float64) float64 {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range series {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return hi - lo
}

func TestRunSeriesLength(t *testing.T) {
	for _, minutes := range []int{0, 1, 7, 60} {
		res, err := Run(scenarioA(func(p *Params) { p.SimulationMinutes = minutes }))
		require.NoError(t, err)

		want := minutes * 60
		assert.Len(t, res.Temperature, want)
		assert.Len(t, res.ControlOutput, want)
		assert.Len(t, res.Error, want)
		assert.Len(t, res.AirDensity, want)
		assert.Equal(t, want, res.Len())
	}
}

func TestRunSaturationAndErrorClamp(t *testing.T) {
	for _, name := range ListScenarios() {
		t.Run(name, func(t *testing.T) {
			s, err := ParseScenario(name)
			require.NoError(t, err)
			p, err := s.Input().Params()
			require.NoError(t, err)

			res, err := Run(p)
			require.NoError(t, err)

			for i, u := range res.ControlOutput {
				if u < 0 || u > p.HeaterMaxPower {
					t.Fatalf("control output %v at second %d outside [0, %v]", u, i, p.HeaterMaxPower)
				}
			}
			if p.ErrorClamp == nil {
				return
			}
			for i, e := range res.Error {
				if math.Abs(e) > *p.ErrorClamp {
					t.Fatalf("error %v at second %d exceeds clamp %v", e, i, *p.ErrorClamp)
				}
			}
		})
	}
}

func TestRunScenarioAConverges(t *testing.T) {
	p := scenarioA()
	res, err := Run(p)
	require.NoError(t, err)

	final := res.Temperature[res.Len()-1]
	assert.InDelta(t, p.SetpointTemperature, final, *p.ErrorClamp)

	// peak-to-peak swing of each hour after the first must shrink
	hour := 3600
	prev := math.Inf(1)
	for h := 1; h < p.SimulationMinutes/60; h++ {
		amp := amplitude(res.Temperature[h*hour : (h+1)*hour])
		assert.Less(t, amp, prev, "oscillation grew in hour %d", h)
		prev = amp
	}
	assert.Less(t, prev, 1.0)
}

func TestRunHeatsMonotonicallyWhileSaturated(t *testing.T) {
	p := scenarioA(func(p *Params) { p.Kp = 600 })
	res, err := Run(p)
	require.NoError(t, err)

	for i := 1; i < 400; i++ {
		require.GreaterOrEqual(t, res.Temperature[i], res.Temperature[i-1], "temperature dropped at second %d", i)
		require.Equal(t, p.HeaterMaxPower, res.ControlOutput[i], "heater not saturated at second %d", i)
	}
	assert.InDelta(t, p.SetpointTemperature, res.Temperature[res.Len()-1], 0.01)
}

func TestRunZeroTiFails(t *testing.T) {
	res, err := Run(scenarioA(func(p *Params) { p.Ti = 0 }))
	assert.ErrorIs(t, err, ErrInvalidParameter)
	assert.Nil(t, res)
}

func TestRunZeroMinutes(t *testing.T) {
	res, err := Run(scenarioA(func(p *Params) { p.SimulationMinutes = 0 }))
	require.NoError(t, err)
	assert.NotNil(t, res.Temperature)
	assert.Empty(t, res.Temperature)
	assert.Empty(t, res.ControlOutput)
	assert.Empty(t, res.Error)
}

func TestRunAlreadyAtSetpoint(t *testing.T) {
	p := scenarioA(func(p *Params) {
		p.StartTemperature = 20
		p.SetpointTemperature = 20
		p.OutsideTemperature = 20
		p.SimulationMinutes = 60
	})
	res, err := Run(p)
	require.NoError(t, err)

	for i := range res.Len() {
		require.InDelta(t, 20, res.Temperature[i], *p.ErrorClamp)
		require.InDelta(t, 0, res.ControlOutput[i], 1e-9)
	}
}

func TestRunRecordsTemperatureBeforeUpdate(t *testing.T) {
	p := scenarioA(func(p *Params) { p.SimulationMinutes = 1 })
	res, err := Run(p)
	require.NoError(t, err)

	assert.Equal(t, p.StartTemperature, res.Temperature[0])
	assert.InDelta(t, 8.2*(2+2.0/200+2), res.ControlOutput[0], 1e-9)
	assert.Equal(t, 2.0, res.Error[0])

	loss := HeatLoss(p.StartTemperature, p.OutsideTemperature, p.EffectiveWallArea(), p.HeatLossCoefficient)
	mass := AirDensity(p.StartTemperature) * p.RoomVolume
	want := p.StartTemperature + (res.ControlOutput[0]-loss)/(mass*AirSpecificHeatCapacity)
	assert.InDelta(t, want, res.Temperature[1], 1e-12)
	assert.Equal(t, AirDensity(p.StartTemperature), res.AirDensity[0])
}

func TestRunUnclampedError(t *testing.T) {
	p := scenarioA(func(p *Params) {
		p.ErrorClamp = nil
		p.SimulationMinutes = 1
	})
	res, err := Run(p)
	require.NoError(t, err)
	assert.Equal(t, 10.0, res.Error[0])
}

func TestRunEquationVariantsAgree(t *testing.T) {
	all, err := Run(scenarioA(func(p *Params) { p.Equation = EquationGainScaledAll }))
	require.NoError(t, err)
	partial, err := Run(scenarioA(func(p *Params) { p.Equation = EquationGainScaledPartial }))
	require.NoError(t, err)

	assert.InDeltaSlice(t, all.Temperature, partial.Temperature, 1e-9)
	assert.InDeltaSlice(t, all.ControlOutput, partial.ControlOutput, 1e-6)
}

func TestRunIsDeterministicAcrossGoroutines(t *testing.T) {
	p := scenarioA(func(p *Params) { p.SimulationMinutes = 30 })
	want, err := Run(p)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]*Result, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], _ = Run(p)
		}()
	}
	wg.Wait()

	for _, got := range results {
		require.Equal(t, want, got)
	}
}

func TestRunRejectsUnstableRoom(t *testing.T) {
	p := scenarioA(func(p *Params) {
		p.RoomVolume = 1
		p.HeatLossCoefficient = 1000
		p.SimulationMinutes = 1
	})
	res, err := Run(p)
	assert.ErrorIs(t, err, ErrUnstableTimeStep)
	assert.ErrorIs(t, err, ErrInvalidParameter)
	assert.Nil(t, res)
}

func TestRunFastRoomStaysBounded(t *testing.T) {
	p := scenarioA(func(p *Params) {
		p.RoomVolume = 1
		p.HeatLossCoefficient = 183
		p.HeaterMaxPower = 100
		p.SimulationMinutes = 60
	})
	res, err := Run(p)
	require.NoError(t, err)

	for i, temp := range res.Temperature {
		if math.IsNaN(temp) || temp < p.OutsideTemperature || temp > p.StartTemperature {
			t.Fatalf("temperature %v at second %d outside [%v, %v]", temp, i, p.OutsideTemperature, p.StartTemperature)
		}
	}
	for i, rho := range res.AirDensity {
		if rho <= 0 || math.IsInf(rho, 0) {
			t.Fatalf("air density %v at second %d", rho, i)
		}
	}
}
