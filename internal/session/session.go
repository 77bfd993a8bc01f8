package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/Agrid-Dev/thermopid/internal/simulation"
)

// State is a copy of everything a dashboard needs to draw itself.
type State struct {
	Scenario string
	Input    simulation.Input
	Latest   *simulation.Result
	Previous *simulation.Result
	// LatestParams are the parameters Latest was computed with.
	LatestParams *simulation.Params
}

type Stats struct {
	Runs            uint64
	FailedRuns      uint64
	Resets          uint64
	LastRunDuration time.Duration
	LastRunSteps    int
}

// Session holds the form state of one simulator page and the previous
// result kept as a comparison baseline. The engine itself stays stateless.
type Session struct {
	mu       sync.RWMutex
	scenario simulation.Scenario
	input    simulation.Input
	latest   *simulation.Result
	previous *simulation.Result
	params   *simulation.Params
	stats    Stats
	logger   log.FieldLogger
}

func New(scenario string, overrides simulation.Input) (*Session, error) {
	sc, err := simulation.ParseScenario(scenario)
	if err != nil {
		return nil, err
	}
	return &Session{
		scenario: sc,
		input:    sc.Apply(overrides),
		logger:   log.WithField("scenario", sc.Name),
	}, nil
}

func (s *Session) Get() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := State{
		Scenario: s.scenario.Name,
		Input:    s.input.Merge(simulation.Input{}),
		Latest:   s.latest,
		Previous: s.previous,
	}
	if s.params != nil {
		p := *s.params
		st.LatestParams = &p
	}
	return st
}

func (s *Session) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

// SetScenario switches preset and resets the form to its defaults. Results
// are kept so the new scenario can be compared with the last run.
func (s *Session) SetScenario(name string) error {
	sc, err := simulation.ParseScenario(name)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scenario = sc
	s.input = sc.Input()
	s.logger = log.WithField("scenario", sc.Name)
	return nil
}

// Update overlays non-nil fields of in onto the form state. Fields locked
// by the scenario are rejected.
func (s *Session) Update(in simulation.Input) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.scenario.Locked {
		if in.IsSet(f) {
			return fmt.Errorf("%w: %s", ErrLockedField, f)
		}
	}
	s.input = s.input.Merge(in)
	return nil
}

// Run resolves the form into parameters and runs the engine. On success the
// latest result becomes the previous one. On failure nothing changes.
func (s *Session) Run(ctx context.Context) (*simulation.Result, error) {
	s.mu.RLock()
	in := s.input.Merge(simulation.Input{})
	logger := s.logger
	s.mu.RUnlock()

	params, err := in.Params()
	if err != nil {
		s.recordFailure()
		logger.WithError(err).Warn("simulation rejected")
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	started := time.Now()
	res, err := simulation.Run(params)
	if err != nil {
		s.recordFailure()
		return nil, err
	}
	elapsed := time.Since(started)

	s.mu.Lock()
	s.previous = s.latest
	s.latest = res
	s.params = &params
	s.stats.Runs++
	s.stats.LastRunDuration = elapsed
	s.stats.LastRunSteps = res.Len()
	s.mu.Unlock()

	logger.WithFields(log.Fields{
		"steps":    res.Len(),
		"duration": elapsed,
	}).Info("simulation finished")
	return res, nil
}

// Reset drops both the latest and the previous result.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = nil
	s.previous = nil
	s.params = nil
	s.stats.Resets++
}

func (s *Session) recordFailure() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.FailedRuns++
}

// Summary of the latest result, using the error clamp (or 0.5 °C) as the
// settling band.
func (s *Session) Summary() (simulation.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil || s.params == nil {
		return simulation.Summary{}, ErrNoResult
	}
	band := 0.5
	if s.params.ErrorClamp != nil {
		band = *s.params.ErrorClamp
	}
	return s.latest.Summarize(s.params.HeaterMaxPower, band), nil
}
