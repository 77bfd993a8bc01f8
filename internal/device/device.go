package device

import (
	"context"
	"errors"
	"fmt"

	"github.com/oklog/run"
	log "github.com/sirupsen/logrus"

	"github.com/Agrid-Dev/thermopid/internal/session"
)

// Runner is a controller that serves until ctx is canceled.
type Runner interface {
	Run(ctx context.Context) error
}

type attached struct {
	name string
	r    Runner
}

// Device is one simulated room exposed through any number of controllers.
type Device struct {
	ID      string
	Session *session.Session

	runners []attached
}

func New(id string, s *session.Session) *Device {
	return &Device{ID: id, Session: s}
}

func (d *Device) Attach(name string, r Runner) {
	d.runners = append(d.runners, attached{name: name, r: r})
}

func (d *Device) Controllers() []string {
	names := make([]string, 0, len(d.runners))
	for _, a := range d.runners {
		names = append(names, a.name)
	}
	return names
}

// Run starts every attached controller and blocks until ctx is canceled or
// one of them fails, then stops the others. Cancellation is not an error.
func (d *Device) Run(ctx context.Context) error {
	if len(d.runners) == 0 {
		return errors.New("device: no controller attached")
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var g run.Group
	for _, a := range d.runners {
		logger := log.WithFields(log.Fields{"device_id": d.ID, "controller": a.name})
		g.Add(func() error {
			logger.Info("controller started")
			err := a.r.Run(ctx)
			logger.Info("controller stopped")
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("%s: %w", a.name, err)
			}
			return err
		}, func(error) {
			cancel()
		})
	}

	err := g.Run()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
