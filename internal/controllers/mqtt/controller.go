package mqttctrl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"github.com/Agrid-Dev/thermopid/internal/ports"
	"github.com/Agrid-Dev/thermopid/internal/simulation"
)

type Config struct {
	// Identity
	DeviceID string

	// MQTT connection
	BrokerURL string
	ClientID  string

	// Topics
	BaseTopic string

	// Behavior
	QoS             byte
	RetainState     bool
	PublishInterval time.Duration

	Username string
	Password string
}

type Controller struct {
	svc ports.SimulatorService
	cfg Config

	client mqtt.Client
	ctx    context.Context
	logger log.FieldLogger
}

func New(svc ports.SimulatorService, cfg Config) (*Controller, error) {
	// ---- defaults ----

	if cfg.BrokerURL == "" {
		cfg.BrokerURL = "tcp://localhost:1883"
	}

	if cfg.DeviceID == "" {
		return nil, errors.New("mqtt: DeviceID is required")
	}
	if cfg.BaseTopic == "" {
		cfg.BaseTopic = "thermopid/" + cfg.DeviceID
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "thermopid-" + cfg.DeviceID
	}
	if cfg.PublishInterval <= 0 {
		cfg.PublishInterval = 1 * time.Second
	}
	if cfg.QoS > 1 {
		return nil, errors.New("mqtt: QoS must be 0 or 1")
	}
	return &Controller{
		svc:    svc,
		cfg:    cfg,
		ctx:    context.Background(),
		logger: log.WithFields(log.Fields{"controller": "mqtt", "device_id": cfg.DeviceID}),
	}, nil
}

func (c *Controller) Run(ctx context.Context) error {
	c.ctx = ctx
	opts := mqtt.NewClientOptions().
		AddBroker(c.cfg.BrokerURL).
		SetClientID(c.cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(2 * time.Second)

	if c.cfg.Username != "" {
		opts.SetUsername(c.cfg.Username)
		opts.SetPassword(c.cfg.Password)
	}

	// Subscribe when connected/reconnected.
	opts.OnConnect = func(cl mqtt.Client) {
		topic := c.topic("set/+")
		token := cl.Subscribe(topic, c.cfg.QoS, c.onMessage)
		token.Wait()
		if err := token.Error(); err != nil {
			c.logger.WithError(err).WithField("topic", topic).Warn("mqtt: subscribe failed")
		}
	}

	c.client = mqtt.NewClient(opts)
	tok := c.client.Connect()
	tok.Wait()
	if err := tok.Error(); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}

	// Publish loop: publish state on interval, and only when changed.
	ticker := time.NewTicker(c.cfg.PublishInterval)
	defer ticker.Stop()

	last := c.publishState()

	for {
		select {
		case <-ctx.Done():
			c.client.Disconnect(250)
			return ctx.Err()

		case <-ticker.C:
			if cur := c.state(); !cur.equal(last) {
				last = c.publishState()
			}
		}
	}
}

type stateDTO struct {
	Scenario    string           `json:"scenario"`
	Input       simulation.Input `json:"input"`
	HasResult   bool             `json:"has_result"`
	HasPrevious bool             `json:"has_previous"`

	latest *simulation.Result
}

func (s stateDTO) equal(o stateDTO) bool {
	if s.latest != o.latest || s.HasPrevious != o.HasPrevious || s.Scenario != o.Scenario {
		return false
	}
	a, _ := json.Marshal(s.Input)
	b, _ := json.Marshal(o.Input)
	return bytes.Equal(a, b)
}

func (c *Controller) state() stateDTO {
	st := c.svc.Get()
	return stateDTO{
		Scenario:    st.Scenario,
		Input:       st.Input,
		HasResult:   st.Latest != nil,
		HasPrevious: st.Previous != nil,
		latest:      st.Latest,
	}
}

func (c *Controller) publishState() stateDTO {
	dto := c.state()
	b, _ := json.Marshal(dto)
	c.client.Publish(c.topic("state"), c.cfg.QoS, c.cfg.RetainState, b)
	return dto
}

func (c *Controller) publishResult() {
	sum, err := c.svc.Summary()
	if err != nil {
		return
	}
	b, _ := json.Marshal(sum)
	c.client.Publish(c.topic("result"), c.cfg.QoS, c.cfg.RetainState, b)
}

func (c *Controller) publishError(err error) {
	b, _ := json.Marshal(map[string]string{"error": err.Error()})
	c.client.Publish(c.topic("error"), c.cfg.QoS, false, b)
}

// Command payload format: {"value": ...}
type valueReq[T any] struct {
	Value *T `json:"value"`
}

func (c *Controller) onMessage(_ mqtt.Client, msg mqtt.Message) {
	// topic format: <base>/set/<field>
	t := msg.Topic()
	prefix := c.cfg.BaseTopic + "/set/"
	if !strings.HasPrefix(t, prefix) {
		return
	}
	field := strings.TrimPrefix(t, prefix)

	if err := c.dispatch(field, msg.Payload()); err != nil {
		c.logger.WithError(err).WithField("field", field).Debug("mqtt: command dropped")
		c.publishError(err)
	}
}

func (c *Controller) dispatch(field string, payload []byte) error {
	switch field {
	case "run":
		if _, err := c.svc.Run(c.ctx); err != nil {
			return err
		}
		c.publishResult()
		return nil

	case "reset":
		c.svc.Reset()
		return nil

	case "scenario":
		v, err := decodeValueStrict[string](payload)
		if err != nil {
			return err
		}
		return c.svc.SetScenario(v)

	case "simulation_minutes", "exposed_walls":
		v, err := decodeValueStrict[int](payload)
		if err != nil {
			return err
		}
		in := simulation.Input{SimulationMinutes: &v}
		if field == "exposed_walls" {
			in = simulation.Input{ExposedWalls: &v}
		}
		return c.svc.Update(in)

	case "equation":
		s, err := decodeValueStrict[string](payload)
		if err != nil {
			return err
		}
		eq, err := simulation.ParseControllerEquation(s)
		if err != nil {
			return err
		}
		name := eq.String()
		return c.svc.Update(simulation.Input{Equation: &name})

	case "loss_model":
		s, err := decodeValueStrict[string](payload)
		if err != nil {
			return err
		}
		m, err := simulation.ParseLossModel(s)
		if err != nil {
			return err
		}
		name := m.String()
		return c.svc.Update(simulation.Input{LossModel: &name})

	case "derivative_clamp":
		v, err := decodeValueStrict[bool](payload)
		if err != nil {
			return err
		}
		return c.svc.Update(simulation.Input{DerivativeClamp: &v})
	}

	set, ok := floatSetters[field]
	if !ok {
		return fmt.Errorf("unknown field %q", field)
	}
	v, err := decodeValueStrict[float64](payload)
	if err != nil {
		return err
	}
	return c.svc.Update(set(v))
}

var floatSetters = map[string]func(float64) simulation.Input{
	"start_temperature":     func(v float64) simulation.Input { return simulation.Input{StartTemperature: &v} },
	"setpoint_temperature":  func(v float64) simulation.Input { return simulation.Input{SetpointTemperature: &v} },
	"outside_temperature":   func(v float64) simulation.Input { return simulation.Input{OutsideTemperature: &v} },
	"room_volume":           func(v float64) simulation.Input { return simulation.Input{RoomVolume: &v} },
	"wall_area":             func(v float64) simulation.Input { return simulation.Input{WallArea: &v} },
	"heater_max_power":      func(v float64) simulation.Input { return simulation.Input{HeaterMaxPower: &v} },
	"heat_loss_coefficient": func(v float64) simulation.Input { return simulation.Input{HeatLossCoefficient: &v} },
	"kp":                    func(v float64) simulation.Input { return simulation.Input{Kp: &v} },
	"ti":                    func(v float64) simulation.Input { return simulation.Input{Ti: &v} },
	"td":                    func(v float64) simulation.Input { return simulation.Input{Td: &v} },
	"error_clamp":           func(v float64) simulation.Input { return simulation.Input{ErrorClamp: &v} },
}

func (c *Controller) topic(suffix string) string {
	return strings.TrimRight(c.cfg.BaseTopic, "/") + "/" + suffix
}

func decodeValueStrict[T any](b []byte) (T, error) {
	var zero T
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	var req valueReq[T]
	if err := dec.Decode(&req); err != nil {
		return zero, err
	}
	if req.Value == nil {
		return zero, errors.New("missing field 'value'")
	}
	return *req.Value, nil
}
