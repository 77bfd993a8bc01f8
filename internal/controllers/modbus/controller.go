package modbusctrl

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	log "github.com/sirupsen/logrus"
	mbserver "github.com/tbrandon/mbserver"

	"github.com/Agrid-Dev/thermopid/internal/ports"
	"github.com/Agrid-Dev/thermopid/internal/simulation"
)

// Config for the Modbus controller.
type Config struct {
	DeviceID string
	Addr     string
	UnitID   byte // UnitID (Modbus slave/unit ID). Use an integer 1..247.
}

type Controller struct {
	svc ports.SimulatorService
	cfg Config

	ctx    context.Context
	serv   *mbserver.Server
	logger log.FieldLogger
}

func New(svc ports.SimulatorService, cfg Config) (*Controller, error) {
	if cfg.UnitID == 0 {
		return nil, errors.New("modbus: UnitID is required (non-zero)")
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:1502"
	}
	return &Controller{
		svc:    svc,
		cfg:    cfg,
		ctx:    context.Background(),
		logger: log.WithFields(log.Fields{"controller": "modbus", "device_id": cfg.DeviceID}),
	}, nil
}

// Run starts the Modbus server and registers handlers that apply writes immediately and
// provide reads directly from the simulator service. It blocks until ctx is canceled.
func (c *Controller) Run(ctx context.Context) error {
	c.ctx = ctx
	serv := mbserver.NewServer()
	c.serv = serv

	// Register handlers BEFORE starting the TCP listener to avoid races inside mbserver
	// between handler registration and the server's goroutines.
	// Read Coils (function 1)
	serv.RegisterFunctionHandler(1, func(s *mbserver.Server, frame mbserver.Framer) ([]byte, *mbserver.Exception) {
		start, qty, ex := readRequest(frame.GetData(), 2000)
		if ex != nil {
			return []byte{}, ex
		}
		coils, ex := c.readCoils(start, qty)
		if ex != &mbserver.Success {
			return []byte{}, ex
		}
		// response: byte count + coil bytes
		resp := make([]byte, 1+(len(coils)+7)/8)
		resp[0] = byte(len(resp) - 1)
		for i, on := range coils {
			if on {
				resp[1+i/8] |= 1 << (i % 8)
			}
		}
		return resp, &mbserver.Success
	})

	// Read Holding Registers (function 3)
	serv.RegisterFunctionHandler(3, func(s *mbserver.Server, frame mbserver.Framer) ([]byte, *mbserver.Exception) {
		start, qty, ex := readRequest(frame.GetData(), 125)
		if ex != nil {
			return []byte{}, ex
		}
		regs, ex := c.readHolding(start, qty)
		if ex != &mbserver.Success {
			return []byte{}, ex
		}
		return registerResponse(regs), &mbserver.Success
	})

	// Read Input Registers (function 4)
	serv.RegisterFunctionHandler(4, func(s *mbserver.Server, frame mbserver.Framer) ([]byte, *mbserver.Exception) {
		start, qty, ex := readRequest(frame.GetData(), 125)
		if ex != nil {
			return []byte{}, ex
		}
		regs, ex := c.readInputs(start, qty)
		if ex != &mbserver.Success {
			return []byte{}, ex
		}
		return registerResponse(regs), &mbserver.Success
	})

	// Write Single Coil (function 5)
	serv.RegisterFunctionHandler(5, func(s *mbserver.Server, frame mbserver.Framer) ([]byte, *mbserver.Exception) {
		data := frame.GetData()
		if len(data) < 4 {
			return []byte{}, &mbserver.IllegalDataValue
		}
		addr := int(binary.BigEndian.Uint16(data[0:2]))
		value := binary.BigEndian.Uint16(data[2:4])

		var on bool
		switch value {
		case 0x0000:
			on = false
		case 0xFF00:
			on = true
		default:
			return []byte{}, &mbserver.IllegalDataValue
		}
		if ex := c.writeCoil(addr, on); ex != &mbserver.Success {
			return []byte{}, ex
		}

		// echo request (address + value)
		resp := make([]byte, 4)
		copy(resp, data[0:4])
		return resp, &mbserver.Success
	})

	// Write Single Register (function 6)
	serv.RegisterFunctionHandler(6, func(s *mbserver.Server, frame mbserver.Framer) ([]byte, *mbserver.Exception) {
		data := frame.GetData()
		if len(data) < 4 {
			return []byte{}, &mbserver.IllegalDataValue
		}
		addr := int(binary.BigEndian.Uint16(data[0:2]))
		value := binary.BigEndian.Uint16(data[2:4])
		if ex := c.writeHolding(addr, []uint16{value}); ex != &mbserver.Success {
			return []byte{}, ex
		}

		resp := make([]byte, 4)
		copy(resp, data[0:4])
		return resp, &mbserver.Success
	})

	// Write Multiple Registers (function 16)
	serv.RegisterFunctionHandler(16, func(s *mbserver.Server, frame mbserver.Framer) ([]byte, *mbserver.Exception) {
		d := frame.GetData()
		if len(d) < 5 {
			return []byte{}, &mbserver.IllegalDataValue
		}
		start := binary.BigEndian.Uint16(d[0:2])
		quantity := binary.BigEndian.Uint16(d[2:4])
		byteCount := int(d[4])
		if byteCount != int(quantity)*2 || len(d) < 5+byteCount {
			return []byte{}, &mbserver.IllegalDataValue
		}
		vals := make([]uint16, quantity)
		for i := range vals {
			vals[i] = binary.BigEndian.Uint16(d[5+i*2 : 5+i*2+2])
		}
		if ex := c.writeHolding(int(start), vals); ex != &mbserver.Success {
			return []byte{}, ex
		}

		resp := make([]byte, 4)
		binary.BigEndian.PutUint16(resp[0:2], start)
		binary.BigEndian.PutUint16(resp[2:4], quantity)
		return resp, &mbserver.Success
	})

	// Now start listening after all handlers are registered.
	if err := serv.ListenTCP(c.cfg.Addr); err != nil {
		return fmt.Errorf("mbserver listen tcp %s: %w", c.cfg.Addr, err)
	}

	// Block until ctx.Done()
	<-ctx.Done()
	serv.Close()
	return ctx.Err()
}

func readRequest(data []byte, maxQty int) (start, qty int, ex *mbserver.Exception) {
	if len(data) < 4 {
		return 0, 0, &mbserver.IllegalDataValue
	}
	start = int(binary.BigEndian.Uint16(data[0:2]))
	qty = int(binary.BigEndian.Uint16(data[2:4]))
	if qty == 0 || qty > maxQty {
		return 0, 0, &mbserver.IllegalDataValue
	}
	return start, qty, nil
}

// registerResponse builds byte count + register bytes.
func registerResponse(regs []uint16) []byte {
	byteCount := len(regs) * 2
	resp := make([]byte, 1+byteCount)
	resp[0] = byte(byteCount)
	for i, r := range regs {
		binary.BigEndian.PutUint16(resp[1+i*2:1+i*2+2], r)
	}
	return resp
}

// ---- coils ----

const (
	CoilRun             = 0 // on: run the simulation, off: drop stored results
	CoilDerivativeClamp = 1
	coilCount           = 2
)

func (c *Controller) readCoils(start, qty int) ([]bool, *mbserver.Exception) {
	if start < 0 || start+qty > coilCount {
		return nil, &mbserver.IllegalDataAddress
	}
	st := c.svc.Get()
	all := [coilCount]bool{
		CoilRun:             st.Latest != nil,
		CoilDerivativeClamp: st.Input.DerivativeClamp != nil && *st.Input.DerivativeClamp,
	}
	return all[start : start+qty], &mbserver.Success
}

func (c *Controller) writeCoil(addr int, on bool) *mbserver.Exception {
	switch addr {
	case CoilRun:
		if !on {
			c.svc.Reset()
			return &mbserver.Success
		}
		if _, err := c.svc.Run(c.ctx); err != nil {
			c.logger.WithError(err).Debug("modbus: run rejected")
			return &mbserver.IllegalDataValue
		}
	case CoilDerivativeClamp:
		if err := c.svc.Update(simulation.Input{DerivativeClamp: &on}); err != nil {
			return &mbserver.IllegalDataValue
		}
	default:
		return &mbserver.IllegalDataAddress
	}
	return &mbserver.Success
}

// ---- holding registers ----

func (c *Controller) readHolding(start, qty int) ([]uint16, *mbserver.Exception) {
	if start < 0 || start+qty > len(holdingRegisters) {
		return nil, &mbserver.IllegalDataAddress
	}
	in := c.svc.Get().Input
	regs := make([]uint16, 0, qty)
	for _, r := range holdingRegisters[start : start+qty] {
		regs = append(regs, r.read(in))
	}
	return regs, &mbserver.Success
}

// writeHolding applies all values as one update so a multi-register write
// either lands completely or not at all.
func (c *Controller) writeHolding(start int, vals []uint16) *mbserver.Exception {
	if start < 0 || start+len(vals) > len(holdingRegisters) {
		return &mbserver.IllegalDataAddress
	}
	var in simulation.Input
	for i, v := range vals {
		r := holdingRegisters[start+i]
		part, err := r.write(v)
		if err != nil {
			c.logger.WithError(err).WithField("register", r.name).Debug("modbus: write rejected")
			return &mbserver.IllegalDataValue
		}
		in = in.Merge(part)
	}
	if err := c.svc.Update(in); err != nil {
		c.logger.WithError(err).Debug("modbus: write rejected")
		return &mbserver.IllegalDataValue
	}
	return &mbserver.Success
}

// ---- input registers ----

const (
	InputFinalTemperature = iota
	InputMinTemperature
	InputMaxTemperature
	InputFinalError
	InputMaxControlOutput
	InputMeanControlOutput
	InputEnergyWh
	InputSaturatedMinutes
	InputSettledAfterMinute
	InputSimulatedMinutes
	inputCount
)

// NotSettled is reported in InputSettledAfterMinute when the run never settled.
const NotSettled uint16 = math.MaxUint16

// readInputs exposes the summary of the latest run. All registers read 0
// while there is no result.
func (c *Controller) readInputs(start, qty int) ([]uint16, *mbserver.Exception) {
	if start < 0 || start+qty > inputCount {
		return nil, &mbserver.IllegalDataAddress
	}
	var all [inputCount]uint16
	if sum, err := c.svc.Summary(); err == nil {
		all[InputFinalTemperature] = encodeScaled(sum.FinalTemperature)
		all[InputMinTemperature] = encodeScaled(sum.MinTemperature)
		all[InputMaxTemperature] = encodeScaled(sum.MaxTemperature)
		all[InputFinalError] = encodeScaled(sum.FinalError)
		all[InputMaxControlOutput] = encodeUnsigned(sum.MaxControlOutput)
		all[InputMeanControlOutput] = encodeUnsigned(sum.MeanControlOutput)
		all[InputEnergyWh] = encodeUnsigned(sum.EnergyKWh * 1000)
		all[InputSaturatedMinutes] = encodeUnsigned(float64(sum.SaturatedSeconds) / 60)
		all[InputSettledAfterMinute] = NotSettled
		if sum.SettledAfterSecond >= 0 {
			all[InputSettledAfterMinute] = encodeUnsigned(float64(sum.SettledAfterSecond) / 60)
		}
		all[InputSimulatedMinutes] = encodeUnsigned(float64(sum.Steps) / 60)
	}
	return all[start : start+qty], &mbserver.Success
}

const Scale int = 100

// encodeScaled stores v*Scale as a signed 16 bit register.
func encodeScaled(v float64) uint16 {
	r := min(max(int(math.Round(v*float64(Scale))), math.MinInt16), math.MaxInt16)
	return uint16(int16(r))
}

func decodeScaled(u uint16) float64 {
	i := int16(u)
	return float64(i) / float64(Scale)
}

// encodeUnsigned stores v rounded to whole units.
func encodeUnsigned(v float64) uint16 {
	return uint16(min(max(int(math.Round(v)), 0), math.MaxUint16))
}
