package httpctrl

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/Agrid-Dev/thermopid/internal/export"
	"github.com/Agrid-Dev/thermopid/internal/ports"
	"github.com/Agrid-Dev/thermopid/internal/render"
	"github.com/Agrid-Dev/thermopid/internal/session"
	"github.com/Agrid-Dev/thermopid/internal/simulation"
)

type Server struct {
	svc      ports.SimulatorService
	srv      *http.Server
	deviceID string
}

// New returns a runnable server. metrics is mounted on /metrics when not nil.
func New(svc ports.SimulatorService, addr string, deviceID string, metrics http.Handler) *Server {
	mux := http.NewServeMux()
	s := &Server{svc: svc, deviceID: deviceID}

	// Read
	mux.HandleFunc("GET /v1", s.handleGet)
	mux.HandleFunc("GET /v1/result", s.handleGetResult(func(st session.State) *simulation.Result { return st.Latest }))
	mux.HandleFunc("GET /v1/previous", s.handleGetResult(func(st session.State) *simulation.Result { return st.Previous }))
	mux.HandleFunc("GET /v1/summary", s.handleGetSummary)
	mux.HandleFunc("GET /v1/chart", s.handleGetChart)
	mux.HandleFunc("GET /v1/result.csv", s.handleGetCSV)

	// Write: one endpoint per form field
	for _, f := range floatFields {
		mux.HandleFunc("POST /v1/"+f.name, s.handlePostFloat(f.set))
	}
	for _, f := range intFields {
		mux.HandleFunc("POST /v1/"+f.name, s.handlePostInt(f.set))
	}
	mux.HandleFunc("POST /v1/equation", s.handlePostEquation)
	mux.HandleFunc("POST /v1/loss_model", s.handlePostLossModel)
	mux.HandleFunc("POST /v1/derivative_clamp", s.handlePostDerivativeClamp)
	mux.HandleFunc("POST /v1/scenario", s.handlePostScenario)
	mux.HandleFunc("PATCH /v1/input", s.handlePatchInput)

	// Triggers
	mux.HandleFunc("POST /v1/run", s.handlePostRun)
	mux.HandleFunc("POST /v1/reset", s.handlePostReset)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if metrics != nil {
		mux.Handle("GET /metrics", metrics)
	}

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// ---- DTOs ----

type stateDTO struct {
	DeviceID    string           `json:"device_id"`
	Scenario    string           `json:"scenario"`
	Locked      []string         `json:"locked"`
	Input       simulation.Input `json:"input"`
	HasResult   bool             `json:"has_result"`
	HasPrevious bool             `json:"has_previous"`
}

func toDTO(st session.State) stateDTO {
	dto := stateDTO{
		Scenario:    st.Scenario,
		Locked:      []string{},
		Input:       st.Input,
		HasResult:   st.Latest != nil,
		HasPrevious: st.Previous != nil,
	}
	if sc, err := simulation.ParseScenario(st.Scenario); err == nil && sc.Locked != nil {
		dto.Locked = sc.Locked
	}
	return dto
}

type runDTO struct {
	DeviceID string             `json:"device_id"`
	Summary  simulation.Summary `json:"summary"`
}

// ---- field tables ----

type fieldSetter[T any] struct {
	name string
	set  func(T) simulation.Input
}

var floatFields = []fieldSetter[float64]{
	{"start_temperature", func(v float64) simulation.Input { return simulation.Input{StartTemperature: &v} }},
	{"setpoint_temperature", func(v float64) simulation.Input { return simulation.Input{SetpointTemperature: &v} }},
	{"outside_temperature", func(v float64) simulation.Input { return simulation.Input{OutsideTemperature: &v} }},
	{"room_volume", func(v float64) simulation.Input { return simulation.Input{RoomVolume: &v} }},
	{"wall_area", func(v float64) simulation.Input { return simulation.Input{WallArea: &v} }},
	{"heater_max_power", func(v float64) simulation.Input { return simulation.Input{HeaterMaxPower: &v} }},
	{"heat_loss_coefficient", func(v float64) simulation.Input { return simulation.Input{HeatLossCoefficient: &v} }},
	{"kp", func(v float64) simulation.Input { return simulation.Input{Kp: &v} }},
	{"ti", func(v float64) simulation.Input { return simulation.Input{Ti: &v} }},
	{"td", func(v float64) simulation.Input { return simulation.Input{Td: &v} }},
	{"error_clamp", func(v float64) simulation.Input { return simulation.Input{ErrorClamp: &v} }},
}

var intFields = []fieldSetter[int]{
	{"simulation_minutes", func(v int) simulation.Input { return simulation.Input{SimulationMinutes: &v} }},
	{"exposed_walls", func(v int) simulation.Input { return simulation.Input{ExposedWalls: &v} }},
}

// ---- Handlers ----

func (s *Server) handleGet(w http.ResponseWriter, _ *http.Request) {
	s.respondState(w)
}

func (s *Server) handlePostFloat(set func(float64) simulation.Input) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		postValue(s, w, r, func(v float64) error {
			return s.svc.Update(set(v))
		})
	}
}

func (s *Server) handlePostInt(set func(int) simulation.Input) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		postValue(s, w, r, func(v int) error {
			return s.svc.Update(set(v))
		})
	}
}

func (s *Server) handlePostEquation(w http.ResponseWriter, r *http.Request) {
	// body: {"value": "gain-scaled-all"}
	postValue(s, w, r, func(v string) error {
		eq, err := simulation.ParseControllerEquation(v)
		if err != nil {
			return err
		}
		name := eq.String()
		return s.svc.Update(simulation.Input{Equation: &name})
	})
}

func (s *Server) handlePostLossModel(w http.ResponseWriter, r *http.Request) {
	// body: {"value": "flat"}
	postValue(s, w, r, func(v string) error {
		m, err := simulation.ParseLossModel(v)
		if err != nil {
			return err
		}
		name := m.String()
		return s.svc.Update(simulation.Input{LossModel: &name})
	})
}

func (s *Server) handlePostDerivativeClamp(w http.ResponseWriter, r *http.Request) {
	postValue(s, w, r, func(v bool) error {
		return s.svc.Update(simulation.Input{DerivativeClamp: &v})
	})
}

func (s *Server) handlePostScenario(w http.ResponseWriter, r *http.Request) {
	postValue(s, w, r, s.svc.SetScenario)
}

func (s *Server) handlePatchInput(w http.ResponseWriter, r *http.Request) {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	var in simulation.Input
	if err := dec.Decode(&in); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := s.svc.Update(in); err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	s.respondState(w)
}

func (s *Server) handlePostRun(w http.ResponseWriter, r *http.Request) {
	if _, err := s.svc.Run(r.Context()); err != nil {
		code := http.StatusBadRequest
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			code = http.StatusServiceUnavailable
		}
		writeErr(w, code, err.Error())
		return
	}
	sum, err := s.svc.Summary()
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, runDTO{DeviceID: s.deviceID, Summary: sum})
}

func (s *Server) handlePostReset(w http.ResponseWriter, _ *http.Request) {
	s.svc.Reset()
	s.respondState(w)
}

// handleGetResult serves one stored result. ?step=N keeps every Nth second.
func (s *Server) handleGetResult(pick func(session.State) *simulation.Result) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res := pick(s.svc.Get())
		if res == nil {
			writeErr(w, http.StatusNotFound, session.ErrNoResult.Error())
			return
		}
		step, ok := intQuery(w, r, "step", 1)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, downsample(res, step))
	}
}

func (s *Server) handleGetSummary(w http.ResponseWriter, _ *http.Request) {
	sum, err := s.svc.Summary()
	if err != nil {
		writeErr(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleGetChart(w http.ResponseWriter, r *http.Request) {
	st := s.svc.Get()
	if st.Latest == nil {
		writeErr(w, http.StatusNotFound, session.ErrNoResult.Error())
		return
	}
	opts := render.DefaultOptions()
	var ok bool
	if opts.Height, ok = intQuery(w, r, "height", opts.Height); !ok {
		return
	}
	if opts.Width, ok = intQuery(w, r, "width", opts.Width); !ok {
		return
	}
	if st.LatestParams != nil {
		sp := st.LatestParams.SetpointTemperature
		opts.Setpoint = &sp
	}
	chart, err := render.Chart(st.Latest, st.Previous, opts)
	if err != nil {
		writeErr(w, http.StatusNotFound, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(chart + "\n"))
}

func (s *Server) handleGetCSV(w http.ResponseWriter, _ *http.Request) {
	st := s.svc.Get()
	if st.Latest == nil {
		writeErr(w, http.StatusNotFound, session.ErrNoResult.Error())
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.WriteHeader(http.StatusOK)
	if err := export.WriteCSV(w, st.Latest); err != nil {
		log.WithError(err).Debug("http: csv export interrupted")
	}
}

// ---- generic helpers ----
func (s *Server) respondState(w http.ResponseWriter) {
	dto := toDTO(s.svc.Get())
	dto.DeviceID = s.deviceID
	writeJSON(w, http.StatusOK, dto)
}

func postValue[T any](s *Server, w http.ResponseWriter, r *http.Request, apply func(T) error) {
	dec := json.NewDecoder(r.Body)
	var req struct {
		Value *T `json:"value"`
	}
	if err := dec.Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Value == nil {
		writeErr(w, http.StatusBadRequest, "missing field 'value'")
		return
	}

	if err := apply(*req.Value); err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}

	s.respondState(w)
}

func intQuery(w http.ResponseWriter, r *http.Request, key string, def int) (int, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		writeErr(w, http.StatusBadRequest, "query parameter '"+key+"' must be a positive integer")
		return 0, false
	}
	return v, true
}

func downsample(r *simulation.Result, step int) *simulation.Result {
	if step <= 1 {
		return r
	}
	n := (r.Len() + step - 1) / step
	out := &simulation.Result{
		Temperature:   make([]float64, 0, n),
		ControlOutput: make([]float64, 0, n),
		Error:         make([]float64, 0, n),
		AirDensity:    make([]float64, 0, n),
	}
	for i := 0; i < r.Len(); i += step {
		out.Temperature = append(out.Temperature, r.Temperature[i])
		out.ControlOutput = append(out.ControlOutput, r.ControlOutput[i])
		out.Error = append(out.Error, r.Error[i])
		out.AirDensity = append(out.AirDensity, r.AirDensity[i])
	}
	return out
}

// writeJSON encodes before writing the header so an unencodable body
// becomes a 500 instead of a truncated 200.
func writeJSON(w http.ResponseWriter, code int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.WithError(err).Warn("http: encoding response")
		code = http.StatusInternalServerError
		b, _ = json.Marshal(map[string]string{"error": "response could not be encoded"})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(append(b, '\n'))
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
