package httpctrl

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Agrid-Dev/thermopid/internal/session"
	"github.com/Agrid-Dev/thermopid/internal/simulation"
	"github.com/Agrid-Dev/thermopid/internal/testutil"
)

func TestGET_v1_ReturnsState(t *testing.T) {
	srv, _ := newTestServer()

	rr := doJSONRequest(t, srv.srv.Handler, http.MethodGet, "/v1", nil)
	assertStatus(t, rr, http.StatusOK)

	got := decodeJSON[map[string]any](t, rr)
	if got["scenario"] != "custom" {
		t.Fatalf("expected scenario=custom, got %v", got["scenario"])
	}
	if got["device_id"] != "default" {
		t.Fatalf("expected device_id=default, got %v", got["device_id"])
	}
	if got["has_result"] != false {
		t.Fatalf("expected has_result=false, got %v", got["has_result"])
	}
	input, ok := got["input"].(map[string]any)
	if !ok || input["kp"] != 8.2 {
		t.Fatalf("expected input.kp=8.2, got %v", got["input"])
	}
}

func TestPOST_float_fields(t *testing.T) {
	srv, f := newTestServer()

	for _, field := range floatFields {
		t.Run(field.name, func(t *testing.T) {
			f.UpdateCalled = false
			rr := postValueEndpoint(t, srv, "/v1/"+field.name, 42.5)
			assertStatus(t, rr, http.StatusOK)
			if !f.UpdateCalled {
				t.Fatalf("expected Update called")
			}
			if !f.UpdateArg.IsSet(field.name) {
				t.Fatalf("expected %s to be set in %+v", field.name, f.UpdateArg)
			}
		})
	}
}

func TestPOST_setpoint(t *testing.T) {
	srv, f := newTestServer()

	rr := postValueEndpoint(t, srv, "/v1/setpoint_temperature", 21.5)
	assertStatus(t, rr, http.StatusOK)

	if got := *f.S.Input.SetpointTemperature; got != 21.5 {
		t.Fatalf("expected setpoint=21.5, got %v", got)
	}
	got := decodeJSON[stateDTO](t, rr)
	if *got.Input.SetpointTemperature != 21.5 {
		t.Fatalf("expected response to carry the new setpoint, got %v", *got.Input.SetpointTemperature)
	}
}

func TestPOST_simulation_minutes(t *testing.T) {
	srv, f := newTestServer()

	rr := postValueEndpoint(t, srv, "/v1/simulation_minutes", 90)
	assertStatus(t, rr, http.StatusOK)
	if got := *f.S.Input.SimulationMinutes; got != 90 {
		t.Fatalf("expected minutes=90, got %v", got)
	}

	// not an integer
	rr = postValueEndpoint(t, srv, "/v1/simulation_minutes", 1.5)
	assertStatus(t, rr, http.StatusBadRequest)
	_ = assertErrorResponse(t, rr)
}

func TestPOST_InvalidPayload(t *testing.T) {
	srv, _ := newTestServer()

	// Wrong key => Value missing
	rr := doJSONRequest(t, srv.srv.Handler, http.MethodPost, "/v1/kp", map[string]any{
		"kp": 10,
	})
	assertStatus(t, rr, http.StatusBadRequest)
	if msg := assertErrorResponse(t, rr); msg != "missing field 'value'" {
		t.Fatalf("unexpected error %q", msg)
	}
}

func TestPOST_ErrorFromService(t *testing.T) {
	srv, f := newTestServer()
	f.UpdateErr = session.ErrLockedField

	rr := postValueEndpoint(t, srv, "/v1/kp", 100.0)
	assertStatus(t, rr, http.StatusBadRequest)
	_ = assertErrorResponse(t, rr)
}

func TestPOST_equation(t *testing.T) {
	srv, f := newTestServer()

	rr := postValueEndpoint(t, srv, "/v1/equation", "gain-scaled-all")
	assertStatus(t, rr, http.StatusOK)
	if f.UpdateArg.Equation == nil || *f.UpdateArg.Equation != "gain-scaled-all" {
		t.Fatalf("expected equation update, got %+v", f.UpdateArg)
	}

	f.UpdateCalled = false
	rr = postValueEndpoint(t, srv, "/v1/equation", "weird")
	assertStatus(t, rr, http.StatusBadRequest)
	_ = assertErrorResponse(t, rr)
	if f.UpdateCalled {
		t.Fatalf("invalid equation must not reach the service")
	}
}

func TestPOST_loss_model(t *testing.T) {
	srv, f := newTestServer()

	rr := postValueEndpoint(t, srv, "/v1/loss_model", "flat")
	assertStatus(t, rr, http.StatusOK)
	if f.UpdateArg.LossModel == nil || *f.UpdateArg.LossModel != "flat" {
		t.Fatalf("expected loss model update, got %+v", f.UpdateArg)
	}

	rr = postValueEndpoint(t, srv, "/v1/loss_model", "sphere")
	assertStatus(t, rr, http.StatusBadRequest)
}

func TestPOST_derivative_clamp(t *testing.T) {
	srv, f := newTestServer()

	rr := postValueEndpoint(t, srv, "/v1/derivative_clamp", true)
	assertStatus(t, rr, http.StatusOK)
	if !*f.S.Input.DerivativeClamp {
		t.Fatalf("expected derivative clamp on")
	}
}

func TestPOST_scenario(t *testing.T) {
	srv, f := newTestServer()

	rr := postValueEndpoint(t, srv, "/v1/scenario", "real")
	assertStatus(t, rr, http.StatusOK)
	if !f.SetScenarioCalled || f.SetScenarioArg != "real" {
		t.Fatalf("expected SetScenario(real), got called=%v arg=%v", f.SetScenarioCalled, f.SetScenarioArg)
	}
	got := decodeJSON[stateDTO](t, rr)
	if len(got.Locked) == 0 {
		t.Fatalf("expected locked fields for real scenario")
	}

	f.SetScenarioErr = simulation.ErrUnknownScenario
	rr = postValueEndpoint(t, srv, "/v1/scenario", "nope")
	assertStatus(t, rr, http.StatusBadRequest)
}

func TestPATCH_input(t *testing.T) {
	srv, f := newTestServer()

	rr := doJSONRequest(t, srv.srv.Handler, http.MethodPatch, "/v1/input", map[string]any{
		"kp": 12.0,
		"ti": 300.0,
	})
	assertStatus(t, rr, http.StatusOK)
	if *f.UpdateArg.Kp != 12 || *f.UpdateArg.Ti != 300 || f.UpdateArg.Td != nil {
		t.Fatalf("unexpected update %+v", f.UpdateArg)
	}

	rr = doJSONRequest(t, srv.srv.Handler, http.MethodPatch, "/v1/input", map[string]any{
		"gain": 1,
	})
	assertStatus(t, rr, http.StatusBadRequest)
}

func TestPOST_run(t *testing.T) {
	srv, f := newTestServer()

	rr := doJSONRequest(t, srv.srv.Handler, http.MethodPost, "/v1/run", nil)
	assertStatus(t, rr, http.StatusOK)
	if !f.RunCalled {
		t.Fatalf("expected Run called")
	}
	got := decodeJSON[runDTO](t, rr)
	if got.Summary.Steps != 3 || got.DeviceID != "default" {
		t.Fatalf("unexpected run response %+v", got)
	}
}

func TestPOST_run_MissingInput(t *testing.T) {
	srv, f := newTestServer()
	f.RunErr = simulation.ErrMissingInput

	rr := doJSONRequest(t, srv.srv.Handler, http.MethodPost, "/v1/run", nil)
	assertStatus(t, rr, http.StatusBadRequest)
	if msg := assertErrorResponse(t, rr); !strings.Contains(msg, "missing") {
		t.Fatalf("unexpected error %q", msg)
	}
}

func TestPOST_run_Canceled(t *testing.T) {
	srv, f := newTestServer()
	f.RunErr = context.Canceled

	rr := doJSONRequest(t, srv.srv.Handler, http.MethodPost, "/v1/run", nil)
	assertStatus(t, rr, http.StatusServiceUnavailable)
}

func TestPOST_reset(t *testing.T) {
	srv, f := newTestServer()
	_, _ = f.Run(context.Background())

	rr := doJSONRequest(t, srv.srv.Handler, http.MethodPost, "/v1/reset", nil)
	assertStatus(t, rr, http.StatusOK)
	if !f.ResetCalled {
		t.Fatalf("expected Reset called")
	}
	if got := decodeJSON[stateDTO](t, rr); got.HasResult {
		t.Fatalf("expected no result after reset")
	}
}

func TestGET_result(t *testing.T) {
	srv, f := newTestServer()

	rr := doJSONRequest(t, srv.srv.Handler, http.MethodGet, "/v1/result", nil)
	assertStatus(t, rr, http.StatusNotFound)

	_, _ = f.Run(context.Background())
	rr = doJSONRequest(t, srv.srv.Handler, http.MethodGet, "/v1/result", nil)
	assertStatus(t, rr, http.StatusOK)
	got := decodeJSON[simulation.Result](t, rr)
	if got.Len() != 3 {
		t.Fatalf("expected 3 samples, got %d", got.Len())
	}

	rr = doJSONRequest(t, srv.srv.Handler, http.MethodGet, "/v1/result?step=2", nil)
	assertStatus(t, rr, http.StatusOK)
	got = decodeJSON[simulation.Result](t, rr)
	if len(got.Temperature) != 2 || got.Temperature[1] != 16 {
		t.Fatalf("unexpected downsampled temperature %v", got.Temperature)
	}

	rr = doJSONRequest(t, srv.srv.Handler, http.MethodGet, "/v1/result?step=0", nil)
	assertStatus(t, rr, http.StatusBadRequest)
}

func TestGET_previous(t *testing.T) {
	srv, f := newTestServer()
	_, _ = f.Run(context.Background())

	rr := doJSONRequest(t, srv.srv.Handler, http.MethodGet, "/v1/previous", nil)
	assertStatus(t, rr, http.StatusNotFound)

	_, _ = f.Run(context.Background())
	rr = doJSONRequest(t, srv.srv.Handler, http.MethodGet, "/v1/previous", nil)
	assertStatus(t, rr, http.StatusOK)
}

func TestGET_summary(t *testing.T) {
	srv, f := newTestServer()

	rr := doJSONRequest(t, srv.srv.Handler, http.MethodGet, "/v1/summary", nil)
	assertStatus(t, rr, http.StatusNotFound)

	_, _ = f.Run(context.Background())
	rr = doJSONRequest(t, srv.srv.Handler, http.MethodGet, "/v1/summary", nil)
	assertStatus(t, rr, http.StatusOK)
	if got := decodeJSON[simulation.Summary](t, rr); got.MaxControlOutput != 1200 {
		t.Fatalf("unexpected summary %+v", got)
	}
}

func TestGET_chart(t *testing.T) {
	srv, f := newTestServer()

	rr := doJSONRequest(t, srv.srv.Handler, http.MethodGet, "/v1/chart", nil)
	assertStatus(t, rr, http.StatusNotFound)

	_, _ = f.Run(context.Background())
	rr = doJSONRequest(t, srv.srv.Handler, http.MethodGet, "/v1/chart?height=4", nil)
	assertStatus(t, rr, http.StatusOK)
	if !strings.Contains(rr.Body.String(), "temperature") {
		t.Fatalf("expected chart body, got %s", rr.Body.String())
	}

	rr = doJSONRequest(t, srv.srv.Handler, http.MethodGet, "/v1/chart?width=x", nil)
	assertStatus(t, rr, http.StatusBadRequest)
}

func TestGET_result_csv(t *testing.T) {
	srv, f := newTestServer()
	_, _ = f.Run(context.Background())

	rr := doJSONRequest(t, srv.srv.Handler, http.MethodGet, "/v1/result.csv", nil)
	assertStatus(t, rr, http.StatusOK)
	lines := strings.Split(strings.TrimSpace(rr.Body.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header and 3 rows, got %d lines", len(lines))
	}
}

func TestGET_healthz(t *testing.T) {
	srv, _ := newTestServer()

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	srv.srv.Handler.ServeHTTP(rr, req)

	assertStatus(t, rr, http.StatusOK)
	if rr.Body.String() != "ok" {
		t.Fatalf("expected body 'ok', got %s", rr.Body.String())
	}
}

func TestGET_metrics(t *testing.T) {
	f := testutil.NewFakeSimulatorService()
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("thermopid_session_runs_total 0\n"))
	})
	srv := New(f, ":0", "default", metrics)

	rr := doJSONRequest(t, srv.srv.Handler, http.MethodGet, "/metrics", nil)
	assertStatus(t, rr, http.StatusOK)

	// not mounted without a handler
	srv, _ = newTestServer()
	rr = doJSONRequest(t, srv.srv.Handler, http.MethodGet, "/metrics", nil)
	assertStatus(t, rr, http.StatusNotFound)
}

func TestDownsample(t *testing.T) {
	r := &simulation.Result{
		Temperature:   []float64{0, 1, 2, 3, 4},
		ControlOutput: []float64{0, 1, 2, 3, 4},
		Error:         []float64{0, 1, 2, 3, 4},
		AirDensity:    []float64{0, 1, 2, 3, 4},
	}
	if got := downsample(r, 1); got != r {
		t.Fatalf("step 1 must return the result unchanged")
	}
	got := downsample(r, 2)
	want := []float64{0, 2, 4}
	for i := range want {
		if got.Error[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got.Error)
		}
	}
}

// ---- test helpers ----

func newTestServer() (*Server, *testutil.FakeSimulatorService) {
	f := testutil.NewFakeSimulatorService()
	deviceID := "default"
	return New(f, ":0", deviceID, nil), f
}

func doJSONRequest(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var r *http.Request
	if body == nil {
		r = httptest.NewRequest(method, path, nil)
	} else {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("json.Marshal: %v", err)
		}
		r = httptest.NewRequest(method, path, bytes.NewReader(b))
		r.Header.Set("Content-Type", "application/json")
	}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, r)
	return rr
}

func assertStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("expected %d, got %d body=%s", want, rr.Code, rr.Body.String())
	}
}

func decodeJSON[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("json.Unmarshal: %v body=%s", err, rr.Body.String())
	}
	return v
}

// Handy when you only care about error responses.
func assertErrorResponse(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	resp := decodeJSON[struct {
		Error string `json:"error"`
	}](t, rr)
	if resp.Error == "" {
		t.Fatalf("expected non-empty error field, got body=%s", rr.Body.String())
	}
	return resp.Error
}

func postValueEndpoint[T any](t *testing.T, srv *Server, path string, value T) *httptest.ResponseRecorder {
	t.Helper()
	return doJSONRequest(t, srv.srv.Handler, http.MethodPost, path, struct {
		Value T `json:"value"`
	}{Value: value})
}

func TestWriteJSON_UnencodableValue(t *testing.T) {
	rr := httptest.NewRecorder()
	writeJSON(rr, http.StatusOK, map[string]float64{"temperature": math.Inf(-1)})

	assertStatus(t, rr, http.StatusInternalServerError)
	got := decodeJSON[map[string]string](t, rr)
	if got["error"] == "" {
		t.Fatalf("expected error message, got %v", got)
	}
}
