package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"pixel_pets/internal/app"
	"pixel_pets/internal/domain/reminder"
	idb "pixel_pets/internal/infra/database"
	"pixel_pets/internal/infra/logger"
	"pixel_pets/internal/infra/metrics"
	"pixel_pets/internal/infra/scheduler"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type stubExecutor struct {
	got    []reminder.Command
	result reminder.Result
	err    error
}

func (e *stubExecutor) Execute(_ context.Context, cmd reminder.Command) (reminder.Result, error) {
	e.got = append(e.got, cmd)
	return e.result, e.err
}

type stubHub struct{ pages int }

func (h *stubHub) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusTeapot)
}

func (h *stubHub) Count() int { return h.pages }

func newTestServer(exec CommandExecutor) (*Server, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "pets_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()
	s := NewServer(Config{Addr: ":0", Debug: true}, exec, &stubHub{pages: 2}, reg, logger.Discard())
	return s, reg
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeResult(t *testing.T, rec *httptest.ResponseRecorder) reminder.Result {
	t.Helper()
	var res reminder.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	return res
}

func TestPostCommand(t *testing.T) {
	exec := &stubExecutor{result: reminder.Succeeded()}
	s, _ := newTestServer(exec)

	rec := do(t, s, http.MethodPost, "/api/commands", `{"type":"SET_REMINDER","seconds":5,"animal":"fox"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeResult(t, rec).Success)
	assert.Equal(t, []reminder.Command{{Type: reminder.CmdSetReminder, Seconds: 5, Animal: "fox"}}, exec.got)
}

func TestPostCommandErrors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		exec     *stubExecutor
		wantCode int
	}{
		{"malformed json", `{"type":`, &stubExecutor{}, http.StatusBadRequest},
		{"empty body", ``, &stubExecutor{}, http.StatusBadRequest},
		{"rejected command", `{"type":"SET_REMINDER"}`, &stubExecutor{result: reminder.Failed(reminder.ErrInvalidDuration)}, http.StatusBadRequest},
		{"coordinator stopped", `{"type":"GET_STATUS"}`, &stubExecutor{err: app.ErrCoordinatorStopped}, http.StatusServiceUnavailable},
		{"timeout", `{"type":"GET_STATUS"}`, &stubExecutor{err: context.DeadlineExceeded}, http.StatusGatewayTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestServer(tt.exec)
			rec := do(t, s, http.MethodPost, "/api/commands", tt.body)
			assert.Equal(t, tt.wantCode, rec.Code)
			res := decodeResult(t, rec)
			assert.False(t, res.Success)
			assert.NotEmpty(t, res.Error)
		})
	}
}

func TestGetStatus(t *testing.T) {
	state := reminder.State{IsActive: true, Animal: reminder.AnimalCat, IntervalSeconds: 60, NextTriggerTime: time.UnixMilli(1760000000000)}
	exec := &stubExecutor{result: reminder.Result{Success: true, State: &state, Phase: reminder.PhaseArmed}}
	s, _ := newTestServer(exec)

	rec := do(t, s, http.MethodGet, "/api/status", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"phase":"armed","state":{"isActive":true,"animal":"cat","intervalSeconds":60,"nextTriggerTime":1760000000000}}`, rec.Body.String())
	assert.Equal(t, []reminder.Command{{Type: reminder.CmdGetStatus}}, exec.got)
}

func TestHealthMetricsAndWebSocketRoutes(t *testing.T) {
	s, _ := newTestServer(&stubExecutor{})

	rec := do(t, s, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var health healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, 2, health.Pages)

	rec = do(t, s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "pets_test_total 1")

	rec = do(t, s, http.MethodGet, "/ws", "")
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	s := NewServer(Config{Debug: true, AllowedOrigins: []string{"https://app.example.com"}}, &stubExecutor{}, nil, nil, logger.Discard())

	req := httptest.NewRequest(http.MethodOptions, "/api/commands", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestUnknownCommandTypesShareOneMetricSeries(t *testing.T) {
	reg := prometheus.NewRegistry()
	observer, err := metrics.NewPrometheusObserver("pets", reg)
	require.NoError(t, err)
	coordinator := app.NewCoordinator(
		idb.NewMemoryStateRepository(),
		scheduler.NewAlarmScheduler(logger.Discard()),
		app.NewBroadcaster(logger.Discard(), time.Second, observer),
		logger.Discard(),
		app.WithObserver(observer),
	)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = coordinator.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	s := NewServer(Config{Debug: true}, coordinator, &stubHub{}, reg, logger.Discard())
	for _, typ := range []string{"FEED_PET", "DROP_TABLE", "x-42"} {
		rec := do(t, s, http.MethodPost, "/api/commands", fmt.Sprintf(`{"type":%q}`, typ))
		assert.Equal(t, http.StatusBadRequest, rec.Code, typ)
	}
	require.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/api/status", "").Code)

	families, err := reg.Gather()
	require.NoError(t, err)
	var types []string
	for _, f := range families {
		if f.GetName() != "pets_commands_total" {
			continue
		}
		for _, m := range f.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "type" {
					types = append(types, l.GetValue())
				}
			}
		}
	}
	assert.ElementsMatch(t, []string{"unknown", "GET_STATUS"}, types)
}
