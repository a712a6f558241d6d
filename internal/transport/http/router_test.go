package http

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/weather-notify/internal/application/otp"
	"github.com/weather-notify/internal/application/subscription"
	"github.com/weather-notify/internal/config"
	"github.com/weather-notify/internal/domain"
	"github.com/weather-notify/internal/observability"
)

type fakeStore struct {
	SubscriberStore
	pingErr error
}

func (f fakeStore) Ping(context.Context) error { return f.pingErr }

type fakeSubscriptions struct {
	subscription.Service
}

func (fakeSubscriptions) GetLocation(_ context.Context, email string) (*domain.Location, error) {
	if email == "a@x.com" {
		return &domain.Location{Email: email, Location: "Colombo"}, nil
	}
	return nil, domain.ErrNotFound
}

type fakeOTP struct {
	otp.Service
	issued []string
}

func (f *fakeOTP) Issue(_ context.Context, email string) error {
	f.issued = append(f.issued, email)
	return nil
}

func newTestRouter(t *testing.T) (http.Handler, *fakeOTP) {
	t.Helper()
	cfg := &config.Config{APIBasePath: "/api/users", AllowedOrigins: []string{"https://app.example.com"}}
	metrics := observability.NewMetricsForTesting()
	reg := prometheus.NewRegistry()
	reg.MustRegister(metrics.HTTPRequests)
	o := &fakeOTP{}
	return NewRouter(cfg, &Deps{
		Store:          fakeStore{},
		Subscriptions:  fakeSubscriptions{},
		OTP:            o,
		Metrics:        metrics,
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}), o
}

func TestRouter_MountsUnderBasePath(t *testing.T) {
	h, _ := newTestRouter(t)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/users/location/a@x.com", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"email":"a@x.com","location":"Colombo"}`, rr.Body.String())

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/location/a@x.com", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRouter_SendOTP(t *testing.T) {
	h, o := newTestRouter(t)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/users/send-otp", bytes.NewBufferString(`{"email":"a@x.com"}`)))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{"a@x.com"}, o.issued)
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	h, _ := newTestRouter(t)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/users/send-otp", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	h, _ := newTestRouter(t)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `weather_notify_http_requests_total{method="GET",route="/healthz",status="200"} 1`)
}

func TestRouter_CORSPreflight(t *testing.T) {
	h, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/users/add", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, "https://app.example.com", rr.Header().Get("Access-Control-Allow-Origin"))
}
