package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

func TestLive(t *testing.T) {
	rr := httptest.NewRecorder()
	NewHealthHandler(stubPinger{}).Live(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestReady(t *testing.T) {
	rr := httptest.NewRecorder()
	NewHealthHandler(stubPinger{}).Ready(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	NewHealthHandler(stubPinger{err: errors.New("no table")}).Ready(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
