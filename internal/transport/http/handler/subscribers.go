package handler

import (
	"errors"
	"net/http"

	"github.com/weather-notify/internal/application/subscription"
	"github.com/weather-notify/internal/domain"
	"github.com/weather-notify/internal/pkg/validate"
)

// SubscriberHandler serves registration, location and unsubscribe endpoints.
type SubscriberHandler struct {
	svc subscription.Service
}

func NewSubscriberHandler(svc subscription.Service) *SubscriberHandler {
	return &SubscriberHandler{svc: svc}
}

func (h *SubscriberHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}
	if req.Email == "" || req.Location == "" {
		writeError(w, http.StatusBadRequest, "Email and location are required!")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.svc.Register(r.Context(), req.Email, req.Location); err != nil {
		status := statusFor(err)
		logFault(r, status, err)
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, MessageEnvelope{Message: "User registered successfully"})
}

// UpdateLocation answers with the updated record as JSON and with plain-text errors.
func (h *SubscriberHandler) UpdateLocation(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateLocationRequest
	if err := decode(r, &req); err != nil {
		writeText(w, http.StatusBadRequest, msgInvalidBody)
		return
	}
	if err := validate.Struct(req); err != nil {
		writeText(w, http.StatusBadRequest, err.Error())
		return
	}
	sub, err := h.svc.UpdateLocation(r.Context(), pathParam(r, "email"), req.Location)
	if err != nil {
		h.textError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

// Weather returns the snapshot for the given date, or an empty 200 when none exists.
func (h *SubscriberHandler) Weather(w http.ResponseWriter, r *http.Request) {
	snap, err := h.svc.GetWeatherSnapshot(r.Context(), pathParam(r, "email"), pathParam(r, "date"))
	if err != nil {
		h.textError(w, r, err)
		return
	}
	if snap == nil {
		w.WriteHeader(http.StatusOK)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *SubscriberHandler) Location(w http.ResponseWriter, r *http.Request) {
	loc, err := h.svc.GetLocation(r.Context(), pathParam(r, "email"))
	if err != nil {
		h.textError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loc)
}

func (h *SubscriberHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	var req domain.OTPRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidOTP)
		return
	}
	err := h.svc.Unsubscribe(r.Context(), req.Email, req.OTP)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, MessageEnvelope{Message: "User unsubscribed successfully"})
	case errors.Is(err, domain.ErrInvalidOTP):
		writeError(w, http.StatusBadRequest, msgInvalidOTP)
	default:
		logFault(r, http.StatusInternalServerError, err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (h *SubscriberHandler) textError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusNotFound {
		writeText(w, status, msgNotFound)
		return
	}
	logFault(r, status, err)
	writeText(w, status, err.Error())
}
