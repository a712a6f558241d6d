package handler

import (
	"net/http"

	"github.com/weather-notify/internal/application/otp"
	"github.com/weather-notify/internal/domain"
	"github.com/weather-notify/internal/pkg/validate"
)

// OTPHandler serves the plain-text OTP endpoints.
type OTPHandler struct {
	svc otp.Service
}

func NewOTPHandler(svc otp.Service) *OTPHandler { return &OTPHandler{svc: svc} }

func (h *OTPHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req domain.SendOTPRequest
	if err := decode(r, &req); err != nil {
		writeText(w, http.StatusBadRequest, msgInvalidBody)
		return
	}
	if err := validate.Struct(req); err != nil {
		writeText(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.svc.Issue(r.Context(), req.Email); err != nil {
		status := statusFor(err)
		logFault(r, status, err)
		writeText(w, status, err.Error())
		return
	}
	writeText(w, http.StatusOK, "OTP sent to email")
}

func (h *OTPHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req domain.OTPRequest
	if err := decode(r, &req); err != nil {
		writeText(w, http.StatusBadRequest, msgInvalidBody)
		return
	}
	if err := validate.Struct(req); err != nil {
		writeText(w, http.StatusBadRequest, msgInvalidOTP)
		return
	}
	ok, err := h.svc.Verify(r.Context(), req.Email, req.OTP)
	if err != nil {
		logFault(r, http.StatusInternalServerError, err)
		writeText(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !ok {
		writeText(w, http.StatusBadRequest, msgInvalidOTP)
		return
	}
	writeText(w, http.StatusOK, "OTP verified")
}
