package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/weather-notify/internal/application/otp"
	"github.com/weather-notify/internal/application/subscription"
	"github.com/weather-notify/internal/config"
	"github.com/weather-notify/internal/observability"
	"github.com/weather-notify/internal/transport/http/handler"
	appmiddleware "github.com/weather-notify/internal/transport/http/middleware"
)

// Deps holds the services and infrastructure the router needs.
type Deps struct {
	Store         SubscriberStore
	Subscriptions subscription.Service
	OTP           otp.Service
	Metrics       *observability.Metrics
	// MetricsHandler serves /metrics; nil uses the default Prometheus registry.
	MetricsHandler http.Handler
}

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	if deps.Metrics != nil {
		r.Use(appmiddleware.Metrics(deps.Metrics))
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	healthH := handler.NewHealthHandler(deps.Store)
	subH := handler.NewSubscriberHandler(deps.Subscriptions)
	otpH := handler.NewOTPHandler(deps.OTP)

	metricsH := deps.MetricsHandler
	if metricsH == nil {
		metricsH = promhttp.Handler()
	}

	r.Get("/healthz", healthH.Live)
	r.Get("/readyz", healthH.Ready)
	r.Method(http.MethodGet, "/metrics", metricsH)

	r.Route(cfg.APIBasePath, func(r chi.Router) {
		r.Post("/add", subH.Add)
		r.Put("/update-location/{email}", subH.UpdateLocation)
		r.Get("/weather/{email}/{date}", subH.Weather)
		r.Get("/location/{email}", subH.Location)
		r.Post("/send-otp", otpH.Send)
		r.Post("/verify-otp", otpH.Verify)
		r.Post("/unsubscribe", subH.Unsubscribe)
	})

	return r
}
