package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	custommiddleware "github.com/mmeshcher/ambassador-ledger/internal/middleware"
)

// partnerCORS открывает эндпоинты партнёра для любого источника: партнёр работает на другом домене.
func partnerCORS() func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", "x-api-key"},
		MaxAge:         300,
	})
}

func (h *Handler) gatewayRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(partnerCORS())
	r.Get("/", h.GatewayInfo)
	r.With(custommiddleware.PartnerAuth(h.keys.Partner, h.logger)).Post("/", h.ReferralEvent)
	return r
}

// SetupRouter настраивает HTTP-маршруты и middleware реферального сервиса.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(custommiddleware.Metrics)
	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Get("/healthz", h.Healthz)
	r.Handle("/metrics", promhttp.Handler())

	r.Mount("/api/webhooks/referrals", h.gatewayRouter())
	r.Mount("/api/referrals/events", h.gatewayRouter())

	r.Route("/api/promo/verify", func(r chi.Router) {
		r.Use(partnerCORS())
		r.Get("/", h.VerifyInfo)
		r.Post("/", h.VerifyPromo)
	})

	r.Route("/api/ambassador", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.Post("/logout", h.Logout)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Get("/me", h.Me)
			r.Put("/profile", h.UpdateProfile)
			r.Get("/clients", h.Clients)

			r.Get("/payouts", h.Payouts)
			r.Post("/payouts", h.RequestPayout)

			r.Get("/notifications", h.Notifications)
			r.Post("/notifications/{notificationID}/read", h.MarkNotificationRead)
		})
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(custommiddleware.AdminAuth(h.keys.Admin, h.logger))

		r.Get("/ambassadors", h.AdminListAmbassadors)
		r.Get("/payouts", h.AdminListPayouts)
		r.Post("/notifications", h.AdminBroadcast)

		r.Route("/ambassadors/{ambassadorID}", func(r chi.Router) {
			r.Post("/promo-code", h.AdminAssignPromoCode)
			r.Put("/promo-code", h.AdminUpdatePromoCode)
			r.Post("/credits", h.AdminManualCredit)
			r.Put("/verification", h.AdminSetVerification)
			r.Put("/suspension", h.AdminSetSuspension)
			r.Post("/notifications", h.AdminNotify)
			r.Post("/payouts/{payoutID}/approve", h.AdminApprovePayout)
			r.Post("/payouts/{payoutID}/reject", h.AdminRejectPayout)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, http.StatusText(http.StatusNotFound))
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed))
	})

	return r
}
