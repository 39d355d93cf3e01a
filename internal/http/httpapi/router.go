package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"server/internal/http/handlers"
	"server/internal/infra"
	"server/internal/middleware"
)

// Options carries the router's cross-cutting configuration.
type Options struct {
	Logger          infra.Logger
	JWTSecret       string
	DefaultLocale   string
	AllowedOrigins  []string
	RateLimitPerMin int
	CountryLookup   middleware.CountryLookup
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(opts.Logger),
		middleware.CORS(opts.AllowedOrigins),
		middleware.I18N(opts.DefaultLocale, opts.CountryLookup),
	)
	if opts.RateLimitPerMin > 0 {
		r.Use(middleware.RateLimit(opts.RateLimitPerMin, time.Minute))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/healthz", app.Health)

		// Gateway callback authenticates with its signature, not a session.
		r.Post("/webhooks/midtrans", app.MidtransWebhook)

		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthJWT(opts.JWTSecret))

			r.Post("/payments", app.PaymentsCreate)
			r.Post("/payments/resume", app.PaymentsResume)

			r.Route("/transactions", func(r chi.Router) {
				r.Get("/", app.TransactionsList)
				r.Get("/{id}", app.TransactionsGet)
				r.Post("/{id}/cancel", app.TransactionsCancel)

				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireAdmin)
					r.Post("/", app.TransactionsCreateManual)
					r.Patch("/{id}/status", app.TransactionsUpdateStatus)
				})
			})

			r.Get("/contributions", app.ContributionsList)
			r.Get("/contributions/{id}", app.ContributionsGet)

			r.Get("/notifications", app.NotificationsList)
			r.Post("/notifications/read", app.NotificationsMarkRead)
		})
	})

	return r
}
