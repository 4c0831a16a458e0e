package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrEthical07/marketauth/logging"
	"github.com/MrEthical07/marketauth/middleware"
)

// RouterDeps collects what NewRouter needs.
type RouterDeps struct {
	Service Service
	Logger  logging.Logger

	// Metrics is mounted at /metrics when set.
	Metrics http.Handler

	// TrustForwardedFor takes the client address from X-Forwarded-For.
	TrustForwardedFor bool
}

// NewRouter builds the full route tree.
//
// Middleware order:
//
//	Recover → ClientContext → requireKind → Guard (authenticated group only)
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recover(deps.Logger))
	r.Use(middleware.ClientContext(deps.TrustForwardedFor))

	h := NewHandler(deps.Service, deps.Logger)

	r.Get("/healthz", h.Health)
	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics)
	}

	r.Route("/v1/{kind}", func(r chi.Router) {
		r.Use(requireKind)

		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.Post("/logout", h.Logout)
		r.Post("/password/forgot", h.ForgotPassword)
		r.Post("/password/reset", h.ResetPassword)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Guard(deps.Service, kindParam))

			r.Get("/me", h.Me)
			r.Get("/sessions", h.Sessions)
			r.Post("/logout/all", h.LogoutAll)
			r.Post("/password/change", h.ChangePassword)
		})
	})

	return r
}
