package web

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"zarinpal-payment-service/internal/infra/i18n"
	"zarinpal-payment-service/internal/usecase"
)

type Server struct {
	payUC      usecase.PaymentUseCase
	settingsUC usecase.SettingsUseCase
	tr         *i18n.Translator
	auth       *AuthManager
	apiKey     string
	scope      int
	cbPath     string
	log        *zerolog.Logger
}

func NewServer(
	payUC usecase.PaymentUseCase,
	settingsUC usecase.SettingsUseCase,
	tr *i18n.Translator,
	auth *AuthManager,
	apiKey string,
	scope int,
	callbackPath string,
	logger *zerolog.Logger,
) *Server {
	if callbackPath == "" {
		callbackPath = "/payment/zarinpal/callback"
	}
	return &Server{
		payUC:      payUC,
		settingsUC: settingsUC,
		tr:         tr,
		auth:       auth,
		apiKey:     apiKey,
		scope:      scope,
		cbPath:     callbackPath,
		log:        logger,
	}
}

// Router builds the service's full HTTP surface: the gateway redirect
// target, the error-display page, the storefront-facing initiate API, and
// the auth-guarded settings round trip.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLog(s.log))
	r.Use(middleware.Recoverer)

	r.Get(s.cbPath, s.handleCallback)
	r.Get("/payment/zarinpal/error", s.handleErrorPage)
	r.Post("/api/v1/payment/initiate", s.handleInitiate)

	r.Post("/api/v1/admin/login", s.handleLogin)
	r.Post("/api/v1/admin/logout", s.handleLogout)
	r.Route("/api/v1/settings", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/", s.handleGetSettings)
		r.Put("/", s.handlePutSettings)
	})

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// authMiddleware admits either a minted admin session or the raw API key.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey == "" {
			s.log.Error().Msg("admin API key is not configured")
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		if _, err := s.auth.ParseFromRequest(r); err == nil {
			next.ServeHTTP(w, r)
			return
		}
		if bearerToken(r) == s.apiKey {
			next.ServeHTTP(w, r)
			return
		}
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	})
}

func bearerToken(r *http.Request) string {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return parts[1]
}
