package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"zarinpal-payment-service/internal/domain"
	"zarinpal-payment-service/internal/domain/model"
	"zarinpal-payment-service/internal/infra/logging"
	"zarinpal-payment-service/internal/infra/metrics"
	"zarinpal-payment-service/internal/infra/payment"
)

// handleCallback is the gateway's browser-redirect target. It never leaks
// internal errors to the buyer: anything unexpected renders a generic page.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	q := r.URL.Query()
	status := q.Get("Status")
	authority := q.Get("Authority")
	token := q.Get("token")

	cancelled := status == "" || authority == ""

	ctx := logging.WithOrderToken(r.Context(), token)
	out, err := s.payUC.HandleCallback(ctx, status, authority, token)
	switch {
	case errors.Is(err, domain.ErrInvalidCallbackToken):
		s.observeVerify(start, "fail", "invalid_token")
		s.renderError(w, http.StatusNotFound, s.tr.T("callback.invalid"))
		return
	case errors.Is(err, domain.ErrGatewayUnavailable):
		s.observeVerify(start, "fail", "gateway_unavailable")
		s.renderError(w, http.StatusBadGateway, s.tr.T("gateway.unavailable"))
		return
	case err != nil:
		s.observeVerify(start, "fail", "unknown")
		logging.With(ctx, s.log).Error().Err(err).Msg("callback processing failed")
		s.renderError(w, http.StatusInternalServerError, s.tr.T("status.unknown"))
		return
	}

	storeURL := s.storeURL(r)

	if out.Succeeded {
		s.observeVerify(start, "ok", "")
		http.Redirect(w, r, storeURL+"/checkout/completed?token="+url.QueryEscape(token), http.StatusSeeOther)
		return
	}

	if cancelled {
		// Abandoned attempt: neutral redirect back to the order details.
		s.observeVerify(start, "fail", "cancelled")
		http.Redirect(w, r, storeURL+"/orderdetails?token="+url.QueryEscape(token), http.StatusSeeOther)
		return
	}

	// Gateway rejected the verification: show the mapped message.
	s.observeVerify(start, "fail", "rejected")
	s.renderResult(w, http.StatusOK, false, s.localizeGatewayMessage(out.Message), "", storeURL)
}

func (s *Server) observeVerify(start time.Time, result, reason string) {
	metrics.PaymentVerifyDuration.WithLabelValues(result).Observe(time.Since(start).Seconds())
	if result == "ok" {
		metrics.PaymentVerifyRequests.WithLabelValues("ok", "").Inc()
		return
	}
	metrics.PaymentVerifyRequests.WithLabelValues(result, reason).Inc()
}

// handleErrorPage maps a numeric gateway code to its localized message, the
// error-display route the storefront links buyers to.
func (s *Server) handleErrorPage(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("code")
	msg := s.tr.T("status.unknown")
	if code, err := strconv.Atoi(raw); err == nil {
		key := fmt.Sprintf("status.%d", code)
		if m := s.tr.T(key); m != key {
			msg = m
		}
	}
	s.renderError(w, http.StatusOK, msg)
}

// localizeGatewayMessage re-keys an English mapper message through the
// translator when a matching status entry exists.
func (s *Server) localizeGatewayMessage(msg string) string {
	for _, code := range []int{-1, -2, -3, -4, -11, -12, -21, -22, -33, -34, -40, -41, -42, -54, 100, 101} {
		if _, m := payment.MapStatusCode(code); m == msg {
			key := fmt.Sprintf("status.%d", code)
			if t := s.tr.T(key); t != key {
				return t
			}
		}
	}
	return msg
}

type initiateRequest struct {
	OrderToken string `json:"order_token"`
}

type initiateResponse struct {
	RedirectURL string `json:"redirect_url"`
}

// handleInitiate is called by the storefront when checkout reaches the
// payment step; it answers with the gateway redirect for the buyer.
func (s *Server) handleInitiate(w http.ResponseWriter, r *http.Request) {
	var req initiateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.OrderToken) == "" {
		writeJSONError(w, http.StatusBadRequest, "order_token is required")
		return
	}

	ctx := logging.WithOrderToken(r.Context(), req.OrderToken)
	redirectURL, err := s.payUC.Initiate(ctx, req.OrderToken)
	switch {
	case errors.Is(err, domain.ErrMerchantNotConfigured):
		writeJSONError(w, http.StatusServiceUnavailable, "payment method is not configured")
		return
	case errors.Is(err, domain.ErrInvalidCallbackToken), errors.Is(err, domain.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, "order not found")
		return
	case errors.Is(err, domain.ErrAlreadyPaid):
		writeJSONError(w, http.StatusConflict, "order is already paid")
		return
	case errors.Is(err, domain.ErrGatewayRejected):
		writeJSONError(w, http.StatusBadGateway, err.Error())
		return
	case errors.Is(err, domain.ErrGatewayUnavailable):
		writeJSONError(w, http.StatusBadGateway, s.tr.T("gateway.unavailable"))
		return
	case err != nil:
		logging.With(ctx, s.log).Error().Err(err).Msg("payment initiation failed")
		writeJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, initiateResponse{RedirectURL: redirectURL})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.apiKey == "" || bearerToken(r) != s.apiKey {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if _, err := s.auth.Mint(w); err != nil {
		s.log.Error().Err(err).Msg("failed to mint admin session")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.auth.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

type settingsPayload struct {
	Settings *model.GatewaySettings  `json:"settings"`
	Override *model.SettingsOverride `json:"override,omitempty"`
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	scope := s.scope
	if raw := r.URL.Query().Get("scope"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			writeJSONError(w, http.StatusBadRequest, "invalid scope")
			return
		}
		scope = v
	}

	cfg, err := s.settingsUC.Load(r.Context(), scope)
	if err != nil {
		s.log.Error().Err(err).Int("scope", scope).Msg("failed to load settings")
		writeJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, settingsPayload{Settings: cfg})
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	scope := s.scope
	if raw := r.URL.Query().Get("scope"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			writeJSONError(w, http.StatusBadRequest, "invalid scope")
			return
		}
		scope = v
	}

	var payload settingsPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.Settings == nil {
		writeJSONError(w, http.StatusBadRequest, "settings object is required")
		return
	}

	if err := s.settingsUC.Save(r.Context(), scope, payload.Settings, payload.Override); err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) {
			writeJSONError(w, http.StatusBadRequest, "invalid settings")
			return
		}
		s.log.Error().Err(err).Int("scope", scope).Msg("failed to save settings")
		writeJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// storeURL resolves the storefront base for post-payment redirects, falling
// back to the service root when settings cannot be loaded.
func (s *Server) storeURL(r *http.Request) string {
	cfg, err := s.settingsUC.Load(r.Context(), s.scope)
	if err != nil || cfg.StoreURL == "" {
		return ""
	}
	return strings.TrimRight(cfg.StoreURL, "/")
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

var resultPage = template.Must(template.New("result").Parse(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8" />
<meta name="viewport" content="width=device-width,initial-scale=1" />
<title>{{.Title}}</title>
<style>
body{font-family:system-ui,Arial,sans-serif;margin:2rem;}
.card{max-width:560px;border:1px solid #ddd;border-radius:12px;padding:24px;}
.ok{color:#057a55} .fail{color:#b00020}
.btn{display:inline-block;margin-top:16px;padding:10px 16px;border-radius:8px;border:1px solid #888;text-decoration:none}
</style>
</head>
<body>
<div class="card">
  <h2 class="{{if .OK}}ok{{else}}fail{{end}}">{{.Heading}}</h2>
  <p>{{.Msg}}</p>
  {{if .Tracking}}<p>{{.Tracking}}</p>{{end}}
  {{if .StoreURL}}<a class="btn" href="{{.StoreURL}}">{{.Back}}</a>{{end}}
</div>
</body>
</html>`))

func (s *Server) renderResult(w http.ResponseWriter, code int, ok bool, msg, refID, storeURL string) {
	heading := s.tr.T("page.result.failure")
	if ok {
		heading = s.tr.T("page.result.success")
	}
	tracking := ""
	if refID != "" {
		tracking = s.tr.T("page.result.tracking", refID)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	_ = resultPage.Execute(w, struct {
		Title, Heading, Msg, Tracking, StoreURL, Back string
		OK                                            bool
	}{
		Title:    s.tr.T("page.result.title"),
		Heading:  heading,
		Msg:      msg,
		Tracking: tracking,
		StoreURL: storeURL,
		Back:     s.tr.T("page.result.back"),
		OK:       ok,
	})
}

func (s *Server) renderError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	_ = resultPage.Execute(w, struct {
		Title, Heading, Msg, Tracking, StoreURL, Back string
		OK                                            bool
	}{
		Title:   s.tr.T("page.error.title"),
		Heading: s.tr.T("page.error.prefix", msg),
		Msg:     "",
		OK:      false,
	})
}
