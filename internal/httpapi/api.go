// Package httpapi is the HTTP layer: routing, middleware, the response
// envelope and the handlers that translate requests into service calls.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"murmur.dev/internal/account"
	"murmur.dev/internal/auth"
	"murmur.dev/internal/imagestore"
	"murmur.dev/internal/message"
	"murmur.dev/internal/obs"
)

// ReadyProbe checks a backing dependency for the readiness endpoint.
type ReadyProbe interface {
	Ping(ctx context.Context) error
}

// Config carries the HTTP-layer knobs out of the process configuration.
type Config struct {
	Version        string
	Dev            bool
	ShareBaseURL   string
	CORSOrigin     string
	MaxBodyBytes   int64
	MaxUploadBytes int64
	RateLimitRPS   float64
	RateLimitBurst int
}

// API wires routes to handlers.
type API struct {
	mux      *http.ServeMux
	auth     *auth.Service
	guard    *auth.Guard
	accounts account.Store
	messages *message.Service
	images   imagestore.Store
	probe    ReadyProbe

	version        string
	dev            bool
	shareBaseURL   string
	corsOrigin     string
	maxBodyBytes   int64
	maxUploadBytes int64
	rateRPS        float64
	rateBurst      int
}

// New builds the API and registers every route.
func New(authSvc *auth.Service, guard *auth.Guard, accounts account.Store, messages *message.Service, images imagestore.Store, probe ReadyProbe, cfg Config) *API {
	if images == nil {
		images = imagestore.Discard{}
	}
	a := &API{
		mux:            http.NewServeMux(),
		auth:           authSvc,
		guard:          guard,
		accounts:       accounts,
		messages:       messages,
		images:         images,
		probe:          probe,
		version:        cfg.Version,
		dev:            cfg.Dev,
		shareBaseURL:   cfg.ShareBaseURL,
		corsOrigin:     cfg.CORSOrigin,
		maxBodyBytes:   cfg.MaxBodyBytes,
		maxUploadBytes: cfg.MaxUploadBytes,
		rateRPS:        cfg.RateLimitRPS,
		rateBurst:      cfg.RateLimitBurst,
	}
	a.routes()
	return a
}

func (a *API) routes() {
	// health/ready/metrics
	a.mux.HandleFunc("GET /healthz", a.handleHealthz)
	a.mux.HandleFunc("GET /readyz", a.handleReadyz)
	a.mux.Handle("GET /metrics", obs.Handler())

	// auth: public
	a.mux.HandleFunc("POST /auth/signup", a.handleSignUp)
	a.mux.HandleFunc("POST /auth/login", a.handleLogin)
	a.mux.HandleFunc("POST /auth/confirm-email", a.handleConfirmEmail)
	a.mux.HandleFunc("PATCH /auth/resend-otp/{type}", a.handleResendOTP)
	a.mux.HandleFunc("POST /auth/forgot-password", a.handleForgotPassword)
	a.mux.HandleFunc("POST /auth/verify-reset-code", a.handleVerifyResetCode)
	a.mux.HandleFunc("PUT /auth/reset-password", a.handleResetPassword)
	a.mux.HandleFunc("POST /auth/social-login", a.handleSocialLogin)

	// auth: token-bearing. The historical route spelling is kept so existing
	// clients don't break.
	a.mux.Handle("POST /auth/refersh-token", a.authn(auth.GuardOpts{Kind: auth.RefreshToken}, a.handleRefreshToken))
	a.mux.Handle("PATCH /auth/update-password", a.authn(auth.GuardOpts{}, a.handleUpdatePassword))
	a.mux.Handle("PATCH /auth/update-email", a.authn(auth.GuardOpts{}, a.handleUpdateEmail))
	a.mux.Handle("POST /auth/resend-update-email", a.authn(auth.GuardOpts{}, a.handleResendUpdateEmail))
	a.mux.Handle("PATCH /auth/confirm-update-email", a.authn(auth.GuardOpts{}, a.handleConfirmUpdateEmail))
	a.mux.Handle("POST /auth/logout", a.authn(auth.GuardOpts{}, a.handleLogout))
	a.mux.Handle("POST /auth/logout-all", a.authn(auth.GuardOpts{}, a.handleLogoutAll))

	// user
	a.mux.Handle("GET /user/profile", a.authn(auth.GuardOpts{}, a.handleProfile))
	a.mux.Handle("GET /user/share-profile", a.authn(auth.GuardOpts{}, a.handleShareProfile))
	a.mux.HandleFunc("GET /user/public/{id}", a.handlePublicProfile)
	a.mux.Handle("PATCH /user/update", a.authn(auth.GuardOpts{}, a.handleUpdateProfile))
	a.mux.Handle("PATCH /user/deactivate/{id}", a.authn(auth.GuardOpts{}, a.handleDeactivate))
	a.mux.Handle("PATCH /user/restore/{id}", a.authn(auth.GuardOpts{AllowDeactivated: true}, a.handleRestore))
	a.mux.Handle("DELETE /user/{id}", a.authn(auth.GuardOpts{}, a.requireRole(a.handleDeleteUser, account.RoleAdmin)))
	a.mux.Handle("POST /user/profile-image", a.authn(auth.GuardOpts{}, a.handleProfileImage))
	a.mux.Handle("POST /user/cover-image", a.authn(auth.GuardOpts{}, a.handleCoverImage))

	// messages
	a.mux.HandleFunc("POST /messages/send/{receiverId}", a.handleSendMessage)
	a.mux.Handle("GET /messages/inbox", a.authn(auth.GuardOpts{}, a.handleInbox))
	a.mux.Handle("GET /messages/{id}", a.authn(auth.GuardOpts{}, a.handleGetMessage))
	a.mux.Handle("DELETE /messages/{id}", a.authn(auth.GuardOpts{}, a.handleDeleteMessage))

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		a.fail(w, http.StatusNotFound, "route not found")
	})
}

// Handler returns the fully wrapped handler for the server.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.recover(h)
	h = MaxBodyBytes(h, a.maxBodyBytes, a.maxUploadBytes)
	h = RateLimit(h, a.rateBurst, a.rateRPS)
	h = CORS(h, a.corsOrigin)
	h = SecurityHeaders(h)
	h = Logging(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

func (a *API) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "murmur-api",
		"version": a.version,
	})
}

func (a *API) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if a.probe != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if err := a.probe.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"status": "not_ready",
				"error":  err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}
