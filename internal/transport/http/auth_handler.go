package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"evalreport/internal/auth"
	"evalreport/internal/config"
	apierrors "evalreport/internal/errors"
	"evalreport/internal/infrastructure"
	"evalreport/internal/middleware"
)

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,max=256"`
}

// LoginResponse carries the session and its token for bearer clients.
type LoginResponse struct {
	Token   string        `json:"token"`
	Session *auth.Session `json:"session"`
}

// AuthHandler handles login, logout and the current session.
type AuthHandler struct {
	directory    *auth.Directory
	sessions     *auth.SessionStore
	validator    *middleware.Validator
	metrics      *infrastructure.ReportMetrics
	secureCookie bool
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(directory *auth.Directory, sessions *auth.SessionStore, validator *middleware.Validator, metrics *infrastructure.ReportMetrics, secureCookie bool, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *AuthHandler {
	return &AuthHandler{
		directory:    directory,
		sessions:     sessions,
		validator:    validator,
		metrics:      metrics,
		secureCookie: secureCookie,
		logger:       logger.With(slog.String("component", "auth_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the auth routes. requireSession guards logout and me.
func (h *AuthHandler) Routes(requireSession func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/login", h.Login)
	r.Group(func(r chi.Router) {
		r.Use(requireSession)
		r.Post("/logout", h.Logout)
		r.Get("/me", h.Me)
	})
	return r
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	user, err := h.directory.Authenticate(req.Username, req.Password)
	if err != nil {
		infrastructure.RecordLogin(r.Context(), h.metrics, false)
		h.logger.WarnContext(r.Context(), "login failed",
			slog.String("username", req.Username),
			slog.String("remote_addr", r.RemoteAddr))
		if errors.Is(err, auth.ErrInvalidCredentials) {
			err = apierrors.ErrInvalidCredentials
		}
		h.errorHandler.HandleError(w, r, err)
		return
	}

	session := h.sessions.Create(user)
	infrastructure.RecordLogin(r.Context(), h.metrics, true)
	h.logger.InfoContext(r.Context(), "login succeeded",
		slog.String("username", session.Username),
		slog.String("role", session.Role))

	http.SetCookie(w, &http.Cookie{
		Name:     config.SessionCookieName,
		Value:    session.Token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	render.JSON(w, r, LoginResponse{Token: session.Token, Session: session})
}

// Logout handles POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if session, ok := auth.SessionFromContext(r.Context()); ok {
		h.sessions.Revoke(session.Token)
		h.logger.InfoContext(r.Context(), "logout", slog.String("username", session.Username))
	}

	http.SetCookie(w, &http.Cookie{
		Name:     config.SessionCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	session, ok := auth.SessionFromContext(r.Context())
	if !ok {
		h.errorHandler.HandleError(w, r, apierrors.ErrUnauthorized)
		return
	}
	render.JSON(w, r, session)
}
