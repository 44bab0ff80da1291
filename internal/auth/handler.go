package auth

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/elskow/users-api/internal/api"
	"github.com/elskow/users-api/internal/httpx"
	"github.com/elskow/users-api/internal/user"
)

type Handler struct {
	service  *Service
	sessions *SessionManager
	respond  *httpx.Responder
	log      *zap.Logger
}

func NewHandler(service *Service, sessions *SessionManager, respond *httpx.Responder, log *zap.Logger) *Handler {
	return &Handler{
		service:  service,
		sessions: sessions,
		respond:  respond,
		log:      log,
	}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post(api.Login, h.Login)
	r.Post(api.AdminLogin, h.LoginAdmin)
	r.Post(api.BiometricLogin, h.LoginBiometric)
	r.Get(api.GoogleConsent, h.GoogleConsent)
	r.Get(api.GoogleCallback, h.GoogleCallback)
	r.Post(api.GoogleSignUp, h.GoogleSignUp)
	r.Post(api.GoogleLogin, h.GoogleLogin)
	r.Post(api.Logout, h.Logout)
	r.Get(api.SessionStatus, h.SessionStatus)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (req loginRequest) missing() []string {
	return httpx.MissingFields(
		httpx.Field{Name: "email", Present: req.Email != ""},
		httpx.Field{Name: "password", Present: req.Password != ""},
	)
}

func (h *Handler) decodeLogin(w http.ResponseWriter, r *http.Request) (loginRequest, bool) {
	var req loginRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		h.log.Warn("invalid login request", zap.Error(err))
		h.respond.Problem(w, r, http.StatusBadRequest, err.Error())
		return req, false
	}
	if missing := req.missing(); len(missing) > 0 {
		h.log.Warn("invalid login request", zap.Strings("missing", missing))
		h.respond.Problem(w, r, http.StatusBadRequest, httpx.MissingDetail(missing))
		return req, false
	}
	return req, true
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeLogin(w, r)
	if !ok {
		return
	}

	u, err := h.service.Login(r.Context(), req.Email, req.Password)
	switch {
	case errors.Is(err, user.ErrUserNotFound):
		h.respond.Problem(w, r, http.StatusNotFound, "User with email "+req.Email+" not found")
		return
	case errors.Is(err, ErrInvalidPassword):
		h.respond.Problem(w, r, http.StatusForbidden, "Invalid password")
		return
	case err != nil:
		h.serverError(w, r, "login failed", err)
		return
	}

	h.startSession(w, r, u, false)
}

func (h *Handler) LoginAdmin(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeLogin(w, r)
	if !ok {
		return
	}

	u, err := h.service.LoginAdmin(r.Context(), req.Email, req.Password)
	switch {
	case errors.Is(err, user.ErrUserNotFound), errors.Is(err, ErrInvalidPassword):
		h.respond.Problem(w, r, http.StatusForbidden, ErrNotAdmin.Error())
		return
	case errors.Is(err, ErrNotAdmin):
		h.respond.Problem(w, r, http.StatusForbidden, "is not admin")
		return
	case err != nil:
		h.serverError(w, r, "admin login failed", err)
		return
	}

	if err := h.sessions.Issue(w, u.Email, true); err != nil {
		h.serverError(w, r, "failed to issue session", err)
		return
	}
	h.log.Info("admin login", zap.String("email", u.Email))
	h.respond.Message(w, http.StatusOK, "Admin login successful", u)
}

type biometricLoginRequest struct {
	Email       string `json:"email"`
	BiometricID string `json:"id_biometric"`
}

func (h *Handler) LoginBiometric(w http.ResponseWriter, r *http.Request) {
	var req biometricLoginRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		h.respond.Problem(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if missing := httpx.MissingFields(
		httpx.Field{Name: "email", Present: req.Email != ""},
		httpx.Field{Name: "id_biometric", Present: req.BiometricID != ""},
	); len(missing) > 0 {
		h.respond.Problem(w, r, http.StatusBadRequest, httpx.MissingDetail(missing))
		return
	}

	u, err := h.service.LoginBiometric(r.Context(), req.Email, req.BiometricID)
	switch {
	case errors.Is(err, user.ErrUserNotFound):
		h.respond.Problem(w, r, http.StatusNotFound, "User with email "+req.Email+" not found")
		return
	case errors.Is(err, ErrAccountDisabled):
		h.respond.Problem(w, r, http.StatusForbidden, "User is disabled")
		return
	case errors.Is(err, ErrBiometricMismatch):
		h.respond.Problem(w, r, http.StatusUnauthorized, "Invalid biometric id")
		return
	case err != nil:
		h.serverError(w, r, "biometric login failed", err)
		return
	}

	if err := h.sessions.Issue(w, u.Email, false); err != nil {
		h.serverError(w, r, "failed to issue session", err)
		return
	}
	h.respond.Message(w, http.StatusOK, "Biometric login successful", u)
}

func (h *Handler) GoogleConsent(w http.ResponseWriter, r *http.Request) {
	target, err := h.service.GoogleConsentURL(r.URL.Query().Get("role"))
	if err != nil {
		h.respond.Problem(w, r, http.StatusBadRequest, err.Error())
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func (h *Handler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("code") == "" {
		h.respond.Problem(w, r, http.StatusBadRequest, httpx.MissingDetail([]string{"code"}))
		return
	}

	u, created, err := h.service.AuthorizeFederated(r.Context(), q.Get("code"), q.Get("state"))
	if h.federatedError(w, r, err) {
		return
	}
	h.federatedSession(w, r, u, created)
}

type googleRequest struct {
	Token string `json:"token"`
	Role  string `json:"role"`
}

func (h *Handler) GoogleSignUp(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeGoogle(w, r)
	if !ok {
		return
	}

	u, created, err := h.service.SignUpFederated(r.Context(), req.Token, req.Role)
	if h.federatedError(w, r, err) {
		return
	}
	h.federatedSession(w, r, u, created)
}

func (h *Handler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeGoogle(w, r)
	if !ok {
		return
	}

	u, err := h.service.LoginFederated(r.Context(), req.Token)
	if h.federatedError(w, r, err) {
		return
	}
	h.federatedSession(w, r, u, false)
}

func (h *Handler) decodeGoogle(w http.ResponseWriter, r *http.Request) (googleRequest, bool) {
	var req googleRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		h.respond.Problem(w, r, http.StatusBadRequest, err.Error())
		return req, false
	}
	if req.Token == "" {
		h.respond.Problem(w, r, http.StatusBadRequest, httpx.MissingDetail([]string{"token"}))
		return req, false
	}
	return req, true
}

func (h *Handler) federatedError(w http.ResponseWriter, r *http.Request, err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrInvalidRole):
		h.respond.Problem(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrInvalidIdentityToken):
		h.respond.Problem(w, r, http.StatusUnauthorized, "Invalid Google token")
	case errors.Is(err, user.ErrUserNotFound):
		h.respond.Problem(w, r, http.StatusNotFound, "User not registered")
	case errors.Is(err, ErrAccountDisabled):
		h.respond.Problem(w, r, http.StatusForbidden, "User is disabled")
	default:
		h.serverError(w, r, "federated authentication failed", err)
	}
	return true
}

func (h *Handler) federatedSession(w http.ResponseWriter, r *http.Request, u *user.User, created bool) {
	if err := h.sessions.Issue(w, u.Email, false); err != nil {
		h.serverError(w, r, "failed to issue session", err)
		return
	}
	message := "Login successful"
	if created {
		message = "User created successfully"
	}
	h.respond.Message(w, http.StatusOK, message, u)
}

func (h *Handler) Logout(w http.ResponseWriter, _ *http.Request) {
	h.sessions.Clear(w)
	h.respond.Message(w, http.StatusOK, "Logged out", nil)
}

type sessionStatus struct {
	Email      string `json:"email,omitempty"`
	Privileged bool   `json:"privileged"`
}

func (h *Handler) SessionStatus(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Validate(r); err != nil {
		h.respond.Problem(w, r, http.StatusUnauthorized, "Session expired or missing")
		return
	}

	var status sessionStatus
	if s, err := h.sessions.Current(r); err == nil {
		status = sessionStatus{Email: s.Subject, Privileged: s.Privileged}
	}
	h.respond.Message(w, http.StatusOK, "Session valid", status)
}

func (h *Handler) startSession(w http.ResponseWriter, r *http.Request, u *user.User, privileged bool) {
	if err := h.sessions.Issue(w, u.Email, privileged); err != nil {
		h.serverError(w, r, "failed to issue session", err)
		return
	}
	h.respond.Data(w, http.StatusOK, u)
}

func (h *Handler) serverError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	h.log.Error(msg, zap.String("path", r.URL.Path), zap.Error(err))
	h.respond.Problem(w, r, http.StatusInternalServerError, msg)
}
