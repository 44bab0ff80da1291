package account

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/elskow/users-api/internal/api"
	"github.com/elskow/users-api/internal/auth"
	"github.com/elskow/users-api/internal/httpx"
	"github.com/elskow/users-api/internal/user"
	"github.com/elskow/users-api/internal/verification"
)

type Handler struct {
	service *Service
	gate    *auth.SessionAuth
	respond *httpx.Responder
	log     *zap.Logger
}

func NewHandler(service *Service, gate *auth.SessionAuth, respond *httpx.Responder, log *zap.Logger) *Handler {
	return &Handler{
		service: service,
		gate:    gate,
		respond: respond,
		log:     log,
	}
}

func (h *Handler) Routes(r chi.Router) {
	h.handle(r, http.MethodGet, api.Users, h.ListUsers)
	h.handle(r, http.MethodPost, api.Users, h.CreateUser)
	h.handle(r, http.MethodGet, api.Teachers, h.ListTeachers)
	h.handle(r, http.MethodGet, api.User, h.GetUser)
	h.handle(r, http.MethodDelete, api.User, h.DeleteUser)
	h.handle(r, http.MethodPost, api.Admin, h.CreateAdmin)
	h.handle(r, http.MethodPut, api.AdminStatus, h.ChangeStatus)
	h.handle(r, http.MethodPut, api.Location, h.SetLocation)
	h.handle(r, http.MethodPut, api.Notification, h.UpdateNotification)
	h.handle(r, http.MethodPut, api.Biometric, h.UpdateBiometricID)
	h.handle(r, http.MethodPost, api.PasswordRecovery, h.InitiatePasswordRecovery)
	h.handle(r, http.MethodPut, api.PasswordRecovery, h.ValidateRecoveryPin)
	h.handle(r, http.MethodPut, api.Password, h.UpdatePassword)
	h.handle(r, http.MethodPost, api.RegistrationConfirmation, h.InitiateRegistrationConfirmation)
	h.handle(r, http.MethodPut, api.RegistrationConfirmation, h.ValidateRegistrationPin)
}

// handle registers fn, behind the session gate when the route requires it.
func (h *Handler) handle(r chi.Router, method, pattern string, fn http.HandlerFunc) {
	var handler http.Handler = fn
	if api.RequiresSession(method, pattern) {
		handler = h.gate.RequireSession(handler)
	}
	r.Method(method, pattern, handler)
}

func (h *Handler) userID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		h.respond.Problem(w, r, http.StatusNotFound, "The user with uuid "+raw+" was not found")
		return uuid.Nil, false
	}
	return id, true
}

func emailParam(r *http.Request) string {
	raw := chi.URLParam(r, "email")
	if email, err := url.PathUnescape(raw); err == nil {
		return email
	}
	return raw
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		h.serverError(w, r, "failed to list users", err)
		return
	}
	h.respond.Data(w, http.StatusOK, users)
}

func (h *Handler) ListTeachers(w http.ResponseWriter, r *http.Request) {
	teachers, err := h.service.ListActiveTeachers(r.Context())
	if err != nil {
		h.serverError(w, r, "failed to list teachers", err)
		return
	}
	h.respond.Data(w, http.StatusOK, teachers)
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}
	u, err := h.service.GetUser(r.Context(), id)
	if errors.Is(err, user.ErrUserNotFound) {
		h.respond.Problem(w, r, http.StatusNotFound, "The user with uuid "+id.String()+" was not found")
		return
	}
	if err != nil {
		h.serverError(w, r, "failed to get user", err)
		return
	}
	h.respond.Data(w, http.StatusOK, u)
}

func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}
	err := h.service.DeleteUser(r.Context(), id)
	if errors.Is(err, user.ErrUserNotFound) {
		h.respond.Problem(w, r, http.StatusNotFound, "The user with uuid "+id.String()+" was not found")
		return
	}
	if err != nil {
		h.serverError(w, r, "failed to delete user", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type createUserRequest struct {
	Name         *string `json:"name"`
	Surname      *string `json:"surname"`
	Password     *string `json:"password"`
	Email        *string `json:"email"`
	Status       *string `json:"status"`
	Role         *string `json:"role"`
	Notification *bool   `json:"notification"`
}

func present(s *string) bool {
	return s != nil
}

func value(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		h.respond.Problem(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if value(req.Role) == string(user.RoleAdmin) {
		h.log.Warn("self-service admin registration refused", zap.String("email", value(req.Email)))
		h.respond.Problem(w, r, http.StatusForbidden, ErrAdminSelfRegistration.Error())
		return
	}
	if missing := httpx.MissingFields(
		httpx.Field{Name: "name", Present: present(req.Name)},
		httpx.Field{Name: "surname", Present: present(req.Surname)},
		httpx.Field{Name: "password", Present: present(req.Password)},
		httpx.Field{Name: "email", Present: present(req.Email)},
		httpx.Field{Name: "status", Present: present(req.Status)},
		httpx.Field{Name: "role", Present: present(req.Role)},
	); len(missing) > 0 {
		h.log.Warn("invalid create user request", zap.Strings("missing", missing))
		h.respond.Problem(w, r, http.StatusBadRequest, httpx.MissingDetail(missing))
		return
	}

	u, outcome, err := h.service.CreateUser(r.Context(), Registration{
		Name:         *req.Name,
		Surname:      *req.Surname,
		Password:     *req.Password,
		Email:        *req.Email,
		Status:       *req.Status,
		Role:         *req.Role,
		Notification: req.Notification,
	})
	var verr *ValidationError
	switch {
	case errors.Is(err, ErrAdminSelfRegistration):
		h.respond.Problem(w, r, http.StatusForbidden, err.Error())
		return
	case errors.As(err, &verr):
		h.respond.Problem(w, r, http.StatusBadRequest, verr.Detail)
		return
	case errors.Is(err, user.ErrEmailTaken):
		h.respond.Problem(w, r, http.StatusConflict, "User with email "+*req.Email+" already exists")
		return
	case err != nil:
		h.serverError(w, r, "failed to create user", err)
		return
	}

	switch outcome {
	case ResumedPending:
		h.respond.Message(w, http.StatusTemporaryRedirect, "Pending registration verification", u)
	default:
		h.respond.Data(w, http.StatusCreated, u)
	}
}

type adminRequest struct {
	AdminEmail    string `json:"admin_email"`
	AdminPassword string `json:"admin_password"`
}

func (req adminRequest) credentials() AdminCredentials {
	return AdminCredentials{Email: req.AdminEmail, Password: req.AdminPassword}
}

type createAdminRequest struct {
	adminRequest
	Name     string `json:"name"`
	Surname  string `json:"surname"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) CreateAdmin(w http.ResponseWriter, r *http.Request) {
	var req createAdminRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		h.respond.Problem(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if missing := httpx.MissingFields(
		httpx.Field{Name: "name", Present: req.Name != ""},
		httpx.Field{Name: "surname", Present: req.Surname != ""},
		httpx.Field{Name: "email", Present: req.Email != ""},
		httpx.Field{Name: "password", Present: req.Password != ""},
	); len(missing) > 0 {
		h.respond.Problem(w, r, http.StatusBadRequest, httpx.MissingDetail(missing))
		return
	}

	admin, err := h.service.CreateAdmin(r.Context(), req.credentials(), NewAdmin{
		Name:     req.Name,
		Surname:  req.Surname,
		Email:    req.Email,
		Password: req.Password,
	})
	var verr *ValidationError
	switch {
	case errors.Is(err, auth.ErrNotAdmin):
		h.respond.Problem(w, r, http.StatusForbidden, err.Error())
		return
	case errors.As(err, &verr):
		h.respond.Problem(w, r, http.StatusBadRequest, verr.Detail)
		return
	case errors.Is(err, user.ErrEmailTaken):
		h.respond.Problem(w, r, http.StatusBadRequest, "User with email "+req.Email+" already exists")
		return
	case err != nil:
		h.serverError(w, r, "failed to create admin", err)
		return
	}

	h.respond.Message(w, http.StatusCreated, "Admin user created successfully", admin)
}

type changeStatusRequest struct {
	adminRequest
	UserID string `json:"user_id"`
}

func (h *Handler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	var req changeStatusRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		h.respond.Problem(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if missing := httpx.MissingFields(
		httpx.Field{Name: "admin_email", Present: req.AdminEmail != ""},
		httpx.Field{Name: "admin_password", Present: req.AdminPassword != ""},
		httpx.Field{Name: "user_id", Present: req.UserID != ""},
	); len(missing) > 0 {
		h.respond.Problem(w, r, http.StatusBadRequest, httpx.MissingDetail(missing))
		return
	}
	targetID, err := uuid.Parse(req.UserID)
	if err != nil {
		h.respond.Problem(w, r, http.StatusBadRequest, "User not found")
		return
	}

	u, err := h.service.ChangeStatus(r.Context(), req.credentials(), targetID)
	switch {
	case errors.Is(err, auth.ErrNotAdmin):
		h.respond.Problem(w, r, http.StatusForbidden, err.Error())
		return
	case errors.Is(err, user.ErrUserNotFound):
		h.respond.Problem(w, r, http.StatusBadRequest, "User not found")
		return
	case errors.Is(err, ErrTargetDisabled):
		h.respond.Problem(w, r, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		h.serverError(w, r, "failed to update status", err)
		return
	}

	h.respond.Message(w, http.StatusCreated, "Status updated", u)
}

type locationRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

func (h *Handler) SetLocation(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}
	var req locationRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		h.respond.Problem(w, r, http.StatusBadRequest, err.Error())
		return
	}

	loc, err := h.service.SetLocation(r.Context(), id, req.Latitude, req.Longitude)
	if h.mutationError(w, r, err, "failed to set location") {
		return
	}
	h.respond.Data(w, http.StatusOK, loc)
}

type notificationRequest struct {
	Notification *bool `json:"notification"`
}

func (h *Handler) UpdateNotification(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}
	var req notificationRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		h.respond.Problem(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Notification == nil {
		h.respond.Problem(w, r, http.StatusBadRequest, httpx.MissingDetail([]string{"notification"}))
		return
	}

	err := h.service.UpdateNotification(r.Context(), id, *req.Notification)
	if h.mutationError(w, r, err, "failed to update notification") {
		return
	}
	h.respond.Message(w, http.StatusOK, "Notification updated", map[string]bool{"notification": *req.Notification})
}

type biometricRequest struct {
	BiometricID string `json:"id_biometric"`
}

func (h *Handler) UpdateBiometricID(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}
	var req biometricRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		h.respond.Problem(w, r, http.StatusBadRequest, err.Error())
		return
	}

	err := h.service.UpdateBiometricID(r.Context(), id, req.BiometricID)
	if h.mutationError(w, r, err, "failed to update biometric id") {
		return
	}
	h.respond.Message(w, http.StatusOK, "Biometric id updated", nil)
}

type pinRequest struct {
	Pin string `json:"pin"`
}

func (h *Handler) InitiatePasswordRecovery(w http.ResponseWriter, r *http.Request) {
	err := h.service.InitiatePasswordRecovery(r.Context(), emailParam(r))
	if h.pinError(w, r, err) {
		return
	}
	h.respond.Message(w, http.StatusOK, "PIN sent", nil)
}

func (h *Handler) ValidateRecoveryPin(w http.ResponseWriter, r *http.Request) {
	var req pinRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		h.respond.Problem(w, r, http.StatusBadRequest, err.Error())
		return
	}

	err := h.service.ValidateRecoveryPin(r.Context(), emailParam(r), req.Pin)
	if h.pinError(w, r, err) {
		return
	}
	h.respond.Message(w, http.StatusOK, "PIN validated", nil)
}

type passwordRequest struct {
	Password string `json:"password"`
}

func (h *Handler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		h.respond.Problem(w, r, http.StatusBadRequest, err.Error())
		return
	}

	err := h.service.UpdatePassword(r.Context(), emailParam(r), req.Password)
	if h.pinError(w, r, err) {
		return
	}
	h.respond.Message(w, http.StatusOK, "Password updated", nil)
}

func (h *Handler) InitiateRegistrationConfirmation(w http.ResponseWriter, r *http.Request) {
	err := h.service.InitiateRegistrationConfirmation(r.Context(), emailParam(r))
	if h.pinError(w, r, err) {
		return
	}
	h.respond.Message(w, http.StatusOK, "PIN sent", nil)
}

func (h *Handler) ValidateRegistrationPin(w http.ResponseWriter, r *http.Request) {
	var req pinRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		h.respond.Problem(w, r, http.StatusBadRequest, err.Error())
		return
	}

	u, err := h.service.ValidateRegistrationPin(r.Context(), emailParam(r), req.Pin)
	if h.pinError(w, r, err) {
		return
	}
	h.respond.Message(w, http.StatusOK, "PIN validated", u)
}

func (h *Handler) pinError(w http.ResponseWriter, r *http.Request, err error) bool {
	var verr *ValidationError
	switch {
	case err == nil:
		return false
	case errors.As(err, &verr):
		h.respond.Problem(w, r, http.StatusBadRequest, verr.Detail)
	case errors.Is(err, user.ErrUserNotFound):
		h.respond.Problem(w, r, http.StatusNotFound, "User with email "+emailParam(r)+" not found")
	case errors.Is(err, verification.ErrAlreadyConfirmed):
		h.respond.Problem(w, r, http.StatusConflict, "Registration for "+emailParam(r)+" is already confirmed")
	case errors.Is(err, verification.ErrPinAlreadyActive):
		h.respond.Problem(w, r, http.StatusTooManyRequests, "A PIN was already sent, wait before requesting a new one")
	case errors.Is(err, verification.ErrInvalidPin):
		h.respond.Problem(w, r, http.StatusUnauthorized, "Invalid or expired PIN")
	case errors.Is(err, verification.ErrNotificationFailed):
		h.respond.Problem(w, r, http.StatusInternalServerError, "Failed to send PIN email")
	default:
		h.serverError(w, r, "verification failed", err)
	}
	return true
}

func (h *Handler) mutationError(w http.ResponseWriter, r *http.Request, err error, msg string) bool {
	var verr *ValidationError
	switch {
	case err == nil:
		return false
	case errors.As(err, &verr):
		h.log.Warn("invalid request", zap.String("path", r.URL.Path), zap.String("detail", verr.Detail))
		h.respond.Problem(w, r, http.StatusBadRequest, verr.Detail)
	case errors.Is(err, user.ErrUserNotFound):
		h.respond.Problem(w, r, http.StatusNotFound, "The user with uuid "+chi.URLParam(r, "id")+" was not found")
	default:
		h.serverError(w, r, msg, err)
	}
	return true
}

func (h *Handler) serverError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	h.log.Error(msg, zap.String("path", r.URL.Path), zap.Error(err))
	h.respond.Problem(w, r, http.StatusInternalServerError, msg)
}
