package account

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elskow/users-api/internal/auth"
	"github.com/elskow/users-api/internal/httpx"
	"github.com/elskow/users-api/internal/user"
)

func (f *fixture) do(t *testing.T, method, path string, body interface{}, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) httpx.Problem {
	t.Helper()
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	var p httpx.Problem
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&p))
	return p
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder, data interface{}) string {
	t.Helper()
	var env struct {
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	if data != nil {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env.Message
}

func userBody(email string) map[string]interface{} {
	return map[string]interface{}{
		"name":     "Ada",
		"surname":  "Lovelace",
		"password": "analytical",
		"email":    email,
		"status":   "inactive",
		"role":     "student",
	}
}

func TestHandler_CreateUser(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(t *testing.T, f *fixture)
		body       map[string]interface{}
		wantStatus int
		wantDetail string
	}{
		{
			name:       "created",
			body:       userBody("ada@example.com"),
			wantStatus: http.StatusCreated,
		},
		{
			name: "admin role is forbidden before field checks",
			body: map[string]interface{}{
				"email": "root@example.com",
				"role":  "admin",
			},
			wantStatus: http.StatusForbidden,
		},
		{
			name: "missing fields are listed",
			body: map[string]interface{}{
				"name":  "Ada",
				"email": "ada@example.com",
				"role":  "student",
			},
			wantStatus: http.StatusBadRequest,
			wantDetail: "Missing fields: surname, password, status",
		},
		{
			name: "invalid role",
			body: func() map[string]interface{} {
				b := userBody("ada@example.com")
				b["role"] = "janitor"
				return b
			}(),
			wantStatus: http.StatusBadRequest,
			wantDetail: "Invalid role: janitor",
		},
		{
			name: "duplicate email",
			setup: func(t *testing.T, f *fixture) {
				f.addUser(t, "ada@example.com", "pw", user.RoleStudent, user.StatusActive)
			},
			body:       userBody("ada@example.com"),
			wantStatus: http.StatusConflict,
			wantDetail: "User with email ada@example.com already exists",
		},
		{
			name: "pending registration",
			setup: func(t *testing.T, f *fixture) {
				f.addPending(t, "ada@example.com", "pw", user.RoleStudent)
				require.NoError(t, f.svc.InitiateRegistrationConfirmation(context.Background(), "ada@example.com"))
			},
			body:       userBody("ada@example.com"),
			wantStatus: http.StatusTemporaryRedirect,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if tt.setup != nil {
				tt.setup(t, f)
			}

			rec := f.do(t, http.MethodPost, "/users", tt.body)
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())

			if rec.Code >= http.StatusBadRequest {
				p := decodeProblem(t, rec)
				assert.Equal(t, "about:blank", p.Type)
				assert.Equal(t, "/users", p.Instance)
				if tt.wantDetail != "" {
					assert.Equal(t, tt.wantDetail, p.Detail)
				}
				return
			}

			var created user.User
			msg := decodeEnvelope(t, rec, &created)
			assert.Equal(t, "ada@example.com", created.Email)
			assert.NotEqual(t, uuid.Nil, created.ID)
			if rec.Code == http.StatusTemporaryRedirect {
				assert.Equal(t, "Pending registration verification", msg)
			}
		})
	}
}

func TestHandler_CreateUserRejectsNonJSON(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodPost, "/users", bytes.NewBufferString("name=ada"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeProblem(t, rec).Detail, "is not json")
}

func TestHandler_SessionGating(t *testing.T) {
	f := newFixture(t)
	u := f.addUser(t, "ada@example.com", "pw", user.RoleStudent, user.StatusActive)
	cookie := f.sessionCookie(t, "ada@example.com")

	gated := []struct {
		method string
		path   string
		body   interface{}
		want   int
	}{
		{method: http.MethodGet, path: "/users", want: http.StatusOK},
		{method: http.MethodGet, path: "/users/teachers", want: http.StatusOK},
		{method: http.MethodGet, path: "/users/" + u.ID.String(), want: http.StatusOK},
		{method: http.MethodPut, path: "/users/" + u.ID.String() + "/location", body: map[string]float64{"latitude": 1, "longitude": 2}, want: http.StatusOK},
		{method: http.MethodPut, path: "/users/" + u.ID.String() + "/notification", body: map[string]bool{"notification": false}, want: http.StatusOK},
	}

	for _, tt := range gated {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := f.do(t, tt.method, tt.path, tt.body)
			require.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "Session expired or missing", decodeProblem(t, rec).Detail)

			rec = f.do(t, tt.method, tt.path, tt.body, cookie)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}

	t.Run("biometric update is open", func(t *testing.T) {
		rec := f.do(t, http.MethodPut, "/users/"+u.ID.String()+"/biometric", map[string]string{"id_biometric": "fp-1"})
		assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	})
}

func TestHandler_GetUser(t *testing.T) {
	f := newFixture(t)
	u := f.addUser(t, "ada@example.com", "pw", user.RoleStudent, user.StatusActive)
	cookie := f.sessionCookie(t, "ada@example.com")

	rec := f.do(t, http.MethodGet, "/users/"+u.ID.String(), nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	var got map[string]interface{}
	decodeEnvelope(t, rec, &got)
	assert.Equal(t, u.ID.String(), got["uuid"])
	assert.NotContains(t, got, "password")

	rec = f.do(t, http.MethodGet, "/users/"+uuid.NewString(), nil, cookie)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodGet, "/users/not-a-uuid", nil, cookie)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_DeleteUser(t *testing.T) {
	f := newFixture(t)
	u := f.addUser(t, "ada@example.com", "pw", user.RoleStudent, user.StatusActive)
	cookie := f.sessionCookie(t, "ada@example.com")

	rec := f.do(t, http.MethodDelete, "/users/"+u.ID.String(), nil, cookie)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodDelete, "/users/"+u.ID.String(), nil, cookie)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_SetLocation(t *testing.T) {
	f := newFixture(t)
	u := f.addUser(t, "ada@example.com", "pw", user.RoleStudent, user.StatusActive)
	cookie := f.sessionCookie(t, "ada@example.com")
	path := "/users/" + u.ID.String() + "/location"

	rec := f.do(t, http.MethodPut, path, map[string]float64{"latitude": 91, "longitude": 0}, cookie)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid latitude", decodeProblem(t, rec).Detail)

	rec = f.do(t, http.MethodPut, path, map[string]float64{}, cookie)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Location is required", decodeProblem(t, rec).Detail)

	rec = f.do(t, http.MethodPut, "/users/"+uuid.NewString()+"/location", map[string]float64{"latitude": 1, "longitude": 1}, cookie)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPut, path, map[string]float64{"latitude": -12.5, "longitude": 130}, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	var loc user.Location
	decodeEnvelope(t, rec, &loc)
	assert.Equal(t, -12.5, loc.Latitude)
	assert.Equal(t, 130.0, loc.Longitude)
}

func TestHandler_UpdateNotificationStoreFailure(t *testing.T) {
	f := newFixture(t)
	u := f.addUser(t, "ada@example.com", "pw", user.RoleStudent, user.StatusActive)
	cookie := f.sessionCookie(t, "ada@example.com")
	f.users.FailUpdates(errors.New("connection refused"))

	rec := f.do(t, http.MethodPut, "/users/"+u.ID.String()+"/notification", map[string]bool{"notification": false}, cookie)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "ServerError", decodeProblem(t, rec).Title)
}

func TestHandler_AdminOperations(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "root@example.com", "rootpass", user.RoleAdmin, user.StatusActive)
	target := f.addUser(t, "ada@example.com", "pw", user.RoleStudent, user.StatusActive)

	t.Run("create admin", func(t *testing.T) {
		body := map[string]string{
			"admin_email":    "root@example.com",
			"admin_password": "rootpass",
			"name":           "Second",
			"surname":        "Admin",
			"email":          "second@example.com",
			"password":       "second",
		}
		rec := f.do(t, http.MethodPost, "/users/admin", body)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		assert.Equal(t, "Admin user created successfully", decodeEnvelope(t, rec, nil))

		rec = f.do(t, http.MethodPost, "/users/admin", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		body["admin_password"] = "wrong"
		rec = f.do(t, http.MethodPost, "/users/admin", body)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("toggle status", func(t *testing.T) {
		body := map[string]string{
			"admin_email":    "root@example.com",
			"admin_password": "rootpass",
			"user_id":        target.ID.String(),
		}

		rec := f.do(t, http.MethodPut, "/users/admin/status", body)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var got user.User
		assert.Equal(t, "Status updated", decodeEnvelope(t, rec, &got))
		assert.Equal(t, user.StatusInactive, got.Status)

		rec = f.do(t, http.MethodPut, "/users/admin/status", body)
		require.Equal(t, http.StatusCreated, rec.Code)
		decodeEnvelope(t, rec, &got)
		assert.Equal(t, user.StatusActive, got.Status)

		body["user_id"] = uuid.NewString()
		rec = f.do(t, http.MethodPut, "/users/admin/status", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("disabled target is left alone", func(t *testing.T) {
		off := f.addUser(t, "off@example.com", "pw", user.RoleStudent, user.StatusDisabled)
		rec := f.do(t, http.MethodPut, "/users/admin/status", map[string]string{
			"admin_email":    "root@example.com",
			"admin_password": "rootpass",
			"user_id":        off.ID.String(),
		})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "disabled accounts cannot be toggled", decodeProblem(t, rec).Detail)
	})

	t.Run("disabled admin is rejected", func(t *testing.T) {
		f.addUser(t, "gone@example.com", "gonepass", user.RoleAdmin, user.StatusDisabled)
		rec := f.do(t, http.MethodPut, "/users/admin/status", map[string]string{
			"admin_email":    "gone@example.com",
			"admin_password": "gonepass",
			"user_id":        target.ID.String(),
		})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("non admin is rejected", func(t *testing.T) {
		rec := f.do(t, http.MethodPut, "/users/admin/status", map[string]string{
			"admin_email":    "ada@example.com",
			"admin_password": "pw",
			"user_id":        target.ID.String(),
		})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestHandler_PasswordRecovery(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "ada@example.com", "old", user.RoleStudent, user.StatusActive)
	path := "/users/ada@example.com/password-recovery"

	rec := f.do(t, http.MethodPost, "/users/missing@x.com/password-recovery", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "/users/missing@x.com/password-recovery", decodeProblem(t, rec).Instance)

	rec = f.do(t, http.MethodPost, path, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "PIN sent", decodeEnvelope(t, rec, nil))

	rec = f.do(t, http.MethodPost, path, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = f.do(t, http.MethodPut, path, map[string]string{"pin": "12a4"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "PIN must be 4 digits", decodeProblem(t, rec).Detail)

	code := f.notifier.lastCode("ada@example.com")
	wrong := "0000"
	if code == wrong {
		wrong = "1111"
	}
	rec = f.do(t, http.MethodPut, path, map[string]string{"pin": wrong})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodPut, path, map[string]string{"pin": code})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "PIN validated", decodeEnvelope(t, rec, nil))

	rec = f.do(t, http.MethodPut, "/users/ada@example.com/password", map[string]string{"password": "fresh"})
	require.Equal(t, http.StatusOK, rec.Code)

	_, err := f.authSvc.Login(context.Background(), "ada@example.com", "fresh")
	assert.NoError(t, err)
}

func TestHandler_RegistrationConfirmation(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/users", userBody("ada@example.com"))
	require.Equal(t, http.StatusCreated, rec.Code)

	path := "/users/ada@example.com/confirm-registration"
	rec = f.do(t, http.MethodPost, path, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodPost, path, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = f.do(t, http.MethodPut, path, map[string]string{"pin": f.notifier.lastCode("ada@example.com")})
	require.Equal(t, http.StatusOK, rec.Code)
	var got user.User
	decodeEnvelope(t, rec, &got)
	assert.Equal(t, user.StatusActive, got.Status)
}

func TestHandler_ConfirmedRegistrationCannotBeReplayed(t *testing.T) {
	f := newFixture(t)
	path := "/users/ada@example.com/confirm-registration"

	rec := f.do(t, http.MethodPost, "/users", userBody("ada@example.com"))
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = f.do(t, http.MethodPost, path, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = f.do(t, http.MethodPut, path, map[string]string{"pin": f.notifier.lastCode("ada@example.com")})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, path, nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Registration for ada@example.com is already confirmed", decodeProblem(t, rec).Detail)

	takeover := userBody("ada@example.com")
	takeover["password"] = "attacker-pw"
	rec = f.do(t, http.MethodPost, "/users", takeover)
	assert.Equal(t, http.StatusConflict, rec.Code)

	_, err := f.authSvc.Login(context.Background(), "ada@example.com", "attacker-pw")
	assert.ErrorIs(t, err, auth.ErrInvalidPassword)
	_, err = f.authSvc.Login(context.Background(), "ada@example.com", "analytical")
	assert.NoError(t, err)
}

func TestHandler_RegistrationConfirmationForEstablishedAccount(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "ada@example.com", "pw", user.RoleTeacher, user.StatusActive)

	rec := f.do(t, http.MethodPost, "/users/ada@example.com/confirm-registration", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Empty(t, f.notifier.lastCode("ada@example.com"), "no email is sent")
	assert.Empty(t, f.pins.Pins())
}

// The password endpoint carries no session or pin check; any caller can
// reset any account's password.
func TestHandler_UpdatePasswordIsUngated(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "ada@example.com", "old", user.RoleStudent, user.StatusActive)

	rec := f.do(t, http.MethodPut, "/users/ada@example.com/password", map[string]string{"password": "chosen-by-anyone"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	_, err := f.authSvc.Login(context.Background(), "ada@example.com", "chosen-by-anyone")
	assert.NoError(t, err)

	rec = f.do(t, http.MethodPut, "/users/missing@x.com/password", map[string]string{"password": "x"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = f.do(t, http.MethodPut, "/users/ada@example.com/password", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_NotificationFailure(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "ada@example.com", "pw", user.RoleStudent, user.StatusActive)
	f.notifier.err = errors.New("relay down")

	rec := f.do(t, http.MethodPost, "/users/ada@example.com/password-recovery", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
