package httpx

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/elskow/users-api/internal/config"
)

// Problem is the error envelope written for every non-2xx response.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail"`
	Instance string `json:"instance"`
}

// Envelope wraps successful payloads.
type Envelope struct {
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// Title returns the error kind reported for an HTTP status.
func Title(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "BadRequest"
	case http.StatusUnauthorized:
		return "Unauthorized"
	case http.StatusForbidden:
		return "Forbidden"
	case http.StatusNotFound:
		return "NotFound"
	case http.StatusConflict:
		return "Conflict"
	case http.StatusTooManyRequests:
		return "TooManyRequests"
	case http.StatusInternalServerError:
		return "ServerError"
	}
	return http.StatusText(status)
}

type Responder struct {
	log          *zap.Logger
	mirrorStatus bool
}

func NewResponder(cfg *config.APIConfig, log *zap.Logger) *Responder {
	return &Responder{log: log, mirrorStatus: cfg.MirrorProblemStatus}
}

func (rs *Responder) JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		rs.log.Warn("failed to encode response", zap.Error(err))
	}
}

func (rs *Responder) Data(w http.ResponseWriter, status int, data interface{}) {
	rs.JSON(w, status, Envelope{Data: data})
}

func (rs *Responder) Message(w http.ResponseWriter, status int, message string, data interface{}) {
	rs.JSON(w, status, Envelope{Message: message, Data: data})
}

// Problem writes the error envelope. The envelope status stays 0 unless
// api.mirror_problem_status is set.
func (rs *Responder) Problem(w http.ResponseWriter, r *http.Request, status int, detail string) {
	p := Problem{
		Type:     "about:blank",
		Title:    Title(status),
		Detail:   detail,
		Instance: r.URL.Path,
	}
	if rs.mirrorStatus {
		p.Status = status
	}
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(p); err != nil {
		rs.log.Warn("failed to encode problem", zap.Error(err))
	}
}

