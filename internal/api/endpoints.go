package api

// Service name reported by the gRPC health server
const Service = "users.Users"

// Operational endpoints
const (
	Health  = "/health"
	Metrics = "/metrics"
)

// Authentication endpoints
const (
	Login          = "/users/login"
	AdminLogin     = "/users/admin/login"
	BiometricLogin = "/users/login/biometric"
	GoogleConsent  = "/users/login/google"
	GoogleCallback = "/users/authorize"
	GoogleSignUp   = "/users/google/signup"
	GoogleLogin    = "/users/google/login"
	Logout         = "/users/logout"
	SessionStatus  = "/users/session"
)

// Account endpoints, as chi patterns
const (
	Users                    = "/users"
	User                     = "/users/{id}"
	Teachers                 = "/users/teachers"
	Admin                    = "/users/admin"
	AdminStatus              = "/users/admin/status"
	Location                 = "/users/{id}/location"
	Notification             = "/users/{id}/notification"
	Biometric                = "/users/{id}/biometric"
	PasswordRecovery         = "/users/{email}/password-recovery"
	Password                 = "/users/{email}/password"
	RegistrationConfirmation = "/users/{email}/confirm-registration"
)

// SessionEndpoints defines the routes that need a live session cookie,
// keyed by "METHOD pattern".
var SessionEndpoints = map[string]bool{
	"GET " + Users:        true,
	"GET " + User:         true,
	"DELETE " + User:      true,
	"GET " + Teachers:     true,
	"PUT " + Location:     true,
	"PUT " + Notification: true,
}

func RequiresSession(method, pattern string) bool {
	return SessionEndpoints[method+" "+pattern]
}
