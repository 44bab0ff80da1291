package federation

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v4"
)

var ErrInvalidToken = errors.New("invalid identity token")

var googleIssuers = []string{"accounts.google.com", "https://accounts.google.com"}

// Identity is the verified subset of a Google ID token.
type Identity struct {
	Subject    string
	Email      string
	GivenName  string
	FamilyName string
	Picture    string
}

type googleClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
	Picture       string `json:"picture"`
	jwt.RegisteredClaims
}

// Verifier turns an external token into a verified identity.
type Verifier interface {
	Verify(ctx context.Context, rawToken string) (*Identity, error)
}

type GoogleVerifier struct {
	clientID string
	keys     KeySource
	parser   *jwt.Parser
}

func NewGoogleVerifier(clientID string, keys KeySource) *GoogleVerifier {
	return &GoogleVerifier{
		clientID: clientID,
		keys:     keys,
		parser:   jwt.NewParser(jwt.WithValidMethods([]string{"RS256"})),
	}
}

func (v *GoogleVerifier) Verify(_ context.Context, rawToken string) (*Identity, error) {
	if rawToken == "" {
		return nil, ErrInvalidToken
	}

	claims := &googleClaims{}
	token, err := v.parser.ParseWithClaims(rawToken, claims, v.keys.Keyfunc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	if !validIssuer(claims.Issuer) {
		return nil, fmt.Errorf("%w: unexpected issuer %q", ErrInvalidToken, claims.Issuer)
	}
	if v.clientID == "" || !claims.VerifyAudience(v.clientID, true) {
		return nil, fmt.Errorf("%w: audience mismatch", ErrInvalidToken)
	}
	if claims.Email == "" || !claims.EmailVerified {
		return nil, fmt.Errorf("%w: email not verified", ErrInvalidToken)
	}

	return &Identity{
		Subject:    claims.Subject,
		Email:      claims.Email,
		GivenName:  claims.GivenName,
		FamilyName: claims.FamilyName,
		Picture:    claims.Picture,
	}, nil
}

func validIssuer(iss string) bool {
	for _, allowed := range googleIssuers {
		if iss == allowed {
			return true
		}
	}
	return false
}
