package auth

import (
	"crypto/subtle"

	"golang.org/x/crypto/bcrypt"

	"github.com/elskow/users-api/internal/user"
)

// CredentialCheck selects how a stored password is compared.
type CredentialCheck int

const (
	// CredentialHashed compares against a bcrypt hash.
	CredentialHashed CredentialCheck = iota
	// CredentialLegacyPlaintext compares the stored value by equality. Admin
	// accounts use it while auth.legacy_admin_plaintext is enabled.
	CredentialLegacyPlaintext
)

func (c CredentialCheck) String() string {
	switch c {
	case CredentialHashed:
		return "hashed"
	case CredentialLegacyPlaintext:
		return "legacy_plaintext"
	}
	return "unknown"
}

func (s *Service) HashPassword(password string) (string, error) {
	cost := s.config.BcryptCost
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	return string(bytes), err
}

func (s *Service) CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// CredentialCheckFor returns the comparison used for accounts with role.
func (s *Service) CredentialCheckFor(role user.Role) CredentialCheck {
	if role == user.RoleAdmin && s.config.LegacyAdminPlaintext {
		return CredentialLegacyPlaintext
	}
	return CredentialHashed
}

// StoredPassword encodes password the way CredentialCheckFor(role) expects
// to read it back.
func (s *Service) StoredPassword(role user.Role, password string) (string, error) {
	if s.CredentialCheckFor(role) == CredentialLegacyPlaintext {
		return password, nil
	}
	return s.HashPassword(password)
}

func (s *Service) checkCredential(u *user.User, password string) bool {
	switch s.CredentialCheckFor(u.Role) {
	case CredentialLegacyPlaintext:
		return subtle.ConstantTimeCompare([]byte(u.Password), []byte(password)) == 1
	default:
		return s.CheckPasswordHash(password, u.Password)
	}
}
