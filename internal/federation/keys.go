package federation

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"
)

// KeySource resolves the verification key of a signed identity token.
type KeySource interface {
	Keyfunc(token *jwt.Token) (interface{}, error)
}

// RemoteKeys fetches the provider JWKS on first use so the service can boot
// without reaching the provider. Failed fetches are retried on the next call.
type RemoteKeys struct {
	url     string
	refresh time.Duration
	log     *zap.Logger

	mu   sync.Mutex
	jwks *keyfunc.JWKS
}

func NewRemoteKeys(url string, refresh time.Duration, log *zap.Logger) *RemoteKeys {
	return &RemoteKeys{url: url, refresh: refresh, log: log}
}

func (k *RemoteKeys) load() (*keyfunc.JWKS, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.jwks != nil {
		return k.jwks, nil
	}

	jwks, err := keyfunc.Get(k.url, keyfunc.Options{
		RefreshInterval:   k.refresh,
		RefreshTimeout:    10 * time.Second,
		RefreshUnknownKID: true,
		RefreshErrorHandler: func(err error) {
			k.log.Warn("jwks refresh failed", zap.String("url", k.url), zap.Error(err))
		},
	})
	if err != nil {
		return nil, fmt.Errorf("fetch jwks %s: %w", k.url, err)
	}
	k.jwks = jwks
	return jwks, nil
}

func (k *RemoteKeys) Keyfunc(token *jwt.Token) (interface{}, error) {
	jwks, err := k.load()
	if err != nil {
		return nil, err
	}
	return jwks.Keyfunc(token)
}

// Close stops the background refresh goroutine.
func (k *RemoteKeys) Close() {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.jwks != nil {
		k.jwks.EndBackground()
	}
}

var errNoKeys = errors.New("jwks contains no keys")

// StaticKeys serves a fixed JWKS document.
func StaticKeys(document []byte) (KeySource, error) {
	jwks, err := keyfunc.NewJSON(document)
	if err != nil {
		return nil, fmt.Errorf("parse jwks: %w", err)
	}
	if len(jwks.KIDs()) == 0 {
		return nil, errNoKeys
	}
	return jwks, nil
}
