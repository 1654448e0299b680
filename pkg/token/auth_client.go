package token

import (
	"errors"

	"github.com/netpie/microgear-go/pkg/models"
)

// AuthClient performs the signed delegated-authorization exchanges against
// the authorization server. Implementations must report a pending
// out-of-band grant on the access-token exchange as ErrNotYetAuthorized so
// the state machine keeps polling instead of starting over.
type AuthClient interface {
	RequestToken(scope, appID, verifier string) (*models.RequestToken, error)
	AccessToken(rt *models.RequestToken) (*AccessTokenResult, error)
	DiscoverEndpoint(at *models.AccessToken) (string, error)
	Revoke(token, revokeCode string) error
}

// AccessTokenResult carries an access-token response before the revoke
// code is derived. Ephemeral marks a single-use identity whose credentials
// must not be persisted.
type AccessTokenResult struct {
	Token     models.AccessToken
	Ephemeral bool
}

var (
	// ErrNotYetAuthorized signals that the request token exists but the
	// grant has not been approved yet.
	ErrNotYetAuthorized = errors.New("request token not yet authorized")

	// ErrRevokeFailed signals that the authorization server refused to
	// revoke the access token.
	ErrRevokeFailed = errors.New("token revocation failed")
)
