package token

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mrjones/oauth"
	"github.com/rs/zerolog"

	"github.com/netpie/microgear-go/pkg/models"
)

// requestTimeout bounds every call to the authorization server so a
// non-responding server cannot stall the handshake indefinitely.
const requestTimeout = 30 * time.Second

// GearAuthClient is the production AuthClient. Token exchanges are OAuth
// 1.0a requests signed with HMAC-SHA1; endpoint discovery is a signed GET
// and revocation a plain GET whose authenticity rides on the revoke code.
type GearAuthClient struct {
	identity models.Identity
	baseURL  string
	http     *http.Client
	logger   zerolog.Logger
}

// NewGearAuthClient creates an auth client against the server at baseURL,
// e.g. "http://gearauth.netpie.io:8080".
func NewGearAuthClient(identity models.Identity, baseURL string, logger zerolog.Logger) *GearAuthClient {
	return &GearAuthClient{
		identity: identity,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		http:     &http.Client{Timeout: requestTimeout},
		logger:   logger,
	}
}

func (c *GearAuthClient) consumer() *oauth.Consumer {
	consumer := oauth.NewConsumer(c.identity.Key, c.identity.Secret, oauth.ServiceProvider{
		RequestTokenUrl: c.baseURL + models.RequestTokenPath,
		AccessTokenUrl:  c.baseURL + models.AccessTokenPath,
	})
	consumer.HttpClient = c.http
	return consumer
}

// RequestToken obtains a fresh request token. The verifier travels both as
// a signed parameter and inside the returned token so the later
// access-token exchange can replay it.
func (c *GearAuthClient) RequestToken(scope, appID, verifier string) (*models.RequestToken, error) {
	consumer := c.consumer()
	consumer.AdditionalParams = map[string]string{
		"scope":    scope,
		"appid":    appID,
		"mgrev":    models.APIRevision,
		"verifier": verifier,
	}

	rt, _, err := consumer.GetRequestTokenAndUrl("oob")
	if err != nil {
		return nil, fmt.Errorf("request token: %w", err)
	}

	c.logger.Debug().Str("appid", appID).Msg("Request token issued")
	return &models.RequestToken{Token: rt.Token, Secret: rt.Secret, Verifier: verifier}, nil
}

// AccessToken exchanges a request token for an access token. An HTTP 401
// maps to ErrNotYetAuthorized; any other refusal is final for this request
// token.
func (c *GearAuthClient) AccessToken(rt *models.RequestToken) (*AccessTokenResult, error) {
	at, err := c.consumer().AuthorizeToken(
		&oauth.RequestToken{Token: rt.Token, Secret: rt.Secret},
		rt.Verifier,
	)
	if err != nil {
		var httpErr oauth.HTTPExecuteError
		if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusUnauthorized {
			return nil, ErrNotYetAuthorized
		}
		return nil, fmt.Errorf("access token: %w", err)
	}

	c.logger.Debug().Msg("Access token issued")
	return &AccessTokenResult{
		Token: models.AccessToken{
			Token:    at.Token,
			Secret:   at.Secret,
			AppKey:   at.AdditionalData["appkey"],
			Endpoint: at.AdditionalData["endpoint"],
		},
		// "S" flags a single-use session identity whose credentials must
		// stay out of the on-disk cache.
		Ephemeral: at.AdditionalData["flag"] == "S",
	}, nil
}

// DiscoverEndpoint resolves the broker instance assigned to this gear key.
// The request is signed with the access token.
func (c *GearAuthClient) DiscoverEndpoint(at *models.AccessToken) (string, error) {
	resp, err := c.consumer().Get(
		c.baseURL+"/api/endpoint/"+c.identity.Key,
		nil,
		&oauth.AccessToken{Token: at.Token, Secret: at.Secret},
	)
	if err != nil {
		return "", fmt.Errorf("endpoint discovery: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("endpoint discovery: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("endpoint discovery: unexpected status %s", resp.Status)
	}

	endpoint := strings.TrimSpace(string(body))
	if endpoint == "" {
		return "", errors.New("endpoint discovery: empty endpoint")
	}
	return endpoint, nil
}

// Revoke asks the authorization server to invalidate the access token. The
// server answers with the literal body "FAILED" on failure and anything
// else on success.
func (c *GearAuthClient) Revoke(token, revokeCode string) error {
	resp, err := c.http.Get(c.baseURL + "/api/revoke/" + token + "/" + revokeCode)
	if err != nil {
		return fmt.Errorf("revoke: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("revoke: %w", err)
	}
	if strings.TrimSpace(string(body)) == "FAILED" {
		return ErrRevokeFailed
	}
	return nil
}
