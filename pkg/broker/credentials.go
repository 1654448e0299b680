package broker

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/netpie/microgear-go/pkg/models"
)

// Credentials are the transport-level secrets derived from an access
// token. They bind the broker session cryptographically to that token and
// to the moment of connection, so a captured password cannot be replayed
// for a later session.
type Credentials struct {
	Username string
	Password string
	ClientID string
}

// DeriveCredentials computes the broker credentials for the access token
// at the given time. The derivation is a pure function of its inputs:
//
//	username = {gearKey}%{unixSeconds}
//	password = base64(HMAC-SHA1(key={tokenSecret}&{gearSecret}, msg={token}%{username}))
//	clientID = access-token token
func DeriveCredentials(at *models.AccessToken, gearKey, gearSecret string, now time.Time) Credentials {
	username := fmt.Sprintf("%s%%%d", gearKey, now.Unix())

	mac := hmac.New(sha1.New, []byte(at.Secret+"&"+gearSecret))
	mac.Write([]byte(at.Token + "%" + username))
	password := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return Credentials{
		Username: username,
		Password: password,
		ClientID: at.Token,
	}
}
